package backups

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"roomkeys/internal/domain/types"
)

// EncryptedSessionData is the session_data envelope of a backed up key.
type EncryptedSessionData struct {
	Ephemeral  string
	Ciphertext string
	MAC        string
	// Other keeps unrecognised fields in their original order. They are
	// covered by the backup MAC.
	Other    *orderedmap.OrderedMap[string, json.RawMessage]
	Unsigned *EncryptedSessionDataUnsigned
}

// EncryptedSessionDataUnsigned holds fields outside the MAC. A non-nil
// Unsigned always carries a backup MAC, possibly empty.
type EncryptedSessionDataUnsigned struct {
	BackupMAC string `json:"backup_mac"`
}

var coreFields = []string{"ephemeral", "ciphertext", "mac"}

func isCoreField(k string) bool {
	for _, c := range coreFields {
		if k == c {
			return true
		}
	}
	return k == "unsigned"
}

// MarshalJSON writes the core fields, then Other in order, then unsigned.
func (d EncryptedSessionData) MarshalJSON() ([]byte, error) {
	om := orderedmap.New[string, json.RawMessage]()
	for _, f := range []struct {
		key string
		val string
	}{{"ephemeral", d.Ephemeral}, {"ciphertext", d.Ciphertext}, {"mac", d.MAC}} {
		b, err := json.Marshal(f.val)
		if err != nil {
			return nil, err
		}
		om.Set(f.key, b)
	}
	if d.Other != nil {
		for p := d.Other.Oldest(); p != nil; p = p.Next() {
			if !isCoreField(p.Key) {
				om.Set(p.Key, p.Value)
			}
		}
	}
	if d.Unsigned != nil {
		b, err := json.Marshal(d.Unsigned)
		if err != nil {
			return nil, err
		}
		om.Set("unsigned", b)
	}
	return json.Marshal(om)
}

// UnmarshalJSON splits the core fields and unsigned from everything else.
func (d *EncryptedSessionData) UnmarshalJSON(b []byte) error {
	om := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(b, om); err != nil {
		return err
	}
	out := EncryptedSessionData{Other: orderedmap.New[string, json.RawMessage]()}
	for _, f := range []struct {
		key string
		dst *string
	}{{"ephemeral", &out.Ephemeral}, {"ciphertext", &out.Ciphertext}, {"mac", &out.MAC}} {
		raw, ok := om.Get(f.key)
		if !ok {
			return fmt.Errorf("backups: session_data: missing field %q", f.key)
		}
		if err := json.Unmarshal(raw, f.dst); err != nil {
			return fmt.Errorf("backups: session_data.%s: %w", f.key, err)
		}
	}
	if raw, ok := om.Get("unsigned"); ok && string(raw) != "null" {
		var u struct {
			BackupMAC *string `json:"backup_mac"`
		}
		if err := json.Unmarshal(raw, &u); err != nil {
			return fmt.Errorf("backups: session_data.unsigned: %w", err)
		}
		if u.BackupMAC != nil {
			out.Unsigned = &EncryptedSessionDataUnsigned{BackupMAC: *u.BackupMAC}
		}
	}
	for p := om.Oldest(); p != nil; p = p.Next() {
		if !isCoreField(p.Key) {
			out.Other.Set(p.Key, p.Value)
		}
	}
	*d = out
	return nil
}

// backupMAC returns unsigned.backup_mac, if present. An empty MAC counts as
// present.
func (d *EncryptedSessionData) backupMAC() (string, bool) {
	if d.Unsigned == nil {
		return "", false
	}
	return d.Unsigned.BackupMAC, true
}

// KeyBackupData is one backed up session as stored on the server.
type KeyBackupData struct {
	FirstMessageIndex uint32               `json:"first_message_index"`
	ForwardedCount    int                  `json:"forwarded_count"`
	IsVerified        bool                 `json:"is_verified"`
	SessionData       EncryptedSessionData `json:"session_data"`
}

// RoomKeyBackup maps session ids to their backup records.
type RoomKeyBackup struct {
	Sessions map[string]KeyBackupData `json:"sessions"`
}

// KeysBackup is the body of a backup upload or download.
type KeysBackup struct {
	Rooms map[types.RoomID]RoomKeyBackup `json:"rooms"`
}

// Add records data for a session in room.
func (k *KeysBackup) Add(room types.RoomID, sessionID string, data KeyBackupData) {
	if k.Rooms == nil {
		k.Rooms = map[types.RoomID]RoomKeyBackup{}
	}
	r, ok := k.Rooms[room]
	if !ok {
		r = RoomKeyBackup{Sessions: map[string]KeyBackupData{}}
		k.Rooms[room] = r
	}
	r.Sessions[sessionID] = data
}

// Count is the number of sessions in the backup.
func (k *KeysBackup) Count() int {
	n := 0
	for _, r := range k.Rooms {
		n += len(r.Sessions)
	}
	return n
}
