package olm

import (
	"encoding/json"
	"fmt"
)

// UnauthenticatedSource says why a restored key is not fully trusted.
type UnauthenticatedSource string

const (
	// UnauthenticatedForwarded marks a key that reached us via a forward.
	UnauthenticatedForwarded UnauthenticatedSource = "Forwarded"
	// UnauthenticatedUndefined marks a key of unknown provenance.
	UnauthenticatedUndefined UnauthenticatedSource = "Undefined"
)

// KeySource records where a session's key came from. It is one of
// KeySourceDirect, KeySourceBackup, KeySourceForward or
// KeySourceOldStyleImport.
type KeySource interface {
	// imported is false only for keys received straight from the creator.
	imported() bool
	// unauthenticated is the hint written into backups of the session.
	unauthenticated() *UnauthenticatedSource
	String() string
}

// KeySourceDirect is an m.room_key received from the session creator.
type KeySourceDirect struct{}

// KeySourceBackup is a key restored from server-side backup.
type KeySourceBackup struct {
	Unauthenticated *UnauthenticatedSource
}

// KeySourceForward is an m.forwarded_room_key from another device.
type KeySourceForward struct{}

// KeySourceOldStyleImport is a key imported from an export file.
type KeySourceOldStyleImport struct{}

func (KeySourceDirect) imported() bool                          { return false }
func (KeySourceDirect) unauthenticated() *UnauthenticatedSource { return nil }
func (KeySourceDirect) String() string                          { return "Direct" }

func (KeySourceBackup) imported() bool { return true }
func (k KeySourceBackup) unauthenticated() *UnauthenticatedSource {
	if k.Unauthenticated == nil {
		return nil
	}
	u := *k.Unauthenticated
	return &u
}
func (k KeySourceBackup) String() string {
	if k.Unauthenticated == nil {
		return "Backup"
	}
	return "Backup(" + string(*k.Unauthenticated) + ")"
}

func (KeySourceForward) imported() bool { return true }
func (KeySourceForward) unauthenticated() *UnauthenticatedSource {
	u := UnauthenticatedForwarded
	return &u
}
func (KeySourceForward) String() string { return "Forward" }

func (KeySourceOldStyleImport) imported() bool { return true }
func (KeySourceOldStyleImport) unauthenticated() *UnauthenticatedSource {
	u := UnauthenticatedUndefined
	return &u
}
func (KeySourceOldStyleImport) String() string { return "OldStyleImport" }

type backupSourceJSON struct {
	Unauthenticated *UnauthenticatedSource `json:"unauthenticated"`
}

// MarshalKeySource encodes k as "Direct", "Forward", "OldStyleImport" or
// {"Backup":{"unauthenticated":...}}.
func MarshalKeySource(k KeySource) ([]byte, error) {
	switch v := k.(type) {
	case KeySourceDirect, KeySourceForward, KeySourceOldStyleImport:
		return json.Marshal(v.String())
	case KeySourceBackup:
		return json.Marshal(map[string]backupSourceJSON{"Backup": {Unauthenticated: v.Unauthenticated}})
	case nil:
		return nil, fmt.Errorf("olm: nil key source")
	default:
		return nil, fmt.Errorf("olm: unknown key source %T", k)
	}
}

// UnmarshalKeySource is the inverse of MarshalKeySource.
func UnmarshalKeySource(b []byte) (KeySource, error) {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		switch name {
		case "Direct":
			return KeySourceDirect{}, nil
		case "Forward":
			return KeySourceForward{}, nil
		case "OldStyleImport":
			return KeySourceOldStyleImport{}, nil
		}
		return nil, fmt.Errorf("olm: unknown key source %q", name)
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(b, &tagged); err != nil {
		return nil, fmt.Errorf("olm: key source: %w", err)
	}
	raw, ok := tagged["Backup"]
	if !ok || len(tagged) != 1 {
		return nil, fmt.Errorf("olm: unknown key source %s", b)
	}
	var bs backupSourceJSON
	if err := json.Unmarshal(raw, &bs); err != nil {
		return nil, fmt.Errorf("olm: backup key source: %w", err)
	}
	if u := bs.Unauthenticated; u != nil && *u != UnauthenticatedForwarded && *u != UnauthenticatedUndefined {
		return nil, fmt.Errorf("olm: unknown unauthenticated source %q", *u)
	}
	return KeySourceBackup{Unauthenticated: bs.Unauthenticated}, nil
}
