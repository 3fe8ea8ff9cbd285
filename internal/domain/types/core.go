package types

import (
	"maps"
	"strings"
)

// UserID is a fully qualified user identifier such as @alice:example.org.
type UserID string

// String returns the string form of the user id.
func (u UserID) String() string { return string(u) }

// RoomID identifies a room, e.g. !abc:example.org.
type RoomID string

// String returns the string form of the room id.
func (r RoomID) String() string { return string(r) }

// Valid reports whether r has the !localpart:server shape.
func (r RoomID) Valid() bool {
	s := string(r)
	if len(s) > 255 || !strings.HasPrefix(s, "!") {
		return false
	}
	i := strings.IndexByte(s, ':')
	return i > 0 && i < len(s)-1
}

// EventID identifies a single timeline event.
type EventID string

// String returns the string form of the event id.
func (e EventID) String() string { return string(e) }

// EventEncryptionAlgorithm names a messaging algorithm.
type EventEncryptionAlgorithm string

const (
	OlmV1Curve25519AesSha2 EventEncryptionAlgorithm = "m.olm.v1.curve25519-aes-sha2"
	MegolmV1AesSha2        EventEncryptionAlgorithm = "m.megolm.v1.aes-sha2"
	MegolmV2AesSha2        EventEncryptionAlgorithm = "m.megolm.v2.aes-sha2"
)

// String returns the wire identifier.
func (a EventEncryptionAlgorithm) String() string { return string(a) }

// BackupAlgorithmMegolmV1 is the identifier of the server-side key backup scheme.
const BackupAlgorithmMegolmV1 = "m.megolm_backup.v1.curve25519-aes-sha2"

// DeviceKeyAlgorithm names the algorithm of a device key.
type DeviceKeyAlgorithm string

const (
	DeviceKeyEd25519    DeviceKeyAlgorithm = "ed25519"
	DeviceKeyCurve25519 DeviceKeyAlgorithm = "curve25519"
)

// SigningKeys maps a key algorithm to a base64 public signing key.
type SigningKeys map[DeviceKeyAlgorithm]string

// NewEd25519SigningKeys returns a map holding a single Ed25519 key.
func NewEd25519SigningKeys(key Ed25519Public) SigningKeys {
	return SigningKeys{DeviceKeyEd25519: key.String()}
}

// Equal reports whether both maps hold exactly the same keys.
func (k SigningKeys) Equal(other SigningKeys) bool { return maps.Equal(k, other) }

// Clone returns an independent copy.
func (k SigningKeys) Clone() SigningKeys {
	if k == nil {
		return SigningKeys{}
	}
	return maps.Clone(k)
}

// HistoryVisibility is the m.room.history_visibility setting of a room.
type HistoryVisibility string

const (
	HistoryVisibilityInvited       HistoryVisibility = "invited"
	HistoryVisibilityJoined        HistoryVisibility = "joined"
	HistoryVisibilityShared        HistoryVisibility = "shared"
	HistoryVisibilityWorldReadable HistoryVisibility = "world_readable"
)

// BackupKeyRecord is the persisted backup decryption key.
type BackupKeyRecord struct {
	// DecryptionKey is the unpadded base64 private key.
	DecryptionKey string `json:"decryption_key"`
	Version       string `json:"version,omitempty"`
}
