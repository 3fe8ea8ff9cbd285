package backups

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/rs/zerolog"

	"roomkeys/internal/crypto"
	"roomkeys/internal/domain/types"
	"roomkeys/internal/olm"
	"roomkeys/internal/protocol/pk"
	"roomkeys/internal/util/memzero"
)

// Signatures are the cross-signing signatures on a backup's auth data,
// keyed by user id then key id.
type Signatures map[types.UserID]map[string]string

func (s Signatures) clone() Signatures {
	out := make(Signatures, len(s))
	for u, keys := range s {
		out[u] = maps.Clone(keys)
	}
	return out
}

// MegolmV1BackupKey is the public half of a backup key. A *MegolmV1BackupKey
// is shared by everything that backs up to the same backup version.
type MegolmV1BackupKey struct {
	key        types.X25519Public
	macKey     *HmacSha256Key
	signatures Signatures

	mu      sync.Mutex
	version string
}

// NewMegolmV1BackupKey builds a backup key. macKey may be nil.
func NewMegolmV1BackupKey(key types.X25519Public, macKey *HmacSha256Key, version string) *MegolmV1BackupKey {
	return &MegolmV1BackupKey{key: key, macKey: macKey, signatures: Signatures{}, version: version}
}

// MegolmV1BackupKeyFromBase64 parses a public key as published in the backup
// auth data. The result has no MAC key and no version.
func MegolmV1BackupKeyFromBase64(s string) (*MegolmV1BackupKey, error) {
	key, err := types.X25519PublicFromBase64(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	return NewMegolmV1BackupKey(key, nil, ""), nil
}

// ToBase64 returns the unpadded base64 public key.
func (k *MegolmV1BackupKey) ToBase64() string { return k.key.String() }

// PublicKey returns the Curve25519 public key.
func (k *MegolmV1BackupKey) PublicKey() types.X25519Public { return k.key }

// BackupAlgorithm is the algorithm name used in the backup version.
func (k *MegolmV1BackupKey) BackupAlgorithm() string { return types.BackupAlgorithmMegolmV1 }

// Signatures returns a copy of the key's signatures.
func (k *MegolmV1BackupKey) Signatures() Signatures { return k.signatures.clone() }

// MACKey returns the envelope MAC key, or nil.
func (k *MegolmV1BackupKey) MACKey() *HmacSha256Key { return k.macKey }

// BackupVersion returns the server-side backup version, if set.
func (k *MegolmV1BackupKey) BackupVersion() (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.version, k.version != ""
}

// SetVersion sets the backup version this key encrypts for.
func (k *MegolmV1BackupKey) SetVersion(version string) {
	k.mu.Lock()
	k.version = version
	k.mu.Unlock()
}

// String shows the public key and version.
func (k *MegolmV1BackupKey) String() string {
	v, _ := k.BackupVersion()
	return fmt.Sprintf("MegolmV1BackupKey{key: %s, version: %q}", k.ToBase64(), v)
}

// Encrypt encrypts session into a backup record.
//
// Steps
//  1. forwarded_count is 1 for imported sessions, 0 otherwise.
//  2. Serialise the session's backup export into a single wiped buffer.
//  3. Encrypt the buffer to the backup public key.
//  4. MAC the envelope when a MAC key is configured.
func (k *MegolmV1BackupKey) Encrypt(ctx context.Context, session *olm.InboundGroupSession) (*KeyBackupData, error) {
	version, ok := k.BackupVersion()
	if !ok {
		return nil, ErrNoVersion
	}

	forwardedCount := 0
	if session.HasBeenImported() {
		forwardedCount = 1
	}

	exported, err := session.ToBackup(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := exported.AppendJSON(nil)
	exported.Wipe()
	if err != nil {
		return nil, fmt.Errorf("backups: encode room key: %w", err)
	}
	plaintext := memzero.Wrap(raw)
	defer plaintext.Close()

	msg, err := pk.Encrypt(k.key, plaintext.Bytes())
	if err != nil {
		return nil, err
	}

	data := EncryptedSessionData{
		Ephemeral:  msg.EphemeralKey.String(),
		Ciphertext: crypto.B64(msg.Ciphertext),
		MAC:        crypto.B64(msg.MAC),
	}
	if k.macKey != nil {
		if err := k.macKey.Sign(&data); err != nil {
			return nil, err
		}
	}

	zerolog.Ctx(ctx).Debug().
		Str("session_id", session.SessionID()).
		Str("room_id", session.RoomID().String()).
		Str("backup_version", version).
		Bool("signed", k.macKey != nil).
		Msg("encrypted room key for backup")

	return &KeyBackupData{
		FirstMessageIndex: session.FirstKnownIndex(),
		ForwardedCount:    forwardedCount,
		IsVerified:        false,
		SessionData:       data,
	}, nil
}
