package backups

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"roomkeys/internal/crypto"
	"roomkeys/internal/domain/types"
	"roomkeys/internal/olm"
	"roomkeys/internal/protocol/pk"
	"roomkeys/internal/util/memzero"
)

const macKeyInfo = "MEGOLM_BACKUP_MAC"

// DecryptionKey is the private half of a backup key.
type DecryptionKey struct {
	priv types.X25519Private
}

// NewDecryptionKey generates a fresh backup key.
func NewDecryptionKey() (*DecryptionKey, error) {
	priv, _, err := crypto.GenerateX25519()
	if err != nil {
		return nil, err
	}
	return &DecryptionKey{priv: priv}, nil
}

// DecryptionKeyFromBase64 parses a base64 private key.
func DecryptionKeyFromBase64(s string) (*DecryptionKey, error) {
	raw, err := crypto.DecodeB64(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	defer memzero.Zero(raw)
	if len(raw) != len(types.X25519Private{}) {
		return nil, fmt.Errorf("%w: length %d", ErrBadKey, len(raw))
	}
	k := &DecryptionKey{}
	copy(k.priv[:], raw)
	return k, nil
}

// ToBase64 returns the unpadded base64 private key. Treat it as a secret.
func (k *DecryptionKey) ToBase64() string { return crypto.B64(k.priv[:]) }

// Clear wipes the private key.
func (k *DecryptionKey) Clear() { memzero.Zero(k.priv[:]) }

// macKey derives the envelope MAC key from the private key.
func (k *DecryptionKey) macKey() (*HmacSha256Key, error) {
	var key [32]byte
	r := hkdf.New(sha256.New, k.priv[:], nil, []byte(macKeyInfo))
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return nil, err
	}
	defer memzero.Zero(key[:])
	return NewHmacSha256Key(key), nil
}

// MegolmV1PublicKey returns the public backup key, with the MAC key
// attached and no version.
func (k *DecryptionKey) MegolmV1PublicKey() (*MegolmV1BackupKey, error) {
	pub, err := crypto.X25519PublicFrom(k.priv)
	if err != nil {
		return nil, err
	}
	mac, err := k.macKey()
	if err != nil {
		return nil, err
	}
	return NewMegolmV1BackupKey(pub, mac, ""), nil
}

// DecryptSessionData verifies and decrypts one backup envelope. Envelopes
// without a backup MAC are accepted; a present but wrong MAC is an error.
func (k *DecryptionKey) DecryptSessionData(data *EncryptedSessionData) (*olm.BackedUpRoomKey, error) {
	if _, signed := data.backupMAC(); signed {
		mac, err := k.macKey()
		if err != nil {
			return nil, err
		}
		err = mac.Verify(data)
		mac.Clear()
		if err != nil {
			return nil, err
		}
	}

	msg, err := pk.MessageFromBase64(data.Ephemeral, data.Ciphertext, data.MAC)
	if err != nil {
		return nil, err
	}
	raw, err := pk.Decrypt(k.priv, msg)
	if err != nil {
		return nil, err
	}
	plaintext := memzero.Wrap(raw)
	defer plaintext.Close()

	var key olm.BackedUpRoomKey
	if err := json.Unmarshal(plaintext.Bytes(), &key); err != nil {
		return nil, fmt.Errorf("backups: decode room key: %w", err)
	}
	return &key, nil
}
