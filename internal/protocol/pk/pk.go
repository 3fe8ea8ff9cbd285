package pk

import (
	"crypto/hmac"
	"errors"
	"fmt"

	"roomkeys/internal/crypto"
	"roomkeys/internal/domain/types"
	"roomkeys/internal/util/memzero"
)

const macLength = 8

var (
	ErrInvalidMAC = errors.New("pk: MAC mismatch")
	ErrBadInput   = errors.New("pk: malformed message")
)

// Message is an encrypted payload. All fields are raw bytes; the backup
// envelope carries them as unpadded base64.
type Message struct {
	EphemeralKey types.X25519Public
	Ciphertext   []byte
	MAC          []byte
}

func deriveKeys(priv types.X25519Private, pub types.X25519Public) (crypto.CipherKeys, error) {
	shared, err := crypto.DH(priv, pub)
	if err != nil {
		return crypto.CipherKeys{}, err
	}
	defer memzero.Zero(shared[:])
	return crypto.DeriveCipherKeys(shared[:], "")
}

// Encrypt encrypts plaintext to recipient.
func Encrypt(recipient types.X25519Public, plaintext []byte) (*Message, error) {
	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(ephPriv[:])

	keys, err := deriveKeys(ephPriv, recipient)
	if err != nil {
		return nil, err
	}
	defer keys.Wipe()

	return &Message{
		EphemeralKey: ephPub,
		Ciphertext:   keys.Encrypt(plaintext),
		MAC:          keys.MAC(nil)[:macLength],
	}, nil
}

// Decrypt opens m with the recipient's private key.
func Decrypt(priv types.X25519Private, m *Message) ([]byte, error) {
	keys, err := deriveKeys(priv, m.EphemeralKey)
	if err != nil {
		return nil, err
	}
	defer keys.Wipe()

	if !hmac.Equal(keys.MAC(nil)[:macLength], m.MAC) {
		return nil, ErrInvalidMAC
	}
	pt, err := keys.Decrypt(m.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("pk: %w", err)
	}
	return pt, nil
}

// MessageFromBase64 decodes the three base64 envelope fields.
func MessageFromBase64(ephemeral, ciphertext, mac string) (*Message, error) {
	eph, err := types.X25519PublicFromBase64(ephemeral)
	if err != nil {
		return nil, fmt.Errorf("%w: ephemeral: %v", ErrBadInput, err)
	}
	ct, err := crypto.DecodeB64(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", ErrBadInput, err)
	}
	m, err := crypto.DecodeB64(mac)
	if err != nil {
		return nil, fmt.Errorf("%w: mac: %v", ErrBadInput, err)
	}
	return &Message{EphemeralKey: eph, Ciphertext: ct, MAC: m}, nil
}
