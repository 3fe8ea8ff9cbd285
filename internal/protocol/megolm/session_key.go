package megolm

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"roomkeys/internal/crypto"
	"roomkeys/internal/domain/types"
	"roomkeys/internal/util/memzero"
)

const (
	sessionKeyVersion  = 2
	exportedKeyVersion = 1

	exportedKeyLength = 1 + 4 + ratchetLength + 32
	sessionKeyLength  = exportedKeyLength + signatureSize
)

// SessionKey is the signed session key distributed in m.room_key events.
type SessionKey struct {
	ratchet    ratchet
	signingKey types.Ed25519Public
	signature  []byte
}

// ExportedSessionKey is the unsigned export format used by key exports,
// forwarded keys and backups.
type ExportedSessionKey struct {
	ratchet    ratchet
	signingKey types.Ed25519Public
}

func encodeKey(version byte, r *ratchet, key types.Ed25519Public) []byte {
	out := make([]byte, 0, sessionKeyLength)
	out = append(out, version)
	out = binary.BigEndian.AppendUint32(out, r.counter)
	out = append(out, r.data[:]...)
	return append(out, key[:]...)
}

func decodeKey(b []byte, version byte, length int) (ratchet, types.Ed25519Public, error) {
	var key types.Ed25519Public
	if len(b) == 0 {
		return ratchet{}, key, fmt.Errorf("%w: empty session key", ErrBadInput)
	}
	if b[0] != version {
		return ratchet{}, key, fmt.Errorf("%w: session key version %d", ErrBadVersion, b[0])
	}
	if len(b) != length {
		return ratchet{}, key, fmt.Errorf("%w: session key length %d", ErrBadInput, len(b))
	}
	counter := binary.BigEndian.Uint32(b[1:5])
	r := newRatchet(b[5:5+ratchetLength], counter)
	copy(key[:], b[5+ratchetLength:5+ratchetLength+32])
	return r, key, nil
}

// DecodeSessionKey parses and verifies a signed session key.
func DecodeSessionKey(b []byte) (*SessionKey, error) {
	r, key, err := decodeKey(b, sessionKeyVersion, sessionKeyLength)
	if err != nil {
		return nil, err
	}
	sig := b[exportedKeyLength:]
	if !crypto.VerifyEd25519(key, b[:exportedKeyLength], sig) {
		r.wipe()
		return nil, ErrInvalidSignature
	}
	return &SessionKey{ratchet: r, signingKey: key, signature: append([]byte(nil), sig...)}, nil
}

// SessionKeyFromBase64 decodes the base64 form found in m.room_key.
func SessionKeyFromBase64(s string) (*SessionKey, error) {
	raw, err := crypto.DecodeB64(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	defer memzero.Zero(raw)
	return DecodeSessionKey(raw)
}

// Bytes returns the wire encoding. The caller owns and should wipe it.
func (k *SessionKey) Bytes() []byte {
	return append(encodeKey(sessionKeyVersion, &k.ratchet, k.signingKey), k.signature...)
}

// Base64 returns the unpadded base64 wire encoding.
func (k *SessionKey) Base64() string {
	b := k.Bytes()
	defer memzero.Zero(b)
	return crypto.B64(b)
}

// Wipe zeroes the ratchet material.
func (k *SessionKey) Wipe() { k.ratchet.wipe() }

// DecodeExportedSessionKey parses an export-format key.
func DecodeExportedSessionKey(b []byte) (*ExportedSessionKey, error) {
	r, key, err := decodeKey(b, exportedKeyVersion, exportedKeyLength)
	if err != nil {
		return nil, err
	}
	return &ExportedSessionKey{ratchet: r, signingKey: key}, nil
}

// ExportedSessionKeyFromBase64 decodes the base64 form used in key exports.
func ExportedSessionKeyFromBase64(s string) (*ExportedSessionKey, error) {
	raw, err := crypto.DecodeB64(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	defer memzero.Zero(raw)
	return DecodeExportedSessionKey(raw)
}

// Bytes returns the wire encoding. The caller owns and should wipe it.
func (k *ExportedSessionKey) Bytes() []byte {
	return encodeKey(exportedKeyVersion, &k.ratchet, k.signingKey)
}

// Base64 returns the unpadded base64 wire encoding.
func (k *ExportedSessionKey) Base64() string {
	b := k.Bytes()
	defer memzero.Zero(b)
	return crypto.B64(b)
}

// Index is the message index the key starts at.
func (k *ExportedSessionKey) Index() uint32 { return k.ratchet.counter }

// Wipe zeroes the ratchet material.
func (k *ExportedSessionKey) Wipe() { k.ratchet.wipe() }

// EncodedLen is the length of the unpadded base64 encoding.
func (k *ExportedSessionKey) EncodedLen() int {
	return base64.RawStdEncoding.EncodedLen(exportedKeyLength)
}

// AppendBase64 appends the unpadded base64 encoding to dst. No other copy of
// the encoding is left behind when dst has EncodedLen spare capacity.
func (k *ExportedSessionKey) AppendBase64(dst []byte) []byte {
	b := k.Bytes()
	defer memzero.Zero(b)
	return base64.RawStdEncoding.AppendEncode(dst, b)
}

// MarshalText encodes the key as unpadded base64.
func (k ExportedSessionKey) MarshalText() ([]byte, error) {
	return []byte(k.Base64()), nil
}

// UnmarshalText decodes padded or unpadded base64.
func (k *ExportedSessionKey) UnmarshalText(b []byte) error {
	parsed, err := ExportedSessionKeyFromBase64(string(b))
	if err != nil {
		return err
	}
	*k = *parsed
	parsed.Wipe()
	return nil
}

// SessionID is the unpadded base64 signing key the export belongs to.
func (k *ExportedSessionKey) SessionID() string { return k.signingKey.String() }
