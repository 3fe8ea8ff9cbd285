package types

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// String returns the unpadded base64 form of the key.
func (p X25519Public) String() string { return base64.RawStdEncoding.EncodeToString(p[:]) }

// MarshalText encodes the key as unpadded base64.
func (p X25519Public) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText decodes padded or unpadded base64.
func (p *X25519Public) UnmarshalText(b []byte) error {
	return decodeKey(p[:], "curve25519", string(b))
}

// X25519PublicFromBase64 parses a base64 Curve25519 public key.
func X25519PublicFromBase64(s string) (X25519Public, error) {
	var p X25519Public
	err := p.UnmarshalText([]byte(s))
	return p, err
}

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// String returns the unpadded base64 form of the key.
func (p Ed25519Public) String() string { return base64.RawStdEncoding.EncodeToString(p[:]) }

// MarshalText encodes the key as unpadded base64.
func (p Ed25519Public) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText decodes padded or unpadded base64.
func (p *Ed25519Public) UnmarshalText(b []byte) error {
	return decodeKey(p[:], "ed25519", string(b))
}

// Ed25519PublicFromBase64 parses a base64 Ed25519 public key.
func Ed25519PublicFromBase64(s string) (Ed25519Public, error) {
	var p Ed25519Public
	err := p.UnmarshalText([]byte(s))
	return p, err
}

// Ed25519Private is an Ed25519 signing private key (ed25519.PrivateKey layout).
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

func decodeKey(dst []byte, kind, s string) error {
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return fmt.Errorf("%s key: %w", kind, err)
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("%s key: want %d bytes, got %d", kind, len(dst), len(raw))
	}
	copy(dst, raw)
	return nil
}
