package megolm

import (
	"crypto/rand"

	"roomkeys/internal/crypto"
	"roomkeys/internal/domain/types"
	"roomkeys/internal/util/memzero"
)

// GroupSession is the sending half of a Megolm session.
type GroupSession struct {
	ratchet    ratchet
	signingKey types.Ed25519Private
	publicKey  types.Ed25519Public
	config     SessionConfig
}

// NewGroupSession creates a session with a random ratchet and signing key.
func NewGroupSession(config SessionConfig) (*GroupSession, error) {
	var data [ratchetLength]byte
	if _, err := rand.Read(data[:]); err != nil {
		return nil, err
	}
	priv, pub, err := crypto.GenerateEd25519()
	if err != nil {
		return nil, err
	}
	s := &GroupSession{
		ratchet:    newRatchet(data[:], 0),
		signingKey: priv,
		publicKey:  pub,
		config:     config,
	}
	memzero.Zero(data[:])
	return s, nil
}

// SessionID is the unpadded base64 Ed25519 public key of the session.
func (s *GroupSession) SessionID() string { return s.publicKey.String() }

// MessageIndex is the index the next message will be encrypted at.
func (s *GroupSession) MessageIndex() uint32 { return s.ratchet.index() }

// SessionKey returns the signed key for the current ratchet state.
func (s *GroupSession) SessionKey() *SessionKey {
	body := encodeKey(sessionKeyVersion, &s.ratchet, s.publicKey)
	sig := crypto.SignEd25519(s.signingKey, body)
	memzero.Zero(body)
	return &SessionKey{ratchet: s.ratchet, signingKey: s.publicKey, signature: sig}
}

// Encrypt encrypts plaintext at the current index and advances the ratchet.
func (s *GroupSession) Encrypt(plaintext []byte) (*Message, error) {
	keys, err := messageKeys(&s.ratchet)
	if err != nil {
		return nil, err
	}
	defer keys.Wipe()

	m := &Message{Index: s.ratchet.index(), Ciphertext: keys.Encrypt(plaintext)}
	body := encodeBody(m.Index, m.Ciphertext)
	m.MAC = keys.MAC(body)[:s.config.MACLength()]
	m.signed = append(body, m.MAC...)
	m.Signature = crypto.SignEd25519(s.signingKey, m.signed)

	s.ratchet.advance()
	return m, nil
}

// Wipe zeroes the ratchet and signing key.
func (s *GroupSession) Wipe() {
	s.ratchet.wipe()
	memzero.Zero(s.signingKey[:])
}
