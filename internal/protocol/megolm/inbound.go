package megolm

import (
	"encoding/json"
	"fmt"

	"roomkeys/internal/domain/types"
)

// SessionOrdering is the result of comparing two inbound sessions.
type SessionOrdering int

const (
	// Equal sessions can decrypt the same messages.
	Equal SessionOrdering = iota
	// Better sessions can decrypt strictly more messages.
	Better
	// Worse sessions can decrypt strictly fewer messages.
	Worse
	// Unconnected sessions do not share a ratchet and cannot be ordered.
	Unconnected
)

func (o SessionOrdering) String() string {
	switch o {
	case Equal:
		return "equal"
	case Better:
		return "better"
	case Worse:
		return "worse"
	case Unconnected:
		return "unconnected"
	}
	return fmt.Sprintf("SessionOrdering(%d)", int(o))
}

// DecryptedMessage is the result of InboundGroupSession.Decrypt.
type DecryptedMessage struct {
	Plaintext    []byte
	MessageIndex uint32
}

// InboundGroupSession is the receiving half of a Megolm session.
type InboundGroupSession struct {
	initial            ratchet
	latest             ratchet
	signingKey         types.Ed25519Public
	signingKeyVerified bool
	config             SessionConfig
}

// NewInboundGroupSession starts a session from a signed session key.
func NewInboundGroupSession(key *SessionKey, config SessionConfig) *InboundGroupSession {
	return &InboundGroupSession{
		initial:            key.ratchet,
		latest:             key.ratchet,
		signingKey:         key.signingKey,
		signingKeyVerified: true,
		config:             config,
	}
}

// ImportInboundGroupSession starts a session from an exported key.
func ImportInboundGroupSession(key *ExportedSessionKey, config SessionConfig) *InboundGroupSession {
	return &InboundGroupSession{
		initial:    key.ratchet,
		latest:     key.ratchet,
		signingKey: key.signingKey,
		config:     config,
	}
}

// SessionID is the unpadded base64 Ed25519 public key of the session.
func (s *InboundGroupSession) SessionID() string { return s.signingKey.String() }

// SigningKey returns the session's Ed25519 public key.
func (s *InboundGroupSession) SigningKey() types.Ed25519Public { return s.signingKey }

// SigningKeyVerified reports whether the session was created from a key
// signed by the session's own signing key.
func (s *InboundGroupSession) SigningKeyVerified() bool { return s.signingKeyVerified }

// FirstKnownIndex is the earliest message index the session can decrypt.
func (s *InboundGroupSession) FirstKnownIndex() uint32 { return s.initial.index() }

// Config returns the protocol variant of the session.
func (s *InboundGroupSession) Config() SessionConfig { return s.config }

// ratchetAt returns a ratchet advanced to index, moving latest forward when
// that is the cheapest start.
func (s *InboundGroupSession) ratchetAt(index uint32) (*ratchet, error) {
	switch {
	case s.initial.index() == index:
		return &s.initial, nil
	case s.latest.index() == index:
		return &s.latest, nil
	case s.latest.index() < index:
		s.latest.advanceTo(index)
		return &s.latest, nil
	case s.initial.index() < index:
		r := s.initial
		r.advanceTo(index)
		return &r, nil
	default:
		return nil, &UnknownMessageIndexError{FirstKnown: s.initial.index(), Requested: index}
	}
}

// Decrypt verifies and decrypts m.
//
// Steps
//  1. Verify the Ed25519 signature over the encoded message.
//  2. Find a ratchet at the message index.
//  3. Verify the MAC and decrypt with the derived AES key.
func (s *InboundGroupSession) Decrypt(m *Message) (DecryptedMessage, error) {
	if len(m.MAC) != s.config.MACLength() {
		return DecryptedMessage{}, fmt.Errorf("%w: mac length %d", ErrBadInput, len(m.MAC))
	}
	if err := m.verifySignature(s.signingKey); err != nil {
		return DecryptedMessage{}, err
	}
	r, err := s.ratchetAt(m.Index)
	if err != nil {
		return DecryptedMessage{}, err
	}
	pt, err := decryptWith(r, m, s.config.MACLength())
	if r != &s.initial && r != &s.latest {
		r.wipe()
	}
	if err != nil {
		return DecryptedMessage{}, err
	}
	return DecryptedMessage{Plaintext: pt, MessageIndex: m.Index}, nil
}

// ExportAt exports the session starting at index.
func (s *InboundGroupSession) ExportAt(index uint32) (*ExportedSessionKey, error) {
	if index < s.initial.index() {
		return nil, &UnknownMessageIndexError{FirstKnown: s.initial.index(), Requested: index}
	}
	r := s.initial
	if index != r.index() {
		r.advanceTo(index)
	}
	return &ExportedSessionKey{ratchet: r, signingKey: s.signingKey}, nil
}

// connected reports whether other's initial ratchet can be reached from s.
func (s *InboundGroupSession) connected(other *InboundGroupSession) bool {
	if s.config.Version() != other.config.Version() || s.signingKey != other.signingKey {
		return false
	}
	if other.initial.index() < s.initial.index() {
		return false
	}
	r := s.initial
	r.advanceTo(other.initial.index())
	defer r.wipe()
	return r.equal(&other.initial)
}

// Compare orders s against other by how much history each can decrypt.
func (s *InboundGroupSession) Compare(other *InboundGroupSession) SessionOrdering {
	switch {
	case s.SessionID() != other.SessionID():
		return Unconnected
	case s.FirstKnownIndex() == other.FirstKnownIndex():
		if s.connected(other) {
			return Equal
		}
	case s.FirstKnownIndex() < other.FirstKnownIndex():
		if s.connected(other) {
			return Better
		}
	default:
		if other.connected(s) {
			return Worse
		}
	}
	return Unconnected
}

// Wipe zeroes all ratchet material.
func (s *InboundGroupSession) Wipe() {
	s.initial.wipe()
	s.latest.wipe()
}

// InboundGroupSessionPickle is the serialisable state of an inbound session.
// Only the initial ratchet is kept.
type InboundGroupSessionPickle struct {
	InitialRatchet     ratchet             `json:"initial_ratchet"`
	SigningKey         types.Ed25519Public `json:"signing_key"`
	SigningKeyVerified bool                `json:"signing_key_verified"`
	Config             SessionConfig       `json:"config"`
}

// Pickle snapshots the session.
func (s *InboundGroupSession) Pickle() InboundGroupSessionPickle {
	return InboundGroupSessionPickle{
		InitialRatchet:     s.initial,
		SigningKey:         s.signingKey,
		SigningKeyVerified: s.signingKeyVerified,
		Config:             s.config,
	}
}

// FromPickle restores a session from p.
func FromPickle(p InboundGroupSessionPickle) *InboundGroupSession {
	return &InboundGroupSession{
		initial:            p.InitialRatchet,
		latest:             p.InitialRatchet,
		signingKey:         p.SigningKey,
		signingKeyVerified: p.SigningKeyVerified,
		config:             p.Config,
	}
}

// Wipe zeroes the ratchet material held by the pickle.
func (p *InboundGroupSessionPickle) Wipe() { p.InitialRatchet.wipe() }

// UnmarshalJSON treats a missing config as V1. The ratchet and signing key
// are required.
func (p *InboundGroupSessionPickle) UnmarshalJSON(b []byte) error {
	type plain InboundGroupSessionPickle
	var raw struct {
		plain
		InitialRatchet *ratchet             `json:"initial_ratchet"`
		SigningKey     *types.Ed25519Public `json:"signing_key"`
		Config         *SessionConfig       `json:"config"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.InitialRatchet == nil {
		return fmt.Errorf("%w: pickle: missing initial_ratchet", ErrBadInput)
	}
	defer raw.InitialRatchet.wipe()
	if raw.SigningKey == nil {
		return fmt.Errorf("%w: pickle: missing signing_key", ErrBadInput)
	}
	*p = InboundGroupSessionPickle(raw.plain)
	p.InitialRatchet = *raw.InitialRatchet
	p.SigningKey = *raw.SigningKey
	if raw.Config == nil {
		p.Config = ConfigV1()
	} else {
		p.Config = *raw.Config
	}
	return nil
}
