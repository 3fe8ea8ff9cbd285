package olm

import (
	"context"
	"encoding/json"

	"roomkeys/internal/domain/types"
	"roomkeys/internal/protocol/megolm"
)

// PickledInboundGroupSession is the persisted form of an InboundGroupSession.
type PickledInboundGroupSession struct {
	Pickle            megolm.InboundGroupSessionPickle
	SenderKey         types.X25519Public
	SigningKey        types.SigningKeys
	RoomID            types.RoomID
	KeySource         KeySource
	BackedUp          bool
	HistoryVisibility *types.HistoryVisibility
	Algorithm         types.EventEncryptionAlgorithm
}

// pickleWire is the on-disk shape. Imported is only read, for records
// written before KeySource existed.
type pickleWire struct {
	Pickle            *megolm.InboundGroupSessionPickle `json:"pickle"`
	SenderKey         *types.X25519Public               `json:"sender_key"`
	SigningKey        types.SigningKeys                 `json:"signing_key"`
	RoomID            *types.RoomID                     `json:"room_id"`
	Imported          *bool                             `json:"imported,omitempty"`
	KeySource         json.RawMessage                   `json:"key_source,omitempty"`
	BackedUp          bool                              `json:"backed_up"`
	HistoryVisibility *types.HistoryVisibility          `json:"history_visibility"`
	Algorithm         types.EventEncryptionAlgorithm    `json:"algorithm,omitempty"`
}

// MarshalJSON writes the current schema (key_source, never imported).
func (p PickledInboundGroupSession) MarshalJSON() ([]byte, error) {
	ks, err := MarshalKeySource(p.KeySource)
	if err != nil {
		return nil, err
	}
	return json.Marshal(pickleWire{
		Pickle:            &p.Pickle,
		SenderKey:         &p.SenderKey,
		SigningKey:        p.SigningKey,
		RoomID:            &p.RoomID,
		KeySource:         ks,
		BackedUp:          p.BackedUp,
		HistoryVisibility: p.HistoryVisibility,
		Algorithm:         p.Algorithm,
	})
}

// UnmarshalJSON reads both schemas. Exactly one of imported and key_source
// must be present.
func (p *PickledInboundGroupSession) UnmarshalJSON(b []byte) error {
	var w pickleWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch {
	case w.Pickle == nil:
		return &MigrationError{Reason: "missing field: pickle"}
	case w.SenderKey == nil:
		return &MigrationError{Reason: "missing field: sender_key"}
	case w.SigningKey == nil:
		return &MigrationError{Reason: "missing field: signing_key"}
	case w.RoomID == nil:
		return &MigrationError{Reason: "missing field: room_id"}
	case !w.RoomID.Valid():
		return &MigrationError{Reason: "invalid room_id " + w.RoomID.String()}
	}
	hasKeySource := len(w.KeySource) > 0 && string(w.KeySource) != "null"

	var source KeySource
	switch {
	case w.Imported != nil && hasKeySource:
		return &MigrationError{Reason: "imported and key_source cannot both be provided"}
	case w.Imported != nil:
		if *w.Imported {
			source = KeySourceOldStyleImport{}
		} else {
			source = KeySourceDirect{}
		}
	case hasKeySource:
		ks, err := UnmarshalKeySource(w.KeySource)
		if err != nil {
			return err
		}
		source = ks
	default:
		return &MigrationError{Reason: "missing field: key_source"}
	}

	if w.Algorithm == "" {
		w.Algorithm = types.MegolmV1AesSha2
	}
	*p = PickledInboundGroupSession{
		Pickle:            *w.Pickle,
		SenderKey:         *w.SenderKey,
		SigningKey:        w.SigningKey,
		RoomID:            *w.RoomID,
		KeySource:         source,
		BackedUp:          w.BackedUp,
		HistoryVisibility: w.HistoryVisibility,
		Algorithm:         w.Algorithm,
	}
	return nil
}

// Wipe zeroes the ratchet material held by the pickle.
func (p *PickledInboundGroupSession) Wipe() { p.Pickle.Wipe() }

// Pickle snapshots the session for storage.
func (s *InboundGroupSession) Pickle(ctx context.Context) (*PickledInboundGroupSession, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	inner := s.inner.session.Pickle()
	s.unlock()

	return &PickledInboundGroupSession{
		Pickle:            inner,
		SenderKey:         s.creatorInfo.Curve25519Key,
		SigningKey:        s.SigningKeys(),
		RoomID:            s.roomID,
		KeySource:         s.keySource,
		BackedUp:          s.BackedUp(),
		HistoryVisibility: s.HistoryVisibility(),
		Algorithm:         s.algorithm,
	}, nil
}

// FromPickle restores a session. The session id and first known index are
// derived from the restored ratchet, not read from the record.
func FromPickle(p *PickledInboundGroupSession) *InboundGroupSession {
	inner := megolm.FromPickle(p.Pickle)
	creator := SessionCreatorInfo{
		Curve25519Key: p.SenderKey,
		SigningKeys:   p.SigningKey.Clone(),
	}
	var visibility *types.HistoryVisibility
	if p.HistoryVisibility != nil {
		v := *p.HistoryVisibility
		visibility = &v
	}
	return newSession(inner, creator, p.RoomID, p.KeySource, p.Algorithm, visibility, p.BackedUp)
}

// SessionID returns the id of the pickled session, the base64 form of its
// signing key.
func (p *PickledInboundGroupSession) SessionID() string { return p.Pickle.SigningKey.String() }
