package olm

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"roomkeys/internal/domain/types"
	"roomkeys/internal/protocol/megolm"
)

// innerSession is the ratchet shared by clones of one session.
type innerSession struct {
	lock    *semaphore.Weighted
	session *megolm.InboundGroupSession
}

func newInner(s *megolm.InboundGroupSession) *innerSession {
	return &innerSession{lock: semaphore.NewWeighted(1), session: s}
}

// InboundGroupSession is a room key used to decrypt messages in one room.
type InboundGroupSession struct {
	inner *innerSession

	sessionID       string
	firstKnownIndex uint32

	creatorInfo       SessionCreatorInfo
	roomID            types.RoomID
	keySource         KeySource
	algorithm         types.EventEncryptionAlgorithm
	historyVisibility *types.HistoryVisibility

	backedUp *atomic.Bool
}

func newSession(
	inner *megolm.InboundGroupSession,
	creator SessionCreatorInfo,
	roomID types.RoomID,
	source KeySource,
	alg types.EventEncryptionAlgorithm,
	visibility *types.HistoryVisibility,
	backedUp bool,
) *InboundGroupSession {
	s := &InboundGroupSession{
		inner:             newInner(inner),
		sessionID:         inner.SessionID(),
		firstKnownIndex:   inner.FirstKnownIndex(),
		creatorInfo:       creator,
		roomID:            roomID,
		keySource:         source,
		algorithm:         alg,
		historyVisibility: visibility,
		backedUp:          new(atomic.Bool),
	}
	s.backedUp.Store(backedUp)
	return s
}

// NewInboundGroupSession builds a session from an m.room_key received from
// the session creator.
func NewInboundGroupSession(
	senderKey types.X25519Public,
	signingKey types.Ed25519Public,
	roomID types.RoomID,
	sessionKey *megolm.SessionKey,
	alg types.EventEncryptionAlgorithm,
	visibility *types.HistoryVisibility,
) (*InboundGroupSession, error) {
	cfg, err := sessionConfig(alg)
	if err != nil {
		return nil, err
	}
	creator := SessionCreatorInfo{
		Curve25519Key: senderKey,
		SigningKeys:   types.NewEd25519SigningKeys(signingKey),
	}
	inner := megolm.NewInboundGroupSession(sessionKey, cfg)
	return newSession(inner, creator, roomID, KeySourceDirect{}, alg, visibility, false), nil
}

// FromExport builds a session from a key export entry.
func FromExport(key *ExportedRoomKey) (*InboundGroupSession, error) {
	cfg, err := sessionConfig(key.Algorithm)
	if err != nil {
		return nil, err
	}
	if key.SessionID != "" && key.SessionID != key.SessionKey.SessionID() {
		return nil, &SessionCreationError{Algorithm: key.Algorithm, Err: ErrSessionIDMismatch}
	}
	creator := SessionCreatorInfo{
		Curve25519Key: key.SenderKey,
		SigningKeys:   key.SenderClaimedKeys.Clone(),
	}
	inner := megolm.ImportInboundGroupSession(&key.SessionKey, cfg)
	return newSession(inner, creator, key.RoomID, KeySourceOldStyleImport{}, key.Algorithm, nil, false), nil
}

// FromBackup builds a session from a decrypted backup entry for roomID.
func FromBackup(roomID types.RoomID, key *BackedUpRoomKey) (*InboundGroupSession, error) {
	s, err := FromExport(&ExportedRoomKey{
		Algorithm:         key.Algorithm,
		RoomID:            roomID,
		SenderKey:         key.SenderKey,
		SessionID:         key.SessionKey.SessionID(),
		SessionKey:        key.SessionKey,
		SenderClaimedKeys: key.SenderClaimedKeys,
		ForwardingChain:   []string{},
	})
	if err != nil {
		return nil, err
	}
	s.keySource = KeySourceBackup{Unauthenticated: key.Unauthenticated}
	return s, nil
}

// FromForwardedRoomKey builds a session from an m.forwarded_room_key.
func FromForwardedRoomKey(content types.ForwardedRoomKeyContent) (*InboundGroupSession, error) {
	var (
		roomID     types.RoomID
		sessionKey string
		creator    SessionCreatorInfo
		cfg        megolm.SessionConfig
	)
	switch c := content.(type) {
	case types.ForwardedMegolmV1Content:
		roomID, sessionKey, cfg = c.RoomID, c.SessionKey, megolm.ConfigV1()
		creator = SessionCreatorInfo{
			Curve25519Key: c.ClaimedSenderKey,
			SigningKeys:   types.NewEd25519SigningKeys(c.ClaimedEd25519Key),
		}
	case types.ForwardedMegolmV2Content:
		if !types.ExperimentalAlgorithms {
			return nil, &SessionCreationError{Algorithm: c.Algorithm()}
		}
		roomID, sessionKey, cfg = c.RoomID, c.SessionKey, megolm.ConfigV2()
		creator = SessionCreatorInfo{
			Curve25519Key: c.ClaimedSenderKey,
			SigningKeys:   c.ClaimedSigningKeys.Clone(),
		}
	case nil:
		return nil, &SessionCreationError{}
	default:
		return nil, &SessionCreationError{Algorithm: c.Algorithm()}
	}

	key, err := megolm.ExportedSessionKeyFromBase64(sessionKey)
	if err != nil {
		return nil, &SessionCreationError{Algorithm: content.Algorithm(), Err: err}
	}
	defer key.Wipe()

	inner := megolm.ImportInboundGroupSession(key, cfg)
	return newSession(inner, creator, roomID, KeySourceForward{}, content.Algorithm(), nil, false), nil
}

// Clone returns a handle sharing ratchet state and backup flag with s.
func (s *InboundGroupSession) Clone() *InboundGroupSession {
	c := *s
	return &c
}

// SessionID is the unpadded base64 session signing key.
func (s *InboundGroupSession) SessionID() string { return s.sessionID }

// FirstKnownIndex is the earliest message index this session can decrypt.
func (s *InboundGroupSession) FirstKnownIndex() uint32 { return s.firstKnownIndex }

// RoomID is the room this session is bound to.
func (s *InboundGroupSession) RoomID() types.RoomID { return s.roomID }

// SenderKey is the creator's Curve25519 identity key.
func (s *InboundGroupSession) SenderKey() types.X25519Public { return s.creatorInfo.Curve25519Key }

// SigningKeys are the creator's claimed signing keys.
func (s *InboundGroupSession) SigningKeys() types.SigningKeys { return s.creatorInfo.SigningKeys.Clone() }

// CreatorInfo returns a copy of the creator identity.
func (s *InboundGroupSession) CreatorInfo() SessionCreatorInfo {
	return SessionCreatorInfo{Curve25519Key: s.creatorInfo.Curve25519Key, SigningKeys: s.SigningKeys()}
}

// KeySource reports where the key came from.
func (s *InboundGroupSession) KeySource() KeySource { return s.keySource }

// Algorithm is the room encryption algorithm of the session.
func (s *InboundGroupSession) Algorithm() types.EventEncryptionAlgorithm { return s.algorithm }

// HistoryVisibility is the room visibility when the key was created, if known.
func (s *InboundGroupSession) HistoryVisibility() *types.HistoryVisibility {
	if s.historyVisibility == nil {
		return nil
	}
	v := *s.historyVisibility
	return &v
}

// HasBeenImported is false only for keys received from their creator.
func (s *InboundGroupSession) HasBeenImported() bool { return s.keySource.imported() }

// BackedUp reports whether the session has been uploaded to key backup.
func (s *InboundGroupSession) BackedUp() bool { return s.backedUp.Load() }

// MarkAsBackedUp records a successful upload.
func (s *InboundGroupSession) MarkAsBackedUp() { s.backedUp.Store(true) }

// ResetBackupState forces the session to be uploaded again.
func (s *InboundGroupSession) ResetBackupState() { s.backedUp.Store(false) }

// Equal reports whether both sessions have the same session id.
func (s *InboundGroupSession) Equal(other *InboundGroupSession) bool {
	return s.sessionID == other.sessionID
}

// String shows only the session id.
func (s *InboundGroupSession) String() string {
	return fmt.Sprintf("InboundGroupSession{session_id: %s}", s.sessionID)
}

// lock blocks until the ratchet is free or ctx is done.
func (s *InboundGroupSession) lock(ctx context.Context) error {
	return s.inner.lock.Acquire(ctx, 1)
}

func (s *InboundGroupSession) unlock() { s.inner.lock.Release(1) }

// Export exports the session at its first known index.
func (s *InboundGroupSession) Export(ctx context.Context) (*ExportedRoomKey, error) {
	return s.ExportAtIndex(ctx, s.firstKnownIndex)
}

// ExportAtIndex exports the session starting at index. Indices below the
// first known index are raised to it.
func (s *InboundGroupSession) ExportAtIndex(ctx context.Context, index uint32) (*ExportedRoomKey, error) {
	index = max(index, s.firstKnownIndex)

	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	key, err := s.inner.session.ExportAt(index)
	s.unlock()
	if err != nil {
		// The index is clamped to the floor, so the ratchet can always reach it.
		panic(fmt.Sprintf("olm: export at %d: %v", index, err))
	}
	defer key.Wipe()

	return &ExportedRoomKey{
		Algorithm:         s.algorithm,
		RoomID:            s.roomID,
		SenderKey:         s.creatorInfo.Curve25519Key,
		SessionID:         s.sessionID,
		SessionKey:        *key,
		SenderClaimedKeys: s.SigningKeys(),
		ForwardingChain:   []string{},
	}, nil
}

// ToBackup exports the session in backup form, carrying its provenance.
func (s *InboundGroupSession) ToBackup(ctx context.Context) (*BackedUpRoomKey, error) {
	exported, err := s.Export(ctx)
	if err != nil {
		return nil, err
	}
	b := exported.backedUp()
	b.Unauthenticated = s.keySource.unauthenticated()
	return &b, nil
}

// Compare orders s against other by how much history each can decrypt.
// Callers must not compare the same pair concurrently in both directions.
func (s *InboundGroupSession) Compare(ctx context.Context, other *InboundGroupSession) (megolm.SessionOrdering, error) {
	if s.inner == other.inner {
		return megolm.Equal, nil
	}
	if s.SenderKey() != other.SenderKey() ||
		!s.creatorInfo.SigningKeys.Equal(other.creatorInfo.SigningKeys) ||
		s.algorithm != other.algorithm ||
		s.roomID != other.roomID {
		return megolm.Unconnected, nil
	}

	if err := s.lock(ctx); err != nil {
		return megolm.Unconnected, err
	}
	defer s.unlock()
	if err := other.lock(ctx); err != nil {
		return megolm.Unconnected, err
	}
	defer other.unlock()

	ord := s.inner.session.Compare(other.inner.session)
	zerolog.Ctx(ctx).Trace().
		Str("session_id", s.sessionID).
		Uint32("first_known_index", s.firstKnownIndex).
		Uint32("other_first_known_index", other.firstKnownIndex).
		Stringer("ordering", ord).
		Msg("compared inbound group sessions")
	return ord, nil
}
