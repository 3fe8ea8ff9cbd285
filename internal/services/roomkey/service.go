package roomkey

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"roomkeys/internal/backups"
	"roomkeys/internal/domain"
	"roomkeys/internal/metrics"
	"roomkeys/internal/olm"
	"roomkeys/internal/protocol/megolm"
)

// Session sources, as reported in metrics and logs.
const (
	sourceDirect  = "direct"
	sourceForward = "forward"
	sourceImport  = "import"
	sourceBackup  = "backup"
)

var (
	// ErrUnknownSession indicates no stored session matches the event's room
	// and session id.
	ErrUnknownSession = errors.New("roomkey: no session for event")
)

type sessionRef struct {
	room domain.RoomID
	id   string
}

// Service keeps inbound group sessions in a GroupSessionStore and caches the
// sessions it has loaded, so concurrent decryptions with one session share its
// ratchet.
type Service struct {
	store   domain.GroupSessionStore
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu       sync.Mutex
	sessions map[sessionRef]*olm.InboundGroupSession
}

// New constructs a room key Service. m may be nil.
func New(store domain.GroupSessionStore, m *metrics.Metrics, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		metrics:  m,
		log:      log.With().Str("component", "roomkey").Logger(),
		sessions: map[sessionRef]*olm.InboundGroupSession{},
	}
}

// ReceiveRoomKey builds a session from an m.room_key sent by the session
// creator and stores it. The returned session is the one kept after the
// insert rule, which may be a better session already stored.
func (s *Service) ReceiveRoomKey(
	ctx context.Context,
	senderKey domain.X25519Public,
	signingKey domain.Ed25519Public,
	content domain.RoomKeyContent,
) (*olm.InboundGroupSession, error) {
	key, err := megolm.SessionKeyFromBase64(content.SessionKey)
	if err != nil {
		return nil, &olm.SessionCreationError{Algorithm: content.Algorithm, Err: err}
	}
	defer key.Wipe()

	session, err := olm.NewInboundGroupSession(senderKey, signingKey, content.RoomID, key, content.Algorithm, nil)
	if err != nil {
		return nil, err
	}
	if session.SessionID() != content.SessionID {
		return nil, olm.ErrSessionIDMismatch
	}
	kept, _, err := s.add(ctx, sourceDirect, session)
	return kept, err
}

// ReceiveForwardedRoomKey builds a session from an m.forwarded_room_key and
// stores it.
func (s *Service) ReceiveForwardedRoomKey(
	ctx context.Context,
	content domain.ForwardedRoomKeyContent,
) (*olm.InboundGroupSession, error) {
	session, err := olm.FromForwardedRoomKey(content)
	if err != nil {
		return nil, err
	}
	kept, _, err := s.add(ctx, sourceForward, session)
	return kept, err
}

// ImportRoomKeys stores the sessions of a key export. Entries that cannot be
// turned into a session are skipped; imported counts the sessions that were
// stored.
func (s *Service) ImportRoomKeys(ctx context.Context, keys []olm.ExportedRoomKey) (imported, total int, err error) {
	for i := range keys {
		key := &keys[i]
		session, err := olm.FromExport(key)
		if err != nil {
			s.log.Warn().Err(err).
				Str("room_id", key.RoomID.String()).
				Str("session_id", key.SessionID).
				Msg("skipping exported room key")
			continue
		}
		_, stored, err := s.add(ctx, sourceImport, session)
		if err != nil {
			return imported, len(keys), err
		}
		if stored {
			imported++
		}
	}
	s.log.Info().Int("imported", imported).Int("total", len(keys)).Msg("imported room keys")
	return imported, len(keys), nil
}

// Decrypt decrypts a room event with the stored session it names.
func (s *Service) Decrypt(ctx context.Context, event *domain.EncryptedEvent) (json.RawMessage, uint32, error) {
	start := time.Now()
	plaintext, index, err := s.decrypt(ctx, event)
	s.metrics.ObserveDecrypt(decryptResult(err), time.Since(start))
	if err != nil {
		s.log.Debug().Err(err).
			Str("room_id", event.RoomID.String()).
			Str("event_id", event.EventID.String()).
			Msg("failed to decrypt room event")
		return nil, 0, err
	}
	return plaintext, index, nil
}

func (s *Service) decrypt(ctx context.Context, event *domain.EncryptedEvent) (json.RawMessage, uint32, error) {
	sessionID := event.Content.SessionID()
	if sessionID == "" {
		return nil, 0, olm.ErrUnsupportedAlgorithm
	}
	session, ok, err := s.lookup(ctx, event.RoomID, sessionID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, ErrUnknownSession
	}
	ctx = s.log.With().
		Str("room_id", event.RoomID.String()).
		Str("session_id", sessionID).
		Logger().WithContext(ctx)
	return session.Decrypt(ctx, event)
}

// Export returns every stored session exported at its first known index,
// ordered by room and then session id.
func (s *Service) Export(ctx context.Context) ([]olm.ExportedRoomKey, error) {
	sessions, err := s.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]olm.ExportedRoomKey, 0, len(sessions))
	for _, session := range sessions {
		key, err := session.Export(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, *key)
	}
	return out, nil
}

// Sessions loads every stored session.
func (s *Service) Sessions(ctx context.Context) ([]*olm.InboundGroupSession, error) {
	pickles, err := s.store.ListGroupSessions(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.SetStoredSessions(len(pickles))

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*olm.InboundGroupSession, 0, len(pickles))
	for _, p := range pickles {
		out = append(out, s.restoreLocked(p))
		p.Wipe()
	}
	return out, nil
}

// BackUp encrypts every session that is not yet backed up to key, marks them
// as backed up and persists the flag. The result groups sessions by room.
func (s *Service) BackUp(ctx context.Context, key *backups.MegolmV1BackupKey) (*backups.KeysBackup, error) {
	version, ok := key.BackupVersion()
	if !ok {
		return nil, backups.ErrNoVersion
	}
	sessions, err := s.Sessions(ctx)
	if err != nil {
		return nil, err
	}

	out := &backups.KeysBackup{Rooms: map[domain.RoomID]backups.RoomKeyBackup{}}
	var pending []*olm.InboundGroupSession
	for _, session := range sessions {
		if session.BackedUp() {
			continue
		}
		data, err := key.Encrypt(ctx, session)
		if err != nil {
			return nil, err
		}
		out.Add(session.RoomID(), session.SessionID(), *data)
		pending = append(pending, session)
	}
	if len(pending) == 0 {
		return out, nil
	}

	pickles := make([]*olm.PickledInboundGroupSession, 0, len(pending))
	defer func() {
		for _, p := range pickles {
			p.Wipe()
		}
	}()
	for _, session := range pending {
		p, err := session.Pickle(ctx)
		if err != nil {
			return nil, err
		}
		p.BackedUp = true
		pickles = append(pickles, p)
	}
	if err := s.store.SaveGroupSessions(ctx, pickles...); err != nil {
		return nil, err
	}
	for _, session := range pending {
		session.MarkAsBackedUp()
	}

	s.metrics.SessionsBackedUp(len(pending))
	s.log.Info().Int("sessions", len(pending)).Str("backup_version", version).Msg("backed up room keys")
	return out, nil
}

// Restore decrypts a backup with key and stores its sessions, already marked
// as backed up. Entries that fail to verify or decrypt are skipped.
func (s *Service) Restore(
	ctx context.Context,
	key *backups.DecryptionKey,
	backup *backups.KeysBackup,
) (restored, total int, err error) {
	for _, room := range sortedRooms(backup) {
		sessions := backup.Rooms[room].Sessions
		for _, sessionID := range sortedSessions(sessions) {
			total++
			data := sessions[sessionID]
			log := s.log.With().Str("room_id", room.String()).Str("session_id", sessionID).Logger()

			roomKey, err := key.DecryptSessionData(&data.SessionData)
			if err != nil {
				log.Warn().Err(err).Msg("skipping backed up room key")
				continue
			}
			session, err := olm.FromBackup(room, roomKey)
			roomKey.Wipe()
			if err != nil {
				log.Warn().Err(err).Msg("skipping backed up room key")
				continue
			}
			if session.SessionID() != sessionID {
				log.Warn().Err(olm.ErrSessionIDMismatch).Msg("skipping backed up room key")
				continue
			}
			session.MarkAsBackedUp()

			_, stored, err := s.add(ctx, sourceBackup, session)
			if err != nil {
				return restored, total, err
			}
			if stored {
				restored++
			}
		}
	}
	s.metrics.SessionsRestored(restored)
	s.log.Info().Int("restored", restored).Int("total", total).Msg("restored room keys from backup")
	return restored, total, nil
}

// add stores session unless an equal or better session with the same room
// and session id is already stored. It returns the session kept and whether
// session was stored.
func (s *Service) add(ctx context.Context, source string, session *olm.InboundGroupSession) (*olm.InboundGroupSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := sessionRef{room: session.RoomID(), id: session.SessionID()}
	existing, ok, err := s.lookupLocked(ctx, ref)
	if err != nil {
		return nil, false, err
	}
	if ok {
		ord, err := session.Compare(ctx, existing)
		if err != nil {
			return nil, false, err
		}
		if ord != megolm.Better {
			s.metrics.SessionReceived(source, false)
			s.log.Debug().
				Str("room_id", ref.room.String()).
				Str("session_id", ref.id).
				Str("source", source).
				Stringer("ordering", ord).
				Msg("kept stored session")
			return existing, false, nil
		}
	}

	p, err := session.Pickle(ctx)
	if err != nil {
		return nil, false, err
	}
	defer p.Wipe()
	if err := s.store.SaveGroupSessions(ctx, p); err != nil {
		return nil, false, err
	}
	s.sessions[ref] = session
	s.metrics.SessionReceived(source, true)
	s.log.Debug().
		Str("room_id", ref.room.String()).
		Str("session_id", ref.id).
		Str("source", source).
		Stringer("key_source", session.KeySource()).
		Uint32("first_known_index", session.FirstKnownIndex()).
		Msg("stored inbound group session")
	return session, true, nil
}

func (s *Service) lookup(ctx context.Context, room domain.RoomID, sessionID string) (*olm.InboundGroupSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(ctx, sessionRef{room: room, id: sessionID})
}

func (s *Service) lookupLocked(ctx context.Context, ref sessionRef) (*olm.InboundGroupSession, bool, error) {
	if session, ok := s.sessions[ref]; ok {
		return session, true, nil
	}
	p, ok, err := s.store.LoadGroupSession(ctx, ref.room, ref.id)
	if err != nil || !ok {
		return nil, false, err
	}
	defer p.Wipe()
	return s.restoreLocked(p), true, nil
}

// restoreLocked returns the cached session for p, restoring and caching it
// when absent.
func (s *Service) restoreLocked(p *olm.PickledInboundGroupSession) *olm.InboundGroupSession {
	ref := sessionRef{room: p.RoomID, id: p.SessionID()}
	if session, ok := s.sessions[ref]; ok {
		return session
	}
	session := olm.FromPickle(p)
	s.sessions[ref] = session
	return session
}

func decryptResult(err error) string {
	var (
		unknownIndex *megolm.UnknownMessageIndexError
		mismatched   *olm.MismatchedRoomError
	)
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.As(err, &unknownIndex):
		return metrics.ResultUnknownIndex
	case errors.Is(err, megolm.ErrInvalidMAC):
		return metrics.ResultInvalidMAC
	case errors.Is(err, megolm.ErrInvalidSignature):
		return metrics.ResultBadSignature
	case errors.As(err, &mismatched):
		return metrics.ResultMismatchedRoom
	case errors.Is(err, olm.ErrNotAnObject):
		return metrics.ResultNotAnObject
	case errors.Is(err, ErrUnknownSession):
		return metrics.ResultUnknownSession
	case errors.Is(err, olm.ErrUnsupportedAlgorithm):
		return metrics.ResultUnsupported
	default:
		return metrics.ResultOther
	}
}

func sortedRooms(b *backups.KeysBackup) []domain.RoomID {
	rooms := make([]domain.RoomID, 0, len(b.Rooms))
	for room := range b.Rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })
	return rooms
}

func sortedSessions(sessions map[string]backups.KeyBackupData) []string {
	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Compile-time assertion that Service implements domain.RoomKeyService.
var _ domain.RoomKeyService = (*Service)(nil)
