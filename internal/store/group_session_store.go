package store

import (
	"context"

	bolt "go.etcd.io/bbolt"

	"roomkeys/internal/domain"
	"roomkeys/internal/olm"
)

// GroupSessionBoltStore persists pickled inbound group sessions in the
// group_sessions bucket, keyed by room id and session id.
type GroupSessionBoltStore struct {
	db *DB
}

// NewGroupSessionStore returns a GroupSessionBoltStore backed by db.
func NewGroupSessionStore(db *DB) *GroupSessionBoltStore {
	return &GroupSessionBoltStore{db: db}
}

func sessionKey(roomID domain.RoomID, sessionID string) []byte {
	k := make([]byte, 0, len(roomID)+1+len(sessionID))
	k = append(k, string(roomID)...)
	k = append(k, 0)
	return append(k, sessionID...)
}

// SaveGroupSessions writes every pickle in one transaction, replacing any
// record with the same room and session id.
func (s *GroupSessionBoltStore) SaveGroupSessions(ctx context.Context, pickles ...*olm.PickledInboundGroupSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		for _, p := range pickles {
			key := sessionKey(p.RoomID, p.SessionID())
			if err := s.db.putJSON(b, bucketSessions, key, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadGroupSession retrieves the pickle stored for roomID and sessionID.
func (s *GroupSessionBoltStore) LoadGroupSession(
	ctx context.Context,
	roomID domain.RoomID,
	sessionID string,
) (*olm.PickledInboundGroupSession, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var (
		pickle olm.PickledInboundGroupSession
		found  bool
	)
	err := s.db.view(func(tx *bolt.Tx) error {
		var err error
		found, err = s.db.getJSON(tx.Bucket(bucketSessions), bucketSessions, sessionKey(roomID, sessionID), &pickle)
		return err
	})
	if err != nil || !found {
		return nil, false, err
	}
	return &pickle, true, nil
}

// ListGroupSessions returns every stored pickle, ordered by room id and then
// session id.
func (s *GroupSessionBoltStore) ListGroupSessions(ctx context.Context) ([]*olm.PickledInboundGroupSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*olm.PickledInboundGroupSession
	err := s.db.view(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		return b.ForEach(func(k, _ []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var p olm.PickledInboundGroupSession
			if _, err := s.db.getJSON(b, bucketSessions, k, &p); err != nil {
				return err
			}
			out = append(out, &p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Compile-time assertion that GroupSessionBoltStore implements domain.GroupSessionStore.
var _ domain.GroupSessionStore = (*GroupSessionBoltStore)(nil)
