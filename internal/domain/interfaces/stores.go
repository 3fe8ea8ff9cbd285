package interfaces

import (
	"context"

	domaintypes "roomkeys/internal/domain/types"
	"roomkeys/internal/olm"
)

// GroupSessionStore persists pickled inbound group sessions, keyed by room
// and session id.
type GroupSessionStore interface {
	SaveGroupSessions(ctx context.Context, pickles ...*olm.PickledInboundGroupSession) error
	LoadGroupSession(
		ctx context.Context,
		roomID domaintypes.RoomID,
		sessionID string,
	) (*olm.PickledInboundGroupSession, bool, error)
	ListGroupSessions(ctx context.Context) ([]*olm.PickledInboundGroupSession, error)
}

// BackupKeyStore keeps the backup decryption key and the backup version it
// is used with.
type BackupKeyStore interface {
	SaveBackupKey(ctx context.Context, record domaintypes.BackupKeyRecord) error
	LoadBackupKey(ctx context.Context) (domaintypes.BackupKeyRecord, bool, error)
}
