package interfaces

import (
	"context"
	"encoding/json"

	"roomkeys/internal/backups"
	domaintypes "roomkeys/internal/domain/types"
	"roomkeys/internal/olm"
)

// RoomKeyService receives, stores and uses room keys.
type RoomKeyService interface {
	ReceiveRoomKey(
		ctx context.Context,
		senderKey domaintypes.X25519Public,
		signingKey domaintypes.Ed25519Public,
		content domaintypes.RoomKeyContent,
	) (*olm.InboundGroupSession, error)
	ReceiveForwardedRoomKey(
		ctx context.Context,
		content domaintypes.ForwardedRoomKeyContent,
	) (*olm.InboundGroupSession, error)
	ImportRoomKeys(ctx context.Context, keys []olm.ExportedRoomKey) (imported, total int, err error)
	Decrypt(ctx context.Context, event *domaintypes.EncryptedEvent) (json.RawMessage, uint32, error)
	Export(ctx context.Context) ([]olm.ExportedRoomKey, error)
	BackUp(ctx context.Context, key *backups.MegolmV1BackupKey) (*backups.KeysBackup, error)
	Restore(
		ctx context.Context,
		key *backups.DecryptionKey,
		backup *backups.KeysBackup,
	) (restored, total int, err error)
}

// BackupKeyService creates and loads the backup decryption key.
type BackupKeyService interface {
	CreateBackupKey(ctx context.Context, version string) (*backups.MegolmV1BackupKey, string, error)
	LoadDecryptionKey(ctx context.Context) (*backups.DecryptionKey, string, error)
	LoadBackupKey(ctx context.Context) (*backups.MegolmV1BackupKey, error)
}
