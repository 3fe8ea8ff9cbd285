package store

import (
	"context"

	bolt "go.etcd.io/bbolt"

	"roomkeys/internal/domain"
)

var backupKeyRecord = []byte("decryption_key")

// BackupKeyBoltStore keeps the backup decryption key record in the backup
// bucket.
type BackupKeyBoltStore struct {
	db *DB
}

// NewBackupKeyStore returns a BackupKeyBoltStore backed by db.
func NewBackupKeyStore(db *DB) *BackupKeyBoltStore {
	return &BackupKeyBoltStore{db: db}
}

// SaveBackupKey replaces the stored backup key record.
func (s *BackupKeyBoltStore) SaveBackupKey(ctx context.Context, record domain.BackupKeyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.update(func(tx *bolt.Tx) error {
		return s.db.putJSON(tx.Bucket(bucketBackup), bucketBackup, backupKeyRecord, record)
	})
}

// LoadBackupKey retrieves the stored backup key record, if any.
func (s *BackupKeyBoltStore) LoadBackupKey(ctx context.Context) (domain.BackupKeyRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.BackupKeyRecord{}, false, err
	}
	var (
		record domain.BackupKeyRecord
		found  bool
	)
	err := s.db.view(func(tx *bolt.Tx) error {
		var err error
		found, err = s.db.getJSON(tx.Bucket(bucketBackup), bucketBackup, backupKeyRecord, &record)
		return err
	})
	if err != nil {
		return domain.BackupKeyRecord{}, false, err
	}
	return record, found, nil
}

// Compile-time assertion that BackupKeyBoltStore implements domain.BackupKeyStore.
var _ domain.BackupKeyStore = (*BackupKeyBoltStore)(nil)
