package app

import (
	"github.com/rs/zerolog"

	"roomkeys/internal/metrics"
	"roomkeys/internal/services/backupkey"
	"roomkeys/internal/services/roomkey"
	"roomkeys/internal/store"
)

// Wire bundles all stores and services for the CLI.
type Wire struct {
	Sessions   *store.GroupSessionBoltStore
	BackupKey  *store.BackupKeyBoltStore
	RoomKeys   *roomkey.Service
	BackupKeys *backupkey.Service
	Metrics    *metrics.Metrics
}

// NewWire constructs the dependency graph over an open database.
func NewWire(db *store.DB, m *metrics.Metrics, log zerolog.Logger) *Wire {
	// bbolt-backed stores
	sessionStore := store.NewGroupSessionStore(db)
	backupKeyStore := store.NewBackupKeyStore(db)

	// High-level services
	roomKeySvc := roomkey.New(sessionStore, m, log)
	backupKeySvc := backupkey.New(backupKeyStore, log)

	return &Wire{
		Sessions:   sessionStore,
		BackupKey:  backupKeyStore,
		RoomKeys:   roomKeySvc,
		BackupKeys: backupKeySvc,
		Metrics:    m,
	}
}
