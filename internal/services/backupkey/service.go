package backupkey

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"roomkeys/internal/backups"
	"roomkeys/internal/crypto"
	"roomkeys/internal/domain"
)

var (
	// ErrNoBackupKey is returned when no backup key has been created yet.
	ErrNoBackupKey = errors.New("backupkey: no backup key; run init-backup first")
)

// VerifyReport counts the outcome of checking every envelope of a backup.
type VerifyReport struct {
	Verified int
	Unsigned int
	Invalid  int
}

// Service manages backup key creation and access using a backing store.
type Service struct {
	store domain.BackupKeyStore
	log   zerolog.Logger
}

// New returns a backup key service backed by the given store.
func New(s domain.BackupKeyStore, log zerolog.Logger) *Service {
	return &Service{store: s, log: log.With().Str("component", "backupkey").Logger()}
}

// CreateBackupKey generates a new decryption key, saves it with version, and
// returns the public backup key plus a short fingerprint of it. Any previous
// key is replaced.
func (s *Service) CreateBackupKey(ctx context.Context, version string) (*backups.MegolmV1BackupKey, string, error) {
	dk, err := backups.NewDecryptionKey()
	if err != nil {
		return nil, "", err
	}
	defer dk.Clear()

	pub, err := dk.MegolmV1PublicKey()
	if err != nil {
		return nil, "", err
	}
	if version != "" {
		pub.SetVersion(version)
	}

	record := domain.BackupKeyRecord{DecryptionKey: dk.ToBase64(), Version: version}
	if err := s.store.SaveBackupKey(ctx, record); err != nil {
		return nil, "", err
	}
	fp := crypto.Fingerprint(pub.PublicKey().Slice())
	s.log.Info().Str("fingerprint", fp).Str("backup_version", version).Msg("created backup key")
	return pub, fp, nil
}

// SetVersion records the backup version the stored key is used with.
func (s *Service) SetVersion(ctx context.Context, version string) error {
	record, ok, err := s.store.LoadBackupKey(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoBackupKey
	}
	record.Version = version
	return s.store.SaveBackupKey(ctx, record)
}

// LoadDecryptionKey returns the stored decryption key and its backup
// version. Callers should Clear the key when done.
func (s *Service) LoadDecryptionKey(ctx context.Context) (*backups.DecryptionKey, string, error) {
	record, ok, err := s.store.LoadBackupKey(ctx)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", ErrNoBackupKey
	}
	dk, err := backups.DecryptionKeyFromBase64(record.DecryptionKey)
	if err != nil {
		return nil, "", err
	}
	return dk, record.Version, nil
}

// LoadBackupKey returns the public backup key, with its MAC key and the
// stored version.
func (s *Service) LoadBackupKey(ctx context.Context) (*backups.MegolmV1BackupKey, error) {
	dk, version, err := s.LoadDecryptionKey(ctx)
	if err != nil {
		return nil, err
	}
	defer dk.Clear()

	pub, err := dk.MegolmV1PublicKey()
	if err != nil {
		return nil, err
	}
	if version != "" {
		pub.SetVersion(version)
	}
	return pub, nil
}

// Fingerprint returns a short fingerprint of the public backup key.
func (s *Service) Fingerprint(ctx context.Context) (string, error) {
	pub, err := s.LoadBackupKey(ctx)
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(pub.PublicKey().Slice()), nil
}

// Verify checks the backup MAC of every envelope in backup against the
// stored key.
func (s *Service) Verify(ctx context.Context, backup *backups.KeysBackup) (VerifyReport, error) {
	pub, err := s.LoadBackupKey(ctx)
	if err != nil {
		return VerifyReport{}, err
	}
	mac := pub.MACKey()
	defer mac.Clear()

	var report VerifyReport
	for room, r := range backup.Rooms {
		for sessionID, data := range r.Sessions {
			err := mac.Verify(&data.SessionData)
			switch {
			case err == nil:
				report.Verified++
			case errors.Is(err, backups.ErrNoSignatureFound):
				report.Unsigned++
			default:
				report.Invalid++
				s.log.Warn().Err(err).
					Str("room_id", room.String()).
					Str("session_id", sessionID).
					Msg("backup envelope failed verification")
			}
		}
	}
	return report, nil
}

// Compile-time assertion that Service implements domain.BackupKeyService.
var _ domain.BackupKeyService = (*Service)(nil)
