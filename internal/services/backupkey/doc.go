// Package backupkey manages the backup decryption key.
//
// It generates the Curve25519 key pair used for m.megolm_backup.v1, persists
// the private half with the backup version via the domain.BackupKeyStore, and
// checks the MACs of a downloaded backup.
package backupkey
