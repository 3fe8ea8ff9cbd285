// Package backups encrypts room keys for server-side key backup
// (m.megolm_backup.v1.curve25519-aes-sha2) and authenticates the resulting
// envelopes.
//
// MegolmV1BackupKey holds the public half of a backup key. Encrypt turns an
// inbound group session into a KeyBackupData record: the session's backup
// export is encrypted to the public key, and when the key carries an
// HmacSha256Key the envelope is MACed over its canonical JSON and the MAC is
// stored in unsigned.backup_mac.
//
// DecryptionKey is the private half. It derives the same MAC key, verifies
// envelopes and decrypts them back into olm.BackedUpRoomKey values.
package backups
