// Package store provides persistence for pickled group sessions and the
// backup decryption key.
//
// Records live in a single bbolt database. Every value is sealed with
// XChaCha20-Poly1305 under a key derived from the user's passphrase with
// scrypt; the salt and cost parameters sit unencrypted in the meta bucket.
// The package includes:
//   - Inbound group sessions (GroupSessionBoltStore)
//   - The backup decryption key and version (BackupKeyBoltStore)
//   - JSON file helpers for key export and backup files (ReadJSON, WriteJSON)
package store
