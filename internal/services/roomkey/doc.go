// Package roomkey receives, stores and uses inbound group sessions.
//
// Sessions arrive from their creator, by forwarding, from key export files
// and from server-side backups. A session only replaces a stored session with
// the same room and session id when it can decrypt strictly more history.
// The service also decrypts room events and encrypts pending sessions into a
// backup.
package roomkey
