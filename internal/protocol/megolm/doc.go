// Package megolm implements the Megolm group ratchet used to encrypt room
// messages.
//
// # Overview
//
// A Megolm session is a 128-byte ratchet split into four 32-byte parts
// R0..R3 plus a 32-bit counter. Advancing the counter rehashes the parts
// with HMAC-SHA-256 so that R0 changes every 2^24 messages, R1 every 2^16,
// R2 every 2^8 and R3 on every message. Any later ratchet state can be
// computed from an earlier one, never the reverse.
//
// Each message key is derived from the full ratchet with HKDF-SHA-256
// ("MEGOLM_KEYS") into an AES-256-CBC key, an HMAC-SHA-256 key and an IV.
// Messages are additionally signed with the session's Ed25519 key.
//
// # Formats
//
//   - SessionKey (v2): version, counter, ratchet, public key, signature.
//     This is what m.room_key carries and what the creator signs.
//   - ExportedSessionKey (v1): version, counter, ratchet, public key.
//     Used by key exports, forwarded keys and backups.
//   - Message (v3): version, protobuf-style index and ciphertext, MAC
//     (8 bytes for SessionConfig V1, 32 for V2), Ed25519 signature.
//
// # Concurrency
//
// InboundGroupSession and GroupSession are NOT safe for concurrent use.
// Callers serialise access per session.
package megolm
