// Package crypto exposes the small set of primitives shared by the room key
// packages.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519,
//     X25519PublicFrom, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - Unpadded base64 as used on the Matrix wire (B64, DecodeB64)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// All functions return the fixed-size array types defined in
// internal/domain/types to avoid accidental reallocations. Callers should
// treat returned secrets as sensitive and wipe them with memzero when done.
package crypto
