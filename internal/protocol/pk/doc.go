// Package pk implements the public-key encryption used by server-side key
// backups (m.megolm_backup.v1.curve25519-aes-sha2).
//
// # Flow
//
// Encrypt:
//  1. Generate an ephemeral X25519 key pair.
//  2. DH the ephemeral private key with the recipient's public key.
//  3. HKDF-SHA-256 the shared secret into an AES-256 key, an HMAC key and an IV.
//  4. AES-256-CBC encrypt the plaintext with PKCS#7 padding.
//  5. Compute the MAC and truncate it to 8 bytes.
//
// Decrypt runs the same DH with the recipient's private key and the
// ephemeral public key, then checks the MAC before decrypting.
//
// # Compatibility
//
// libolm computes the MAC over an empty input instead of the ciphertext.
// Every deployed backup carries that MAC, so this package reproduces it. The
// MAC therefore does not authenticate the ciphertext; integrity of the
// envelope comes from the backup MAC key when one is configured.
package pk
