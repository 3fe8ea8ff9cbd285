package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrBadPadding is returned when a CBC plaintext has invalid PKCS#7 padding
// or the ciphertext is not a whole number of blocks.
var ErrBadPadding = errors.New("invalid ciphertext padding")

// CipherKeys is the 80-byte key schedule shared by the Megolm message
// cipher and the backup public-key cipher.
type CipherKeys struct {
	AESKey [32]byte
	MACKey [32]byte
	IV     [16]byte
}

// DeriveCipherKeys expands ikm with HKDF-SHA-256 (zero salt) and info.
func DeriveCipherKeys(ikm []byte, info string) (CipherKeys, error) {
	var k CipherKeys
	r := hkdf.New(sha256.New, ikm, nil, []byte(info))
	if _, err := io.ReadFull(r, k.AESKey[:]); err != nil {
		return CipherKeys{}, err
	}
	if _, err := io.ReadFull(r, k.MACKey[:]); err != nil {
		return CipherKeys{}, err
	}
	if _, err := io.ReadFull(r, k.IV[:]); err != nil {
		return CipherKeys{}, err
	}
	return k, nil
}

// Wipe zeroes all key material.
func (k *CipherKeys) Wipe() {
	*k = CipherKeys{}
}

// MAC returns the full HMAC-SHA-256 of msg under the MAC key.
func (k *CipherKeys) MAC(msg []byte) []byte {
	m := hmac.New(sha256.New, k.MACKey[:])
	m.Write(msg)
	return m.Sum(nil)
}

// Encrypt encrypts plaintext with AES-256-CBC and PKCS#7 padding.
func (k *CipherKeys) Encrypt(plaintext []byte) []byte {
	block, err := aes.NewCipher(k.AESKey[:])
	if err != nil {
		panic(err) // fixed 32-byte key
	}
	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	buf := make([]byte, len(plaintext)+pad)
	copy(buf, plaintext)
	copy(buf[len(plaintext):], bytes.Repeat([]byte{byte(pad)}, pad))
	cipher.NewCBCEncrypter(block, k.IV[:]).CryptBlocks(buf, buf)
	return buf
}

// Decrypt reverses Encrypt.
func (k *CipherKeys) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrBadPadding
	}
	block, err := aes.NewCipher(k.AESKey[:])
	if err != nil {
		panic(err)
	}
	buf := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, k.IV[:]).CryptBlocks(buf, ciphertext)

	pad := int(buf[len(buf)-1])
	if pad == 0 || pad > aes.BlockSize {
		return nil, ErrBadPadding
	}
	for _, b := range buf[len(buf)-pad:] {
		if int(b) != pad {
			return nil, ErrBadPadding
		}
	}
	return buf[:len(buf)-pad], nil
}
