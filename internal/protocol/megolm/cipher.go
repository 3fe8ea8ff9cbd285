package megolm

import (
	"crypto/hmac"

	"roomkeys/internal/crypto"
)

const messageKeysInfo = "MEGOLM_KEYS"

func messageKeys(r *ratchet) (crypto.CipherKeys, error) {
	return crypto.DeriveCipherKeys(r.data[:], messageKeysInfo)
}

// decryptWith checks the MAC of m against the keys of r and decrypts it.
func decryptWith(r *ratchet, m *Message, macLen int) ([]byte, error) {
	keys, err := messageKeys(r)
	if err != nil {
		return nil, err
	}
	defer keys.Wipe()

	body := m.signed[:len(m.signed)-macLen]
	mac := keys.MAC(body)[:macLen]
	if !hmac.Equal(mac, m.MAC) {
		return nil, ErrInvalidMAC
	}
	return keys.Decrypt(m.Ciphertext)
}
