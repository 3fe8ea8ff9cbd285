package backups

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"

	"roomkeys/internal/canonicaljson"
	"roomkeys/internal/crypto"
	"roomkeys/internal/util/memzero"
)

const redacted = "HmacSha256Key(*****)"

// HmacSha256Key authenticates backup envelopes. Its bytes are wiped by
// Clear or, failing that, when the key is garbage collected. It never
// prints or logs its value.
type HmacSha256Key struct {
	key *[32]byte
}

// NewHmacSha256Key copies key into a new HmacSha256Key.
func NewHmacSha256Key(key [32]byte) *HmacSha256Key {
	k := &HmacSha256Key{key: new([32]byte)}
	*k.key = key
	runtime.SetFinalizer(k, (*HmacSha256Key).Clear)
	return k
}

// Clear wipes the key. A cleared key must not be used again.
func (k *HmacSha256Key) Clear() {
	if k.key != nil {
		memzero.Zero(k.key[:])
		k.key = nil
	}
}

func (k *HmacSha256Key) String() string   { return redacted }
func (k *HmacSha256Key) GoString() string { return redacted }

// Format keeps %x and friends from reaching the key bytes.
func (k *HmacSha256Key) Format(f fmt.State, _ rune) { _, _ = f.Write([]byte(redacted)) }

// MarshalZerologObject logs the key in redacted form.
func (k *HmacSha256Key) MarshalZerologObject(e *zerolog.Event) {
	e.Str("key", "*****")
}

// signable builds the canonical JSON the MAC is computed over: ephemeral,
// ciphertext and mac plus any extra fields, without unsigned.
func signable(d *EncryptedSessionData) ([]byte, error) {
	obj := map[string]json.RawMessage{}
	if d.Other != nil {
		for p := d.Other.Oldest(); p != nil; p = p.Next() {
			if !isCoreField(p.Key) {
				obj[p.Key] = p.Value
			}
		}
	}
	for k, v := range map[string]string{"ephemeral": d.Ephemeral, "ciphertext": d.Ciphertext, "mac": d.MAC} {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		obj[k] = b
	}
	out, err := canonicaljson.EncodeObject(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnObject, err)
	}
	return out, nil
}

func (k *HmacSha256Key) calculate(msg []byte) []byte {
	if k.key == nil {
		panic("backups: use of cleared HmacSha256Key")
	}
	m := hmac.New(sha256.New, k.key[:])
	m.Write(msg)
	return m.Sum(nil)
}

// Sign computes the backup MAC of d and stores it in d.Unsigned.BackupMAC.
func (k *HmacSha256Key) Sign(d *EncryptedSessionData) error {
	msg, err := signable(d)
	if err != nil {
		return err
	}
	mac := crypto.B64(k.calculate(msg))
	if d.Unsigned == nil {
		d.Unsigned = &EncryptedSessionDataUnsigned{}
	}
	d.Unsigned.BackupMAC = mac
	return nil
}

// Verify checks the backup MAC of d.
func (k *HmacSha256Key) Verify(d *EncryptedSessionData) error {
	msg, err := signable(d)
	if err != nil {
		return err
	}
	encoded, ok := d.backupMAC()
	if !ok {
		return ErrNoSignatureFound
	}
	mac, err := crypto.DecodeB64(encoded)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(k.calculate(msg), mac) {
		return ErrInvalidSignature
	}
	return nil
}
