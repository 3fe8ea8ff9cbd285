package pk_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"roomkeys/internal/crypto"
	"roomkeys/internal/protocol/pk"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	priv, pub, err := crypto.GenerateX25519()
	require.NoError(t, err)

	m, err := pk.Encrypt(pub, []byte(`{"session_key":"abc"}`))
	require.NoError(t, err)
	require.Len(t, m.MAC, 8)

	parsed, err := pk.MessageFromBase64(m.EphemeralKey.String(), crypto.B64(m.Ciphertext), crypto.B64(m.MAC))
	require.NoError(t, err)

	pt, err := pk.Decrypt(priv, parsed)
	require.NoError(t, err)
	require.Equal(t, `{"session_key":"abc"}`, string(pt))
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	_, pub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	other, _, err := crypto.GenerateX25519()
	require.NoError(t, err)

	m, err := pk.Encrypt(pub, []byte("secret"))
	require.NoError(t, err)

	_, err = pk.Decrypt(other, m)
	require.ErrorIs(t, err, pk.ErrInvalidMAC)
}

func TestMessageFromBase64_RejectsGarbage(t *testing.T) {
	_, err := pk.MessageFromBase64("!!", "AA", "AA")
	require.ErrorIs(t, err, pk.ErrBadInput)
}
