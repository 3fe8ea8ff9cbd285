package crypto

import (
	"encoding/base64"
	"strings"
)

// B64 returns unpadded standard base64, the encoding used for keys and
// ciphertexts in Matrix events.
func B64(b []byte) string { return base64.RawStdEncoding.EncodeToString(b) }

// DecodeB64 decodes standard base64 with or without padding.
func DecodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
