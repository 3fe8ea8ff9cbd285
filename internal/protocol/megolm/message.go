package megolm

import (
	"encoding/binary"
	"fmt"

	"roomkeys/internal/crypto"
	"roomkeys/internal/domain/types"
)

const (
	messageVersion = 3
	signatureSize  = 64

	tagIndex      = 0x08 // field 1, varint
	tagCiphertext = 0x12 // field 2, length-delimited
)

// Message is a decoded Megolm ciphertext.
type Message struct {
	Index      uint32
	Ciphertext []byte
	MAC        []byte
	Signature  []byte

	// signed is the encoded message minus the signature.
	signed []byte
}

// encodeBody writes version, index and ciphertext.
func encodeBody(index uint32, ciphertext []byte) []byte {
	out := make([]byte, 0, 1+1+binary.MaxVarintLen32+1+binary.MaxVarintLen64+len(ciphertext))
	out = append(out, messageVersion, tagIndex)
	out = binary.AppendUvarint(out, uint64(index))
	out = append(out, tagCiphertext)
	out = binary.AppendUvarint(out, uint64(len(ciphertext)))
	return append(out, ciphertext...)
}

// Bytes returns the wire encoding of m.
func (m *Message) Bytes() []byte {
	body := encodeBody(m.Index, m.Ciphertext)
	body = append(body, m.MAC...)
	return append(body, m.Signature...)
}

// String returns the unpadded base64 wire encoding.
func (m *Message) String() string { return crypto.B64(m.Bytes()) }

// DecodeMessage parses a Megolm message whose MAC is macLen bytes long.
func DecodeMessage(b []byte, macLen int) (*Message, error) {
	if len(b) < 1+macLen+signatureSize {
		return nil, fmt.Errorf("%w: message too short", ErrBadInput)
	}
	if b[0] != messageVersion {
		return nil, fmt.Errorf("%w: message version %d", ErrBadVersion, b[0])
	}
	bodyEnd := len(b) - macLen - signatureSize

	m := &Message{
		MAC:       append([]byte(nil), b[bodyEnd:bodyEnd+macLen]...),
		Signature: append([]byte(nil), b[bodyEnd+macLen:]...),
		signed:    append([]byte(nil), b[:bodyEnd+macLen]...),
	}
	var haveIndex, haveCiphertext bool

	pos := 1
	for pos < bodyEnd {
		tag := b[pos]
		pos++
		switch tag & 0x7 {
		case 0:
			v, n := binary.Uvarint(b[pos:bodyEnd])
			if n <= 0 {
				return nil, fmt.Errorf("%w: bad varint", ErrBadInput)
			}
			pos += n
			if tag == tagIndex {
				if v > uint64(^uint32(0)) {
					return nil, fmt.Errorf("%w: index overflow", ErrBadInput)
				}
				m.Index = uint32(v)
				haveIndex = true
			}
		case 2:
			l, n := binary.Uvarint(b[pos:bodyEnd])
			if n <= 0 || l > uint64(bodyEnd-pos-n) {
				return nil, fmt.Errorf("%w: bad length", ErrBadInput)
			}
			pos += n
			if tag == tagCiphertext {
				m.Ciphertext = append([]byte(nil), b[pos:pos+int(l)]...)
				haveCiphertext = true
			}
			pos += int(l)
		default:
			return nil, fmt.Errorf("%w: unexpected wire type in tag %#x", ErrBadInput, tag)
		}
	}
	if !haveIndex || !haveCiphertext {
		return nil, fmt.Errorf("%w: missing message field", ErrBadInput)
	}
	return m, nil
}

// DecodeMessageBase64 parses a base64 Megolm message.
func DecodeMessageBase64(s string, macLen int) (*Message, error) {
	raw, err := crypto.DecodeB64(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	return DecodeMessage(raw, macLen)
}

func (m *Message) verifySignature(key types.Ed25519Public) error {
	if !crypto.VerifyEd25519(key, m.signed, m.Signature) {
		return ErrInvalidSignature
	}
	return nil
}
