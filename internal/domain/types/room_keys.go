package types

import (
	"encoding/json"
	"fmt"
)

// RoomKeyContent is the decrypted content of an m.room_key to-device event,
// received straight from the session creator.
type RoomKeyContent struct {
	Algorithm  EventEncryptionAlgorithm `json:"algorithm"`
	RoomID     RoomID                   `json:"room_id"`
	SessionID  string                   `json:"session_id"`
	SessionKey string                   `json:"session_key"`
}

// ForwardedRoomKeyContent is one of ForwardedMegolmV1Content,
// ForwardedMegolmV2Content or UnknownForwardedContent.
type ForwardedRoomKeyContent interface {
	Algorithm() EventEncryptionAlgorithm
	isForwardedRoomKeyContent()
}

// ForwardedMegolmV1Content is an m.forwarded_room_key for m.megolm.v1.aes-sha2.
type ForwardedMegolmV1Content struct {
	RoomID            RoomID        `json:"room_id"`
	SessionID         string        `json:"session_id"`
	SessionKey        string        `json:"session_key"`
	ClaimedSenderKey  X25519Public  `json:"sender_key"`
	ClaimedEd25519Key Ed25519Public `json:"sender_claimed_ed25519_key"`
	ForwardingChain   []string      `json:"forwarding_curve25519_key_chain"`
}

func (ForwardedMegolmV1Content) Algorithm() EventEncryptionAlgorithm { return MegolmV1AesSha2 }
func (ForwardedMegolmV1Content) isForwardedRoomKeyContent()          {}

// ForwardedMegolmV2Content is an m.forwarded_room_key for m.megolm.v2.aes-sha2.
type ForwardedMegolmV2Content struct {
	RoomID             RoomID       `json:"room_id"`
	SessionID          string       `json:"session_id"`
	SessionKey         string       `json:"session_key"`
	ClaimedSenderKey   X25519Public `json:"sender_key"`
	ClaimedSigningKeys SigningKeys  `json:"sender_claimed_keys"`
}

func (ForwardedMegolmV2Content) Algorithm() EventEncryptionAlgorithm { return MegolmV2AesSha2 }
func (ForwardedMegolmV2Content) isForwardedRoomKeyContent()          {}

// UnknownForwardedContent keeps a forwarded key of an unsupported algorithm.
type UnknownForwardedContent struct {
	Alg EventEncryptionAlgorithm
	Raw json.RawMessage
}

func (u UnknownForwardedContent) Algorithm() EventEncryptionAlgorithm { return u.Alg }
func (UnknownForwardedContent) isForwardedRoomKeyContent()            {}

// ParseForwardedRoomKeyContent selects the content variant by its algorithm.
func ParseForwardedRoomKeyContent(data []byte) (ForwardedRoomKeyContent, error) {
	var h struct {
		Algorithm EventEncryptionAlgorithm `json:"algorithm"`
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	switch {
	case h.Algorithm == MegolmV1AesSha2:
		var c ForwardedMegolmV1Content
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("forwarded megolm v1 content: %w", err)
		}
		return c, nil
	case h.Algorithm == MegolmV2AesSha2 && ExperimentalAlgorithms:
		var c ForwardedMegolmV2Content
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("forwarded megolm v2 content: %w", err)
		}
		return c, nil
	default:
		return UnknownForwardedContent{Alg: h.Algorithm, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

// ForwardedRoomKeyEvent is a decrypted m.forwarded_room_key to-device event.
type ForwardedRoomKeyEvent struct {
	Sender  UserID
	Content ForwardedRoomKeyContent
}

// UnmarshalJSON parses the envelope and dispatches the content.
func (e *ForwardedRoomKeyEvent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Sender  UserID          `json:"sender"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	content, err := ParseForwardedRoomKeyContent(raw.Content)
	if err != nil {
		return err
	}
	e.Sender = raw.Sender
	e.Content = content
	return nil
}
