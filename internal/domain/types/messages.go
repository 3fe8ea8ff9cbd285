package types

import (
	"encoding/json"
	"fmt"
)

// EncryptedEvent is an m.room.encrypted timeline event as received from the
// server. Sender, EventID, OriginServerTS and Unsigned are supplied by the
// server and are not covered by the ciphertext's authentication.
type EncryptedEvent struct {
	Sender         UserID           `json:"sender"`
	EventID        EventID          `json:"event_id"`
	OriginServerTS int64            `json:"origin_server_ts"`
	RoomID         RoomID           `json:"room_id,omitempty"`
	Unsigned       json.RawMessage  `json:"unsigned,omitempty"`
	Content        EncryptedContent `json:"content"`
}

// EncryptedContent is the content of an m.room.encrypted event.
type EncryptedContent struct {
	Scheme EncryptionScheme
	// RelatesTo is the cleartext m.relates_to block, if the sender put one
	// outside of the ciphertext.
	RelatesTo json.RawMessage
}

// EncryptionScheme is one of MegolmV1Content, MegolmV2Content or UnknownScheme.
type EncryptionScheme interface {
	Algorithm() EventEncryptionAlgorithm
	isEncryptionScheme()
}

// MegolmV1Content carries an m.megolm.v1.aes-sha2 ciphertext.
type MegolmV1Content struct {
	Ciphertext string `json:"ciphertext"`
	SenderKey  string `json:"sender_key,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
	SessionID  string `json:"session_id"`
}

func (MegolmV1Content) Algorithm() EventEncryptionAlgorithm { return MegolmV1AesSha2 }
func (MegolmV1Content) isEncryptionScheme()                 {}

// MegolmV2Content carries an m.megolm.v2.aes-sha2 ciphertext.
type MegolmV2Content struct {
	Ciphertext string `json:"ciphertext"`
	SessionID  string `json:"session_id"`
}

func (MegolmV2Content) Algorithm() EventEncryptionAlgorithm { return MegolmV2AesSha2 }
func (MegolmV2Content) isEncryptionScheme()                 {}

// UnknownScheme keeps content whose algorithm this build does not support.
type UnknownScheme struct {
	Alg EventEncryptionAlgorithm
	Raw json.RawMessage
}

func (u UnknownScheme) Algorithm() EventEncryptionAlgorithm { return u.Alg }
func (UnknownScheme) isEncryptionScheme()                   {}

// SessionID returns the megolm session id the content refers to, if any.
func (c EncryptedContent) SessionID() string {
	switch s := c.Scheme.(type) {
	case MegolmV1Content:
		return s.SessionID
	case MegolmV2Content:
		return s.SessionID
	}
	return ""
}

type contentHeader struct {
	Algorithm EventEncryptionAlgorithm `json:"algorithm"`
	RelatesTo json.RawMessage          `json:"m.relates_to,omitempty"`
}

// UnmarshalJSON dispatches on the declared algorithm.
func (c *EncryptedContent) UnmarshalJSON(data []byte) error {
	var h contentHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return err
	}
	c.RelatesTo = h.RelatesTo

	switch {
	case h.Algorithm == MegolmV1AesSha2:
		var v MegolmV1Content
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("megolm v1 content: %w", err)
		}
		c.Scheme = v
	case h.Algorithm == MegolmV2AesSha2 && ExperimentalAlgorithms:
		var v MegolmV2Content
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("megolm v2 content: %w", err)
		}
		c.Scheme = v
	default:
		c.Scheme = UnknownScheme{Alg: h.Algorithm, Raw: append(json.RawMessage(nil), data...)}
	}
	return nil
}

// MarshalJSON flattens the scheme fields next to algorithm and m.relates_to.
func (c EncryptedContent) MarshalJSON() ([]byte, error) {
	if u, ok := c.Scheme.(UnknownScheme); ok && len(u.Raw) > 0 {
		return u.Raw, nil
	}
	out := map[string]any{}
	if c.Scheme != nil {
		b, err := json.Marshal(c.Scheme)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, err
		}
		out["algorithm"] = c.Scheme.Algorithm()
	}
	if len(c.RelatesTo) > 0 {
		out["m.relates_to"] = c.RelatesTo
	}
	return json.Marshal(out)
}
