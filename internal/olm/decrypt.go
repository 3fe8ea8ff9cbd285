package olm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"roomkeys/internal/domain/types"
	"roomkeys/internal/protocol/megolm"
)

// decryptCiphertext runs the ratchet under the session lock.
func (s *InboundGroupSession) decryptCiphertext(ctx context.Context, ciphertext string) (megolm.DecryptedMessage, error) {
	if err := s.lock(ctx); err != nil {
		return megolm.DecryptedMessage{}, err
	}
	defer s.unlock()

	msg, err := megolm.DecodeMessageBase64(ciphertext, s.inner.session.Config().MACLength())
	if err != nil {
		return megolm.DecryptedMessage{}, &DecryptionError{SessionID: s.sessionID, Err: err}
	}
	out, err := s.inner.session.Decrypt(msg)
	if err != nil {
		return megolm.DecryptedMessage{}, &DecryptionError{SessionID: s.sessionID, Err: err}
	}
	return out, nil
}

// Decrypt decrypts a room event and returns the reconstructed event
// together with the message index that was used.
//
// Steps
//  1. Pick the ciphertext for the event's encryption scheme.
//  2. Decrypt it with the ratchet (may wait for the session lock).
//  3. Parse the plaintext as a JSON object.
//  4. Add sender, event_id and origin_server_ts from the outer event.
//  5. Require the payload's room_id to be well formed and match the session's room.
//  6. Add the outer unsigned block and, if the content has none, the
//     outer m.relates_to.
func (s *InboundGroupSession) Decrypt(ctx context.Context, event *types.EncryptedEvent) (json.RawMessage, uint32, error) {
	var ciphertext string
	switch c := event.Content.Scheme.(type) {
	case types.MegolmV1Content:
		ciphertext = c.Ciphertext
	case types.MegolmV2Content:
		if !types.ExperimentalAlgorithms {
			return nil, 0, ErrUnsupportedAlgorithm
		}
		ciphertext = c.Ciphertext
	default:
		return nil, 0, ErrUnsupportedAlgorithm
	}

	decrypted, err := s.decryptCiphertext(ctx, ciphertext)
	if err != nil {
		return nil, 0, err
	}

	plaintext := decrypted.Plaintext
	if !utf8.Valid(plaintext) {
		plaintext = bytes.ToValidUTF8(plaintext, []byte("�"))
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(plaintext, &obj); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, 0, ErrNotAnObject
		}
		return nil, 0, fmt.Errorf("olm: decrypted payload: %w", err)
	}
	if obj == nil {
		return nil, 0, ErrNotAnObject
	}

	if obj["sender"], err = json.Marshal(event.Sender); err != nil {
		return nil, 0, err
	}
	if obj["event_id"], err = json.Marshal(event.EventID); err != nil {
		return nil, 0, err
	}
	if obj["origin_server_ts"], err = json.Marshal(event.OriginServerTS); err != nil {
		return nil, 0, err
	}

	var roomID types.RoomID
	if raw, ok := obj["room_id"]; ok {
		var r string
		if json.Unmarshal(raw, &r) == nil {
			roomID = types.RoomID(r)
		}
	}
	if !roomID.Valid() || roomID != s.roomID {
		return nil, 0, &MismatchedRoomError{Expected: s.roomID, Found: roomID}
	}

	if len(event.Unsigned) > 0 {
		obj["unsigned"] = event.Unsigned
	} else {
		obj["unsigned"] = json.RawMessage("{}")
	}

	if len(event.Content.RelatesTo) > 0 {
		if content, err := withRelation(obj["content"], event.Content.RelatesTo); err != nil {
			return nil, 0, err
		} else if content != nil {
			obj["content"] = content
		}
	}

	out, err := json.Marshal(obj)
	if err != nil {
		return nil, 0, err
	}
	zerolog.Ctx(ctx).Debug().
		Str("session_id", s.sessionID).
		Str("room_id", s.roomID.String()).
		Uint32("message_index", decrypted.MessageIndex).
		Msg("decrypted room event")
	return out, decrypted.MessageIndex, nil
}

// withRelation returns content with relation added under m.relates_to, or
// nil when content is not an object or already has a relation.
func withRelation(content, relation json.RawMessage) (json.RawMessage, error) {
	if len(content) == 0 {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if json.Unmarshal(content, &fields) != nil || fields == nil {
		return nil, nil
	}
	if _, ok := fields["m.relates_to"]; ok {
		return nil, nil
	}
	fields["m.relates_to"] = relation
	return json.Marshal(fields)
}
