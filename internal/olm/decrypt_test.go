package olm_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomkeys/internal/domain/types"
	"roomkeys/internal/olm"
	"roomkeys/internal/protocol/megolm"
)

func TestDecrypt_ReconstructsEvent(t *testing.T) {
	ctx := context.Background()
	c := newCreator(t)
	s := c.inbound(t, testRoom)

	_ = c.event(t, roomMessage(testRoom, "skipped"), "")
	ev := c.event(t, roomMessage(testRoom, "hello"), `{"rel_type":"m.thread","event_id":"$root"}`)

	raw, index, err := s.Decrypt(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), index)

	var got struct {
		Type           string          `json:"type"`
		RoomID         string          `json:"room_id"`
		Sender         string          `json:"sender"`
		EventID        string          `json:"event_id"`
		OriginServerTS int64           `json:"origin_server_ts"`
		Unsigned       json.RawMessage `json:"unsigned"`
		Content        struct {
			Body      string          `json:"body"`
			RelatesTo json.RawMessage `json:"m.relates_to"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "m.room.message", got.Type)
	assert.Equal(t, "@alice:example.org", got.Sender)
	assert.Equal(t, "$event:example.org", got.EventID)
	assert.Equal(t, int64(1700000000000), got.OriginServerTS)
	assert.JSONEq(t, `{"age":12}`, string(got.Unsigned))
	assert.Equal(t, "hello", got.Content.Body)
	assert.JSONEq(t, `{"rel_type":"m.thread","event_id":"$root"}`, string(got.Content.RelatesTo))
}

func TestDecrypt_KeepsInnerRelation(t *testing.T) {
	c := newCreator(t)
	s := c.inbound(t, testRoom)

	payload := roomMessage(testRoom, "edit")
	payload["content"].(map[string]any)["m.relates_to"] = map[string]any{"rel_type": "m.replace"}
	ev := c.event(t, payload, `{"rel_type":"m.thread"}`)

	raw, _, err := s.Decrypt(context.Background(), ev)
	require.NoError(t, err)

	var got struct {
		Content struct {
			RelatesTo map[string]string `json:"m.relates_to"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "m.replace", got.Content.RelatesTo["rel_type"])
}

func TestDecrypt_MismatchedRoom(t *testing.T) {
	c := newCreator(t)
	s := c.inbound(t, testRoom)

	ev := c.event(t, roomMessage("!other:example.org", "replayed"), "")
	_, _, err := s.Decrypt(context.Background(), ev)

	var mr *olm.MismatchedRoomError
	require.True(t, errors.As(err, &mr), "got %v", err)
	assert.Equal(t, testRoom, mr.Expected)
	assert.Equal(t, types.RoomID("!other:example.org"), mr.Found)

	ev = c.event(t, map[string]any{"type": "m.room.message", "content": map[string]any{}}, "")
	_, _, err = s.Decrypt(context.Background(), ev)
	require.True(t, errors.As(err, &mr))
	assert.Empty(t, mr.Found)

	// A malformed room id never matches, even when it equals the session's.
	malformed := types.RoomID("room:example.org")
	loose := c.inbound(t, malformed)
	_, _, err = loose.Decrypt(context.Background(), c.event(t, roomMessage(malformed, "bad room id"), ""))
	require.True(t, errors.As(err, &mr), "got %v", err)
	assert.Equal(t, malformed, mr.Found)
}

func TestDecrypt_NotAnObject(t *testing.T) {
	c := newCreator(t)
	s := c.inbound(t, testRoom)

	for _, pt := range []string{`[1,2]`, `"text"`, `null`} {
		_, _, err := s.Decrypt(context.Background(), c.rawEvent(t, []byte(pt), ""))
		require.ErrorIs(t, err, olm.ErrNotAnObject, pt)
	}
}

func TestDecrypt_UnsupportedScheme(t *testing.T) {
	s := newCreator(t).inbound(t, testRoom)
	ev := &types.EncryptedEvent{Content: types.EncryptedContent{
		Scheme: types.UnknownScheme{Alg: "m.unknown"},
	}}
	_, _, err := s.Decrypt(context.Background(), ev)
	require.ErrorIs(t, err, olm.ErrUnsupportedAlgorithm)
}

func TestDecrypt_RatchetErrors(t *testing.T) {
	ctx := context.Background()
	c := newCreator(t)
	s := c.inbound(t, testRoom)
	first := c.event(t, roomMessage(testRoom, "0"), "")

	late, err := olm.FromExport(exportAt(t, s, 1))
	require.NoError(t, err)
	_, _, err = late.Decrypt(ctx, first)

	var de *olm.DecryptionError
	require.True(t, errors.As(err, &de))
	var idx *megolm.UnknownMessageIndexError
	require.True(t, errors.As(err, &idx))

	bad := *first
	bad.Content.Scheme = types.MegolmV1Content{Ciphertext: "AAAA"}
	_, _, err = s.Decrypt(ctx, &bad)
	require.ErrorIs(t, err, megolm.ErrBadInput)
}

func TestDecrypt_SameMessageTwice(t *testing.T) {
	c := newCreator(t)
	s := c.inbound(t, testRoom)
	ev := c.event(t, roomMessage(testRoom, "later"), "")

	_, _, err := s.Decrypt(context.Background(), ev)
	require.NoError(t, err)
	_, _, err = s.Decrypt(context.Background(), ev)
	require.NoError(t, err)
}
