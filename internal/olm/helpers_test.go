package olm_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"roomkeys/internal/crypto"
	"roomkeys/internal/domain/types"
	"roomkeys/internal/olm"
	"roomkeys/internal/protocol/megolm"
)

const testRoom = types.RoomID("!room:example.org")

type creator struct {
	out        *megolm.GroupSession
	senderKey  types.X25519Public
	signingKey types.Ed25519Public
}

func newCreator(t *testing.T) *creator {
	t.Helper()
	out, err := megolm.NewGroupSession(megolm.ConfigV1())
	require.NoError(t, err)
	_, senderKey, err := crypto.GenerateX25519()
	require.NoError(t, err)
	_, signingKey, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	return &creator{out: out, senderKey: senderKey, signingKey: signingKey}
}

func (c *creator) inbound(t *testing.T, room types.RoomID) *olm.InboundGroupSession {
	t.Helper()
	key, err := megolm.SessionKeyFromBase64(c.out.SessionKey().Base64())
	require.NoError(t, err)
	vis := types.HistoryVisibilityShared
	s, err := olm.NewInboundGroupSession(c.senderKey, c.signingKey, room, key, types.MegolmV1AesSha2, &vis)
	require.NoError(t, err)
	return s
}

func (c *creator) event(t *testing.T, payload any, relatesTo string) *types.EncryptedEvent {
	t.Helper()
	pt, err := json.Marshal(payload)
	require.NoError(t, err)
	return c.rawEvent(t, pt, relatesTo)
}

func (c *creator) rawEvent(t *testing.T, plaintext []byte, relatesTo string) *types.EncryptedEvent {
	t.Helper()
	m, err := c.out.Encrypt(plaintext)
	require.NoError(t, err)
	ev := &types.EncryptedEvent{
		Sender:         "@alice:example.org",
		EventID:        "$event:example.org",
		OriginServerTS: 1700000000000,
		Unsigned:       json.RawMessage(`{"age":12}`),
		Content: types.EncryptedContent{
			Scheme: types.MegolmV1Content{
				Ciphertext: m.String(),
				SenderKey:  c.senderKey.String(),
				DeviceID:   "ALICEDEVICE",
				SessionID:  c.out.SessionID(),
			},
		},
	}
	if relatesTo != "" {
		ev.Content.RelatesTo = json.RawMessage(relatesTo)
	}
	return ev
}

func roomMessage(room types.RoomID, body string) map[string]any {
	return map[string]any{
		"type":    "m.room.message",
		"room_id": room,
		"content": map[string]any{"msgtype": "m.text", "body": body},
	}
}

func exportAt(t *testing.T, s *olm.InboundGroupSession, index uint32) *olm.ExportedRoomKey {
	t.Helper()
	k, err := s.ExportAtIndex(context.Background(), index)
	require.NoError(t, err)
	return k
}
