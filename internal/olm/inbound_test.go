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

func TestNewInboundGroupSession_Direct(t *testing.T) {
	c := newCreator(t)
	s := c.inbound(t, testRoom)

	assert.Equal(t, c.out.SessionID(), s.SessionID())
	assert.Equal(t, uint32(0), s.FirstKnownIndex())
	assert.Equal(t, testRoom, s.RoomID())
	assert.Equal(t, c.senderKey, s.SenderKey())
	assert.Equal(t, c.signingKey.String(), s.SigningKeys()[types.DeviceKeyEd25519])
	assert.Equal(t, olm.KeySourceDirect{}, s.KeySource())
	assert.False(t, s.HasBeenImported())
	assert.False(t, s.BackedUp())
	require.NotNil(t, s.HistoryVisibility())
	assert.Equal(t, types.HistoryVisibilityShared, *s.HistoryVisibility())
	assert.Contains(t, s.String(), s.SessionID())
}

func TestNewInboundGroupSession_UnknownAlgorithm(t *testing.T) {
	c := newCreator(t)
	key, err := megolm.SessionKeyFromBase64(c.out.SessionKey().Base64())
	require.NoError(t, err)

	_, err = olm.NewInboundGroupSession(c.senderKey, c.signingKey, testRoom, key, types.OlmV1Curve25519AesSha2, nil)
	var scErr *olm.SessionCreationError
	require.True(t, errors.As(err, &scErr))
	assert.Equal(t, types.OlmV1Curve25519AesSha2, scErr.Algorithm)
}

func TestExportAtIndex_ClampsToFirstKnownIndex(t *testing.T) {
	c := newCreator(t)
	s := c.inbound(t, testRoom)

	late, err := olm.FromExport(exportAt(t, s, 5))
	require.NoError(t, err)
	require.Equal(t, uint32(5), late.FirstKnownIndex())

	below := exportAt(t, late, 2)
	floor := exportAt(t, late, 5)
	assert.Equal(t, floor.SessionKey.Base64(), below.SessionKey.Base64())
	assert.Equal(t, uint32(5), below.SessionKey.Index())
	assert.Empty(t, below.ForwardingChain)
	assert.NotNil(t, below.ForwardingChain)
}

func TestFromExport_OldStyleImport(t *testing.T) {
	c := newCreator(t)
	s := c.inbound(t, testRoom)

	imported, err := olm.FromExport(exportAt(t, s, 0))
	require.NoError(t, err)
	assert.Equal(t, olm.KeySourceOldStyleImport{}, imported.KeySource())
	assert.True(t, imported.HasBeenImported())
	assert.Nil(t, imported.HistoryVisibility())
	assert.Equal(t, s.SessionID(), imported.SessionID())
}

func TestFromExport_RejectsMismatchedSessionID(t *testing.T) {
	c := newCreator(t)
	k := exportAt(t, c.inbound(t, testRoom), 0)
	k.SessionID = "somethingelse"

	_, err := olm.FromExport(k)
	require.ErrorIs(t, err, olm.ErrSessionIDMismatch)
}

func TestExportedRoomKey_JSONRoundTrip(t *testing.T) {
	c := newCreator(t)
	k := exportAt(t, c.inbound(t, testRoom), 3)

	b, err := json.Marshal(k)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"forwarding_curve25519_key_chain":[]`)

	var got olm.ExportedRoomKey
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, k.SessionID, got.SessionID)
	assert.Equal(t, k.SessionKey.Base64(), got.SessionKey.Base64())
	assert.Equal(t, k.SenderClaimedKeys, got.SenderClaimedKeys)
}

func TestFromBackup_KeepsUnauthenticatedHint(t *testing.T) {
	c := newCreator(t)
	s := c.inbound(t, testRoom)
	backup, err := s.ToBackup(context.Background())
	require.NoError(t, err)
	require.Nil(t, backup.Unauthenticated)

	fwd := olm.UnauthenticatedForwarded
	backup.Unauthenticated = &fwd
	restored, err := olm.FromBackup(testRoom, backup)
	require.NoError(t, err)

	assert.Equal(t, olm.KeySourceBackup{Unauthenticated: &fwd}, restored.KeySource())
	assert.Equal(t, s.SessionID(), restored.SessionID())
	assert.Equal(t, testRoom, restored.RoomID())
	assert.True(t, restored.HasBeenImported())
}

func TestToBackup_ProvenanceMapping(t *testing.T) {
	ctx := context.Background()
	c := newCreator(t)
	direct := c.inbound(t, testRoom)
	exported := exportAt(t, direct, 0)

	imported, err := olm.FromExport(exported)
	require.NoError(t, err)

	fwd, err := olm.FromForwardedRoomKey(types.ForwardedMegolmV1Content{
		RoomID:            testRoom,
		SessionID:         direct.SessionID(),
		SessionKey:        exported.SessionKey.Base64(),
		ClaimedSenderKey:  c.senderKey,
		ClaimedEd25519Key: c.signingKey,
	})
	require.NoError(t, err)

	undefined := olm.UnauthenticatedUndefined
	viaBackup, err := olm.FromBackup(testRoom, &olm.BackedUpRoomKey{
		Algorithm:         types.MegolmV1AesSha2,
		SenderKey:         c.senderKey,
		SessionKey:        exported.SessionKey,
		SenderClaimedKeys: direct.SigningKeys(),
		Unauthenticated:   &undefined,
	})
	require.NoError(t, err)

	cases := []struct {
		name    string
		session *olm.InboundGroupSession
		want    *olm.UnauthenticatedSource
	}{
		{"direct", direct, nil},
		{"old style import", imported, &undefined},
		{"forward", fwd, ptr(olm.UnauthenticatedForwarded)},
		{"backup", viaBackup, &undefined},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := tc.session.ToBackup(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, b.Unauthenticated)
			assert.Equal(t, direct.SessionID(), b.SessionKey.SessionID())
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestFromForwardedRoomKey(t *testing.T) {
	c := newCreator(t)
	exported := exportAt(t, c.inbound(t, testRoom), 4)

	s, err := olm.FromForwardedRoomKey(types.ForwardedMegolmV1Content{
		RoomID:            testRoom,
		SessionID:         exported.SessionID,
		SessionKey:        exported.SessionKey.Base64(),
		ClaimedSenderKey:  c.senderKey,
		ClaimedEd25519Key: c.signingKey,
	})
	require.NoError(t, err)
	assert.Equal(t, olm.KeySourceForward{}, s.KeySource())
	assert.Equal(t, uint32(4), s.FirstKnownIndex())
	assert.Equal(t, types.MegolmV1AesSha2, s.Algorithm())
	assert.True(t, s.HasBeenImported())

	_, err = olm.FromForwardedRoomKey(types.UnknownForwardedContent{Alg: "m.unknown"})
	var scErr *olm.SessionCreationError
	require.True(t, errors.As(err, &scErr))
	assert.Equal(t, types.EventEncryptionAlgorithm("m.unknown"), scErr.Algorithm)

	_, err = olm.FromForwardedRoomKey(types.ForwardedMegolmV1Content{RoomID: testRoom, SessionKey: "not base64!"})
	require.True(t, errors.As(err, &scErr))
}

func TestClone_SharesBackupFlag(t *testing.T) {
	c := newCreator(t)
	s := c.inbound(t, testRoom)
	clone := s.Clone()

	clone.MarkAsBackedUp()
	assert.True(t, s.BackedUp())
	s.ResetBackupState()
	assert.False(t, clone.BackedUp())
	assert.True(t, s.Equal(clone))
}

func TestCompare_Reflexive(t *testing.T) {
	ctx := context.Background()
	s := newCreator(t).inbound(t, testRoom)

	ord, err := s.Compare(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, megolm.Equal, ord)

	ord, err = s.Compare(ctx, s.Clone())
	require.NoError(t, err)
	assert.Equal(t, megolm.Equal, ord)
}

func TestCompare_LaterExportIsWorse(t *testing.T) {
	ctx := context.Background()
	s := newCreator(t).inbound(t, testRoom)

	later, err := olm.FromExport(exportAt(t, s, 10))
	require.NoError(t, err)

	ord, err := s.Compare(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, megolm.Better, ord)

	ord, err = later.Compare(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, megolm.Worse, ord)

	same, err := olm.FromExport(exportAt(t, s, 0))
	require.NoError(t, err)
	ord, err = s.Compare(ctx, same)
	require.NoError(t, err)
	assert.Equal(t, megolm.Equal, ord)
}

func TestCompare_UnconnectedOnMetadataMismatch(t *testing.T) {
	ctx := context.Background()
	c := newCreator(t)
	s := c.inbound(t, testRoom)
	base := exportAt(t, s, 0)

	otherRoom := *base
	otherRoom.RoomID = "!elsewhere:example.org"

	otherSender := *base
	otherSender.SenderKey = types.X25519Public{9}

	otherSigning := *base
	otherSigning.SenderClaimedKeys = types.NewEd25519SigningKeys(types.Ed25519Public{9})

	for name, k := range map[string]*olm.ExportedRoomKey{
		"room":         &otherRoom,
		"sender key":   &otherSender,
		"signing keys": &otherSigning,
	} {
		t.Run(name, func(t *testing.T) {
			other, err := olm.FromExport(k)
			require.NoError(t, err)
			ord, err := s.Compare(ctx, other)
			require.NoError(t, err)
			assert.Equal(t, megolm.Unconnected, ord)
		})
	}

	unrelated := newCreator(t).inbound(t, testRoom)
	ord, err := s.Compare(ctx, unrelated)
	require.NoError(t, err)
	assert.Equal(t, megolm.Unconnected, ord)
}

func TestBackedUpRoomKey_AppendJSON(t *testing.T) {
	ctx := context.Background()
	s := newCreator(t).inbound(t, testRoom)
	b, err := s.ToBackup(ctx)
	require.NoError(t, err)
	defer b.Wipe()

	dst := make([]byte, 0, 4)
	raw, err := b.AppendJSON(dst)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Contains(t, fields, "session_key")
	assert.Contains(t, fields, "sender_claimed_keys")
	assert.NotContains(t, fields, "unauthenticated")

	var got olm.BackedUpRoomKey
	require.NoError(t, json.Unmarshal(raw, &got))
	defer got.Wipe()
	assert.Equal(t, b.SessionKey.Base64(), got.SessionKey.Base64())
	assert.Equal(t, b.SenderKey, got.SenderKey)
	assert.Equal(t, b.Algorithm, got.Algorithm)

	restored, err := olm.FromBackup(testRoom, &got)
	require.NoError(t, err)
	assert.Equal(t, s.SessionID(), restored.SessionID())
}
