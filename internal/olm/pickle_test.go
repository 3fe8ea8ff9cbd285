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

func pickleJSON(t *testing.T, s *olm.InboundGroupSession) map[string]json.RawMessage {
	t.Helper()
	p, err := s.Pickle(context.Background())
	require.NoError(t, err)
	b, err := json.Marshal(p)
	require.NoError(t, err)
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func restore(t *testing.T, m map[string]json.RawMessage) (*olm.InboundGroupSession, error) {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	var p olm.PickledInboundGroupSession
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return olm.FromPickle(&p), nil
}

func TestPickle_RoundTrip(t *testing.T) {
	c := newCreator(t)
	direct := c.inbound(t, testRoom)
	direct.MarkAsBackedUp()
	late, err := olm.FromExport(exportAt(t, direct, 7))
	require.NoError(t, err)

	for _, s := range []*olm.InboundGroupSession{direct, late} {
		restored, err := restore(t, pickleJSON(t, s))
		require.NoError(t, err)

		assert.Equal(t, s.SessionID(), restored.SessionID())
		assert.Equal(t, s.FirstKnownIndex(), restored.FirstKnownIndex())
		assert.Equal(t, s.KeySource(), restored.KeySource())
		assert.Equal(t, s.BackedUp(), restored.BackedUp())
		assert.Equal(t, s.RoomID(), restored.RoomID())
		assert.Equal(t, s.SigningKeys(), restored.SigningKeys())
		assert.Equal(t, s.HistoryVisibility(), restored.HistoryVisibility())
		assert.Equal(t, s.Algorithm(), restored.Algorithm())
	}
}

func TestPickle_RestoredSessionDecrypts(t *testing.T) {
	c := newCreator(t)
	s := c.inbound(t, testRoom)
	ev := c.event(t, roomMessage(testRoom, "after restore"), "")

	restored, err := restore(t, pickleJSON(t, s))
	require.NoError(t, err)
	_, index, err := restored.Decrypt(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), index)
}

func TestPickle_IdentityComesFromRatchet(t *testing.T) {
	c := newCreator(t)
	s := c.inbound(t, testRoom)
	late, err := olm.FromExport(exportAt(t, s, 3))
	require.NoError(t, err)

	m := pickleJSON(t, s)
	m["session_id"] = json.RawMessage(`"forged"`)
	m["first_known_index"] = json.RawMessage(`99`)
	m["pickle"] = pickleJSON(t, late)["pickle"]

	restored, err := restore(t, m)
	require.NoError(t, err)
	assert.Equal(t, s.SessionID(), restored.SessionID())
	assert.Equal(t, uint32(3), restored.FirstKnownIndex())
}

func TestPickle_MigratesImportedFlag(t *testing.T) {
	s := newCreator(t).inbound(t, testRoom)

	m := pickleJSON(t, s)
	delete(m, "key_source")
	m["imported"] = json.RawMessage(`true`)
	restored, err := restore(t, m)
	require.NoError(t, err)
	assert.Equal(t, olm.KeySourceOldStyleImport{}, restored.KeySource())
	assert.True(t, restored.HasBeenImported())

	m["imported"] = json.RawMessage(`false`)
	restored, err = restore(t, m)
	require.NoError(t, err)
	assert.Equal(t, olm.KeySourceDirect{}, restored.KeySource())
	assert.False(t, restored.HasBeenImported())
}

func TestPickle_RejectsAmbiguousProvenance(t *testing.T) {
	s := newCreator(t).inbound(t, testRoom)

	both := pickleJSON(t, s)
	both["imported"] = json.RawMessage(`false`)
	_, err := restore(t, both)
	var me *olm.MigrationError
	require.True(t, errors.As(err, &me), "got %v", err)

	neither := pickleJSON(t, s)
	delete(neither, "key_source")
	_, err = restore(t, neither)
	require.True(t, errors.As(err, &me), "got %v", err)
}

func TestPickle_RejectsMissingFields(t *testing.T) {
	s := newCreator(t).inbound(t, testRoom)

	for _, field := range []string{"pickle", "sender_key", "signing_key", "room_id"} {
		t.Run(field, func(t *testing.T) {
			m := pickleJSON(t, s)
			delete(m, field)
			restored, err := restore(t, m)
			var me *olm.MigrationError
			require.True(t, errors.As(err, &me), "got %v", err)
			require.Nil(t, restored)
		})
	}

	for _, field := range []string{"initial_ratchet", "signing_key"} {
		t.Run("pickle."+field, func(t *testing.T) {
			m := pickleJSON(t, s)
			var inner map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(m["pickle"], &inner))
			delete(inner, field)
			b, err := json.Marshal(inner)
			require.NoError(t, err)
			m["pickle"] = b

			restored, err := restore(t, m)
			require.ErrorIs(t, err, megolm.ErrBadInput)
			require.Nil(t, restored)
		})
	}
}

func TestPickle_RejectsMalformedRoomID(t *testing.T) {
	s := newCreator(t).inbound(t, testRoom)

	for _, room := range []string{`""`, `"room:example.org"`, `"!room"`, `"!room:"`} {
		m := pickleJSON(t, s)
		m["room_id"] = json.RawMessage(room)
		_, err := restore(t, m)
		var me *olm.MigrationError
		require.True(t, errors.As(err, &me), "room %s: got %v", room, err)
	}
}

func TestPickle_Defaults(t *testing.T) {
	s := newCreator(t).inbound(t, testRoom)
	s.MarkAsBackedUp()

	m := pickleJSON(t, s)
	delete(m, "backed_up")
	delete(m, "algorithm")
	restored, err := restore(t, m)
	require.NoError(t, err)
	assert.False(t, restored.BackedUp())
	assert.Equal(t, types.MegolmV1AesSha2, restored.Algorithm())
}

func TestKeySource_JSON(t *testing.T) {
	fwd := olm.UnauthenticatedForwarded
	cases := map[string]olm.KeySource{
		`"Direct"`:                                   olm.KeySourceDirect{},
		`"Forward"`:                                  olm.KeySourceForward{},
		`"OldStyleImport"`:                           olm.KeySourceOldStyleImport{},
		`{"Backup":{"unauthenticated":null}}`:        olm.KeySourceBackup{},
		`{"Backup":{"unauthenticated":"Forwarded"}}`: olm.KeySourceBackup{Unauthenticated: &fwd},
	}
	for want, ks := range cases {
		b, err := olm.MarshalKeySource(ks)
		require.NoError(t, err)
		assert.JSONEq(t, want, string(b))

		got, err := olm.UnmarshalKeySource(b)
		require.NoError(t, err)
		assert.Equal(t, ks, got)
	}

	_, err := olm.UnmarshalKeySource([]byte(`"Carrier pigeon"`))
	require.Error(t, err)
	_, err = olm.UnmarshalKeySource([]byte(`{"Backup":{"unauthenticated":"Maybe"}}`))
	require.Error(t, err)
}
