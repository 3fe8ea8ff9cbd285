package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"roomkeys/internal/crypto"
	"roomkeys/internal/domain"
	"roomkeys/internal/domain/types"
	"roomkeys/internal/olm"
	"roomkeys/internal/protocol/megolm"
	"roomkeys/internal/store"
)

var fastKDF = &store.Options{ScryptN: 1 << 10, ScryptR: 8, ScryptP: 1}

func openDB(t *testing.T, path, pass string) *store.DB {
	t.Helper()
	db, err := store.Open(path, pass, fastKDF)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newPickle(t *testing.T, room domain.RoomID) *olm.PickledInboundGroupSession {
	t.Helper()
	out, err := megolm.NewGroupSession(megolm.ConfigV1())
	require.NoError(t, err)
	_, senderKey, err := crypto.GenerateX25519()
	require.NoError(t, err)
	_, signingKey, err := crypto.GenerateEd25519()
	require.NoError(t, err)

	s, err := olm.NewInboundGroupSession(senderKey, signingKey, room, out.SessionKey(), types.MegolmV1AesSha2, nil)
	require.NoError(t, err)
	p, err := s.Pickle(context.Background())
	require.NoError(t, err)
	return p
}

func TestGroupSessions_SaveLoad_OK(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, filepath.Join(t.TempDir(), "roomkeys.db"), "pass")
	var sessions domain.GroupSessionStore = store.NewGroupSessionStore(db)

	p := newPickle(t, "!room:example.org")
	p.BackedUp = true
	require.NoError(t, sessions.SaveGroupSessions(ctx, p))

	got, ok, err := sessions.LoadGroupSession(ctx, "!room:example.org", p.SessionID())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, p.SessionID(), got.SessionID())
	require.True(t, got.BackedUp)
	require.Equal(t, olm.KeySourceDirect{}, got.KeySource)

	restored := olm.FromPickle(got)
	require.Equal(t, p.SessionID(), restored.SessionID())
	require.Equal(t, uint32(0), restored.FirstKnownIndex())
}

func TestGroupSessions_LoadMissing(t *testing.T) {
	db := openDB(t, filepath.Join(t.TempDir(), "roomkeys.db"), "pass")
	sessions := store.NewGroupSessionStore(db)

	got, ok, err := sessions.LoadGroupSession(context.Background(), "!room:example.org", "nope")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, got)
}

func TestGroupSessions_SameSessionIDDifferentRooms(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, filepath.Join(t.TempDir(), "roomkeys.db"), "pass")
	sessions := store.NewGroupSessionStore(db)

	a := newPickle(t, "!a:example.org")
	b := *a
	b.RoomID = "!b:example.org"
	require.NoError(t, sessions.SaveGroupSessions(ctx, a, &b))

	all, err := sessions.ListGroupSessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, domain.RoomID("!a:example.org"), all[0].RoomID)
	require.Equal(t, domain.RoomID("!b:example.org"), all[1].RoomID)
}

func TestGroupSessions_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, filepath.Join(t.TempDir(), "roomkeys.db"), "pass")
	sessions := store.NewGroupSessionStore(db)

	p := newPickle(t, "!room:example.org")
	require.NoError(t, sessions.SaveGroupSessions(ctx, p))
	p.BackedUp = true
	require.NoError(t, sessions.SaveGroupSessions(ctx, p))

	all, err := sessions.ListGroupSessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.True(t, all[0].BackedUp)
}

func TestGroupSessions_CancelledContext(t *testing.T) {
	db := openDB(t, filepath.Join(t.TempDir(), "roomkeys.db"), "pass")
	sessions := store.NewGroupSessionStore(db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sessions.SaveGroupSessions(ctx, newPickle(t, "!room:example.org"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestBackupKey_SaveLoad_OK(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, filepath.Join(t.TempDir(), "roomkeys.db"), "pass")
	var keys domain.BackupKeyStore = store.NewBackupKeyStore(db)

	_, ok, err := keys.LoadBackupKey(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	rec := domain.BackupKeyRecord{DecryptionKey: "c2VjcmV0", Version: "1"}
	require.NoError(t, keys.SaveBackupKey(ctx, rec))

	got, ok, err := keys.LoadBackupKey(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec, got)
}

func TestOpen_Reopen_PersistsRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "roomkeys.db")

	db, err := store.Open(path, "pass", fastKDF)
	require.NoError(t, err)
	p := newPickle(t, "!room:example.org")
	require.NoError(t, store.NewGroupSessionStore(db).SaveGroupSessions(ctx, p))
	require.NoError(t, db.Close())
	require.True(t, store.Exists(path))

	db = openDB(t, path, "pass")
	_, ok, err := store.NewGroupSessionStore(db).LoadGroupSession(ctx, p.RoomID, p.SessionID())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestOpen_WrongPassphrase_Fails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roomkeys.db")

	db, err := store.Open(path, "correct", fastKDF)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = store.Open(path, "wrong", fastKDF)
	require.ErrorIs(t, err, store.ErrWrongPassphrase)
}

func TestClose_Twice(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "roomkeys.db"), "pass", fastKDF)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.ErrorIs(t, db.Close(), store.ErrClosed)

	_, _, err = store.NewBackupKeyStore(db).LoadBackupKey(context.Background())
	require.ErrorIs(t, err, store.ErrClosed)
}

func TestJSONFiles_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")

	var missing []string
	ok, err := store.ReadJSON(path, &missing)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.WriteJSON(path, []string{"a", "b"}, 0o600))

	var got []string
	ok, err = store.ReadJSON(path, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, got)
}

func TestOpen_Argon2id(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "roomkeys.db")
	opts := &store.Options{KDF: store.KDFArgon2id, Argon2Time: 1, Argon2Memory: 1024}

	db, err := store.Open(path, "pass", opts)
	require.NoError(t, err)
	rec := domain.BackupKeyRecord{DecryptionKey: "a2V5", Version: "2"}
	require.NoError(t, store.NewBackupKeyStore(db).SaveBackupKey(ctx, rec))
	require.NoError(t, db.Close())

	// The stored parameters win over the options on reopen.
	db = openDB(t, path, "pass")
	got, ok, err := store.NewBackupKeyStore(db).LoadBackupKey(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec, got)
	require.NoError(t, db.Close())

	_, err = store.Open(path, "wrong", opts)
	require.ErrorIs(t, err, store.ErrWrongPassphrase)
}

func TestOpen_UnknownKDF(t *testing.T) {
	_, err := store.Open(filepath.Join(t.TempDir(), "roomkeys.db"), "pass", &store.Options{KDF: "md5"})
	require.Error(t, err)
}
