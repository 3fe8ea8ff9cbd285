package backupkey_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"roomkeys/internal/backups"
	"roomkeys/internal/crypto"
	"roomkeys/internal/domain/types"
	"roomkeys/internal/olm"
	"roomkeys/internal/protocol/megolm"
	"roomkeys/internal/services/backupkey"
	"roomkeys/internal/store"
)

func newService(t *testing.T) *backupkey.Service {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "roomkeys.db"), "pass",
		&store.Options{ScryptN: 1 << 10, ScryptR: 8, ScryptP: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return backupkey.New(store.NewBackupKeyStore(db), zerolog.Nop())
}

func inboundSession(t *testing.T, room types.RoomID) *olm.InboundGroupSession {
	t.Helper()
	out, err := megolm.NewGroupSession(megolm.ConfigV1())
	require.NoError(t, err)
	_, senderKey, err := crypto.GenerateX25519()
	require.NoError(t, err)
	_, signingKey, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	s, err := olm.NewInboundGroupSession(senderKey, signingKey, room, out.SessionKey(), types.MegolmV1AesSha2, nil)
	require.NoError(t, err)
	return s
}

func TestLoad_BeforeCreate(t *testing.T) {
	svc := newService(t)
	_, _, err := svc.LoadDecryptionKey(context.Background())
	require.ErrorIs(t, err, backupkey.ErrNoBackupKey)
	require.ErrorIs(t, svc.SetVersion(context.Background(), "1"), backupkey.ErrNoBackupKey)
}

func TestCreate_ThenLoad(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	pub, fp, err := svc.CreateBackupKey(ctx, "3")
	require.NoError(t, err)
	require.Equal(t, crypto.Fingerprint(pub.PublicKey().Slice()), fp)
	version, ok := pub.BackupVersion()
	require.True(t, ok)
	require.Equal(t, "3", version)

	loaded, err := svc.LoadBackupKey(ctx)
	require.NoError(t, err)
	require.Equal(t, pub.PublicKey(), loaded.PublicKey())
	require.NotNil(t, loaded.MACKey())

	got, err := svc.Fingerprint(ctx)
	require.NoError(t, err)
	require.Equal(t, fp, got)

	require.NoError(t, svc.SetVersion(ctx, "4"))
	dk, version, err := svc.LoadDecryptionKey(ctx)
	require.NoError(t, err)
	defer dk.Clear()
	require.Equal(t, "4", version)
}

func TestCreate_WithoutVersion(t *testing.T) {
	svc := newService(t)
	pub, _, err := svc.CreateBackupKey(context.Background(), "")
	require.NoError(t, err)
	_, ok := pub.BackupVersion()
	require.False(t, ok)
}

func TestVerify_CountsOutcomes(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	pub, _, err := svc.CreateBackupKey(ctx, "1")
	require.NoError(t, err)

	room := types.RoomID("!room:example.org")
	var backup backups.KeysBackup
	for i, id := range []string{"signed", "unsigned", "tampered"} {
		session := inboundSession(t, room)
		data, err := pub.Encrypt(ctx, session)
		require.NoError(t, err)
		switch i {
		case 1:
			data.SessionData.Unsigned = nil
		case 2:
			data.SessionData.MAC = "AAAAAAAAAAA"
		}
		backup.Add(room, id, *data)
	}

	report, err := svc.Verify(ctx, &backup)
	require.NoError(t, err)
	require.Equal(t, backupkey.VerifyReport{Verified: 1, Unsigned: 1, Invalid: 1}, report)
}
