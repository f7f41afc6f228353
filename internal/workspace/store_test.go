package workspace

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/agentbench/agentbench/internal/common/errors"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "workspaces.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestStoreCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ws := &Workspace{Name: "demo", Path: t.TempDir()}
	require.NoError(t, store.Create(ctx, ws))
	require.NotEmpty(t, ws.ID)

	got, err := store.Get(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, ws.Name, got.Name)
	assert.Equal(t, ws.Path, got.Path)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStoreCreateRequiresPath(t *testing.T) {
	store := newTestStore(t)

	err := store.Create(context.Background(), &Workspace{Name: "no-path"})
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestStoreList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := &Workspace{
		Name:         "older",
		Path:         filepath.Join(t.TempDir(), "a"),
		LastActiveAt: time.Now().UTC().Add(-time.Hour),
	}
	newer := &Workspace{Name: "newer", Path: filepath.Join(t.TempDir(), "b")}
	require.NoError(t, store.Create(ctx, older))
	require.NoError(t, store.Create(ctx, newer))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].Name)
	assert.Equal(t, "older", list[1].Name)
}

func TestStoreTouch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ws := &Workspace{
		Name:         "stale",
		Path:         t.TempDir(),
		LastActiveAt: time.Now().UTC().Add(-24 * time.Hour),
	}
	require.NoError(t, store.Create(ctx, ws))
	require.NoError(t, store.Touch(ctx, ws.ID))

	got, err := store.Get(ctx, ws.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), got.LastActiveAt, time.Minute)

	err = store.Touch(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStoreSweepInactive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stale := &Workspace{
		Name:         "stale",
		Path:         filepath.Join(t.TempDir(), "stale"),
		LastActiveAt: time.Now().UTC().Add(-48 * time.Hour),
	}
	fresh := &Workspace{Name: "fresh", Path: filepath.Join(t.TempDir(), "fresh")}
	require.NoError(t, store.Create(ctx, stale))
	require.NoError(t, store.Create(ctx, fresh))

	removed, err := store.SweepInactive(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, stale.ID, removed[0])

	_, err = store.Get(ctx, stale.ID)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}
