package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"menagerie/server/internal/grid"
	"menagerie/server/internal/world"
)

func sampleSnapshot(t *testing.T) *world.Snapshot {
	t.Helper()
	w, err := world.New(world.Config{Width: 6, Height: 6, EntranceX: 0, EntranceY: 0}, world.Deps{})
	require.NoError(t, err)
	t.Cleanup(w.Close)
	for x := 0; x < 6; x++ {
		require.NoError(t, w.PlaceWall(grid.Edge{X: x, Y: 2, Orientation: grid.Horizontal}, x == 3))
	}
	w.SetElevationInRadius(grid.Vec2{X: 4, Y: 5}, 1, 1)
	require.NoError(t, w.PlaceObject(grid.T(0, 5), world.Object{Name: "bench", CanSlope: true}))
	require.NoError(t, w.PlaceFootpath(grid.T(1, 1)))
	return w.Snapshot()
}

func roundTrip(t *testing.T, store Storage) {
	t.Helper()
	ctx := context.Background()
	snapshot := sampleSnapshot(t)

	_, err := store.LoadWorld(ctx, "savanna")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SaveWorld(ctx, "savanna", snapshot))
	loaded, err := store.LoadWorld(ctx, "savanna")
	require.NoError(t, err)
	require.Equal(t, snapshot.Levels, loaded.Levels)
	require.Equal(t, snapshot.Walls, loaded.Walls)
	require.Equal(t, snapshot.Objects, loaded.Objects)
	require.Equal(t, snapshot.Footpaths, loaded.Footpaths)
	require.Equal(t, snapshot.Membership, loaded.Membership)

	snapshot.Levels[0] = -1
	require.NoError(t, store.SaveWorld(ctx, "savanna", snapshot))
	loaded, err = store.LoadWorld(ctx, "savanna")
	require.NoError(t, err)
	require.Equal(t, -1, loaded.Levels[0])

	require.ErrorIs(t, store.SaveWorld(ctx, "../escape", snapshot), ErrInvalidName)
}

func TestFileStoreJSON(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), FormatJSON)
	require.NoError(t, err)
	roundTrip(t, store)
}

func TestFileStoreMsgpack(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), FormatMsgpack)
	require.NoError(t, err)
	roundTrip(t, store)
}

func TestGormStoreSqlite(t *testing.T) {
	store, err := NewGormStore("sqlite://"+filepath.Join(t.TempDir(), "zoo.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	roundTrip(t, store)
}

func TestOpenDispatchesByScheme(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"file://" + dir:                        "file",
		"msgpack://" + dir:                     "msgpack",
		"sqlite://" + filepath.Join(dir, "db"): "sqlite",
		"mysql://user@tcp(localhost)/zoo":      "mysql",
		"postgres://localhost/zoo":             "postgres",
		"redis://localhost":                    "",
	}
	for url, want := range cases {
		require.Equal(t, want, Driver(url), url)
	}

	store, err := Open("msgpack://"+dir, nil)
	require.NoError(t, err)
	require.IsType(t, &FileStore{}, store)

	_, err = Open("redis://localhost", nil)
	require.ErrorIs(t, err, ErrUnsupported)
}
