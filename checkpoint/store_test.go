package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-social-bot/logger"
	"github.com/saiset-co/sai-social-bot/types"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	dir := t.TempDir()
	log := logger.NewZapWrapper(zap.NewNop())

	store, err := NewStore(log, &types.CheckpointConfig{Dir: dir})
	require.NoError(t, err)

	return store, dir
}

func TestColdStartReturnsEmptyState(t *testing.T) {
	store, _ := newTestStore(t)

	checkpoints, err := store.LoadCheckpoints()
	require.NoError(t, err)
	require.Empty(t, checkpoints)

	cursor, err := store.LoadCursor()
	require.NoError(t, err)
	require.Zero(t, cursor)
}

func TestCheckpointsRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	want := map[string]string{
		"multiversx":   "1010",
		"xexchangeapp": "2020",
	}
	require.NoError(t, store.SaveCheckpoints(want))

	got, err := store.LoadCheckpoints()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestCursorRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.SaveCursor(2))

	cursor, err := store.LoadCursor()
	require.NoError(t, err)
	require.Equal(t, 2, cursor)
}

func TestNegativeCursorNormalizedToZero(t *testing.T) {
	store, dir := newTestStore(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, cursorFile), []byte(`{"index":-3}`), 0644))

	cursor, err := store.LoadCursor()
	require.NoError(t, err)
	require.Zero(t, cursor)
}

func TestCorruptCheckpointsFileReported(t *testing.T) {
	store, dir := newTestStore(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, checkpointsFile), []byte("{oops"), 0644))

	_, err := store.LoadCheckpoints()
	require.ErrorIs(t, err, types.ErrCheckpointLoadFailed)
}

func TestSaveOverwritesWholeFile(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.SaveCheckpoints(map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, store.SaveCheckpoints(map[string]string{"a": "3"}))

	got, err := store.LoadCheckpoints()
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "3"}, got)
}

func TestStatePersistsAcrossInstances(t *testing.T) {
	store, dir := newTestStore(t)

	require.NoError(t, store.SaveCheckpoints(map[string]string{"a": "1"}))
	require.NoError(t, store.SaveCursor(1))

	log := logger.NewZapWrapper(zap.NewNop())
	reopened, err := NewStore(log, &types.CheckpointConfig{Dir: dir})
	require.NoError(t, err)

	checkpoints, err := reopened.LoadCheckpoints()
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "1"}, checkpoints)

	cursor, err := reopened.LoadCursor()
	require.NoError(t, err)
	require.Equal(t, 1, cursor)
}
