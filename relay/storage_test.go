package relay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorageLoadMissingFile(t *testing.T) {
	st, err := NewFileStorage(filepath.Join(t.TempDir(), "queue.json"))
	require.NoError(t, err)

	queue, err := st.Load()
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestFileStorageRoundTrip(t *testing.T) {
	st, err := NewFileStorage(filepath.Join(t.TempDir(), "queue.json"))
	require.NoError(t, err)

	in := []Report{
		{Seq: 1, Category: "FIRE", Severity: "HIGH", Latitude: 37.77, Longitude: -122.42, QueuedAt: 1700000000000},
		{Seq: 2, Category: "FLOOD", Description: "river rising", IsQuickAlert: true},
	}
	require.NoError(t, st.Store(in))

	out, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFileStorageReplaceIsComplete(t *testing.T) {
	st, err := NewFileStorage(filepath.Join(t.TempDir(), "queue.json"))
	require.NoError(t, err)

	require.NoError(t, st.Store([]Report{{Seq: 1, Category: "A"}, {Seq: 2, Category: "B"}}))
	require.NoError(t, st.Store([]Report{{Seq: 2, Category: "B"}}))

	out, err := st.Load()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "B", out[0].Category)
}

func TestFileStorageStoreEmptyQueue(t *testing.T) {
	st, err := NewFileStorage(filepath.Join(t.TempDir(), "queue.json"))
	require.NoError(t, err)

	require.NoError(t, st.Store([]Report{{Seq: 1, Category: "A"}}))
	require.NoError(t, st.Store(nil))

	out, err := st.Load()
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFileStorageCorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	st, err := NewFileStorage(path)
	require.NoError(t, err)

	_, err = st.Load()
	assert.Error(t, err, "corrupted storage must surface, not silently drop reports")
}

func TestFileStorageLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFileStorage(filepath.Join(dir, "queue.json"))
	require.NoError(t, err)

	require.NoError(t, st.Store([]Report{{Seq: 1, Category: "A"}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
