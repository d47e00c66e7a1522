package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRewinder struct {
	err error
}

func (s stubRewinder) RewindFiles(checkpointID string) error { return s.err }

func TestCaptureCheckpoint_IDEqualsMessageID(t *testing.T) {
	r := New(t.TempDir(), 10)
	cp, err := r.CaptureCheckpoint("msg-1", "first turn", "sdk-1")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", cp.ID)
}

func TestListCheckpoints_NewestFirst(t *testing.T) {
	r := New(t.TempDir(), 10)
	_, err := r.CaptureCheckpoint("msg-1", "one", "")
	require.NoError(t, err)
	_, err = r.CaptureCheckpoint("msg-2", "two", "")
	require.NoError(t, err)

	list := r.ListCheckpoints()
	require.Len(t, list, 2)
	assert.Equal(t, "msg-2", list[0].ID)
	assert.Equal(t, "msg-1", list[1].ID)
}

// TestCaptureCheckpoint_EvictsOldestBeyondKeepCount exercises invariant
// C1/P6: at most keepCount checkpoints are retained, FIFO by capture order.
func TestCaptureCheckpoint_EvictsOldestBeyondKeepCount(t *testing.T) {
	r := New(t.TempDir(), 3)
	for i := 0; i < 5; i++ {
		_, err := r.CaptureCheckpoint(msgID(i), "turn", "")
		require.NoError(t, err)
	}

	list := r.ListCheckpoints()
	require.Len(t, list, 3)
	ids := map[string]bool{}
	for _, cp := range list {
		ids[cp.ID] = true
	}
	assert.True(t, ids[msgID(4)])
	assert.True(t, ids[msgID(3)])
	assert.True(t, ids[msgID(2)])
	assert.False(t, ids[msgID(0)])
	assert.False(t, ids[msgID(1)])
}

func msgID(i int) string {
	return "msg-" + string(rune('a'+i))
}

func TestCorruptMetadata_RecoversToEmpty(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 10)

	_, err := r.CaptureCheckpoint("msg-1", "one", "")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(r.metadataPath(), []byte("not an array"), 0644))

	list := r.ListCheckpoints()
	assert.Empty(t, list)
}

func TestRestoreCheckpoint_UnknownID_Fails(t *testing.T) {
	r := New(t.TempDir(), 10)
	err := r.RestoreCheckpoint("missing", stubRewinder{})
	assert.ErrorIs(t, err, ErrCheckpointNotFound)
}

func TestRestoreCheckpoint_RuntimeReportsNotFound(t *testing.T) {
	r := New(t.TempDir(), 10)
	_, err := r.CaptureCheckpoint("msg-1", "one", "")
	require.NoError(t, err)

	err = r.RestoreCheckpoint("msg-1", stubRewinder{err: assertErr{}})
	assert.ErrorIs(t, err, ErrCheckpointNotFound)
}

type assertErr struct{}

func (assertErr) Error() string { return "no checkpoint found" }

func TestRestoreCheckpoint_Success(t *testing.T) {
	r := New(t.TempDir(), 10)
	_, err := r.CaptureCheckpoint("msg-1", "one", "")
	require.NoError(t, err)

	err = r.RestoreCheckpoint("msg-1", stubRewinder{})
	assert.NoError(t, err)
}

func TestDescribeFromText_TruncatesTo80Chars(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "x"
	}
	desc := DescribeFromText(long)
	assert.Len(t, desc, 80)
}

func TestDescribeFromText_FallsBackWhenEmpty(t *testing.T) {
	desc := DescribeFromText("")
	assert.Contains(t, desc, "Checkpoint at")
}

func TestDiff_IdenticalTextReturnsEmpty(t *testing.T) {
	diffText, add, del := Diff("same", "same")
	assert.Empty(t, diffText)
	assert.Zero(t, add)
	assert.Zero(t, del)
}

func TestDiff_ReportsAddedAndDeletedLines(t *testing.T) {
	before := "line one\nline two\n"
	after := "line one\nline three\nline four\n"

	diffText, add, del := Diff(before, after)
	assert.NotEmpty(t, diffText)
	assert.Equal(t, 2, add)
	assert.Equal(t, 1, del)
}

func TestMetadataFile_LivesUnderCheckpointsSubdir(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 10)
	_, err := r.CaptureCheckpoint("msg-1", "one", "")
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "checkpoints", "metadata.json"))
	assert.NoError(t, statErr)
}
