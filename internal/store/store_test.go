package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/turnengine/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), 5*time.Hour)
	require.NoError(t, err)
	return s
}

func TestCreateSaveLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	sess := s.CreateSession("/tmp/wd", types.ResolvedConfig{Model: "sonnet"})
	s.AddMessage(sess, types.RoleUser, "hello", nil)
	sess.Messages[0].Usage = nil

	require.NoError(t, s.SaveSession(sess))

	loaded, err := s.LoadSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Len(t, loaded.Messages, 1)
	assert.Equal(t, "hello", loaded.Messages[0].Text)
	assert.Equal(t, "/tmp/wd", loaded.WorkingDirectory)
}

func TestLoadSession_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadSession("does-not-exist")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSaveSession_PopulatesStats(t *testing.T) {
	s := newTestStore(t)
	sess := s.CreateSession("/tmp/wd", types.ResolvedConfig{})
	msg := s.AddMessage(sess, types.RoleAssistant, "hi there", nil)
	msg.Usage = &types.UsageStats{InputTokens: 10, OutputTokens: 3, CostUSD: 0.001}

	require.NoError(t, s.SaveSession(sess))
	assert.Equal(t, 1, sess.Stats.MessageCount)
	assert.Equal(t, 10, sess.Stats.InputTokens)
	assert.Equal(t, 3, sess.Stats.OutputTokens)
	assert.Equal(t, "hi there", sess.Stats.LastMessagePreview)
}

func TestMessagesCorrupt_LoadsEmptyWithWarning(t *testing.T) {
	s := newTestStore(t)
	sess := s.CreateSession("/tmp/wd", types.ResolvedConfig{})
	require.NoError(t, s.SaveSession(sess))

	msgPath := filepath.Join(s.dir(sess.ID), "messages.json")
	require.NoError(t, os.WriteFile(msgPath, []byte("{not valid json"), 0644))

	loaded, err := s.LoadSession(sess.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Messages)
}

func TestListSessions_SortedByLastAccessedDescending(t *testing.T) {
	s := newTestStore(t)

	older := s.CreateSession("/tmp/a", types.ResolvedConfig{})
	require.NoError(t, s.SaveSession(older))
	time.Sleep(2 * time.Millisecond)
	newer := s.CreateSession("/tmp/b", types.ResolvedConfig{})
	require.NoError(t, s.SaveSession(newer))

	sessions, err := s.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, newer.ID, sessions[0].ID)
	assert.Equal(t, older.ID, sessions[1].ID)
}

func TestForkSession_CopiesMessagesDropsRuntimeID(t *testing.T) {
	s := newTestStore(t)

	src := s.CreateSession("/tmp/wd", types.ResolvedConfig{})
	s.AddMessage(src, types.RoleUser, "one", nil)
	s.AddMessage(src, types.RoleAssistant, "two", nil)
	s.AddMessage(src, types.RoleUser, "three", nil)
	src.RuntimeSessionID = "SRC"
	require.NoError(t, s.SaveSession(src))

	fork, err := s.ForkSession(src.ID)
	require.NoError(t, err)

	assert.NotEqual(t, src.ID, fork.ID)
	assert.Equal(t, src.ID, fork.ParentSessionID)
	assert.Empty(t, fork.RuntimeSessionID)
	require.Len(t, fork.Messages, 3)
	for i, m := range fork.Messages {
		assert.Equal(t, src.Messages[i].Text, m.Text)
		assert.Equal(t, fork.ID, m.SessionID)
	}

	require.NoError(t, s.SaveSession(fork))

	reloadedSrc, err := s.LoadSession(src.ID)
	require.NoError(t, err)
	reloadedFork, err := s.LoadSession(fork.ID)
	require.NoError(t, err)
	assert.Len(t, reloadedSrc.Messages, 3)
	assert.Len(t, reloadedFork.Messages, 3)
}

func TestForkSession_MutatingForkDoesNotAffectSource(t *testing.T) {
	s := newTestStore(t)
	src := s.CreateSession("/tmp/wd", types.ResolvedConfig{})
	s.AddMessage(src, types.RoleUser, "one", nil)
	require.NoError(t, s.SaveSession(src))

	fork, err := s.ForkSession(src.ID)
	require.NoError(t, err)
	s.AddMessage(fork, types.RoleUser, "two", nil)
	require.NoError(t, s.SaveSession(fork))

	reloadedSrc, err := s.LoadSession(src.ID)
	require.NoError(t, err)
	assert.Len(t, reloadedSrc.Messages, 1)
}

func TestCleanOldSessions_KeepsNewest(t *testing.T) {
	s := newTestStore(t)
	var ids []string
	for i := 0; i < 5; i++ {
		sess := s.CreateSession("/tmp/wd", types.ResolvedConfig{})
		require.NoError(t, s.SaveSession(sess))
		ids = append(ids, sess.ID)
		time.Sleep(time.Millisecond)
	}

	require.NoError(t, s.CleanOldSessions(2))

	remaining, err := s.ListSessions()
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestDeleteSession_NeverErrorsOnMissing(t *testing.T) {
	s := newTestStore(t)
	assert.NotPanics(t, func() { s.DeleteSession("missing") })
}

func TestExpired_MonotoneAfterManualMark(t *testing.T) {
	s := newTestStore(t)
	sess := s.CreateSession("/tmp/wd", types.ResolvedConfig{})
	sess.Expired = true
	require.NoError(t, s.SaveSession(sess))

	loaded, err := s.LoadSession(sess.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Expired)
}

func TestSessionIDs_UniqueAcrossCreates(t *testing.T) {
	s := newTestStore(t)
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		sess := s.CreateSession("/tmp/wd", types.ResolvedConfig{})
		assert.False(t, seen[sess.ID])
		seen[sess.ID] = true
	}
}

func TestSessionDir_MatchesOnDiskLocation(t *testing.T) {
	s := newTestStore(t)
	sess := s.CreateSession("/tmp/wd", types.ResolvedConfig{})
	require.NoError(t, s.SaveSession(sess))

	_, err := os.Stat(filepath.Join(s.SessionDir(sess.ID), "metadata.json"))
	assert.NoError(t, err)
}
