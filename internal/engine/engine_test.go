package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/turnengine/internal/permission"
	"github.com/agentcore/turnengine/internal/runtime"
	"github.com/agentcore/turnengine/internal/store"
	"github.com/agentcore/turnengine/pkg/types"
)

func newTestEngine(t *testing.T, script []runtime.RuntimeMessage) (*Engine, *runtime.ScriptedRuntime, *store.Store) {
	t.Helper()
	s, err := store.New(t.TempDir(), 5*time.Hour)
	require.NoError(t, err)

	arb := permission.New(types.PermissionConfig{Mode: types.ModeDefault}, nil, nil, nil, nil)
	rt := &runtime.ScriptedRuntime{Script: script}
	e := New(rt, arb, s, Callbacks{}, nil)
	return e, rt, s
}

func TestSendMessage_NoActiveSession(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	res := e.SendMessage("hello")
	assert.False(t, res.Success)
	assert.Equal(t, "No active streaming session", res.Error)
}

func TestSendMessage_HappyPath(t *testing.T) {
	script := []runtime.RuntimeMessage{
		{Kind: runtime.KindSystemInit, SessionID: "S1"},
		{Kind: runtime.KindAssistantText, Text: "Hi there"},
		{Kind: runtime.KindResultSuccess, Result: runtime.ResultInfo{
			Text:  "Hi there",
			Usage: types.UsageStats{InputTokens: 10, OutputTokens: 3},
		}},
	}
	e, _, s := newTestEngine(t, script)

	sess := s.CreateSession(t.TempDir(), types.ResolvedConfig{Model: "sonnet"})
	e.StartSession(sess, t.TempDir())

	res := e.SendMessage("Hello")
	require.True(t, res.Success)

	result := e.WaitForResult()
	require.NotNil(t, result)
	assert.False(t, result.IsError)
	assert.Equal(t, "Hi there", result.Response)
	assert.Equal(t, "S1", result.SessionID)
	assert.Equal(t, 10, result.Usage.InputTokens)
	assert.Equal(t, 3, result.Usage.OutputTokens)
}

func TestSendMessage_EveryImageFails_StillSendsText(t *testing.T) {
	script := []runtime.RuntimeMessage{
		{Kind: runtime.KindResultSuccess, Result: runtime.ResultInfo{Text: "ok"}},
	}
	e, _, s := newTestEngine(t, script)
	sess := s.CreateSession(t.TempDir(), types.ResolvedConfig{})
	e.StartSession(sess, t.TempDir())

	res := e.SendMessage("look at @missing.png")
	assert.True(t, res.Success)
	require.Len(t, res.ImageErrors, 1)
}

func TestInterruptSession_WhenIdle_Fails(t *testing.T) {
	e, _, s := newTestEngine(t, nil)
	sess := s.CreateSession(t.TempDir(), types.ResolvedConfig{})
	e.StartSession(sess, t.TempDir())

	res := e.InterruptSession()
	assert.False(t, res.Success)
}

func TestEndSession_ClearsActiveSession(t *testing.T) {
	e, _, s := newTestEngine(t, nil)
	sess := s.CreateSession(t.TempDir(), types.ResolvedConfig{})
	e.StartSession(sess, t.TempDir())
	e.EndSession()

	res := e.SendMessage("hi")
	assert.False(t, res.Success)
}

func TestSetPermissionMode_UpdatesArbiter(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	err := e.SetPermissionMode(context.Background(), types.ModePlan)
	require.NoError(t, err)
	assert.Equal(t, types.ModePlan, e.arbiter.Mode())
}

func TestActiveSession_NilWhenIdle(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	assert.Nil(t, e.ActiveSession())
	assert.Equal(t, StateIdle, e.State())
}

func TestActiveSession_ReflectsStartedSession(t *testing.T) {
	e, _, s := newTestEngine(t, nil)
	sess := s.CreateSession(t.TempDir(), types.ResolvedConfig{})
	e.StartSession(sess, t.TempDir())

	active := e.ActiveSession()
	require.NotNil(t, active)
	assert.Equal(t, sess.ID, active.ID)
}

func TestListCheckpoints_EmptyBeforeAnyMessage(t *testing.T) {
	e, _, s := newTestEngine(t, nil)
	sess := s.CreateSession(t.TempDir(), types.ResolvedConfig{})
	e.StartSession(sess, t.TempDir())
	assert.Empty(t, e.ListCheckpoints())
}

func TestRestoreCheckpoint_FailsWithoutRuntimeHandle(t *testing.T) {
	e, _, s := newTestEngine(t, nil)
	sess := s.CreateSession(t.TempDir(), types.ResolvedConfig{})
	e.StartSession(sess, t.TempDir())

	err := e.RestoreCheckpoint("msg-1")
	assert.Error(t, err)
}
