package generator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/turnengine/pkg/types"
)

func userMsg(text string) StreamMessage {
	return StreamMessage{Type: "user", Message: types.Message{Role: types.RoleUser, Text: text}}
}

func TestGenerator_PushThenGenerate_FIFO(t *testing.T) {
	g := New()
	g.Push(userMsg("one"))
	g.Push(userMsg("two"))
	g.Push(userMsg("three"))

	require.Equal(t, 3, g.PendingCount())

	m1, ok := g.Generate()
	require.True(t, ok)
	assert.Equal(t, "one", m1.Message.Text)

	m2, ok := g.Generate()
	require.True(t, ok)
	assert.Equal(t, "two", m2.Message.Text)

	assert.Equal(t, 1, g.PendingCount())
}

func TestGenerator_GenerateBlocksUntilPush(t *testing.T) {
	g := New()

	done := make(chan StreamMessage, 1)
	go func() {
		m, ok := g.Generate()
		if ok {
			done <- m
		}
	}()

	select {
	case <-done:
		t.Fatal("Generate returned before a message was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	g.Push(userMsg("late"))

	select {
	case m := <-done:
		assert.Equal(t, "late", m.Message.Text)
	case <-time.After(time.Second):
		t.Fatal("Generate did not wake after push")
	}
}

func TestGenerator_Stop_WakesBlockedConsumer(t *testing.T) {
	g := New()

	done := make(chan bool, 1)
	go func() {
		_, ok := g.Generate()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	g.Stop()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Generate did not exit after Stop")
	}
}

func TestGenerator_Push_AfterStop_DropsSilently(t *testing.T) {
	g := New()
	g.Stop()
	g.Push(userMsg("dropped"))
	assert.Equal(t, 0, g.PendingCount())
}

func TestGenerator_Reset_PreservesQueue(t *testing.T) {
	g := New()
	g.Push(userMsg("kept"))
	g.Stop()
	g.Reset()

	require.Equal(t, 1, g.PendingCount())
	m, ok := g.Generate()
	require.True(t, ok)
	assert.Equal(t, "kept", m.Message.Text)
}

func TestGenerator_ClearQueue_ReturnsDiscardedCount(t *testing.T) {
	g := New()
	g.Push(userMsg("a"))
	g.Push(userMsg("b"))

	n := g.ClearQueue()
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, g.PendingCount())
}

// TestGenerator_NoLossUnderConcurrentPushAndGenerate exercises invariant P1:
// a consumer's wait and a producer's push race repeatedly, and every
// pushed message must eventually be observed by the consumer.
func TestGenerator_NoLossUnderConcurrentPushAndGenerate(t *testing.T) {
	g := New()
	const n = 500

	var wg sync.WaitGroup
	received := make([]StreamMessage, 0, n)
	var mu sync.Mutex

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			m, ok := g.Generate()
			require.True(t, ok)
			mu.Lock()
			received = append(received, m)
			mu.Unlock()
		}
	}()

	var pushWG sync.WaitGroup
	for i := 0; i < n; i++ {
		pushWG.Add(1)
		go func(i int) {
			defer pushWG.Done()
			g.Push(userMsg("m"))
		}(i)
	}
	pushWG.Wait()

	wg.Wait()
	assert.Len(t, received, n)
}

func TestGenerator_GenerateCtx_UnblocksOnCancelWithoutStopping(t *testing.T) {
	g := New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := g.GenerateCtx(ctx)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("GenerateCtx did not exit after context cancellation")
	}

	g.Push(userMsg("still usable"))
	m, ok := g.Generate()
	require.True(t, ok)
	assert.Equal(t, "still usable", m.Message.Text)
}

func TestGenerator_GenerateCtx_ReturnsQueuedMessageImmediately(t *testing.T) {
	g := New()
	g.Push(userMsg("ready"))

	m, ok := g.GenerateCtx(context.Background())
	require.True(t, ok)
	assert.Equal(t, "ready", m.Message.Text)
}
