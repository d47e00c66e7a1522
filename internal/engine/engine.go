// Package engine implements the Turn Engine (StreamingQueryManager): the
// component that owns one active streaming call to the external agent
// runtime at a time, dispatches its messages to UI callbacks, and wires in
// checkpointing and permission arbitration.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/agentcore/turnengine/internal/checkpoint"
	"github.com/agentcore/turnengine/internal/errclass"
	"github.com/agentcore/turnengine/internal/event"
	"github.com/agentcore/turnengine/internal/generator"
	"github.com/agentcore/turnengine/internal/logging"
	"github.com/agentcore/turnengine/internal/message"
	"github.com/agentcore/turnengine/internal/permission"
	"github.com/agentcore/turnengine/internal/runtime"
	"github.com/agentcore/turnengine/internal/store"
	"github.com/agentcore/turnengine/pkg/types"
)

// State is the StreamingSession's coarse lifecycle state.
type State string

const (
	StateIdle        State = "idle"
	StateProcessing  State = "processing"
	StateInterrupted State = "interrupted"
)

// Callbacks fans runtime messages out to the UI by kind.
type Callbacks struct {
	OnAssistantText func(text string)
	OnThinking      func(text string)
	OnToolUse       func(toolUseID, toolName string, input json.RawMessage)
	OnToolResult    func(toolUseID string, body json.RawMessage, isError bool)
}

func (c Callbacks) dispatch(m runtime.RuntimeMessage) {
	switch m.Kind {
	case runtime.KindAssistantText:
		if c.OnAssistantText != nil {
			c.OnAssistantText(m.Text)
		}
	case runtime.KindThinking:
		if c.OnThinking != nil {
			c.OnThinking(m.Text)
		}
	case runtime.KindToolUse:
		if c.OnToolUse != nil {
			c.OnToolUse(m.ToolUseID, m.ToolName, m.ToolInput)
		}
	case runtime.KindToolResult:
		if c.OnToolResult != nil {
			c.OnToolResult(m.ToolUseID, m.ToolBody, m.ToolError)
		}
	}
}

// Result is the terminal outcome of a turn, surfaced via WaitForResult.
type Result struct {
	IsError      bool
	Response     string
	ErrorMessage string
	SessionID    string
	Usage        types.UsageStats
}

// SendResult is sendMessage/queueMessage's immediate reply.
type SendResult struct {
	Success     bool
	Error       string
	ImageErrors []message.ImageError
}

// InterruptResult is interruptSession's reply.
type InterruptResult struct {
	Success         bool
	ClearedMessages int
}

// SessionSaveHook is invoked with the runtime-assigned session id as soon
// as the runtime's first system.init message is observed.
type SessionSaveHook func(runtimeSessionID string)

// Engine is the Turn Engine. One Engine drives at most one active
// streaming call at a time (invariant I1).
type Engine struct {
	rt           runtime.Runtime
	arbiter      *permission.Arbiter
	sessionStore *store.Store
	callbacks    Callbacks
	saveHook     SessionSaveHook

	mu             sync.Mutex
	session        *types.Session
	gen            *generator.Generator
	checkpointRec  *checkpoint.Recorder
	cancel         context.CancelFunc
	state          State
	handle         runtime.Handle
	lastResult     *Result
	execInFlight   bool
	execDone       chan struct{}
	runtimeSessID  string
	configuredAgents map[string]string
	hooks          map[string][]message.HookBinding
}

// New constructs an Engine bound to a single runtime collaborator.
func New(rt runtime.Runtime, arbiter *permission.Arbiter, sessionStore *store.Store, callbacks Callbacks, saveHook SessionSaveHook) *Engine {
	return &Engine{
		rt:           rt,
		arbiter:      arbiter,
		sessionStore: sessionStore,
		callbacks:    callbacks,
		saveHook:     saveHook,
		state:        StateIdle,
	}
}

// SetConfiguredAgents registers the config-defined sub-agent set used by
// query-option assembly.
func (e *Engine) SetConfiguredAgents(agents map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configuredAgents = agents
}

// SetHooks registers the translated {event -> bindings} hook map used by
// query-option assembly.
func (e *Engine) SetHooks(hooks map[string][]message.HookBinding) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = hooks
}

// StartSession installs sess as the active session, ending any prior
// active session first.
func (e *Engine) StartSession(sess *types.Session, checkpointDir string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		e.endSessionLocked()
	}

	e.session = sess
	e.gen = generator.New()
	e.checkpointRec = checkpoint.New(checkpointDir, 10)
	e.lastResult = nil
	e.state = StateIdle
	e.runtimeSessID = ""
}

// SendMessage implements sendMessage: builds and pushes a StreamMessage,
// starting a new execution burst if none is running.
func (e *Engine) SendMessage(rawText string) SendResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sendLocked(rawText)
}

// QueueMessage is sendMessage with the result discarded; valid while
// processing.
func (e *Engine) QueueMessage(rawText string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sendLocked(rawText)
}

func (e *Engine) sendLocked(rawText string) SendResult {
	if e.session == nil {
		return SendResult{Success: false, Error: "No active streaming session"}
	}

	mode := e.arbiter.Mode()
	text := message.ApplyPlanModePrefix(rawText, mode)

	built := message.BuildStreamMessage(text, e.session.WorkingDirectory)
	if len(built.ContentBlocks) == 0 && len(built.Errors) > 0 {
		return SendResult{Success: false, ImageErrors: built.Errors}
	}

	userMsg := e.sessionStore.AddMessage(e.session, types.RoleUser, built.ProcessedText, built.ContentBlocks)
	_, _ = e.checkpointRec.CaptureCheckpoint(userMsg.ID, checkpoint.DescribeFromText(built.ProcessedText), e.runtimeSessID)

	e.gen.Push(generator.StreamMessage{Type: "user", Message: *userMsg})

	if !e.execInFlight {
		e.startExecutionLocked()
	}
	e.state = StateProcessing

	return SendResult{Success: true, ImageErrors: built.Errors}
}

// InterruptSession implements interruptSession.
func (e *Engine) InterruptSession() InterruptResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateProcessing {
		return InterruptResult{Success: false}
	}

	if e.cancel != nil {
		e.cancel()
	}
	cleared := e.gen.ClearQueue()
	e.state = StateInterrupted
	e.cancel = nil
	e.execInFlight = false
	e.gen.Reset()

	event.Publish(event.Event{Type: event.TurnInterrupted, Data: cleared})
	return InterruptResult{Success: true, ClearedMessages: cleared}
}

// EndSession implements endSession.
func (e *Engine) EndSession() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.endSessionLocked()
}

func (e *Engine) endSessionLocked() {
	if e.gen != nil {
		if n := e.gen.ClearQueue(); n > 0 {
			logging.Warn().Int("discarded", n).Msg("stray queued messages dropped at session end")
		}
		e.gen.Stop()
	}
	if e.state == StateProcessing && e.cancel != nil {
		e.cancel()
	}
	e.session = nil
	e.lastResult = nil
	e.state = StateIdle
}

// SetPermissionMode delegates to the arbiter, then pushes the mode change
// to the runtime handle if one is registered.
func (e *Engine) SetPermissionMode(ctx context.Context, mode types.PermissionMode) error {
	if err := e.arbiter.SetMode(ctx, mode); err != nil {
		return err
	}
	e.mu.Lock()
	handle := e.handle
	e.mu.Unlock()
	if handle != nil {
		return handle.SetMode(ctx, mode)
	}
	return nil
}

// ActiveSession returns the currently installed session, or nil if idle.
func (e *Engine) ActiveSession() *types.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ListCheckpoints returns the active session's checkpoints, newest first.
// It returns nil if no session is active.
func (e *Engine) ListCheckpoints() []types.Checkpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.checkpointRec == nil {
		return nil
	}
	return e.checkpointRec.ListCheckpoints()
}

// RestoreCheckpoint rewinds the active session's files to checkpoint id via
// the runtime handle registered by the current (or most recent) execution.
func (e *Engine) RestoreCheckpoint(id string) error {
	e.mu.Lock()
	rec := e.checkpointRec
	handle := e.handle
	e.mu.Unlock()

	if rec == nil {
		return checkpoint.ErrCheckpointNotFound
	}
	if handle == nil {
		return fmt.Errorf("no runtime handle registered yet; send a message before restoring a checkpoint")
	}
	return rec.RestoreCheckpoint(id, handle)
}

// WaitForResult blocks until the in-flight execution (if any) completes,
// returning the last captured result.
func (e *Engine) WaitForResult() *Result {
	e.mu.Lock()
	done := e.execDone
	e.mu.Unlock()

	if done != nil {
		<-done
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastResult
}

// startExecutionLocked starts one burst of execution. Caller must hold mu.
func (e *Engine) startExecutionLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.execInFlight = true
	done := make(chan struct{})
	e.execDone = done

	sess := e.session
	gen := e.gen

	go e.runExecution(ctx, sess, gen, done)
}

func (e *Engine) runExecution(ctx context.Context, sess *types.Session, gen *generator.Generator, done chan struct{}) {
	defer close(done)
	defer func() {
		e.mu.Lock()
		e.execInFlight = false
		if n := gen.PendingCount(); n > 0 {
			logging.Warn().Int("count", n).Msg("clearing stray queued messages after execution ended")
			gen.ClearQueue()
		}
		e.mu.Unlock()
	}()

	opts := message.BuildQueryOptions(message.QueryOptionsInput{
		Config:             sess.SessionCtx.ResolvedConfig,
		PermissionMode:     e.arbiter.Mode(),
		WorkingDirectory:    sess.WorkingDirectory,
		ConfiguredAgents:    e.configuredAgents,
		SessionActiveAgents: activeAgentSet(sess.SessionCtx.ActiveAgents),
		Hooks:              e.hooks,
	})

	var accumulated string
	var result *Result

	canUseTool := func(ctx context.Context, req types.CanUseToolRequest) (types.PermissionDecision, error) {
		return e.arbiter.Decide(ctx, sess.ID, req)
	}

	onQueryCreated := func(h runtime.Handle) {
		e.mu.Lock()
		e.handle = h
		e.mu.Unlock()
	}

	onMessage := func(m runtime.RuntimeMessage) {
		if ctx.Err() != nil {
			return
		}

		switch m.Kind {
		case runtime.KindSystemInit:
			e.mu.Lock()
			e.runtimeSessID = m.SessionID
			e.mu.Unlock()
			if e.saveHook != nil {
				e.saveHook(m.SessionID)
			}
		case runtime.KindAssistantText:
			accumulated += m.Text
		case runtime.KindResultSuccess:
			result = &Result{
				IsError:   false,
				Response:  m.Result.Text,
				SessionID: e.runtimeSessID,
				Usage:     m.Result.Usage,
			}
			accumulated = ""
		case runtime.KindResultError:
			result = &Result{
				IsError:      true,
				Response:     accumulated,
				ErrorMessage: m.Result.ErrorMessage,
				SessionID:    e.runtimeSessID,
			}
			accumulated = ""
		}

		e.callbacks.dispatch(m)
	}

	source := genSource{gen: gen}
	err := e.rt.Query(ctx, source, opts, canUseTool, onMessage, onQueryCreated)

	e.mu.Lock()
	if ctx.Err() != nil {
		if result == nil {
			result = &Result{IsError: true, ErrorMessage: errclass.Interrupted.Message(), Response: accumulated}
		}
		e.state = StateIdle
	} else if err != nil && result == nil {
		result = &Result{IsError: true, ErrorMessage: err.Error(), Response: accumulated}
	} else if result == nil {
		result = &Result{Response: accumulated}
	}
	e.lastResult = result
	if e.state == StateProcessing {
		e.state = StateIdle
	}
	e.mu.Unlock()
}

func activeAgentSet(names []string) map[string]string {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]string, len(names))
	for _, n := range names {
		set[n] = ""
	}
	return set
}
