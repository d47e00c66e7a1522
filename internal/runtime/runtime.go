// Package runtime defines the external agent runtime contract the Turn
// Engine drives, and provides a concrete adapter over the Anthropic API.
// The runtime itself — prompt engineering, multi-provider routing, context
// compaction — is out of scope; this package only shapes the boundary and
// gives the engine a genuine collaborator to call.
package runtime

import (
	"context"
	"encoding/json"

	"github.com/agentcore/turnengine/internal/message"
	"github.com/agentcore/turnengine/pkg/types"
)

// MessageKind tags the variant carried by a RuntimeMessage.
type MessageKind string

const (
	KindSystemInit    MessageKind = "system_init"
	KindAssistantText MessageKind = "assistant_text"
	KindThinking      MessageKind = "thinking"
	KindToolUse       MessageKind = "tool_use"
	KindToolResult    MessageKind = "tool_result"
	KindResultSuccess MessageKind = "result_success"
	KindResultError   MessageKind = "result_error"
)

// RuntimeMessage is one message the runtime yields from its streaming
// entry point, tagged by Kind; only the fields relevant to Kind are set.
type RuntimeMessage struct {
	Kind MessageKind

	SessionID string // system_init

	Text string // assistant_text, thinking

	ToolUseID string          // tool_use, tool_result
	ToolName  string          // tool_use
	ToolInput json.RawMessage // tool_use
	ToolError bool            // tool_result
	ToolBody  json.RawMessage // tool_result

	Result ResultInfo // result_success, result_error
}

// ResultInfo carries the terminal accounting for one turn.
type ResultInfo struct {
	Text       string
	ErrorMessage string
	Usage      types.UsageStats
}

// Handle is returned from Query via onQueryCreated and lets the engine
// drive the in-flight call: restore file state, or push a live mode switch.
type Handle interface {
	RewindFiles(checkpointID string) error
	SetMode(ctx context.Context, mode types.PermissionMode) error
}

// CanUseTool is the permission callback the runtime invokes before running
// any tool. It must be total: no panics, a decision for every call.
type CanUseTool func(ctx context.Context, req types.CanUseToolRequest) (types.PermissionDecision, error)

// OnMessage is invoked once per RuntimeMessage, before the next one is
// requested from the stream.
type OnMessage func(msg RuntimeMessage)

// OnQueryCreated is invoked exactly once per Query call, as soon as a
// Handle is available.
type OnQueryCreated func(handle Handle)

// MessageSource adapts the engine's internal stream of pushed
// StreamMessages into whatever the concrete runtime wants to consume.
// Next blocks until a message is available or the source is exhausted.
type MessageSource interface {
	Next(ctx context.Context) (types.Message, bool)
}

// Runtime is the external agent runtime contract: one streaming call per
// Query invocation, driven by the engine's message source.
type Runtime interface {
	Query(ctx context.Context, messages MessageSource, opts message.QueryOptions, canUseTool CanUseTool, onMessage OnMessage, onQueryCreated OnQueryCreated) error
}
