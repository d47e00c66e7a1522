package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"

	"github.com/agentcore/turnengine/internal/errclass"
	"github.com/agentcore/turnengine/internal/logging"
	"github.com/agentcore/turnengine/internal/message"
	"github.com/agentcore/turnengine/pkg/types"
)

// Retry tuning for transient API errors, mirroring the teacher's agentic
// loop backoff configuration.
const (
	retryMaxAttempts     = 3
	retryInitialInterval = time.Second
	retryMaxInterval     = 30 * time.Second
	retryMaxElapsedTime  = 2 * time.Minute
)

const defaultMaxTokens = 4096

// AnthropicRuntime is a thin Runtime adapter over the Anthropic Messages
// API: one non-streaming Messages call per model step, tool_use/tool_result round-tripped
// through the supplied CanUseTool callback, with exponential-backoff retry
// on transient errors. It does not implement multi-provider routing,
// prompt compaction, or a tool registry — those stay outside the core.
type AnthropicRuntime struct {
	client *anthropic.Client
}

// NewAnthropicRuntime constructs a runtime backed by the given API key.
func NewAnthropicRuntime(apiKey string) *AnthropicRuntime {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicRuntime{client: &client}
}

// anthropicHandle is the Handle returned to the engine for the duration of
// one Query call.
type anthropicHandle struct {
	sessionID string
}

func (h *anthropicHandle) RewindFiles(checkpointID string) error {
	return fmt.Errorf("file rewind for checkpoint %s requires runtime-side file checkpointing support", checkpointID)
}

func (h *anthropicHandle) SetMode(ctx context.Context, mode types.PermissionMode) error {
	return nil
}

// Query drives one multi-turn agentic exchange: it pulls StreamMessages
// from the engine's message source, translates content blocks to Anthropic
// message params, and loops on tool_use stop reasons until the runtime
// emits an end_turn, surfacing every intermediate message via onMessage.
func (r *AnthropicRuntime) Query(ctx context.Context, messages MessageSource, opts message.QueryOptions, canUseTool CanUseTool, onMessage OnMessage, onQueryCreated OnQueryCreated) error {
	sessionID := newRuntimeSessionID()
	handle := &anthropicHandle{sessionID: sessionID}
	if onQueryCreated != nil {
		onQueryCreated(handle)
	}
	onMessage(RuntimeMessage{Kind: KindSystemInit, SessionID: sessionID})

	var history []anthropic.MessageParam

	for {
		incoming, ok := messages.Next(ctx)
		if !ok {
			return nil
		}
		history = append(history, toAnthropicParam(incoming))

		for {
			if ctx.Err() != nil {
				onMessage(RuntimeMessage{
					Kind:   KindResultError,
					Result: ResultInfo{ErrorMessage: errclass.Interrupted.Message()},
				})
				return ctx.Err()
			}

			resp, err := r.callWithRetry(ctx, opts, history)
			if err != nil {
				onMessage(RuntimeMessage{
					Kind:   KindResultError,
					Result: ResultInfo{ErrorMessage: err.Error()},
				})
				return err
			}

			history = append(history, resp.ToParam())
			emitContentBlocks(resp, onMessage)

			if resp.StopReason != anthropic.StopReasonToolUse {
				onMessage(RuntimeMessage{
					Kind: KindResultSuccess,
					Result: ResultInfo{
						Text: assistantText(resp),
						Usage: types.UsageStats{
							InputTokens:  int(resp.Usage.InputTokens),
							OutputTokens: int(resp.Usage.OutputTokens),
						},
					},
				})
				break
			}

			toolResults, interrupted := r.runToolUse(ctx, resp, canUseTool, onMessage)
			history = append(history, anthropic.NewUserMessage(toolResults...))
			if interrupted {
				onMessage(RuntimeMessage{
					Kind:   KindResultError,
					Result: ResultInfo{ErrorMessage: errclass.Interrupted.Message()},
				})
				return nil
			}
		}
	}
}

func (r *AnthropicRuntime) callWithRetry(ctx context.Context, opts message.QueryOptions, history []anthropic.MessageParam) (*anthropic.Message, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(opts.Model),
		MaxTokens: defaultMaxTokens,
		Messages:  history,
	}
	if opts.SystemPrompt.Preset != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.SystemPrompt.Append}}
	}
	if opts.MaxThinkingTokens > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(opts.MaxThinkingTokens))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = retryMaxElapsedTime
	policy := backoff.WithContext(backoff.WithMaxRetries(b, retryMaxAttempts-1), ctx)

	var result *anthropic.Message
	err := backoff.Retry(func() error {
		msg, callErr := r.client.Messages.New(ctx, params)
		if callErr != nil {
			class := errclass.Classify(callErr)
			if !class.Retryable() {
				return backoff.Permanent(callErr)
			}
			logging.Warn().Err(callErr).Str("category", string(class)).Msg("retrying anthropic call")
			return callErr
		}
		result = msg
		return nil
	}, policy)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *AnthropicRuntime) runToolUse(ctx context.Context, resp *anthropic.Message, canUseTool CanUseTool, onMessage OnMessage) ([]anthropic.ContentBlockParamUnion, bool) {
	var results []anthropic.ContentBlockParamUnion
	for _, block := range resp.Content {
		if block.Type != "tool_use" {
			continue
		}
		toolUse := block.AsToolUse()
		input := json.RawMessage(toolUse.Input)

		onMessage(RuntimeMessage{
			Kind:      KindToolUse,
			ToolUseID: toolUse.ID,
			ToolName:  toolUse.Name,
			ToolInput: input,
		})

		decision, err := canUseTool(ctx, types.CanUseToolRequest{
			ToolName:  toolUse.Name,
			Input:     input,
			ToolUseID: toolUse.ID,
		})
		if err != nil {
			results = append(results, anthropic.NewToolResultBlock(toolUse.ID, err.Error(), true))
			continue
		}
		if !decision.Allowed {
			onMessage(RuntimeMessage{Kind: KindToolResult, ToolUseID: toolUse.ID, ToolError: true})
			if decision.Interrupt {
				return results, true
			}
			results = append(results, anthropic.NewToolResultBlock(toolUse.ID, decision.Message, true))
			continue
		}

		onMessage(RuntimeMessage{Kind: KindToolResult, ToolUseID: toolUse.ID, ToolBody: decision.UpdatedInput})
		results = append(results, anthropic.NewToolResultBlock(toolUse.ID, string(decision.UpdatedInput), false))
	}
	return results, false
}

func emitContentBlocks(resp *anthropic.Message, onMessage OnMessage) {
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			onMessage(RuntimeMessage{Kind: KindAssistantText, Text: block.AsText().Text})
		case "thinking":
			onMessage(RuntimeMessage{Kind: KindThinking, Text: block.AsThinking().Thinking})
		}
	}
}

func assistantText(resp *anthropic.Message) string {
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	return text
}

func toAnthropicParam(msg types.Message) anthropic.MessageParam {
	if len(msg.Blocks) == 0 {
		return anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text))
	}
	var blocks []anthropic.ContentBlockParamUnion
	for _, b := range msg.Blocks {
		switch b.Type {
		case types.BlockText:
			blocks = append(blocks, anthropic.NewTextBlock(b.Text))
		case types.BlockImage:
			blocks = append(blocks, anthropic.NewImageBlockBase64(b.MediaType, b.Data))
		}
	}
	return anthropic.NewUserMessage(blocks...)
}

func newRuntimeSessionID() string {
	return fmt.Sprintf("sdk-%d", time.Now().UnixNano())
}
