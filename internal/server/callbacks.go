package server

import (
	"encoding/json"

	"github.com/agentcore/turnengine/internal/engine"
	"github.com/agentcore/turnengine/internal/event"
)

// AssistantTextEvent is the payload published on event.AssistantTextDelta.
type AssistantTextEvent struct {
	Text string `json:"text"`
}

// ToolUseEvent is the payload published on event.ToolUseStarted.
type ToolUseEvent struct {
	ToolUseID string          `json:"toolUseId"`
	ToolName  string          `json:"toolName"`
	Input     json.RawMessage `json:"input"`
}

// ToolResultEvent is the payload published on event.ToolResultReceived.
type ToolResultEvent struct {
	ToolUseID string          `json:"toolUseId"`
	Body      json.RawMessage `json:"body"`
	IsError   bool            `json:"isError"`
}

// NewEventCallbacks builds engine.Callbacks that republish every runtime
// message onto the event bus, so SSE clients receive them without the
// Engine importing anything HTTP-shaped.
func NewEventCallbacks() engine.Callbacks {
	return engine.Callbacks{
		OnAssistantText: func(text string) {
			event.Publish(event.Event{Type: event.AssistantTextDelta, Data: AssistantTextEvent{Text: text}})
		},
		OnThinking: func(text string) {
			event.Publish(event.Event{Type: event.ThinkingDelta, Data: AssistantTextEvent{Text: text}})
		},
		OnToolUse: func(toolUseID, toolName string, input json.RawMessage) {
			event.Publish(event.Event{Type: event.ToolUseStarted, Data: ToolUseEvent{ToolUseID: toolUseID, ToolName: toolName, Input: input}})
		},
		OnToolResult: func(toolUseID string, body json.RawMessage, isError bool) {
			event.Publish(event.Event{Type: event.ToolResultReceived, Data: ToolResultEvent{ToolUseID: toolUseID, Body: body, IsError: isError}})
		},
	}
}
