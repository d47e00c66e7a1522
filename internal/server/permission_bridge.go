package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/agentcore/turnengine/internal/event"
	"github.com/agentcore/turnengine/internal/permission"
)

// HTTPPrompter bridges the Permission Arbiter's synchronous ToolPrompter
// contract across the HTTP/SSE boundary: PromptTool publishes a
// permission.required event carrying a fresh permission id and blocks on a
// channel until POST /permission/{permissionID} resolves it, or ctx is
// cancelled (the turn is interrupted).
type HTTPPrompter struct {
	mu        sync.Mutex
	pending   map[string]chan permission.ToolPromptResponse
	pendingQ  map[string]chan []json.RawMessage
}

// NewHTTPPrompter builds the permission/question bridge shared by the
// Arbiter and the HTTP handlers that resolve its pending prompts.
func NewHTTPPrompter() *HTTPPrompter {
	return &HTTPPrompter{
		pending:  make(map[string]chan permission.ToolPromptResponse),
		pendingQ: make(map[string]chan []json.RawMessage),
	}
}

// permissionRequestEvent is the payload published on event.PermissionRequired.
type permissionRequestEvent struct {
	PermissionID string          `json:"permissionId"`
	ToolName     string          `json:"toolName"`
	ToolUseID    string          `json:"toolUseId"`
	Input        json.RawMessage `json:"input"`
}

func (p *HTTPPrompter) PromptTool(ctx context.Context, req permission.ToolPromptRequest) (permission.ToolPromptResponse, error) {
	permissionID := ulid.Make().String()
	reply := make(chan permission.ToolPromptResponse, 1)

	p.mu.Lock()
	p.pending[permissionID] = reply
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, permissionID)
		p.mu.Unlock()
	}()

	event.Publish(event.Event{
		Type: event.PermissionRequired,
		Data: permissionRequestEvent{
			PermissionID: permissionID,
			ToolName:     req.ToolName,
			ToolUseID:    req.ToolUseID,
			Input:        req.Input,
		},
	})

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return permission.ToolPromptResponse{}, ctx.Err()
	}
}

// Resolve delivers a UI's answer to a pending prompt. It reports false if
// permissionID is unknown or already resolved.
func (p *HTTPPrompter) Resolve(permissionID string, resp permission.ToolPromptResponse) bool {
	p.mu.Lock()
	reply, ok := p.pending[permissionID]
	p.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case reply <- resp:
		return true
	default:
		return false
	}
}

// questionRequestEvent is the payload published on event.QuestionRequired.
type questionRequestEvent struct {
	ToolUseID string            `json:"toolUseId"`
	Questions []json.RawMessage `json:"questions"`
}

// PromptQuestions implements permission.QuestionPrompter the same way
// PromptTool implements permission.ToolPrompter: publish, block, resolve
// via the matching HTTP endpoint.
func (p *HTTPPrompter) PromptQuestions(ctx context.Context, toolUseID string, questions []json.RawMessage) ([]json.RawMessage, error) {
	reply := make(chan []json.RawMessage, 1)

	p.mu.Lock()
	p.pendingQ[toolUseID] = reply
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pendingQ, toolUseID)
		p.mu.Unlock()
	}()

	event.Publish(event.Event{
		Type: event.QuestionRequired,
		Data: questionRequestEvent{ToolUseID: toolUseID, Questions: questions},
	})

	select {
	case answers := <-reply:
		return answers, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ResolveQuestions delivers a UI's answers to a pending AskUserQuestion
// prompt. It reports false if toolUseID is unknown or already resolved.
func (p *HTTPPrompter) ResolveQuestions(toolUseID string, answers []json.RawMessage) bool {
	p.mu.Lock()
	reply, ok := p.pendingQ[toolUseID]
	p.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case reply <- answers:
		return true
	default:
		return false
	}
}
