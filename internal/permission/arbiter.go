// Package permission implements the Permission Arbiter: the trust
// boundary between the agent runtime's tool calls and the operator's
// configured policy. It answers a total, deterministic, side-effect-free
// (beyond explicitly requested UI prompts) can-use-tool decision procedure.
package permission

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentcore/turnengine/internal/event"
	"github.com/agentcore/turnengine/pkg/types"
)

// ToolCatalog classifies a tool as requiring a prompt under the default
// mode. It is satisfied by the embedded tool catalog; this package only
// depends on the classification, never the tool implementations.
type ToolCatalog interface {
	Dangerous(toolName string) bool
}

// defaultDangerousTools is used when no ToolCatalog is registered, so the
// arbiter degrades safely rather than silently allowing everything.
var defaultDangerousTools = map[string]bool{
	"Write":        true,
	"Edit":         true,
	"Bash":         true,
	"KillBash":     true,
	"NotebookEdit": true,
}

type staticCatalog struct{}

func (staticCatalog) Dangerous(toolName string) bool { return defaultDangerousTools[toolName] }

// ToolPromptRequest is what the arbiter hands the UI when a tool call
// needs an interactive decision.
type ToolPromptRequest struct {
	ToolName  string
	ToolUseID string
	Input     json.RawMessage
	Timestamp time.Time
}

// ToolPromptResponse is the UI's answer to a ToolPromptRequest.
type ToolPromptResponse struct {
	Approved bool
	Reason   string
}

// ToolPrompter shows the operator a tool-use approval prompt.
type ToolPrompter interface {
	PromptTool(ctx context.Context, req ToolPromptRequest) (ToolPromptResponse, error)
}

// QuestionPrompter shows the operator the AskUserQuestion menu and
// collects answers for the given questions.
type QuestionPrompter interface {
	PromptQuestions(ctx context.Context, toolUseID string, questions []json.RawMessage) (answers []json.RawMessage, err error)
}

// RuntimeModeSetter is the runtime handle's mode-change entry point,
// invoked after the arbiter's own mode has already been updated.
type RuntimeModeSetter interface {
	SetMode(ctx context.Context, mode types.PermissionMode) error
}

// Arbiter is the Permission Arbiter.
type Arbiter struct {
	mu   sync.RWMutex
	cfg  types.PermissionConfig
	doom *doomLoopDetector

	catalog    ToolCatalog
	prompter   ToolPrompter
	questioner QuestionPrompter
	runtime    RuntimeModeSetter
}

// New creates an Arbiter with cfg as its initial configuration. catalog,
// prompter, questioner and runtime may be nil; nil collaborators degrade
// to conservative defaults rather than panicking.
func New(cfg types.PermissionConfig, catalog ToolCatalog, prompter ToolPrompter, questioner QuestionPrompter, runtime RuntimeModeSetter) *Arbiter {
	if catalog == nil {
		catalog = staticCatalog{}
	}
	return &Arbiter{
		cfg:        cfg,
		doom:       newDoomLoopDetector(),
		catalog:    catalog,
		prompter:   prompter,
		questioner: questioner,
		runtime:    runtime,
	}
}

// bashInput is the shape of Bash's tool input that the arbiter cares
// about; other fields in the runtime's actual input are ignored.
type bashInput struct {
	Command string `json:"command"`
}

// askUserQuestionInput is the shape of AskUserQuestion's tool input.
type askUserQuestionInput struct {
	Questions []json.RawMessage `json:"questions"`
}

// Decide runs the can-use-tool decision procedure for sessionID and req,
// first match wins. It never returns an error from policy evaluation
// itself; the only errors surfaced are from tool-permission prompt
// failures, which abort the turn rather than being masked as a deny. An
// error from the AskUserQuestion prompt is answered with a deny carrying
// the error text.
func (a *Arbiter) Decide(ctx context.Context, sessionID string, req types.CanUseToolRequest) (types.PermissionDecision, error) {
	a.mu.RLock()
	cfg := a.cfg
	a.mu.RUnlock()

	if a.doom.Check(sessionID, req.ToolName, req.Input) {
		event.Publish(event.Event{Type: event.PermissionRequired, Data: map[string]any{
			"sessionID": sessionID, "toolName": req.ToolName, "doomLoop": true,
		}})
	}

	// 1. cancel signal
	if req.CancelSignal {
		return types.Deny(req.ToolUseID, "Request aborted", true), nil
	}

	// 2. disallow list
	if toolListMatches(cfg.DisallowedTools, req.ToolName) {
		return types.Deny(req.ToolUseID, fmt.Sprintf("Tool '%s' is in disallowed list", req.ToolName), false), nil
	}

	// 3. allow list (non-empty and no match => deny)
	if len(cfg.AllowedTools) > 0 && !toolListMatches(cfg.AllowedTools, req.ToolName) {
		return types.Deny(req.ToolUseID, fmt.Sprintf("Tool '%s' is not in allowed list", req.ToolName), false), nil
	}

	isAskQuestion := req.ToolName == "AskUserQuestion"

	// 4. bypass flag
	if cfg.AllowDangerouslySkipPermissions && !isAskQuestion {
		return types.Allow(req.ToolUseID, req.Input), nil
	}

	// 6. Bash command pattern matching (step 5 is the AskUserQuestion
	// fall-through, folded into the isAskQuestion guards below).
	if req.ToolName == "Bash" && !isAskQuestion {
		var bi bashInput
		if err := json.Unmarshal(req.Input, &bi); err == nil && bi.Command != "" {
			if matchesAnyCommandPattern(cfg.DisallowedCommands, bi.Command, false) {
				return types.Deny(req.ToolUseID, fmt.Sprintf("Command '%s' is disallowed", bi.Command), false), nil
			}
			if matchesAnyCommandPattern(cfg.AllowedCommands, bi.Command, true) {
				return types.Allow(req.ToolUseID, req.Input), nil
			}
		}
	}

	// 7. mode routing
	if !isAskQuestion {
		switch cfg.Mode {
		case types.ModeBypassPermissions:
			return types.Allow(req.ToolUseID, req.Input), nil
		case types.ModeAcceptEdits:
			if req.ToolName == "Write" || req.ToolName == "Edit" {
				return types.Allow(req.ToolUseID, req.Input), nil
			}
		case types.ModePlan:
			switch req.ToolName {
			case "Read", "Grep", "Glob", "ExitPlanMode":
				return types.Allow(req.ToolUseID, req.Input), nil
			default:
				return types.Deny(req.ToolUseID, "Plan mode: tool execution disabled", false), nil
			}
		default: // ModeDefault
			if !a.catalog.Dangerous(req.ToolName) {
				return types.Allow(req.ToolUseID, req.Input), nil
			}
		}
	}

	if isAskQuestion {
		return a.decideAskUserQuestion(ctx, req)
	}

	// 8. prompt path
	return a.decidePrompt(ctx, req)
}

func (a *Arbiter) decidePrompt(ctx context.Context, req types.CanUseToolRequest) (types.PermissionDecision, error) {
	if a.prompter == nil {
		return types.Deny(req.ToolUseID, "No permission prompt surface registered", false), nil
	}
	resp, err := a.prompter.PromptTool(ctx, ToolPromptRequest{
		ToolName:  req.ToolName,
		ToolUseID: req.ToolUseID,
		Input:     req.Input,
		Timestamp: time.Now(),
	})
	if err != nil {
		return types.PermissionDecision{}, err
	}
	if resp.Approved {
		return types.Allow(req.ToolUseID, req.Input), nil
	}
	reason := resp.Reason
	if reason == "" {
		reason = "User denied permission"
	}
	return types.Deny(req.ToolUseID, reason, false), nil
}

func (a *Arbiter) decideAskUserQuestion(ctx context.Context, req types.CanUseToolRequest) (types.PermissionDecision, error) {
	var in askUserQuestionInput
	if err := json.Unmarshal(req.Input, &in); err != nil || len(in.Questions) == 0 {
		return types.Deny(req.ToolUseID, "AskUserQuestion requires a non-empty questions array", false), nil
	}
	if a.questioner == nil {
		return types.Deny(req.ToolUseID, "No question prompt surface registered", false), nil
	}
	answers, err := a.questioner.PromptQuestions(ctx, req.ToolUseID, in.Questions)
	if err != nil {
		return types.Deny(req.ToolUseID, err.Error(), false), nil
	}
	updated, err := json.Marshal(struct {
		Questions []json.RawMessage `json:"questions"`
		Answers   []json.RawMessage `json:"answers"`
	}{Questions: in.Questions, Answers: answers})
	if err != nil {
		return types.PermissionDecision{}, err
	}
	return types.Allow(req.ToolUseID, updated), nil
}

// SetMode updates the arbiter's mode synchronously, then — if a runtime
// handle is registered — invokes the runtime's mode-change entry point.
// The local write happens-before the runtime call; a runtime-call failure
// leaves the local mode updated, since surfacing the divergence is the
// caller's responsibility, not this method's.
func (a *Arbiter) SetMode(ctx context.Context, mode types.PermissionMode) error {
	a.mu.Lock()
	a.cfg.Mode = mode
	a.mu.Unlock()

	event.Publish(event.Event{Type: event.PermissionModeSet, Data: mode})

	if a.runtime == nil {
		return nil
	}
	return a.runtime.SetMode(ctx, mode)
}

// Mode returns the arbiter's current mode.
func (a *Arbiter) Mode() types.PermissionMode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg.Mode
}

// UpdateConfig replaces the arbiter's full configuration, e.g. after a
// config reload.
func (a *Arbiter) UpdateConfig(cfg types.PermissionConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
}

// ResetDoomLoop clears doom-loop history for a session, e.g. at turn end.
func (a *Arbiter) ResetDoomLoop(sessionID string) {
	a.doom.Reset(sessionID)
}
