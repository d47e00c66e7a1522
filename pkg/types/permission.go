package types

import "encoding/json"

// PermissionMode is the coarse-grained mode the PermissionArbiter operates
// under; it gates the per-tool decision procedure in addition to the
// allow/disallow lists.
type PermissionMode string

const (
	ModeDefault           PermissionMode = "default"
	ModeAcceptEdits       PermissionMode = "acceptEdits"
	ModeBypassPermissions PermissionMode = "bypassPermissions"
	ModePlan              PermissionMode = "plan"
)

// PermissionConfig configures a PermissionArbiter.
type PermissionConfig struct {
	Mode                            PermissionMode
	AllowedTools                    []string
	DisallowedTools                 []string
	AllowDangerouslySkipPermissions bool
	AllowedCommands                 []string
	DisallowedCommands              []string
}

// CanUseToolRequest is the shape of the runtime's can-use-tool callback
// arguments.
type CanUseToolRequest struct {
	ToolName     string
	Input        json.RawMessage
	CancelSignal bool
	ToolUseID    string
}

// PermissionDecision is the arbiter's reply to a can-use-tool callback: a
// tagged variant over allow/deny. Exactly one of Allow/Deny fields applies,
// selected by Allowed.
type PermissionDecision struct {
	Allowed bool

	// allow
	UpdatedInput json.RawMessage
	ToolUseID    string

	// deny
	Message   string
	Interrupt bool
}

// Allow builds an allow decision.
func Allow(toolUseID string, updatedInput json.RawMessage) PermissionDecision {
	return PermissionDecision{Allowed: true, ToolUseID: toolUseID, UpdatedInput: updatedInput}
}

// Deny builds a deny decision.
func Deny(toolUseID, message string, interrupt bool) PermissionDecision {
	return PermissionDecision{Allowed: false, ToolUseID: toolUseID, Message: message, Interrupt: interrupt}
}
