package types

import "time"

// Context is the per-session working environment: the directory the agent
// operates in, the merged config view, and any sub-agents active in the
// session.
type Context struct {
	WorkingDirectory string          `json:"workingDirectory"`
	ResolvedConfig   ResolvedConfig  `json:"resolvedConfig"`
	ActiveAgents     []string        `json:"activeAgents,omitempty"`
}

// ResolvedConfig is the merged {user, project, local} configuration view.
// Merge is right-biased for scalars and replacement (not concatenation) for
// arrays: local overrides project overrides user.
type ResolvedConfig struct {
	Model                         string          `json:"model,omitempty"`
	AllowedTools                  []string        `json:"allowedTools,omitempty"`
	DisallowedTools               []string        `json:"disallowedTools,omitempty"`
	AllowedCommands               []string        `json:"allowedCommands,omitempty"`
	DisallowedCommands            []string        `json:"disallowedCommands,omitempty"`
	MaxTurns                      int             `json:"maxTurns,omitempty"`
	MaxBudgetUSD                  float64         `json:"maxBudgetUsd,omitempty"`
	MaxThinkingTokens             int             `json:"maxThinkingTokens,omitempty"`
	Sandbox                       map[string]any  `json:"sandbox,omitempty"`
}

// Stats aggregates token/cost/message counters over a session's messages.
type Stats struct {
	InputTokens        int    `json:"inputTokens"`
	OutputTokens        int    `json:"outputTokens"`
	CostUSD             float64 `json:"costUsd"`
	MessageCount        int    `json:"messageCount"`
	LastMessagePreview  string `json:"lastMessagePreview"`
}

// Session is a durable conversation unit.
type Session struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"createdAt"`
	LastAccessedAt   time.Time `json:"lastAccessedAt"`
	WorkingDirectory string    `json:"workingDirectory"`
	Expired          bool      `json:"expired"`
	RuntimeSessionID string    `json:"sdkSessionId,omitempty"`
	ParentSessionID  string    `json:"parentSessionId,omitempty"`
	Stats            Stats     `json:"stats"`

	Messages    []*Message  `json:"-"`
	SessionCtx  Context     `json:"-"`
	Checkpoints []Checkpoint `json:"-"`
}

// Checkpoint is a snapshot taken immediately before a user turn is
// dispatched to the runtime. Its ID equals the triggering user message's ID.
type Checkpoint struct {
	ID               string    `json:"id"`
	Description      string    `json:"description"`
	CapturedAt       time.Time `json:"capturedAt"`
	RuntimeSessionID string    `json:"runtimeSessionId,omitempty"`
}
