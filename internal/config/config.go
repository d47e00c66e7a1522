package config

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/tidwall/jsonc"

	"github.com/agentcore/turnengine/pkg/types"
)

// defaultModel is used when no layer sets a model and TURNENGINE_MODEL is
// unset.
const defaultModel = "sonnet"

// fileLayer is the on-disk shape of one config layer. Every field is a
// pointer or a nilable slice/map so Load can tell "absent" apart from
// "explicitly set to the zero value" when merging.
type fileLayer struct {
	Model              *string         `json:"model"`
	AllowedTools       []string        `json:"allowedTools"`
	DisallowedTools    []string        `json:"disallowedTools"`
	AllowedCommands    []string        `json:"allowedCommands"`
	DisallowedCommands []string        `json:"disallowedCommands"`
	MaxTurns           *int            `json:"maxTurns"`
	MaxBudgetUSD       *float64        `json:"maxBudgetUsd"`
	MaxThinkingTokens  *int            `json:"maxThinkingTokens"`
	Sandbox            map[string]any  `json:"sandbox"`
}

// Load merges configuration in priority order — global, then project, then
// local, then environment overrides — right-biased: a later layer's scalar
// replaces an earlier one's, and a later layer's array replaces (never
// concatenates with) an earlier one's.
func Load(directory string) (types.ResolvedConfig, error) {
	var resolved types.ResolvedConfig

	for _, path := range []string{GlobalConfigPath(), ProjectConfigPath(directory), LocalConfigPath(directory)} {
		layer, err := readLayer(path)
		if err != nil {
			return resolved, err
		}
		if layer != nil {
			applyLayer(&resolved, layer)
		}
	}

	applyEnvOverrides(&resolved)

	if resolved.Model == "" {
		resolved.Model = defaultModel
	}

	return resolved, nil
}

// readLayer reads and JSONC-decodes one config file. A missing file is not
// an error: it simply contributes nothing to the merge.
func readLayer(path string) (*fileLayer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var layer fileLayer
	if err := json.Unmarshal(jsonc.ToJSON(data), &layer); err != nil {
		return nil, err
	}
	return &layer, nil
}

// applyLayer merges layer into target per the right-biased, replace-not-
// concatenate rule: any field the layer sets (non-nil) fully replaces the
// corresponding field on target.
func applyLayer(target *types.ResolvedConfig, layer *fileLayer) {
	if layer.Model != nil {
		target.Model = *layer.Model
	}
	if layer.AllowedTools != nil {
		target.AllowedTools = layer.AllowedTools
	}
	if layer.DisallowedTools != nil {
		target.DisallowedTools = layer.DisallowedTools
	}
	if layer.AllowedCommands != nil {
		target.AllowedCommands = layer.AllowedCommands
	}
	if layer.DisallowedCommands != nil {
		target.DisallowedCommands = layer.DisallowedCommands
	}
	if layer.MaxTurns != nil {
		target.MaxTurns = *layer.MaxTurns
	}
	if layer.MaxBudgetUSD != nil {
		target.MaxBudgetUSD = *layer.MaxBudgetUSD
	}
	if layer.MaxThinkingTokens != nil {
		target.MaxThinkingTokens = *layer.MaxThinkingTokens
	}
	if layer.Sandbox != nil {
		target.Sandbox = layer.Sandbox
	}
}

// applyEnvOverrides applies the fixed set of environment overrides, which
// outrank every file layer.
func applyEnvOverrides(target *types.ResolvedConfig) {
	if model := os.Getenv("TURNENGINE_MODEL"); model != "" {
		target.Model = model
	}
}

// FileCheckpointingEnabled reports whether the SDK file-checkpointing
// feature flag is set, per the spec's fixed environment variable name.
func FileCheckpointingEnabled() bool {
	return os.Getenv("CLAUDE_CODE_ENABLE_SDK_FILE_CHECKPOINTING") == "1"
}

// SessionExpiryHours returns the configured session expiry window in
// hours, defaulting to 5.
func SessionExpiryHours() int {
	if v := os.Getenv("TURNENGINE_SESSION_EXPIRY_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil {
			return hours
		}
	}
	return 5
}
