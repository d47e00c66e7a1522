package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/agentcore/turnengine/internal/agent"
	"github.com/agentcore/turnengine/internal/config"
	"github.com/agentcore/turnengine/internal/engine"
	"github.com/agentcore/turnengine/internal/logging"
	"github.com/agentcore/turnengine/internal/permission"
	"github.com/agentcore/turnengine/internal/runtime"
	"github.com/agentcore/turnengine/internal/server"
	"github.com/agentcore/turnengine/internal/store"
	"github.com/agentcore/turnengine/internal/tool"
	"github.com/agentcore/turnengine/pkg/types"
)

func logWarnNoAPIKey() {
	logging.Warn().Msg("ANTHROPIC_API_KEY is not set; runtime calls will fail authentication")
}

const sessionExpiryWindow = 30 * 24 * time.Hour

// wired bundles every collaborator a command needs, assembled the same
// way regardless of which surface (serve or run) drives the Engine.
type wired struct {
	store    *store.Store
	arbiter  *permission.Arbiter
	eng      *engine.Engine
	agents   *agent.Registry
	prompter *server.HTTPPrompter
	cfg      types.ResolvedConfig
}

// wire loads configuration, initializes paths, and constructs the
// Session Store / Permission Arbiter / Turn Engine bound to a real
// Anthropic runtime. callbacks lets each command decide how runtime
// messages reach the user (stdout for run, the event bus for serve).
func wire(workDir string, callbacks engine.Callbacks) (*wired, error) {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, fmt.Errorf("ensure paths: %w", err)
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if globalModel != "" {
		cfg.Model = globalModel
	}

	st, err := store.New(paths.SessionsPath(), sessionExpiryWindow)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	catalog := tool.New()
	prompter := server.NewHTTPPrompter()
	arb := permission.New(types.PermissionConfig{Mode: types.ModeDefault}, catalog, prompter, prompter, nil)

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		logWarnNoAPIKey()
	}
	rt := runtime.NewAnthropicRuntime(apiKey)

	agents := agent.NewRegistry()

	eng := engine.New(rt, arb, st, callbacks, func(runtimeSessionID string) {})
	eng.SetConfiguredAgents(agents.Descriptions())

	return &wired{store: st, arbiter: arb, eng: eng, agents: agents, prompter: prompter, cfg: cfg}, nil
}
