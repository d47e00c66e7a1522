package permission

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/turnengine/pkg/types"
)

type stubPrompter struct {
	resp ToolPromptResponse
	err  error
}

func (s stubPrompter) PromptTool(ctx context.Context, req ToolPromptRequest) (ToolPromptResponse, error) {
	return s.resp, s.err
}

type stubQuestioner struct {
	answers []json.RawMessage
	err     error
}

func (s stubQuestioner) PromptQuestions(ctx context.Context, toolUseID string, questions []json.RawMessage) ([]json.RawMessage, error) {
	return s.answers, s.err
}

func TestDecide_CancelSignal_DeniesWithInterrupt(t *testing.T) {
	a := New(types.PermissionConfig{Mode: types.ModeDefault}, nil, nil, nil, nil)
	dec, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{
		ToolName: "Read", CancelSignal: true, ToolUseID: "T0",
	})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.True(t, dec.Interrupt)
	assert.Equal(t, "Request aborted", dec.Message)
}

// Scenario 2: permission prompt, user approves.
func TestDecide_DefaultMode_DangerousTool_PromptApproved(t *testing.T) {
	a := New(types.PermissionConfig{Mode: types.ModeDefault}, nil,
		stubPrompter{resp: ToolPromptResponse{Approved: true}}, nil, nil)

	input := json.RawMessage(`{"command":"ls"}`)
	dec, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{
		ToolName: "Bash", Input: input, ToolUseID: "T1",
	})
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, "T1", dec.ToolUseID)
	assert.JSONEq(t, string(input), string(dec.UpdatedInput))
}

func TestDecide_DefaultMode_SafeTool_AllowsWithoutPrompt(t *testing.T) {
	a := New(types.PermissionConfig{Mode: types.ModeDefault}, nil, nil, nil, nil)
	dec, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{ToolName: "Read", ToolUseID: "T1b"})
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}

// Scenario 3: plan mode blocks writes, no prompt invoked.
func TestDecide_PlanMode_BlocksWrite_NoPrompt(t *testing.T) {
	promptCalled := false
	a := New(types.PermissionConfig{Mode: types.ModePlan}, nil,
		stubPrompter{resp: ToolPromptResponse{Approved: true}}, nil, nil)
	a.prompter = promptCallTracker{&promptCalled}

	dec, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{
		ToolName: "Write", Input: json.RawMessage(`{"path":"x","content":"y"}`), ToolUseID: "T2",
	})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, "Plan mode: tool execution disabled", dec.Message)
	assert.False(t, promptCalled)
}

type promptCallTracker struct{ called *bool }

func (p promptCallTracker) PromptTool(ctx context.Context, req ToolPromptRequest) (ToolPromptResponse, error) {
	*p.called = true
	return ToolPromptResponse{Approved: true}, nil
}

func TestDecide_PlanMode_AllowsReadGrepGlobExitPlanMode(t *testing.T) {
	a := New(types.PermissionConfig{Mode: types.ModePlan}, nil, nil, nil, nil)
	for _, tool := range []string{"Read", "Grep", "Glob", "ExitPlanMode"} {
		dec, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{ToolName: tool, ToolUseID: "t"})
		require.NoError(t, err)
		assert.Truef(t, dec.Allowed, "expected %s to be allowed in plan mode", tool)
	}
}

// Scenario 4: MCP wildcard disallow.
func TestDecide_MCPModuleDisallow(t *testing.T) {
	a := New(types.PermissionConfig{
		Mode:             types.ModeDefault,
		DisallowedTools:  []string{"mcp__github"},
	}, nil, nil, nil, nil)

	dec, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{
		ToolName: "mcp__github__create_issue", ToolUseID: "T3",
	})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Contains(t, dec.Message, "is in disallowed list")
}

func TestDecide_MCPExplicitWildcardDisallow(t *testing.T) {
	a := New(types.PermissionConfig{
		Mode:            types.ModeDefault,
		DisallowedTools: []string{"mcp__github__*"},
	}, nil, nil, nil, nil)

	dec, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{
		ToolName: "mcp__github__create_issue", ToolUseID: "T3b",
	})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
}

func TestDecide_AllowedToolsList_RejectsUnlisted(t *testing.T) {
	a := New(types.PermissionConfig{
		Mode:         types.ModeDefault,
		AllowedTools: []string{"Read"},
	}, nil, nil, nil, nil)

	dec, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{ToolName: "Grep", ToolUseID: "t"})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Contains(t, dec.Message, "is not in allowed list")
}

func TestDecide_BypassFlag_AllowsDangerousTool(t *testing.T) {
	a := New(types.PermissionConfig{
		Mode:                            types.ModeDefault,
		AllowDangerouslySkipPermissions: true,
	}, nil, nil, nil, nil)

	dec, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{
		ToolName: "Bash", Input: json.RawMessage(`{"command":"rm -rf /"}`), ToolUseID: "t",
	})
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}

func TestDecide_BypassFlag_StillPromptsAskUserQuestion(t *testing.T) {
	a := New(types.PermissionConfig{
		Mode:                            types.ModeDefault,
		AllowDangerouslySkipPermissions: true,
	}, nil, nil, stubQuestioner{answers: []json.RawMessage{[]byte(`"yes"`)}}, nil)

	dec, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{
		ToolName: "AskUserQuestion", Input: json.RawMessage(`{"questions":[{"q":"continue?"}]}`), ToolUseID: "t",
	})
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}

func TestDecide_BashDisallowCommandPattern(t *testing.T) {
	a := New(types.PermissionConfig{
		Mode:               types.ModeDefault,
		DisallowedCommands: []string{"rm *"},
	}, nil, stubPrompter{resp: ToolPromptResponse{Approved: true}}, nil, nil)

	dec, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{
		ToolName: "Bash", Input: json.RawMessage(`{"command":"rm -rf /tmp/x"}`), ToolUseID: "t",
	})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
}

func TestDecide_BashAllowCommandPattern(t *testing.T) {
	a := New(types.PermissionConfig{
		Mode:            types.ModeDefault,
		AllowedCommands: []string{"ls"},
	}, nil, nil, nil, nil)

	dec, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{
		ToolName: "Bash", Input: json.RawMessage(`{"command":"ls -la"}`), ToolUseID: "t",
	})
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}

func TestDecide_AskUserQuestion_NoQuestions_Denies(t *testing.T) {
	a := New(types.PermissionConfig{Mode: types.ModeDefault}, nil, nil, stubQuestioner{}, nil)
	dec, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{
		ToolName: "AskUserQuestion", Input: json.RawMessage(`{"questions":[]}`), ToolUseID: "t",
	})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
}

func TestDecide_AskUserQuestion_CollectsAnswers(t *testing.T) {
	a := New(types.PermissionConfig{Mode: types.ModeDefault}, nil, nil,
		stubQuestioner{answers: []json.RawMessage{[]byte(`"blue"`)}}, nil)

	dec, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{
		ToolName: "AskUserQuestion",
		Input:    json.RawMessage(`{"questions":[{"prompt":"favorite color?"}]}`),
		ToolUseID: "t",
	})
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Contains(t, string(dec.UpdatedInput), "blue")
}

func TestDecide_AcceptEditsMode_AllowsWriteEdit_PromptsOthers(t *testing.T) {
	promptCalled := false
	a := New(types.PermissionConfig{Mode: types.ModeAcceptEdits}, nil, promptCallTracker{&promptCalled}, nil, nil)

	dec, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{ToolName: "Write", ToolUseID: "t1"})
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.False(t, promptCalled)

	dec2, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{ToolName: "Bash", Input: json.RawMessage(`{"command":"ls"}`), ToolUseID: "t2"})
	require.NoError(t, err)
	assert.True(t, dec2.Allowed)
	assert.True(t, promptCalled)
}

func TestDecide_BypassPermissionsMode_AllowsEverything(t *testing.T) {
	a := New(types.PermissionConfig{Mode: types.ModeBypassPermissions}, nil, nil, nil, nil)
	dec, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{ToolName: "Bash", Input: json.RawMessage(`{}`), ToolUseID: "t"})
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}

func TestDecide_PromptRejected_DeniesWithReason(t *testing.T) {
	a := New(types.PermissionConfig{Mode: types.ModeDefault}, nil,
		stubPrompter{resp: ToolPromptResponse{Approved: false, Reason: "not now"}}, nil, nil)

	dec, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{ToolName: "Write", ToolUseID: "t"})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, "not now", dec.Message)
}

func TestDecide_PromptRejected_DefaultReasonWhenEmpty(t *testing.T) {
	a := New(types.PermissionConfig{Mode: types.ModeDefault}, nil,
		stubPrompter{resp: ToolPromptResponse{Approved: false}}, nil, nil)

	dec, err := a.Decide(context.Background(), "s1", types.CanUseToolRequest{ToolName: "Write", ToolUseID: "t"})
	require.NoError(t, err)
	assert.Equal(t, "User denied permission", dec.Message)
}

func TestSetMode_UpdatesLocalModeBeforeRuntimeCall(t *testing.T) {
	var seen types.PermissionMode
	a := New(types.PermissionConfig{Mode: types.ModeDefault}, nil, nil, nil,
		runtimeSetterFunc(func(ctx context.Context, mode types.PermissionMode) error {
			seen = mode
			return nil
		}))

	err := a.SetMode(context.Background(), types.ModePlan)
	require.NoError(t, err)
	assert.Equal(t, types.ModePlan, a.Mode())
	assert.Equal(t, types.ModePlan, seen)
}

type runtimeSetterFunc func(ctx context.Context, mode types.PermissionMode) error

func (f runtimeSetterFunc) SetMode(ctx context.Context, mode types.PermissionMode) error { return f(ctx, mode) }

func TestSetMode_RuntimeFailure_LeavesLocalModeUpdated(t *testing.T) {
	a := New(types.PermissionConfig{Mode: types.ModeDefault}, nil, nil, nil,
		runtimeSetterFunc(func(ctx context.Context, mode types.PermissionMode) error {
			return assertError{}
		}))

	err := a.SetMode(context.Background(), types.ModePlan)
	require.Error(t, err)
	assert.Equal(t, types.ModePlan, a.Mode())
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestDoomLoop_TriggersOnThirdIdenticalCall(t *testing.T) {
	a := New(types.PermissionConfig{Mode: types.ModeDefault}, nil, nil, nil, nil)
	req := types.CanUseToolRequest{ToolName: "Read", Input: json.RawMessage(`{"path":"a.go"}`), ToolUseID: "t"}

	assert.False(t, a.doom.Check("s1", req.ToolName, req.Input))
	assert.False(t, a.doom.Check("s1", req.ToolName, req.Input))
	assert.True(t, a.doom.Check("s1", req.ToolName, req.Input))
}

func TestDoomLoop_ResetClearsHistory(t *testing.T) {
	a := New(types.PermissionConfig{Mode: types.ModeDefault}, nil, nil, nil, nil)
	input := json.RawMessage(`{"path":"a.go"}`)
	a.doom.Check("s1", "Read", input)
	a.doom.Check("s1", "Read", input)
	a.ResetDoomLoop("s1")
	assert.False(t, a.doom.Check("s1", "Read", input))
}
