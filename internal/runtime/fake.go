package runtime

import (
	"context"

	"github.com/agentcore/turnengine/internal/message"
	"github.com/agentcore/turnengine/pkg/types"
)

// FakeHandle is a no-op Handle for tests.
type FakeHandle struct {
	RewindErr  error
	SetModeErr error
	Rewound    []string
	ModesSet   []types.PermissionMode
}

func (h *FakeHandle) RewindFiles(checkpointID string) error {
	h.Rewound = append(h.Rewound, checkpointID)
	return h.RewindErr
}

func (h *FakeHandle) SetMode(ctx context.Context, mode types.PermissionMode) error {
	h.ModesSet = append(h.ModesSet, mode)
	return h.SetModeErr
}

// ScriptedRuntime is a deterministic Runtime double driven by a fixed
// sequence of RuntimeMessages, used to exercise the Turn Engine without a
// real API dependency.
type ScriptedRuntime struct {
	Script  []RuntimeMessage
	Handle  *FakeHandle
	Queried int
}

// Query ignores the message source content and simply replays Script,
// pulling one message from the source to mirror the real adapter's
// "one history append per incoming message" shape before emitting.
func (s *ScriptedRuntime) Query(ctx context.Context, messages MessageSource, opts message.QueryOptions, canUseTool CanUseTool, onMessage OnMessage, onQueryCreated OnQueryCreated) error {
	s.Queried++
	if s.Handle == nil {
		s.Handle = &FakeHandle{}
	}
	if onQueryCreated != nil {
		onQueryCreated(s.Handle)
	}

	if _, ok := messages.Next(ctx); !ok {
		return nil
	}

	for _, m := range s.Script {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if m.Kind == KindToolUse && canUseTool != nil {
			decision, err := canUseTool(ctx, types.CanUseToolRequest{
				ToolName:  m.ToolName,
				Input:     m.ToolInput,
				ToolUseID: m.ToolUseID,
			})
			if err != nil {
				return err
			}
			if !decision.Allowed && decision.Interrupt {
				onMessage(m)
				return nil
			}
		}
		onMessage(m)
	}
	return nil
}
