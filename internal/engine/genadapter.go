package engine

import (
	"context"

	"github.com/agentcore/turnengine/internal/generator"
	"github.com/agentcore/turnengine/pkg/types"
)

// genSource adapts a *generator.Generator to runtime.MessageSource.
type genSource struct {
	gen *generator.Generator
}

func (s genSource) Next(ctx context.Context) (types.Message, bool) {
	sm, ok := s.gen.GenerateCtx(ctx)
	if !ok {
		return types.Message{}, false
	}
	return sm.Message, true
}
