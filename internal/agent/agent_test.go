package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_DescriptionsIncludesBuiltins(t *testing.T) {
	r := NewRegistry()
	descs := r.Descriptions()
	assert.Contains(t, descs, "general-purpose")
}

func TestRegistry_RegisterOverridesBuiltinOnNameCollision(t *testing.T) {
	r := NewRegistry()
	r.Register(Agent{Name: "general-purpose", Description: "custom"})
	descs := r.Descriptions()
	assert.Equal(t, "custom", descs["general-purpose"])
}

func TestRegistry_GetUnknownFails(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("nonexistent")
	assert.False(t, ok)
}

func TestRegistry_GetConfigured(t *testing.T) {
	r := NewRegistry()
	r.Register(Agent{Name: "reviewer", Description: "reviews code"})
	a, ok := r.Get("reviewer")
	require.True(t, ok)
	assert.Equal(t, "reviews code", a.Description)
}
