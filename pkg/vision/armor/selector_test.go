package armor

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nusrobomaster/autoaim/pkg/state"
)

func groupAt(class int, z float64) Group {
	return Group{
		ClassID: class,
		Armors:  []state.Detection{{ClassID: class, TVec: mgl64.Vec3{0, 0, z}}},
	}
}

func TestSelectorAcquiresNearest(t *testing.T) {
	s := NewSelector(0.5)

	g, ok, reacquired := s.Select([]Group{groupAt(3, 5), groupAt(7, 3)}, 0.02)
	require.True(t, ok)
	assert.True(t, reacquired)
	assert.Equal(t, 7, g.ClassID)

	id, tracking := s.Tracked()
	assert.True(t, tracking)
	assert.Equal(t, 7, id)
}

func TestSelectorGraceWindow(t *testing.T) {
	const maxTTL = 0.5
	const dt = 0.02
	s := NewSelector(maxTTL)

	_, ok, _ := s.Select([]Group{groupAt(7, 3)}, dt)
	require.True(t, ok)

	// A few empty frames keep the identity.
	for i := 0; i < 3; i++ {
		_, ok, _ := s.Select(nil, dt)
		assert.False(t, ok)
	}
	id, tracking := s.Tracked()
	require.True(t, tracking)
	assert.Equal(t, 7, id)

	// Draining the TTL clears it.
	for i := 0; i < int(maxTTL/dt)+1; i++ {
		s.Select(nil, dt)
	}
	_, tracking = s.Tracked()
	assert.False(t, tracking)
}

func TestSelectorSticksToTrackedID(t *testing.T) {
	s := NewSelector(0.5)
	s.Select([]Group{groupAt(7, 3)}, 0.02)

	// A nearer robot appears: identity must not switch.
	g, ok, reacquired := s.Select([]Group{groupAt(3, 1), groupAt(7, 4)}, 0.02)
	require.True(t, ok)
	assert.False(t, reacquired)
	assert.Equal(t, 7, g.ClassID)
}

func TestSelectorReacquiresAfterLoss(t *testing.T) {
	const dt = 0.02
	s := NewSelector(0.05)
	s.Select([]Group{groupAt(7, 3)}, dt)

	// The tracked robot vanishes while another stays visible. Identity is
	// held through the grace window, then the selector falls back to the
	// best visible group.
	var g Group
	var ok, reacquired bool
	for i := 0; i < 10 && !ok; i++ {
		g, ok, reacquired = s.Select([]Group{groupAt(3, 2)}, dt)
	}
	require.True(t, ok)
	assert.True(t, reacquired)
	assert.Equal(t, 3, g.ClassID)
}
