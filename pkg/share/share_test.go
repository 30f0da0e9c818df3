package share

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nusrobomaster/autoaim/pkg/state"
)

func TestSlotEmpty(t *testing.T) {
	var s Slot[int]
	v, ver := s.Snapshot()
	assert.Nil(t, v)
	assert.Equal(t, uint64(0), ver)
}

func TestSlotPublishSnapshot(t *testing.T) {
	var s Slot[int]
	x := 42
	assert.Equal(t, uint64(1), s.Publish(&x))

	v, ver := s.Snapshot()
	require.NotNil(t, v)
	assert.Equal(t, 42, *v)
	assert.Equal(t, uint64(1), ver)

	y := 7
	assert.Equal(t, uint64(2), s.Publish(&y))
	v, ver = s.Snapshot()
	assert.Equal(t, 7, *v)
	assert.Equal(t, uint64(2), ver)
}

func TestSlotVersionsMonotone(t *testing.T) {
	var s Slot[state.RobotState]
	var last uint64
	for i := 0; i < 1000; i++ {
		ver := s.Publish(&state.RobotState{ClassID: i})
		assert.Greater(t, ver, last)
		last = ver
	}
}

// A reader that observes version v must see the value published at v or a
// newer one, under a concurrent producer.
func TestSlotConcurrent(t *testing.T) {
	var s Slot[uint64]
	const rounds = 100000

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= rounds; i++ {
			v := i
			s.Publish(&v)
		}
	}()
	go func() {
		defer wg.Done()
		var lastVer, lastVal uint64
		for {
			val, ver := s.Snapshot()
			assert.GreaterOrEqual(t, ver, lastVer)
			if val != nil {
				// The payload equals its publish version here, so the
				// ordering contract is directly observable.
				assert.GreaterOrEqual(t, *val, ver)
				assert.GreaterOrEqual(t, *val, lastVal)
				lastVal = *val
			}
			lastVer = ver
			if ver >= rounds {
				return
			}
		}
	}()
	wg.Wait()
}

func TestScalars(t *testing.T) {
	var s Scalars
	assert.Equal(t, 0.0, s.BulletSpeed())
	s.SetBulletSpeed(24.5)
	assert.Equal(t, 24.5, s.BulletSpeed())
}
