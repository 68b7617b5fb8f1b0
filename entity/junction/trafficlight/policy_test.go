package trafficlight_test

import (
	"testing"

	"github.com/Code-trac/aito-dep/entity/junction/trafficlight"
	"github.com/stretchr/testify/assert"
)

func TestBaseTimer(t *testing.T) {
	p := trafficlight.DefaultPolicy()
	assert.Equal(t, 0.0, p.BaseTimer(0))
	assert.Equal(t, 0.0, p.BaseTimer(-3))
	assert.InDelta(t, 22.0, p.BaseTimer(30), 1e-9)
	assert.Equal(t, 50.0, p.BaseTimer(100))
	// 密度比例先限制在[0, 1]
	assert.Equal(t, 50.0, p.BaseTimer(180))
}

func TestEnvironmentMultiplier(t *testing.T) {
	p := trafficlight.DefaultPolicy()
	assert.Equal(t, 1.0, p.EnvironmentMultiplier(false, false))
	assert.InDelta(t, 1.25, p.EnvironmentMultiplier(true, false), 1e-9)
	assert.InDelta(t, 1.10, p.EnvironmentMultiplier(false, true), 1e-9)
	assert.InDelta(t, 1.35, p.EnvironmentMultiplier(true, true), 1e-9)
}

func TestTimerForLane(t *testing.T) {
	p := trafficlight.DefaultPolicy()
	for _, rain := range []bool{false, true} {
		for _, peak := range []bool{false, true} {
			assert.Equal(t, 0.0, p.TimerForLane(0, rain, peak))
			// 小于等于空车道阈值视为空车道
			assert.Equal(t, 0.0, p.TimerForLane(0.1, rain, peak))
			assert.Equal(t, 50.0, p.TimerForLane(100, rain, peak))
		}
	}
	assert.Equal(t, 50.0, p.TimerForLane(100, false, false))
	assert.InDelta(t, 22.0, p.TimerForLane(30, false, false), 1e-9)
	assert.InDelta(t, 27.5, p.TimerForLane(30, true, false), 1e-9)
	assert.InDelta(t, 29.7, p.TimerForLane(30, true, true), 1e-9)
	assert.InDelta(t, 10.08, p.TimerForLane(0.2, false, false), 1e-9)
}

func TestRuleTimers(t *testing.T) {
	p := trafficlight.DefaultPolicy()
	timers := p.RuleTimers([]float64{100, 0, 30, 0}, false, false)
	assert.Len(t, timers, 4)
	assert.Equal(t, 50.0, timers[0])
	assert.Equal(t, 0.0, timers[1])
	assert.InDelta(t, 22.0, timers[2], 1e-9)
	assert.Equal(t, 0.0, timers[3])

	assert.Equal(t, []float64{10, 0, 0, 0}, p.EmptyTimers([]float64{5, 0.1, 0, 0}))
}
