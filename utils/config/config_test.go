package config_test

import (
	"testing"

	"github.com/Code-trac/aito-dep/utils/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeConfigDefaults(t *testing.T) {
	c, err := config.Parse([]byte("control:\n  step:\n    interval: 0.5\n"))
	require.NoError(t, err)
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)

	assert.Len(t, rc.All.Lanes, 4)
	assert.Equal(t, 0.5, rc.C.Step.Interval)
	assert.Equal(t, 10, rc.C.Capacity)
	assert.Equal(t, 10.0, rc.C.Prefetch)
	assert.Equal(t, 1800.0, rc.C.StreakAlert)
	assert.Equal(t, 20.0, rc.C.EmergencyTime)
	assert.True(t, *rc.C.Mock)

	assert.Equal(t, 10.0, rc.All.Signal.MinGreen)
	assert.Equal(t, 50.0, rc.All.Signal.MaxGreen)
	assert.Equal(t, 0.1, rc.All.Signal.ZeroDensity)
	assert.Equal(t, []float64{0.75, 1.0, 1.25, 1.5}, rc.All.Agent.Multipliers)
	assert.Equal(t, 0.2, *rc.All.Agent.Alpha)
	assert.Equal(t, 20000, rc.All.Agent.BufferSize)
	assert.Equal(t, "memory", rc.All.Store.Driver)
}

func TestRuntimeConfigExplicitZeroAlpha(t *testing.T) {
	c, err := config.Parse([]byte("control:\n  step:\n    interval: 1\nagent:\n  alpha: 0\n  epsilon: 0\n"))
	require.NoError(t, err)
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	assert.Equal(t, 0.0, *rc.All.Agent.Alpha)
	assert.Equal(t, 0.0, *rc.All.Agent.Epsilon)
	assert.Equal(t, 0.95, *rc.All.Agent.Gamma)
}

func TestParseStrict(t *testing.T) {
	_, err := config.Parse([]byte("control:\n  unknown_field: 1\n"))
	assert.Error(t, err)
}

func TestRuntimeConfigInvalid(t *testing.T) {
	_, err := config.NewRuntimeConfig(config.Config{Lanes: []config.ROI{}})
	assert.ErrorIs(t, err, config.ErrNoLane)

	_, err = config.NewRuntimeConfig(config.Config{Store: config.Store{Driver: "redis"}})
	assert.Error(t, err)

	_, err = config.NewRuntimeConfig(config.Config{Store: config.Store{Driver: "mongo"}})
	assert.Error(t, err)

	_, err = config.NewRuntimeConfig(config.Config{Mock: config.Mock{Rows: [][]int{{1, 2}}}})
	assert.Error(t, err)

	_, err = config.NewRuntimeConfig(config.Config{Signal: config.Signal{MinGreen: 60}})
	assert.Error(t, err)
}
