package trafficlight_test

import (
	"testing"

	"github.com/Code-trac/aito-dep/entity/junction/trafficlight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, numLanes int) *trafficlight.DecisionManager {
	t.Helper()
	m, err := trafficlight.NewDecisionManager(numLanes, trafficlight.DefaultPolicy())
	require.NoError(t, err)
	return m
}

func TestNewDecisionManager(t *testing.T) {
	_, err := trafficlight.NewDecisionManager(0, trafficlight.DefaultPolicy())
	assert.ErrorIs(t, err, trafficlight.ErrTooManyLanes)

	m := newManager(t, 4)
	assert.Equal(t, []float64{10, 10, 10, 10}, m.LastTimers())
	assert.Nil(t, m.Agent())
	assert.Equal(t, 0, m.Train(100))
}

func TestDecideRule(t *testing.T) {
	m := newManager(t, 4)
	d := m.Decide([]float64{100, 0, 30, 0}, 3, false, false, false)
	assert.Equal(t, 0, d.Lane)
	assert.Equal(t, 50, d.Duration)
	assert.False(t, d.Learned)
	assert.False(t, d.Fallback)
	require.Len(t, d.Timers, 4)
	assert.Equal(t, 50.0, d.Timers[0])
	assert.Equal(t, 0.0, d.Timers[1])
	assert.InDelta(t, 22.0, d.Timers[2], 1e-9)
	assert.Equal(t, 0.0, d.Timers[3])
	assert.Equal(t, d.Timers, m.LastTimers())

	// 雨天加成后仍不超过MaxGreen
	d = m.Decide([]float64{100, 0, 30, 0}, 0, true, false, false)
	assert.Equal(t, 2, d.Lane)
	assert.Equal(t, 28, d.Duration) // 27.5 -> 28
}

func TestDecideAllEmpty(t *testing.T) {
	m := newManager(t, 4)
	d := m.Decide([]float64{0, 0, 0, 0}, 0, false, false, false)
	assert.Equal(t, 1, d.Lane)
	assert.Equal(t, 10, d.Duration)
	assert.Equal(t, []float64{0, 0, 0, 0}, d.Timers)
	assert.False(t, d.Fallback)

	d = m.Decide([]float64{0, 0, 0, 0}, 3, false, false, false)
	assert.Equal(t, 0, d.Lane)
}

func TestDecideMissingDetections(t *testing.T) {
	m := newManager(t, 4)
	m.SetLastTimers([]float64{10, 20, 15, 10})
	// 长度不符时忽略
	m.SetLastTimers([]float64{1, 2})
	assert.Equal(t, []float64{10, 20, 15, 10}, m.LastTimers())

	d := m.Decide(nil, 1, false, false, false)
	assert.True(t, d.Fallback)
	assert.Equal(t, 2, d.Lane)
	assert.Equal(t, 15, d.Duration)
	assert.Equal(t, []float64{10, 20, 15, 10}, d.Timers)
	assert.Equal(t, []float64{10, 20, 15, 10}, m.LastTimers())

	d = m.Decide([]float64{50, 50}, 3, false, false, false)
	assert.True(t, d.Fallback)
	assert.Equal(t, 0, d.Lane)
	assert.Equal(t, 10, d.Duration)
}

func TestDecideStoresPassiveTransitions(t *testing.T) {
	m := newManager(t, 4)
	opts := trafficlight.DefaultAgentOptions()
	opts.Epsilon = 0
	agent, err := m.InitAgent(opts)
	require.NoError(t, err)
	assert.Same(t, agent, m.Agent())

	m.Decide([]float64{100, 0, 30, 0}, 3, false, false, false)
	m.Decide([]float64{20, 80, 30, 0}, 0, false, false, false)
	assert.Equal(t, 2, agent.Stats().BufferLen)

	// 全部为空或缺少数据时不记录经验
	m.Decide([]float64{0, 0, 0, 0}, 0, false, false, false)
	m.Decide(nil, 0, false, false, false)
	assert.Equal(t, 2, agent.Stats().BufferLen)

	assert.Equal(t, 10, m.Train(10))
	q := agent.QValues([]float64{100, 0, 30, 0})
	require.Len(t, q, 4)
	// 只有中性倍率的动作被学习
	assert.Less(t, q[agent.NeutralAction()], 0.0)
	assert.Equal(t, 0.0, q[0])
}

func TestDecideLearned(t *testing.T) {
	m := newManager(t, 4)
	opts := trafficlight.DefaultAgentOptions()
	opts.Epsilon = 0
	agent, err := m.InitAgent(opts)
	require.NoError(t, err)

	// 未学习的状态取下标0，倍率0.75：50 * 0.75 = 37.5 -> 38
	d := m.Decide([]float64{100, 0, 30, 0}, 3, false, false, true)
	assert.True(t, d.Learned)
	assert.Equal(t, 0, d.Lane)
	assert.Equal(t, 38, d.Duration)
	assert.Equal(t, 37.5, d.Timers[0])
	assert.InDelta(t, 22.0, d.Timers[2], 1e-9)
	assert.Equal(t, 1, agent.Stats().BufferLen)

	// 学习路径只限制上界，可以低于MinGreen
	d = m.Decide([]float64{0, 0.5, 0, 0}, 0, false, false, true)
	assert.Equal(t, 1, d.Lane)
	assert.Equal(t, 8, d.Duration) // 10.2 * 0.75 = 7.65
}
