package trafficlight_test

import (
	"testing"

	"github.com/Code-trac/aito-dep/entity/junction/trafficlight"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAgent(t *testing.T, numLanes int, modify func(o *trafficlight.AgentOptions)) *trafficlight.MultiplierAgent {
	t.Helper()
	opts := trafficlight.DefaultAgentOptions()
	if modify != nil {
		modify(&opts)
	}
	a, err := trafficlight.NewMultiplierAgent(numLanes, opts)
	require.NoError(t, err)
	return a
}

func TestNewMultiplierAgentInvalid(t *testing.T) {
	_, err := trafficlight.NewMultiplierAgent(0, trafficlight.DefaultAgentOptions())
	assert.ErrorIs(t, err, trafficlight.ErrTooManyLanes)
	_, err = trafficlight.NewMultiplierAgent(trafficlight.MaxLanes+1, trafficlight.DefaultAgentOptions())
	assert.ErrorIs(t, err, trafficlight.ErrTooManyLanes)

	opts := trafficlight.DefaultAgentOptions()
	opts.Multipliers = nil
	_, err = trafficlight.NewMultiplierAgent(4, opts)
	assert.Error(t, err)
}

func TestDiscretize(t *testing.T) {
	a := newAgent(t, 6, nil)
	k := a.Discretize([]float64{0, 20, 20.1, 100, 150, -5})
	assert.Equal(t, "[0,0,1,4,4,0]", k.Format(6))

	// 同一分箱内的密度视为同一状态
	assert.Equal(t, a.Discretize([]float64{41, 41, 0, 0, 0, 0}), a.Discretize([]float64{59.9, 60, 0.5, 19, 0, 0}))
	assert.NotEqual(t, a.Discretize([]float64{60, 0, 0, 0, 0, 0}), a.Discretize([]float64{60.1, 0, 0, 0, 0, 0}))
}

func TestStateKeyParse(t *testing.T) {
	a := newAgent(t, 4, nil)
	k := a.Discretize([]float64{100, 0, 30, 65})
	s := k.Format(4)
	assert.Equal(t, "[4,0,1,3]", s)

	parsed, err := trafficlight.ParseStateKey(s, 4)
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	parsed, err = trafficlight.ParseStateKey("[4, 0, 1, 3]", 4)
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	_, err = trafficlight.ParseStateKey("[4,0,1]", 4)
	assert.ErrorIs(t, err, trafficlight.ErrCheckpointMismatch)
	_, err = trafficlight.ParseStateKey("4,0,1,3", 4)
	assert.Error(t, err)
	_, err = trafficlight.ParseStateKey("[4,x,1,3]", 4)
	assert.Error(t, err)
}

func TestChooseActionGreedy(t *testing.T) {
	a := newAgent(t, 4, func(o *trafficlight.AgentOptions) { o.Epsilon = 0; o.Alpha = 0.5 })
	s := []float64{100, 0, 30, 0}

	// 未访问的状态Q值全为0，取最小下标
	for range 10 {
		assert.Equal(t, 0, a.ChooseAction(s))
	}
	assert.Equal(t, []float64{0, 0, 0, 0}, a.QValues(s))

	a.Learn(s, 2, 10, []float64{0, 0, 0, 0})
	for range 10 {
		assert.Equal(t, 2, a.ChooseAction(s))
	}

	// 相同的最大值取最小下标
	a.Learn(s, 3, 10, []float64{0, 0, 0, 0})
	q := a.QValues(s)
	assert.Equal(t, q[2], q[3])
	assert.Equal(t, 2, a.ChooseAction(s))
}

func TestChooseActionExplore(t *testing.T) {
	a := newAgent(t, 2, func(o *trafficlight.AgentOptions) { o.Epsilon = 1 })
	seen := map[int]int{}
	for range 400 {
		idx := a.ChooseAction([]float64{50, 50})
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 4)
		seen[idx]++
	}
	assert.Len(t, seen, 4)
	// 探索不会插入新状态
	assert.Equal(t, 0, a.Stats().States)
	assert.Nil(t, a.QValues([]float64{50, 50}))

	a.SetEpsilon(0)
	a.ChooseAction([]float64{50, 50})
	assert.Equal(t, 1, a.Stats().States)
}

func TestLearn(t *testing.T) {
	a := newAgent(t, 4, nil)
	s := []float64{100, 0, 30, 0}

	// s' == s：先初始化s，再取max(Q[s']) = 0
	a.Learn(s, 1, -130, s)
	assert.InDelta(t, -26.0, a.QValues(s)[1], 1e-9)

	// 第二次：target = -130 + 0.95 * max(-26, 0, 0, 0) = -130
	a.Learn(s, 1, -130, s)
	assert.InDelta(t, -26+0.2*(-130+26), a.QValues(s)[1], 1e-9)

	// 未访问的下一状态的max为0
	s2 := []float64{0, 0, 0, 90}
	a.Learn(s, 0, 5, s2)
	assert.InDelta(t, 1.0, a.QValues(s)[0], 1e-9)
	assert.Nil(t, a.QValues(s2))

	// 非法动作被忽略
	a.Learn(s, 9, 100, s)
	assert.InDelta(t, 1.0, a.QValues(s)[0], 1e-9)
}

func TestLearnZeroAlpha(t *testing.T) {
	a := newAgent(t, 4, func(o *trafficlight.AgentOptions) { o.Alpha = 0 })
	s := []float64{10, 20, 30, 40}
	a.Learn(s, 2, 0, s)
	before := a.QValues(s)
	for range 5 {
		a.Learn(s, 2, 0, s)
		a.Learn(s, 2, -50, []float64{90, 90, 90, 90})
	}
	assert.Equal(t, before, a.QValues(s))
}

func TestStoreAndTrain(t *testing.T) {
	a := newAgent(t, 2, func(o *trafficlight.AgentOptions) { o.BufferSize = 3 })
	assert.Equal(t, 0, a.Train(100))
	assert.Equal(t, 0, a.Stats().States)

	for i := range 5 {
		a.Store([]float64{float64(i * 10), 0}, a.NeutralAction(), -float64(i*10), []float64{float64(i * 10), 0})
	}
	assert.Equal(t, 3, a.Stats().BufferLen)

	assert.Equal(t, 50, a.Train(50))
	assert.Positive(t, a.Stats().States)
	// 被训练的只有经验池中剩余的动作
	for _, d := range [][]float64{{20, 0}, {30, 0}, {40, 0}} {
		if q := a.QValues(d); q != nil {
			assert.Equal(t, 0.0, q[0])
			assert.Equal(t, 0.0, q[2])
			assert.Equal(t, 0.0, q[3])
		}
	}
}

func TestNeutralAction(t *testing.T) {
	a := newAgent(t, 2, nil)
	assert.Equal(t, 1, a.NeutralAction())
	assert.Equal(t, 1.0, a.Multiplier(a.NeutralAction()))

	a = newAgent(t, 2, func(o *trafficlight.AgentOptions) { o.Multipliers = []float64{0.5, 0.8, 1.0} })
	assert.Equal(t, 2, a.NeutralAction())

	a = newAgent(t, 2, func(o *trafficlight.AgentOptions) { o.Multipliers = []float64{0.5, 2} })
	assert.Equal(t, 1, a.NeutralAction())
}

func TestCheckpointRoundTrip(t *testing.T) {
	a := newAgent(t, 4, func(o *trafficlight.AgentOptions) { o.Epsilon = 0.3 })
	a.Learn([]float64{100, 0, 30, 0}, 1, -130, []float64{100, 0, 30, 0})
	a.Learn([]float64{10, 90, 30, 0}, 3, -130, []float64{0, 0, 0, 0})
	cp := a.Checkpoint()
	assert.Equal(t, 4, cp.NumLanes)
	assert.Equal(t, 0.3, cp.Epsilon)
	assert.Contains(t, cp.Q, "[4,0,1,0]")

	b := newAgent(t, 4, func(o *trafficlight.AgentOptions) { o.Alpha = 0.9; o.Epsilon = 0 })
	require.NoError(t, b.Restore(cp))
	if diff := cmp.Diff(cp, b.Checkpoint()); diff != "" {
		t.Errorf("checkpoint mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, a.QValues([]float64{100, 0, 30, 0}), b.QValues([]float64{100, 0, 30, 0}))
}

func TestRestoreMismatch(t *testing.T) {
	a := newAgent(t, 4, nil)
	a.Learn([]float64{100, 0, 30, 0}, 1, -130, []float64{100, 0, 30, 0})
	cp := a.Checkpoint()

	b := newAgent(t, 3, nil)
	assert.ErrorIs(t, b.Restore(cp), trafficlight.ErrCheckpointMismatch)

	c := newAgent(t, 4, func(o *trafficlight.AgentOptions) { o.Multipliers = []float64{1, 2} })
	assert.ErrorIs(t, c.Restore(cp), trafficlight.ErrCheckpointMismatch)
	assert.Equal(t, 0, c.Stats().States)
}
