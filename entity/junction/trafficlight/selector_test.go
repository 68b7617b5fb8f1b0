package trafficlight_test

import (
	"math/rand"
	"testing"

	"github.com/Code-trac/aito-dep/entity/junction/trafficlight"
	"github.com/stretchr/testify/assert"
)

func TestNextLane(t *testing.T) {
	p := trafficlight.DefaultPolicy()
	d := []float64{100, 0, 30, 0}

	lane, ok := p.NextLane(3, d)
	assert.True(t, ok)
	assert.Equal(t, 0, lane)

	lane, ok = p.NextLane(0, d)
	assert.True(t, ok)
	assert.Equal(t, 2, lane)

	// 只有当前车道有车时回到当前车道
	lane, ok = p.NextLane(0, []float64{40, 0, 0, 0})
	assert.True(t, ok)
	assert.Equal(t, 0, lane)

	// 全部为空
	lane, ok = p.NextLane(0, []float64{0, 0, 0, 0})
	assert.False(t, ok)
	assert.Equal(t, 1, lane)
	lane, ok = p.NextLane(3, []float64{0, 0.1, 0, 0})
	assert.False(t, ok)
	assert.Equal(t, 0, lane)
}

func TestNextLaneCyclicOrder(t *testing.T) {
	p := trafficlight.DefaultPolicy()
	r := rand.New(rand.NewSource(7))
	values := []float64{0, 0.05, 0.1, 0.2, 10, 55, 100}
	for iter := 0; iter < 2000; iter++ {
		n := 1 + r.Intn(8)
		d := make([]float64, n)
		for i := range d {
			d[i] = values[r.Intn(len(values))]
		}
		current := r.Intn(n)

		lane, ok := p.NextLane(current, d)

		// 期望值：current之后第一个非空车道
		want := -1
		for offset := 1; offset <= n; offset++ {
			idx := (current + offset) % n
			if d[idx] > p.ZeroDensity {
				want = idx
				break
			}
		}
		if want < 0 {
			assert.False(t, ok)
			assert.Equal(t, (current+1)%n, lane)
		} else {
			assert.True(t, ok)
			assert.Equal(t, want, lane)
			assert.Greater(t, d[lane], p.ZeroDensity)
		}
	}
}
