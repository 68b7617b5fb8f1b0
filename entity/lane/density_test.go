package lane_test

import (
	"math"
	"testing"

	"github.com/Code-trac/aito-dep/entity"
	"github.com/Code-trac/aito-dep/entity/lane"
	"github.com/stretchr/testify/assert"
)

func detections(counts ...int) [][]entity.Detection {
	out := make([][]entity.Detection, len(counts))
	for i, c := range counts {
		out[i] = make([]entity.Detection, c)
	}
	return out
}

func TestEstimate(t *testing.T) {
	densities, counts := lane.Estimate(detections(10, 0, 3, 0), 10)
	assert.Equal(t, []float64{100, 0, 30, 0}, densities)
	assert.Equal(t, []int{10, 0, 3, 0}, counts)

	// 超过容量时截断为100
	densities, counts = lane.Estimate(detections(25), 10)
	assert.Equal(t, []float64{100}, densities)
	assert.Equal(t, []int{25}, counts)

	// 保留1位小数
	densities, _ = lane.Estimate(detections(1, 2), 3)
	assert.Equal(t, []float64{33.3, 66.7}, densities)

	// 恰好为5时取偶数：6.25 -> 6.2，18.75 -> 18.8
	densities, _ = lane.Estimate(detections(1, 3), 16)
	assert.Equal(t, []float64{6.2, 18.8}, densities)

	// 非法容量
	densities, _ = lane.Estimate(detections(4), 0)
	assert.Equal(t, []float64{0}, densities)

	densities, counts = lane.Estimate(nil, 10)
	assert.Empty(t, densities)
	assert.Empty(t, counts)
}

func TestDensityRange(t *testing.T) {
	for capacity := 1; capacity <= 30; capacity++ {
		for c := 0; c <= 60; c++ {
			d := lane.Density(c, capacity)
			want := math.Min(100, math.RoundToEven(float64(c)/float64(capacity)*100*10)/10)
			assert.InDelta(t, want, d, 1e-9, "count=%d capacity=%d", c, capacity)
			assert.GreaterOrEqual(t, d, 0.0)
			assert.LessOrEqual(t, d, 100.0)
		}
	}
}

func TestSnapshots(t *testing.T) {
	s := lane.Snapshots([]float64{100, 30}, []int{10, 3})
	assert.Equal(t, []entity.LaneSnapshot{
		{Index: 0, Density: 100, Count: 10},
		{Index: 1, Density: 30, Count: 3},
	}, s)
}
