package lane

import (
	"math"

	"github.com/Code-trac/aito-dep/entity"
)

// Estimate 由逐车道检测结果计算密度与车辆数
// 功能：density = min(100, round(count/capacity*100, 1))，count为检测结果数量
// 参数：detections-逐车道检测结果，capacity-单车道容量
// 返回：逐车道密度（%）与车辆数
// 说明：纯函数，容量非正时密度为0
func Estimate(detections [][]entity.Detection, capacity int) (densities []float64, counts []int) {
	densities = make([]float64, len(detections))
	counts = make([]int, len(detections))
	for i, dets := range detections {
		counts[i] = len(dets)
		densities[i] = Density(len(dets), capacity)
	}
	return
}

// Density 单车道密度（%），保留1位小数（四舍六入五成双）
func Density(count, capacity int) float64 {
	if capacity <= 0 || count <= 0 {
		return 0
	}
	d := math.Min(float64(count)/float64(capacity)*100, 100)
	return math.RoundToEven(d*10) / 10
}

// Snapshots 组装逐车道快照
func Snapshots(densities []float64, counts []int) []entity.LaneSnapshot {
	out := make([]entity.LaneSnapshot, len(densities))
	for i, d := range densities {
		out[i] = entity.LaneSnapshot{Index: i, Density: d}
		if i < len(counts) {
			out[i].Count = counts[i]
		}
	}
	return out
}
