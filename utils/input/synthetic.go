// 车辆检测数据来源：模拟数据与外部摄像头检测服务
package input

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Code-trac/aito-dep/entity"
	"github.com/Code-trac/aito-dep/utils/config"
	"github.com/Code-trac/aito-dep/utils/randengine"
)

var (
	ErrTooManyLanes      = errors.New("more vehicle counts than lanes")
	ErrCameraUnavailable = errors.New("camera unavailable")
)

// Synthetic 将车辆数转换为占位检测结果
// 说明：核心逻辑只使用每条车道的检测数量，bbox固定为(0,0,1,1)，置信度随机
type Synthetic struct {
	generator *randengine.Engine
}

// NewSynthetic 创建占位检测生成器
func NewSynthetic(seed uint64) *Synthetic {
	return &Synthetic{generator: randengine.New(seed)}
}

// FromCounts 根据逐车道车辆数生成检测结果
// 参数：counts-逐车道车辆数（可以短于车道数，负数视为0），numLanes-车道数
// 返回：长度为numLanes的检测结果，counts长于车道数时返回ErrTooManyLanes
func (s *Synthetic) FromCounts(counts []int, numLanes int) ([][]entity.Detection, error) {
	if len(counts) > numLanes {
		return nil, fmt.Errorf("%w: %d counts for %d lanes", ErrTooManyLanes, len(counts), numLanes)
	}
	lanes := make([][]entity.Detection, numLanes)
	for i := range lanes {
		lanes[i] = make([]entity.Detection, 0)
	}
	for i, c := range counts {
		for range max(0, c) {
			lanes[i] = append(lanes[i], entity.Detection{
				BBox:  [4]int{0, 0, 1, 1},
				Conf:  math.Round(s.generator.Uniform(0.6, 0.99)*100) / 100,
				Class: 0,
			})
		}
	}
	return lanes, nil
}

// MockDetector 使用模拟数据生成器的检测器
type MockDetector struct {
	gen   *MockGenerator
	synth *Synthetic
}

// NewMockDetector 创建模拟检测器
func NewMockDetector(gen *MockGenerator, synth *Synthetic) *MockDetector {
	return &MockDetector{gen: gen, synth: synth}
}

// Generator 底层的模拟数据生成器
func (d *MockDetector) Generator() *MockGenerator {
	return d.gen
}

// Detect 实现entity.IDetector
func (d *MockDetector) Detect(ctx context.Context, rois []config.ROI) ([][]entity.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.synth.FromCounts(d.gen.Next(len(rois)), len(rois))
}
