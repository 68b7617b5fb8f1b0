// 基于历史车辆数的正态分布预测
package predict

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Points 预测曲线的采样点数
const Points = 200

var (
	ErrNoHistory           = errors.New("no_history")
	ErrInsufficientHistory = errors.New("insufficient_history")
)

// Prediction 某车道车辆数的正态分布估计
type Prediction struct {
	X     []float64 `json:"x"`
	PDF   []float64 `json:"pdf"`
	CDF   []float64 `json:"cdf"`
	Mu    float64   `json:"mu"`
	Sigma float64   `json:"sigma"`
}

// FromHistory 用历史车辆数拟合正态分布
// 参数：values-某车道的历史车辆数，nil表示没有任何历史记录
// 返回：在[max(0, mu-4σ), mu+4σ]上等距采样的概率密度与累积分布
// 算法说明：
// 1. mu为均值，σ为总体标准差，σ为0时取1
// 2. 少于2个值时返回ErrInsufficientHistory
func FromHistory(values []float64) (Prediction, error) {
	if values == nil {
		return Prediction{}, ErrNoHistory
	}
	if len(values) < 2 {
		return Prediction{}, ErrInsufficientHistory
	}
	mu, variance := stat.PopMeanVariance(values, nil)
	sigma := math.Sqrt(variance)
	if sigma <= 0 {
		sigma = 1
	}
	x := floats.Span(make([]float64, Points), math.Max(0, mu-4*sigma), mu+4*sigma)
	dist := distuv.Normal{Mu: mu, Sigma: sigma}
	p := Prediction{
		X:     x,
		PDF:   make([]float64, Points),
		CDF:   make([]float64, Points),
		Mu:    mu,
		Sigma: sigma,
	}
	for i, v := range x {
		p.PDF[i] = dist.Prob(v)
		p.CDF[i] = dist.CDF(v)
	}
	return p, nil
}

// Mean 历史车辆数均值，没有数据时返回nil
func Mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	mu := stat.Mean(values, nil)
	return &mu
}
