// 提供基于车道密度的自适应信控算法
// 规则配时根据密度在最短与最长绿灯之间线性插值，并叠加降雨、高峰等环境修正；
// 车道按循环顺序轮转，跳过空车道；倍率学习智能体可在规则配时之上调整所选车道的绿灯时长
package trafficlight

import (
	"github.com/samber/lo"
)

// Policy 规则配时参数
type Policy struct {
	MinGreen    float64 // 最短绿灯时间（秒）
	MaxGreen    float64 // 最长绿灯时间（秒）
	ZeroDensity float64 // 密度小于等于该值（%）的车道视为空车道
	RainBonus   float64 // 降雨时的附加倍率
	PeakBonus   float64 // 高峰时的附加倍率
}

// DefaultPolicy 默认配时参数
func DefaultPolicy() Policy {
	return Policy{
		MinGreen:    10,
		MaxGreen:    50,
		ZeroDensity: 0.1,
		RainBonus:   0.25,
		PeakBonus:   0.10,
	}
}

// BaseTimer 由密度计算基础绿灯时长
// 功能：密度非正时为0，否则在[MinGreen, MaxGreen]间按密度比例线性插值
func (p Policy) BaseTimer(density float64) float64 {
	if density <= 0 {
		return 0
	}
	frac := lo.Clamp(density/100, 0, 1)
	return p.MinGreen + frac*(p.MaxGreen-p.MinGreen)
}

// EnvironmentMultiplier 环境修正倍率
// 说明：修正项相加而非相乘，降雨与高峰互相独立
func (p Policy) EnvironmentMultiplier(rain, peak bool) float64 {
	m := 1.0
	if rain {
		m += p.RainBonus
	}
	if peak {
		m += p.PeakBonus
	}
	return m
}

// TimerForLane 单车道规则配时
// 功能：空车道为0，否则为基础时长乘以环境倍率并限制在[0, MaxGreen]
func (p Policy) TimerForLane(density float64, rain, peak bool) float64 {
	if density <= p.ZeroDensity {
		return 0
	}
	return lo.Clamp(p.BaseTimer(density)*p.EnvironmentMultiplier(rain, peak), 0, p.MaxGreen)
}

// RuleTimers 计算所有车道的规则配时，与最终选中哪条车道无关
func (p Policy) RuleTimers(densities []float64, rain, peak bool) []float64 {
	return lo.Map(densities, func(d float64, _ int) float64 {
		return p.TimerForLane(d, rain, peak)
	})
}

// EmptyTimers 无车道超过空车道阈值时的配时：非空车道为MinGreen，其余为0
func (p Policy) EmptyTimers(densities []float64) []float64 {
	return lo.Map(densities, func(d float64, _ int) float64 {
		return lo.Ternary(d > p.ZeroDensity, p.MinGreen, 0)
	})
}

// Occupied 车道密度是否超过空车道阈值
func (p Policy) Occupied(density float64) bool {
	return density > p.ZeroDensity
}
