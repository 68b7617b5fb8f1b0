// 随机数引擎，包装了golang.org/x/exp/rand，供探索策略、经验回放采样与模拟数据生成使用
package randengine

import (
	"flag"
	"sync"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：提供线程安全的随机数生成功能
// 说明：控制循环与外部训练请求可能在不同goroutine中使用同一个引擎，因此所有方法均加锁
type Engine struct {
	rng *rand.Rand // 底层随机数生成器
	mtx sync.Mutex // 互斥锁
}

// New 创建随机数引擎
// 功能：初始化一个新的随机数引擎实例
// 参数：seed-随机数种子
// 返回：随机数引擎指针
// 说明：种子偏移量允许在不修改配置的情况下调整随机数序列
func New(seed uint64) *Engine {
	return &Engine{rng: rand.New(rand.NewSource(seed + *seedOffset))}
}

// PTrue 以指定概率返回true
// 功能：实现伯努利分布，p<=0时总是返回false，p>=1时总是返回true
func (e *Engine) PTrue(p float64) bool {
	if p <= 0 {
		return false
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.rng.Float64() < p
}

// Intn 随机生成[0, n)范围内的整数
func (e *Engine) Intn(n int) int {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.rng.Intn(n)
}

// IntRange 随机生成[lo, hi]闭区间内的整数
func (e *Engine) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + e.Intn(hi-lo+1)
}

// Uniform 随机生成[lo, hi)范围内的浮点数
func (e *Engine) Uniform(lo, hi float64) float64 {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return lo + (hi-lo)*e.rng.Float64()
}
