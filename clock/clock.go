// 控制循环时钟：tick计数与信号时间
package clock

import (
	"fmt"
	"sync/atomic"
	"time"

	"git.fiblab.net/sim/protos/v2/go/city/clock/v1/clockv1connect"
	"github.com/Code-trac/aito-dep/utils/config"
)

// Clock 控制循环时钟
// 功能：记录控制循环已推进的tick数，每个tick对应DT秒信号时间
// 说明：tick由控制循环goroutine推进，RPC与日志可以并发读取
type Clock struct {
	clockv1connect.UnimplementedClockServiceHandler

	DT       float64       // 每个tick推进的信号时间（秒）
	Interval time.Duration // 每个tick的真实时间间隔
	END_STEP int64         // 结束步，0表示一直运行

	step atomic.Int64
}

// New 根据配置创建时钟
// 参数：stepConfig-控制步配置，Interval为每个tick的真实时间（秒）
func New(stepConfig config.ControlStep) *Clock {
	return &Clock{
		DT:       1,
		Interval: time.Duration(stepConfig.Interval * float64(time.Second)),
		END_STEP: stepConfig.Total,
	}
}

// Tick 推进一个tick，返回推进后的步数
func (c *Clock) Tick() int64 {
	return c.step.Add(1)
}

// Step 当前步数
func (c *Clock) Step() int64 {
	return c.step.Load()
}

// T 已推进的信号时间（秒）
func (c *Clock) T() float64 {
	return float64(c.step.Load()) * c.DT
}

// Done 是否已达到结束步
func (c *Clock) Done() bool {
	return c.END_STEP > 0 && c.step.Load() >= c.END_STEP
}

// String 格式化为HH:MM:SS
func (c *Clock) String() string {
	h, m, s := c.GetHourMinuteSecond()
	return fmt.Sprintf("%02d:%02d:%02d", h, m, int(s))
}

// GetHourMinuteSecond 获取已运行时间的小时、分钟、秒
// 返回：小时、分钟、秒（秒为浮点数，支持亚秒级精度）
func (c *Clock) GetHourMinuteSecond() (int, int, float64) {
	t := c.T()
	hour := int(t) / 3600
	minute := int(t) % 3600 / 60
	second := t - float64(hour*3600+minute*60)
	return hour, minute, second
}
