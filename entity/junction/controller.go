// junction 路口级别的控制权与告警状态
package junction

import (
	"errors"

	"github.com/Code-trac/aito-dep/entity"
)

var (
	ErrInvalidDuration = errors.New("manual duration must be positive")
)

// OwnerSystem 紧急模式使用的控制权所有者
const OwnerSystem = "system"

// ControllerKind 控制权类型
type ControllerKind int

const (
	KindAuto   ControllerKind = iota // 自动配时
	KindManual                       // 人工/紧急接管
)

func (k ControllerKind) String() string {
	if k == KindManual {
		return "manual"
	}
	return "auto"
}

// Controller 路口控制权
// 功能：表示当前由自动配时还是人工接管控制信号灯
// 说明：Lane/Remaining/Owner只在KindManual时有意义，零值即为自动控制
type Controller struct {
	Kind      ControllerKind
	Lane      int     // 接管的绿灯车道
	Remaining float64 // 剩余接管时间（秒）
	Owner     string  // 接管者
}

// Auto 创建自动控制
func Auto() Controller {
	return Controller{Kind: KindAuto}
}

// Manual 创建人工接管控制
// 参数：lane-绿灯车道，duration-接管时长（秒），owner-接管者
// 返回：控制权，时长非正时返回错误
func Manual(lane int, duration float64, owner string) (Controller, error) {
	if duration <= 0 {
		return Controller{}, ErrInvalidDuration
	}
	return Controller{Kind: KindManual, Lane: lane, Remaining: duration, Owner: owner}, nil
}

// IsManual 是否处于人工接管
func (c Controller) IsManual() bool {
	return c.Kind == KindManual
}

// IsSystem 是否为紧急模式产生的接管
func (c Controller) IsSystem() bool {
	return c.Kind == KindManual && c.Owner == OwnerSystem
}

// Tick 推进一个时间步
// 功能：人工接管时扣减剩余时间（不低于0），剩余时间归零后回到自动控制
// 参数：dt-时间步长（秒）
// 返回：本次扣减后的剩余时间与是否刚刚结束接管
func (c *Controller) Tick(dt float64) (remaining float64, released bool) {
	if c.Kind != KindManual {
		return 0, false
	}
	c.Remaining = max(0, c.Remaining-dt)
	remaining = c.Remaining
	if c.Remaining <= 0 {
		*c = Auto()
		return remaining, true
	}
	return remaining, false
}

// View 对外视图
func (c Controller) View() entity.ControllerView {
	if c.Kind != KindManual {
		return entity.ControllerView{Type: KindAuto.String()}
	}
	return entity.ControllerView{
		Type:      KindManual.String(),
		Lane:      c.Lane,
		Remaining: c.Remaining,
		Owner:     c.Owner,
	}
}
