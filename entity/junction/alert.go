package junction

import (
	"fmt"
	"time"

	"github.com/Code-trac/aito-dep/entity"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// AlertBook 最大绿灯连续时长统计与告警
// 功能：统计每条车道连续被分配MaxGreen配时的累计秒数，超过阈值时产生告警
// 说明：告警只能被确认，不会自动过期
type AlertBook struct {
	maxGreen  float64
	threshold float64
	streaks   []float64
	alerts    []entity.Alert
	now       func() time.Time
}

// NewAlertBook 创建告警簿
// 参数：numLanes-车道数，maxGreen-最大绿灯时长，threshold-告警阈值（秒）
func NewAlertBook(numLanes int, maxGreen, threshold float64) *AlertBook {
	return &AlertBook{
		maxGreen:  maxGreen,
		threshold: threshold,
		streaks:   make([]float64, numLanes),
		alerts:    make([]entity.Alert, 0),
		now:       time.Now,
	}
}

// SetClock 替换时间来源（测试用）
func (b *AlertBook) SetClock(now func() time.Time) {
	b.now = now
}

// Observe 记录一个结束的周期
// 功能：更新每条车道的连续时长，产生新的告警
// 参数：timers-本周期发布的逐车道配时，elapsed-刚刚结束的周期时长（秒）
// 返回：本次新产生的告警
// 算法说明：
// 1. 配时不低于MaxGreen的车道累加elapsed，否则清零
// 2. 本次累加跨过阈值（累加前<阈值<=累加后），且该车道没有未确认的告警时产生告警
func (b *AlertBook) Observe(timers []float64, elapsed float64) []entity.Alert {
	created := make([]entity.Alert, 0)
	elapsed = max(0, elapsed)
	for i := range b.streaks {
		if i >= len(timers) || timers[i] < b.maxGreen {
			b.streaks[i] = 0
			continue
		}
		prev := b.streaks[i]
		b.streaks[i] += elapsed
		if prev >= b.threshold || b.streaks[i] < b.threshold {
			continue
		}
		if b.hasPending(i) {
			continue
		}
		alert := entity.Alert{
			ID:        uuid.NewString(),
			Lane:      i,
			Message:   fmt.Sprintf("Lane %d at MAX_GREEN for prolonged period", i+1),
			CreatedAt: b.now(),
		}
		b.alerts = append(b.alerts, alert)
		created = append(created, alert)
		log.Infof("alert %s: lane %d held MAX_GREEN for %.0fs", alert.ID, i, b.streaks[i])
	}
	return created
}

func (b *AlertBook) hasPending(lane int) bool {
	return lo.ContainsBy(b.alerts, func(a entity.Alert) bool {
		return a.Lane == lane && !a.Acknowledged
	})
}

// Acknowledge 确认某车道的全部告警
// 返回：本次状态发生变化的告警数量
func (b *AlertBook) Acknowledge(lane int) int {
	n := 0
	for i := range b.alerts {
		if b.alerts[i].Lane == lane && !b.alerts[i].Acknowledged {
			b.alerts[i].Acknowledged = true
			n++
		}
	}
	return n
}

// Load 用持久化的告警替换当前告警列表
func (b *AlertBook) Load(alerts []entity.Alert) {
	b.alerts = append(make([]entity.Alert, 0, len(alerts)), alerts...)
}

// Alerts 当前告警列表拷贝
func (b *AlertBook) Alerts() []entity.Alert {
	return append(make([]entity.Alert, 0, len(b.alerts)), b.alerts...)
}

// Streaks 逐车道连续时长拷贝
func (b *AlertBook) Streaks() []float64 {
	return append([]float64(nil), b.streaks...)
}
