// 持久化实现：内存、SQLite与MongoDB
package store

import (
	"context"
	"sync"
	"time"

	"github.com/Code-trac/aito-dep/entity"
	"github.com/samber/lo"
)

// Memory 进程内存存储，进程退出后数据丢失
type Memory struct {
	history   []entity.HistoryRecord
	alerts    []entity.Alert
	overrides []entity.OverrideRecord
	agent     *entity.AgentCheckpoint
	mtx       sync.RWMutex
}

// NewMemory 创建内存存储
func NewMemory() *Memory {
	return &Memory{
		history:   make([]entity.HistoryRecord, 0),
		alerts:    make([]entity.Alert, 0),
		overrides: make([]entity.OverrideRecord, 0),
	}
}

func (m *Memory) AppendHistory(ctx context.Context, rec entity.HistoryRecord) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	rec.Counts = append([]int(nil), rec.Counts...)
	m.history = append(m.history, rec)
	return nil
}

func (m *Memory) LaneHistory(ctx context.Context, lane int) ([]float64, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return laneValues(m.history, lane), nil
}

func (m *Memory) SaveAlerts(ctx context.Context, alerts []entity.Alert) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.alerts = append(make([]entity.Alert, 0, len(alerts)), alerts...)
	return nil
}

func (m *Memory) LoadAlerts(ctx context.Context) ([]entity.Alert, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return append(make([]entity.Alert, 0, len(m.alerts)), m.alerts...), nil
}

func (m *Memory) LogOverride(ctx context.Context, rec entity.OverrideRecord) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.overrides = append(m.overrides, rec)
	return nil
}

func (m *Memory) ListOverrides(ctx context.Context) ([]entity.OverrideRecord, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return append(make([]entity.OverrideRecord, 0, len(m.overrides)), m.overrides...), nil
}

func (m *Memory) SaveAgent(ctx context.Context, cp entity.AgentCheckpoint, savedAt time.Time) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	cp.Q = lo.MapValues(cp.Q, func(v []float64, _ string) []float64 {
		return append([]float64(nil), v...)
	})
	m.agent = &cp
	return nil
}

func (m *Memory) LoadAgent(ctx context.Context) (entity.AgentCheckpoint, bool, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	if m.agent == nil {
		return entity.AgentCheckpoint{}, false, nil
	}
	return *m.agent, true, nil
}

func (m *Memory) Close(ctx context.Context) error {
	return nil
}

// laneValues 取出历史记录中某车道的车辆数，缺少该车道的记录被跳过
func laneValues(history []entity.HistoryRecord, lane int) []float64 {
	out := make([]float64, 0, len(history))
	for _, rec := range history {
		if lane >= 0 && lane < len(rec.Counts) {
			out = append(out, float64(rec.Counts[lane]))
		}
	}
	return out
}
