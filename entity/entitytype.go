package entity

import (
	"time"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
)

// Mode 信控运行模式
type Mode string

const (
	ModeMock     Mode = "mock"     // 模拟数据驱动
	ModeCamera   Mode = "camera"   // 摄像头检测驱动
	ModeFallback Mode = "fallback" // 检测失败，沿用上一次的配时
	ModeManual   Mode = "manual"   // 人工或紧急控制
)

// Detection 单个检测到的车辆
// 说明：核心逻辑只关心每条车道检测结果的数量
type Detection struct {
	BBox  [4]int  `json:"bbox" bson:"bbox"` // x1, y1, x2, y2
	Conf  float64 `json:"conf" bson:"conf"`
	Class int     `json:"cls" bson:"cls"`
}

// LaneSnapshot 单条车道某一时刻的占用情况
type LaneSnapshot struct {
	Index   int     `json:"index"`
	Density float64 `json:"density_pct"` // [0, 100]
	Count   int     `json:"vehicle_count"`
}

// Alert 长时间最大绿灯告警
type Alert struct {
	ID           string    `json:"id" bson:"_id"`
	Lane         int       `json:"lane" bson:"lane"`
	Message      string    `json:"msg" bson:"msg"`
	CreatedAt    time.Time `json:"ts" bson:"ts"`
	Acknowledged bool      `json:"ack" bson:"ack"`
}

// HistoryRecord 每个自动周期结束后记录的车辆数
type HistoryRecord struct {
	Counts    []int     `json:"counts" bson:"counts"`
	Timestamp time.Time `json:"ts" bson:"ts"`
}

// OverrideRecord 人工接管记录
type OverrideRecord struct {
	ID        string    `json:"id" bson:"_id"`
	Timestamp time.Time `json:"ts" bson:"ts"`
	User      string    `json:"user" bson:"user"`
	Lane      int       `json:"lane" bson:"lane"`
	Duration  float64   `json:"duration" bson:"duration"`
	Reason    string    `json:"reason" bson:"reason"`
}

// ControllerView 控制权状态的对外视图
type ControllerView struct {
	Type      string  `json:"type"` // auto | manual
	Lane      int     `json:"lane,omitempty"`
	Remaining float64 `json:"remaining,omitempty"`
	Owner     string  `json:"official,omitempty"`
}

// Status 对外发布的信控状态快照
// 说明：每次发布都是完整替换，读取方总能拿到一致的数据
type Status struct {
	Densities     []float64          `json:"densities"`
	Counts        []int              `json:"counts"`
	Timers        []float64          `json:"timers"`
	Lights        []mapv2.LightState `json:"lights"`
	NextLane      int                `json:"next_lane"`
	SignalTimer   float64            `json:"signal_timer"`
	Mode          Mode               `json:"mode"`
	Error         string             `json:"error,omitempty"`
	Timestamp     time.Time          `json:"timestamp"`
	Emergency     bool               `json:"emergency"`
	EmergencyLane *int               `json:"emergency_lane,omitempty"`
}

// Clone 深拷贝
func (s Status) Clone() Status {
	out := s
	out.Densities = append([]float64(nil), s.Densities...)
	out.Counts = append([]int(nil), s.Counts...)
	out.Timers = append([]float64(nil), s.Timers...)
	out.Lights = append([]mapv2.LightState(nil), s.Lights...)
	if s.EmergencyLane != nil {
		lane := *s.EmergencyLane
		out.EmergencyLane = &lane
	}
	return out
}

// Snapshots 将状态转换为逐车道视图
func (s Status) Snapshots() []LaneSnapshot {
	out := make([]LaneSnapshot, len(s.Densities))
	for i := range out {
		out[i] = LaneSnapshot{Index: i, Density: s.Densities[i]}
		if i < len(s.Counts) {
			out[i].Count = s.Counts[i]
		}
	}
	return out
}

// AgentCheckpoint 倍率学习智能体的可持久化状态
// 说明：Q表的键为离散状态的JSON数组形式，例如"[0,1,4,0]"
type AgentCheckpoint struct {
	NumLanes int                  `json:"num_lanes" bson:"num_lanes" msgpack:"num_lanes"`
	Alpha    float64              `json:"alpha" bson:"alpha" msgpack:"alpha"`
	Gamma    float64              `json:"gamma" bson:"gamma" msgpack:"gamma"`
	Epsilon  float64              `json:"eps" bson:"eps" msgpack:"eps"`
	Q        map[string][]float64 `json:"q" bson:"q" msgpack:"q"`
}
