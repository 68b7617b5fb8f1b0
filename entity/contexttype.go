package entity

import (
	"context"
	"time"

	"github.com/Code-trac/aito-dep/utils/config"
)

// 依赖倒置，表达控制循环对外部协作方的接口需求

// 车辆检测接口
type IDetector interface {
	// 对每个检测区域返回匹配到的车辆列表（可以为空），失败时返回error
	Detect(ctx context.Context, rois []config.ROI) ([][]Detection, error)
}

// 可打开的检测源（例如摄像头），循环启动时调用一次
type IOpener interface {
	Open(ctx context.Context) error
}

// 历史记录存储接口
type IHistoryStore interface {
	AppendHistory(ctx context.Context, rec HistoryRecord) error // 追加一条历史记录
	LaneHistory(ctx context.Context, lane int) ([]float64, error) // 读取某车道的全部历史车辆数
}

// 告警存储接口（整体替换）
type IAlertStore interface {
	SaveAlerts(ctx context.Context, alerts []Alert) error
	LoadAlerts(ctx context.Context) ([]Alert, error)
}

// 人工接管记录存储接口
type IOverrideStore interface {
	LogOverride(ctx context.Context, rec OverrideRecord) error
	ListOverrides(ctx context.Context) ([]OverrideRecord, error)
}

// 智能体存档接口
type IAgentStore interface {
	SaveAgent(ctx context.Context, cp AgentCheckpoint, savedAt time.Time) error
	// 读取最新的存档，不存在时返回ok=false
	LoadAgent(ctx context.Context) (cp AgentCheckpoint, ok bool, err error)
}

// 持久化接口
type ISink interface {
	IHistoryStore
	IAlertStore
	IOverrideStore
	IAgentStore
	Close(ctx context.Context) error
}
