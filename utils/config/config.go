package config

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"gopkg.in/yaml.v2"
)

var (
	ErrNoLane = errors.New("config: at least one lane is required")
)

// 默认车道检测区域，对应路口摄像头画面中的四个进口道
var DefaultLanes = []ROI{
	{X: 50, Y: 250, W: 120, H: 200},
	{X: 200, Y: 250, W: 120, H: 200},
	{X: 350, Y: 250, W: 120, H: 200},
	{X: 500, Y: 250, W: 120, H: 200},
}

// RuntimeConfig 运行时配置
// 功能：存储补全默认值之后的配置
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置
}

// Parse 解析YAML配置
// 说明：使用严格模式，未知字段视为错误
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("config: parse yaml: %w", err)
	}
	return c, nil
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：补全所有未指定的默认值并检查配置的合法性
// 参数：config-原始配置对象
// 返回：运行时配置指针，配置非法时返回错误
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	if config.Lanes == nil {
		config.Lanes = append([]ROI(nil), DefaultLanes...)
	}
	if len(config.Lanes) == 0 {
		return nil, ErrNoLane
	}

	c := &config.Control
	if c.Step.Interval <= 0 {
		c.Step.Interval = 1
	}
	if c.Capacity == 0 {
		c.Capacity = 10
	}
	if c.Prefetch == 0 {
		c.Prefetch = 10
	}
	if c.StreakAlert == 0 {
		c.StreakAlert = 30 * 60
	}
	if c.EmergencyTime == 0 {
		c.EmergencyTime = 20
	}
	if c.Mock == nil {
		c.Mock = lo.ToPtr(true)
	}

	s := &config.Signal
	s.MinGreen = lo.Ternary(s.MinGreen == 0, 10, s.MinGreen)
	s.MaxGreen = lo.Ternary(s.MaxGreen == 0, 50, s.MaxGreen)
	s.ZeroDensity = lo.Ternary(s.ZeroDensity == 0, 0.1, s.ZeroDensity)
	s.RainBonus = lo.Ternary(s.RainBonus == 0, 0.25, s.RainBonus)
	s.PeakBonus = lo.Ternary(s.PeakBonus == 0, 0.10, s.PeakBonus)
	if s.MinGreen > s.MaxGreen {
		return nil, fmt.Errorf("config: min_green %v > max_green %v", s.MinGreen, s.MaxGreen)
	}

	a := &config.Agent
	if len(a.Bins) == 0 {
		a.Bins = []float64{0, 20, 40, 60, 80, 100}
	}
	if len(a.Multipliers) == 0 {
		a.Multipliers = []float64{0.75, 1.0, 1.25, 1.5}
	}
	if a.Alpha == nil {
		a.Alpha = lo.ToPtr(0.2)
	}
	if a.Gamma == nil {
		a.Gamma = lo.ToPtr(0.95)
	}
	if a.Epsilon == nil {
		a.Epsilon = lo.ToPtr(0.2)
	}
	if a.BufferSize == 0 {
		a.BufferSize = 20000
	}
	if a.Seed == 0 {
		a.Seed = 42
	}

	m := &config.Mock
	if m.MaxRandom == 0 {
		m.MaxRandom = 8
	}
	if m.Seed == 0 {
		m.Seed = 42
	}
	for i, row := range m.Rows {
		if len(row) != len(config.Lanes) {
			return nil, fmt.Errorf("config: mock row %d has %d counts, want %d", i, len(row), len(config.Lanes))
		}
	}

	st := &config.Store
	if st.Driver == "" {
		st.Driver = "memory"
	}
	switch st.Driver {
	case "memory":
	case "sqlite":
		if st.Path == "" {
			st.Path = "aito.db"
		}
	case "mongo":
		if st.URI == "" {
			return nil, errors.New("config: store.uri is required for mongo driver")
		}
		if st.DB == "" {
			st.DB = "aito"
		}
	default:
		return nil, fmt.Errorf("config: unknown store driver %q", st.Driver)
	}

	return &RuntimeConfig{All: config, C: config.Control}, nil
}
