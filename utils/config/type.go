package config

// InputPath 指定MongoDB中的一个集合
// 功能：定义数据库名与集合名，供mongoutil获取集合
type InputPath struct {
	DB  string `yaml:"db"`  // 数据库名
	Col string `yaml:"col"` // 集合名
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// GetCachePath 本地缓存文件名{db}.{col}.pb
func (p InputPath) GetCachePath() string {
	return p.DB + "." + p.Col + ".pb"
}

// ROI 车道检测区域（像素坐标，x/y为左上角）
type ROI struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

// ControlStep 指定控制循环时间间隔的配置项
// 说明：每个tick控制循环推进一个单位（1秒）的信号时间，Interval为tick对应的真实时间
type ControlStep struct {
	Interval float64 `yaml:"interval"`        // 每个tick的真实时间间隔（秒）
	Total    int64   `yaml:"total,omitempty"` // 总tick数，0表示一直运行
}

// Control 控制循环配置
type Control struct {
	Step          ControlStep `yaml:"step"`
	Capacity      int         `yaml:"capacity,omitempty"`       // 单车道容量（辆），用于计算密度
	Prefetch      float64     `yaml:"prefetch,omitempty"`       // 倒计时小于等于该值时提前请求检测
	StreakAlert   float64     `yaml:"streak_alert,omitempty"`   // 连续最大绿灯告警阈值（秒）
	EmergencyTime float64     `yaml:"emergency_time,omitempty"` // 紧急模式人工控制时长（秒）
	PreferLearned bool        `yaml:"prefer_learned,omitempty"` // 优先使用学习到的倍率
	Mock          *bool       `yaml:"mock,omitempty"`           // 启动时是否使用模拟数据，默认true
	Rain          bool        `yaml:"rain,omitempty"`           // 初始降雨状态
	Peak          bool        `yaml:"peak,omitempty"`           // 初始高峰状态
}

// Camera 外部检测服务配置
type Camera struct {
	Addr   string `yaml:"addr,omitempty"`   // 检测服务地址，为空则不启用摄像头
	Source string `yaml:"source,omitempty"` // 视频源
}

// Signal 规则信控参数
type Signal struct {
	MinGreen    float64 `yaml:"min_green,omitempty"`
	MaxGreen    float64 `yaml:"max_green,omitempty"`
	ZeroDensity float64 `yaml:"zero_density,omitempty"` // 空车道密度阈值（%）
	RainBonus   float64 `yaml:"rain_bonus,omitempty"`
	PeakBonus   float64 `yaml:"peak_bonus,omitempty"`
}

// Agent 倍率学习智能体配置
type Agent struct {
	Disable     bool      `yaml:"disable,omitempty"`
	Bins        []float64 `yaml:"bins,omitempty"`        // 密度离散化边界
	Multipliers []float64 `yaml:"multipliers,omitempty"` // 可选倍率
	Alpha       *float64  `yaml:"alpha,omitempty"`       // 学习率
	Gamma       *float64  `yaml:"gamma,omitempty"`       // 折扣因子
	Epsilon     *float64  `yaml:"epsilon,omitempty"`     // 探索率
	BufferSize  int       `yaml:"buffer_size,omitempty"` // 经验池容量
	Seed        uint64    `yaml:"seed,omitempty"`
	LoadOnStart bool      `yaml:"load_on_start,omitempty"` // 启动时从存储中恢复Q表
}

// Mock 模拟数据配置
type Mock struct {
	Rows      [][]int `yaml:"rows,omitempty"`       // 循环使用的车辆数行
	CSV       string  `yaml:"csv,omitempty"`        // 从CSV加载行
	MaxRandom int     `yaml:"max_random,omitempty"` // 无行数据时随机车辆数上限
	Seed      uint64  `yaml:"seed,omitempty"`
}

// Store 持久化配置
type Store struct {
	Driver string `yaml:"driver,omitempty"` // sqlite | mongo | memory
	Path   string `yaml:"path,omitempty"`   // sqlite文件路径
	URI    string `yaml:"uri,omitempty"`    // MongoDB连接字符串
	DB     string `yaml:"db,omitempty"`     // MongoDB数据库名
}

// Config YAML配置文件的根结构
type Config struct {
	Lanes   []ROI   `yaml:"lanes,omitempty"` // 车道检测区域，数量即车道数
	Control Control `yaml:"control"`
	Camera  Camera  `yaml:"camera,omitempty"`
	Signal  Signal  `yaml:"signal,omitempty"`
	Agent   Agent   `yaml:"agent,omitempty"`
	Mock    Mock    `yaml:"mock,omitempty"`
	Store   Store   `yaml:"store,omitempty"`
}
