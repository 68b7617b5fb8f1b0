package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/Code-trac/aito-dep/clock"
	"github.com/Code-trac/aito-dep/entity"
	"github.com/Code-trac/aito-dep/entity/junction"
	"github.com/Code-trac/aito-dep/entity/junction/trafficlight"
	"github.com/Code-trac/aito-dep/utils/config"
	"github.com/Code-trac/aito-dep/utils/input"
	"github.com/samber/lo"
)

var (
	ErrNoAgent     = errors.New("agent is disabled")
	ErrInvalidLane = errors.New("invalid lane")
	ErrClosed      = errors.New("control loop is closed")
	ErrEmptyRows   = errors.New("mock rows must not be empty")
	ErrInvalidRows = errors.New("invalid mock row")
	ErrRunning     = errors.New("control loop is already running")
)

// Camera 摄像头检测源
type Camera interface {
	entity.IDetector
	entity.IOpener
}

// detection 一次检测得到的逐车道密度与车辆数
type detection struct {
	densities []float64
	counts    []int
	mock      bool // 是否来自模拟数据
}

// PedestrianRequest 行人过街请求（只记录，不参与配时）
type PedestrianRequest struct {
	Lane        int       `json:"lane"`
	RequestedAt time.Time `json:"requested_at"`
}

// Context 信控任务上下文
// 功能：包含一个路口控制循环的全部状态与协作方，替代全局变量
// 说明：mtx保护下方全部可变状态；所有修改都在控制循环goroutine中进行，
// 外部读取通过加读锁的访问方法返回拷贝
type Context struct {
	// 任务名
	job string
	// 关闭指令
	closed atomic.Bool
	quit   chan struct{}
	// 控制循环运行中与退出
	running atomic.Bool
	stopped chan struct{}

	// 时钟
	clock *clock.Clock

	// 辅助程序，提供RPC服务（可以为nil）
	sidecar *syncer.Sidecar
	// sidecar close channel
	sidecarCloseCh chan struct{}
	serving        bool

	// 运行时配置文件
	runtimeConfig *config.RuntimeConfig
	rois          []config.ROI
	numLanes      int

	// 检测与持久化
	mock   *input.MockDetector
	camera Camera // 可以为nil
	sink   entity.ISink
	writer *writer // sink写入协程，控制循环只入队

	// 外部命令，由控制循环goroutine依次执行
	commands chan command
	now      func() time.Time

	mtx sync.RWMutex
	// 以下字段受mtx保护
	status        entity.Status
	controller    junction.Controller
	alerts        *junction.AlertBook
	dm            *trafficlight.DecisionManager
	mockMode      bool
	cameraOpened  bool
	cameraFailed  bool
	rain, peak    bool
	current       int        // 当前绿灯车道
	countdown     float64    // 当前自动周期剩余时间
	cycleDuration float64    // 当前自动周期的总时长
	requested     bool       // 本周期是否已请求检测
	cached        *detection // 本周期的检测结果
	pedestrian    *PedestrianRequest
}

// NewContext 创建新的信控任务上下文
// 功能：根据运行时配置创建决策管理器、智能体、模拟数据源，并注册RPC服务
// 参数：
//   - job: 任务名称
//   - c: 已补全默认值的运行时配置
//   - sink: 持久化实现
//   - camera: 摄像头检测源（nil表示没有摄像头）
//   - sidecar: RPC服务的sidecar（nil表示不提供RPC服务）
//   - startSidecarServe: 是否启动sidecar服务
//
// 返回：初始化完成的Context实例，车道数或智能体参数非法时返回错误
func NewContext(
	job string,
	c *config.RuntimeConfig,
	sink entity.ISink,
	camera Camera,
	sidecar *syncer.Sidecar,
	startSidecarServe bool,
) (*Context, error) {
	all := c.All
	numLanes := len(all.Lanes)
	policy := trafficlight.Policy{
		MinGreen:    all.Signal.MinGreen,
		MaxGreen:    all.Signal.MaxGreen,
		ZeroDensity: all.Signal.ZeroDensity,
		RainBonus:   all.Signal.RainBonus,
		PeakBonus:   all.Signal.PeakBonus,
	}
	dm, err := trafficlight.NewDecisionManager(numLanes, policy)
	if err != nil {
		return nil, fmt.Errorf("%d lanes: %w", numLanes, err)
	}
	if !all.Agent.Disable {
		_, err := dm.InitAgent(trafficlight.AgentOptions{
			Bins:        all.Agent.Bins,
			Multipliers: all.Agent.Multipliers,
			Alpha:       lo.FromPtr(all.Agent.Alpha),
			Gamma:       lo.FromPtr(all.Agent.Gamma),
			Epsilon:     lo.FromPtr(all.Agent.Epsilon),
			BufferSize:  all.Agent.BufferSize,
			Seed:        all.Agent.Seed,
		})
		if err != nil {
			return nil, err
		}
	}

	gen := input.NewMockGenerator(all.Mock.Rows, all.Mock.MaxRandom, all.Mock.Seed)
	if all.Mock.CSV != "" {
		if err := gen.LoadCSVFile(all.Mock.CSV); err != nil {
			return nil, fmt.Errorf("failed to load mock csv: %w", err)
		}
	}

	ctx := &Context{
		job:            job,
		quit:           make(chan struct{}),
		stopped:        make(chan struct{}),
		clock:          clock.New(c.C.Step),
		sidecar:        sidecar,
		sidecarCloseCh: make(chan struct{}),
		runtimeConfig:  c,
		rois:           all.Lanes,
		numLanes:       numLanes,
		mock:           input.NewMockDetector(gen, input.NewSynthetic(all.Mock.Seed+1)),
		camera:         camera,
		sink:           sink,
		writer:         newWriter(persistQueueSize),
		commands:       make(chan command),
		now:            time.Now,
		controller:     junction.Auto(),
		alerts:         junction.NewAlertBook(numLanes, policy.MaxGreen, c.C.StreakAlert),
		dm:             dm,
		mockMode:       lo.FromPtr(c.C.Mock),
		rain:           c.C.Rain,
		peak:           c.C.Peak,
	}
	ctx.status = ctx.emptyStatus()

	if sidecar != nil {
		ctx.clock.Register(sidecar)
		ctx.Register(sidecar)
		// sidecar协程，用于提供RPC服务
		if startSidecarServe {
			ctx.serving = true
			go func() {
				err := ctx.sidecar.Serve()
				if err != nil {
					log.Panicf("failed to serve: %v", err)
				}
				ctx.sidecarCloseCh <- struct{}{}
			}()
		}
	}
	return ctx, nil
}

// SetNow 替换时间来源（测试用），需在Run之前调用
func (ctx *Context) SetNow(now func() time.Time) {
	ctx.now = now
	ctx.alerts.SetClock(now)
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) NumLanes() int {
	return ctx.numLanes
}

// MockGenerator 模拟数据生成器
func (ctx *Context) MockGenerator() *input.MockGenerator {
	return ctx.mock.Generator()
}

// Status 最近发布的状态快照
func (ctx *Context) Status() entity.Status {
	ctx.mtx.RLock()
	defer ctx.mtx.RUnlock()
	return ctx.status.Clone()
}

// Controller 当前控制权视图
func (ctx *Context) Controller() entity.ControllerView {
	ctx.mtx.RLock()
	defer ctx.mtx.RUnlock()
	return ctx.controller.View()
}

// Alerts 当前告警列表
func (ctx *Context) Alerts() []entity.Alert {
	ctx.mtx.RLock()
	defer ctx.mtx.RUnlock()
	return ctx.alerts.Alerts()
}

// Streaks 逐车道连续最大绿灯时长
func (ctx *Context) Streaks() []float64 {
	ctx.mtx.RLock()
	defer ctx.mtx.RUnlock()
	return ctx.alerts.Streaks()
}

// LastPedestrian 最近一次行人过街请求
func (ctx *Context) LastPedestrian() *PedestrianRequest {
	ctx.mtx.RLock()
	defer ctx.mtx.RUnlock()
	if ctx.pedestrian == nil {
		return nil
	}
	req := *ctx.pedestrian
	return &req
}

// AgentStats 智能体统计信息，没有智能体时返回ErrNoAgent
func (ctx *Context) AgentStats() (trafficlight.AgentStats, error) {
	ctx.mtx.RLock()
	defer ctx.mtx.RUnlock()
	agent := ctx.dm.Agent()
	if agent == nil {
		return trafficlight.AgentStats{}, ErrNoAgent
	}
	return agent.Stats(), nil
}

// Overrides 人工接管记录
func (ctx *Context) Overrides(c context.Context) ([]entity.OverrideRecord, error) {
	return ctx.sink.ListOverrides(c)
}

func (ctx *Context) checkLane(lane int) error {
	if lane < 0 || lane >= ctx.numLanes {
		return fmt.Errorf("%w: %d (lanes: %d)", ErrInvalidLane, lane, ctx.numLanes)
	}
	return nil
}

// persist 将一次持久化写入交给写入协程，不等待结果，失败只记录日志
func (ctx *Context) persist(what string, fn func(context.Context) error) {
	ctx.writer.submit(what, fn)
}

// Flush 等待此前提交的持久化写入全部完成
func (ctx *Context) Flush(c context.Context) error {
	return ctx.writer.flush(c)
}

// Close 关闭任务
// 说明：停止接收命令，等待控制循环退出后关闭sidecar，写完剩余记录再关闭持久化实现
func (ctx *Context) Close() {
	if ctx.closed.Swap(true) {
		return
	}
	close(ctx.quit)
	if ctx.running.Load() {
		<-ctx.stopped
	}
	if ctx.sidecar != nil && ctx.serving {
		ctx.sidecar.Close()
		// wait for graceful stop
		<-ctx.sidecarCloseCh
	}
	ctx.writer.close()
	if err := ctx.sink.Close(context.Background()); err != nil {
		log.Warnf("failed to close store: %v", err)
	}
}
