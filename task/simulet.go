package task

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/Code-trac/aito-dep/entity"
	"github.com/Code-trac/aito-dep/entity/junction"
	"github.com/Code-trac/aito-dep/entity/lane"
	"github.com/Code-trac/aito-dep/utils/input"
)

const (
	SelfName = "aito" // 本程序在服务集群中的名字

	openTimeout = 10 * time.Second // 打开摄像头的超时时间
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

func modeOf(mock bool) entity.Mode {
	if mock {
		return entity.ModeMock
	}
	return entity.ModeCamera
}

// emptyStatus 启动前的初始状态
func (ctx *Context) emptyStatus() entity.Status {
	n := ctx.numLanes
	return entity.Status{
		Densities: make([]float64, n),
		Counts:    make([]int, n),
		Timers:    ctx.dm.LastTimers(),
		Lights:    junction.Lights(n, 0),
		Mode:      modeOf(ctx.mockMode),
		Timestamp: ctx.now(),
	}
}

// useMock 当前是否使用模拟数据（需持有锁）
// 说明：摄像头打开失败后本次运行一直使用模拟数据
func (ctx *Context) useMock() bool {
	return ctx.mockMode || ctx.cameraFailed
}

// openCamera 打开摄像头（在锁外调用）
func (ctx *Context) openCamera(c context.Context) {
	var err error
	if ctx.camera == nil {
		err = input.ErrCameraUnavailable
	} else {
		octx, cancel := context.WithTimeout(c, openTimeout)
		err = ctx.camera.Open(octx)
		cancel()
	}
	ctx.mtx.Lock()
	defer ctx.mtx.Unlock()
	ctx.cameraOpened = true
	if err != nil {
		ctx.cameraFailed = true
		ctx.status.Error = "camera_open_err:" + err.Error()
		log.Warnf("failed to open camera, using mock data: %v", err)
	}
}

// detect 执行一次检测（在锁外调用）
// 功能：调用检测源并计算逐车道密度，耗时不超过一个tick
// 说明：即使检测源不响应context，也会在超时后返回
func (ctx *Context) detect(c context.Context, mock bool) (*detection, error) {
	dctx, cancel := context.WithTimeout(c, ctx.clock.Interval)
	defer cancel()

	var detector entity.IDetector = ctx.mock
	if !mock {
		detector = ctx.camera
	}
	type result struct {
		lanes [][]entity.Detection
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		lanes, err := detector.Detect(dctx, ctx.rois)
		ch <- result{lanes, err}
	}()
	var r result
	select {
	case r = <-ch:
	case <-dctx.Done():
		return nil, dctx.Err()
	}
	if r.err != nil {
		return nil, r.err
	}
	if len(r.lanes) != ctx.numLanes {
		return nil, fmt.Errorf("got detections for %d lanes, want %d", len(r.lanes), ctx.numLanes)
	}
	densities, counts := lane.Estimate(r.lanes, ctx.runtimeConfig.C.Capacity)
	return &detection{densities: densities, counts: counts, mock: mock}, nil
}

// Init 启动控制循环前的初始化
// 功能：恢复告警与智能体存档，按需打开摄像头，以车道0为初始绿灯车道计算第一个周期
// 算法说明：
// 1. 从持久化中恢复告警列表，可选恢复智能体Q表
// 2. 摄像头模式下打开摄像头，失败则改用模拟数据
// 3. 初始快照：模拟模式下取一行模拟数据，摄像头模式下视为全部空车道
// 4. 以current=0决策，发布车道0与决策得到的时长、配时
func (ctx *Context) Init(c context.Context) {
	if alerts, err := ctx.sink.LoadAlerts(c); err != nil {
		log.Warnf("failed to load alerts: %v", err)
	} else {
		ctx.mtx.Lock()
		ctx.alerts.Load(alerts)
		ctx.mtx.Unlock()
		log.Infof("loaded %d alerts", len(alerts))
	}
	if ctx.runtimeConfig.All.Agent.LoadOnStart {
		if ok, err := ctx.loadAgent(c); err != nil {
			log.Warnf("failed to load agent checkpoint: %v", err)
		} else if !ok {
			log.Infof("no agent checkpoint found")
		}
	}

	ctx.mtx.RLock()
	mock := ctx.mockMode
	ctx.mtx.RUnlock()
	if !mock {
		ctx.openCamera(c)
		ctx.mtx.RLock()
		mock = ctx.useMock()
		ctx.mtx.RUnlock()
	}

	det := &detection{
		densities: make([]float64, ctx.numLanes),
		counts:    make([]int, ctx.numLanes),
		mock:      mock,
	}
	var detErr error
	if mock {
		if d, err := ctx.detect(c, true); err != nil {
			detErr = err
		} else {
			det = d
		}
	}

	ctx.mtx.Lock()
	defer ctx.mtx.Unlock()
	d := ctx.dm.Decide(det.densities, 0, ctx.rain, ctx.peak, false)
	ctx.current = 0
	ctx.countdown = float64(d.Duration)
	ctx.cycleDuration = ctx.countdown
	errMsg := ctx.status.Error
	if detErr != nil {
		errMsg = "detection_error:" + detErr.Error()
		log.Warnf("initial detection failed: %v", detErr)
	}
	ctx.status = entity.Status{
		Densities:   det.densities,
		Counts:      det.counts,
		Timers:      d.Timers,
		Lights:      junction.Lights(ctx.numLanes, 0),
		NextLane:    0,
		SignalTimer: ctx.countdown,
		Mode:        modeOf(mock),
		Error:       errMsg,
		Timestamp:   ctx.now(),
	}
	log.Infof("control loop initialized: lane 0 green for %ds, %d lanes", d.Duration, ctx.numLanes)
}

// step 推进一个tick
// 算法说明：
// 1. 人工接管：扣减剩余时间并发布，不进行检测与决策，结束后回到自动控制
// 2. 自动控制：倒计时减一，小于等于预取阈值且本周期未请求时在锁外执行检测
// 3. 倒计时归零：决策下一周期，发布状态，追加历史记录，统计连续最大绿灯并产生告警
func (ctx *Context) step(c context.Context) {
	step := ctx.clock.Tick()
	if *heartBeatInterval > 0 && step%int64(*heartBeatInterval) == 0 {
		hour, minute, second := ctx.clock.GetHourMinuteSecond()
		status := ctx.Status()
		log.Infof(
			"STEP: %d(%d:%d:%.2f) lane %d %.0fs mode %s",
			step, hour, minute, second,
			status.NextLane, status.SignalTimer, status.Mode,
		)
	}
	dt := ctx.clock.DT

	ctx.mtx.Lock()
	if ctx.controller.IsManual() {
		ctx.tickManual(dt)
		ctx.mtx.Unlock()
		return
	}
	ctx.countdown -= dt
	needDetect := ctx.countdown <= ctx.runtimeConfig.C.Prefetch && !ctx.requested
	mock := ctx.useMock()
	needOpen := !mock && !ctx.cameraOpened
	ctx.mtx.Unlock()

	if needDetect {
		if needOpen {
			ctx.openCamera(c)
			ctx.mtx.RLock()
			mock = ctx.useMock()
			ctx.mtx.RUnlock()
		}
		det, err := ctx.detect(c, mock)
		ctx.mtx.Lock()
		ctx.requested = true
		if err != nil {
			ctx.cached = nil
			ctx.status.Error = "detection_error:" + err.Error()
			log.Warnf("detection failed: %v", err)
		} else {
			ctx.cached = det
		}
	} else {
		ctx.mtx.Lock()
	}

	if ctx.countdown > 0 {
		ctx.status.SignalTimer = ctx.countdown
		ctx.status.Timestamp = ctx.now()
		ctx.mtx.Unlock()
		return
	}
	after := ctx.expire()
	ctx.mtx.Unlock()
	after()
}

// tickManual 人工接管下推进一个时间步（需持有锁）
func (ctx *Context) tickManual(dt float64) {
	green := ctx.controller.Lane
	remaining, released := ctx.controller.Tick(dt)
	ctx.status.Mode = entity.ModeManual
	ctx.status.NextLane = green
	ctx.status.SignalTimer = remaining
	ctx.status.Lights = junction.Lights(ctx.numLanes, green)
	ctx.status.Timestamp = ctx.now()
	if released {
		log.Infof("manual control of lane %d ended, back to auto", green)
		ctx.resumeAuto()
	}
}

// publishManual 发布人工接管状态（需持有锁）
func (ctx *Context) publishManual() {
	ctx.status.Mode = entity.ModeManual
	ctx.status.NextLane = ctx.controller.Lane
	ctx.status.SignalTimer = ctx.controller.Remaining
	ctx.status.Lights = junction.Lights(ctx.numLanes, ctx.controller.Lane)
	ctx.status.Timestamp = ctx.now()
}

// resumeAuto 回到自动控制（需持有锁）
// 说明：下一个tick立即检测并决策，当前绿灯车道不变
func (ctx *Context) resumeAuto() {
	ctx.controller = junction.Auto()
	ctx.countdown = 0
	ctx.cycleDuration = 0
	ctx.requested = false
	ctx.cached = nil
}

// expire 自动周期结束（需持有锁）
// 返回：需要在锁外提交的持久化操作
func (ctx *Context) expire() func() {
	elapsed := ctx.cycleDuration
	cached := ctx.cached
	var densities []float64
	if cached != nil {
		densities = cached.densities
	}
	d := ctx.dm.Decide(densities, ctx.current, ctx.rain, ctx.peak, ctx.runtimeConfig.C.PreferLearned)
	ctx.current = d.Lane
	ctx.countdown = float64(d.Duration)
	ctx.cycleDuration = ctx.countdown
	ctx.requested = false
	ctx.cached = nil

	status := ctx.status.Clone()
	status.Timers = d.Timers
	status.NextLane = d.Lane
	status.SignalTimer = ctx.countdown
	status.Lights = junction.Lights(ctx.numLanes, d.Lane)
	status.Timestamp = ctx.now()
	var history *entity.HistoryRecord
	if d.Fallback {
		status.Mode = entity.ModeFallback
		status.Error = "detection_failed"
		log.Warnf("no detection for this cycle, lane %d keeps last timer %ds", d.Lane, d.Duration)
	} else {
		status.Densities = cached.densities
		status.Counts = cached.counts
		status.Mode = modeOf(cached.mock)
		status.Error = ""
		history = &entity.HistoryRecord{
			Counts:    append([]int(nil), cached.counts...),
			Timestamp: status.Timestamp,
		}
		log.Debugf("lane %d green for %ds (learned: %v), densities %v", d.Lane, d.Duration, d.Learned, cached.densities)
	}
	ctx.status = status

	var alerts []entity.Alert
	if created := ctx.alerts.Observe(status.Timers, elapsed); len(created) > 0 {
		alerts = ctx.alerts.Alerts()
	}
	return func() {
		if history != nil {
			ctx.persist("history", func(pc context.Context) error {
				return ctx.sink.AppendHistory(pc, *history)
			})
		}
		if alerts != nil {
			ctx.persist("alerts", func(pc context.Context) error {
				return ctx.sink.SaveAlerts(pc, alerts)
			})
		}
	}
}

// Run 运行控制循环
// 功能：初始化后按tick推进，tick之间执行外部命令，直到context取消、达到结束步或Close
// 说明：同一个Context只能运行一次，重复调用返回ErrRunning
func (ctx *Context) Run(c context.Context) error {
	if !ctx.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer close(ctx.stopped)
	if ctx.closed.Load() {
		return ErrClosed
	}
	ctx.Init(c)
	ticker := time.NewTicker(ctx.clock.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.Done():
			log.Infof("control loop stopped: %v", c.Err())
			return nil
		case <-ctx.quit:
			log.Infof("control loop closed")
			return nil
		case cmd := <-ctx.commands:
			cmd.done <- cmd.fn(c)
		case <-ticker.C:
			ctx.step(c)
			if ctx.clock.Done() {
				log.Infof("control loop complete after %d steps", ctx.clock.Step())
				return nil
			}
		}
	}
}
