package task

import (
	"context"
	"fmt"

	"github.com/Code-trac/aito-dep/entity"
	"github.com/Code-trac/aito-dep/entity/junction"
	"github.com/Code-trac/aito-dep/predict"
	"github.com/google/uuid"
)

// 默认训练轮数
const defaultTrainIters = 1000

// command 由控制循环goroutine在两个tick之间执行的外部命令
type command struct {
	fn   func(c context.Context) error
	done chan error
}

// exec 提交命令并等待执行完成
// 说明：命令函数自行加锁，持久化写入应在锁外进行
func (ctx *Context) exec(c context.Context, fn func(context.Context) error) error {
	if ctx.closed.Load() {
		return ErrClosed
	}
	cmd := command{fn: fn, done: make(chan error, 1)}
	select {
	case ctx.commands <- cmd:
	case <-ctx.quit:
		return ErrClosed
	case <-ctx.stopped:
		return ErrClosed
	case <-c.Done():
		return c.Err()
	}
	select {
	case err := <-cmd.done:
		return err
	case <-c.Done():
		return c.Err()
	}
}

// Advance 立即推进n个tick（不等待真实时间，用于测试与回放）
func (ctx *Context) Advance(c context.Context, n int) error {
	return ctx.exec(c, func(c context.Context) error {
		for i := 0; i < n; i++ {
			ctx.step(c)
		}
		return nil
	})
}

// SetMode 切换模拟数据/摄像头模式
func (ctx *Context) SetMode(c context.Context, mock bool) (entity.Mode, error) {
	var mode entity.Mode
	err := ctx.exec(c, func(context.Context) error {
		ctx.mtx.Lock()
		defer ctx.mtx.Unlock()
		ctx.mockMode = mock
		if !ctx.controller.IsManual() {
			ctx.status.Mode = modeOf(ctx.useMock())
		}
		mode = ctx.status.Mode
		log.Infof("mock mode set to %v", mock)
		return nil
	})
	return mode, err
}

// SetMockRows 替换模拟数据行
// 返回：加载的行数，行为空或车辆数多于车道数时返回错误
func (ctx *Context) SetMockRows(c context.Context, rows [][]int) (int, error) {
	if len(rows) == 0 {
		return 0, ErrEmptyRows
	}
	for i, row := range rows {
		if len(row) == 0 || len(row) > ctx.numLanes {
			return 0, fmt.Errorf("%w: row %d has %d counts, lanes: %d", ErrInvalidRows, i, len(row), ctx.numLanes)
		}
	}
	err := ctx.exec(c, func(context.Context) error {
		ctx.mock.Generator().SetRows(rows)
		log.Infof("loaded %d mock rows", len(rows))
		return nil
	})
	return len(rows), err
}

// Takeover 人工接管
// 功能：指定车道保持绿灯duration秒，期间不进行检测与决策
// 参数：user-操作人，lane-车道编号，duration-时长（小于等于0时使用最小绿灯时长）
// 返回：实际生效的时长
func (ctx *Context) Takeover(c context.Context, user string, lane int, duration float64) (float64, error) {
	if err := ctx.checkLane(lane); err != nil {
		return 0, err
	}
	if duration <= 0 {
		duration = ctx.runtimeConfig.All.Signal.MinGreen
	}
	err := ctx.exec(c, func(context.Context) error {
		ctx.mtx.Lock()
		ctrl, err := junction.Manual(lane, duration, user)
		if err != nil {
			ctx.mtx.Unlock()
			return err
		}
		ctx.controller = ctrl
		ctx.publishManual()
		rec := entity.OverrideRecord{
			ID:        uuid.NewString(),
			Timestamp: ctx.now(),
			User:      user,
			Lane:      lane,
			Duration:  duration,
			Reason:    "manual_takeover",
		}
		ctx.mtx.Unlock()

		log.Infof("override %s: %s took lane %d for %.0fs", rec.ID, user, lane, duration)
		ctx.persist("override", func(pc context.Context) error {
			return ctx.sink.LogOverride(pc, rec)
		})
		return nil
	})
	return duration, err
}

// Release 结束人工控制，下一个tick重新检测并决策
func (ctx *Context) Release(c context.Context) error {
	return ctx.exec(c, func(context.Context) error {
		ctx.mtx.Lock()
		defer ctx.mtx.Unlock()
		if !ctx.controller.IsManual() {
			return nil
		}
		log.Infof("manual control of lane %d released by %s", ctx.controller.Lane, ctx.controller.Owner)
		ctx.resumeAuto()
		return nil
	})
}

// Emergency 开启或关闭紧急模式
// 功能：开启时由系统接管指定车道（默认车道0）EmergencyTime秒；
// 关闭时清除紧急标记，仅在当前控制权属于系统时回到自动控制
// 返回：紧急车道
func (ctx *Context) Emergency(c context.Context, on bool, lane *int) (int, error) {
	green := 0
	if lane != nil {
		if err := ctx.checkLane(*lane); err != nil {
			return 0, err
		}
		green = *lane
	}
	err := ctx.exec(c, func(context.Context) error {
		ctx.mtx.Lock()
		defer ctx.mtx.Unlock()
		if !on {
			ctx.status.Emergency = false
			ctx.status.EmergencyLane = nil
			if ctx.controller.IsSystem() {
				ctx.resumeAuto()
			}
			log.Infof("emergency cleared")
			return nil
		}
		ctrl, err := junction.Manual(green, ctx.runtimeConfig.C.EmergencyTime, junction.OwnerSystem)
		if err != nil {
			return err
		}
		ctx.controller = ctrl
		ctx.publishManual()
		ctx.status.Emergency = true
		if lane != nil {
			l := *lane
			ctx.status.EmergencyLane = &l
		} else {
			ctx.status.EmergencyLane = nil
		}
		log.Warnf("emergency: lane %d green for %.0fs", green, ctrl.Remaining)
		return nil
	})
	return green, err
}

// Pedestrian 记录行人过街请求
func (ctx *Context) Pedestrian(c context.Context, lane int) error {
	if err := ctx.checkLane(lane); err != nil {
		return err
	}
	return ctx.exec(c, func(context.Context) error {
		ctx.mtx.Lock()
		defer ctx.mtx.Unlock()
		ctx.pedestrian = &PedestrianRequest{Lane: lane, RequestedAt: ctx.now()}
		log.Infof("pedestrian request on lane %d", lane)
		return nil
	})
}

// AcknowledgeAlert 确认某车道的全部告警
// 返回：本次确认的告警数
func (ctx *Context) AcknowledgeAlert(c context.Context, lane int) (int, error) {
	if err := ctx.checkLane(lane); err != nil {
		return 0, err
	}
	var n int
	err := ctx.exec(c, func(context.Context) error {
		ctx.mtx.Lock()
		n = ctx.alerts.Acknowledge(lane)
		alerts := ctx.alerts.Alerts()
		ctx.mtx.Unlock()
		ctx.persist("alerts", func(pc context.Context) error {
			return ctx.sink.SaveAlerts(pc, alerts)
		})
		return nil
	})
	return n, err
}

// TrainResult 离线训练结果
type TrainResult struct {
	Iters      int `json:"iters"`
	BufferSize int `json:"buffer_size"`
}

// Train 从经验池中采样训练智能体
// 参数：iters-训练轮数，小于等于0时使用默认值
func (ctx *Context) Train(c context.Context, iters int) (TrainResult, error) {
	if iters <= 0 {
		iters = defaultTrainIters
	}
	var res TrainResult
	err := ctx.exec(c, func(context.Context) error {
		ctx.mtx.Lock()
		defer ctx.mtx.Unlock()
		agent := ctx.dm.Agent()
		if agent == nil {
			return ErrNoAgent
		}
		res = TrainResult{Iters: ctx.dm.Train(iters), BufferSize: agent.Stats().BufferLen}
		log.Infof("trained agent for %d iterations, buffer size %d", iters, res.BufferSize)
		return nil
	})
	return res, err
}

// SetEpsilon 修改智能体探索率
func (ctx *Context) SetEpsilon(c context.Context, eps float64) (float64, error) {
	var got float64
	err := ctx.exec(c, func(context.Context) error {
		ctx.mtx.Lock()
		defer ctx.mtx.Unlock()
		agent := ctx.dm.Agent()
		if agent == nil {
			return ErrNoAgent
		}
		agent.SetEpsilon(eps)
		got = agent.Stats().Epsilon
		return nil
	})
	return got, err
}

// SetEnvironment 设置降雨与高峰状态，从下一次决策开始生效
func (ctx *Context) SetEnvironment(c context.Context, rain, peak bool) error {
	return ctx.exec(c, func(context.Context) error {
		ctx.mtx.Lock()
		defer ctx.mtx.Unlock()
		ctx.rain, ctx.peak = rain, peak
		log.Infof("environment: rain=%v peak=%v", rain, peak)
		return nil
	})
}

// SaveAgent 保存智能体Q表
// 说明：在调用方goroutine中读写存储，不占用控制循环
func (ctx *Context) SaveAgent(c context.Context) error {
	if ctx.closed.Load() {
		return ErrClosed
	}
	ctx.mtx.RLock()
	agent := ctx.dm.Agent()
	if agent == nil {
		ctx.mtx.RUnlock()
		return ErrNoAgent
	}
	cp := agent.Checkpoint()
	now := ctx.now()
	ctx.mtx.RUnlock()
	if err := ctx.sink.SaveAgent(c, cp, now); err != nil {
		return fmt.Errorf("failed to save agent: %w", err)
	}
	log.Infof("saved agent checkpoint with %d states", len(cp.Q))
	return nil
}

// LoadAgent 从存储中恢复最新的智能体Q表
// 返回：是否找到存档
// 说明：与SaveAgent相同，存储读写不占用控制循环
func (ctx *Context) LoadAgent(c context.Context) (bool, error) {
	if ctx.closed.Load() {
		return false, ErrClosed
	}
	return ctx.loadAgent(c)
}

func (ctx *Context) loadAgent(c context.Context) (bool, error) {
	ctx.mtx.RLock()
	hasAgent := ctx.dm.Agent() != nil
	ctx.mtx.RUnlock()
	if !hasAgent {
		return false, ErrNoAgent
	}
	cp, ok, err := ctx.sink.LoadAgent(c)
	if err != nil {
		return false, fmt.Errorf("failed to load agent: %w", err)
	}
	if !ok {
		return false, nil
	}
	ctx.mtx.Lock()
	defer ctx.mtx.Unlock()
	if err := ctx.dm.Agent().Restore(cp); err != nil {
		return false, err
	}
	log.Infof("restored agent checkpoint with %d states", len(cp.Q))
	return true, nil
}

// Prediction 某车道车辆数的分布预测
// 说明：没有任何历史记录时返回predict.ErrNoHistory
func (ctx *Context) Prediction(c context.Context, lane int) (predict.Prediction, error) {
	if err := ctx.checkLane(lane); err != nil {
		return predict.Prediction{}, err
	}
	values, err := ctx.sink.LaneHistory(c, lane)
	if err != nil {
		return predict.Prediction{}, err
	}
	if len(values) == 0 {
		values = nil
	}
	return predict.FromHistory(values)
}

// PredictedMu 逐车道历史车辆数均值，没有数据的车道为nil
func (ctx *Context) PredictedMu(c context.Context) ([]*float64, error) {
	out := make([]*float64, ctx.numLanes)
	for i := range out {
		values, err := ctx.sink.LaneHistory(c, i)
		if err != nil {
			return nil, err
		}
		out[i] = predict.Mean(values)
	}
	return out, nil
}
