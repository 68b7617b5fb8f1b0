package task

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"git.fiblab.net/sim/syncer/v3"
	"github.com/Code-trac/aito-dep/entity"
	"github.com/Code-trac/aito-dep/entity/junction"
	"github.com/Code-trac/aito-dep/entity/junction/trafficlight"
	"github.com/Code-trac/aito-dep/predict"
	"github.com/Code-trac/aito-dep/utils/rpcutil"
	"github.com/samber/lo"
)

// SignalServiceName 信控服务全名
const SignalServiceName = "aito.signal.v1.SignalService"

type Empty struct{}

type StatusResponse struct {
	entity.Status
	Lanes []entity.LaneSnapshot `json:"lanes"`
}

type OfficialStatusResponse struct {
	entity.Status
	Controller entity.ControllerView `json:"controller"`
	Alerts     []entity.Alert        `json:"alerts"`
	Streaks    []float64             `json:"streaks"`
	Pedestrian *PedestrianRequest    `json:"pedestrian,omitempty"`
}

type SetModeRequest struct {
	Mock *bool `json:"mock"`
}

type SetModeResponse struct {
	Mock bool        `json:"mock"`
	Mode entity.Mode `json:"mode"`
}

type SetMockRowsRequest struct {
	Rows [][]int `json:"rows"`
}

type SetMockRowsResponse struct {
	RowsLoaded int `json:"rows_loaded"`
}

type TakeoverRequest struct {
	User     string  `json:"user"`
	Lane     int     `json:"lane"`
	Duration float64 `json:"duration"`
}

type TakeoverResponse struct {
	Lane     int     `json:"lane"`
	Duration float64 `json:"duration"`
}

type EmergencyRequest struct {
	On   *bool `json:"on"` // 默认开启
	Lane *int  `json:"lane"`
}

type EmergencyResponse struct {
	On   bool `json:"on"`
	Lane int  `json:"lane"`
}

type LaneRequest struct {
	Lane *int `json:"lane"`
}

type AcknowledgeResponse struct {
	Acknowledged int `json:"acknowledged"`
}

type AlertsResponse struct {
	Alerts []entity.Alert `json:"alerts"`
}

type TrainRequest struct {
	Iters int `json:"iters"`
}

type AgentStatsResponse struct {
	Agent *trafficlight.AgentStats `json:"agent"` // 没有智能体时为null
}

type SetEpsilonRequest struct {
	Epsilon float64 `json:"eps"`
}

type SetEpsilonResponse struct {
	Epsilon float64 `json:"eps"`
}

type LoadAgentResponse struct {
	Loaded bool `json:"loaded"`
}

type PredictionResponse struct {
	*predict.Prediction
	Error string `json:"error,omitempty"` // no_history | insufficient_history
}

type UserStatusResponse struct {
	Latest      entity.Status `json:"latest"`
	PredictedMu []*float64    `json:"predicted_mu"`
}

type OverridesResponse struct {
	Overrides []entity.OverrideRecord `json:"overrides"`
}

type SetEnvironmentRequest struct {
	Rain bool `json:"rain"`
	Peak bool `json:"peak"`
}

// rpcError 将内部错误转换为connect错误码
func rpcError(err error) error {
	var code connect.Code
	switch {
	case errors.Is(err, ErrInvalidLane),
		errors.Is(err, ErrEmptyRows),
		errors.Is(err, ErrInvalidRows),
		errors.Is(err, junction.ErrInvalidDuration):
		code = connect.CodeInvalidArgument
	case errors.Is(err, ErrNoAgent),
		errors.Is(err, ErrClosed),
		errors.Is(err, ErrRunning),
		errors.Is(err, trafficlight.ErrCheckpointMismatch):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	default:
		code = connect.CodeInternal
	}
	return connect.NewError(code, err)
}

func invalid(msg string) error {
	return connect.NewError(connect.CodeInvalidArgument, errors.New(msg))
}

// signalService SignalService的RPC实现
type signalService struct {
	ctx *Context
}

// Register 将SignalService注册到sidecar
// 说明：命令由控制循环goroutine执行，不需要sidecar的锁
func (ctx *Context) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(
		SignalServiceName,
		func(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
			return ctx.Handler(opts...)
		},
		syncer.WithNoLock(),
	)
}

// Handler SignalService的HTTP处理器
func (ctx *Context) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	s := &signalService{ctx: ctx}
	m := rpcutil.NewMux(SignalServiceName, opts...)
	rpcutil.Handle(m, "GetStatus", s.GetStatus)
	rpcutil.Handle(m, "GetOfficialStatus", s.GetOfficialStatus)
	rpcutil.Handle(m, "UserStatus", s.UserStatus)
	rpcutil.Handle(m, "SetMode", s.SetMode)
	rpcutil.Handle(m, "SetMockRows", s.SetMockRows)
	rpcutil.Handle(m, "SetEnvironment", s.SetEnvironment)
	rpcutil.Handle(m, "Takeover", s.Takeover)
	rpcutil.Handle(m, "Release", s.Release)
	rpcutil.Handle(m, "Emergency", s.Emergency)
	rpcutil.Handle(m, "Pedestrian", s.Pedestrian)
	rpcutil.Handle(m, "ListAlerts", s.ListAlerts)
	rpcutil.Handle(m, "AcknowledgeAlert", s.AcknowledgeAlert)
	rpcutil.Handle(m, "ListOverrides", s.ListOverrides)
	rpcutil.Handle(m, "Train", s.Train)
	rpcutil.Handle(m, "AgentStats", s.AgentStats)
	rpcutil.Handle(m, "SetEpsilon", s.SetEpsilon)
	rpcutil.Handle(m, "SaveAgent", s.SaveAgent)
	rpcutil.Handle(m, "LoadAgent", s.LoadAgent)
	rpcutil.Handle(m, "Prediction", s.Prediction)
	return m.Pattern(), m
}

// GetStatus 最近发布的状态与逐车道视图
func (s *signalService) GetStatus(c context.Context, in *connect.Request[Empty]) (*connect.Response[StatusResponse], error) {
	status := s.ctx.Status()
	return connect.NewResponse(&StatusResponse{Status: status, Lanes: status.Snapshots()}), nil
}

// GetOfficialStatus 管理人员视图：状态、控制权、告警与连续最大绿灯时长
func (s *signalService) GetOfficialStatus(c context.Context, in *connect.Request[Empty]) (*connect.Response[OfficialStatusResponse], error) {
	return connect.NewResponse(&OfficialStatusResponse{
		Status:     s.ctx.Status(),
		Controller: s.ctx.Controller(),
		Alerts:     s.ctx.Alerts(),
		Streaks:    s.ctx.Streaks(),
		Pedestrian: s.ctx.LastPedestrian(),
	}), nil
}

// UserStatus 公众视图：状态与逐车道历史均值
func (s *signalService) UserStatus(c context.Context, in *connect.Request[Empty]) (*connect.Response[UserStatusResponse], error) {
	mu, err := s.ctx.PredictedMu(c)
	if err != nil {
		return nil, rpcError(err)
	}
	return connect.NewResponse(&UserStatusResponse{Latest: s.ctx.Status(), PredictedMu: mu}), nil
}

func (s *signalService) SetMode(c context.Context, in *connect.Request[SetModeRequest]) (*connect.Response[SetModeResponse], error) {
	if in.Msg.Mock == nil {
		return nil, invalid("mock is required")
	}
	mode, err := s.ctx.SetMode(c, *in.Msg.Mock)
	if err != nil {
		return nil, rpcError(err)
	}
	return connect.NewResponse(&SetModeResponse{Mock: *in.Msg.Mock, Mode: mode}), nil
}

func (s *signalService) SetMockRows(c context.Context, in *connect.Request[SetMockRowsRequest]) (*connect.Response[SetMockRowsResponse], error) {
	n, err := s.ctx.SetMockRows(c, in.Msg.Rows)
	if err != nil {
		return nil, rpcError(err)
	}
	return connect.NewResponse(&SetMockRowsResponse{RowsLoaded: n}), nil
}

func (s *signalService) SetEnvironment(c context.Context, in *connect.Request[SetEnvironmentRequest]) (*connect.Response[SetEnvironmentRequest], error) {
	if err := s.ctx.SetEnvironment(c, in.Msg.Rain, in.Msg.Peak); err != nil {
		return nil, rpcError(err)
	}
	return connect.NewResponse(in.Msg), nil
}

func (s *signalService) Takeover(c context.Context, in *connect.Request[TakeoverRequest]) (*connect.Response[TakeoverResponse], error) {
	if in.Msg.User == "" {
		return nil, invalid("user is required")
	}
	d, err := s.ctx.Takeover(c, in.Msg.User, in.Msg.Lane, in.Msg.Duration)
	if err != nil {
		return nil, rpcError(err)
	}
	return connect.NewResponse(&TakeoverResponse{Lane: in.Msg.Lane, Duration: d}), nil
}

func (s *signalService) Release(c context.Context, in *connect.Request[Empty]) (*connect.Response[Empty], error) {
	if err := s.ctx.Release(c); err != nil {
		return nil, rpcError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *signalService) Emergency(c context.Context, in *connect.Request[EmergencyRequest]) (*connect.Response[EmergencyResponse], error) {
	on := lo.FromPtrOr(in.Msg.On, true)
	lane, err := s.ctx.Emergency(c, on, in.Msg.Lane)
	if err != nil {
		return nil, rpcError(err)
	}
	return connect.NewResponse(&EmergencyResponse{On: on, Lane: lane}), nil
}

func (s *signalService) Pedestrian(c context.Context, in *connect.Request[LaneRequest]) (*connect.Response[Empty], error) {
	if err := s.ctx.Pedestrian(c, lo.FromPtr(in.Msg.Lane)); err != nil {
		return nil, rpcError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *signalService) ListAlerts(c context.Context, in *connect.Request[Empty]) (*connect.Response[AlertsResponse], error) {
	return connect.NewResponse(&AlertsResponse{Alerts: s.ctx.Alerts()}), nil
}

func (s *signalService) AcknowledgeAlert(c context.Context, in *connect.Request[LaneRequest]) (*connect.Response[AcknowledgeResponse], error) {
	if in.Msg.Lane == nil {
		return nil, invalid("lane is required")
	}
	n, err := s.ctx.AcknowledgeAlert(c, *in.Msg.Lane)
	if err != nil {
		return nil, rpcError(err)
	}
	return connect.NewResponse(&AcknowledgeResponse{Acknowledged: n}), nil
}

func (s *signalService) ListOverrides(c context.Context, in *connect.Request[Empty]) (*connect.Response[OverridesResponse], error) {
	recs, err := s.ctx.Overrides(c)
	if err != nil {
		return nil, rpcError(err)
	}
	return connect.NewResponse(&OverridesResponse{Overrides: recs}), nil
}

func (s *signalService) Train(c context.Context, in *connect.Request[TrainRequest]) (*connect.Response[TrainResult], error) {
	res, err := s.ctx.Train(c, in.Msg.Iters)
	if err != nil {
		return nil, rpcError(err)
	}
	return connect.NewResponse(&res), nil
}

func (s *signalService) AgentStats(c context.Context, in *connect.Request[Empty]) (*connect.Response[AgentStatsResponse], error) {
	stats, err := s.ctx.AgentStats()
	if errors.Is(err, ErrNoAgent) {
		return connect.NewResponse(&AgentStatsResponse{}), nil
	}
	return connect.NewResponse(&AgentStatsResponse{Agent: &stats}), nil
}

func (s *signalService) SetEpsilon(c context.Context, in *connect.Request[SetEpsilonRequest]) (*connect.Response[SetEpsilonResponse], error) {
	eps, err := s.ctx.SetEpsilon(c, in.Msg.Epsilon)
	if err != nil {
		return nil, rpcError(err)
	}
	return connect.NewResponse(&SetEpsilonResponse{Epsilon: eps}), nil
}

func (s *signalService) SaveAgent(c context.Context, in *connect.Request[Empty]) (*connect.Response[Empty], error) {
	if err := s.ctx.SaveAgent(c); err != nil {
		return nil, rpcError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *signalService) LoadAgent(c context.Context, in *connect.Request[Empty]) (*connect.Response[LoadAgentResponse], error) {
	ok, err := s.ctx.LoadAgent(c)
	if err != nil {
		return nil, rpcError(err)
	}
	return connect.NewResponse(&LoadAgentResponse{Loaded: ok}), nil
}

// Prediction 某车道车辆数的分布预测，历史不足时在error字段中说明
func (s *signalService) Prediction(c context.Context, in *connect.Request[LaneRequest]) (*connect.Response[PredictionResponse], error) {
	p, err := s.ctx.Prediction(c, lo.FromPtr(in.Msg.Lane))
	switch {
	case errors.Is(err, predict.ErrNoHistory), errors.Is(err, predict.ErrInsufficientHistory):
		return connect.NewResponse(&PredictionResponse{Error: err.Error()}), nil
	case err != nil:
		return nil, rpcError(err)
	}
	return connect.NewResponse(&PredictionResponse{Prediction: &p}), nil
}
