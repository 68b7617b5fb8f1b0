package input

import (
	"context"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"github.com/Code-trac/aito-dep/entity"
	"github.com/Code-trac/aito-dep/utils/config"
	"github.com/Code-trac/aito-dep/utils/rpcutil"
)

// DetectionServiceName 外部检测服务名
const DetectionServiceName = "aito.detection.v1.DetectionService"

// OpenRequest 打开视频源
type OpenRequest struct {
	Source string `json:"source"`
}

// OpenResponse 打开视频源的结果
type OpenResponse struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// DetectRequest 对当前帧执行检测
type DetectRequest struct {
	Source string       `json:"source"`
	ROIs   []config.ROI `json:"rois"`
}

// DetectResponse 逐检测区域的检测结果
type DetectResponse struct {
	Lanes [][]entity.Detection `json:"lanes"`
}

// RemoteCamera 通过connect RPC调用外部检测服务的检测器
// 说明：视频读取与目标检测都在外部服务中完成，这里只负责协议转换
type RemoteCamera struct {
	source string
	open   *connect.Client[OpenRequest, OpenResponse]
	detect *connect.Client[DetectRequest, DetectResponse]
}

// NewRemoteCamera 创建外部检测服务客户端
// 参数：httpClient-HTTP客户端（nil时使用http.DefaultClient），cfg-摄像头配置
func NewRemoteCamera(httpClient connect.HTTPClient, cfg config.Camera) *RemoteCamera {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RemoteCamera{
		source: cfg.Source,
		open:   rpcutil.NewClient[OpenRequest, OpenResponse](httpClient, cfg.Addr, DetectionServiceName, "Open"),
		detect: rpcutil.NewClient[DetectRequest, DetectResponse](httpClient, cfg.Addr, DetectionServiceName, "Detect"),
	}
}

// Open 实现entity.IOpener，探测视频源是否可用
func (c *RemoteCamera) Open(ctx context.Context) error {
	res, err := c.open.CallUnary(ctx, connect.NewRequest(&OpenRequest{Source: c.source}))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
	}
	log.Infof("camera %q opened (%dx%d)", c.source, res.Msg.Width, res.Msg.Height)
	return nil
}

// Detect 实现entity.IDetector
// 说明：返回的区域数与rois不一致时视为检测失败
func (c *RemoteCamera) Detect(ctx context.Context, rois []config.ROI) ([][]entity.Detection, error) {
	res, err := c.detect.CallUnary(ctx, connect.NewRequest(&DetectRequest{Source: c.source, ROIs: rois}))
	if err != nil {
		return nil, err
	}
	lanes := res.Msg.Lanes
	if len(lanes) != len(rois) {
		return nil, fmt.Errorf("detection service returned %d lanes, want %d", len(lanes), len(rois))
	}
	return lanes, nil
}
