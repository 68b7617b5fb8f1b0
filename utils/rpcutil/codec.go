// connect RPC辅助工具：普通Go结构体的JSON编解码与处理器注册
package rpcutil

import (
	"context"
	"encoding/json"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// jsonCodec 以encoding/json编解码普通Go结构体，proto消息仍使用protojson
// 说明：名称与connect内置的"json"编解码器一致，注册后覆盖内置实现（内置实现只支持proto.Message）
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protojson.Marshal(m)
	}
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if m, ok := v.(proto.Message); ok {
		return protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(data, m)
	}
	return json.Unmarshal(data, v)
}

// WithJSON 返回同时适用于客户端与服务端的JSON编解码选项
func WithJSON() connect.Option {
	return connect.WithCodec(jsonCodec{})
}

// Mux 一个服务下所有procedure的处理器集合
type Mux struct {
	service string
	mux     *http.ServeMux
	opts    []connect.HandlerOption
}

// NewMux 创建服务处理器集合
// 参数：service-服务全名（如aito.signal.v1.SignalService），opts-公共处理器选项
func NewMux(service string, opts ...connect.HandlerOption) *Mux {
	return &Mux{
		service: service,
		mux:     http.NewServeMux(),
		opts:    append([]connect.HandlerOption{WithJSON()}, opts...),
	}
}

// Handle 注册一个一元procedure
func Handle[Req, Res any](m *Mux, method string, fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error)) {
	procedure := Procedure(m.service, method)
	m.mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, m.opts...))
}

// Pattern 服务路由前缀
func (m *Mux) Pattern() string {
	return "/" + m.service + "/"
}

// ServeHTTP 实现http.Handler
func (m *Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mux.ServeHTTP(w, r)
}

// Procedure 拼接procedure路径
func Procedure(service, method string) string {
	return "/" + service + "/" + method
}

// NewClient 创建一元procedure的JSON客户端
func NewClient[Req, Res any](httpClient connect.HTTPClient, baseURL, service, method string) *connect.Client[Req, Res] {
	return connect.NewClient[Req, Res](httpClient, baseURL+Procedure(service, method), WithJSON())
}
