package grpc

import (
	"context"

	"google.golang.org/grpc"

	"media-pipeline-service/ddd/application/dto"
	"media-pipeline-service/ddd/domain/vo"
)

// ServiceName gRPC 服务全名，消息使用 rpccodec 的 JSON 编码
const ServiceName = "mediapipeline.v1.MediaPipeline"

// Result 所有响应共用的结果字段，业务错误不作为 gRPC 状态返回
type Result struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type SubmitJobRequest struct {
	Source  string        `json:"source"`
	Quality string        `json:"quality"`
	Steps   []string      `json:"steps"`
	Options vo.JobOptions `json:"options"`
}

type SubmitJobResponse struct {
	Result
	JobID  string `json:"jobId,omitempty"`
	Status string `json:"status,omitempty"`
}

type GetJobStatusRequest struct {
	JobID string `json:"jobId"`
}

type GetJobStatusResponse struct {
	Result
	Job *dto.JobStatusDTO `json:"job,omitempty"`
}

type ResolveFormatsRequest struct {
	Source string `json:"source"`
}

type ResolveFormatsResponse struct {
	Result
	Catalog *dto.FormatCatalogDTO `json:"catalog,omitempty"`
}

type GetQuotaRequest struct{}

type GetQuotaResponse struct {
	Result
	Quota *dto.QuotaDTO `json:"quota,omitempty"`
}

// MediaPipelineServer 服务端接口
type MediaPipelineServer interface {
	SubmitJob(ctx context.Context, req *SubmitJobRequest) (*SubmitJobResponse, error)
	GetJobStatus(ctx context.Context, req *GetJobStatusRequest) (*GetJobStatusResponse, error)
	ResolveFormats(ctx context.Context, req *ResolveFormatsRequest) (*ResolveFormatsResponse, error)
	GetQuota(ctx context.Context, req *GetQuotaRequest) (*GetQuotaResponse, error)
}

// RegisterMediaPipelineServer 注册服务实现
func RegisterMediaPipelineServer(s grpc.ServiceRegistrar, srv MediaPipelineServer) {
	s.RegisterService(&MediaPipelineServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](method string, call func(MediaPipelineServer, context.Context, *Req) (*Resp, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MediaPipelineServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(MediaPipelineServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// MediaPipelineServiceDesc 手写的服务描述
var MediaPipelineServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MediaPipelineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitJob", Handler: unaryHandler("SubmitJob", MediaPipelineServer.SubmitJob)},
		{MethodName: "GetJobStatus", Handler: unaryHandler("GetJobStatus", MediaPipelineServer.GetJobStatus)},
		{MethodName: "ResolveFormats", Handler: unaryHandler("ResolveFormats", MediaPipelineServer.ResolveFormats)},
		{MethodName: "GetQuota", Handler: unaryHandler("GetQuota", MediaPipelineServer.GetQuota)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mediapipeline/v1/media_pipeline.proto",
}
