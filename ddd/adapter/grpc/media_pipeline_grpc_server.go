package grpc

import (
	"context"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"media-pipeline-service/ddd/application/app"
	"media-pipeline-service/ddd/application/cqe"
	"media-pipeline-service/ddd/domain/gateway"
	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/pkg/errno"
	"media-pipeline-service/pkg/logger"
	"media-pipeline-service/pkg/middleware"
)

// MediaPipelineGrpcServer implements the gRPC MediaPipeline service.
type MediaPipelineGrpcServer struct {
	jobApp    app.JobApp
	formatApp app.FormatApp
	verifier  gateway.IdentityVerifier
}

// NewMediaPipelineGrpcServer creates a new gRPC server implementation.
func NewMediaPipelineGrpcServer(jobApp app.JobApp, formatApp app.FormatApp, verifier gateway.IdentityVerifier) *MediaPipelineGrpcServer {
	return &MediaPipelineGrpcServer{jobApp: jobApp, formatApp: formatApp, verifier: verifier}
}

// SubmitJob 提交作业
func (s *MediaPipelineGrpcServer) SubmitJob(ctx context.Context, req *SubmitJobRequest) (*SubmitJobResponse, error) {
	identity := s.identityFrom(ctx)
	logger.Info("gRPC SubmitJob called", map[string]interface{}{
		"source":   req.Source,
		"quality":  req.Quality,
		"steps":    req.Steps,
		"identity": identity.QuotaKey(),
	})

	out, err := s.jobApp.SubmitJob(ctx, identity, &cqe.SubmitJobReq{
		Source:  req.Source,
		Quality: req.Quality,
		Steps:   req.Steps,
		Options: req.Options,
	})
	if err != nil {
		return &SubmitJobResponse{Result: failed(err)}, nil
	}
	return &SubmitJobResponse{Result: ok(), JobID: out.JobID, Status: out.Status}, nil
}

// GetJobStatus 查询作业状态
func (s *MediaPipelineGrpcServer) GetJobStatus(ctx context.Context, req *GetJobStatusRequest) (*GetJobStatusResponse, error) {
	job, err := s.jobApp.GetJobStatus(ctx, &cqe.GetJobReq{JobID: req.JobID})
	if err != nil {
		return &GetJobStatusResponse{Result: failed(err)}, nil
	}
	return &GetJobStatusResponse{Result: ok(), Job: job}, nil
}

// ResolveFormats 查询来源可选格式
func (s *MediaPipelineGrpcServer) ResolveFormats(ctx context.Context, req *ResolveFormatsRequest) (*ResolveFormatsResponse, error) {
	catalog, err := s.formatApp.ResolveFormats(ctx, &cqe.ResolveFormatsReq{Source: req.Source})
	if err != nil {
		return &ResolveFormatsResponse{Result: failed(err)}, nil
	}
	return &ResolveFormatsResponse{Result: ok(), Catalog: catalog}, nil
}

// GetQuota 当前身份的当日配额
func (s *MediaPipelineGrpcServer) GetQuota(ctx context.Context, _ *GetQuotaRequest) (*GetQuotaResponse, error) {
	quota, err := s.jobApp.RemainingQuota(ctx, s.identityFrom(ctx))
	if err != nil {
		return &GetQuotaResponse{Result: failed(err)}, nil
	}
	return &GetQuotaResponse{Result: ok(), Quota: quota}, nil
}

// identityFrom 从 authorization 与 x-guest-token 元数据解析身份，缺失时按对端地址识别访客
func (s *MediaPipelineGrpcServer) identityFrom(ctx context.Context) vo.Identity {
	var authorization, guestToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("authorization"); len(v) > 0 {
			authorization = v[0]
		}
		if v := md.Get("x-guest-token"); len(v) > 0 {
			guestToken = v[0]
		}
	}
	fallback := "grpc"
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		fallback = p.Addr.String()
	}
	return middleware.ResolveIdentity(s.verifier, authorization, guestToken, fallback)
}

func ok() Result {
	return Result{Success: true, Code: errno.OK.Code, Message: errno.OK.Message}
}

func failed(err error) Result {
	code, message := errno.Decode(err)
	tag := code.Tag
	if tag == "" {
		tag = errno.TagInternal
	}
	if tag == errno.TagInternal {
		logger.Errorf("gRPC request failed code=%d error=%s", code.Code, message)
	}
	return Result{Success: false, Code: code.Code, Message: message, Error: tag}
}
