package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"

	"media-pipeline-service/ddd/application/app"
	"media-pipeline-service/ddd/domain/gateway"
	"media-pipeline-service/ddd/domain/service"
	"media-pipeline-service/ddd/infrastructure/database/persistence"
	"media-pipeline-service/ddd/infrastructure/identity"
	"media-pipeline-service/ddd/infrastructure/queue"
	"media-pipeline-service/ddd/infrastructure/quota"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/rpccodec"
)

type failingProbe struct{}

func (failingProbe) Probe(context.Context, string) (*gateway.ProbeResult, error) {
	return nil, context.DeadlineExceeded
}

func startServer(t *testing.T) *grpc.ClientConn {
	t.Helper()
	q := queue.NewMemoryJobQueue(8)
	quotaSvc := service.NewQuotaService(quota.NewMemoryLedger(), service.QuotaPolicy{Location: time.UTC, GuestLimit: 1, AuthenticatedLimit: 2})
	jobApp := app.NewJobAppWith(persistence.NewMemoryJobRepository(), quotaSvc, q)
	formatApp := app.NewFormatAppWith(service.NewFormatService(failingProbe{}))
	verifier := identity.NewJWTVerifier(config.JWTConfig{Secret: "s"})

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterMediaPipelineServer(srv, NewMediaPipelineGrpcServer(jobApp, formatApp, verifier))
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rpccodec.Name)),
	)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
		_ = q.Close()
	})
	return conn
}

func invoke(t *testing.T, ctx context.Context, conn *grpc.ClientConn, method string, in, out interface{}) {
	t.Helper()
	if err := conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		t.Fatalf("%s transport error = %v", method, err)
	}
}

// TestGrpcSubmitAndStatus verifies submission and status over the JSON codec.
func TestGrpcSubmitAndStatus(t *testing.T) {
	conn := startServer(t)
	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-guest-token", "grpc-guest")

	var submitted SubmitJobResponse
	invoke(t, ctx, conn, "SubmitJob", &SubmitJobRequest{Source: "https://example.com/v", Steps: []string{"transcode"}}, &submitted)
	if !submitted.Success || submitted.JobID == "" || submitted.Status != "queued" {
		t.Fatalf("SubmitJob = %+v", submitted)
	}

	var status GetJobStatusResponse
	invoke(t, ctx, conn, "GetJobStatus", &GetJobStatusRequest{JobID: submitted.JobID}, &status)
	if !status.Success || status.Job == nil || status.Job.JobID != submitted.JobID || len(status.Job.Steps) != 2 {
		t.Fatalf("GetJobStatus = %+v", status)
	}

	var missing GetJobStatusResponse
	invoke(t, ctx, conn, "GetJobStatus", &GetJobStatusRequest{JobID: "nope"}, &missing)
	if missing.Success || missing.Error != "NotFound" {
		t.Fatalf("missing job = %+v", missing.Result)
	}

	var quotaResp GetQuotaResponse
	invoke(t, ctx, conn, "GetQuota", &GetQuotaRequest{}, &quotaResp)
	if !quotaResp.Success || quotaResp.Quota.Identity != "guest:grpc-guest" || quotaResp.Quota.Used != 0 {
		t.Fatalf("GetQuota = %+v", quotaResp)
	}
}

// TestGrpcErrorTags verifies business failures travel in the result rather than as transport errors.
func TestGrpcErrorTags(t *testing.T) {
	conn := startServer(t)
	ctx := context.Background()

	var submitted SubmitJobResponse
	invoke(t, ctx, conn, "SubmitJob", &SubmitJobRequest{Source: "https://example.com/v", Steps: []string{"fetch"}}, &submitted)
	if submitted.Success || submitted.Error != "ValidationError" {
		t.Fatalf("SubmitJob = %+v", submitted.Result)
	}

	var formats ResolveFormatsResponse
	invoke(t, ctx, conn, "ResolveFormats", &ResolveFormatsRequest{Source: "https://example.com/v"}, &formats)
	if formats.Success || formats.Error != "UnresolvableSource" || formats.Catalog != nil {
		t.Fatalf("ResolveFormats = %+v", formats)
	}
}
