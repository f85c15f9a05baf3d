package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"media-pipeline-service/ddd/domain/gateway"
	"media-pipeline-service/ddd/domain/port"
	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
)

// inputURLTTL 交给转换服务的输入链接有效期
const inputURLTTL = time.Hour

// AddressResolver 按服务名解析地址，registry.ServiceDiscovery 满足该接口
type AddressResolver interface {
	GetServiceAddress(ctx context.Context, serviceName string) (string, error)
}

// addressEjector 连接失败时通知服务发现暂停该实例
type addressEjector interface {
	Eject(serviceName, addr string)
}

// TransformRequest 发往转换服务的请求体
type TransformRequest struct {
	Kind     string            `json:"kind"`
	JobID    string            `json:"job_id"`
	InputURL string            `json:"input_url"`
	Options  map[string]string `json:"options,omitempty"`
}

// TransformResponse 转换服务返回的文本结果
type TransformResponse struct {
	Text        string `json:"text"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Error       string `json:"error,omitempty"`
}

// RemoteTransformExecutor 调用外部 HTTP 服务完成转写、文字提取、摘要、翻译
type RemoteTransformExecutor struct {
	kind       vo.StepKind
	backend    config.TransformBackendConfig
	discovery  AddressResolver
	storage    gateway.StorageGateway
	httpClient *http.Client
	keyPrefix  string
}

// NewRemoteTransformExecutor 创建远程转换执行器，discovery 可为 nil
func NewRemoteTransformExecutor(kind vo.StepKind, backend config.TransformBackendConfig, discovery AddressResolver, storage gateway.StorageGateway, httpClient *http.Client, keyPrefix string) *RemoteTransformExecutor {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &RemoteTransformExecutor{
		kind:       kind,
		backend:    backend,
		discovery:  discovery,
		storage:    storage,
		httpClient: httpClient,
		keyPrefix:  keyPrefix,
	}
}

func (e *RemoteTransformExecutor) Kind() vo.StepKind { return e.kind }

func (e *RemoteTransformExecutor) Execute(ctx context.Context, req port.StepRequest) (*port.StepResult, error) {
	if req.InputRef == "" {
		return nil, fmt.Errorf("%s step has no input", e.kind)
	}
	endpoint, addr, err := e.endpoint(ctx)
	if err != nil {
		return nil, err
	}
	inputURL, err := e.storage.PresignGet(ctx, req.InputRef, "", inputURLTTL)
	if err != nil {
		return nil, fmt.Errorf("presign input: %w", err)
	}
	req.ReportProgress(0.1)

	payload := TransformRequest{
		Kind:     e.kind.String(),
		JobID:    req.Job.JobUUID(),
		InputURL: inputURL,
		Options:  transformOptions(req.Job.Options()),
	}
	result, err := e.call(ctx, endpoint, payload)
	if err != nil {
		var transportErr *transportError
		if addr != "" && errors.As(err, &transportErr) {
			if ej, ok := e.discovery.(addressEjector); ok {
				ej.Eject(e.backend.ServiceName, addr)
			}
		}
		return nil, err
	}
	req.ReportProgress(0.9)

	filename := result.Filename
	if filename == "" {
		filename = e.kind.String() + ".txt"
	}
	contentType := result.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	key := ObjectKey(e.keyPrefix, req.Job.JobUUID(), e.kind.String(), filename)
	size, err := e.storage.UploadStream(ctx, strings.NewReader(result.Text), int64(len(result.Text)), key, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload %s output: %w", e.kind, err)
	}
	req.ReportProgress(1)
	return &port.StepResult{
		Objects: []port.StoredObject{{
			ObjectKey:   key,
			Filename:    SanitizeFilename(filename),
			SizeBytes:   size,
			ContentType: contentType,
		}},
	}, nil
}

func (e *RemoteTransformExecutor) call(ctx context.Context, endpoint string, payload TransformRequest) (*TransformResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("call %s backend: %w", e.kind, err)
		}
		return nil, &transportError{kind: e.kind, err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s backend returned %d: %s", e.kind, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var out TransformResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", e.kind, err)
	}
	if out.Error != "" {
		return nil, errors.New(out.Error)
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, fmt.Errorf("%s backend returned empty text", e.kind)
	}
	logger.Infof("transform done kind=%s job_uuid=%s chars=%d elapsed=%s", e.kind, payload.JobID, len(out.Text), time.Since(start))
	return &out, nil
}

// transportError 未收到响应的调用失败，发现的实例会被暂时剔除
type transportError struct {
	kind vo.StepKind
	err  error
}

func (e *transportError) Error() string { return fmt.Sprintf("call %s backend: %v", e.kind, e.err) }

func (e *transportError) Unwrap() error { return e.err }

// endpoint 优先使用静态地址，否则通过服务发现拼接；addr 为发现的实例，静态地址时为空
func (e *RemoteTransformExecutor) endpoint(ctx context.Context) (url, addr string, err error) {
	if e.backend.Endpoint != "" {
		return e.backend.Endpoint, "", nil
	}
	if e.backend.ServiceName == "" {
		return "", "", fmt.Errorf("no backend configured for %s", e.kind)
	}
	if e.discovery == nil {
		return "", "", fmt.Errorf("service discovery unavailable for %s", e.backend.ServiceName)
	}
	addr, err = e.discovery.GetServiceAddress(ctx, e.backend.ServiceName)
	if err != nil {
		return "", "", fmt.Errorf("discover %s: %w", e.backend.ServiceName, err)
	}
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	path := e.backend.Path
	if path == "" {
		path = "/" + e.kind.String()
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/"), addr, nil
}

func transformOptions(o vo.JobOptions) map[string]string {
	opts := map[string]string{}
	if o.Language != "" {
		opts["language"] = o.Language
	}
	if o.TargetLanguage != "" {
		opts["target_language"] = o.TargetLanguage
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}
