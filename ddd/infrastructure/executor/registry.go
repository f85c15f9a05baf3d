package executor

import (
	"net/http"
	"sync"

	"media-pipeline-service/ddd/domain/gateway"
	"media-pipeline-service/ddd/domain/port"
	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
)

// Registry 按步骤类型索引执行器
type Registry struct {
	mu        sync.RWMutex
	executors map[vo.StepKind]port.StepExecutor
}

// NewRegistry 创建注册表，同类型后注册的覆盖先注册的
func NewRegistry(executors ...port.StepExecutor) *Registry {
	r := &Registry{executors: make(map[vo.StepKind]port.StepExecutor, len(executors))}
	for _, e := range executors {
		r.Register(e)
	}
	return r
}

func (r *Registry) Register(e port.StepExecutor) {
	if e == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[e.Kind()] = e
}

func (r *Registry) Executor(kind vo.StepKind) (port.StepExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[kind]
	return e, ok
}

// Kinds 已注册的步骤类型
func (r *Registry) Kinds() []vo.StepKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]vo.StepKind, 0, len(r.executors))
	for k := range r.executors {
		kinds = append(kinds, k)
	}
	return kinds
}

var textKinds = []vo.StepKind{vo.StepKindTranscribe, vo.StepKindExtractText, vo.StepKindSummarize, vo.StepKindTranslate}

// NewRegistryFromConfig 组装 fetch、transcode 与所有配置了后端的文本步骤
func NewRegistryFromConfig(cfg *config.Config, storage gateway.StorageGateway, resolver gateway.FormatResolver, discovery AddressResolver) *Registry {
	prefix := cfg.Artifact.KeyPrefix
	r := NewRegistry(
		NewFetchExecutor(cfg.Pipeline.YtDlp, storage, resolver, prefix),
		NewFFmpegExecutor(cfg.Pipeline.FFmpeg, storage, prefix),
	)
	client := &http.Client{Timeout: cfg.Transform.Timeout}
	for _, kind := range textKinds {
		backend, ok := cfg.Transform.Backends[kind.String()]
		if !ok {
			// 兼容下划线写法的配置键
			backend, ok = cfg.Transform.Backends[underscore(kind)]
		}
		if !ok || (backend.Endpoint == "" && backend.ServiceName == "") {
			logger.Warnf("no transform backend configured for %s, jobs with this step will fail", kind)
			continue
		}
		r.Register(NewRemoteTransformExecutor(kind, backend, discovery, storage, client, prefix))
	}
	return r
}

func underscore(kind vo.StepKind) string {
	out := []byte(kind.String())
	for i, c := range out {
		if c == '-' {
			out[i] = '_'
		}
	}
	return string(out)
}
