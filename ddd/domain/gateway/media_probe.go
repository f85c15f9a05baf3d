package gateway

import (
	"context"

	"media-pipeline-service/ddd/domain/vo"
)

// MediaProbe 探测来源可用的格式与平台信息
type MediaProbe interface {
	Probe(ctx context.Context, source string) (*ProbeResult, error)
}

// ProbeFormat 上游返回的原始格式条目
type ProbeFormat struct {
	FormatID       string
	Ext            string
	Width          int
	Height         int
	FPS            float64
	VCodec         string
	ACodec         string
	ABR            float64
	TBR            float64
	FileSize       int64
	FileSizeApprox int64
	Note           string
}

// HasVideo 是否包含视频流
func (f ProbeFormat) HasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

// HasAudio 是否包含音频流
func (f ProbeFormat) HasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

// ProbeResult 探测结果
type ProbeResult struct {
	Platform    string
	Title       string
	DurationSec float64
	Uploader    string
	Formats     []ProbeFormat
}

// FormatResolver 执行期将清晰度标签解析为上游格式
type FormatResolver interface {
	ResolveOption(ctx context.Context, source, quality string) (*vo.FormatOption, *vo.FormatCatalog, error)
}
