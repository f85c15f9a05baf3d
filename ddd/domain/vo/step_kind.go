package vo

import (
	"fmt"
	"strings"
)

// StepKind 流水线步骤类型
type StepKind string

const (
	StepKindFetch       StepKind = "fetch"
	StepKindTranscode   StepKind = "transcode"
	StepKindTranscribe  StepKind = "transcribe"
	StepKindExtractText StepKind = "extract-text"
	StepKindSummarize   StepKind = "summarize"
	StepKindTranslate   StepKind = "translate"
)

// ArtifactKindOriginal fetch 步骤产物的类型标签
const ArtifactKindOriginal = "original"

// ParseStepKind 解析步骤类型，大小写不敏感，兼容下划线写法
func ParseStepKind(s string) (StepKind, error) {
	k := StepKind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	if !k.IsValid() {
		return "", fmt.Errorf("unknown step kind: %q", s)
	}
	return k, nil
}

// IsValid 检查步骤类型是否有效
func (k StepKind) IsValid() bool {
	switch k {
	case StepKindFetch, StepKindTranscode, StepKindTranscribe,
		StepKindExtractText, StepKindSummarize, StepKindTranslate:
		return true
	}
	return false
}

// String 返回步骤类型字符串
func (k StepKind) String() string {
	return string(k)
}

// ArtifactKind 步骤产物的类型标签：original 或 processed:<kind>
func (k StepKind) ArtifactKind() string {
	if k == StepKindFetch {
		return ArtifactKindOriginal
	}
	return "processed:" + string(k)
}

// ProducesText 该步骤产出文本而非媒体文件
func (k StepKind) ProducesText() bool {
	switch k {
	case StepKindTranscribe, StepKindExtractText, StepKindSummarize, StepKindTranslate:
		return true
	}
	return false
}
