package cqe

import (
	"regexp"
	"strings"

	"media-pipeline-service/ddd/domain/service"
	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/pkg/errno"
)

var qualityPattern = regexp.MustCompile(`^\d{2,4}p(\d{2,3})?$`)

// SubmitJobReq 提交作业请求，fetch 步骤隐式位于链首
type SubmitJobReq struct {
	Source  string        `json:"source"`
	Quality string        `json:"quality"`
	Steps   []string      `json:"steps"`
	Options vo.JobOptions `json:"options"`

	kinds []vo.StepKind
}

// Validate 校验来源、步骤与参数，通过后可调用 StepKinds
func (req *SubmitJobReq) Validate() error {
	req.Source = strings.TrimSpace(req.Source)
	if err := service.ValidateSource(req.Source); err != nil {
		return err
	}

	req.Quality = strings.ToLower(strings.TrimSpace(req.Quality))
	if req.Quality == "" {
		req.Quality = vo.QualityBest
	}
	if req.Quality != vo.QualityBest && req.Quality != vo.QualityAudio && !qualityPattern.MatchString(req.Quality) {
		return errno.Newf(errno.ErrValidation, "unsupported quality %q", req.Quality)
	}

	kinds := make([]vo.StepKind, 0, len(req.Steps))
	for _, raw := range req.Steps {
		kind, err := vo.ParseStepKind(raw)
		if err != nil {
			return errno.Newf(errno.ErrValidation, "%v", err)
		}
		if kind == vo.StepKindFetch {
			return errno.Newf(errno.ErrValidation, "fetch is always the first step and must not be listed")
		}
		kinds = append(kinds, kind)
	}

	if err := req.Options.Validate(); err != nil {
		return errno.Newf(errno.ErrValidation, "%v", err)
	}
	if req.Quality == vo.QualityAudio {
		if f := req.Options.OutputFormat; f != "" && !vo.IsAudioFormat(f) {
			return errno.Newf(errno.ErrValidation, "output format %s is not an audio format", f)
		}
	}
	for _, kind := range kinds {
		if kind == vo.StepKindTranslate && strings.TrimSpace(req.Options.TargetLanguage) == "" {
			return errno.Newf(errno.ErrValidation, "translate requires options.target_language")
		}
	}
	req.kinds = kinds
	return nil
}

// StepKinds 校验后的步骤（不含 fetch）
func (req *SubmitJobReq) StepKinds() []vo.StepKind {
	return append([]vo.StepKind(nil), req.kinds...)
}

// ResolveFormatsReq 查询来源可选格式
type ResolveFormatsReq struct {
	Source string `json:"source" form:"source"`
}

// GetJobReq 查询作业状态
type GetJobReq struct {
	JobID string `uri:"job_id"`
}
