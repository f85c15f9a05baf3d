package entity

import (
	"math"
	"time"

	"media-pipeline-service/ddd/domain/vo"
)

// ChainStep 流水线中的单个步骤
type ChainStep struct {
	Index      int          `json:"index"`
	Kind       vo.StepKind  `json:"kind"`
	InputRef   string       `json:"input_ref,omitempty"`
	Weight     int          `json:"weight"`
	Status     vo.JobStatus `json:"status"`
	Progress   int          `json:"progress"`
	Error      string       `json:"error,omitempty"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// BuildChain 以 fetch 开头构造步骤链，权重平均分配，余数归最后一步
func BuildChain(source string, kinds []vo.StepKind) []ChainStep {
	all := make([]vo.StepKind, 0, len(kinds)+1)
	all = append(all, vo.StepKindFetch)
	all = append(all, kinds...)

	n := len(all)
	base := 100 / n
	steps := make([]ChainStep, n)
	for i, kind := range all {
		steps[i] = ChainStep{
			Index:  i,
			Kind:   kind,
			Weight: base,
			Status: vo.JobStatusQueued,
		}
	}
	steps[n-1].Weight += 100 - base*n
	steps[0].InputRef = source
	return steps
}

// ComputeProgress 已完成步骤权重之和加上当前步骤的进度份额，向下取整
func ComputeProgress(steps []ChainStep, current int, fraction float64) int {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	total := 0.0
	for i, s := range steps {
		if i < current && s.Status == vo.JobStatusCompleted {
			total += float64(s.Weight)
		}
	}
	if current >= 0 && current < len(steps) {
		total += fraction * float64(steps[current].Weight)
	}
	return int(math.Floor(total))
}
