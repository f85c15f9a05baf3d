package vo

import "fmt"

// JobStatus 作业状态
type JobStatus string

const (
	// JobStatusQueued 已入队，等待 worker 认领
	JobStatusQueued JobStatus = "queued"
	// JobStatusResolvingFormats 执行期重新解析清晰度，属于 running 的子状态
	JobStatusResolvingFormats JobStatus = "resolving-formats"
	// JobStatusRunning 执行中
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted 已完成
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed 失败
	JobStatusFailed JobStatus = "failed"
)

// ParseJobStatus 从字符串解析状态
func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(s)
	if !st.IsValid() {
		return "", fmt.Errorf("invalid job status: %s", s)
	}
	return st, nil
}

// IsValid 检查状态是否有效
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusQueued, JobStatusResolvingFormats, JobStatusRunning,
		JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// String 返回状态字符串
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal 检查是否为最终状态
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IsActive running 或其子状态
func (s JobStatus) IsActive() bool {
	return s == JobStatusRunning || s == JobStatusResolvingFormats
}

// CanTransitionTo 检查是否可以转换到目标状态
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return target == JobStatusRunning || target == JobStatusFailed
	case JobStatusRunning:
		return target == JobStatusResolvingFormats || target == JobStatusCompleted || target == JobStatusFailed
	case JobStatusResolvingFormats:
		return target == JobStatusRunning || target == JobStatusFailed
	case JobStatusCompleted, JobStatusFailed:
		return false // 最终状态不能转换
	default:
		return false
	}
}
