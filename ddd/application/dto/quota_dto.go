package dto

import "media-pipeline-service/ddd/domain/vo"

// QuotaDTO 当日配额，Limit 与 Remaining 为 -1 表示不限
type QuotaDTO struct {
	Identity       string `json:"identity"`
	Class          string `json:"class"`
	Day            string `json:"day"`
	Limit          int    `json:"limit"`
	Used           int64  `json:"used"`
	Remaining      int64  `json:"remaining"`
	BytesProcessed int64  `json:"bytesProcessed"`
	ResetsAt       string `json:"resetsAt"`
}

// NewQuotaDTO 转换配额状态
func NewQuotaDTO(s vo.QuotaState) *QuotaDTO {
	class := s.Identity.Class
	if class == "" {
		class = vo.IdentityGuest
	}
	return &QuotaDTO{
		Identity:       s.Identity.QuotaKey(),
		Class:          string(class),
		Day:            s.Day,
		Limit:          s.Limit,
		Used:           s.Used,
		Remaining:      s.Remaining(),
		BytesProcessed: s.BytesProcessed,
		ResetsAt:       FormatTime(s.ResetsAt),
	}
}
