package vo

import "time"

// QuotaState 某身份当日配额使用情况，Limit<0 表示不限；BytesProcessed 只用于展示，不参与限额
type QuotaState struct {
	Identity       Identity
	Day            string
	Used           int64
	Limit          int
	ResetsAt       time.Time
	BytesProcessed int64
}

// Unlimited 是否不限次数
func (q QuotaState) Unlimited() bool {
	return q.Limit < 0
}

// Exhausted 当日配额是否已用完
func (q QuotaState) Exhausted() bool {
	if q.Unlimited() {
		return false
	}
	return q.Used >= int64(q.Limit)
}

// Remaining 剩余次数，不限时返回 -1
func (q QuotaState) Remaining() int64 {
	if q.Unlimited() {
		return -1
	}
	r := int64(q.Limit) - q.Used
	if r < 0 {
		return 0
	}
	return r
}
