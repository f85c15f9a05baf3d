package entity

import "time"

// Artifact 作业产物，URL 在 ExpiresAt 之后不保证可用
type Artifact struct {
	Kind        string    `json:"kind"`
	ObjectKey   string    `json:"object_key"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expires_at"`
	SizeBytes   int64     `json:"size_bytes"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type,omitempty"`
}

// Expired 链接是否已过期
func (a Artifact) Expired(now time.Time) bool {
	return !a.ExpiresAt.After(now)
}
