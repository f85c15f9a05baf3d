package po

import (
	"time"

	"gorm.io/datatypes"
)

// MediaJob 媒体处理作业持久化对象，步骤链、产物与参数以 JSON 存储
type MediaJob struct {
	BaseModel
	JobUUID       string         `gorm:"column:job_uuid;type:varchar(36);uniqueIndex" json:"job_uuid"`
	IdentityClass string         `gorm:"column:identity_class;type:varchar(20)" json:"identity_class"`
	IdentityKey   string         `gorm:"column:identity_key;type:varchar(191);index" json:"identity_key"`
	Subject       string         `gorm:"column:subject;type:varchar(191)" json:"subject"`
	Plan          string         `gorm:"column:plan;type:varchar(50)" json:"plan"`
	Source        string         `gorm:"column:source;type:varchar(2048)" json:"source"`
	Quality       string         `gorm:"column:quality;type:varchar(32)" json:"quality"`
	Platform      string         `gorm:"column:platform;type:varchar(64)" json:"platform"`
	Status        string         `gorm:"column:status;type:varchar(20);index" json:"status"`
	Progress      int            `gorm:"column:progress;type:int;default:0" json:"progress"`
	FailureReason string         `gorm:"column:failure_reason;type:text" json:"failure_reason"`
	WorkerID      string         `gorm:"column:worker_id;type:varchar(64);index" json:"worker_id"`
	Options       datatypes.JSON `gorm:"column:options" json:"options"`
	Steps         datatypes.JSON `gorm:"column:steps" json:"steps"`
	Artifacts     datatypes.JSON `gorm:"column:artifacts" json:"artifacts"`
	StartedAt     *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt   *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

// TableName 指定表名
func (MediaJob) TableName() string {
	return "media_jobs"
}
