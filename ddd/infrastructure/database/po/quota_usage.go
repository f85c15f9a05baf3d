package po

// QuotaUsage 每个身份每日的成功作业计数与产物字节数
type QuotaUsage struct {
	BaseModel
	IdentityKey    string `gorm:"column:identity_key;type:varchar(191);uniqueIndex:uk_quota_identity_day,priority:1" json:"identity_key"`
	Day            string `gorm:"column:day;type:varchar(10);uniqueIndex:uk_quota_identity_day,priority:2;index" json:"day"`
	OpCount        int64  `gorm:"column:op_count;type:bigint;default:0" json:"op_count"`
	BytesProcessed int64  `gorm:"column:bytes_processed;type:bigint;default:0" json:"bytes_processed"`
}

// TableName 指定表名
func (QuotaUsage) TableName() string {
	return "quota_usages"
}

// AllModels 需要迁移的全部表
func AllModels() []interface{} {
	return []interface{}{&MediaJob{}, &QuotaUsage{}}
}
