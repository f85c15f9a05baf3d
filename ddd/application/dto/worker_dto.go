package dto

// WorkerStatsDTO 单个 worker 的运行统计
type WorkerStatsDTO struct {
	WorkerID         string `json:"workerId"`
	Running          bool   `json:"running"`
	Concurrency      int    `json:"concurrency"`
	ProcessedTasks   int64  `json:"processedTasks"`
	SuccessfulTasks  int64  `json:"successfulTasks"`
	FailedTasks      int64  `json:"failedTasks"`
	SkippedTasks     int64  `json:"skippedTasks"`
	RequeuedTasks    int64  `json:"requeuedTasks"`
	CurrentlyRunning int    `json:"currentlyRunning"`
	StartTime        string `json:"startTime,omitempty"`
	LastTaskTime     string `json:"lastTaskTime,omitempty"`
}

// WorkerStatsListDTO worker 统计列表
type WorkerStatsListDTO struct {
	Workers   []WorkerStatsDTO `json:"workers"`
	QueueSize int              `json:"queueSize"`
}
