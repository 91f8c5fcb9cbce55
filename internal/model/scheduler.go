package model

import "time"

// ==================== 调度器状态 ====================

// SchedulerStatus 批量导入调度器运行状态
// 仅存在于内存：进程重启后回到 stopped，是否随规则配置自启由启动逻辑决定
type SchedulerStatus struct {
	IsRunning       bool       `json:"is_running"`
	BatchSize       int        `json:"batch_size"`
	IntervalMinutes int        `json:"interval_minutes"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	NextFireAt      *time.Time `json:"next_fire_at,omitempty"`
}
