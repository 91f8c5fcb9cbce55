package dto

// ==================== 调度器 ====================

// StartSchedulerReq 启动/重配调度器请求
type StartSchedulerReq struct {
	BatchSize       int `json:"batch_size" binding:"required,min=1"`
	IntervalMinutes int `json:"interval_minutes" binding:"required,min=1"`
}

// ==================== 鉴权 ====================

// LoginReq 操作员登录请求
type LoginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}
