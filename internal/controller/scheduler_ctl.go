package controller

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"catalog_import_v1_202608/internal/api/dto"
	"catalog_import_v1_202608/internal/middleware"
	"catalog_import_v1_202608/internal/task"
)

// 手动触发冷却时间，防止高频触发打爆上游目录 API
const manualTriggerCooldown = 30 * time.Second

type SchedulerController struct {
	importTask *task.ImportTask
}

func NewSchedulerController(importTask *task.ImportTask) *SchedulerController {
	return &SchedulerController{importTask: importTask}
}

// ==================== 调度器生命周期 ====================

// StartScheduler 启动/重配调度器
// @Summary 启动批量导入调度器；已在运行时替换配置
// @Tags Scheduler
// @Accept json
// @Param body body dto.StartSchedulerReq true "调度配置"
// @Success 200 {object} model.SchedulerStatus
// @Router /api/scheduler/start [post]
func (ctrl *SchedulerController) StartScheduler(c *gin.Context) {
	var req dto.StartSchedulerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}

	if err := ctrl.importTask.Start(req.BatchSize, req.IntervalMinutes); err != nil {
		c.JSON(400, gin.H{"code": 400, "message": "启动失败: " + err.Error()})
		return
	}

	c.JSON(200, gin.H{"code": 0, "message": "调度器已启动", "data": ctrl.importTask.Status()})
}

// StopScheduler 停止调度器
// @Summary 停止调度器；执行中的批次运行到结束
// @Tags Scheduler
// @Success 200 {object} model.SchedulerStatus
// @Router /api/scheduler/stop [post]
func (ctrl *SchedulerController) StopScheduler(c *gin.Context) {
	ctrl.importTask.Stop()
	c.JSON(200, gin.H{"code": 0, "message": "调度器已停止", "data": ctrl.importTask.Status()})
}

// GetSchedulerStatus 查询调度器状态
// @Summary 调度器运行状态与下次触发时间
// @Tags Scheduler
// @Success 200 {object} model.SchedulerStatus
// @Router /api/scheduler/status [get]
func (ctrl *SchedulerController) GetSchedulerStatus(c *gin.Context) {
	c.JSON(200, gin.H{"code": 0, "message": "success", "data": ctrl.importTask.Status()})
}

// ==================== 手动触发 ====================

// RunNow 手动触发一个批次
// @Summary 立即执行一次导入批次（带冷却限流）
// @Tags Scheduler
// @Success 200 {object} map[string]interface{}
// @Router /api/scheduler/run [post]
func (ctrl *SchedulerController) RunNow(c *gin.Context) {
	username := middleware.GetUsername(c)

	result := middleware.GetLimiter().Check("scheduler:run", manualTriggerCooldown)
	if !result.Allowed {
		c.JSON(429, gin.H{
			"code":    429,
			"message": fmt.Sprintf("触发过于频繁，请 %.0f 秒后重试", result.RetryAfter.Seconds()),
		})
		return
	}

	ctrl.importTask.RunNow()
	c.JSON(200, gin.H{"code": 0, "message": "批次已触发", "data": gin.H{"triggered_by": username}})
}
