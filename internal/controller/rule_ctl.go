package controller

import (
	"errors"

	"github.com/gin-gonic/gin"

	"catalog_import_v1_202608/internal/model"
	"catalog_import_v1_202608/internal/service"
)

type RuleController struct {
	ruleService *service.RuleService
}

func NewRuleController(ruleService *service.RuleService) *RuleController {
	return &RuleController{ruleService: ruleService}
}

// ==================== 规则配置接口 ====================

// GetRules 读取自动化规则配置
// @Summary 当前生效的自动化规则
// @Tags Rule
// @Success 200 {object} model.RuleSet
// @Router /api/rules [get]
func (ctrl *RuleController) GetRules(c *gin.Context) {
	ctx := c.Request.Context()
	rules, err := ctrl.ruleService.Get(ctx)
	if err != nil {
		c.JSON(500, gin.H{"code": 500, "message": "读取规则失败: " + err.Error()})
		return
	}

	c.JSON(200, gin.H{"code": 0, "message": "success", "data": rules})
}

// UpdateRules 更新自动化规则配置
// @Summary 整体替换规则配置；非法配置整体拒绝，不做部分写入
// @Tags Rule
// @Accept json
// @Param body body model.RuleSet true "规则配置"
// @Success 200 {object} model.RuleSet
// @Router /api/rules [put]
func (ctrl *RuleController) UpdateRules(c *gin.Context) {
	var rules model.RuleSet
	if err := c.ShouldBindJSON(&rules); err != nil {
		c.JSON(400, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}
	rules.ID = model.RuleSetID

	ctx := c.Request.Context()
	if err := ctrl.ruleService.Update(ctx, &rules); err != nil {
		if errors.Is(err, service.ErrInvalidRuleConfig) {
			c.JSON(400, gin.H{"code": 400, "message": err.Error()})
			return
		}
		c.JSON(500, gin.H{"code": 500, "message": "保存规则失败: " + err.Error()})
		return
	}

	c.JSON(200, gin.H{"code": 0, "message": "规则已更新", "data": rules})
}
