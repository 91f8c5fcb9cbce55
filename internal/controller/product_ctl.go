package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"catalog_import_v1_202608/internal/api/dto"
	"catalog_import_v1_202608/internal/middleware"
	"catalog_import_v1_202608/internal/model"
	"catalog_import_v1_202608/internal/repository"
	"catalog_import_v1_202608/internal/service"
)

type ProductController struct {
	productService    *service.ProductService
	transitionService *service.TransitionService
}

func NewProductController(productService *service.ProductService, transitionService *service.TransitionService) *ProductController {
	return &ProductController{
		productService:    productService,
		transitionService: transitionService,
	}
}

// ==================== 查询接口 ====================

// GetProducts 获取商品列表
// @Summary 按阶段/关键词分页查询商品记录
// @Tags Product
// @Param stage query string false "阶段筛选"
// @Param keyword query string false "名称搜索"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} dto.ProductListResp
// @Router /api/products [get]
func (ctrl *ProductController) GetProducts(c *gin.Context) {
	stage := c.Query("stage")
	if stage != "" && !model.IsValidStage(stage) {
		c.JSON(400, gin.H{"code": 400, "message": "无效的 stage"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	ctx := c.Request.Context()
	records, total, err := ctrl.productService.ListProducts(ctx, repository.ProductFilter{
		Stage:       stage,
		ProductType: c.Query("product_type"),
		Keyword:     c.Query("keyword"),
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		c.JSON(500, gin.H{"code": 500, "message": "查询失败: " + err.Error()})
		return
	}

	c.JSON(200, dto.ProductListResp{
		Code:     0,
		Message:  "success",
		Data:     records,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetProduct 获取商品详情
// @Summary 获取单个商品记录
// @Tags Product
// @Param id path int true "商品ID"
// @Success 200 {object} model.ProductRecord
// @Router /api/products/{id} [get]
func (ctrl *ProductController) GetProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(400, gin.H{"code": 400, "message": "无效的商品ID"})
		return
	}

	ctx := c.Request.Context()
	record, err := ctrl.productService.GetProduct(ctx, id)
	if err != nil {
		c.JSON(404, gin.H{"code": 404, "message": "商品不存在"})
		return
	}

	c.JSON(200, gin.H{"code": 0, "message": "success", "data": record})
}

// GetStats 获取各阶段商品统计
// @Summary 各阶段商品数量
// @Tags Product
// @Success 200 {object} map[string]int64
// @Router /api/products/stats [get]
func (ctrl *ProductController) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := ctrl.productService.GetStageStats(ctx)
	if err != nil {
		c.JSON(500, gin.H{"code": 500, "message": "查询失败: " + err.Error()})
		return
	}

	c.JSON(200, gin.H{"code": 0, "message": "success", "data": stats})
}

// ==================== 阶段迁移接口 ====================

// BulkTransition 批量阶段迁移
// @Summary 批量审批/拒绝/发布等阶段迁移，逐条返回结果
// @Tags Product
// @Accept json
// @Produce json
// @Param body body dto.TransitionReq true "迁移请求"
// @Success 200 {object} dto.TransitionResp
// @Router /api/transitions [post]
func (ctrl *ProductController) BulkTransition(c *gin.Context) {
	var req dto.TransitionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}
	if len(req.ProductIDs) == 0 {
		c.JSON(400, gin.H{"code": 400, "message": "product_ids 不能为空"})
		return
	}
	if !model.IsValidStage(req.TargetStage) {
		c.JSON(400, gin.H{"code": 400, "message": "无效的 target_stage"})
		return
	}

	actor := service.HumanActor(middleware.GetUsername(c))

	ctx := c.Request.Context()
	results := ctrl.transitionService.BulkTransition(ctx, req.ProductIDs, req.TargetStage, actor, req.Reason)

	resp := dto.TransitionResp{
		Code:    0,
		Message: "success",
		Errors:  make(map[string]int),
		Results: make([]dto.TransitionOutcome, 0, len(results)),
	}
	for _, r := range results {
		resp.Results = append(resp.Results, dto.TransitionOutcome{
			ProductID: r.ProductID,
			Success:   r.Success,
			Error:     r.Error,
		})
		if r.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
			resp.Errors[r.Error]++
		}
	}

	c.JSON(200, resp)
}

// ==================== 定价接口 ====================

// UpdatePricing 更新定价字段
// @Summary 设置 pricing 阶段商品的成本价/售价/佣金
// @Tags Product
// @Accept json
// @Param id path int true "商品ID"
// @Param body body dto.PricingReq true "定价信息"
// @Success 200 {object} map[string]interface{}
// @Router /api/products/{id}/pricing [patch]
func (ctrl *ProductController) UpdatePricing(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(400, gin.H{"code": 400, "message": "无效的商品ID"})
		return
	}

	var req dto.PricingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := ctrl.productService.SetPricing(ctx, id, req.CostPrice, req.Price, req.CommissionRate); err != nil {
		c.JSON(statusForError(err), gin.H{"code": statusForError(err), "message": "定价失败: " + err.Error()})
		return
	}

	c.JSON(200, gin.H{"code": 0, "message": "定价已更新"})
}

// ==================== 删除接口 ====================

// DeleteProduct 永久删除已拒绝的商品
// @Summary 删除商品记录（仅 rejected 状态）
// @Tags Product
// @Param id path int true "商品ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/products/{id} [delete]
func (ctrl *ProductController) DeleteProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(400, gin.H{"code": 400, "message": "无效的商品ID"})
		return
	}

	actor := service.HumanActor(middleware.GetUsername(c))

	ctx := c.Request.Context()
	if err := ctrl.transitionService.Delete(ctx, id, actor); err != nil {
		c.JSON(statusForError(err), gin.H{"code": statusForError(err), "message": "删除失败: " + err.Error()})
		return
	}

	c.JSON(200, gin.H{"code": 0, "message": "删除成功"})
}

// ==================== 错误映射 ====================

// statusForError 流水线错误到 HTTP 状态码
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrRecordNotFound):
		return 404
	case errors.Is(err, service.ErrReasonRequired),
		errors.Is(err, service.ErrInvalidRuleConfig):
		return 400
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrConcurrentModification),
		errors.Is(err, service.ErrDuplicateExternalID),
		errors.Is(err, service.ErrDeleteNotAllowed):
		return http.StatusConflict
	default:
		return 500
	}
}
