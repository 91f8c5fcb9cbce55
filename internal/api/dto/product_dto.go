package dto

import "catalog_import_v1_202608/internal/model"

// ==================== 请求 ====================

// TransitionReq 批量阶段迁移请求
type TransitionReq struct {
	ProductIDs  []int64 `json:"product_ids" binding:"required"`
	TargetStage string  `json:"target_stage" binding:"required"`
	Reason      string  `json:"reason"`
}

// PricingReq 定价更新请求
type PricingReq struct {
	CostPrice      float64 `json:"cost_price" binding:"gte=0"`
	Price          float64 `json:"price" binding:"gte=0"`
	CommissionRate float64 `json:"commission_rate" binding:"gte=0"`
}

// ==================== 响应 ====================

// TransitionOutcome 单条迁移结果
type TransitionOutcome struct {
	ProductID int64  `json:"product_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// TransitionResp 批量迁移响应：逐条结果 + 按错误种类分组的计数
type TransitionResp struct {
	Code      int                 `json:"code"`
	Message   string              `json:"message"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Errors    map[string]int      `json:"errors,omitempty"`
	Results   []TransitionOutcome `json:"results"`
}

// ProductListResp 商品列表响应
type ProductListResp struct {
	Code     int                   `json:"code"`
	Message  string                `json:"message"`
	Data     []model.ProductRecord `json:"data"`
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}
