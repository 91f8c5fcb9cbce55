package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalog_import_v1_202608/internal/api/dto"
	"catalog_import_v1_202608/internal/model"
	"catalog_import_v1_202608/internal/repository"
	"catalog_import_v1_202608/internal/service"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取底层连接失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&model.ProductRecord{}, &model.RuleSet{}); err != nil {
		t.Fatalf("迁移表结构失败: %v", err)
	}

	repo := repository.NewProductRepository(db)
	productSvc := service.NewProductService(repo)
	transitions := service.NewTransitionService(repo)
	ctrl := NewProductController(productSvc, transitions)

	r := gin.New()
	// 测试中直接注入操作员身份，跳过 JWT
	r.Use(func(c *gin.Context) {
		c.Set("username", "tester")
		c.Next()
	})
	r.GET("/api/products", ctrl.GetProducts)
	r.GET("/api/products/stats", ctrl.GetStats)
	r.GET("/api/products/:id", ctrl.GetProduct)
	r.PATCH("/api/products/:id/pricing", ctrl.UpdatePricing)
	r.DELETE("/api/products/:id", ctrl.DeleteProduct)
	r.POST("/api/transitions", ctrl.BulkTransition)

	return r, db
}

func seedRecord(t *testing.T, db *gorm.DB, externalID, stage string) *model.ProductRecord {
	t.Helper()
	record := &model.ProductRecord{
		ExternalID:     externalID,
		Name:           "商品 " + externalID,
		Price:          50,
		Stage:          stage,
		StageChangedAt: time.Now(),
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("插入测试数据失败: %v", err)
	}
	return record
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestGetProductsByStage(t *testing.T) {
	r, db := newTestRouter(t)
	seedRecord(t, db, "api-1", model.StagePending)
	seedRecord(t, db, "api-2", model.StagePreview)

	w := doJSON(r, http.MethodGet, "/api/products?stage=pending", nil)
	if w.Code != 200 {
		t.Fatalf("期望 200，实际 %d: %s", w.Code, w.Body.String())
	}

	var resp dto.ProductListResp
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if resp.Total != 1 || len(resp.Data) != 1 {
		t.Fatalf("期望 1 条 pending 记录，实际 total=%d", resp.Total)
	}

	// 非法阶段参数
	w = doJSON(r, http.MethodGet, "/api/products?stage=archived", nil)
	if w.Code != 400 {
		t.Fatalf("非法 stage 应返回 400，实际 %d", w.Code)
	}
}

func TestBulkTransitionEndpoint(t *testing.T) {
	r, db := newTestRouter(t)
	ok := seedRecord(t, db, "bt-1", model.StagePending)
	bad := seedRecord(t, db, "bt-2", model.StagePublished)

	w := doJSON(r, http.MethodPost, "/api/transitions", dto.TransitionReq{
		ProductIDs:  []int64{ok.ID, bad.ID},
		TargetStage: model.StageApproved,
	})
	if w.Code != 200 {
		t.Fatalf("期望 200，实际 %d: %s", w.Code, w.Body.String())
	}

	var resp dto.TransitionResp
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if resp.Succeeded != 1 || resp.Failed != 1 {
		t.Fatalf("期望 1 成功 1 失败，实际 %d/%d", resp.Succeeded, resp.Failed)
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("失败原因应按错误分组，实际 %v", resp.Errors)
	}

	// 人工审批记录操作者
	var got model.ProductRecord
	db.First(&got, ok.ID)
	if got.ApprovedBy != "tester" {
		t.Fatalf("审批人应为 tester，实际 %q", got.ApprovedBy)
	}
}

func TestBulkTransitionValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	// 空 ID 列表
	w := doJSON(r, http.MethodPost, "/api/transitions", map[string]interface{}{
		"product_ids": []int64{}, "target_stage": model.StageApproved,
	})
	if w.Code != 400 {
		t.Fatalf("空 ID 列表应返回 400，实际 %d", w.Code)
	}

	// 非法目标阶段
	w = doJSON(r, http.MethodPost, "/api/transitions", map[string]interface{}{
		"product_ids": []int64{1}, "target_stage": "archived",
	})
	if w.Code != 400 {
		t.Fatalf("非法目标阶段应返回 400，实际 %d", w.Code)
	}
}

func TestUpdatePricingEndpoint(t *testing.T) {
	r, db := newTestRouter(t)
	record := seedRecord(t, db, "pr-1", model.StagePricing)

	w := doJSON(r, http.MethodPatch, fmt.Sprintf("/api/products/%d/pricing", record.ID), dto.PricingReq{
		CostPrice: 30, Price: 45, CommissionRate: 10,
	})
	if w.Code != 200 {
		t.Fatalf("期望 200，实际 %d: %s", w.Code, w.Body.String())
	}

	var got model.ProductRecord
	db.First(&got, record.ID)
	if got.CostPrice != 30 || got.Price != 45 {
		t.Fatalf("定价未生效: %+v", got)
	}

	// 非 pricing 阶段返回 409
	other := seedRecord(t, db, "pr-2", model.StagePending)
	w = doJSON(r, http.MethodPatch, fmt.Sprintf("/api/products/%d/pricing", other.ID), dto.PricingReq{
		CostPrice: 30, Price: 45,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("非 pricing 阶段应返回 409，实际 %d", w.Code)
	}
}

func TestDeleteProductEndpoint(t *testing.T) {
	r, db := newTestRouter(t)
	rejected := seedRecord(t, db, "d-1", model.StageRejected)
	pending := seedRecord(t, db, "d-2", model.StagePending)

	w := doJSON(r, http.MethodDelete, fmt.Sprintf("/api/products/%d", rejected.ID), nil)
	if w.Code != 200 {
		t.Fatalf("删除 rejected 记录应成功，实际 %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodDelete, fmt.Sprintf("/api/products/%d", pending.ID), nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("删除非 rejected 记录应返回 409，实际 %d", w.Code)
	}

	w = doJSON(r, http.MethodDelete, "/api/products/99999", nil)
	if w.Code != 404 {
		t.Fatalf("删除不存在记录应返回 404，实际 %d", w.Code)
	}
}

func TestGetStatsEndpoint(t *testing.T) {
	r, db := newTestRouter(t)
	seedRecord(t, db, "st-1", model.StagePreview)

	w := doJSON(r, http.MethodGet, "/api/products/stats", nil)
	if w.Code != 200 {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}

	var resp struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if len(resp.Data) != len(model.AllStages) {
		t.Fatalf("统计应覆盖全部阶段，实际 %d", len(resp.Data))
	}
	if resp.Data[model.StagePreview] != 1 {
		t.Fatalf("preview 计数应为 1，实际 %d", resp.Data[model.StagePreview])
	}
}
