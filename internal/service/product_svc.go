package service

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"catalog_import_v1_202608/internal/model"
	"catalog_import_v1_202608/internal/repository"
)

// ==================== 商品服务 ====================

// ProductService 商品记录的查询与导入
type ProductService struct {
	productRepo repository.ProductRepository
}

// NewProductService 创建商品服务
func NewProductService(productRepo repository.ProductRepository) *ProductService {
	return &ProductService{productRepo: productRepo}
}

// ==================== 导入 ====================

// ImportCandidate 将候选商品落库为 ProductRecord
// 记录总是创建在 preview 阶段，后续迁移交给迁移引擎；
// 唯一索引冲突（去重索引漏判的兜底）返回 ErrDuplicateExternalID，调用方按跳过处理
func (s *ProductService) ImportCandidate(ctx context.Context, c *model.ProductCandidate, dec Decision) (*model.ProductRecord, error) {
	record := &model.ProductRecord{
		ExternalID:        c.ExternalID,
		Name:              c.Name,
		Price:             c.Price,
		Rating:            c.Rating,
		Confidence:        c.Confidence,
		SuggestedCategory: c.SuggestedCategory,
		ProductType:       c.ProductType,
		Tags:              model.StringSlice(c.Tags),
		Stage:             model.StagePreview,
		AutomationAction:  dec.Action,
		StageChangedAt:    time.Now(),
	}
	if len(c.Raw) > 0 {
		record.RawData = datatypes.JSON(c.Raw)
	}

	if err := s.productRepo.Create(ctx, record); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateExternalID
		}
		return nil, err
	}
	return record, nil
}

// ==================== 定价 ====================

// ApplyAutoPricing 自动定价：来源价作为成本价，按加价比例计算售价
func (s *ProductService) ApplyAutoPricing(ctx context.Context, record *model.ProductRecord, markupPercentage float64) error {
	cost := record.Price
	price := roundPrice(cost * (1 + markupPercentage/100))

	err := s.productRepo.UpdateFields(ctx, record.ID, map[string]interface{}{
		"cost_price": cost,
		"price":      price,
	})
	if err != nil {
		return err
	}
	record.CostPrice = cost
	record.Price = price
	return nil
}

// SetPricing 人工设置定价字段（仅 pricing 阶段）
func (s *ProductService) SetPricing(ctx context.Context, id int64, costPrice, price, commissionRate float64) error {
	record, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		return err
	}
	if record.Stage != model.StagePricing {
		return ErrInvalidTransition
	}
	if costPrice < 0 || price < 0 || commissionRate < 0 {
		return errors.New("定价字段不能为负")
	}

	return s.productRepo.UpdateFields(ctx, id, map[string]interface{}{
		"cost_price":      costPrice,
		"price":           price,
		"commission_rate": commissionRate,
	})
}

// ==================== 查询 ====================

// ListProducts 分页查询商品列表
func (s *ProductService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]model.ProductRecord, int64, error) {
	return s.productRepo.List(ctx, filter)
}

// GetProduct 商品详情
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*model.ProductRecord, error) {
	record, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return record, nil
}

// ListProductsByStage 按阶段全量列出（调度器扫尾用）
func (s *ProductService) ListProductsByStage(ctx context.Context, stage string) ([]model.ProductRecord, error) {
	return s.productRepo.ListByStage(ctx, stage, 0)
}

// GetStageStats 各阶段商品数量统计
func (s *ProductService) GetStageStats(ctx context.Context) (map[string]int64, error) {
	stats, err := s.productRepo.CountByStage(ctx)
	if err != nil {
		return nil, err
	}
	// 没有记录的阶段补 0，前端展示完整
	for _, stage := range model.AllStages {
		if _, ok := stats[stage]; !ok {
			stats[stage] = 0
		}
	}
	return stats, nil
}

// ==================== 工具 ====================

// LogStageChanges 默认事件监听器：记录每次阶段变更
func LogStageChanges(event StageChangeEvent) {
	log.Printf("[StageChange] 商品 %d (%s): %s -> %s (操作者: %s)",
		event.ProductID, event.ExternalID, event.From, event.To, event.Actor)
}

func roundPrice(v float64) float64 {
	return math.Round(v*100) / 100
}
