package repository

import (
	"context"

	"gorm.io/gorm"

	"catalog_import_v1_202608/internal/model"
)

// ==================== 接口定义 ====================

// ProductRepository 商品记录仓储接口
type ProductRepository interface {
	// 基础 CRUD
	Create(ctx context.Context, record *model.ProductRecord) error
	GetByID(ctx context.Context, id int64) (*model.ProductRecord, error)
	GetByExternalID(ctx context.Context, externalID string) (*model.ProductRecord, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	HardDelete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ProductFilter) ([]model.ProductRecord, int64, error)

	// 列表查询
	ListByStage(ctx context.Context, stage string, limit int) ([]model.ProductRecord, error)
	ListAllExternalIDs(ctx context.Context) ([]string, error)

	// 统计
	CountByStage(ctx context.Context) (map[string]int64, error)

	// 事务
	WithTx(tx *gorm.DB) ProductRepository
	Transaction(ctx context.Context, fn func(txRepo ProductRepository) error) error
}

// ==================== 过滤条件 ====================

// ProductFilter 商品查询过滤条件
type ProductFilter struct {
	Stage       string
	ProductType string
	Keyword     string
	Page        int
	PageSize    int
}

// ==================== 仓储实现 ====================

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) Create(ctx context.Context, record *model.ProductRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*model.ProductRecord, error) {
	var record model.ProductRecord
	err := r.db.WithContext(ctx).First(&record, id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *productRepo) GetByExternalID(ctx context.Context, externalID string) (*model.ProductRecord, error) {
	var record model.ProductRecord
	err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *productRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.ProductRecord{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *productRepo) HardDelete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Unscoped().Delete(&model.ProductRecord{}, id).Error
}

func (r *productRepo) List(ctx context.Context, filter ProductFilter) ([]model.ProductRecord, int64, error) {
	var records []model.ProductRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&model.ProductRecord{})

	if filter.Stage != "" {
		query = query.Where("stage = ?", filter.Stage)
	}
	if filter.ProductType != "" {
		query = query.Where("product_type = ?", filter.ProductType)
	}
	if filter.Keyword != "" {
		query = query.Where("name LIKE ?", "%"+filter.Keyword+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	offset := (filter.Page - 1) * filter.PageSize
	err := query.
		Order("updated_at DESC").
		Limit(filter.PageSize).
		Offset(offset).
		Find(&records).Error

	return records, total, err
}

func (r *productRepo) ListByStage(ctx context.Context, stage string, limit int) ([]model.ProductRecord, error) {
	var records []model.ProductRecord
	query := r.db.WithContext(ctx).
		Where("stage = ?", stage).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

func (r *productRepo) ListAllExternalIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.ProductRecord{}).
		Pluck("external_id", &ids).Error
	return ids, err
}

func (r *productRepo) CountByStage(ctx context.Context) (map[string]int64, error) {
	type result struct {
		Stage string
		Count int64
	}
	var results []result

	err := r.db.WithContext(ctx).
		Model(&model.ProductRecord{}).
		Select("stage, COUNT(*) as count").
		Group("stage").
		Scan(&results).Error

	if err != nil {
		return nil, err
	}

	stats := make(map[string]int64)
	for _, res := range results {
		stats[res.Stage] = res.Count
	}
	return stats, nil
}

func (r *productRepo) WithTx(tx *gorm.DB) ProductRepository {
	return &productRepo{db: tx}
}

func (r *productRepo) Transaction(ctx context.Context, fn func(txRepo ProductRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
