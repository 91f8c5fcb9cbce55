package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"catalog_import_v1_202608/internal/model"
)

// ==================== 接口定义 ====================

// RuleSetRepository 规则配置仓储（单例行）
type RuleSetRepository interface {
	Get(ctx context.Context) (*model.RuleSet, error)
	Save(ctx context.Context, rules *model.RuleSet) error
}

// ==================== 仓储实现 ====================

type ruleSetRepo struct {
	db *gorm.DB
}

// NewRuleSetRepository 创建规则仓储
func NewRuleSetRepository(db *gorm.DB) RuleSetRepository {
	return &ruleSetRepo{db: db}
}

// Get 读取单例配置；不存在时写入默认配置
func (r *ruleSetRepo) Get(ctx context.Context) (*model.RuleSet, error) {
	var rules model.RuleSet
	err := r.db.WithContext(ctx).First(&rules, model.RuleSetID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		defaults := model.DefaultRuleSet()
		if createErr := r.db.WithContext(ctx).Create(defaults).Error; createErr != nil {
			return nil, createErr
		}
		return defaults, nil
	}
	if err != nil {
		return nil, err
	}
	return &rules, nil
}

// Save 覆盖单例配置
func (r *ruleSetRepo) Save(ctx context.Context, rules *model.RuleSet) error {
	rules.ID = model.RuleSetID
	return r.db.WithContext(ctx).Save(rules).Error
}
