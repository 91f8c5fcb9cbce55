package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"catalog_import_v1_202608/internal/model"
	"catalog_import_v1_202608/internal/repository"
)

// ==================== 规则服务 ====================

// RuleService 规则配置读写
// 内存缓存当前生效配置，调度器每个 tick 读取时无需数据库往返；
// 非法配置在写入时拒绝，评估阶段永远只见到合法配置
type RuleService struct {
	ruleRepo repository.RuleSetRepository

	mu     sync.RWMutex
	active *model.RuleSet
}

// NewRuleService 创建规则服务
func NewRuleService(ruleRepo repository.RuleSetRepository) *RuleService {
	return &RuleService{ruleRepo: ruleRepo}
}

// Load 启动时加载配置到缓存（不存在则写入默认值）
func (s *RuleService) Load(ctx context.Context) error {
	rules, err := s.ruleRepo.Get(ctx)
	if err != nil {
		return fmt.Errorf("加载规则配置失败: %w", err)
	}
	s.mu.Lock()
	s.active = rules
	s.mu.Unlock()
	log.Println("[RuleService] 规则配置已加载")
	return nil
}

// Active 当前生效配置的副本（调度器/评估器读取）
func (s *RuleService) Active() *model.RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return model.DefaultRuleSet()
	}
	copied := *s.active
	return &copied
}

// Get 读取配置（控制面 GET /rules）
func (s *RuleService) Get(ctx context.Context) (*model.RuleSet, error) {
	s.mu.RLock()
	cached := s.active != nil
	s.mu.RUnlock()
	if cached {
		return s.Active(), nil
	}
	return s.ruleRepo.Get(ctx)
}

// Update 校验并写入配置，成功后刷新缓存
func (s *RuleService) Update(ctx context.Context, rules *model.RuleSet) error {
	if err := rules.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRuleConfig, err)
	}

	if err := s.ruleRepo.Save(ctx, rules); err != nil {
		return err
	}

	// 缓存副本，调用方后续修改入参不影响生效配置
	copied := *rules
	s.mu.Lock()
	s.active = &copied
	s.mu.Unlock()

	log.Println("[RuleService] 规则配置已更新")
	return nil
}
