package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"catalog_import_v1_202608/internal/model"
	"catalog_import_v1_202608/internal/repository"
)

// ==================== 操作者 ====================

// Actor 发起阶段变更的操作者
type Actor struct {
	Name       string // 人工操作者用户名，或自动化任务名
	Automation bool   // 是否为自动化触发
}

// HumanActor 人工操作者
func HumanActor(name string) Actor {
	if name == "" {
		name = "operator"
	}
	return Actor{Name: name}
}

// SchedulerActor 批量调度器操作者
var SchedulerActor = Actor{Name: "scheduler", Automation: true}

// ==================== 迁移表 ====================

// transitionRule 迁移许可：人工/自动化分别控制
type transitionRule struct {
	human      bool
	automation bool
}

// transitionTable 合法迁移表，表外的一律拒绝
// preview -> approved/rejected 仅自动化可走（auto-approve/auto-reject 的直达路径）
// published -> approved (unpublish) 与 rejected -> pending (reconsider) 仅人工可走
var transitionTable = map[string]map[string]transitionRule{
	model.StagePreview: {
		model.StagePricing:  {human: true, automation: true},
		model.StagePending:  {human: true, automation: true},
		model.StageApproved: {automation: true},
		model.StageRejected: {automation: true},
	},
	model.StagePricing: {
		model.StagePending: {human: true, automation: true},
	},
	model.StagePending: {
		model.StageApproved: {human: true, automation: true},
		model.StageRejected: {human: true, automation: true},
	},
	model.StageApproved: {
		model.StagePublished: {human: true, automation: true},
	},
	model.StagePublished: {
		model.StageApproved: {human: true},
	},
	model.StageRejected: {
		model.StagePending: {human: true},
	},
}

// isLegalTransition 检查 (源阶段, 目标阶段, 操作者) 是否合法
func isLegalTransition(from, to string, actor Actor) bool {
	targets, ok := transitionTable[from]
	if !ok {
		return false
	}
	rule, ok := targets[to]
	if !ok {
		return false
	}
	if actor.Automation {
		return rule.automation
	}
	return rule.human
}

// ==================== 阶段变更事件 ====================

// StageChangeEvent 每次成功迁移发出一条
type StageChangeEvent struct {
	ProductID  int64     `json:"product_id"`
	ExternalID string    `json:"external_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Actor      string    `json:"actor"`
	At         time.Time `json:"at"`
}

// StageChangeListener 事件监听器
type StageChangeListener func(event StageChangeEvent)

// ==================== 批量结果 ====================

// TransitionResult 批量迁移的单条结果
type TransitionResult struct {
	ProductID int64  `json:"product_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// ==================== 迁移引擎 ====================

// TransitionService 阶段迁移引擎
// 同一商品 ID 上的并发迁移串行化：竞争失败方收到 ErrConcurrentModification；
// 不同商品 ID 可完全并行
type TransitionService struct {
	productRepo repository.ProductRepository

	locks     sync.Map // productID -> *sync.Mutex
	listeners []StageChangeListener
	mu        sync.RWMutex
}

// NewTransitionService 创建迁移引擎
func NewTransitionService(productRepo repository.ProductRepository) *TransitionService {
	return &TransitionService{productRepo: productRepo}
}

// AddListener 注册阶段变更监听器
func (s *TransitionService) AddListener(fn StageChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// lockFor 获取商品级互斥锁
func (s *TransitionService) lockFor(productID int64) *sync.Mutex {
	actual, _ := s.locks.LoadOrStore(productID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// Transition 执行单条阶段迁移
// reason 仅在目标为 rejected 时必填，其余情况忽略
func (s *TransitionService) Transition(ctx context.Context, productID int64, targetStage string, actor Actor, reason string) error {
	if !model.IsValidStage(targetStage) {
		return ErrInvalidTransition
	}

	lock := s.lockFor(productID)
	if !lock.TryLock() {
		return ErrConcurrentModification
	}
	defer lock.Unlock()

	record, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		return err
	}

	if !isLegalTransition(record.Stage, targetStage, actor) {
		return ErrInvalidTransition
	}

	now := time.Now()
	fields := map[string]interface{}{
		"stage":            targetStage,
		"stage_changed_at": now,
	}

	switch targetStage {
	case model.StageRejected:
		if strings.TrimSpace(reason) == "" {
			return ErrReasonRequired
		}
		fields["rejection_reason"] = reason
	case model.StagePending:
		// reconsider：回退时清除拒绝原因，再次拒绝需要新原因
		if record.Stage == model.StageRejected {
			fields["rejection_reason"] = ""
		}
	case model.StageApproved:
		if record.Stage != model.StagePublished { // unpublish 保留原审批人
			fields["approved_by"] = actor.Name
		}
	}

	if action := resolveAction(record.Stage, targetStage, actor); action != "" {
		fields["automation_action"] = action
	}

	// 单条 Updates 保证商品级原子性：阶段与依赖字段要么全部更新要么全部不变
	if err := s.productRepo.UpdateFields(ctx, productID, fields); err != nil {
		return err
	}

	s.emit(StageChangeEvent{
		ProductID:  productID,
		ExternalID: record.ExternalID,
		From:       record.Stage,
		To:         targetStage,
		Actor:      actor.Name,
		At:         now,
	})
	return nil
}

// BulkTransition 批量迁移：每个 ID 独立执行，单条失败不回滚其它
func (s *TransitionService) BulkTransition(ctx context.Context, productIDs []int64, targetStage string, actor Actor, reason string) []TransitionResult {
	results := make([]TransitionResult, 0, len(productIDs))
	for _, id := range productIDs {
		err := s.Transition(ctx, id, targetStage, actor, reason)
		if err != nil {
			results = append(results, TransitionResult{ProductID: id, Error: err.Error()})
		} else {
			results = append(results, TransitionResult{ProductID: id, Success: true})
		}
	}
	return results
}

// Delete 永久删除记录（仅 rejected 状态，仅人工）
func (s *TransitionService) Delete(ctx context.Context, productID int64, actor Actor) error {
	if actor.Automation {
		return ErrDeleteNotAllowed
	}

	lock := s.lockFor(productID)
	if !lock.TryLock() {
		return ErrConcurrentModification
	}
	defer lock.Unlock()

	record, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		return err
	}
	if record.Stage != model.StageRejected {
		return ErrDeleteNotAllowed
	}

	if err := s.productRepo.HardDelete(ctx, productID); err != nil {
		return err
	}

	log.Printf("[TransitionService] 商品 %d (%s) 已被 %s 永久删除", productID, record.ExternalID, actor.Name)
	return nil
}

// emit 通知所有监听器
func (s *TransitionService) emit(event StageChangeEvent) {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(event)
	}
}

// resolveAction 推导 automation_action 标签；空串表示保持原值
func resolveAction(from, to string, actor Actor) string {
	if !actor.Automation {
		return model.ActionManual
	}
	switch to {
	case model.StageRejected:
		return model.ActionAutoReject
	case model.StageApproved:
		return model.ActionAutoApprove
	case model.StagePending:
		if from == model.StagePricing {
			return model.ActionImported
		}
		return model.ActionAutoPending
	default:
		return ""
	}
}
