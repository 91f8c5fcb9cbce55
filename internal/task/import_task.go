package task

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"catalog_import_v1_202608/internal/model"
	"catalog_import_v1_202608/internal/service"
)

// ==================== ImportTask 批量导入调度任务 ====================

// ImportTask 批量导入调度器
// 每个 tick 执行一次完整流水线：拉取 -> 去重 -> 分类 -> 规则评估 -> 阶段迁移；
// busy 标志保证同一时刻最多一个 tick 在执行，到点时上一批未完成则跳过本次、
// 不排队；Stop 只阻止下一次触发，不中断执行中的 tick
type ImportTask struct {
	source      service.CatalogSource
	classifier  service.Classifier
	dedup       *service.DedupService
	ruleSvc     *service.RuleService
	productSvc  *service.ProductService
	transitions *service.TransitionService

	mu              sync.Mutex // 保护 cron 实例与配置
	cron            *cron.Cron
	entryID         cron.EntryID
	running         bool
	batchSize       int
	intervalMinutes int
	startedAt       time.Time

	busy atomic.Bool // tick 互斥标志
	page int         // 上游分页游标，仅成功 tick 后推进
}

// NewImportTask 创建批量导入任务
func NewImportTask(
	source service.CatalogSource,
	classifier service.Classifier,
	dedup *service.DedupService,
	ruleSvc *service.RuleService,
	productSvc *service.ProductService,
	transitions *service.TransitionService,
) *ImportTask {
	return &ImportTask{
		source:      source,
		classifier:  classifier,
		dedup:       dedup,
		ruleSvc:     ruleSvc,
		productSvc:  productSvc,
		transitions: transitions,
		page:        1,
	}
}

// ==================== 生命周期 ====================

// Start 启动调度；已在运行时替换配置并重置定时器，不会产生重复定时器
func (t *ImportTask) Start(batchSize, intervalMinutes int) error {
	if batchSize < 1 {
		return errors.New("批量大小必须大于 0")
	}
	if intervalMinutes < 1 {
		return errors.New("调度间隔必须大于 0 分钟")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		// 替换配置：停掉旧定时器（不等待在途 tick），重建
		t.cron.Stop()
		log.Printf("[ImportTask] 配置替换: batchSize=%d intervalMinutes=%d", batchSize, intervalMinutes)
	}

	c := cron.New(cron.WithSeconds())
	// @every 描述符：任意间隔都严格按分钟数触发，不受整除 60 的限制
	spec := fmt.Sprintf("@every %dm", intervalMinutes)
	entryID, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		t.tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("注册定时任务失败: %w", err)
	}

	t.cron = c
	t.entryID = entryID
	t.batchSize = batchSize
	t.intervalMinutes = intervalMinutes
	t.startedAt = time.Now()
	t.running = true
	c.Start()

	log.Printf("[ImportTask] 已启动 (每 %d 分钟，批量 %d)", intervalMinutes, batchSize)
	return nil
}

// Stop 停止调度；执行中的 tick 会运行到结束
func (t *ImportTask) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.cron.Stop()
	t.running = false
	log.Println("[ImportTask] 已停止")
}

// Status 当前调度状态
func (t *ImportTask) Status() model.SchedulerStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := model.SchedulerStatus{
		IsRunning:       t.running,
		BatchSize:       t.batchSize,
		IntervalMinutes: t.intervalMinutes,
	}
	if t.running {
		startedAt := t.startedAt
		status.StartedAt = &startedAt
		next := t.cron.Entry(t.entryID).Next
		if !next.IsZero() {
			status.NextFireAt = &next
		}
	}
	return status
}

// RunNow 手动触发一次 tick（不等待定时器）
func (t *ImportTask) RunNow() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		t.tick(ctx)
	}()
}

// ==================== 流水线执行 ====================

// tick 执行一个完整批次
func (t *ImportTask) tick(ctx context.Context) {
	if !t.busy.CompareAndSwap(false, true) {
		log.Println("[ImportTask] 上一批次仍在执行，跳过本次触发")
		return
	}
	defer t.busy.Store(false)

	t.mu.Lock()
	batchSize := t.batchSize
	t.mu.Unlock()
	if batchSize < 1 {
		batchSize = 20
	}

	batchID := uuid.NewString()[:8]
	rules := t.ruleSvc.Active()

	// 1. 拉取候选：来源失败中止本批，无任何写入，下个 tick 重试
	candidates, hasMore, err := t.source.FetchCandidates(ctx, t.page, batchSize)
	if err != nil {
		log.Printf("[ImportTask] 批次 %s 拉取失败，中止: %v", batchID, err)
		return
	}

	// 2. 去重过滤
	fresh := make([]*model.ProductCandidate, 0, len(candidates))
	for _, c := range candidates {
		if !t.dedup.IsKnown(c.ExternalID) {
			fresh = append(fresh, c)
		}
	}

	var imported, skipped, failed int

	for _, c := range fresh {
		select {
		case <-ctx.Done():
			log.Printf("[ImportTask] 批次 %s 超时停止", batchID)
			return
		default:
		}

		// 3. 分类：单个失败降级为人工审核，不中断整批
		if !c.HasConfidence() && t.classifier != nil {
			category, confidence, err := t.classifier.Classify(ctx, c)
			if err != nil {
				log.Printf("[ImportTask] 候选 %s 分类失败，降级人工审核: %v", c.ExternalID, err)
			} else {
				c.SuggestedCategory = category
				c.Confidence = confidence
			}
		}

		// 4. 规则评估
		dec := service.Evaluate(c, rules)

		// 5. 落库（总是 preview 阶段）
		record, err := t.productSvc.ImportCandidate(ctx, c, dec)
		if err != nil {
			if errors.Is(err, service.ErrDuplicateExternalID) {
				// 唯一索引兜底命中：按跳过处理并补进索引
				t.dedup.MarkKnown(c.ExternalID)
				skipped++
				continue
			}
			log.Printf("[ImportTask] 候选 %s 入库失败: %v", c.ExternalID, err)
			failed++
			continue
		}

		// 6. 按决策迁移阶段
		t.applyDecision(ctx, record, dec, rules)

		// 7. 标记已导入
		t.dedup.MarkKnown(c.ExternalID)
		imported++
	}

	// 自动化扫尾：定价完成的记录进入待审、到期的已审批记录发布
	t.sweepAutoImport(ctx, rules)
	t.sweepAutoPublish(ctx, rules)

	// 游标仅在成功批次后推进
	if hasMore {
		t.page++
	} else {
		t.page = 1
	}

	log.Printf("[ImportTask] 批次 %s 完成: 拉取 %d, 新导入 %d, 重复跳过 %d, 失败 %d",
		batchID, len(candidates), imported, skipped, failed)
}

// applyDecision 按评估决策执行阶段迁移
func (t *ImportTask) applyDecision(ctx context.Context, record *model.ProductRecord, dec service.Decision, rules *model.RuleSet) {
	if dec.TargetStage != model.StagePreview {
		err := t.transitions.Transition(ctx, record.ID, dec.TargetStage, service.SchedulerActor, dec.Reason)
		if err != nil {
			log.Printf("[ImportTask] 商品 %d 迁移到 %s 失败: %v", record.ID, dec.TargetStage, err)
		}
		return
	}

	// 停留在 preview 的候选：启用自动定价时推进到 pricing
	if rules.AutoPricingEnabled {
		if err := t.productSvc.ApplyAutoPricing(ctx, record, rules.MarkupPercentage); err != nil {
			log.Printf("[ImportTask] 商品 %d 自动定价失败: %v", record.ID, err)
			return
		}
		err := t.transitions.Transition(ctx, record.ID, model.StagePricing, service.SchedulerActor, "")
		if err != nil {
			log.Printf("[ImportTask] 商品 %d 迁移到 pricing 失败: %v", record.ID, err)
		}
	}
}

// sweepAutoImport autoImport 规则：定价字段已填写的 pricing 记录进入待审
func (t *ImportTask) sweepAutoImport(ctx context.Context, rules *model.RuleSet) {
	if !rules.AutoImportEnabled {
		return
	}

	records, err := t.productSvc.ListProductsByStage(ctx, model.StagePricing)
	if err != nil {
		log.Printf("[ImportTask] 扫描 pricing 记录失败: %v", err)
		return
	}

	for _, r := range records {
		if !r.HasPricing() {
			continue
		}
		err := t.transitions.Transition(ctx, r.ID, model.StagePending, service.SchedulerActor, "")
		if err != nil && !errors.Is(err, service.ErrConcurrentModification) {
			log.Printf("[ImportTask] 商品 %d 自动进入待审失败: %v", r.ID, err)
		}
	}
}

// sweepAutoPublish autoPublish 规则：立即发布或按计划小时数延迟发布
func (t *ImportTask) sweepAutoPublish(ctx context.Context, rules *model.RuleSet) {
	if !rules.AutoPublishEnabled {
		return
	}

	records, err := t.productSvc.ListProductsByStage(ctx, model.StageApproved)
	if err != nil {
		log.Printf("[ImportTask] 扫描 approved 记录失败: %v", err)
		return
	}

	cutoff := time.Now().Add(-time.Duration(rules.ScheduleHours) * time.Hour)
	for _, r := range records {
		if !rules.PublishImmediately && r.StageChangedAt.After(cutoff) {
			continue
		}
		err := t.transitions.Transition(ctx, r.ID, model.StagePublished, service.SchedulerActor, "")
		if err != nil && !errors.Is(err, service.ErrConcurrentModification) {
			log.Printf("[ImportTask] 商品 %d 自动发布失败: %v", r.ID, err)
		}
	}
}
