package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalog_import_v1_202608/internal/model"
	"catalog_import_v1_202608/internal/repository"
)

// newTestDB 内存数据库（service 包测试共用）
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
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
	return db
}

// seedProduct 插入指定阶段的商品记录
func seedProduct(t *testing.T, db *gorm.DB, externalID, stage string) *model.ProductRecord {
	t.Helper()
	record := &model.ProductRecord{
		ExternalID:     externalID,
		Name:           "测试商品 " + externalID,
		Price:          99.9,
		Rating:         4.5,
		Stage:          stage,
		StageChangedAt: time.Now(),
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("插入测试商品失败: %v", err)
	}
	return record
}

func newTransitionService(t *testing.T) (*TransitionService, *gorm.DB) {
	db := newTestDB(t)
	repo := repository.NewProductRepository(db)
	return NewTransitionService(repo), db
}

// ==================== 合法性矩阵 ====================

func TestTransitionLegalityMatrix(t *testing.T) {
	human := HumanActor("tester")

	cases := []struct {
		from    string
		to      string
		actor   Actor
		allowed bool
	}{
		{model.StagePreview, model.StagePricing, human, true},
		{model.StagePreview, model.StagePending, human, true},
		{model.StagePricing, model.StagePending, human, true},
		{model.StagePending, model.StageApproved, human, true},
		{model.StagePending, model.StageRejected, human, true},
		{model.StageApproved, model.StagePublished, human, true},
		{model.StagePublished, model.StageApproved, human, true}, // unpublish
		{model.StageRejected, model.StagePending, human, true},   // reconsider

		// 非法迁移
		{model.StagePreview, model.StagePublished, human, false},
		{model.StagePricing, model.StageApproved, human, false},
		{model.StagePublished, model.StagePending, human, false},
		{model.StageRejected, model.StageApproved, human, false},
		{model.StagePending, model.StagePreview, human, false},

		// 人工不可走 auto-approve/auto-reject 直达路径
		{model.StagePreview, model.StageApproved, human, false},
		{model.StagePreview, model.StageRejected, human, false},
		{model.StagePreview, model.StageApproved, SchedulerActor, true},
		{model.StagePreview, model.StageRejected, SchedulerActor, true},

		// 自动化不可走人工专属回退路径
		{model.StagePublished, model.StageApproved, SchedulerActor, false},
		{model.StageRejected, model.StagePending, SchedulerActor, false},
	}

	for _, tc := range cases {
		got := isLegalTransition(tc.from, tc.to, tc.actor)
		if got != tc.allowed {
			t.Fatalf("%s -> %s (automation=%v): 期望 %v，实际 %v",
				tc.from, tc.to, tc.actor.Automation, tc.allowed, got)
		}
	}
}

// ==================== 单条迁移 ====================

func TestTransitionSuccess(t *testing.T) {
	svc, db := newTransitionService(t)
	record := seedProduct(t, db, "ext-100", model.StagePending)

	ctx := context.Background()
	err := svc.Transition(ctx, record.ID, model.StageApproved, HumanActor("alice"), "")
	if err != nil {
		t.Fatalf("合法迁移不应失败: %v", err)
	}

	var got model.ProductRecord
	if err := db.First(&got, record.ID).Error; err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if got.Stage != model.StageApproved {
		t.Fatalf("期望阶段 approved，实际 %s", got.Stage)
	}
	if got.ApprovedBy != "alice" {
		t.Fatalf("审批人应记录为 alice，实际 %q", got.ApprovedBy)
	}
	if got.AutomationAction != model.ActionManual {
		t.Fatalf("人工迁移动作应为 manual，实际 %s", got.AutomationAction)
	}
}

func TestTransitionIllegalRejected(t *testing.T) {
	svc, db := newTransitionService(t)
	record := seedProduct(t, db, "ext-101", model.StagePublished)

	err := svc.Transition(context.Background(), record.ID, model.StagePending, HumanActor(""), "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("期望 ErrInvalidTransition，实际 %v", err)
	}

	// 记录不应被改动
	var got model.ProductRecord
	db.First(&got, record.ID)
	if got.Stage != model.StagePublished {
		t.Fatalf("非法迁移不应改动记录，实际阶段 %s", got.Stage)
	}
}

func TestTransitionUnknownStage(t *testing.T) {
	svc, db := newTransitionService(t)
	record := seedProduct(t, db, "ext-102", model.StagePending)

	err := svc.Transition(context.Background(), record.ID, "archived", HumanActor(""), "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("未知目标阶段应返回 ErrInvalidTransition，实际 %v", err)
	}
}

func TestTransitionRecordNotFound(t *testing.T) {
	svc, _ := newTransitionService(t)

	err := svc.Transition(context.Background(), 99999, model.StagePending, HumanActor(""), "")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("期望 ErrRecordNotFound，实际 %v", err)
	}
}

// ==================== 拒绝原因 ====================

func TestTransitionRejectRequiresReason(t *testing.T) {
	svc, db := newTransitionService(t)
	record := seedProduct(t, db, "ext-103", model.StagePending)

	err := svc.Transition(context.Background(), record.ID, model.StageRejected, HumanActor(""), "  ")
	if !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("空白原因应返回 ErrReasonRequired，实际 %v", err)
	}

	err = svc.Transition(context.Background(), record.ID, model.StageRejected, HumanActor(""), "图片侵权")
	if err != nil {
		t.Fatalf("携带原因的拒绝不应失败: %v", err)
	}

	var got model.ProductRecord
	db.First(&got, record.ID)
	if got.RejectionReason != "图片侵权" {
		t.Fatalf("拒绝原因未持久化: %q", got.RejectionReason)
	}
}

func TestTransitionReconsiderClearsReason(t *testing.T) {
	svc, db := newTransitionService(t)
	record := seedProduct(t, db, "ext-104", model.StagePending)

	ctx := context.Background()
	if err := svc.Transition(ctx, record.ID, model.StageRejected, HumanActor(""), "价格异常"); err != nil {
		t.Fatalf("拒绝失败: %v", err)
	}
	if err := svc.Transition(ctx, record.ID, model.StagePending, HumanActor(""), ""); err != nil {
		t.Fatalf("reconsider 失败: %v", err)
	}

	var got model.ProductRecord
	db.First(&got, record.ID)
	if got.RejectionReason != "" {
		t.Fatalf("回退待审后拒绝原因应清空，实际 %q", got.RejectionReason)
	}
}

// unpublish 保留原审批人
func TestTransitionUnpublishKeepsApprover(t *testing.T) {
	svc, db := newTransitionService(t)
	record := seedProduct(t, db, "ext-105", model.StagePending)

	ctx := context.Background()
	if err := svc.Transition(ctx, record.ID, model.StageApproved, HumanActor("alice"), ""); err != nil {
		t.Fatalf("审批失败: %v", err)
	}
	if err := svc.Transition(ctx, record.ID, model.StagePublished, HumanActor("alice"), ""); err != nil {
		t.Fatalf("发布失败: %v", err)
	}
	if err := svc.Transition(ctx, record.ID, model.StageApproved, HumanActor("bob"), ""); err != nil {
		t.Fatalf("unpublish 失败: %v", err)
	}

	var got model.ProductRecord
	db.First(&got, record.ID)
	if got.ApprovedBy != "alice" {
		t.Fatalf("unpublish 不应覆盖审批人，期望 alice，实际 %q", got.ApprovedBy)
	}
}

// ==================== 事件 ====================

func TestTransitionEmitsEvent(t *testing.T) {
	svc, db := newTransitionService(t)
	record := seedProduct(t, db, "ext-106", model.StagePending)

	var events []StageChangeEvent
	svc.AddListener(func(e StageChangeEvent) {
		events = append(events, e)
	})

	if err := svc.Transition(context.Background(), record.ID, model.StageApproved, HumanActor("alice"), ""); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("期望 1 条事件，实际 %d", len(events))
	}
	e := events[0]
	if e.From != model.StagePending || e.To != model.StageApproved || e.Actor != "alice" {
		t.Fatalf("事件内容不符: %+v", e)
	}
}

// ==================== 批量迁移 ====================

func TestBulkTransitionPartialSuccess(t *testing.T) {
	svc, db := newTransitionService(t)
	ok1 := seedProduct(t, db, "ext-200", model.StagePending)
	bad := seedProduct(t, db, "ext-201", model.StagePublished) // 非法源阶段
	ok2 := seedProduct(t, db, "ext-202", model.StagePending)

	ids := []int64{ok1.ID, bad.ID, ok2.ID, 99999}
	results := svc.BulkTransition(context.Background(), ids, model.StageApproved, HumanActor("alice"), "")

	if len(results) != 4 {
		t.Fatalf("期望 4 条结果，实际 %d", len(results))
	}
	if !results[0].Success || !results[2].Success {
		t.Fatalf("合法迁移应成功: %+v", results)
	}
	if results[1].Success || results[3].Success {
		t.Fatalf("非法迁移/不存在记录应失败: %+v", results)
	}

	// 单条失败不影响其它记录
	var got model.ProductRecord
	db.First(&got, ok2.ID)
	if got.Stage != model.StageApproved {
		t.Fatalf("部分失败不应回滚成功记录，实际 %s", got.Stage)
	}
}

// ==================== 并发互斥 ====================

func TestTransitionConcurrentSameProduct(t *testing.T) {
	svc, db := newTransitionService(t)
	record := seedProduct(t, db, "ext-300", model.StagePending)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.Transition(context.Background(), record.ID, model.StageApproved, HumanActor("alice"), "")
		}()
	}
	wg.Wait()
	close(errs)

	var success, conflict, illegal int
	for err := range errs {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrConcurrentModification):
			conflict++
		case errors.Is(err, ErrInvalidTransition):
			// 串行到达的后来者看到 approved -> approved，非法
			illegal++
		default:
			t.Fatalf("意外错误: %v", err)
		}
	}

	if success != 1 {
		t.Fatalf("同一商品并发迁移应恰有一个成功，实际 %d (冲突 %d, 非法 %d)", success, conflict, illegal)
	}

	var got model.ProductRecord
	db.First(&got, record.ID)
	if got.Stage != model.StageApproved {
		t.Fatalf("最终阶段应为 approved，实际 %s", got.Stage)
	}
}

// ==================== 删除 ====================

func TestDeleteRejectedOnly(t *testing.T) {
	svc, db := newTransitionService(t)
	rejected := seedProduct(t, db, "ext-400", model.StageRejected)
	pending := seedProduct(t, db, "ext-401", model.StagePending)

	ctx := context.Background()

	// 自动化不允许删除
	if err := svc.Delete(ctx, rejected.ID, SchedulerActor); !errors.Is(err, ErrDeleteNotAllowed) {
		t.Fatalf("自动化删除应被拒绝，实际 %v", err)
	}

	// 非 rejected 状态不允许删除
	if err := svc.Delete(ctx, pending.ID, HumanActor("alice")); !errors.Is(err, ErrDeleteNotAllowed) {
		t.Fatalf("非 rejected 记录删除应被拒绝，实际 %v", err)
	}

	// rejected 状态人工删除成功，且为物理删除
	if err := svc.Delete(ctx, rejected.ID, HumanActor("alice")); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	var count int64
	db.Unscoped().Model(&model.ProductRecord{}).Where("id = ?", rejected.ID).Count(&count)
	if count != 0 {
		t.Fatal("删除应为物理删除，记录仍存在")
	}
}
