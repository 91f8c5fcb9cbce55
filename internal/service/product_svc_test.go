package service

import (
	"context"
	"errors"
	"testing"

	"catalog_import_v1_202608/internal/model"
	"catalog_import_v1_202608/internal/repository"
)

func newProductService(t *testing.T) (*ProductService, *TransitionService) {
	db := newTestDB(t)
	repo := repository.NewProductRepository(db)
	return NewProductService(repo), NewTransitionService(repo)
}

func TestImportCandidateCreatesPreview(t *testing.T) {
	svc, _ := newProductService(t)
	ctx := context.Background()

	c := candidate(59.9, 4.2, 85)
	dec := Decision{Action: model.ActionAutoApprove, TargetStage: model.StageApproved}

	record, err := svc.ImportCandidate(ctx, c, dec)
	if err != nil {
		t.Fatalf("导入失败: %v", err)
	}

	// 无论决策目标是什么，落库总在 preview，迁移交给迁移引擎
	if record.Stage != model.StagePreview {
		t.Fatalf("新记录应创建在 preview，实际 %s", record.Stage)
	}
	if record.AutomationAction != model.ActionAutoApprove {
		t.Fatalf("决策动作应记录，实际 %s", record.AutomationAction)
	}
	if record.ID == 0 {
		t.Fatal("落库后应有主键")
	}
}

// 唯一索引兜底：重复外部 ID 返回 ErrDuplicateExternalID
func TestImportCandidateDuplicate(t *testing.T) {
	svc, _ := newProductService(t)
	ctx := context.Background()

	c := candidate(10, 4, model.ConfidenceAbsent)
	dec := Decision{Action: model.ActionManual, TargetStage: model.StagePreview}

	if _, err := svc.ImportCandidate(ctx, c, dec); err != nil {
		t.Fatalf("首次导入失败: %v", err)
	}
	_, err := svc.ImportCandidate(ctx, c, dec)
	if !errors.Is(err, ErrDuplicateExternalID) {
		t.Fatalf("期望 ErrDuplicateExternalID，实际 %v", err)
	}
}

func TestApplyAutoPricing(t *testing.T) {
	svc, _ := newProductService(t)
	ctx := context.Background()

	c := candidate(100, 4, model.ConfidenceAbsent)
	record, err := svc.ImportCandidate(ctx, c, Decision{Action: model.ActionManual, TargetStage: model.StagePreview})
	if err != nil {
		t.Fatalf("导入失败: %v", err)
	}

	if err := svc.ApplyAutoPricing(ctx, record, 30); err != nil {
		t.Fatalf("自动定价失败: %v", err)
	}

	// 来源价转为成本价，售价按 30% 加价
	if record.CostPrice != 100 {
		t.Fatalf("成本价应为来源价 100，实际 %.2f", record.CostPrice)
	}
	if record.Price != 130 {
		t.Fatalf("售价应为 130，实际 %.2f", record.Price)
	}

	got, err := svc.GetProduct(ctx, record.ID)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if got.CostPrice != 100 || got.Price != 130 {
		t.Fatalf("定价未持久化: cost=%.2f price=%.2f", got.CostPrice, got.Price)
	}
}

func TestSetPricingOnlyInPricingStage(t *testing.T) {
	svc, transitions := newProductService(t)
	ctx := context.Background()

	record, err := svc.ImportCandidate(ctx, candidate(100, 4, model.ConfidenceAbsent),
		Decision{Action: model.ActionManual, TargetStage: model.StagePreview})
	if err != nil {
		t.Fatalf("导入失败: %v", err)
	}

	// preview 阶段不允许设置定价
	err = svc.SetPricing(ctx, record.ID, 80, 120, 10)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("非 pricing 阶段设置定价应拒绝，实际 %v", err)
	}

	if err := transitions.Transition(ctx, record.ID, model.StagePricing, HumanActor(""), ""); err != nil {
		t.Fatalf("迁移到 pricing 失败: %v", err)
	}
	if err := svc.SetPricing(ctx, record.ID, 80, 120, 10); err != nil {
		t.Fatalf("pricing 阶段设置定价失败: %v", err)
	}

	got, _ := svc.GetProduct(ctx, record.ID)
	if got.CostPrice != 80 || got.Price != 120 || got.CommissionRate != 10 {
		t.Fatalf("定价字段不符: %+v", got)
	}

	// 负数拒绝
	if err := svc.SetPricing(ctx, record.ID, -1, 120, 10); err == nil {
		t.Fatal("负成本价应拒绝")
	}
}

func TestGetStageStatsZeroFills(t *testing.T) {
	svc, _ := newProductService(t)
	ctx := context.Background()

	if _, err := svc.ImportCandidate(ctx, candidate(10, 4, model.ConfidenceAbsent),
		Decision{Action: model.ActionManual, TargetStage: model.StagePreview}); err != nil {
		t.Fatalf("导入失败: %v", err)
	}

	stats, err := svc.GetStageStats(ctx)
	if err != nil {
		t.Fatalf("统计失败: %v", err)
	}
	if len(stats) != len(model.AllStages) {
		t.Fatalf("统计应覆盖全部 %d 个阶段，实际 %d", len(model.AllStages), len(stats))
	}
	if stats[model.StagePreview] != 1 {
		t.Fatalf("preview 计数应为 1，实际 %d", stats[model.StagePreview])
	}
	if stats[model.StagePublished] != 0 {
		t.Fatalf("无记录阶段应补 0，实际 %d", stats[model.StagePublished])
	}
}

func TestGetProductNotFound(t *testing.T) {
	svc, _ := newProductService(t)

	_, err := svc.GetProduct(context.Background(), 424242)
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("期望 ErrRecordNotFound，实际 %v", err)
	}
}
