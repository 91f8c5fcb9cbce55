package service

import (
	"fmt"

	"catalog_import_v1_202608/internal/model"
)

// ==================== 自动化决策 ====================

// Decision 规则评估结果
type Decision struct {
	Action      string // model.ActionXxx
	TargetStage string // 目标阶段；preview 表示不迁移，等待人工
	Reason      string // 拒绝时的原因说明
}

// Evaluate 规则评估器：纯函数，根据候选属性和规则配置产出唯一决策
// 优先级（固定顺序）：
//  1. autoReject 最先评估，命中即短路其它所有规则
//  2. 置信度路由：高置信度自动审批
//  3. 置信度路由：中置信度进入待审
//  4. 价格/评分门槛自动审批（autoApprove 规则组）
//  5. 兜底：人工审核，停留在 preview
//
// 阈值边界按闭区间处理：confidence == 阈值归入更高一档
func Evaluate(c *model.ProductCandidate, rules *model.RuleSet) Decision {
	// 1. 自动拒绝
	if rules.AutoRejectEnabled {
		if rules.MaxPrice > 0 && c.Price > rules.MaxPrice {
			return Decision{
				Action:      model.ActionAutoReject,
				TargetStage: model.StageRejected,
				Reason:      fmt.Sprintf("价格 %.2f 超过上限 %.2f", c.Price, rules.MaxPrice),
			}
		}
		if c.HasRating() && c.Rating < rules.MinRating {
			return Decision{
				Action:      model.ActionAutoReject,
				TargetStage: model.StageRejected,
				Reason:      fmt.Sprintf("评分 %.1f 低于下限 %.1f", c.Rating, rules.MinRating),
			}
		}
		for _, kw := range rules.BannedKeywords {
			if c.MatchesKeyword(kw) {
				return Decision{
					Action:      model.ActionAutoReject,
					TargetStage: model.StageRejected,
					Reason:      fmt.Sprintf("命中违禁关键词: %s", kw),
				}
			}
		}
	}

	// 2/3. 置信度路由（候选必须已有分类置信度）
	if c.HasConfidence() {
		if rules.AutoApproveHigh && c.Confidence >= rules.HighConfidenceThreshold {
			return Decision{
				Action:      model.ActionAutoApprove,
				TargetStage: model.StageApproved,
			}
		}
		if rules.AutoPendingMedium && c.Confidence >= rules.MediumConfidenceThreshold {
			return Decision{
				Action:      model.ActionAutoPending,
				TargetStage: model.StagePending,
			}
		}
	}

	// 4. 价格/评分门槛自动审批
	if rules.AutoApproveEnabled && passesValueApprove(c, rules) {
		return Decision{
			Action:      model.ActionAutoApprove,
			TargetStage: model.StageApproved,
		}
	}

	// 5. 兜底：人工审核
	return Decision{
		Action:      model.ActionManual,
		TargetStage: model.StagePreview,
	}
}

// passesValueApprove autoApprove 规则组：价格不超门槛、评分达标、无排除关键词
func passesValueApprove(c *model.ProductCandidate, rules *model.RuleSet) bool {
	if rules.PriceThreshold > 0 && c.Price > rules.PriceThreshold {
		return false
	}
	if rules.RatingThreshold > 0 {
		if !c.HasRating() || c.Rating < rules.RatingThreshold {
			return false
		}
	}
	for _, kw := range rules.ExcludeKeywords {
		if c.MatchesKeyword(kw) {
			return false
		}
	}
	return true
}
