package model

import (
	"errors"
	"time"
)

// ==================== 规则配置 ====================

// RuleSetID 单例行 ID（部署级配置，无多租户）
const RuleSetID = 1

// RuleSet 自动化规则配置，单例持久化
// 每组规则独立启用/禁用；置信度路由额外携带三个阈值和开关
type RuleSet struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UpdatedAt time.Time `json:"updated_at"`

	// 自动定价
	AutoPricingEnabled bool    `gorm:"default:false" json:"auto_pricing_enabled"`
	MarkupPercentage   float64 `gorm:"default:30" json:"markup_percentage"`

	// 自动导入（批量调度默认配置）
	AutoImportEnabled bool `gorm:"default:false" json:"auto_import_enabled"`
	BatchSize         int  `gorm:"default:20" json:"batch_size"`
	IntervalMinutes   int  `gorm:"default:15" json:"interval_minutes"`
	AutoSelectNew     bool `gorm:"default:true" json:"auto_select_new"`

	// 自动审批（价格/评分门槛）
	AutoApproveEnabled bool        `gorm:"default:false" json:"auto_approve_enabled"`
	PriceThreshold     float64     `gorm:"default:100" json:"price_threshold"`
	RatingThreshold    float64     `gorm:"default:4" json:"rating_threshold"`
	ExcludeKeywords    StringSlice `gorm:"type:json" json:"exclude_keywords"`

	// 自动拒绝（最先评估，短路其它规则）
	AutoRejectEnabled bool        `gorm:"default:false" json:"auto_reject_enabled"`
	MaxPrice          float64     `gorm:"default:1000" json:"max_price"`
	MinRating         float64     `gorm:"default:2" json:"min_rating"`
	BannedKeywords    StringSlice `gorm:"type:json" json:"banned_keywords"`

	// 自动发布
	AutoPublishEnabled bool `gorm:"default:false" json:"auto_publish_enabled"`
	PublishImmediately bool `gorm:"default:false" json:"publish_immediately"`
	ScheduleHours      int  `gorm:"default:24" json:"schedule_hours"`

	// 置信度路由
	HighConfidenceThreshold   int  `gorm:"default:80" json:"high_confidence_threshold"`
	MediumConfidenceThreshold int  `gorm:"default:50" json:"medium_confidence_threshold"`
	AutoApproveHigh           bool `gorm:"default:false" json:"auto_approve_high"`
	AutoPendingMedium         bool `gorm:"default:true" json:"auto_pending_medium"`
	ManualReviewLow           bool `gorm:"default:true" json:"manual_review_low"`
}

func (*RuleSet) TableName() string {
	return "rule_sets"
}

// DefaultRuleSet 首次启动时写入的默认配置（全部自动化关闭）
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		ID:                        RuleSetID,
		MarkupPercentage:          30,
		BatchSize:                 20,
		IntervalMinutes:           15,
		AutoSelectNew:             true,
		PriceThreshold:            100,
		RatingThreshold:           4,
		ExcludeKeywords:           StringSlice{},
		MaxPrice:                  1000,
		MinRating:                 2,
		BannedKeywords:            StringSlice{},
		ScheduleHours:             24,
		HighConfidenceThreshold:   80,
		MediumConfidenceThreshold: 50,
		AutoPendingMedium:         true,
		ManualReviewLow:           true,
	}
}

// ==================== 配置校验 ====================

// Validate 配置写入时校验，非法配置不允许进入运行时
func (r *RuleSet) Validate() error {
	if r.MediumConfidenceThreshold < 0 || r.HighConfidenceThreshold > 100 {
		return errors.New("置信度阈值必须在 0-100 之间")
	}
	if r.MediumConfidenceThreshold > r.HighConfidenceThreshold {
		return errors.New("中置信度阈值不能高于高置信度阈值")
	}
	if r.MaxPrice < 0 || r.PriceThreshold < 0 {
		return errors.New("价格阈值不能为负")
	}
	// 0 对评估器意味着不限价，启用对应规则组时不允许
	if r.AutoRejectEnabled && r.MaxPrice == 0 {
		return errors.New("自动拒绝启用时价格上限必须大于 0")
	}
	if r.AutoApproveEnabled && r.PriceThreshold == 0 {
		return errors.New("自动审批启用时价格门槛必须大于 0")
	}
	if r.MinRating < 0 || r.MinRating > 5 || r.RatingThreshold < 0 || r.RatingThreshold > 5 {
		return errors.New("评分阈值必须在 0-5 之间")
	}
	if r.MarkupPercentage < 0 {
		return errors.New("加价比例不能为负")
	}
	if r.BatchSize < 1 {
		return errors.New("批量大小必须大于 0")
	}
	if r.IntervalMinutes < 1 {
		return errors.New("调度间隔必须大于 0 分钟")
	}
	if r.ScheduleHours < 0 {
		return errors.New("定时发布小时数不能为负")
	}
	return nil
}
