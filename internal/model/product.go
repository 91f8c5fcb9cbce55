package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// ==================== 状态常量 ====================

const (
	// 审批阶段
	StagePreview   = "preview"   // 预览：等待人工或自动化处理
	StagePricing   = "pricing"   // 定价：设置成本价和佣金
	StagePending   = "pending"   // 待审：等待人工审批
	StageApproved  = "approved"  // 已审批：可发布
	StagePublished = "published" // 已发布
	StageRejected  = "rejected"  // 已拒绝

	// 自动化动作（记录商品如何到达当前阶段）
	ActionManual      = "manual"
	ActionAutoApprove = "auto_approve"
	ActionAutoPending = "auto_pending"
	ActionAutoReject  = "auto_reject"
	ActionImported    = "imported"

	// 商品类型
	ProductTypeAffiliate   = "affiliate"
	ProductTypeDropship    = "dropship"
	ProductTypePhysical    = "physical"
	ProductTypeConsumable  = "consumable"
	ProductTypeService     = "service"
	ProductTypeDigital     = "digital"
	ProductTypeCustom      = "custom"
	ProductTypeMultivendor = "multivendor"

	// 评分/置信度缺省值（来源数据未提供时）
	RatingAbsent     = -1
	ConfidenceAbsent = -1
)

// AllStages 全部合法阶段
var AllStages = []string{
	StagePreview, StagePricing, StagePending,
	StageApproved, StagePublished, StageRejected,
}

// IsValidStage 检查阶段是否合法
func IsValidStage(stage string) bool {
	for _, s := range AllStages {
		if s == stage {
			return true
		}
	}
	return false
}

// ==================== JSON 类型 ====================

// StringSlice 字符串切片（JSON 存储）
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("type assertion to []byte failed")
	}
}

// ==================== 数据库模型 ====================

// ProductRecord 进入审批流水线的商品记录
type ProductRecord struct {
	BaseModel
	ExternalID        string         `gorm:"size:128;uniqueIndex;not null" json:"external_id"` // 来源侧唯一 ID
	Name              string         `gorm:"size:512;not null" json:"name"`
	Price             float64        `gorm:"default:0" json:"price"`
	Rating            float64        `gorm:"default:-1" json:"rating"`     // -1 表示来源未提供
	Confidence        int            `gorm:"default:-1" json:"confidence"` // 分类置信度 0-100，-1 表示未分类
	SuggestedCategory string         `gorm:"size:255" json:"suggested_category"`
	ProductType       string         `gorm:"size:32;index" json:"product_type"`
	Tags              StringSlice    `gorm:"type:json" json:"tags"`
	Stage             string         `gorm:"size:32;index;default:preview" json:"stage"`
	AutomationAction  string         `gorm:"size:32;index;default:manual" json:"automation_action"`
	RejectionReason   string         `gorm:"size:1024" json:"rejection_reason,omitempty"`
	CostPrice         float64        `gorm:"default:0" json:"cost_price"`      // 定价阶段设置
	CommissionRate    float64        `gorm:"default:0" json:"commission_rate"` // 定价阶段设置
	ApprovedBy        string         `gorm:"size:128" json:"approved_by,omitempty"`
	StageChangedAt    time.Time      `gorm:"index" json:"stage_changed_at"`
	RawData           datatypes.JSON `gorm:"type:json" json:"-"` // 来源原始数据
}

func (*ProductRecord) TableName() string {
	return "product_records"
}

// ==================== 辅助方法 ====================

// HasRating 来源是否提供了评分
func (p *ProductRecord) HasRating() bool {
	return p.Rating >= 0
}

// HasConfidence 是否已有分类置信度
func (p *ProductRecord) HasConfidence() bool {
	return p.Confidence >= 0
}

// IsTerminal 是否处于终态（仅能通过显式人工动作回退）
func (p *ProductRecord) IsTerminal() bool {
	return p.Stage == StagePublished || p.Stage == StageRejected
}

// HasPricing 定价字段是否已填写
func (p *ProductRecord) HasPricing() bool {
	return p.CostPrice > 0
}

// ==================== 候选商品（未入库） ====================

// ProductCandidate 从来源适配器拉取、尚未入库的候选商品
type ProductCandidate struct {
	ExternalID        string          `json:"external_id"`
	Name              string          `json:"name"`
	Price             float64         `json:"price"`
	Rating            float64         `json:"rating"`     // -1 表示缺失
	Confidence        int             `json:"confidence"` // -1 表示未分类
	SuggestedCategory string          `json:"suggested_category"`
	ProductType       string          `json:"product_type"`
	Tags              []string        `json:"tags"`
	Raw               json.RawMessage `json:"-"`
}

// HasConfidence 是否已有分类置信度
func (c *ProductCandidate) HasConfidence() bool {
	return c.Confidence >= 0
}

// HasRating 来源是否提供了评分
func (c *ProductCandidate) HasRating() bool {
	return c.Rating >= 0
}

// MatchesKeyword 名称或标签中是否包含指定关键词（大小写不敏感）
func (c *ProductCandidate) MatchesKeyword(keyword string) bool {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return false
	}
	if strings.Contains(strings.ToLower(c.Name), kw) {
		return true
	}
	for _, tag := range c.Tags {
		if strings.Contains(strings.ToLower(tag), kw) {
			return true
		}
	}
	return false
}
