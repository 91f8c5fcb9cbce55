package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"catalog_import_v1_202608/internal/model"
)

// ==================== 接口定义 ====================

// CatalogSource 上游商品目录适配器
// 同一 (page, perPage) 在上游数据未变化时幂等；不保证 exactly-once，
// 重复投递由去重服务过滤
type CatalogSource interface {
	FetchCandidates(ctx context.Context, page, perPage int) (candidates []*model.ProductCandidate, hasMore bool, err error)
}

// ==================== 配置 ====================

// CatalogSourceConfig 目录源配置
type CatalogSourceConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

// ==================== 服务实现 ====================

// CatalogSourceService 基于 HTTP 的目录源客户端
type CatalogSourceService struct {
	config *CatalogSourceConfig
	client *resty.Client
}

// NewCatalogSourceService 创建目录源客户端
func NewCatalogSourceService(cfg *CatalogSourceConfig) *CatalogSourceService {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryCount == 0 {
		cfg.RetryCount = 3
	}

	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(cfg.Timeout)
	client.SetRetryCount(cfg.RetryCount)
	if cfg.APIKey != "" {
		client.SetHeader("x-api-key", cfg.APIKey)
	}

	return &CatalogSourceService{config: cfg, client: client}
}

// ==================== 上游数据结构 ====================

type sourceProduct struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       float64         `json:"price"`
	Rating      *float64        `json:"rating"`
	Category    string          `json:"category"`
	ProductType string          `json:"product_type"`
	Tags        []string        `json:"tags"`
	Raw         json.RawMessage `json:"-"`
}

type fetchResponse struct {
	Products []json.RawMessage `json:"products"`
	HasMore  bool              `json:"has_more"`
}

// ==================== 拉取 ====================

// FetchCandidates 拉取一页候选商品
func (s *CatalogSourceService) FetchCandidates(ctx context.Context, page, perPage int) ([]*model.ProductCandidate, bool, error) {
	if page < 1 {
		page = 1
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("page", fmt.Sprintf("%d", page)).
		SetQueryParam("per_page", fmt.Sprintf("%d", perPage)).
		Get("/products")
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrSourceFetchFailure, err)
	}
	if resp.StatusCode() != 200 {
		return nil, false, fmt.Errorf("%w: 上游返回 [%d] %s", ErrSourceFetchFailure, resp.StatusCode(), resp.String())
	}

	var body fetchResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, false, fmt.Errorf("%w: 响应解析失败: %v", ErrSourceFetchFailure, err)
	}

	candidates := make([]*model.ProductCandidate, 0, len(body.Products))
	for _, raw := range body.Products {
		var sp sourceProduct
		if err := json.Unmarshal(raw, &sp); err != nil {
			continue // 单条数据损坏不影响整页
		}
		candidates = append(candidates, toCandidate(&sp, raw))
	}

	return candidates, body.HasMore, nil
}

// toCandidate 上游数据映射为候选商品
func toCandidate(sp *sourceProduct, raw json.RawMessage) *model.ProductCandidate {
	rating := float64(model.RatingAbsent)
	if sp.Rating != nil {
		rating = *sp.Rating
	}

	productType := sp.ProductType
	if productType == "" {
		productType = model.ProductTypeDropship
	}

	return &model.ProductCandidate{
		ExternalID:        sp.ID,
		Name:              sp.Name,
		Price:             sp.Price,
		Rating:            rating,
		Confidence:        model.ConfidenceAbsent,
		SuggestedCategory: sp.Category,
		ProductType:       productType,
		Tags:              sp.Tags,
		Raw:               raw,
	}
}
