package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"catalog_import_v1_202608/internal/model"
)

// ==================== 接口定义 ====================

// Classifier 分类器：给候选商品打分类与置信度
// 单个候选失败由调度器降级为人工审核，不影响整批
type Classifier interface {
	Classify(ctx context.Context, c *model.ProductCandidate) (category string, confidence int, err error)
}

// ==================== Gemini 分类器 ====================

// GeminiClassifierConfig 分类器配置
type GeminiClassifierConfig struct {
	APIKey       string
	ModelVersion string // 如 "gemini-2.5-flash"
}

// GeminiClassifier 基于 Gemini 的商品分类器
type GeminiClassifier struct {
	config *GeminiClassifierConfig
}

// NewGeminiClassifier 创建分类器
func NewGeminiClassifier(cfg *GeminiClassifierConfig) *GeminiClassifier {
	if cfg.ModelVersion == "" {
		cfg.ModelVersion = "gemini-2.5-flash"
	}
	return &GeminiClassifier{config: cfg}
}

// classifyResult Gemini 返回的结构化结果
type classifyResult struct {
	Category   string `json:"category"`
	Confidence int    `json:"confidence"`
}

// Classify 调用 Gemini 给商品分类
func (s *GeminiClassifier) Classify(ctx context.Context, c *model.ProductCandidate) (string, int, error) {
	if s.config.APIKey == "" {
		return "", 0, fmt.Errorf("%w: API Key 未配置", ErrClassificationFailure)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(s.config.APIKey))
	if err != nil {
		return "", 0, fmt.Errorf("%w: Gemini 初始化失败: %v", ErrClassificationFailure, err)
	}
	defer client.Close()

	modelAI := client.GenerativeModel(s.config.ModelVersion)
	modelAI.ResponseMIMEType = "application/json"

	prompt := fmt.Sprintf(`You are a product catalog classifier.

Product name: %s
Product type: %s
Tags: %s
Suggested category: %s

Classify this product into a single storefront category and rate your
confidence from 0 to 100.

Output Format (JSON only, no markdown):
{"category": "category name", "confidence": 85}`,
		c.Name, c.ProductType, strings.Join(c.Tags, ", "), c.SuggestedCategory)

	resp, err := modelAI.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrClassificationFailure, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", 0, fmt.Errorf("%w: 空响应", ErrClassificationFailure)
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text += string(txt)
		}
	}

	var result classifyResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return "", 0, fmt.Errorf("%w: 结果解析失败: %v", ErrClassificationFailure, err)
	}

	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 100 {
		result.Confidence = 100
	}
	return result.Category, result.Confidence, nil
}
