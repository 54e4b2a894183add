package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/twinlog/internal/analysis"
)

const (
	classifierSystemPrompt = "You are a browsing history analyst. Respond with a single JSON object and nothing else."
	classifierMaxTokens    = 2048
	classifierTemperature  = 0.2
	maxClassifierItemRunes = 300
)

// AITopicClassifier 通过当前配置的 AI 平台对浏览记录进行分类。
type AITopicClassifier struct {
	client *aiChatClient
}

// NewAITopicClassifier 构造 AITopicClassifier。
func NewAITopicClassifier(settings *SystemSettingService, logger zerolog.Logger) *AITopicClassifier {
	return &AITopicClassifier{client: newAIChatClient(settings, logger)}
}

var _ analysis.TopicClassifier = (*AITopicClassifier)(nil)

// SetHTTPClient 覆盖默认 HTTP 客户端，主要用于测试。
func (c *AITopicClassifier) SetHTTPClient(client httpDoer) {
	c.client.SetHTTPClient(client)
}

// SetModel 指定某个平台使用的模型名称。
func (c *AITopicClassifier) SetModel(provider, model string) {
	c.client.SetModel(provider, model)
}

// Classify 返回模型的原始文本。未配置 API Key、限流或网络失败时返回 analysis.ErrClassifierUnavailable。
func (c *AITopicClassifier) Classify(ctx context.Context, items []analysis.ClassifierItem, instructions string) (string, error) {
	userPrompt, err := buildClassifierPrompt(items, instructions)
	if err != nil {
		return "", err
	}
	logAIExchange(c.client.logger, "CLASSIFY", "prompt", userPrompt)

	result, err := c.client.call(ctx, aiChatRequest{
		SystemPrompt: classifierSystemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    classifierMaxTokens,
		Temperature:  classifierTemperature,
	})
	if err != nil {
		return "", classifierError(err)
	}

	logAIExchange(c.client.logger, "CLASSIFY", "response", result.Content)
	return result.Content, nil
}

func classifierError(err error) error {
	if errors.Is(err, analysis.ErrClassifierUnavailable) {
		return err
	}
	if isRateLimited(err) {
		return fmt.Errorf("%w: rate limited: %v", analysis.ErrClassifierUnavailable, err)
	}
	return fmt.Errorf("%w: %v", analysis.ErrClassifierUnavailable, err)
}

func buildClassifierPrompt(items []analysis.ClassifierItem, instructions string) (string, error) {
	trimmed := make([]analysis.ClassifierItem, 0, len(items))
	for _, item := range items {
		item.URL = truncateRunes(item.URL, maxClassifierItemRunes)
		item.Title = truncateRunes(item.Title, maxClassifierItemRunes)
		trimmed = append(trimmed, item)
	}

	payload, err := json.Marshal(trimmed)
	if err != nil {
		return "", fmt.Errorf("encode classifier items: %w", err)
	}

	var builder strings.Builder
	builder.WriteString(strings.TrimSpace(instructions))
	builder.WriteString("\n\nHistory items:\n")
	builder.Write(payload)
	return builder.String(), nil
}
