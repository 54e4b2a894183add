package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultDeepSeekModel = "deepseek-chat"
	defaultGeminiModel   = "gemini-2.0-flash"
	defaultAIHTTPTimeout = 5 * time.Minute
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type aiChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

type aiChatResponse struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// AIAPIError 表示 AI 平台返回了非成功状态码。
type AIAPIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *AIAPIError) Error() string {
	return fmt.Sprintf("%s 接口返回错误（%d）：%s", e.Provider, e.StatusCode, e.Message)
}

// RateLimited 判断是否为配额或限流错误。
func (e *AIAPIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func isRateLimited(err error) bool {
	var apiErr *AIAPIError
	return errors.As(err, &apiErr) && apiErr.RateLimited()
}

type aiChatClient struct {
	settings *SystemSettingService
	http     httpDoer
	models   map[string]string
	logger   zerolog.Logger
}

func newAIChatClient(settings *SystemSettingService, logger zerolog.Logger) *aiChatClient {
	return &aiChatClient{
		settings: settings,
		http:     &http.Client{Timeout: defaultAIHTTPTimeout},
		models: map[string]string{
			AIProviderOpenAI:   defaultOpenAIModel,
			AIProviderDeepSeek: defaultDeepSeekModel,
			AIProviderGemini:   defaultGeminiModel,
		},
		logger: logger,
	}
}

func (c *aiChatClient) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: defaultAIHTTPTimeout}
		return
	}
	c.http = client
}

func (c *aiChatClient) SetModel(provider, model string) {
	prov := normalizeAIProvider(provider)
	model = strings.TrimSpace(model)
	if prov == "" || model == "" {
		return
	}
	c.models[prov] = model
}

func (c *aiChatClient) call(ctx context.Context, req aiChatRequest) (aiChatResponse, error) {
	if c.settings == nil {
		return aiChatResponse{}, ErrAIAPIKeyMissing
	}
	settings, err := c.settings.GetSettings(ctx)
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("读取系统设置失败: %w", err)
	}
	return c.callWithSettings(ctx, settings, req)
}

func (c *aiChatClient) callWithSettings(ctx context.Context, settings AISettings, req aiChatRequest) (aiChatResponse, error) {
	provider := normalizeAIProvider(settings.AIProvider)
	if provider == "" {
		provider = AIProviderOpenAI
	}
	label := providerLabel(provider)

	apiKey := settings.APIKey()
	if apiKey == "" {
		return aiChatResponse{}, ErrAIAPIKeyMissing
	}

	base := defaultOpenAIBaseURL
	if c.settings != nil {
		base = c.settings.BaseURL(provider)
	}

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}

	maxTokens := req.MaxTokens
	if maxTokens < 0 {
		maxTokens = 0
	}

	payload := chatCompletionRequest{
		Model: c.models[provider],
		Messages: []chatMessage{
			{Role: "system", Content: strings.TrimSpace(req.SystemPrompt)},
			{Role: "user", Content: req.UserPrompt},
		},
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("构造请求失败: %w", err)
	}

	endpoint := strings.TrimRight(base, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("创建 %s 请求失败: %w", label, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "twinlog-ai/1.0")

	resp, err := client.Do(httpReq)
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("请求 %s 接口失败: %w", label, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("读取 %s 响应失败: %w", label, err)
	}

	var completion chatCompletionResponse
	decodeErr := json.Unmarshal(respBody, &completion)

	if resp.StatusCode >= http.StatusBadRequest {
		errMsg := strings.TrimSpace(completion.Error.Message)
		if errMsg == "" {
			errMsg = strings.TrimSpace(string(respBody))
		}
		if errMsg == "" {
			errMsg = resp.Status
		}
		return aiChatResponse{}, &AIAPIError{Provider: label, StatusCode: resp.StatusCode, Message: errMsg}
	}
	if decodeErr != nil {
		return aiChatResponse{}, fmt.Errorf("解析 %s 响应失败: %w", label, decodeErr)
	}

	if len(completion.Choices) == 0 {
		return aiChatResponse{}, fmt.Errorf("%s 接口未返回结果", label)
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	return aiChatResponse{
		Content:          content,
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
	}, nil
}
