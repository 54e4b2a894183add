package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/twinlog/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// AIProviderOpenAI 表示使用 OpenAI 能力。
	AIProviderOpenAI = "openai"
	// AIProviderDeepSeek 表示使用 DeepSeek 能力。
	AIProviderDeepSeek = "deepseek"
	// AIProviderGemini 表示通过 OpenAI 兼容接口使用 Gemini。
	AIProviderGemini = "gemini"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultDeepSeekBaseURL = "https://api.deepseek.com/v1"
	defaultGeminiBaseURL   = "https://generativelanguage.googleapis.com/v1beta/openai"
)

var supportedAIProviders = []string{AIProviderOpenAI, AIProviderDeepSeek, AIProviderGemini}

// AISettings 描述当前生效的 AI 平台与各平台 API Key。
type AISettings struct {
	AIProvider     string `json:"aiProvider"`
	OpenAIAPIKey   string `json:"openaiApiKey"`
	DeepSeekAPIKey string `json:"deepseekApiKey"`
	GeminiAPIKey   string `json:"geminiApiKey"`
}

// APIKey 返回当前平台对应的 API Key。
func (s AISettings) APIKey() string {
	switch normalizeAIProvider(s.AIProvider) {
	case AIProviderDeepSeek:
		return strings.TrimSpace(s.DeepSeekAPIKey)
	case AIProviderGemini:
		return strings.TrimSpace(s.GeminiAPIKey)
	default:
		return strings.TrimSpace(s.OpenAIAPIKey)
	}
}

// ErrAIAPIKeyMissing 表示未提供必需的 AI 平台 API Key。
var ErrAIAPIKeyMissing = errors.New("api key is required")

// ErrUnsupportedAIProvider 表示传入了未知的 AI 平台。
var ErrUnsupportedAIProvider = errors.New("unsupported ai provider")

// SystemSettingService 提供 AI 设置的读取与更新能力，数据库为空的字段回退到环境变量。
type SystemSettingService struct {
	db         *gorm.DB
	defaults   AISettings
	httpClient httpDoer
	baseURLs   map[string]string
}

// NewSystemSettingService 构造 SystemSettingService。
func NewSystemSettingService(gdb *gorm.DB) *SystemSettingService {
	return &SystemSettingService{
		db:         gdb,
		defaults:   AISettings{AIProvider: AIProviderOpenAI},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURLs: map[string]string{
			AIProviderOpenAI:   defaultOpenAIBaseURL,
			AIProviderDeepSeek: defaultDeepSeekBaseURL,
			AIProviderGemini:   defaultGeminiBaseURL,
		},
	}
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

var settingKeys = []string{
	db.SettingKeyAIProvider,
	db.SettingKeyOpenAIAPIKey,
	db.SettingKeyDeepSeekAPIKey,
	db.SettingKeyGeminiAPIKey,
}

// SetDefaults 设置环境变量提供的默认值。
func (s *SystemSettingService) SetDefaults(defaults AISettings) {
	provider := normalizeAIProvider(defaults.AIProvider)
	if provider == "" {
		provider = AIProviderOpenAI
	}
	defaults.AIProvider = provider
	s.defaults = defaults
}

// GetSettings 读取 AI 设置，未设置的字段使用默认值。
func (s *SystemSettingService) GetSettings(ctx context.Context) (AISettings, error) {
	result := s.defaults
	if result.AIProvider == "" {
		result.AIProvider = AIProviderOpenAI
	}

	var records []db.SystemSetting
	if err := s.db.WithContext(ctx).Where("key IN ?", settingKeys).Find(&records).Error; err != nil {
		return result, fmt.Errorf("load system settings: %w", err)
	}

	for _, record := range records {
		value := strings.TrimSpace(record.Value)
		if value == "" {
			continue
		}
		switch record.Key {
		case db.SettingKeyAIProvider:
			if provider := normalizeAIProvider(value); provider != "" {
				result.AIProvider = provider
			}
		case db.SettingKeyOpenAIAPIKey:
			result.OpenAIAPIKey = value
		case db.SettingKeyDeepSeekAPIKey:
			result.DeepSeekAPIKey = value
		case db.SettingKeyGeminiAPIKey:
			result.GeminiAPIKey = value
		}
	}

	return result, nil
}

// UpdateSettings 保存 AI 设置，空 API Key 表示回退到环境变量。
func (s *SystemSettingService) UpdateSettings(ctx context.Context, input AISettings) (AISettings, error) {
	provider := normalizeAIProvider(input.AIProvider)
	if strings.TrimSpace(input.AIProvider) != "" && provider == "" {
		return AISettings{}, ErrUnsupportedAIProvider
	}
	if provider == "" {
		provider = AIProviderOpenAI
	}

	values := map[string]string{
		db.SettingKeyAIProvider:     provider,
		db.SettingKeyOpenAIAPIKey:   strings.TrimSpace(input.OpenAIAPIKey),
		db.SettingKeyDeepSeekAPIKey: strings.TrimSpace(input.DeepSeekAPIKey),
		db.SettingKeyGeminiAPIKey:   strings.TrimSpace(input.GeminiAPIKey),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, key := range settingKeys {
			if err := upsertSetting(tx, key, values[key]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return AISettings{}, fmt.Errorf("update system settings: %w", err)
	}

	return s.GetSettings(ctx)
}

func upsertSetting(tx *gorm.DB, key, value string) error {
	setting := db.SystemSetting{Key: key, Value: value}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&setting).Error; err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}

// SetHTTPClient 替换用于访问第三方服务的 HTTP 客户端，主要面向测试场景。
func (s *SystemSettingService) SetHTTPClient(client httpDoer) {
	if client == nil {
		s.httpClient = &http.Client{Timeout: 10 * time.Second}
		return
	}
	s.httpClient = client
}

// SetBaseURL 覆盖指定平台的 API 基础地址，便于测试或自定义代理。
func (s *SystemSettingService) SetBaseURL(provider, base string) {
	prov := normalizeAIProvider(provider)
	if prov == "" {
		return
	}
	s.baseURLs[prov] = strings.TrimRight(strings.TrimSpace(base), "/")
}

// BaseURL 返回指定平台的 API 基础地址。
func (s *SystemSettingService) BaseURL(provider string) string {
	prov := normalizeAIProvider(provider)
	if prov == "" {
		prov = AIProviderOpenAI
	}
	if base := strings.TrimSpace(s.baseURLs[prov]); base != "" {
		return base
	}
	switch prov {
	case AIProviderDeepSeek:
		return defaultDeepSeekBaseURL
	case AIProviderGemini:
		return defaultGeminiBaseURL
	}
	return defaultOpenAIBaseURL
}

// TestAIConnection 调用指定 AI 平台的模型接口验证 API Key 的有效性。
func (s *SystemSettingService) TestAIConnection(ctx context.Context, provider, apiKey string) error {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return ErrAIAPIKeyMissing
	}

	prov := normalizeAIProvider(provider)
	if prov == "" {
		prov = AIProviderOpenAI
	}

	client := s.httpClient
	if client == nil {
		client = http.DefaultClient
	}

	label := providerLabel(prov)
	endpoint := s.BaseURL(prov) + "/models"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", prov, err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("User-Agent", "twinlog-admin/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("请求 %s 接口失败: %w", label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			return fmt.Errorf("%s 返回错误：%s (%s)", label, resp.Status, msg)
		}
		return fmt.Errorf("%s 返回错误：%s", label, resp.Status)
	}

	return nil
}

func normalizeAIProvider(provider string) string {
	trimmed := strings.ToLower(strings.TrimSpace(provider))
	for _, candidate := range supportedAIProviders {
		if trimmed == candidate {
			return candidate
		}
	}
	return ""
}

func providerLabel(provider string) string {
	switch provider {
	case AIProviderDeepSeek:
		return "DeepSeek"
	case AIProviderGemini:
		return "Gemini"
	}
	return "OpenAI"
}
