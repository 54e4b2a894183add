package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/twinlog/internal/service"
)

// HealthCheck 检查数据库与历史存储是否可用。
func (a *API) HealthCheck(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "database handle unavailable",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "database unreachable",
		})
		return
	}

	if a.storePing != nil {
		if err := a.storePing(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "error",
				"message": "history store unreachable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "up",
	})
}

type aiSettingsRequest struct {
	AIProvider     string `json:"aiProvider"`
	OpenAIAPIKey   string `json:"openaiApiKey"`
	DeepSeekAPIKey string `json:"deepseekApiKey"`
	GeminiAPIKey   string `json:"geminiApiKey"`
}

type aiTestRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
}

// GetAISettings 返回当前 AI 设置，API Key 仅显示末尾几位。
func (a *API) GetAISettings(c *gin.Context) {
	settings, err := a.system.GetSettings(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取 AI 设置失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": aiSettingsPayload(settings)})
}

// UpdateAISettings 保存 AI 设置。
func (a *API) UpdateAISettings(c *gin.Context) {
	var payload aiSettingsRequest
	if !bindJSON(c, &payload, "请填写完整的 AI 设置") {
		return
	}

	settings, err := a.system.UpdateSettings(c.Request.Context(), service.AISettings{
		AIProvider:     payload.AIProvider,
		OpenAIAPIKey:   payload.OpenAIAPIKey,
		DeepSeekAPIKey: payload.DeepSeekAPIKey,
		GeminiAPIKey:   payload.GeminiAPIKey,
	})
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedAIProvider) {
			respondError(c, http.StatusBadRequest, "不支持的 AI 平台")
			return
		}
		respondError(c, http.StatusInternalServerError, "保存 AI 设置失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "AI 设置已保存",
		"settings": aiSettingsPayload(settings),
	})
}

func aiSettingsPayload(settings service.AISettings) gin.H {
	return gin.H{
		"aiProvider":     settings.AIProvider,
		"openaiApiKey":   maskAPIKey(settings.OpenAIAPIKey),
		"deepseekApiKey": maskAPIKey(settings.DeepSeekAPIKey),
		"geminiApiKey":   maskAPIKey(settings.GeminiAPIKey),
	}
}

func maskAPIKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	runes := []rune(key)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}

// TestAIConnection 测试不同 AI 平台 API Key 的连通性。
func (a *API) TestAIConnection(c *gin.Context) {
	var payload aiTestRequest
	if !bindJSON(c, &payload, "请填写有效的 AI 配置信息") {
		return
	}

	if err := a.system.TestAIConnection(c.Request.Context(), payload.Provider, payload.APIKey); err != nil {
		switch {
		case errors.Is(err, service.ErrAIAPIKeyMissing):
			respondError(c, http.StatusBadRequest, "请填写有效的 AI API Key")
		default:
			respondError(c, http.StatusBadGateway, err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "AI 接口连接正常"})
}
