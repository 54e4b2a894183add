package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/twinlog/internal/service"
)

// SyncHistory 接收扩展同步的浏览记录。
func (a *API) SyncHistory(c *gin.Context) {
	var payload historySyncRequest
	if !bindJSON(c, &payload, "同步数据格式错误") {
		return
	}
	if len(payload.Items) == 0 {
		respondError(c, http.StatusBadRequest, "同步数据不能为空")
		return
	}
	if len(payload.Items) > maxSyncItems {
		respondError(c, http.StatusRequestEntityTooLarge, "单次同步的记录过多")
		return
	}

	userID := currentUserID(c)
	result, err := a.history.SyncEvents(c.Request.Context(), userID, payload.events())
	if err != nil {
		a.logger.Error().Err(err).Uint("user_id", userID).Msg("sync history failed")
		respondError(c, http.StatusInternalServerError, "同步浏览记录失败")
		return
	}

	a.logger.Info().
		Uint("user_id", userID).
		Int("received", result.Received).
		Int("inserted", result.Inserted).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Msg("history synced")
	c.JSON(http.StatusOK, result)
}

// ListHistory 返回最近的浏览记录。
func (a *API) ListHistory(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 0)
	events, err := a.history.RecentEvents(c.Request.Context(), currentUserID(c), limit)
	if err != nil {
		a.logger.Error().Err(err).Msg("list history failed")
		respondError(c, http.StatusInternalServerError, "获取浏览记录失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": events, "count": len(events)})
}

// DeleteHistory 清空当前用户的全部浏览记录与缓存报告。
func (a *API) DeleteHistory(c *gin.Context) {
	userID := currentUserID(c)
	deleted, err := a.history.DeleteAll(c.Request.Context(), userID)
	if err != nil {
		a.logger.Error().Err(err).Uint("user_id", userID).Msg("delete history failed")
		respondError(c, http.StatusInternalServerError, "删除浏览记录失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "浏览记录已清空", "deleted": deleted})
}

// GetAnalysis 返回分析报告，refresh=true 时跳过缓存。
func (a *API) GetAnalysis(c *gin.Context) {
	result, ok := a.loadAnalysis(c, parseBoolQuery(c, "refresh"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetAnalysisSummary 以 HTML 形式返回报告中的叙述部分。
func (a *API) GetAnalysisSummary(c *gin.Context) {
	result, ok := a.loadAnalysis(c, false)
	if !ok {
		return
	}

	html, err := service.RenderSummaryHTML(result.Analysis)
	if err != nil {
		a.logger.Error().Err(err).Msg("render summary failed")
		respondError(c, http.StatusInternalServerError, "生成摘要失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"html":              html,
		"markdown":          service.SummaryMarkdown(result.Analysis),
		"fromCache":         result.FromCache,
		"analysisTimestamp": result.AnalysisTimestamp,
	})
}

func (a *API) loadAnalysis(c *gin.Context, forceRefresh bool) (service.AnalysisResult, bool) {
	userID := currentUserID(c)
	result, err := a.analysis.GetAnalysis(c.Request.Context(), userID, forceRefresh)
	if err != nil {
		if errors.Is(err, service.ErrNoHistoryData) {
			respondError(c, http.StatusNotFound, "暂无浏览记录，请先同步")
			return service.AnalysisResult{}, false
		}
		a.logger.Error().Err(err).Uint("user_id", userID).Msg("analysis failed")
		respondError(c, http.StatusInternalServerError, "生成分析报告失败")
		return service.AnalysisResult{}, false
	}
	return result, true
}
