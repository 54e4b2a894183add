package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/twinlog/internal/service"
	"gorm.io/gorm"
)

// Dependencies 汇总构造 API 所需的服务。
type Dependencies struct {
	DB       *gorm.DB
	History  service.HistoryStore
	Analysis *service.HistoryAnalysisService
	System   *service.SystemSettingService
	Tokens   *service.TokenService
	Logger   zerolog.Logger
	// StorePing 检查历史存储是否可用，为空时只检查 DB。
	StorePing func(ctx context.Context) error
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db        *gorm.DB
	history   service.HistoryStore
	analysis  *service.HistoryAnalysisService
	system    *service.SystemSettingService
	tokens    *service.TokenService
	logger    zerolog.Logger
	storePing func(ctx context.Context) error
}

// NewAPI constructs a handler set with shared services.
func NewAPI(deps Dependencies) *API {
	return &API{
		db:        deps.DB,
		history:   deps.History,
		analysis:  deps.Analysis,
		system:    deps.System,
		tokens:    deps.Tokens,
		logger:    deps.Logger,
		storePing: deps.StorePing,
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

const contextUserIDKey = "twinlog.user_id"

// currentUserID 返回认证中间件写入的用户 ID。
func currentUserID(c *gin.Context) uint {
	if value, ok := c.Get(contextUserIDKey); ok {
		if id, ok := value.(uint); ok {
			return id
		}
	}
	return 0
}
