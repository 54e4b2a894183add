package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/twinlog/internal/config"
	"github.com/twinlog/internal/db"
	"github.com/twinlog/internal/handler"
	"github.com/twinlog/internal/router"
	"github.com/twinlog/internal/service"
	"gorm.io/gorm"
)

// App 持有一次运行所需的全部服务。
type App struct {
	Config   config.AppConfig
	Logger   zerolog.Logger
	DB       *gorm.DB
	Store    service.HistoryStore
	System   *service.SystemSettingService
	Analysis *service.HistoryAnalysisService
	Tokens   *service.TokenService

	storePing func(ctx context.Context) error
	closers   []func(ctx context.Context) error
}

// New 初始化数据库、历史存储与分析服务。
func New(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*App, error) {
	if err := db.Init(cfg.DatabasePath); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	return NewWithDB(ctx, cfg, logger, db.DB)
}

// NewWithDB 使用已打开的数据库构造 App，测试中传入内存数据库。
func NewWithDB(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger, gdb *gorm.DB) (*App, error) {
	a := &App{Config: cfg, Logger: logger, DB: gdb}

	if err := db.EnsureUser(gdb, cfg.SuperRootUserName, cfg.SuperRootPassword); err != nil {
		return nil, fmt.Errorf("ensure root user: %w", err)
	}

	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		store, err := service.NewMongoHistoryStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		a.Store = store
		a.storePing = store.Ping
		a.closers = append(a.closers, store.Close)
		logger.Info().Str("database", cfg.MongoDatabase).Msg("using mongo history store")
	default:
		a.Store = service.NewHistoryService(gdb)
	}

	a.System = service.NewSystemSettingService(gdb)
	a.System.SetDefaults(service.AISettings{
		AIProvider:     cfg.AIProvider,
		OpenAIAPIKey:   cfg.OpenAIAPIKey,
		DeepSeekAPIKey: cfg.DeepSeekAPIKey,
		GeminiAPIKey:   cfg.GeminiAPIKey,
	})

	classifier := service.NewAITopicClassifier(a.System, logger.With().Str("component", "classifier").Logger())
	a.Analysis = service.NewHistoryAnalysisService(a.Store, classifier, logger.With().Str("component", "analysis").Logger(), service.AnalysisOptions{
		CacheTTL:       cfg.AnalysisCacheTTL,
		SessionTimeout: cfg.SessionTimeout,
		Location:       cfg.Location(),
	})
	secret := cfg.JWTSecret
	if secret == "" {
		generated, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		secret = generated
		logger.Warn().Msg("JWT_SECRET is not set, using a random secret; tokens are invalid after restart")
	}
	a.Tokens = service.NewTokenService(secret, cfg.TokenTTL)

	return a, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// API 构造 HTTP 处理器。
func (a *App) API() *handler.API {
	return handler.NewAPI(handler.Dependencies{
		DB:        a.DB,
		History:   a.Store,
		Analysis:  a.Analysis,
		System:    a.System,
		Tokens:    a.Tokens,
		Logger:    a.Logger,
		StorePing: a.storePing,
	})
}

// Router 构造 Gin 引擎。
func (a *App) Router() *gin.Engine {
	return router.SetupRouter(a.API(), router.Options{
		SessionSecret:  a.Config.SessionSecret,
		AllowedOrigins: a.Config.CORSAllowedOrigins,
		Logger:         a.Logger,
	})
}

// Close 释放外部连接。
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	for _, closeFn := range a.closers {
		if err := closeFn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
