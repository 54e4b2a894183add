package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// StoreDriverSQLite 使用本地 sqlite 存储浏览历史。
	StoreDriverSQLite = "sqlite"
	// StoreDriverMongo 使用 MongoDB 存储浏览历史。
	StoreDriverMongo = "mongo"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr         string
	Port               string
	DatabasePath       string
	SessionSecret      string
	GinMode            string
	SuperRootUserName  string
	SuperRootPassword  string
	StoreDriver        string
	MongoURI           string
	MongoDatabase      string
	JWTSecret          string
	TokenTTL           time.Duration
	CORSAllowedOrigins []string
	Timezone           string
	LogLevel           string
	LogFormat          string
	AnalysisCacheTTL   time.Duration
	SessionTimeout     time.Duration
	AIProvider         string
	OpenAIAPIKey       string
	DeepSeekAPIKey     string
	GeminiAPIKey       string
}

// ErrJWTSecretRequired 表示 release 模式下未配置 JWT_SECRET。
var ErrJWTSecretRequired = errors.New("JWT_SECRET must be set when GIN_MODE=release")

// LoadDotEnv 读取工作目录下的 .env 文件，文件不存在时返回 false。
func LoadDotEnv(files ...string) bool {
	return godotenv.Load(files...) == nil
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := envString("PORT", "8080")

	return AppConfig{
		ListenAddr:         envString("LISTEN_ADDR", fmt.Sprintf(":%s", port)),
		Port:               port,
		DatabasePath:       envString("DATABASE_PATH", "twinlog.db"),
		SessionSecret:      envString("SESSION_SECRET", "twinlog-dev-secret"),
		GinMode:            envString("GIN_MODE", "release"),
		SuperRootUserName:  envString("SUPER_ROOT_USER_NAME", ""),
		SuperRootPassword:  envString("SUPER_ROOT_PASSWORD", ""),
		StoreDriver:        envStoreDriver("STORE_DRIVER"),
		MongoURI:           envString("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:      envString("MONGO_DATABASE", "twinlog"),
		JWTSecret:          envString("JWT_SECRET", ""),
		TokenTTL:           envDuration("TOKEN_TTL", 30*24*time.Hour),
		CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS"),
		Timezone:           envString("TIMEZONE", "Local"),
		LogLevel:           envString("LOG_LEVEL", "info"),
		LogFormat:          envString("LOG_FORMAT", "console"),
		AnalysisCacheTTL:   envDuration("ANALYSIS_CACHE_TTL", time.Hour),
		SessionTimeout:     envDuration("SESSION_TIMEOUT", 30*time.Minute),
		AIProvider:         strings.ToLower(envString("AI_PROVIDER", "openai")),
		OpenAIAPIKey:       envString("OPENAI_API_KEY", ""),
		DeepSeekAPIKey:     envString("DEEPSEEK_API_KEY", ""),
		GeminiAPIKey:       envString("GEMINI_API_KEY", ""),
	}
}

// Validate 检查对外提供服务前必须显式配置的项。
func (c AppConfig) Validate() error {
	if strings.EqualFold(strings.TrimSpace(c.GinMode), "release") && strings.TrimSpace(c.JWTSecret) == "" {
		return ErrJWTSecretRequired
	}
	return nil
}

// Location 解析统计所用时区，无法识别时回退到本地时区。
func (c AppConfig) Location() *time.Location {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

// envDuration 解析时长，格式非法或非正数时使用默认值。
func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func envStoreDriver(key string) string {
	switch strings.ToLower(envString(key, StoreDriverSQLite)) {
	case StoreDriverMongo, "mongodb":
		return StoreDriverMongo
	}
	return StoreDriverSQLite
}
