// Package config 提供应用配置的加载与校验。
// 配置来源：进程环境变量，开发环境下可通过 .env 文件补充。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig 应用基本配置
type AppConfig struct {
	Name            string
	Env             string // dev, test, prod
	Version         string
	Port            int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	UploadDir       string // CSV导入文件落盘目录
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string // debug, info, warn, error
	Encoding string // json, console
}

// DatabaseConfig 数据库连接配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// RedisConfig Redis连接配置
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig 缓存行为配置。
// 缓存仅用于商品目录读路径与幂等键，库存和订单状态禁止缓存。
type CacheConfig struct {
	Enabled bool
	Type    string // redis, memory
	TTL     time.Duration
}

// RateLimitConfig API限流配置。限流状态存Redis，关闭时不挂载限流中间件。
type RateLimitConfig struct {
	Enabled   bool
	Rate      int // 每个窗口补充的令牌数
	Burst     int // 桶容量
	WindowSec int // 补充窗口，秒
}

// IdempotencyConfig 写接口幂等键配置
type IdempotencyConfig struct {
	TTL time.Duration // 幂等键保留时长
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// JWTConfig JWT令牌配置
type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// MQConfig RabbitMQ连接配置
type MQConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	VHost    string
}

// OrderConfig 订单业务配置
type OrderConfig struct {
	TaxRate      float64 // 税率，默认0.10
	NumberPrefix string  // 订单号前缀
}

// WorkerConfig 后台任务配置
type WorkerConfig struct {
	LowStockInterval  time.Duration // 低库存巡检间隔
	LowStockBatchSize int           // 巡检批量大小
	RelayInterval     time.Duration // outbox转发间隔
	RelayBatchSize    int           // outbox单批转发数量
	InvoiceDir        string        // 发票输出目录
	AdminEmail        string        // 低库存告警收件人
}

// MigrationsConfig 数据库迁移配置
type MigrationsConfig struct {
	Dir string
}

// Config 汇总全部应用配置
type Config struct {
	App         AppConfig
	Log         LogConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Cache       CacheConfig
	RateLimit   RateLimitConfig
	Idempotency IdempotencyConfig
	CORS        CORSConfig
	JWT         JWTConfig
	MQ          MQConfig
	Order       OrderConfig
	Worker      WorkerConfig
	Migrations  MigrationsConfig
}

// Load 从环境变量加载配置并做基本校验。
// .env 文件不存在时静默忽略，生产环境应完全依赖环境变量。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:            getEnv("APP_NAME", "order-management"),
			Env:             getEnv("APP_ENV", "dev"),
			Version:         getEnv("APP_VERSION", "0.1.0"),
			Port:            getEnvInt("APP_PORT", 8080),
			RequestTimeout:  getEnvDuration("APP_REQUEST_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 15*time.Second),
			UploadDir:       getEnv("APP_UPLOAD_DIR", "storage/imports"),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "127.0.0.1"),
			Port:     getEnvInt("DB_PORT", 3306),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "order_management"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "127.0.0.1"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", false),
			Type:    getEnv("CACHE_TYPE", "memory"),
			TTL:     getEnvDuration("CACHE_TTL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Enabled:   getEnvBool("RATE_LIMIT_ENABLED", false),
			Rate:      getEnvInt("RATE_LIMIT_RATE", 100),
			Burst:     getEnvInt("RATE_LIMIT_BURST", 200),
			WindowSec: getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),
		},
		Idempotency: IdempotencyConfig{
			TTL: getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "X-Request-ID", "X-Idempotency-Key"}),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", ""),
			AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
		},
		MQ: MQConfig{
			Host:     getEnv("MQ_HOST", "127.0.0.1"),
			Port:     getEnvInt("MQ_PORT", 5672),
			Username: getEnv("MQ_USERNAME", "guest"),
			Password: getEnv("MQ_PASSWORD", "guest"),
			VHost:    getEnv("MQ_VHOST", "/"),
		},
		Order: OrderConfig{
			TaxRate:      getEnvFloat("ORDER_TAX_RATE", 0.10),
			NumberPrefix: getEnv("ORDER_NUMBER_PREFIX", "ORD"),
		},
		Worker: WorkerConfig{
			LowStockInterval:  getEnvDuration("WORKER_LOW_STOCK_INTERVAL", time.Hour),
			LowStockBatchSize: getEnvInt("WORKER_LOW_STOCK_BATCH_SIZE", 100),
			RelayInterval:     getEnvDuration("WORKER_RELAY_INTERVAL", time.Second),
			RelayBatchSize:    getEnvInt("WORKER_RELAY_BATCH_SIZE", 100),
			InvoiceDir:        getEnv("WORKER_INVOICE_DIR", "storage/invoices"),
			AdminEmail:        getEnv("WORKER_ADMIN_EMAIL", "ops@example.com"),
		},
		Migrations: MigrationsConfig{
			Dir: getEnv("MIGRATIONS_DIR", "migrations"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate 校验关键配置项
func (c *Config) validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid app port: %d", c.App.Port)
	}
	if c.App.Env == "prod" && c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required in prod")
	}
	if c.JWT.Secret == "" {
		// 开发环境允许缺省密钥，避免本地启动被阻塞
		c.JWT.Secret = "dev-insecure-secret"
	}
	if c.Order.TaxRate < 0 || c.Order.TaxRate >= 1 {
		return fmt.Errorf("invalid tax rate: %f", c.Order.TaxRate)
	}
	if c.Worker.LowStockBatchSize <= 0 || c.Worker.RelayBatchSize <= 0 {
		return fmt.Errorf("worker batch sizes must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
