// Package logger 基于 zap 提供结构化日志器的构建。
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New 根据运行环境与配置创建 zap 日志器。
// dev 环境默认使用带颜色的 console 编码，其余环境使用 json 编码。
func New(env, level, encoding, appName, appVersion string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}

	if encoding != "" {
		cfg.Encoding = encoding
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	lg, err := cfg.Build(
		zap.Fields(
			zap.String("app", appName),
			zap.String("version", appVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return lg, nil
}
