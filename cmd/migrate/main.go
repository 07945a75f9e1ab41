// Package main 提供数据库迁移管理的命令行工具。
// 支持向上迁移、按步数回滚与脏状态修复。
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/config"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/database"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/logger"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, force")
		steps  = flag.Int("steps", 1, "Number of steps for down migration")
		target = flag.Uint("target", 0, "Target version for force migration")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, "migrate", cfg.App.Version)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	db, err := database.New(cfg, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	migrationsDir := cfg.Migrations.Dir

	switch *action {
	case "up":
		lg.Info("running up migrations...")
		if err := db.RunMigrations(migrationsDir); err != nil {
			lg.Sugar().Fatalw("failed to run up migrations", "error", err)
		}
		lg.Info("up migrations completed successfully")

	case "down":
		lg.Sugar().Infow("running down migrations", "steps", *steps)
		if err := db.MigrateDown(migrationsDir, *steps); err != nil {
			lg.Sugar().Fatalw("failed to run down migrations", "error", err)
		}
		lg.Info("down migrations completed successfully")

	case "force":
		// force允许版本0，表示重置到无迁移状态
		lg.Sugar().Warnw("forcing migration version, this clears dirty state", "target", *target)
		if err := db.ForceMigrationVersion(migrationsDir, *target); err != nil {
			lg.Sugar().Fatalw("failed to force migration version", "error", err)
		}
		lg.Info("migration version forced successfully")

	default:
		fmt.Fprintf(os.Stderr, "unknown action: %s\n", *action)
		flag.Usage()
		os.Exit(2)
	}
}
