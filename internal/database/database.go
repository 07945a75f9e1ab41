// Package database 提供数据库连接、事务辅助与迁移功能。
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// MySQL驱动通过下划线导入完成注册，sql.Open("mysql", dsn) 时查找。
	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/config"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/errs"
)

// txMaxRetries 并发冲突（死锁/锁等待超时）时整个事务的最大重试次数
const txMaxRetries = 3

// DB 封装数据库连接
type DB struct {
	*sql.DB
	logger *zap.Logger
	dsn    string
}

// New 创建数据库连接
func New(cfg *config.Config, logger *zap.Logger) (*DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=Local",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DBName,
	)

	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.DBName),
	)

	return &DB{DB: sqlDB, logger: logger, dsn: dsn}, nil
}

// WithinTx 在单个事务内执行 fn，fn 返回错误时整体回滚。
// 库存与订单的每一次变更都必须经由这里获得原子性边界；
// 遇到可重试的并发冲突时会重新开启事务执行，最多 txMaxRetries 次。
func (db *DB) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= txMaxRetries; attempt++ {
		if attempt > 0 {
			db.logger.Warn("retrying transaction after conflict",
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
			}
		}

		lastErr = db.runTx(ctx, fn)
		if lastErr == nil {
			return nil
		}
		if !errs.IsRetryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("transaction aborted after %d retries: %w", txMaxRetries, lastErr)
}

// runTx 执行一次事务尝试
func (db *DB) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			db.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// newMigrator 基于独立连接创建 migrate 实例，避免迁移出错影响主连接。
func (db *DB) newMigrator(migrationsDir string) (*migrate.Migrate, *sql.DB, error) {
	migrateSQLDB, err := sql.Open("mysql", db.dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database for migration: %w", err)
	}

	driver, err := mysql.WithInstance(migrateSQLDB, &mysql.Config{})
	if err != nil {
		_ = migrateSQLDB.Close()
		return nil, nil, fmt.Errorf("create mysql driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsDir),
		"mysql",
		driver,
	)
	if err != nil {
		_ = migrateSQLDB.Close()
		return nil, nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, migrateSQLDB, nil
}

// RunMigrations 执行所有待执行的向上迁移。
// 在HTTP服务器启动前调用，确保处理请求时数据库结构已经就绪。
func (db *DB) RunMigrations(migrationsDir string) error {
	m, conn, err := db.newMigrator(migrationsDir)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer m.Close()

	currentVersion, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("get current version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in dirty state at version %d, please check and fix manually", currentVersion)
	}

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			db.logger.Info("no new migrations to apply")
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	newVersion, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("get new version: %w", err)
	}

	db.logger.Info("migrations completed successfully",
		zap.Uint("from_version", currentVersion),
		zap.Uint("to_version", newVersion),
	)
	return nil
}

// MigrateDown 执行指定步数的向下迁移（回滚）。
// 生产环境应谨慎使用。
func (db *DB) MigrateDown(migrationsDir string, steps int) error {
	m, conn, err := db.newMigrator(migrationsDir)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer m.Close()

	currentVersion, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in dirty state at version %d", currentVersion)
	}

	if err := m.Steps(-steps); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}

	db.logger.Info("migration rollback completed",
		zap.Uint("from_version", currentVersion),
		zap.Int("steps", steps),
	)
	return nil
}

// ForceMigrationVersion 强制设置迁移版本，仅用于修复脏状态。
func (db *DB) ForceMigrationVersion(migrationsDir string, version uint) error {
	m, conn, err := db.newMigrator(migrationsDir)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer m.Close()

	if err := m.Force(int(version)); err != nil {
		return fmt.Errorf("force migration version: %w", err)
	}

	db.logger.Info("migration version forced", zap.Uint("version", version))
	return nil
}
