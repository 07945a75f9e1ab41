package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/config"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/database"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/invoice"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/logger"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/mq"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/notify"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/repo"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/service"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/worker"
)

// 事件消费的预取数量
const eventPrefetch = 10

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, cfg.App.Name+"-worker", cfg.App.Version)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	db, err := database.New(cfg, lg)
	if err != nil {
		lg.Sugar().Fatalw("init database", "err", err)
	}
	defer db.Close()

	mqConn, err := mq.Dial(&cfg.MQ, lg)
	if err != nil {
		lg.Sugar().Fatalw("connect rabbitmq", "err", err)
	}
	defer mqConn.Close()
	producer := mq.NewProducer(mqConn, lg)
	defer producer.Close()

	// 仓储与服务。工作进程不走商品缓存，处理器需要的都是最新状态。
	userRepo := repo.NewUserRepository(db)
	productRepo := repo.NewProductRepository(db)
	inventoryRepo := repo.NewInventoryRepository(db)
	orderRepo := repo.NewOrderRepository(db)
	importRepo := repo.NewImportRepository(db)
	outboxRepo := repo.NewOutboxRepository(db)

	inventoryService := service.NewInventoryService(db, inventoryRepo, outboxRepo, lg, cfg.Worker.LowStockBatchSize)
	productService := service.NewProductService(db, productRepo, importRepo, inventoryRepo, inventoryService, lg)

	handlers := worker.NewEventHandlers(
		orderRepo,
		userRepo,
		notify.NewLogSender(lg),
		invoice.NewFileGenerator(cfg.Worker.InvoiceDir),
		cfg.Worker.AdminEmail,
		lg,
	)
	registry := handlers.BuildRegistry(lg)

	relay := worker.NewOutboxRelay(outboxRepo, producer, lg, cfg.Worker.RelayInterval, cfg.Worker.RelayBatchSize)
	sweeper := worker.NewLowStockSweeper(inventoryService, lg, cfg.Worker.LowStockInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				lg.Sugar().Errorw(name+" stopped", "err", err)
				stop()
			}
		}()
	}

	run("outbox relay", func(ctx context.Context) error {
		relay.Run(ctx)
		return nil
	})
	run("low stock sweeper", func(ctx context.Context) error {
		sweeper.Run(ctx)
		return nil
	})
	run("event consumer", func(ctx context.Context) error {
		return worker.RunEventConsumer(ctx, mqConn, registry, eventPrefetch, lg)
	})
	run("import consumer", func(ctx context.Context) error {
		return worker.RunImportConsumer(ctx, mqConn, productService, lg)
	})

	lg.Sugar().Infow("worker started",
		"relay_interval", fmt.Sprint(cfg.Worker.RelayInterval),
		"low_stock_interval", fmt.Sprint(cfg.Worker.LowStockInterval))

	<-ctx.Done()
	lg.Sugar().Infow("shutdown signal received")
	wg.Wait()
	lg.Sugar().Infow("worker stopped")
}
