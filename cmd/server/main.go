package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"unkahi/backend/internal/config"
	"unkahi/backend/internal/domain"
	"unkahi/backend/internal/health"
	"unkahi/backend/internal/logger"
	"unkahi/backend/internal/monitoring"
	"unkahi/backend/internal/service"
	"unkahi/backend/internal/storage"
	"unkahi/backend/internal/storage/hybrid"
	"unkahi/backend/internal/storage/memory"
	"unkahi/backend/internal/storage/postgres"
	redisstore "unkahi/backend/internal/storage/redis"
	httptransport "unkahi/backend/internal/transport/http"
	"unkahi/backend/internal/websocket"
)

// main 启动匿名消息服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting unkahi server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("share_base_url", cfg.Share.BaseURL),
	)

	// 初始化存储层
	var store storage.Store
	var dbClient *postgres.Client

	// 根据配置选择存储类型
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = initializeDatabaseStorage(cfg, log)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))

		// PostgreSQL 场景下额外维护一个 pgx 连接池，用于观测池状态
		if cfg.Database.Type == "postgres" || cfg.Database.Type == "postgresql" {
			dbClient, err = postgres.NewClient(&cfg.Database, log)
			if err != nil {
				log.Warn("failed to create monitoring pool, continuing without it", zap.Error(err))
				dbClient = nil
			}
		}
	} else {
		// 内存存储（开发环境）
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}

	// 初始化监控系统
	metrics := monitoring.NewMetrics()

	// 初始化健康检查
	healthChecker := health.NewHealthChecker(store, log)

	// 初始化告警系统
	alertManager := monitoring.NewAlertManager(log)
	alertManager.AddReceiver(monitoring.NewLogAlertReceiver(log))
	alertManager.AddRule(monitoring.HighMemoryUsageRule(512.0)) // 512MB
	alertManager.AddRule(monitoring.StoreHealthRule(store))

	log.Info("monitoring system initialized")

	// 初始化服务层
	identityService := service.NewIdentityService(store, store, cfg)
	messageService := service.NewMessageService(store, store, store, log)
	inboxService := service.NewInboxService(store, store, store)
	rememberedService := service.NewRememberedCodeService(store, inboxService)
	statsService := service.NewStatsService(store)

	// 创建 WebSocket Hub，访问凭证就是连接的唯一认证方式
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, inboxService, log)

	// 内存存储是单实例的，新消息直接推给 Hub。
	// 混合存储走 Redis 频道转发，避免本实例重复推送。
	if _, ok := store.(*hybrid.Store); !ok {
		messageService.SetNotifier(wsHub)
	}

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:            cfg,
		IdentityService:   identityService,
		MessageService:    messageService,
		InboxService:      inboxService,
		RememberedService: rememberedService,
		StatsService:      statsService,
		WebSocketHub:      wsHub,
		HealthChecker:     healthChecker,
		Metrics:           metrics,
		Logger:            log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	startedAt := time.Now()

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时清理过期访问凭证 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		log.Info("starting expired access code cleanup task", zap.Duration("interval", 1*time.Hour))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("cleanup task stopped")
				return nil
			case <-ticker.C:
				count, err := store.DeleteExpiredAccessCodes(time.Now().UTC())
				if err != nil {
					log.Error("failed to cleanup expired access codes", zap.Error(err))
				} else if count > 0 {
					metrics.RecordAccessCodesExpired(count)
					log.Info("expired access codes cleaned up", zap.Int("count", count))
				}
			}
		}
	})

	// 定时刷新统计指标 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				refreshGauges(metrics, statsService, wsHub, dbClient, startedAt, log)
			}
		}
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 跨实例消息转发 goroutine：订阅 Redis 新消息频道并推给本实例的在线客户端
	if hybridStore, ok := store.(*hybrid.Store); ok {
		group.Go(func() error {
			sub := hybridStore.Cache().SubscribeAllNewMessages()
			defer sub.Close()

			log.Info("starting cross-instance message relay")

			ch := sub.Channel()
			for {
				select {
				case <-groupCtx.Done():
					log.Info("message relay stopped")
					return nil
				case m, ok := <-ch:
					if !ok {
						return nil
					}
					var message domain.Message
					if err := json.Unmarshal([]byte(m.Payload), &message); err != nil {
						log.Warn("failed to decode relayed message", zap.Error(err))
						continue
					}
					wsHub.NotifyNewMessage(redisstore.HandleFromChannel(m.Channel), &message)
				}
			}
		})
	}

	// 告警监控 goroutine
	group.Go(func() error {
		log.Info("starting alert monitoring")
		alertManager.StartMonitoring(groupCtx, 1*time.Minute)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		if err := store.Close(); err != nil {
			log.Warn("store close warning", zap.Error(err))
		}

		if dbClient != nil {
			dbClient.Close()
		}

		log.Info("server stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// refreshGauges 把业务总量与运行时状态刷进 Prometheus 仪表
func refreshGauges(metrics *monitoring.Metrics, stats *service.StatsService, hub *websocket.Hub, dbClient *postgres.Client, startedAt time.Time, log *zap.Logger) {
	snapshot, err := stats.Collect()
	if err != nil {
		log.Warn("failed to collect statistics for metrics", zap.Error(err))
	} else {
		metrics.UpdateIdentitiesTotal(snapshot.TotalIdentities)
		metrics.UpdateMessagesTotal(snapshot.TotalMessages)
		metrics.UpdateMessagesUnread(snapshot.UnreadMessages)
		metrics.UpdateAccessCodesActive(snapshot.ActiveAccessCodes)
	}

	metrics.UpdateWebSocketConnections(hub.ClientCount())
	metrics.UpdateSystemUptime(time.Since(startedAt))

	if dbClient != nil {
		metrics.UpdateDatabaseConnections(int(dbClient.Stats().TotalConns()))
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateMemoryUsage(int64(m.Alloc))
}

// initializeDatabaseStorage 初始化数据库存储
func initializeDatabaseStorage(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	log.Info("initializing database storage",
		zap.String("database_type", cfg.Database.Type),
		zap.String("redis_address", cfg.Redis.Address),
	)

	// 使用混合存储（SQL + Redis）
	store, err := hybrid.NewStoreWithType(
		cfg.Database.Type,
		cfg.Database.DSN,
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create hybrid store: %w", err)
	}

	log.Info("database storage initialized successfully",
		zap.String("database_type", cfg.Database.Type),
	)

	return store, nil
}
