package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mdapp "github.com/wyfcoding/papertrading/internal/marketdata/application"
	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/internal/marketdata/infrastructure/providers"
	mdhttp "github.com/wyfcoding/papertrading/internal/marketdata/interfaces/http"
	tradingapp "github.com/wyfcoding/papertrading/internal/trading/application"
	tradingdomain "github.com/wyfcoding/papertrading/internal/trading/domain"
	"github.com/wyfcoding/papertrading/internal/trading/infrastructure/messaging"
	"github.com/wyfcoding/papertrading/internal/trading/infrastructure/persistence/memory"
	"github.com/wyfcoding/papertrading/internal/trading/infrastructure/persistence/mysql"
	tradinghttp "github.com/wyfcoding/papertrading/internal/trading/interfaces/http"
	"github.com/wyfcoding/papertrading/pkg/cache"
	"github.com/wyfcoding/papertrading/pkg/config"
	"github.com/wyfcoding/papertrading/pkg/db"
	"github.com/wyfcoding/papertrading/pkg/logger"
	"github.com/wyfcoding/papertrading/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	ctx := context.Background()
	logger.Info(ctx, "starting service", "service", cfg.ServiceName, "version", cfg.Version, "environment", cfg.Environment)

	m := metrics.New(cfg.ServiceName, prometheus.DefaultRegisterer)

	// 行情缓存：Redis 不可达时自动降级为内存缓存，不阻塞启动
	store := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	defer store.Close()

	// 订单与持仓存储：未配置 DSN 时使用内存实现，便于本地运行
	var (
		orderRepo    tradingdomain.OrderRepository
		positionRepo tradingdomain.PositionRepository
	)
	if cfg.Database.DSN != "" {
		gormDB, err := db.Init(db.Config{
			Driver:             cfg.Database.Driver,
			DSN:                cfg.Database.DSN,
			MaxOpenConns:       cfg.Database.MaxOpenConns,
			MaxIdleConns:       cfg.Database.MaxIdleConns,
			ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
			LogEnabled:         cfg.Database.LogEnabled,
			SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
		})
		if err != nil {
			logger.Fatal(ctx, "failed to init database", "error", err)
		}
		if err := gormDB.AutoMigrate(&tradingdomain.Order{}, &tradingdomain.Position{}); err != nil {
			logger.Fatal(ctx, "failed to migrate database", "error", err)
		}
		orderRepo = mysql.NewOrderRepository(gormDB)
		positionRepo = mysql.NewPositionRepository(gormDB)
	} else {
		logger.Warn(ctx, "database.dsn not configured, using in-memory repositories")
		orderRepo = memory.NewOrderRepository()
		positionRepo = memory.NewPositionRepository()
	}

	// 按配置顺序组装行情源适配器与每日配额
	adapters := make([]mddomain.Provider, 0, len(cfg.Providers.Order))
	quotas := make(map[string]int, len(cfg.Providers.Order))
	for _, name := range cfg.Providers.Order {
		src := cfg.Providers.Sources[name]
		pcfg := providers.Config{
			APIKey:  src.APIKey,
			BaseURL: src.BaseURL,
			Timeout: time.Duration(cfg.Quotes.RequestTimeout) * time.Second,
		}
		var p mddomain.Provider
		switch name {
		case "yahoo":
			p = providers.NewYahoo(pcfg)
		case "tadawul":
			p = providers.NewTadawul(pcfg)
		case "alphavantage":
			p = providers.NewAlphaVantage(pcfg)
		case "finnhub":
			p = providers.NewFinnhub(pcfg)
		case "twelvedata":
			p = providers.NewTwelveData(pcfg)
		default:
			logger.Fatal(ctx, "unknown market data provider", "provider", name)
		}
		adapters = append(adapters, p)
		quotas[p.Name()] = src.DailyQuota
	}

	rotator := mdapp.NewRotator(adapters, quotas, m, nil)
	quoteService := mdapp.NewQuoteService(rotator, store, mdapp.QuoteServiceConfig{
		QuoteTTL:       time.Duration(cfg.Quotes.TTL) * time.Second,
		HistoryTTL:     time.Duration(cfg.Quotes.HistoryTTL) * time.Second,
		RequestTimeout: time.Duration(cfg.Quotes.RequestTimeout) * time.Second,
	}, m)

	var publisher tradingdomain.EventPublisher = messaging.NopPublisher{}
	if cfg.Kafka.Enabled {
		kafkaPublisher := messaging.NewKafkaPublisher(messaging.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.OrderTopic,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: time.Duration(cfg.Kafka.RetryBackoff) * time.Millisecond,
		})
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	engine := tradingapp.NewEngine(orderRepo, positionRepo, quoteService, publisher, m)
	tradingService := tradingapp.NewTradingService(engine, orderRepo, positionRepo)
	monitor := tradingapp.NewMonitor(engine, orderRepo, quoteService, m)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.ServiceName, "version": cfg.Version})
	})
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	mdhttp.NewMarketDataHandler(quoteService).RegisterRoutes(&router.RouterGroup)
	tradinghttp.NewTradingHandler(tradingService, monitor).RegisterRoutes(&router.RouterGroup)

	// 挂单监控：按固定周期评估所有挂单
	monitorCtx, stopMonitor := context.WithCancel(ctx)
	monitorDone := make(chan struct{})
	if cfg.Monitor.Enabled {
		go func() {
			defer close(monitorDone)
			ticker := time.NewTicker(time.Duration(cfg.Monitor.Interval) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-monitorCtx.Done():
					return
				case <-ticker.C:
					if _, err := monitor.RunCycle(monitorCtx); err != nil {
						logger.Error(monitorCtx, "monitor cycle failed", "error", err)
					}
				}
			}
		}()
	} else {
		close(monitorDone)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info(ctx, "http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "http server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info(ctx, "shutting down")

	// 先停监控，避免关停期间继续触发成交
	stopMonitor()
	<-monitorDone

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", "error", err)
	}
	logger.Info(ctx, "service stopped")
}
