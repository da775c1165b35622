package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"marketplace-auction/internal/api/handlers"
	"marketplace-auction/internal/config"
	"marketplace-auction/internal/domain"
	"marketplace-auction/internal/infrastructure/leader"
	"marketplace-auction/internal/infrastructure/memory"
	"marketplace-auction/internal/infrastructure/mysql"
	"marketplace-auction/internal/infrastructure/payment"
	redisInfra "marketplace-auction/internal/infrastructure/redis"
	"marketplace-auction/internal/services"
	"marketplace-auction/pkg/logger"
)

func main() {
	log := logger.New()
	log.Info("Starting auction engine")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Redis carries bid events and the sweeper leader lock.
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	var store domain.Store
	var bidders domain.BidderDirectory

	switch cfg.Engine.Storage {
	case "memory":
		log.Warn("Using in-memory storage; run a single instance only")
		store = memory.NewStore()
		bidders = memory.NewBidderDirectory()
	default:
		db, err := sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			log.Error("Failed to connect to MySQL", "error", err)
			os.Exit(1)
		}
		defer func(db *sql.DB) {
			if err := db.Close(); err != nil {
				log.Error("Failed to close MySQL connection", "error", err)
			}
		}(db)

		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

		if err := db.PingContext(ctx); err != nil {
			log.Error("Failed to ping MySQL", "error", err)
			os.Exit(1)
		}
		log.Info("Connected to MySQL")

		store = mysql.NewMySQLStore(db)
		bidders = mysql.NewMySQLBidderDirectory(db)
	}

	eventPub := redisInfra.NewEventPublisher(rdb)
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)
	payments := payment.NewHTTPClient(cfg.Payment.BaseURL, cfg.Payment.Timeout)

	bidService := services.NewBidService(
		store, bidders, eventPub, cfg.Engine.LockWait, cfg.Engine.PageSize, log)

	finalizeSweeper := services.NewFinalizationSweeper(
		store, eventPub, leaderElection, cfg.Instance.ID,
		cfg.Sweep.FinalizeEvery, cfg.Engine.LockWait, log)

	paymentSweeper := services.NewPaymentSweeper(
		store, payments, eventPub, leaderElection, cfg.Instance.ID,
		cfg.Sweep.PaymentEvery, cfg.Sweep.PaymentGrace, cfg.Engine.LockWait, log)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","host":"${host}","method":"${method}","uri":"${uri}","user_agent":"${user_agent}","status":${status},"error":"${error}","latency":${latency},"latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	bidHandler := handlers.NewBidHandler(bidService, log)
	api := e.Group("/api/v1")
	bidHandler.Register(api)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-engine",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Background sweepers
	if err := finalizeSweeper.Start(context.Background()); err != nil {
		log.Error("Failed to start finalization sweeper", "error", err)
		os.Exit(1)
	}
	if err := paymentSweeper.Start(context.Background()); err != nil {
		log.Error("Failed to start payment sweeper", "error", err)
		os.Exit(1)
	}

	// Keep contending for sweep leadership.
	go func() {
		for {
			became, err := leaderElection.BecomeLeader(context.Background(), cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became sweep leader", "instance_id", cfg.Instance.ID)
			}
			time.Sleep(10 * time.Second)
		}
	}()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting auction engine server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction engine...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := finalizeSweeper.Stop(); err != nil {
		log.Error("Failed to stop finalization sweeper", "error", err)
	}
	if err := paymentSweeper.Stop(); err != nil {
		log.Error("Failed to stop payment sweeper", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(ctx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}

	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Auction engine stopped")
}
