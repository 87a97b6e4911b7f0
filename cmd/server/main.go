package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hanbo386/number-maze/internal"
	"github.com/hanbo386/number-maze/internal/events"
	"github.com/hanbo386/number-maze/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "number-maze: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env 不存在時略過
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: load .env: %v\n", err)
	}

	var (
		configPath = flag.String("config", "config.yaml", "配置檔案路徑")
		port       = flag.Int("port", 0, "服務器端口（覆蓋配置）")
		logLevel   = flag.String("log-level", "", "日誌級別 (debug, info, warn, error)")
		logFormat  = flag.String("log-format", "", "日誌格式 (text, json)")
	)
	flag.Parse()

	cfg, err := internal.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 命令列參數優先於配置檔與環境變數
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = *port
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, logCloser, err := logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	publisher, err := newPublisher(cfg.Events, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("關閉事件發布者失敗", "error", err)
		}
	}()

	registry := internal.NewRegistry(cfg.Game, log, internal.WithPublisher(publisher))
	dispatcher := internal.NewDispatcher(registry, log)
	hub := internal.NewHub(dispatcher, cfg.WebSocket, log)
	handler := internal.NewHandler(registry, hub, log)

	mux := http.NewServeMux()
	mux.Handle("/", handler.Routes())
	mux.HandleFunc("GET /ws", hub.ServeWS)
	mux.HandleFunc("GET /{$}", hub.ServeWS) // 舊版客戶端直接連根路徑

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Number Maze 服務器啟動",
			"port", cfg.Server.Port,
			"events", cfg.Events.Driver,
			"countdown", cfg.Game.Countdown)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}

	case sig := <-shutdown:
		log.Info("收到關閉信號，開始優雅關閉", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// 停止接受新連接
		if err := server.Shutdown(ctx); err != nil {
			log.Error("服務器關閉失敗", "error", err)
			_ = server.Close()
		}

		// WebSocket 連線已被 hijack，需另外關閉
		hub.Stop()
		registry.Close()
	}

	log.Info("服務器已關閉")
	return nil
}

// newPublisher 依 events.driver 建立事件發布者
func newPublisher(cfg internal.EventsConfig, log *slog.Logger) (events.Publisher, error) {
	var (
		next events.Publisher
		err  error
	)

	switch cfg.Driver {
	case "nats":
		next, err = events.NewNATSPublisher(cfg.NATSUrl, cfg.Prefix, log)
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		next, err = events.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.Prefix)
	default:
		return events.NopPublisher{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("events driver %s: %w", cfg.Driver, err)
	}

	log.Info("房間事件發布已啟用", "driver", cfg.Driver, "prefix", cfg.Prefix)
	return events.NewAsyncPublisher(next, cfg.QueueSize, log), nil
}
