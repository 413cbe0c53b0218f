package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/ledgergate/internal/api"
	"github.com/punchamoorthee/ledgergate/internal/auth"
	"github.com/punchamoorthee/ledgergate/internal/config"
	"github.com/punchamoorthee/ledgergate/internal/hashchain"
	"github.com/punchamoorthee/ledgergate/internal/logging"
	"github.com/punchamoorthee/ledgergate/internal/notify"
	"github.com/punchamoorthee/ledgergate/internal/service"
	"github.com/punchamoorthee/ledgergate/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledgerStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ledgerStore.Close()

	digest, err := hashchain.ByName(cfg.AuthDigest)
	if err != nil {
		return err
	}

	publisher, closePublisher, err := buildPublisher(cfg, ledgerStore, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	throttle, err := buildThrottle(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Initialize Layers
	svc := service.NewTransferService(ledgerStore, auth.NewGate(digest), publisher, logger)
	handler := api.NewHandler(svc, throttle, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), nil
	}

	if cfg.RunMigrations {
		if err := store.Migrate(cfg.DBSource, logger); err != nil {
			return nil, err
		}
	}
	s, err := store.NewPostgresStore(ctx, cfg.DBSource)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return s, nil
}

// buildPublisher fans events out to chat notifications and, when configured,
// to the message broker.
func buildPublisher(cfg *config.Config, dir notify.Directory, logger *zap.Logger) (notify.Publisher, func(), error) {
	var sink notify.Sink = notify.LogSink{Logger: logger}
	if cfg.TelegramToken != "" {
		sink = notify.NewTelegramSink(cfg.TelegramToken, logger, notify.WithBaseURL(cfg.TelegramAPIURL))
	}
	pubs := notify.Multi{notify.NewDispatcher(dir, sink, logger)}

	closeFn := func() {}
	if cfg.AMQPURL != "" {
		amqpPub, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return nil, nil, err
		}
		pubs = append(pubs, amqpPub)
		closeFn = func() {
			if err := amqpPub.Close(); err != nil {
				logger.Warn("amqp close failed", zap.Error(err))
			}
		}
	}
	return pubs, closeFn, nil
}

func buildThrottle(ctx context.Context, cfg *config.Config, logger *zap.Logger) (api.Throttle, error) {
	if cfg.RedisAddr == "" {
		return api.NoopThrottle{}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info("auth failure throttle enabled",
		zap.Int64("max_failures", cfg.AuthMaxFailures),
		zap.Duration("window", cfg.AuthFailureWindow))
	return api.NewRedisThrottle(client, cfg.AuthMaxFailures, cfg.AuthFailureWindow), nil
}
