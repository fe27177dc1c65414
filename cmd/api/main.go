package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-fanout-relay/internal/application/otp"
	"github.com/go-fanout-relay/internal/application/session"
	"github.com/go-fanout-relay/internal/config"
	"github.com/go-fanout-relay/internal/fanout"
	"github.com/go-fanout-relay/internal/infrastructure/dynamo"
	"github.com/go-fanout-relay/internal/infrastructure/redisstore"
	"github.com/go-fanout-relay/internal/infrastructure/smtp"
	"github.com/go-fanout-relay/internal/infrastructure/sns"
	"github.com/go-fanout-relay/internal/pkg/logger"
	"github.com/go-fanout-relay/internal/pkg/metrics"
	"github.com/go-fanout-relay/internal/pkg/token"
	transporthttp "github.com/go-fanout-relay/internal/transport/http"
	"github.com/go-fanout-relay/internal/transport/http/handler"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	slog.SetDefault(logger.New(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("relay stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New()

	store, storeCheck, err := newCodeStore(ctx, cfg)
	if err != nil {
		return err
	}

	codec, err := token.NewCodec([]byte(cfg.SessionSecret))
	if err != nil {
		return err
	}
	sessions := session.NewService(codec, cfg.SessionTTL)

	// SNS SMS sender (optional: without it phone identities are unimplemented).
	var smsSender otp.SMSSender
	if cfg.SNSEnabled {
		if sender, err := sns.NewSender(ctx, cfg); err == nil {
			smsSender = sender
		} else {
			slog.Warn("SNS sender not available", "err", err)
		}
	}

	otpSvc := otp.NewService(otp.ServiceDeps{
		Store:     store,
		Mailer:    smtp.NewMailer(cfg),
		SMSSender: smsSender,
		Sessions:  sessions,
		Metrics:   m,
		Config: otp.Config{
			CodeLength:      cfg.OTP.CodeLength,
			TTL:             cfg.OTP.TTL,
			HashCost:        cfg.OTP.HashCost,
			MailFromName:    cfg.OTP.MailFromName,
			MailSubject:     cfg.OTP.MailSubject,
			DeliveryTimeout: cfg.MailTimeout,
		},
	})

	router, err := fanout.New(fanout.Options{
		QueueCapacity:     cfg.Router.QueueCapacity,
		SendTimeout:       cfg.Router.SendTimeout,
		EvictUnresponsive: cfg.Router.EvictUnresponsive,
		Logger:            slog.Default(),
		Metrics:           m,
	})
	if err != nil {
		return err
	}
	go func() {
		if err := router.Run(ctx); err != nil {
			slog.Error("fanout router failed", "err", err)
		}
	}()

	srv := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.AppPort),
		Handler: transporthttp.NewRouter(ctx, cfg, &transporthttp.Deps{
			OTP:      otpSvc,
			Sessions: sessions,
			Router:   router,
			Metrics:  m,
			Checks:   map[string]handler.Check{"code_store": storeCheck},
		}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "code_store", cfg.CodeStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		router.Close()
		<-router.Done()
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down")
	// Closing the router ends every open stream before the server drains.
	router.Close()
	<-router.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func newCodeStore(ctx context.Context, cfg *config.Config) (otp.CodeStore, handler.Check, error) {
	switch cfg.CodeStore {
	case config.CodeStoreDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		store := dynamo.NewCodeStore(client, cfg.DynamoTables.OTPCodes)
		return store, store.Ping, nil
	default:
		store := redisstore.NewCodeStore(redisstore.NewClient(cfg))
		if err := store.Ping(ctx); err != nil {
			slog.Warn("redis not reachable at startup", "addr", cfg.RedisAddr, "err", err)
		}
		return store, store.Ping, nil
	}
}
