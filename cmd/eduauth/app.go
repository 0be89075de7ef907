package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/MrEthical07/eduAuth/audit/kafka"
	"github.com/MrEthical07/eduAuth/httpapi"
	"github.com/MrEthical07/eduAuth/internal"
	"github.com/MrEthical07/eduAuth/internal/appconfig"
	"github.com/MrEthical07/eduAuth/metrics/export/prometheus"
	"github.com/MrEthical07/eduAuth/notify/logmail"
	"github.com/MrEthical07/eduAuth/notify/sendgrid"
	"github.com/MrEthical07/eduAuth/store/memstore"
	"github.com/MrEthical07/eduAuth/store/mongostore"
	"github.com/MrEthical07/eduAuth/store/pgstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type app struct {
	cfg     *appconfig.App
	log     *zap.Logger
	redis   redis.UniversalClient
	engine  *eduAuth.Engine
	handler http.Handler
	closers []func()
}

// newApp wires every backend named by cfg. In dev mode Redis runs in-process,
// users live in memory and an empty access secret is replaced with a random
// one.
func newApp(ctx context.Context, cfg *appconfig.App, log *zap.Logger, dev bool) (*app, error) {
	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if dev {
		cfg.Store.Driver = "memory"
		if cfg.Auth.AccessSecret == "" {
			secret, err := internal.NewRefreshToken(64)
			if err != nil {
				return nil, fmt.Errorf("generate dev secret: %w", err)
			}
			cfg.Auth.AccessSecret = secret
			log.Warn("using a random access secret; tokens will not survive a restart")
		}
	}

	client, closeRedis, err := openRedis(cfg, dev)
	if err != nil {
		return nil, err
	}
	a.redis = client
	a.closers = append(a.closers, closeRedis)

	users, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	sink, closeSink, err := openAuditSink(cfg, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeSink)

	engine, err := eduAuth.New().
		WithConfig(cfg.EngineConfig()).
		WithRedis(client).
		WithUserStore(users).
		WithMailer(newMailer(cfg, log)).
		WithAuditSink(sink).
		WithLogger(log).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	a.engine = engine
	// Engine.Close drains audit events, so it must run before the sink closes.
	a.closers = append(a.closers, engine.Close)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	a.handler = httpapi.NewRouter(httpapi.Options{
		Engine:           engine,
		Logger:           log,
		SecureCookies:    cfg.IsProduction(),
		RefreshTransport: httpapi.RefreshTransport(cfg.HTTP.RefreshTransport),
		Metrics:          prometheus.NewPrometheusExporter(engine).Handler(),
		Health: func(c *gin.Context) error {
			return client.Ping(c.Request.Context()).Err()
		},
	})

	ok = true
	return a, nil
}

// Close releases backends in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Serve blocks until ctx is cancelled, then drains in-flight requests.
func (a *app) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         a.cfg.HTTP.Addr(),
		Handler:      a.handler,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", a.cfg.Env),
			zap.String("store", a.cfg.Store.Driver),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openRedis(cfg *appconfig.App, dev bool) (redis.UniversalClient, func(), error) {
	if dev {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return client, func() { _ = client.Close() }, nil
}

// openStore connects the configured user store and brings its schema up.
func openStore(ctx context.Context, cfg *appconfig.App, log *zap.Logger) (eduAuth.UserStore, func(), error) {
	switch strings.ToLower(cfg.Store.Driver) {
	case "memory":
		log.Warn("using the in-memory user store")
		return memstore.New(), func() {}, nil

	case "mongo", "mongodb":
		client, err := mongostore.Connect(ctx, cfg.Store.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }
		store := mongostore.New(client.Database(cfg.Store.MongoDatabase))
		if err := store.EnsureIndexes(ctx); err != nil {
			closeFn()
			return nil, nil, err
		}
		log.Info("mongo connected", zap.String("database", cfg.Store.MongoDatabase))
		return store, closeFn, nil

	case "postgres", "postgresql":
		db, err := pgstore.Open(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { _ = db.Close() }
		if err := pgstore.Migrate(ctx, db); err != nil {
			closeFn()
			return nil, nil, err
		}
		log.Info("postgres connected")
		return pgstore.New(db), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newMailer(cfg *appconfig.App, log *zap.Logger) eduAuth.Mailer {
	if cfg.SendGrid.APIKey == "" {
		log.Warn("sendgrid api key not set; OTP emails are logged instead of sent")
		return logmail.New(log)
	}
	m, err := sendgrid.New(sendgrid.Config{
		APIKey:      cfg.SendGrid.APIKey,
		From:        cfg.SendGrid.From,
		FromName:    cfg.SendGrid.FromName,
		OTPValidity: cfg.Auth.OTPTTL,
	}, log)
	if err != nil {
		log.Warn("sendgrid unavailable; falling back to log mailer", zap.Error(err))
		return logmail.New(log)
	}
	return m
}

func openAuditSink(cfg *appconfig.App, log *zap.Logger) (eduAuth.AuditSink, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return eduAuth.NewLoggerSink(log), func() {}, nil
	}
	sink, err := kafka.New(kafka.Config{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.Topic,
		ClientID: cfg.Kafka.ClientID,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	return eduAuth.MultiSink{sink, eduAuth.NewLoggerSink(log)}, func() {
		if err := sink.Close(); err != nil {
			log.Warn("close kafka producer", zap.Error(err))
		}
	}, nil
}
