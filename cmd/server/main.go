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

	"github.com/ardanlabs/conf/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/footy/internal/auth"
	"github.com/nikolayk812/footy/internal/cart"
	"github.com/nikolayk812/footy/internal/cartstore"
	"github.com/nikolayk812/footy/internal/config"
	"github.com/nikolayk812/footy/internal/httpapi"
	"github.com/nikolayk812/footy/internal/metrics"
	"github.com/nikolayk812/footy/internal/order"
	"github.com/nikolayk812/footy/internal/repository"
	"github.com/nikolayk812/footy/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if err := run(logger); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func run(logger *logrus.Logger) error {
	var cfg config.Config
	help, err := conf.Parse(config.Prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("conf.Parse: %w", err)
	}

	if err := configureLogger(logger, cfg.Log); err != nil {
		return err
	}

	logger.Info("starting server")
	defer logger.Info("shutdown complete")

	ctx := context.Background()

	if cfg.DB.Migrate {
		if err := repository.Migrate(cfg.DB.URL); err != nil {
			return fmt.Errorf("repository.Migrate: %w", err)
		}
		logger.Info("migrations applied")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DB.URL)
	if err != nil {
		return fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}
	poolCfg.MaxConns = cfg.DB.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}
	defer pool.Close()

	if err := ping(ctx, pool.Ping); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := ping(ctx, func(ctx context.Context) error { return rdb.Ping(ctx).Err() }); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	identity, err := auth.NewOIDC(ctx, cfg.Auth.Issuer, cfg.Auth.ClientID)
	if err != nil {
		return fmt.Errorf("auth.NewOIDC: %w", err)
	}

	sessions := session.NewManager(rdb, cfg.Web.SessionCookie, cfg.Web.SessionLifetime, cfg.Web.SecureCookie)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store := cartstore.NewRedisStore(rdb,
		cartstore.WithTTL(cfg.Cart.TTL),
		cartstore.WithMaxAttempts(cfg.Cart.MaxAttempts),
		cartstore.WithMetrics(m),
	)

	carts := cart.NewService(store, repository.NewCatalog(pool), logger.WithField("component", "cart"))

	orderLog := logger.WithField("component", "order")
	orders := order.NewService(
		repository.NewTransactor(pool, cfg.Order.TxTimeout, orderLog, m),
		repository.NewOrder(pool),
		repository.NewInventory(pool),
		store,
		orderLog,
		order.WithTxTimeout(cfg.Order.TxTimeout),
		order.WithNumberGenerator(order.NewNumberGenerator(cfg.Order.NumberPrefix, time.Now)),
		order.WithMetrics(m),
	)

	lw := logger.Writer()
	defer lw.Close()

	api := http.Server{
		Addr: cfg.Web.Address,
		Handler: httpapi.NewRouter(httpapi.Config{
			Log:            logger.WithField("component", "http"),
			Metrics:        m,
			Gatherer:       reg,
			Carts:          carts,
			Orders:         orders,
			Sessions:       sessions,
			Identity:       identity,
			RequestTimeout: cfg.Web.RequestTimeout,
			AdminToken:     cfg.Web.AdminToken,
		}),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     log.New(lw, "", 0),
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("listening on %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			_ = api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

func configureLogger(logger *logrus.Logger, cfg config.Log) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("logrus.ParseLevel: %w", err)
	}
	logger.SetLevel(level)

	if cfg.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return nil
}

func ping(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return fn(ctx)
}
