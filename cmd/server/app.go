package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/grocery-store/internal/adapter/notify"
	"github.com/rl1809/grocery-store/internal/adapter/payment"
	"github.com/rl1809/grocery-store/internal/adapter/storage"
	"github.com/rl1809/grocery-store/internal/adapter/storage/memory"
	"github.com/rl1809/grocery-store/internal/config"
	"github.com/rl1809/grocery-store/internal/core/pricing"
	"github.com/rl1809/grocery-store/internal/core/service"
	"github.com/rl1809/grocery-store/internal/observability"
	"github.com/rl1809/grocery-store/internal/port"
)

// app holds the wired dependencies shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   port.Store
	cache   port.CacheRepository
	session port.SessionStore

	db  *sql.DB
	rdb *redis.Client
}

func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := observability.NewLogger(cfg.ServiceName, cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	a := &app{cfg: cfg, logger: logger}
	if cfg.Store.Driver == "memory" {
		mem := memory.New()
		a.store, a.cache, a.session = mem, mem, mem
		logger.Warn("using in-memory store, data is lost on exit")
		return a, nil
	}

	if err := a.openMySQL(ctx); err != nil {
		return nil, err
	}
	if err := a.openRedis(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) openMySQL(ctx context.Context) error {
	db, err := sql.Open("mysql", a.cfg.MySQL.DSN)
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(a.cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(a.cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(a.cfg.MySQL.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return fmt.Errorf("ping mysql: %w", err)
	}
	a.logger.Info("connected_mysql")
	a.db = db
	a.store = storage.NewMySQLAdapter(db)
	return nil
}

func (a *app) openRedis(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
		PoolSize: a.cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return fmt.Errorf("ping redis: %w", err)
	}
	a.logger.Info("connected_redis", zap.String("addr", a.cfg.Redis.Addr))
	a.rdb = rdb
	adapter := storage.NewRedisAdapter(rdb)
	a.cache, a.session = adapter, adapter
	return nil
}

func (a *app) close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	_ = a.logger.Sync()
}

func (a *app) migrate(ctx context.Context) error {
	m, ok := a.store.(interface{ Migrate(context.Context) error })
	if !ok {
		return nil
	}
	return m.Migrate(ctx)
}

func (a *app) pricingEngine() (pricing.Engine, error) {
	var e pricing.Engine
	var errs []error
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"pricing.tax_rate", a.cfg.Pricing.TaxRate, &e.TaxRate},
		{"pricing.delivery_fee", a.cfg.Pricing.DeliveryFee, &e.DeliveryFee},
		{"pricing.free_delivery_threshold", a.cfg.Pricing.FreeDeliveryThreshold, &e.FreeDeliveryThreshold},
	} {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
			continue
		}
		*f.dst = d
	}
	return e, errors.Join(errs...)
}

func (a *app) paymentProvider() (port.PaymentProvider, error) {
	pc := a.cfg.Payment
	if pc.Driver == "http" {
		return payment.NewHTTPProvider(payment.HTTPConfig{
			Endpoint:  pc.Endpoint,
			SecretKey: pc.SecretKey,
			Currency:  pc.Currency,
			Timeout:   pc.Timeout,
		}), nil
	}
	var ceiling decimal.NullDecimal
	if pc.DeclineAbove != "" {
		d, err := decimal.NewFromString(pc.DeclineAbove)
		if err != nil {
			return nil, fmt.Errorf("payment.decline_above: %w", err)
		}
		ceiling = decimal.NewNullDecimal(d)
	}
	return payment.NewSandbox(ceiling), nil
}

func (a *app) notifier() port.Notifier {
	mc := a.cfg.Mail
	if mc.Driver == "smtp" {
		return notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     mc.Host,
			Port:     mc.Port,
			Username: mc.Username,
			Password: mc.Password,
			Sender:   mc.Sender,
		})
	}
	return notify.NewLogNotifier(a.logger)
}

func (a *app) deps(metrics *observability.Metrics) service.Deps {
	return service.Deps{
		Logger:     a.logger,
		Metrics:    metrics,
		Notifier:   a.notifier(),
		AdminEmail: a.cfg.AdminEmail,
	}
}

func (a *app) authService(deps service.Deps) *service.AuthService {
	return service.NewAuthService(a.store, a.session, service.AuthConfig{
		SessionTTL: a.cfg.Session.TTL,
		BaseURL:    a.cfg.Mail.BaseURL,
	}, deps)
}

func newMetrics() (*prometheus.Registry, *observability.Metrics) {
	reg := prometheus.NewRegistry()
	return reg, observability.NewMetrics(reg)
}
