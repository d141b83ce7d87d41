package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rl1809/grocery-store/internal/adapter/handler"
	"github.com/rl1809/grocery-store/internal/core/service"
	"github.com/rl1809/grocery-store/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and gRPC servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	if err := a.migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	engine, err := a.pricingEngine()
	if err != nil {
		return err
	}
	payments, err := a.paymentProvider()
	if err != nil {
		return err
	}

	observability.InstallPropagator()

	reg, metrics := newMetrics()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deps := a.deps(metrics)

	cart := service.NewCartService(a.store, a.store, engine, deps)
	orders := service.NewOrderService(a.store, a.cache, payments, engine, deps)
	services := handler.Services{
		Auth:      a.authService(deps),
		Catalog:   service.NewCatalogService(a.store, a.store, deps),
		Inventory: service.NewInventoryService(a.store, deps),
		Cart:      cart,
		Coupons:   service.NewCouponService(a.store, cart, deps),
		Orders:    orders,
		Reviews:   service.NewReviewService(a.store, a.store, a.store, deps),
		Search:    service.NewSearchService(a.store, a.store, deps),
		Analytics: service.NewAnalyticsService(a.store, deps),
	}

	limits := a.cfg.RateLimits
	httpHandler := handler.NewHTTPHandler(services, a.cache, handler.HTTPConfig{
		CookieName:     a.cfg.Session.CookieName,
		SecureCookie:   a.cfg.Session.Secure,
		Register:       handler.RateLimit(limits.Register),
		Login:          handler.RateLimit(limits.Login),
		ForgotPassword: handler.RateLimit(limits.ForgotPassword),
		TrustedProxies: a.cfg.Server.TrustedProxies,
	}, logger, metrics)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", httpHandler.Router())

	httpServer := &http.Server{
		Addr:              a.cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	grpcServer := handler.NewGRPCServer(handler.NewGRPCHandler(orders), a.cfg.Server.GRPCSecret, logger)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http_listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if addr := a.cfg.Server.GRPCAddr; addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		if a.cfg.Server.GRPCSecret == "" {
			logger.Warn("grpc_secret_missing", zap.String("addr", addr))
		}
		go func() {
			logger.Info("grpc_listening", zap.String("addr", addr))
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown_started")
	case err := <-errCh:
		logger.Error("server_failed", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", zap.Error(err))
	}
	grpcServer.GracefulStop()
	logger.Info("shutdown_complete")
	return nil
}
