package app

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/order"
	"github.com/vladislavdragonenkov/shop/internal/service/product"
	"github.com/vladislavdragonenkov/shop/internal/transport/rest"
	"github.com/vladislavdragonenkov/shop/internal/version"
)

// Run поднимает хранилище, REST API, служебные gRPC и HTTP серверы и
// блокируется до отмены ctx или падения одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	api := newAPIServer(deps, logger)
	grpcServer, healthServer := newGRPCServer(logger)
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, newHealthHandler(deps, cfg))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(metricsSrv, logger)
		return err
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	var workers sync.WaitGroup
	if deps.worker != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			logger.Info("outbox worker запущен")
			deps.worker.Run(workerCtx)
		}()
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("gRPC сервер слушает %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()
	go func() {
		logger.Infof("REST API слушает %s", cfg.HTTPAddr)
		if err := api.Start(cfg.HTTPAddr); err != nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case runErr = <-errCh:
		logger.WithError(runErr).Error("сервер завершился с ошибкой")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("rest shutdown with error")
	}
	stopGRPC(grpcServer, healthServer, logger)
	shutdownHTTP(metricsSrv, logger)

	stopWorker()
	workers.Wait()

	return runErr
}

// newAPIServer связывает сервисы заказов и каталога с REST-транспортом.
func newAPIServer(deps *runtimeDependencies, logger *log.Entry) *rest.Server {
	opMetrics := metrics.NewOrderMetrics()

	orders := order.NewService(
		deps.store,
		order.WithLogger(logger.WithField("layer", "order")),
		order.WithMetrics(opMetrics),
		order.WithEvents(deps.eventsEnabled()),
	)
	products := product.NewService(deps.store.Products(), logger.WithField("layer", "product"), opMetrics)

	return rest.NewServer(
		orders,
		products,
		logger.WithField("layer", "rest"),
		metrics.NewHTTPMetricsWithRegisterer(prometheus.DefaultRegisterer),
	)
}

// newHealthHandler регистрирует проверки хранилища и outbox backlog.
func newHealthHandler(deps *runtimeDependencies, cfg Config) *healthcheck.Handler {
	handler := healthcheck.NewHandler(version.GetVersion())
	handler.Critical("storage", deps.ping)
	if cfg.OutboxMaxPending > 0 {
		handler.Optional("outbox", deps.outboxBacklog(cfg.OutboxMaxPending))
	}
	return handler
}
