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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Leganyst/booking-matcher/internal/assignment"
	"github.com/Leganyst/booking-matcher/internal/config"
	"github.com/Leganyst/booking-matcher/internal/db"
	"github.com/Leganyst/booking-matcher/internal/events"
	"github.com/Leganyst/booking-matcher/internal/lock"
	"github.com/Leganyst/booking-matcher/internal/logger"
	"github.com/Leganyst/booking-matcher/internal/matching"
	"github.com/Leganyst/booking-matcher/internal/metrics"
	"github.com/Leganyst/booking-matcher/internal/model"
	"github.com/Leganyst/booking-matcher/internal/ops"
	"github.com/Leganyst/booking-matcher/internal/repository"
	"github.com/Leganyst/booking-matcher/internal/service"
	"github.com/Leganyst/booking-matcher/internal/worker"
)

const (
	lockPrefix      = "booking-matcher:lock:"
	sweepLockKey    = "booking-matcher:lock:offer-sweep"
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "booking-matcher: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Конфиг и логгер.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: cfg.App.ServiceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		Output:      os.Stdout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. БД и миграции.
	gormDB, err := db.NewGormDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("sql DB: %w", err)
	}
	defer sqlDB.Close()

	checks := map[string]ops.Pinger{"db": ops.PingFunc(sqlDB.PingContext)}

	loc, err := cfg.Matching.Location()
	if err != nil {
		return fmt.Errorf("matching timezone: %w", err)
	}

	// 3. Метрики.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	matchingMetrics := metrics.NewMatching(reg)
	jobMetrics := metrics.NewJobs(reg)

	// 4. Блокировки: внутри процесса всегда, между экземплярами: если есть Redis.
	var (
		locker    lock.Locker = lock.NewKeyedMutex()
		sweepLock lock.Mutex  = &lock.LocalMutex{}
	)
	if cfg.Redis.Enabled() {
		store, err := lock.NewGoRedisStoreFromURL(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		defer store.Close()

		redisLocker, err := lock.NewRedisLocker(store, lockPrefix, cfg.Redis.LockTTL)
		if err != nil {
			return err
		}
		locker = lock.Chain{locker, redisLocker}
		if sweepLock, err = lock.NewRedisMutex(store, sweepLockKey, cfg.Redis.LockTTL); err != nil {
			return err
		}
		checks["redis"] = store
		logg.Info(ctx, "redis locks enabled")
	}

	// 5. Исходящие события и эскроу.
	var (
		notifier events.Notifier = events.NewLogNotifier(logg)
		escrow   events.Escrow   = events.NewLogEscrow(logg)
	)
	if cfg.AMQP.Enabled() {
		pub, err := events.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return fmt.Errorf("init publisher: %w", err)
		}
		defer pub.Close()
		notifier = events.NewBrokerNotifier(pub, logg)
		escrow = events.NewBrokerEscrow(pub)
	}

	// 6. Подбор и координатор.
	repos := repository.NewSet(gormDB)
	finder := matching.NewCandidateFinder(matching.FinderParams{
		Services:     repos.Services,
		Freelancers:  repos.Freelancers,
		Availability: matching.NewAvailabilityIndex(repos.Availabilities),
		Conflicts:    matching.NewConflictChecker(repos.Bookings),
		Logger:       logg,
		Metrics:      matchingMetrics,
	})
	coord, err := assignment.NewCoordinator(assignment.Params{
		DB:               gormDB,
		Finder:           finder,
		Locker:           locker,
		Notifier:         notifier,
		Escrow:           escrow,
		Logger:           logg,
		Metrics:          matchingMetrics,
		DefaultLocation:  loc,
		OfferTTL:         cfg.Matching.OfferTTL,
		MaxOfferAttempts: cfg.Matching.MaxOfferAttempts,
	})
	if err != nil {
		return fmt.Errorf("init coordinator: %w", err)
	}

	sweeper, err := worker.NewService(worker.ServiceParams{
		Logger:   logg,
		Registry: worker.NewRegistry(assignment.NewSweepJob(coord)),
		Lock:     sweepLock,
		Metrics:  jobMetrics,
		Interval: cfg.Matching.SweepInterval,
	})
	if err != nil {
		return fmt.Errorf("init sweep worker: %w", err)
	}

	// 7. gRPC и служебный HTTP.
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(service.LoggingInterceptor(logg)))
	service.RegisterMatchingServiceServer(grpcServer, service.NewMatchingService(service.MatchingServiceParams{
		Coordinator:     coord,
		Finder:          finder,
		Logger:          logg,
		DefaultLocation: loc,
	}))
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(service.MatchingServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.App.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.App.GRPCAddr, err)
	}
	opsServer := &http.Server{
		Addr:              cfg.App.OpsHTTPAddr,
		Handler:           ops.NewRouter(ops.RouterParams{Logger: logg, Gatherer: reg, Checks: checks}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(logg.WithField(gctx, "addr", cfg.App.GRPCAddr), "grpc server listening")
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logg.Info(logg.WithField(gctx, "addr", cfg.App.OpsHTTPAddr), "ops http listening")
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return ignoreCanceled(sweeper.Run(gctx))
	})
	if cfg.AMQP.Enabled() {
		consumer, err := events.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.MatchQueue, []string{events.KeyMatchRequested})
		if err != nil {
			return fmt.Errorf("init consumer: %w", err)
		}
		defer consumer.Close()
		deliveries, err := consumer.Deliveries(gctx)
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.AMQP.MatchQueue, err)
		}
		listener := service.NewMatchListener(coord, logg)
		g.Go(func() error {
			return ignoreCanceled(listener.Run(gctx, deliveries))
		})
	}

	// 8. Грейсфул-шатдаун: по сигналу или при падении любого из компонентов.
	g.Go(func() error {
		<-gctx.Done()
		logg.Info(context.Background(), "shutting down")
		healthSrv.Shutdown()
		grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return opsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logg.Error(context.Background(), "service stopped with error", err)
		return err
	}
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
