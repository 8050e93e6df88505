// Command romcv cross-validates reduced-order surrogate models.
//
// In build mode romcv partitions a job's simulation records into contiguous
// folds, has the selected regression backend fit each fold's training set and
// predict its held-out records, reassembles the predictions in original order
// and reports per-output error statistics:
//
//	<dir>/crossValidate/{rom.in.i, results.i, test.i, test.out.i}
//	<dir>/<Method>/{errors, relative_errors, predicted_results}
//
// In export mode the Kriging executable is run over the full dataset to
// produce <dir>/Kriging.co and <dir>/Kriging.acmf.
//
// With -serve the process keeps running after the run and serves:
//   - GET /report/current?method=<name> - latest report
//   - GET /healthz - health check
//   - GET /metrics - Prometheus metrics endpoint
//   - gRPC health service, SERVING once a report exists
//
// Usage:
//
//	romcv -dir=/jobs/run1 -method=Kriging -path=/opt/rom/kriging
//	romcv -dir=/jobs/run1 -method=Quadratic -plots
//	romcv -dir=/jobs/run1 -mode=export -path=/opt/rom/kriging
//
// Environment variables:
//
//	ROM_DIR        - Job directory (default: .)
//	MODE           - build or export (default: build)
//	METHOD         - Regression method (default: Kriging)
//	REG_PATH       - Regression executable of the selected method
//	FOLD_FRACTION  - Share of records held out per fold (default: 0.2)
//	TOLERANCE      - Zero tolerance of reference values (default: 1e-6)
//	CONFIG_FILE    - YAML run file
//	STORAGE        - memory or redis (default: memory)
//	REPORT_TTL     - In-memory report expiry, 0 keeps reports (default: 0)
//	LOG_LEVEL      - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT     - Logging format: text, json (default: text)
//
// Exit status is 2 for configuration errors and 1 for any other failure.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/HatiCode/romcv/cmd/romcv/backends"
	"github.com/HatiCode/romcv/cmd/romcv/config"
	"github.com/HatiCode/romcv/cmd/romcv/logger"
	"github.com/HatiCode/romcv/cmd/romcv/metrics"
	"github.com/HatiCode/romcv/cmd/romcv/router"
	"github.com/HatiCode/romcv/pkg/compress"
	"github.com/HatiCode/romcv/pkg/dataset"
	"github.com/HatiCode/romcv/pkg/errstats"
	"github.com/HatiCode/romcv/pkg/httpx"
	"github.com/HatiCode/romcv/pkg/partition"
	"github.com/HatiCode/romcv/pkg/romerr"
	"github.com/HatiCode/romcv/pkg/storage"
	romtls "github.com/HatiCode/romcv/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

// healthService is the gRPC health service name of a romcv process.
const healthService = "romcv"

func main() {
	cfg := config.ParseFlags()

	log := logger.New(cfg)
	slog.SetDefault(log)

	log.Info("starting romcv",
		"version", version,
		"mode", cfg.Mode,
		"method", cfg.Method.String(),
		"dir", cfg.Dir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("romcv failed", "error", err, "kind", romerr.Kind(err))
		if errors.Is(err, romerr.ErrInvalidConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	var rf *config.RunFile
	if cfg.ConfigFile != "" {
		var err error
		if rf, err = config.LoadRunFile(cfg.ConfigFile); err != nil {
			return err
		}
	}

	ds, err := dataset.Load(cfg.Input, cfg.Results, rf.Metadata())
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	if cfg.Mode == config.ModeExport {
		backend, err := backends.Exporter(cfg, rf, log)
		if err != nil {
			return err
		}
		_, err = Export(ctx, backend, cfg.Method, cfg.Dir, ds, log)
		return err
	}

	store, closeStore, err := newStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	dispatcher, err := backends.New(cfg, rf, log)
	if err != nil {
		return err
	}
	planner, err := partition.New(cfg.FoldFraction)
	if err != nil {
		return err
	}
	aggregator, err := errstats.New(cfg.Tolerance)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer, cfg.Method.String())
	v, err := NewValidator(cfg.Dir, cfg.Method, planner, dispatcher, aggregator, store, cfg.Plots, log, m)
	if err != nil {
		return err
	}

	if !cfg.Serve {
		_, err := v.Run(ctx, ds)
		return err
	}

	srv, err := startServing(ctx, cfg, store, log)
	if err != nil {
		return err
	}
	defer srv.shutdown(log)

	if _, err := v.Run(ctx, ds); err != nil {
		return err
	}
	srv.setServing()

	log.Info("serving report until signaled", "listen", cfg.Listen, "grpc_listen", cfg.GRPCListen)
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-srv.errs:
		return err
	}
	return nil
}

// newStore returns the configured report store and its close function.
func newStore(cfg *config.Config, log *slog.Logger) (storage.Store, func(), error) {
	switch cfg.Storage {
	case "redis":
		typ, err := compress.ParseType(cfg.RedisCodec)
		if err != nil {
			return nil, nil, romerr.Configf("redis-codec: %v", err)
		}
		codec, err := compress.CreateCodec(typ)
		if err != nil {
			return nil, nil, romerr.Configf("redis-codec: %v", err)
		}
		store, err := storage.NewRedisStore(storage.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.RedisTTL,
			Codec:    codec,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info("using redis report storage", "addr", cfg.RedisAddr, "codec", typ)
		return store, func() {
			if err := store.Close(); err != nil {
				log.Error("failed to close store", "error", err)
			}
		}, nil
	default:
		if cfg.ReportTTL > 0 {
			store := storage.NewMemoryStoreWithTTL(cfg.ReportTTL, cfg.ReportTTL/2)
			log.Info("using in-memory report storage", "ttl", cfg.ReportTTL)
			return store, store.Stop, nil
		}
		log.Info("using in-memory report storage")
		return storage.NewMemoryStore(), func() {}, nil
	}
}

type servers struct {
	http   *httpx.Server
	grpc   *grpc.Server
	health *health.Server
	ready  chan struct{}
	errs   chan error
}

// startServing starts the HTTP and gRPC servers. Health reports NOT_SERVING
// until setServing is called.
func startServing(ctx context.Context, cfg *config.Config, store storage.Store, log *slog.Logger) (*servers, error) {
	s := &servers{
		ready: make(chan struct{}),
		errs:  make(chan error, 2),
	}

	ready := func() error {
		select {
		case <-s.ready:
			return nil
		default:
			return errors.New("cross-validation run in progress")
		}
	}
	s.http = httpx.NewServer(cfg.Listen, router.SetupRoutes(store, ready, prometheus.DefaultGatherer, log), log)
	if cfg.TLS.Enabled {
		tlsConfig, err := romtls.NewServerTLSConfig(cfg.TLS)
		if err != nil {
			return nil, romerr.Configf("tls: %v", err)
		}
		s.http.SetTLSConfig(tlsConfig)
	}
	go func() {
		if err := s.http.Start(); err != nil {
			s.errs <- err
		}
	}()

	if cfg.GRPCListen != "" {
		var lc net.ListenConfig
		lis, err := lc.Listen(ctx, "tcp", cfg.GRPCListen)
		if err != nil {
			if stopErr := s.http.Stop(time.Second); stopErr != nil {
				log.Error("server shutdown failed", "error", stopErr)
			}
			return nil, fmt.Errorf("listen %s: %w", cfg.GRPCListen, err)
		}
		s.grpc = grpc.NewServer()
		s.health = health.NewServer()
		grpc_health_v1.RegisterHealthServer(s.grpc, s.health)
		s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		s.health.SetServingStatus(healthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		reflection.Register(s.grpc)

		go func() {
			log.Info("grpc server listening", "address", cfg.GRPCListen)
			if err := s.grpc.Serve(lis); err != nil {
				s.errs <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}
	return s, nil
}

func (s *servers) setServing() {
	close(s.ready)
	if s.health != nil {
		s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		s.health.SetServingStatus(healthService, grpc_health_v1.HealthCheckResponse_SERVING)
	}
}

func (s *servers) shutdown(log *slog.Logger) {
	if s.grpc != nil {
		s.health.Shutdown()
		log.Info("shutting down grpc server")
		s.grpc.GracefulStop()
	}
	if err := s.http.Stop(10 * time.Second); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
}
