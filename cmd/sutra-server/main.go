// Command sutra-server runs the concurrent knowledge-graph storage
// engine as a standalone TCP/HTTP service: one namespace.Manager behind
// the binary and text wire protocols, plus a websocket snapshot feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dc0d/onexit"
	"go.uber.org/zap"

	"github.com/sutra-engine/sutra-storage/audit"
	"github.com/sutra-engine/sutra-storage/config"
	"github.com/sutra-engine/sutra-storage/namespace"
	"github.com/sutra-engine/sutra-storage/pipeline"
	"github.com/sutra-engine/sutra-storage/reconciler"
	"github.com/sutra-engine/sutra-storage/server"
	"github.com/sutra-engine/sutra-storage/snapshot"
	"github.com/sutra-engine/sutra-storage/sterr"
	"github.com/sutra-engine/sutra-storage/storagefile"
	"github.com/sutra-engine/sutra-storage/writelog"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file; defaults are used if empty")
	watchAddr := flag.String("watch-addr", "", "address for the /watch websocket endpoint; disabled if empty")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatal("failed to load config", zap.Error(err))
		}
	}

	auditSink := buildAuditSink(cfg, logger)
	defer func() {
		if auditSink != nil {
			auditSink.Close()
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mgr := namespace.NewFull(ctx, namespace.Config{
		BasePath:           cfg.StoragePath,
		ReconcileInterval:  cfg.Interval(),
		MaxBatchSize:       cfg.MaxBatchSize,
		DiskFlushThreshold: cfg.MemoryThreshold,
		VectorDimension:    cfg.VectorDimension,
	}, buildPersistFunc(cfg, logger), buildAuditFunc(auditSink), buildLoadFunc(logger), logger)

	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, cfg, logger)
		if err != nil {
			logger.Warn("config hot-reload disabled", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	embedClient := pipeline.NewHTTPEmbeddingClient(cfg.Embedding, logger)
	pipe := pipeline.New(embedClient, logger)

	srv := server.New(mgr, pipe, logger)

	onexit.Register(func() {
		mgr.FlushAll()
		mgr.StopAll()
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, cfg.BindAddress)
	}()

	var watchSrv *http.Server
	if *watchAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/watch", srv.WatchHandler())
		watchSrv = &http.Server{Addr: *watchAddr, Handler: mux}
		go func() {
			if err := watchSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("watch server failed", zap.Error(err))
			}
		}()
		logger.Info("watch endpoint listening", zap.String("addr", *watchAddr))
	}

	logger.Info("sutra-server started",
		zap.String("bind_address", cfg.BindAddress),
		zap.String("storage_path", cfg.StoragePath),
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("listener exited", zap.Error(err))
		}
	}

	if watchSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		watchSrv.Shutdown(shutdownCtx)
		shutdownCancel()
	}

	mgr.FlushAll()
	mgr.StopAll()
}

// buildPersistFunc wires each namespace's reconciler to a local
// FileBackend, mirrored to S3 when cfg.Mirror is enabled.
func buildPersistFunc(cfg config.Config, logger *zap.Logger) namespace.PersistFunc {
	return func(ns string, basePath string) reconciler.FlushFunc {
		file := storagefile.NewFileBackend(basePath)

		var mirror *storagefile.S3Backend
		if cfg.Mirror.Enabled {
			mirror = storagefile.NewS3Backend(storagefile.S3Config{
				AccessKeyID:     cfg.Mirror.AccessKeyID,
				SecretAccessKey: cfg.Mirror.SecretAccessKey,
				Region:          cfg.Mirror.Region,
				Endpoint:        cfg.Mirror.Endpoint,
				Bucket:          cfg.Mirror.Bucket,
				Prefix:          cfg.Mirror.Prefix,
				ForcePathStyle:  cfg.Mirror.ForcePathStyle,
			}, ns)
		}

		return func(snap *snapshot.GraphSnapshot) error {
			data, err := storagefile.Encode(snap)
			if err != nil {
				return err
			}
			if err := file.WriteAtomic(data); err != nil {
				return err
			}
			if mirror != nil {
				if err := mirror.WriteAtomic(data); err != nil {
					logger.Warn("s3 mirror write failed", zap.String("namespace", ns), zap.Error(err))
				}
			}
			return nil
		}
	}
}

// buildLoadFunc wires each namespace's first Get to the same local
// FileBackend buildPersistFunc writes to, so a restarted process
// resumes from its last persisted storage.dat instead of starting
// empty. A namespace with no storage.dat yet (fresh namespace) yields
// a nil snapshot, not an error.
func buildLoadFunc(logger *zap.Logger) namespace.LoadFunc {
	return func(ns string, basePath string) (*snapshot.GraphSnapshot, error) {
		file := storagefile.NewFileBackend(basePath)
		data, err := file.ReadFull()
		if err != nil {
			if sterr.KindOf(err) == sterr.NotFound {
				return nil, nil
			}
			return nil, err
		}
		snap, err := storagefile.Decode(data)
		if err != nil {
			return nil, err
		}
		logger.Info("namespace snapshot loaded", zap.String("namespace", ns), zap.Int("concepts", snap.ConceptCount))
		return snap, nil
	}
}

// buildAuditSink constructs the relational fan-out sink configured in
// cfg.Audit; it returns nil (audit disabled) when no sink is enabled.
func buildAuditSink(cfg config.Config, logger *zap.Logger) *audit.MultiSink {
	var sinks []audit.Sink

	if cfg.Audit.Postgres.Enabled {
		sink, err := audit.NewPostgresSink(cfg.Audit.Postgres.DSN, cfg.Audit.Postgres.Table)
		if err != nil {
			logger.Error("postgres audit sink disabled", zap.Error(err))
		} else {
			sinks = append(sinks, sink)
		}
	}
	if cfg.Audit.MySQL.Enabled {
		sink, err := audit.NewMySQLSink(cfg.Audit.MySQL.DSN, cfg.Audit.MySQL.Table)
		if err != nil {
			logger.Error("mysql audit sink disabled", zap.Error(err))
		} else {
			sinks = append(sinks, sink)
		}
	}

	if len(sinks) == 0 {
		return nil
	}
	return audit.NewMultiSink(sinks...)
}

// buildAuditFunc adapts a best-effort audit sink into the per-namespace
// factory namespace.Manager expects; it returns nil when sink is nil,
// which disables auditing entirely.
func buildAuditFunc(sink *audit.MultiSink) namespace.AuditFunc {
	if sink == nil {
		return nil
	}
	return func(ns string, basePath string) reconciler.AuditFunc {
		return func(e writelog.Entry) error {
			return sink.Write(context.Background(), audit.RecordFromEntry(ns, e, time.Now()))
		}
	}
}
