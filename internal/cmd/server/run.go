package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	cfgpkg "github.com/rzbill/tide/internal/config"
	"github.com/rzbill/tide/internal/monitor/prom"
	"github.com/rzbill/tide/internal/runtime"
	httpserver "github.com/rzbill/tide/internal/server/http"
	logpkg "github.com/rzbill/tide/pkg/log"
)

// Options configures a server run.
type Options struct {
	DataDir string
	Config  cfgpkg.Config
}

// Run starts the runtime and HTTP server and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	// Be robust to callers that don't pass a signal-aware context; layer a
	// local signal context over the provided one.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	storeDir := filepath.Join(opts.DataDir, "store")

	logger, err := buildLogger(opts.Config.Log)
	if err != nil {
		return err
	}

	mon := prom.New(prometheus.DefaultRegisterer, "tide")
	rt, err := runtime.Open(runtime.Options{
		DataDir: storeDir,
		Config:  opts.Config,
		Logger:  logger,
		Monitor: mon,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("starting tide server",
		logpkg.Str("http", opts.Config.HTTPAddr),
		logpkg.Str("data_dir", storeDir),
		logpkg.Str("fsync", opts.Config.Fsync),
		logpkg.Int("cached_events", opts.Config.Store.CachedEvents),
	)

	hsrv := httpserver.New(rt, logger)
	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error {
		if err := hsrv.ListenAndServe(gctx, opts.Config.HTTPAddr); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		hsrv.Close()
		return nil
	})
	return g.Wait()
}

func buildLogger(cfg cfgpkg.LogConfig) (logpkg.Logger, error) {
	level, err := logpkg.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format, err := logpkg.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	return logpkg.NewLogger(logpkg.WithLevel(level), logpkg.WithFormat(format)), nil
}
