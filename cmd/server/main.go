package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gyaneshwarpardhi/atmsvr/internal/alert"
	"github.com/gyaneshwarpardhi/atmsvr/internal/api"
	"github.com/gyaneshwarpardhi/atmsvr/internal/bitacora"
	"github.com/gyaneshwarpardhi/atmsvr/internal/config"
	"github.com/gyaneshwarpardhi/atmsvr/internal/engine"
	"github.com/gyaneshwarpardhi/atmsvr/internal/exitcode"
	"github.com/gyaneshwarpardhi/atmsvr/internal/listener"
	"github.com/gyaneshwarpardhi/atmsvr/internal/telemetry"
)

type options struct {
	port        string
	bitacora    string
	configPath  string
	bind        []string
	metricsAddr string
	storePath   string
	logLevel    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		slog.Error("server terminated", "err", err)
	}
	stop()
	os.Exit(exitcode.FromError(err))
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "server -l port -b bitacora [-c config]",
		Short: "Collect ATM events into a bitácora and raise alerts",
		Long: `Accept ATM event connections on the given port, append every valid
event to the bitácora file and alert on the event types listed in the
config file.

The config file is either YAML (.yaml/.yml) or the plain token format:
the recipient address followed by alertable type codes.

Example:
  server -l 9000 -b /var/log/svr.log
  server -l 9000 -b /var/log/svr.log -c /etc/svr.conf --metrics-addr :9090`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: unexpected arguments %v", exitcode.ErrUsage, args)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				_ = cmd.Usage()
				return err
			}
			telemetry.Init(telemetry.ParseLevel(opts.logLevel), os.Stderr)
			return run(cmd.Context(), opts)
		},
	}
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		_ = cmd.Usage()
		return fmt.Errorf("%w: %w", exitcode.ErrUsage, err)
	})

	f := cmd.Flags()
	f.StringVarP(&opts.port, "port", "l", "", "TCP port to listen on (required)")
	f.StringVarP(&opts.bitacora, "bitacora", "b", "", "bitácora file to append events to (required)")
	f.StringVarP(&opts.configPath, "config", "c", "", "alert config file")
	f.StringSliceVar(&opts.bind, "bind", listener.DefaultHosts, "hosts to listen on")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "operations HTTP address, disabled when empty")
	f.StringVar(&opts.storePath, "store", "", "SQLite database mirroring the bitácora")
	f.StringVar(&opts.logLevel, "log-level", envOr("SVR_LOG_LEVEL", "info"), "debug, info, warn or error")
	return cmd
}

func (o *options) validate() error {
	if o.port == "" || o.bitacora == "" {
		return fmt.Errorf("%w: -l and -b are required", exitcode.ErrUsage)
	}
	if p, err := strconv.Atoi(o.port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("%w: invalid port %q", exitcode.ErrUsage, o.port)
	}
	if len(o.bind) == 0 {
		return fmt.Errorf("%w: --bind needs at least one host", exitcode.ErrUsage)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(ctx context.Context, opts *options) error {
	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(opts.configPath)
	if err != nil {
		return err
	}
	cfg := loader.Config()

	// ── Bitácora ─────────────────────────────────────────────────────────────
	log, err := bitacora.Open(opts.bitacora)
	if err != nil {
		return err
	}
	defer log.Close()

	var recorder bitacora.Recorder = log
	var history api.History
	if opts.storePath != "" {
		store, err := bitacora.OpenStore(opts.storePath)
		if err != nil {
			return fmt.Errorf("%w: %w", bitacora.ErrWrite, err)
		}
		defer store.Close()
		recorder = bitacora.Multi{log, store}
		history = store
	}

	// ── Alert channels ───────────────────────────────────────────────────────
	alerts, err := alert.FromConfig(cfg.Alert)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfig, err)
	}
	slog.Info("alert set loaded", "types", len(cfg.Alert.Types), "channels", cfg.Alert.Channels, "recipient", cfg.Alert.Recipient)

	// ── Hot-reload watcher ───────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.ServerConfig) {
		if err := alerts.Apply(newCfg.Alert); err != nil {
			slog.Warn("alert reload failed, keeping previous channels", "err", err)
			return
		}
		slog.Info("alert set reloaded", "types", len(newCfg.Alert.Types), "channels", newCfg.Alert.Channels, "recipient", newCfg.Alert.Recipient)
	})
	if loader.Path() != "" {
		stopWatch, err := loader.Watch()
		if err != nil {
			slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
		} else {
			defer stopWatch()
		}
	}

	// ── Listeners and engine ─────────────────────────────────────────────────
	lns, err := listener.Bind(ctx, opts.bind, opts.port)
	if err != nil {
		return err
	}
	eng := engine.New(context.WithoutCancel(ctx), cfg.Engine, recorder, alerts)
	prod := listener.NewProducer(lns, eng.Submit)
	slog.Info("server listening", "listeners", len(lns), "port", opts.port, "workers", eng.Workers(), "bitacora", log.Path())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(prod.Run)
	g.Go(func() error {
		select {
		case err := <-eng.Fatal():
			return err
		case <-gctx.Done():
			return nil
		}
	})

	var srv *http.Server
	if opts.metricsAddr != "" {
		srv = &http.Server{
			Addr:         opts.metricsAddr,
			Handler:      api.New(eng, loader, alerts, history),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		g.Go(func() error {
			slog.Info("operations server starting", "addr", opts.metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("operations server: %w", err)
			}
			return nil
		})
	}

	// ── Graceful shutdown ────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		prod.Close()
		if srv != nil {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}
		return nil
	})

	err = g.Wait()
	if err != nil {
		// Queued connections are abandoned on a fatal error.
		return err
	}
	slog.Info("shutting down…", "queued", eng.QueueDepth())
	eng.Shutdown()
	slog.Info("goodbye")
	return nil
}
