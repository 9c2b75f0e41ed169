package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fzft/go-frame-relay/config"
	"github.com/fzft/go-frame-relay/log"
	"github.com/fzft/go-frame-relay/metrics"
	"github.com/fzft/go-frame-relay/node"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		Long: `Run the relay server until SIGINT, SIGTERM or SIGQUIT.

Settings come from defaults, the --config file, RELAY_* environment variables
and flags, later sources winning.

Examples:
  relay serve
  relay serve --listen-addr=0.0.0.0:8000 --admin-addr=127.0.0.1:9100
  RELAY_SLOT_CAPACITY=1024 relay serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String(config.FlagName("listen_addr"), "", "address to accept relay clients on")
	flags.Int(config.FlagName("slot_capacity"), 0, "maximum number of concurrent clients")
	flags.Int(config.FlagName("event_capacity"), 0, "readiness events fetched per poll")
	flags.Uint64(config.FlagName("max_payload"), 0, "largest accepted frame payload in bytes")
	flags.String(config.FlagName("log_level"), "", "debug, info, warn or error")
	flags.String(config.FlagName("admin_addr"), "", "serve /metrics and /healthz on this address")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if err := log.InitLogger(cfg.LogLevel); err != nil {
		return err
	}
	defer log.Logger.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := node.NewServer(cfg.ListenAddr,
		node.WithLogger(log.Logger),
		node.WithMetrics(metrics.New(metrics.WithRegistry(reg))),
		node.WithSlotCapacity(cfg.SlotCapacity),
		node.WithEventCapacity(cfg.EventCapacity),
		node.WithMaxPayload(cfg.MaxPayload),
	)
	if err != nil {
		return err
	}

	if cfg.AdminAddr != "" {
		admin := &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           metrics.NewAdminRouter(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Logger.Info("admin endpoint listening", zap.String("addr", cfg.AdminAddr))
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Logger.Error("admin endpoint failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			admin.Shutdown(shutdownCtx)
		}()
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(); err != nil {
			log.Logger.Error("failed to signal stop", zap.Error(err))
		}
	}()

	log.Logger.Info("relay listening", zap.Stringer("addr", srv.Addr()))
	err = srv.Run()
	if errors.Is(err, node.ErrServerStopped) {
		return nil
	}
	return err
}
