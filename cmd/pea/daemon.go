package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oriys/peapod/internal/config"
	"github.com/oriys/peapod/internal/logging"
	"github.com/oriys/peapod/internal/observability"
	"github.com/oriys/peapod/internal/pea"
	"github.com/oriys/peapod/internal/peaexec"
	"github.com/oriys/peapod/internal/streamlet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func daemonCmd() *cobra.Command {
	var (
		peaConfigFile string
		listenAddr    string
		vsockPort     uint32
		metricsAddr   string
		logLevel      string
		redisSource   string
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run a Pea worker",
		Long:  "Load the Executor named by a Pea config, bind its transport, and drive its request loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if configFile != "" {
				var err error
				cfg, err = config.LoadFromFile(configFile)
				if err != nil {
					return fmt.Errorf("load daemon config: %w", err)
				}
			}
			config.LoadFromEnv(cfg)
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
			}
			if cfg.Observability.Tracing.ServiceName == "" || cfg.Observability.Tracing.ServiceName == "nova" {
				cfg.Observability.Tracing.ServiceName = "pea"
			}

			logging.SetLevelFromString(cfg.Daemon.LogLevel)
			logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)

			if err := observability.Init(context.Background(), observability.Config{
				Enabled:     cfg.Observability.Tracing.Enabled,
				Exporter:    cfg.Observability.Tracing.Exporter,
				Endpoint:    cfg.Observability.Tracing.Endpoint,
				ServiceName: cfg.Observability.Tracing.ServiceName,
				SampleRate:  cfg.Observability.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			peaCfg := pea.DefaultConfig()
			if peaConfigFile != "" {
				var err error
				peaCfg, err = pea.LoadFromFile(peaConfigFile)
				if err != nil {
					return fmt.Errorf("load pea config: %w", err)
				}
			}
			pea.LoadFromEnv(peaCfg)

			schemes := map[string]pea.ConfigSource{
				"file":   pea.FileConfigSource{},
				"inline": pea.InlineConfigSource{},
			}
			if redisSource != "" {
				rc, err := peaexec.NewRedisConfigSource(redisSource)
				if err != nil {
					return fmt.Errorf("connect config-source redis: %w", err)
				}
				schemes["redis"] = rc
			}
			if s3c, err := peaexec.NewS3ConfigSource(context.Background()); err == nil {
				schemes["s3"] = s3c
			} else {
				logging.Op().Warn("s3 config source unavailable, uses=s3://... will fail", "error", err)
			}
			source := pea.NewMultiConfigSource(schemes)
			host := pea.NewHost(source, source, pea.ParseYAMLSpec)

			registry := prometheus.NewRegistry()
			registry.MustRegister(prometheus.NewGoCollector())

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
				mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
					w.Write([]byte(`{"status":"ok","service":"pea"}`))
				})
				httpServer := &http.Server{Addr: metricsAddr, Handler: mux}
				go func() {
					logging.Op().Info("pea metrics endpoint started", "addr", metricsAddr)
					if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logging.Op().Error("pea metrics server error", "error", err)
					}
				}()
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					httpServer.Shutdown(ctx)
				}()
			}

			newStreamlet := func(cfg *pea.Config, logger *slog.Logger) (pea.Streamlet, error) {
				if vsockPort != 0 {
					return streamlet.NewVsockStreamlet(vsockPort, logger)
				}
				l, err := net.Listen("tcp", listenAddr)
				if err != nil {
					return nil, fmt.Errorf("listen %s: %w", listenAddr, err)
				}
				return streamlet.NewFramed(l, logger), nil
			}

			p := pea.New(peaCfg, host, newStreamlet, logging.Op(), registry)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				logging.Op().Info("shutdown signal received", "pea", p.Name())
				cancel()
			}()

			ready := make(chan struct{})
			go func() {
				<-ready
				logging.Op().Info("pea ready", "pea", p.Name())
			}()

			if err := p.Run(ctx, ready); err != nil {
				return fmt.Errorf("pea %s exited: %w", p.Name(), err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&peaConfigFile, "pea-config", "", "Path to Pea config file")
	cmd.Flags().StringVar(&listenAddr, "listen", ":0", "TCP address for the message streamlet")
	cmd.Flags().Uint32Var(&vsockPort, "vsock-port", 0, "vsock port for the message streamlet (overrides --listen)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve /metrics and /health on, empty disables")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")
	cmd.Flags().StringVar(&redisSource, "config-source-redis", "", "Redis address backing redis:// uses sources")

	return cmd
}
