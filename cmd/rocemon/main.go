// Package main is the entry point for rocemon, an interface throughput
// monitor that also flags RDMA connection manager and RoCEv2 port activity.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Guliveer/rocemon/internal/collector"
	"github.com/Guliveer/rocemon/internal/config"
	"github.com/Guliveer/rocemon/internal/models"
	"github.com/Guliveer/rocemon/internal/report"
	"github.com/Guliveer/rocemon/internal/sampler"
	"github.com/Guliveer/rocemon/internal/sender"
	"github.com/Guliveer/rocemon/internal/session"
	"github.com/Guliveer/rocemon/internal/store"
	"github.com/Guliveer/rocemon/internal/throughput"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	iface       string
	durationSec int
	output      string
	analyzePath string
	configPath  string
	metricsAddr string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:           "rocemon",
	Short:         "RDMA RoCEv2 throughput monitor",
	Long:          `Samples network interface counters at a fixed rate, reports live throughput, and records a summary with RDMA port activity hints`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&iface, "interface", "i", "eth0", "Network interface to monitor")
	rootCmd.Flags().IntVarP(&durationSec, "duration", "d", 60, "Monitoring duration in seconds")
	rootCmd.Flags().StringVarP(&output, "output", "o", "throughput_data.json", "Output JSON file or http(s) URL")
	rootCmd.Flags().StringVar(&analyzePath, "analyze", "", "Analyze existing JSON file")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Prometheus listen address (empty disables)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := initLogger(cfg)
	defer logger.Sync()

	ports := report.Ports{CM: cfg.RDMA.CMPort, RoCEv2: cfg.RDMA.RoCEv2Port}
	filter := throughput.Filter{
		Ceiling:         cfg.Analysis.OutlierCeilingMbps,
		ExcludeNegative: cfg.Analysis.ExcludeNegative,
	}

	if analyzePath != "" {
		return analyze(os.Stdout, analyzePath, filter, ports)
	}

	ctx, stop := notifyContext(context.Background(), logger)
	defer stop()

	if cfg.Metrics.ListenAddress != "" {
		shutdown := serveMetrics(cfg.Metrics.ListenAddress, logger)
		defer shutdown()
	}

	return monitor(ctx, cfg, filter, ports, logger)
}

// loadConfig layers flags the user actually set on top of the file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cli config.CLIOverrides
	flags := cmd.Flags()
	if flags.Changed("interface") {
		cli.Interface = iface
	}
	if flags.Changed("duration") {
		if durationSec <= 0 {
			return nil, fmt.Errorf("duration must be positive (got: %d)", durationSec)
		}
		cli.Duration = time.Duration(durationSec) * time.Second
	}
	if flags.Changed("output") {
		cli.Output = output
	}
	cli.MetricsAddr = metricsAddr
	cli.LogLevel = logLevel

	if flags.Changed("config") {
		return config.LoadLayered(cli, embeddedConfig, configPath)
	}
	return config.LoadLayered(cli, embeddedConfig)
}

func analyze(w io.Writer, path string, filter throughput.Filter, ports report.Ports) error {
	record, err := store.Load(path)
	if err != nil {
		return fmt.Errorf("analyzing file: %w", err)
	}
	return report.Analyze(w, record, filter, ports)
}

func monitor(ctx context.Context, cfg *config.Config, filter throughput.Filter, ports report.Ports, logger *zap.Logger) error {
	source, err := collector.NewCounterSource(cfg.Sampling.CounterSource, logger)
	if err != nil {
		return err
	}
	lister, err := collector.NewSocketLister(cfg.Sampling.SocketLister, logger)
	if err != nil {
		return err
	}

	smp := sampler.New(sampler.Config{
		Interface:        cfg.Monitor.Interface,
		Duration:         cfg.Monitor.Duration.Duration,
		Interval:         cfg.Sampling.Interval.Duration,
		CallTimeout:      cfg.Sampling.CallTimeout.Duration,
		FallbackPrefixes: cfg.Monitor.FallbackPrefixes,
		Ports:            []string{ports.CM, ports.RoCEv2},
	}, source, lister, logger)
	smp.OnSample(func(s models.Sample) {
		_ = report.LiveLine(os.Stdout, s)
	})

	persister := session.TargetPersister{
		File: store.New(logger),
		HTTP: sender.New(cfg.Upload.Retries, cfg.Upload.Timeout.Duration, logger),
	}
	ctrl := session.New(session.Config{
		Interface:  cfg.Monitor.Interface,
		Duration:   cfg.Monitor.Duration.Duration,
		Target:     cfg.Monitor.Output,
		Filter:     filter,
		RoCEv2Port: ports.RoCEv2,
	}, smp, persister, logger)

	fmt.Printf("Starting throughput monitoring on interface %s\n", cfg.Monitor.Interface)
	fmt.Printf("Duration: %d seconds\n", int(cfg.Monitor.Duration.Seconds()))
	fmt.Println("Press Ctrl+C to stop early")

	record, err := ctrl.Run(ctx)

	elapsed := 0.0
	if record.EndTime != nil {
		elapsed = record.EndTime.Sub(record.StartTime).Seconds()
	}
	fmt.Printf("\nMonitoring completed after %.1f seconds\n", elapsed)
	if rerr := report.Report(os.Stdout, record, ports); rerr != nil {
		logger.Warn("Failed to print report", zap.Error(rerr))
	}
	if err != nil {
		return err
	}
	fmt.Printf("\nResults saved to: %s\n", cfg.Monitor.Output)
	return nil
}

// notifyContext returns a context cancelled by the first termination signal.
func notifyContext(parent context.Context, logger *zap.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("Received signal, stopping monitor",
				zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// serveMetrics exposes the Prometheus registry and returns a shutdown func.
func serveMetrics(addr string, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics listener failed", zap.Error(err))
		}
	}()
	logger.Info("Serving metrics", zap.String("address", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// initLogger creates a zap logger based on the configuration.
// Console output goes to stderr so stdout carries only the live line and reports.
// A JSON log file is added when configured.
func initLogger(cfg *config.Config) *zap.Logger {
	var level zapcore.Level
	switch cfg.Logging.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		level,
	)

	cores := []zapcore.Core{consoleCore}

	if cfg.Logging.File != "" {
		file, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err == nil {
			fileCore := zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				zapcore.AddSync(file),
				level,
			)
			cores = append(cores, fileCore)
		}
	}

	return zap.New(zapcore.NewTee(cores...))
}
