package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meridianscientific/archive-verify/internal/config"
	"github.com/meridianscientific/archive-verify/internal/logging"
	"github.com/meridianscientific/archive-verify/internal/metrics"
	"github.com/meridianscientific/archive-verify/internal/uploader"
)

var (
	cfgPath string
	cfg     config.Config
)

func main() {
	root := &cobra.Command{
		Use:           "archive-verify",
		Short:         "Upload instrument datasets to the content archive and verify their ingest",
		Version:       uploader.Version + " (" + uploader.GitSHA + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.MustLoad(cfgPath)
			logging.Setup(logging.Config{
				Format: cfg.Logging.Format,
				Level:  cfg.Logging.Level,
			})
			metrics.Init("archive_verify")
			if cfg.Metrics.Enabled {
				go func() {
					if err := metrics.StartServer(cfg.Metrics.Address); err != nil {
						slog.Error("metrics server failed", "error", err)
					}
				}()
			}
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")

	root.AddCommand(newUploadCmd())
	root.AddCommand(newVerifyCmd())

	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		slog.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()
	return ctx, cancel
}
