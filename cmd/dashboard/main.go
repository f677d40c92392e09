package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ritzau/insights-dashboard/pkg/config"
	"github.com/ritzau/insights-dashboard/pkg/logging"
)

var (
	cfg        *config.Config
	configFile string
	envFile    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dashboard",
		Short:         "Interactive insights dashboard",
		Long:          "Fetches records matching a set of filters and charts their intensity, likelihood, relevance and start year.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cmd.Flags(), config.Options{File: configFile, EnvFile: envFile})
			if err != nil {
				return err
			}
			level, err := logging.ParseLevel(cfg.Verbosity)
			if err != nil {
				return err
			}
			return logging.Setup(os.Stderr, level, cfg.Log.Format)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "dashboard.toml", "TOML config file")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file seeding the environment")
	config.RegisterFlags(flags)

	rootCmd.AddCommand(newServeCmd(), newSnapshotCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func openBrowser(url string) {
	// give the listener a moment to come up
	time.Sleep(300 * time.Millisecond)

	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		logging.Warn("cannot open browser on this platform", "os", runtime.GOOS)
		return
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		logging.Warn("failed to open browser", "error", err)
	}
}

func serveURL(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}
