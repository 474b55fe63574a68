package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	clientcmd "github.com/nordfund/jobq/internal/cmd/client"
	serverrun "github.com/nordfund/jobq/internal/cmd/server"
	cfgpkg "github.com/nordfund/jobq/internal/config"
	pebblestore "github.com/nordfund/jobq/internal/storage/pebble"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "jobq",
		Short: "jobq durable job queue",
		Long:  "jobq is a single-binary durable job queue for back-office portals. This CLI manages the server and basic operations.",
	}

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the jobq server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			httpAddr, _ := cmd.Flags().GetString("http")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			if httpAddr != "" {
				cfg.HTTPAddr = httpAddr
			}
			if fsyncMode != "" {
				cfg.Fsync = fsyncMode
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}

			mode := pebblestore.ParseFsyncMode(cfg.Fsync)
			if mode == pebblestore.FsyncModeUnspecified {
				return fmt.Errorf("invalid fsync mode %q; use always|interval|never", cfg.Fsync)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return serverrun.Run(ctx, serverrun.Options{
				DataDir:  cfg.DataDir,
				HTTPAddr: cfg.HTTPAddr,
				Fsync:    mode,
				Config:   cfg,
			})
		},
	}
	serverStartCmd.Flags().String("config", "", "Path to JSON config file")
	serverStartCmd.Flags().String("data-dir", "", "Data directory (defaults to OS application data directory)")
	serverStartCmd.Flags().String("http", "", "HTTP listen address (default :8464)")
	serverStartCmd.Flags().String("fsync", "", "Fsync mode: always|interval|never")
	serverStartCmd.Flags().String("log-level", os.Getenv("JOBQ_LOG_LEVEL"), "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", os.Getenv("JOBQ_LOG_FORMAT"), "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	// client command groups
	rootCmd.AddCommand(clientcmd.NewJobsCommand(apiURL))
	rootCmd.AddCommand(clientcmd.NewRunsCommand(apiURL))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("JOBQ_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8464"
}
