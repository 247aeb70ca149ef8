package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/database"
	"github.com/curatarr/curatarr/internal/engine"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Curatarr server",
	Long:  `Start the Curatarr server: scheduled rule scans, the job queue and the deletion executor.`,
	Example: `curatarr serve --config config.yml
curatarr serve -c /path/to/config.yml --log-level debug
`,
	Run: startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer db.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	eng, err := engine.New(cfg, db)
	if err != nil {
		log.Fatalf("failed to create engine: %v", err)
	}
	defer eng.Close() //nolint:errcheck

	// Start the engine in a goroutine
	go func() {
		if err := eng.Run(ctx); err != nil {
			log.Error("engine error", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	log.Info("curatarr started successfully")
	<-c
	log.Info("shutting down gracefully...")

	// Give time for graceful shutdown
	cancel()
	time.Sleep(2 * time.Second)
}
