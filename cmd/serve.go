package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"auction-server/internal/app"
	"auction-server/internal/config"
	"auction-server/utils"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the auction server",
	Long: `Opens the data directory exclusively, starts the expiry sweeper and
serves the HTTP API until SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := utils.SetLevel(cfg.LogLevel); err != nil {
			return err
		}

		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				utils.Error("Failed to close resources", map[string]any{"error": err.Error()})
			}
		}()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Handle graceful shutdown
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case sig := <-sigChan:
				utils.Info("Received shutdown signal", map[string]any{"signal": sig.String()})
				cancel()
			case <-ctx.Done():
			}
		}()

		return a.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
