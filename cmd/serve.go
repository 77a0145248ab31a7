package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/scanforge/scanforge/internal/llmclient"
	"github.com/scanforge/scanforge/internal/observability"
	"github.com/scanforge/scanforge/internal/orchestrator"
	"github.com/scanforge/scanforge/internal/server"
)

// newServeCmd creates and configures the `serve` command.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API used by the internal dashboard",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := appCfg
			cfg.Server.Listen = viper.GetString("server.listen")

			generator, err := llmclient.NewRouterFromConfig(cfg.Generator, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize generation client: %w", err)
			}
			defer func() {
				if err := generator.Close(); err != nil {
					logger.Warn("Error closing generation client", zap.Error(err))
				}
			}()

			history, pool, err := openHistory(ctx, cfg.History.URL, logger)
			if err != nil {
				return err
			}
			if pool != nil {
				defer pool.Close()
			}

			orch, err := orchestrator.New(cfg, logger, generator, history)
			if err != nil {
				return fmt.Errorf("failed to create orchestrator: %w", err)
			}

			srv := server.New(cfg.Server, logger, orch, history)
			if err := srv.Run(ctx); err != nil {
				return fmt.Errorf("server exited with error: %w", err)
			}
			logger.Info("Server shut down cleanly.")
			return nil
		},
	}

	serveCmd.Flags().String("listen", ":8470", "Address for the HTTP API to listen on. (Overrides config/env)")

	return serveCmd
}
