package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	json "github.com/json-iterator/go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/scanforge/scanforge/api/schemas"
	"github.com/scanforge/scanforge/internal/llmclient"
	"github.com/scanforge/scanforge/internal/observability"
	"github.com/scanforge/scanforge/internal/orchestrator"
	"github.com/scanforge/scanforge/internal/store"
)

// newTransformCmd creates and configures the `transform` command.
func newTransformCmd() *cobra.Command {
	transformCmd := &cobra.Command{
		Use:   "transform [source file]",
		Short: "Rewrites a single scanner source file into the standard pipeline shape",
		Long: `Reads a legacy scanner source file (or stdin when the argument is "-"),
extracts its configuration parameters and detection logic, and rewrites it
into the standardized five-stage pipeline shape. The rewritten source is
printed to stdout or written to --output; the compliance report is written
to stderr as JSON.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := appCfg

			source, err := readSource(args[0])
			if err != nil {
				return err
			}

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

			aliases, _ := cmd.Flags().GetStringSlice("alias")
			helpers, _ := cmd.Flags().GetStringSlice("helper")

			result, err := orch.Transform(ctx, orchestrator.SubmissionRequest{
				Source:           source,
				DetectionAliases: aliases,
				HelperNames:      helpers,
			})
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return fmt.Errorf("transform aborted by user signal")
				}
				return err
			}

			return writeResult(cmd, result, viper.GetString("output"))
		},
	}

	transformCmd.Flags().StringP("output", "o", "", "Output file path for the rewritten source. If unset, prints to stdout.")
	transformCmd.Flags().StringSlice("alias", nil, "Detection routine name to look for. Repeatable. (Overrides config)")
	transformCmd.Flags().StringSlice("helper", nil, "Helper function name to preserve. Repeatable. (Overrides config)")

	return transformCmd
}

// readSource loads the submission body from a file path or stdin.
func readSource(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read source from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read source file: %w", err)
	}
	return string(data), nil
}

// openHistory connects the history store when a URL is configured. A nil
// store disables persistence.
func openHistory(ctx context.Context, url string, logger *zap.Logger) (schemas.HistoryStore, *pgxpool.Pool, error) {
	if url == "" {
		return nil, nil, nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to history database: %w", err)
	}
	history, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize history store: %w", err)
	}
	return history, pool, nil
}

// writeResult emits the rewritten source and the compliance report.
func writeResult(cmd *cobra.Command, result *schemas.TransformationResult, outputPath string) error {
	report, err := json.MarshalIndent(result.Report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize compliance report: %w", err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), string(report))

	if result.Status != schemas.StatusAccepted {
		guidance, err := json.MarshalIndent(result.Guidance, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize guidance payload: %w", err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), string(guidance))
		return fmt.Errorf("transform exhausted after %d attempts", result.AttemptCount)
	}

	if outputPath == "" {
		fmt.Fprint(cmd.OutOrStdout(), result.Output)
		return nil
	}
	if err := os.WriteFile(outputPath, []byte(result.Output), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Transform complete after %d attempt(s). Output: %s\n", result.AttemptCount, outputPath)
	return nil
}
