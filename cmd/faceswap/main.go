package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dudu/faceswap/internal/config"
)

// Version is the application version.
const Version = "0.1.0"

var (
	cfg      config.Config
	modelDir string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:          "faceswap",
	Short:        "Swap a face from a source photo onto every face in a target photo",
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if modelDir != "" {
			cfg.ModelDir = modelDir
		}

		logger, err := buildLogger(verbose)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		zap.L().Sync()
	},
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&modelDir, "models", "m", "", "directory holding the model files (default: FACESWAP_MODEL_DIR or ./models)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
