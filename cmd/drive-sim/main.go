package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/logtech/roadsafe/internal/drivesim"
	"github.com/logtech/roadsafe/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "drive-sim",
		Short:        "Synthetic drive generator for the roadsafe service",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("log-format", "text", "Log format: text or json")
	root.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	cfg := &drivesim.Config{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit a simulated drive and verify the resulting events and report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := setupLogging(cmd)
			if err != nil {
				return err
			}
			cfg.Logger = log

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out, err := drivesim.Run(ctx, cfg)
			if err != nil {
				return fmt.Errorf("drive failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"drive verified: %d batches, %d harsh braking events, safety index %d/100, discount %.2f %s, %d tokens\n",
				out.Batches, out.HarshBraking, out.Report.SafetyIndex,
				out.Report.ProjectedDiscount, out.Report.Currency, out.Report.TokenBalance)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	f.IntVar(&cfg.Samples, "samples", drivesim.DefaultSamples, "Number of samples in the drive")
	f.IntVar(&cfg.Brakes, "brakes", drivesim.DefaultBrakes, "Number of harsh braking samples")
	f.StringVar(&cfg.Vehicle, "vehicle", "car", "Vehicle class: car, motorcycle or truck")
	f.IntVar(&cfg.Learning, "learning", drivesim.DefaultLearning, "Completed learning records to add")
	f.StringVar(&cfg.Driver, "driver", "", "Person id for learning records (default: random)")
	f.IntVar(&cfg.BatchSize, "batch-size", drivesim.DefaultBatchSize, "Samples per request")
	f.DurationVar(&cfg.Timeout, "timeout", drivesim.DefaultTimeout, "HTTP request timeout")
	f.DurationVar(&cfg.Wait, "wait", drivesim.DefaultWait, "How long to wait for processing")
	return cmd
}

func setupLogging(cmd *cobra.Command) (logger.Logger, error) {
	format, _ := cmd.Flags().GetString("log-format")
	verbose, _ := cmd.Flags().GetBool("verbose")
	if err := logger.Init(logger.WithFormat(format), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return logger.Named("drive-sim"), nil
}
