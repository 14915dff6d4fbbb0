package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/blsgeo/internal/config"
	"github.com/sells-group/blsgeo/internal/observability"
)

var (
	cfg         *config.Config
	metricsFile string
	registry    = prometheus.NewRegistry()
)

var rootCmd = &cobra.Command{
	Use:   "blsgeo",
	Short: "Labor statistics for the regions around a boundary",
	Long: "Selects the counties or metro areas that intersect (or lie within) a boundary, " +
		"builds BLS series identifiers for them and retrieves LAUS, QCEW, OEWS or CES data " +
		"from the BLS public data API, joined back onto the regions.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		defer func() { _ = zap.L().Sync() }()
		if metricsFile == "" {
			return nil
		}
		if err := observability.WriteTextfile(metricsFile, registry); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in textfile format to this path on exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
