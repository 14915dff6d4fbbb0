package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/blsgeo/internal/laborstat"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the statistic requests described in a YAML job file",
	Long:  "Runs each step of a job file in order. Steps with an output path write a file; every step is written to the configured store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		path, _ := cmd.Flags().GetString("job")
		job, err := laborstat.LoadJob(path)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "fetch", registry)
		if err != nil {
			return err
		}
		defer env.Close()

		format, _ := cmd.Flags().GetString("format")
		for i, step := range job.Steps {
			log := zap.L().With(zap.Int("step", i+1), zap.String("statistic", step.Statistic))

			res, err := env.Service.Run(ctx, step.Statistic, defaultRequest(job.Request(i, cfg.BLS.APIKey)), step.Params)
			if err != nil {
				return eris.Wrapf(err, "run: step %d (%s)", i+1, step.Statistic)
			}
			log.Info("step complete", zap.String("run_id", res.RunID), zap.Int("rows", len(res.Rows)))

			if step.Output == "" && env.Writer == nil {
				fmt.Fprintf(os.Stdout, "== step %d: %s ==\n", i+1, step.Statistic)
			}
			if err := deliver(cmd, env, res, step.Output, format); err != nil {
				return eris.Wrapf(err, "run: step %d output", i+1)
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().String("job", "", "path to the YAML job file")
	_ = runCmd.MarkFlagRequired("job")
	runCmd.Flags().String("format", "table", "stdout format for steps without an output path: table, csv or json")
	rootCmd.AddCommand(runCmd)
}
