package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sells-group/blsgeo/internal/export"
	"github.com/sells-group/blsgeo/internal/laborstat"
	"github.com/sells-group/blsgeo/internal/reference"
)

// newStatisticCmd builds the command for one statistic. Every template
// parameter becomes a repeatable flag of the same name.
func newStatisticCmd(stat laborstat.Statistic) *cobra.Command {
	cmd := &cobra.Command{
		Use:   stat.Name,
		Short: stat.Title,
		Long: stat.Title + " for the " + strings.ToLower(productLabel(stat)) +
			" selected by a boundary. Parameters default to " + export.FormatParams(defaultParams(stat)) + ".",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			req, err := requestFromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			params, err := paramsFromFlags(cmd.Flags(), stat)
			if err != nil {
				return err
			}

			env, err := initEnv(ctx, "fetch", registry)
			if err != nil {
				return err
			}
			defer env.Close()

			res, err := env.Service.Run(ctx, stat.Name, defaultRequest(req), params)
			if err != nil {
				return eris.Wrap(err, stat.Name)
			}

			output, _ := cmd.Flags().GetString("output")
			format, _ := cmd.Flags().GetString("format")
			return deliver(cmd, env, res, output, format)
		},
	}

	addRequestFlags(cmd.Flags())
	addOutputFlags(cmd.Flags())
	for _, name := range stat.Template.ParamNames() {
		cmd.Flags().StringSlice(name, nil, "codes for "+name+" (default "+strings.Join(stat.Defaults[name], ",")+")")
	}
	return cmd
}

func productLabel(stat laborstat.Statistic) string {
	if stat.Product.Name == reference.Counties.Name {
		return "Counties"
	}
	return "Metro areas"
}

func defaultParams(stat laborstat.Statistic) map[string]string {
	out := make(map[string]string, len(stat.Defaults))
	for k, v := range stat.Defaults {
		out[k] = strings.Join(v, ",")
	}
	return out
}

func addRequestFlags(fs *pflag.FlagSet) {
	fs.String("boundary", "", "boundary file (.shp, .zip, .geojson, .json, .wkt)")
	fs.String("predicate", "", "spatial predicate: intersects or contains (default from config)")
	fs.Float64("buffer", 0, "buffer distance for contains, in CRS units (default from config)")
	fs.Bool("full-series", false, "retrieve full history instead of the latest observation")
	fs.Int("start-year", 0, "first year of a full-series request")
	fs.Int("end-year", 0, "last year of a full-series request")
}

func addOutputFlags(fs *pflag.FlagSet) {
	fs.StringP("output", "o", "", "write the result to a file (.csv, .xlsx, .geojson, .json)")
	fs.String("format", "table", "stdout format when no output file is given: table, csv or json")
}

func requestFromFlags(fs *pflag.FlagSet) (laborstat.Request, error) {
	var req laborstat.Request
	req.BoundaryPath, _ = fs.GetString("boundary")
	if req.BoundaryPath == "" {
		return req, eris.New("--boundary is required")
	}
	req.Predicate, _ = fs.GetString("predicate")
	if fs.Changed("buffer") {
		buffer, _ := fs.GetFloat64("buffer")
		req.Buffer = &buffer
	}
	req.FullSeries, _ = fs.GetBool("full-series")
	req.StartYear, _ = fs.GetInt("start-year")
	req.EndYear, _ = fs.GetInt("end-year")
	return req, nil
}

// paramsFromFlags collects the parameter flags that were set.
func paramsFromFlags(fs *pflag.FlagSet, stat laborstat.Statistic) (map[string][]string, error) {
	params := make(map[string][]string)
	for _, name := range stat.Template.ParamNames() {
		if !fs.Changed(name) {
			continue
		}
		values, err := fs.GetStringSlice(name)
		if err != nil {
			return nil, eris.Wrapf(err, "read --%s", name)
		}
		params[name] = values
	}
	return params, nil
}

// deliver writes res to the configured store and to a file or stdout.
func deliver(cmd *cobra.Command, env *appEnv, res *laborstat.Result, output, format string) error {
	if env.Writer != nil {
		if _, err := env.Writer.Write(cmd.Context(), res); err != nil {
			return eris.Wrap(err, "store result")
		}
	}
	if output != "" {
		if err := export.WriteFile(output, res); err != nil {
			return err
		}
		zap.L().Info("result written", zap.String("path", output), zap.Int("rows", len(res.Rows)))
		return nil
	}
	return printResult(os.Stdout, res, format)
}

func init() {
	for _, name := range laborstat.Names() {
		stat, _ := laborstat.Lookup(name)
		rootCmd.AddCommand(newStatisticCmd(stat))
	}
}
