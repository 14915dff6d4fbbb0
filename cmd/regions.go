package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/blsgeo/internal/bls"
	"github.com/sells-group/blsgeo/internal/geo"
	"github.com/sells-group/blsgeo/internal/laborstat"
	"github.com/sells-group/blsgeo/internal/reference"
	"github.com/sells-group/blsgeo/internal/series"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the regions a boundary selects",
	Long:  "Runs region selection only: no BLS request is made.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		productName, _ := cmd.Flags().GetString("product")
		product, ok := reference.ProductByName(productName)
		if !ok {
			return eris.Errorf("unknown product %q (valid: county, cbsa)", productName)
		}

		regions, err := selectFromFlags(cmd, product)
		if err != nil {
			return err
		}
		if len(regions) == 0 {
			fmt.Fprintln(os.Stderr, "No regions selected.")
			return nil
		}
		formatRegions(os.Stdout, regions)
		return nil
	},
}

var seriesCmd = &cobra.Command{
	Use:   "series <statistic>",
	Short: "Print the series identifiers a request would retrieve",
	Long:  "Runs region selection and identifier construction without calling BLS.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stat, err := laborstat.Lookup(args[0])
		if err != nil {
			return err
		}

		given, err := paramFlags(cmd)
		if err != nil {
			return err
		}
		params, err := stat.Params(given)
		if err != nil {
			return err
		}
		if err := stat.Template.ValidateParams(params); err != nil {
			return err
		}

		regions, err := selectFromFlags(cmd, stat.Product)
		if err != nil {
			return err
		}

		keys, err := series.Build(regions, stat.Template, params)
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Fprintf(os.Stdout, "%s\t%s\n", k.ID, k.Region)
		}
		fmt.Fprintf(os.Stderr, "%d series for %d regions, %d requests\n",
			len(keys), len(regions), len(series.Chunk(series.IDs(keys), bls.MaxSeriesPerRequest)))
		return nil
	},
}

// selectFromFlags loads the --boundary and selects product regions with the
// configured engine.
func selectFromFlags(cmd *cobra.Command, product reference.Product) ([]geo.Region, error) {
	req, err := requestFromFlags(cmd.Flags())
	if err != nil {
		return nil, err
	}
	req = defaultRequest(req)
	predicate, err := req.SpatialPredicate()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate("select"); err != nil {
		return nil, err
	}
	env := &appEnv{}
	defer env.Close()
	selector, err := initSelector(cmd.Context(), env)
	if err != nil {
		return nil, err
	}

	boundary, err := geo.LoadBoundary(req.BoundaryPath)
	if err != nil {
		return nil, err
	}
	return selector.SelectRegions(cmd.Context(), product, boundary, predicate, req.BufferDistance())
}

// paramFlags parses repeated --param name=v1,v2 flags.
func paramFlags(cmd *cobra.Command) (map[string][]string, error) {
	raw, _ := cmd.Flags().GetStringArray("param")
	params := make(map[string][]string, len(raw))
	for _, p := range raw {
		name, values, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, eris.Errorf("invalid --param %q (want name=code[,code...])", p)
		}
		params[strings.TrimSpace(name)] = append(params[strings.TrimSpace(name)], strings.Split(values, ",")...)
	}
	return params, nil
}

func init() {
	addRequestFlags(regionsCmd.Flags())
	regionsCmd.Flags().String("product", "county", "reference product: county or cbsa")

	addRequestFlags(seriesCmd.Flags())
	seriesCmd.Flags().StringArray("param", nil, "parameter codes as name=code[,code...] (repeatable)")

	rootCmd.AddCommand(regionsCmd)
	rootCmd.AddCommand(seriesCmd)
}
