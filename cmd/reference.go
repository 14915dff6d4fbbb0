package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/blsgeo/internal/db"
	"github.com/sells-group/blsgeo/internal/geo"
	"github.com/sells-group/blsgeo/internal/geospatial"
	"github.com/sells-group/blsgeo/internal/reference"
)

var referenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Manage the county and metro area reference datasets",
}

var referenceDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download TIGER/Line county and CBSA shapefiles",
	Long:  "Downloads the national TIGER/Line county and CBSA shapefiles from the Census Bureau and extracts them under reference.dir.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		year := cfg.Reference.Year
		if y, _ := cmd.Flags().GetInt("year"); y > 0 {
			year = y
		}

		zap.L().Info("downloading reference shapefiles",
			zap.Int("year", year),
			zap.String("dir", cfg.Reference.Dir),
		)
		paths, err := reference.DownloadProducts(ctx, reference.Products, year, cfg.Reference.Dir)
		if err != nil {
			return eris.Wrap(err, "reference download")
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	},
}

var referenceLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the reference shapefiles into PostGIS",
	Long:  "Creates the geo.counties and geo.cbsa tables if missing and upserts every region from the configured reference files, for selection.engine postgis.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		url := cfg.PostGISURL()
		if url == "" {
			return eris.New("selection.database_url is required")
		}
		pool, err := db.Connect(ctx, url)
		if err != nil {
			return err
		}
		defer pool.Close()

		store := geospatial.NewStore(pool, cfg.Selection.SRID)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}

		paths := map[string]string{
			reference.Counties.Name: cfg.Reference.CountiesPath(),
			reference.Metros.Name:   cfg.Reference.MetrosPath(),
		}
		for _, product := range reference.Products {
			regions, err := geo.LoadRegions(reference.Dataset(product, paths[product.Name]))
			if err != nil {
				return err
			}
			n, err := store.LoadRegions(ctx, product, regions)
			if err != nil {
				return eris.Wrapf(err, "reference load %s", product.Name)
			}
			fmt.Printf("%s: %d regions loaded\n", product.Name, n)
		}
		return nil
	},
}

func init() {
	referenceDownloadCmd.Flags().Int("year", 0, "TIGER/Line vintage (default reference.year)")

	referenceCmd.AddCommand(referenceDownloadCmd)
	referenceCmd.AddCommand(referenceLoadCmd)
	rootCmd.AddCommand(referenceCmd)
}
