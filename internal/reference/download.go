package reference

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blsgeo/internal/geo"
)

// Download fetches a TIGER/Line ZIP file from the Census Bureau and extracts it
// under destDir/<zip name without extension>. Returns the path to the .shp file.
func Download(ctx context.Context, url, destDir string) (string, error) {
	log := zap.L().With(
		zap.String("component", "reference.download"),
		zap.String("url", url),
	)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "reference: create dest dir")
	}

	parts := strings.Split(url, "/")
	zipName := parts[len(parts)-1]
	zipPath := filepath.Join(destDir, zipName)

	// Skip download if ZIP already exists with content.
	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("zip already exists, skipping download", zap.String("path", zipPath))
	} else {
		log.Info("downloading TIGER shapefile")
		if err := downloadFile(ctx, url, zipPath); err != nil {
			_ = os.Remove(zipPath)
			return "", eris.Wrap(err, "reference: download shapefile")
		}
	}

	extractDir := filepath.Join(destDir, strings.TrimSuffix(zipName, ".zip"))
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrap(err, "reference: create extract dir")
	}

	shpPath, err := geo.ExtractShapefile(zipPath, extractDir)
	if err != nil {
		return "", eris.Wrap(err, "reference: extract shapefile")
	}

	log.Info("reference dataset ready", zap.String("shp", shpPath))
	return shpPath, nil
}

// DownloadProducts downloads every product for the given vintage year.
func DownloadProducts(ctx context.Context, products []Product, year int, destDir string) ([]string, error) {
	paths := make([]string, 0, len(products))
	for _, p := range products {
		path, err := Download(ctx, DownloadURL(p, year), destDir)
		if err != nil {
			return paths, eris.Wrapf(err, "reference: product %s", p.Name)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// downloadFile downloads a URL to a local file.
func downloadFile(ctx context.Context, url, dest string) error {
	client := &http.Client{Timeout: 10 * time.Minute}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "build request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrap(err, "download")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("download returned status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return eris.Wrap(err, "create file")
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(f, resp.Body); err != nil {
		return eris.Wrap(err, "write file")
	}

	return nil
}
