package ingest

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultSourceURL is where the city dataset is fetched from when no local
// source exists. Overridable via configuration.
const DefaultSourceURL = "https://raw.githubusercontent.com/cryptekbits/geodash-data/main/cities.csv"

// Download fetches the city CSV into the data directory and returns its path.
// An existing non-empty file is reused unless force is set.
func (i *Importer) Download(ctx context.Context, force bool) (string, error) {
	log := zap.L().With(
		zap.String("component", "ingest.download"),
		zap.String("url", i.sourceURL),
	)

	if err := os.MkdirAll(i.dataDir, 0o755); err != nil {
		return "", eris.Wrap(err, "ingest: create data dir")
	}

	dest := filepath.Join(i.dataDir, sourceFileName)
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 && !force {
		log.Debug("city data already downloaded", zap.String("path", dest))
		return dest, nil
	}

	log.Info("downloading city data", zap.Bool("force", force))
	if err := i.fetch(ctx, dest); err != nil {
		return "", eris.Wrap(ErrDownload, err.Error())
	}
	return dest, nil
}

func (i *Importer) fetch(ctx context.Context, dest string) error {
	client := i.client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.sourceURL, nil)
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

	// Write to a temp file first so a failed download never leaves a
	// truncated cities.csv behind.
	tmp, err := os.CreateTemp(i.dataDir, "cities-*.csv")
	if err != nil {
		return eris.Wrap(err, "create temp file")
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return eris.Wrap(err, "write file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return eris.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return eris.Wrap(err, "move into place")
	}
	return nil
}
