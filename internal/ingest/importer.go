// Package ingest imports city records from a CSV source into the city_data
// table, downloading the dataset when no local copy exists.
package ingest

import (
	"context"
	"database/sql"
	"encoding/csv"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cryptekbits/geodash/internal/db"
)

const (
	sourceFileName = "cities.csv"

	// DefaultBatchSize is the number of rows inserted per transaction.
	DefaultBatchSize = 5000
)

// Error kinds callers classify with eris.Is.
var (
	// ErrNoSource means no local CSV exists and downloading was not allowed.
	ErrNoSource = eris.New("ingest: no city data source available")
	// ErrDownload means the network fetch of the dataset failed.
	ErrDownload = eris.New("ingest: download failed")
	// ErrBadData means the CSV could not be parsed into any usable rows.
	ErrBadData = eris.New("ingest: malformed city data")
)

// Importer loads city records into the shared database handle.
type Importer struct {
	db        *db.DB
	dataDir   string
	sourceURL string
	client    *http.Client
}

// NewImporter returns an Importer writing through handle. dataDir holds the
// downloaded dataset; sourceURL may be empty to use DefaultSourceURL.
func NewImporter(handle *db.DB, dataDir, sourceURL string) *Importer {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	return &Importer{db: handle, dataDir: dataDir, sourceURL: sourceURL}
}

var insertColumns = []string{
	"id", "name", "ascii_name", "state", "country",
	"country_code", "latitude", "longitude", "population",
}

// ImportFromCSV imports city rows from csvPath. An empty path resolves to the
// data directory default, downloading it first when downloadIfMissing is set.
// Returns the number of rows imported.
func (i *Importer) ImportFromCSV(ctx context.Context, csvPath string, batchSize int, downloadIfMissing bool) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	path, err := i.resolveSource(ctx, csvPath, downloadIfMissing)
	if err != nil {
		return 0, err
	}

	log := zap.L().With(
		zap.String("component", "ingest.importer"),
		zap.String("path", path),
	)

	f, err := os.Open(path)
	if err != nil {
		return 0, eris.Wrap(ErrNoSource, err.Error())
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return 0, eris.Wrap(ErrBadData, "read header")
	}
	idx, err := mapHeader(header)
	if err != nil {
		return 0, err
	}

	var total, skipped int
	batch := make([][]any, 0, batchSize)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, eris.Wrap(ErrBadData, err.Error())
		}

		row, ok := parseRecord(record, idx)
		if !ok {
			skipped++
			continue
		}
		batch = append(batch, row)

		if len(batch) >= batchSize {
			if err := i.insertBatch(ctx, batch); err != nil {
				return total, err
			}
			total += len(batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := i.insertBatch(ctx, batch); err != nil {
			return total, err
		}
		total += len(batch)
	}

	if total == 0 && skipped > 0 {
		return 0, eris.Wrapf(ErrBadData, "all %d rows unparseable", skipped)
	}

	log.Info("city data imported", zap.Int("rows", total), zap.Int("skipped", skipped))
	return total, nil
}

// resolveSource picks the CSV to import: explicit path, then the data
// directory default, then a fresh download when allowed.
func (i *Importer) resolveSource(ctx context.Context, csvPath string, downloadIfMissing bool) (string, error) {
	if csvPath != "" {
		return csvPath, nil
	}

	dest := filepath.Join(i.dataDir, sourceFileName)
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		return dest, nil
	}
	if !downloadIfMissing {
		return "", eris.Wrapf(ErrNoSource, "no file at %s", dest)
	}
	return i.Download(ctx, false)
}

// maxInsertRows caps rows per INSERT statement so the bind-variable count
// stays under SQLite's limit; the whole batch still commits as one tx.
const maxInsertRows = 500

func (i *Importer) insertBatch(ctx context.Context, batch [][]any) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "ingest: begin batch")
	}

	for start := 0; start < len(batch); start += maxInsertRows {
		end := start + maxInsertRows
		if end > len(batch) {
			end = len(batch)
		}
		if err := i.insertChunk(ctx, tx, batch[start:end]); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "ingest: commit batch")
}

func (i *Importer) insertChunk(ctx context.Context, tx *sql.Tx, chunk [][]any) error {
	var b strings.Builder
	b.WriteString("INSERT INTO city_data (")
	b.WriteString(strings.Join(insertColumns, ", "))
	b.WriteString(") VALUES ")

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(insertColumns)), ", ") + ")"
	args := make([]any, 0, len(chunk)*len(insertColumns))
	for n, row := range chunk {
		if n > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholder)
		args = append(args, row...)
	}

	// Re-imports of overlapping data keep the first copy of each id.
	b.WriteString(" ON CONFLICT (id) DO NOTHING")

	if _, err := tx.ExecContext(ctx, i.db.Rebind(b.String()), args...); err != nil {
		return eris.Wrap(err, "ingest: insert chunk")
	}
	return nil
}

// mapHeader maps required and optional CSV columns to their indices.
func mapHeader(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for n, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = n
	}
	for _, required := range []string{"id", "name", "country", "latitude", "longitude"} {
		if _, ok := idx[required]; !ok {
			return nil, eris.Wrapf(ErrBadData, "missing column %q", required)
		}
	}
	return idx, nil
}

func parseRecord(record []string, idx map[string]int) ([]any, bool) {
	field := func(name string) string {
		n, ok := idx[name]
		if !ok || n >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[n])
	}

	id, err := strconv.Atoi(field("id"))
	if err != nil {
		return nil, false
	}
	lat, err := strconv.ParseFloat(field("latitude"), 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, false
	}
	lng, err := strconv.ParseFloat(field("longitude"), 64)
	if err != nil || lng < -180 || lng > 180 {
		return nil, false
	}
	name := field("name")
	country := field("country")
	if name == "" || country == "" {
		return nil, false
	}

	population, _ := strconv.ParseInt(field("population"), 10, 64)

	return []any{
		id, name, field("ascii_name"), field("state"), country,
		field("country_code"), lat, lng, population,
	}, true
}
