// Package schema manages the city_data table: idempotent creation,
// column/row-count introspection, and the full clear used by import recovery.
package schema

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cryptekbits/geodash/internal/db"
	"github.com/cryptekbits/geodash/internal/model"
)

// Manager coordinates schema state for the city_data table.
type Manager struct {
	db *db.DB
}

// NewManager returns a Manager bound to the shared handle.
func NewManager(handle *db.DB) *Manager {
	return &Manager{db: handle}
}

const migration = `
CREATE TABLE IF NOT EXISTS city_data (
	id           INTEGER PRIMARY KEY,
	name         TEXT NOT NULL,
	ascii_name   TEXT,
	state        TEXT,
	country      TEXT NOT NULL,
	country_code TEXT,
	latitude     REAL NOT NULL,
	longitude    REAL NOT NULL,
	population   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_city_data_name ON city_data(name);
CREATE INDEX IF NOT EXISTS idx_city_data_country ON city_data(country);
CREATE INDEX IF NOT EXISTS idx_city_data_country_state ON city_data(country, state);
CREATE INDEX IF NOT EXISTS idx_city_data_lat_lng ON city_data(latitude, longitude);
`

// EnsureSchema creates the city_data table and its indexes if absent.
// Safe to run against a populated database.
func (m *Manager) EnsureSchema(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, migration); err != nil {
		return eris.Wrap(err, "schema: ensure city_data")
	}
	zap.L().Debug("schema ensured", zap.String("table", "city_data"))
	return nil
}

// TableInfo reports the column layout and current row count of city_data.
func (m *Manager) TableInfo(ctx context.Context) (*model.TableInfo, error) {
	cols, err := m.columns(ctx)
	if err != nil {
		return nil, err
	}

	var count int
	row := m.db.QueryRowContext(ctx, "SELECT count(*) FROM city_data")
	if err := row.Scan(&count); err != nil {
		return nil, eris.Wrap(err, "schema: count rows")
	}

	return &model.TableInfo{Columns: cols, RowCount: count}, nil
}

// Clear deletes every row from city_data. Used only by the import retry
// path to avoid duplicating a partial import.
func (m *Manager) Clear(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, "DELETE FROM city_data"); err != nil {
		return eris.Wrap(err, "schema: clear city_data")
	}
	zap.L().Info("cleared city_data before import retry")
	return nil
}

func (m *Manager) columns(ctx context.Context) ([]model.Column, error) {
	query := "PRAGMA table_info(city_data)"
	if m.db.Dialect == db.DialectPostgres {
		query = `SELECT column_name, data_type FROM information_schema.columns
			WHERE table_name = 'city_data' ORDER BY ordinal_position`
	}

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "schema: introspect columns")
	}
	defer rows.Close() //nolint:errcheck

	var cols []model.Column
	for rows.Next() {
		var c model.Column
		if m.db.Dialect == db.DialectPostgres {
			if err := rows.Scan(&c.Name, &c.Type); err != nil {
				return nil, eris.Wrap(err, "schema: scan column")
			}
		} else {
			// PRAGMA table_info: cid, name, type, notnull, dflt_value, pk
			var cid, notNull, pk int
			var dflt any
			if err := rows.Scan(&cid, &c.Name, &c.Type, &notNull, &dflt, &pk); err != nil {
				return nil, eris.Wrap(err, "schema: scan column")
			}
		}
		cols = append(cols, c)
	}
	return cols, eris.Wrap(rows.Err(), "schema: iterate columns")
}
