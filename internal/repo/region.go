package repo

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/cryptekbits/geodash/internal/db"
	"github.com/cryptekbits/geodash/internal/model"
)

// RegionRepo enumerates the country → state → city hierarchy. The hierarchy
// is not stored separately; every view is a projection of city_data.
type RegionRepo struct {
	db *db.DB
}

// NewRegionRepo returns a RegionRepo over the shared handle.
func NewRegionRepo(handle *db.DB) *RegionRepo {
	return &RegionRepo{db: handle}
}

// GetCountries lists every country with at least one city, sorted.
func (r *RegionRepo) GetCountries(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "SELECT DISTINCT country FROM city_data ORDER BY country")
}

// GetStates lists the states of a country, sorted. Cities without a state
// do not produce an empty entry.
func (r *RegionRepo) GetStates(ctx context.Context, country string) ([]string, error) {
	return r.distinct(ctx,
		`SELECT DISTINCT state FROM city_data
		 WHERE country = ? AND state IS NOT NULL AND state <> ''
		 ORDER BY state`, country)
}

// GetCitiesInState lists the cities of a state, sorted by name.
func (r *RegionRepo) GetCitiesInState(ctx context.Context, state, country string) ([]model.City, error) {
	rows, err := r.db.QueryContext(ctx,
		r.db.Rebind("SELECT "+cityColumns+" FROM city_data WHERE state = ? AND country = ? ORDER BY name"),
		state, country)
	if err != nil {
		return nil, eris.Wrapf(err, "repo: cities in %s, %s", state, country)
	}
	defer rows.Close() //nolint:errcheck

	var cities []model.City
	for rows.Next() {
		c, err := scanCity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "repo: scan city row")
		}
		cities = append(cities, *c)
	}
	return cities, eris.Wrap(rows.Err(), "repo: cities iterate")
}

func (r *RegionRepo) distinct(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, eris.Wrap(err, "repo: distinct query")
	}
	defer rows.Close() //nolint:errcheck

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrap(err, "repo: scan value")
		}
		values = append(values, v)
	}
	return values, eris.Wrap(rows.Err(), "repo: distinct iterate")
}
