// Package repo holds the three read repositories over the city_data table:
// name search, radius search, and region enumeration. Repositories share the
// facade's handle and never close it.
package repo

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/cryptekbits/geodash/internal/db"
	"github.com/cryptekbits/geodash/internal/model"
)

const cityColumns = "id, name, ascii_name, state, country, country_code, latitude, longitude, population"

// Location biases search ranking toward the user. Coordinates and country
// are each optional; only what is set participates in the re-rank.
type Location struct {
	Lat     *float64
	Lng     *float64
	Country string
}

// CityRepo answers by-id lookups and ranked name searches.
type CityRepo struct {
	db *db.DB
}

// NewCityRepo returns a CityRepo over the shared handle.
func NewCityRepo(handle *db.DB) *CityRepo {
	return &CityRepo{db: handle}
}

// GetByID fetches a single city. Returns nil, nil when the id is unknown.
func (r *CityRepo) GetByID(ctx context.Context, id int) (*model.City, error) {
	row := r.db.QueryRowContext(ctx,
		r.db.Rebind("SELECT "+cityColumns+" FROM city_data WHERE id = ?"), id)

	c, err := scanCity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "repo: get city %d", id)
	}
	return c, nil
}

// Search finds cities whose name contains query, ranked exact > prefix >
// substring. Within a relevance class, results closest to loc come first
// (same-country matches before anything else); without a location the most
// populous cities win.
func (r *CityRepo) Search(ctx context.Context, query string, limit int, country string, loc *Location) ([]model.City, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	sqlQuery := `SELECT ` + cityColumns + `,
		CASE
			WHEN lower(name) = ? OR lower(ascii_name) = ? THEN 0
			WHEN lower(name) LIKE ? OR lower(ascii_name) LIKE ? THEN 1
			ELSE 2
		END AS relevance
		FROM city_data
		WHERE (lower(name) LIKE ? OR lower(ascii_name) LIKE ?)`
	args := []any{q, q, q + "%", q + "%", "%" + q + "%", "%" + q + "%"}

	if country != "" {
		sqlQuery += " AND country = ?"
		args = append(args, country)
	}

	// Over-fetch so the in-memory re-rank has a candidate window to work
	// with; relevance class is decided by SQL, order within it by Go.
	sqlQuery += " ORDER BY relevance, population DESC LIMIT ?"
	args = append(args, limit*5)

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(sqlQuery), args...)
	if err != nil {
		return nil, eris.Wrapf(err, "repo: search %q", query)
	}
	defer rows.Close() //nolint:errcheck

	type candidate struct {
		city      model.City
		relevance int
	}
	var candidates []candidate
	for rows.Next() {
		var cand candidate
		var asciiName, state, code sql.NullString
		err := rows.Scan(
			&cand.city.ID, &cand.city.Name, &asciiName, &state, &cand.city.Country,
			&code, &cand.city.Latitude, &cand.city.Longitude, &cand.city.Population,
			&cand.relevance,
		)
		if err != nil {
			return nil, eris.Wrap(err, "repo: scan search row")
		}
		cand.city.ASCIIName = asciiName.String
		cand.city.State = state.String
		cand.city.CountryCode = code.String
		candidates = append(candidates, cand)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "repo: search %q iterate", query)
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.relevance != cb.relevance {
			return ca.relevance < cb.relevance
		}
		if loc != nil {
			if sa, sb := sameCountry(ca.city, loc), sameCountry(cb.city, loc); sa != sb {
				return sa
			}
			if loc.Lat != nil && loc.Lng != nil {
				da := haversineKm(*loc.Lat, *loc.Lng, ca.city.Latitude, ca.city.Longitude)
				dbKm := haversineKm(*loc.Lat, *loc.Lng, cb.city.Latitude, cb.city.Longitude)
				if da != dbKm {
					return da < dbKm
				}
			}
		}
		if ca.city.Population != cb.city.Population {
			return ca.city.Population > cb.city.Population
		}
		return ca.city.Name < cb.city.Name
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]model.City, len(candidates))
	for n, cand := range candidates {
		out[n] = cand.city
	}
	return out, nil
}

func sameCountry(c model.City, loc *Location) bool {
	if loc.Country == "" {
		return false
	}
	return strings.EqualFold(c.Country, loc.Country) || strings.EqualFold(c.CountryCode, loc.Country)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCity(row scannable) (*model.City, error) {
	var c model.City
	var asciiName, state, code sql.NullString
	err := row.Scan(
		&c.ID, &c.Name, &asciiName, &state, &c.Country,
		&code, &c.Latitude, &c.Longitude, &c.Population,
	)
	if err != nil {
		return nil, err
	}
	c.ASCIIName = asciiName.String
	c.State = state.String
	c.CountryCode = code.String
	return &c, nil
}
