package repo

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/cryptekbits/geodash/internal/db"
	"github.com/cryptekbits/geodash/internal/model"
)

const earthRadiusKm = 6371.0

// kmPerDegreeLat is close enough for a bounding-box pre-filter.
const kmPerDegreeLat = 111.045

// GeoRepo answers radius-bounded geographic queries.
type GeoRepo struct {
	db *db.DB
}

// NewGeoRepo returns a GeoRepo over the shared handle.
func NewGeoRepo(handle *db.DB) *GeoRepo {
	return &GeoRepo{db: handle}
}

// FindByCoordinates returns every city within radiusKm of (lat, lng),
// ordered by ascending distance. A coarse bounding box narrows the SQL scan;
// the exact haversine cut happens in memory.
func (r *GeoRepo) FindByCoordinates(ctx context.Context, lat, lng, radiusKm float64) ([]model.City, error) {
	if radiusKm <= 0 {
		radiusKm = 10
	}

	latDelta := radiusKm / kmPerDegreeLat
	query := "SELECT " + cityColumns + " FROM city_data WHERE latitude BETWEEN ? AND ?"
	args := []any{lat - latDelta, lat + latDelta}

	// Longitude degrees shrink with latitude; near the poles the box wraps
	// the whole globe and the longitude filter is dropped.
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat > 1e-6 {
		lngDelta := radiusKm / (kmPerDegreeLat * cosLat)
		if lngDelta < 180 {
			query += " AND longitude BETWEEN ? AND ?"
			args = append(args, lng-lngDelta, lng+lngDelta)
		}
	}

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, eris.Wrap(err, "repo: radius query")
	}
	defer rows.Close() //nolint:errcheck

	type hit struct {
		city model.City
		km   float64
	}
	var hits []hit
	for rows.Next() {
		c, err := scanCity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "repo: scan radius row")
		}
		km := haversineKm(lat, lng, c.Latitude, c.Longitude)
		if km <= radiusKm {
			hits = append(hits, hit{city: *c, km: km})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "repo: radius iterate")
	}

	sort.Slice(hits, func(a, b int) bool { return hits[a].km < hits[b].km })

	out := make([]model.City, len(hits))
	for n, h := range hits {
		out[n] = h.city
	}
	return out, nil
}

// haversineKm is the great-circle distance between two points in kilometers.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180
	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
