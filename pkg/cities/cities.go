// Package cities is the single entry point over the city dataset. It owns the
// database handle, bootstraps schema and data exactly once on the designated
// process, and serves memoized read queries through three repositories.
package cities

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cryptekbits/geodash/internal/db"
	"github.com/cryptekbits/geodash/internal/ingest"
	"github.com/cryptekbits/geodash/internal/model"
	"github.com/cryptekbits/geodash/internal/repo"
	"github.com/cryptekbits/geodash/internal/schema"
)

// Role decides who performs bootstrap. Exactly one cooperating process should
// be Master (or Standalone); workers assume schema and data already exist.
// The role is resolved by the deployment layer and passed in explicitly.
type Role string

const (
	RoleStandalone Role = "standalone"
	RoleMaster     Role = "master"
	RoleWorker     Role = "worker"
)

// ParseRole maps a configuration string to a Role, defaulting to standalone.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleMaster:
		return RoleMaster
	case RoleWorker:
		return RoleWorker
	default:
		return RoleStandalone
	}
}

// SearchOptions are the optional arguments of SearchCities. Unset pointer
// fields are part of the cache identity: nil is distinct from any value.
type SearchOptions struct {
	Limit       int    // max results, default 10
	Country     string // restrict results to this country
	UserLat     *float64
	UserLng     *float64
	UserCountry string
}

// Seams the facade drives; satisfied by internal/repo, internal/schema and
// internal/ingest, and by spies in tests.
type cityRepository interface {
	GetByID(ctx context.Context, id int) (*model.City, error)
	Search(ctx context.Context, query string, limit int, country string, loc *repo.Location) ([]model.City, error)
}

type geoRepository interface {
	FindByCoordinates(ctx context.Context, lat, lng, radiusKm float64) ([]model.City, error)
}

type regionRepository interface {
	GetCountries(ctx context.Context) ([]string, error)
	GetStates(ctx context.Context, country string) ([]string, error)
	GetCitiesInState(ctx context.Context, state, country string) ([]model.City, error)
}

type schemaManager interface {
	EnsureSchema(ctx context.Context) error
	TableInfo(ctx context.Context) (*model.TableInfo, error)
	Clear(ctx context.Context) error
}

type dataImporter interface {
	ImportFromCSV(ctx context.Context, csvPath string, batchSize int, downloadIfMissing bool) (int, error)
	Download(ctx context.Context, force bool) (string, error)
}

// CityData is the facade over the city dataset. One instance owns one
// database handle for its lifetime.
type CityData struct {
	db         *db.DB
	schema     schemaManager
	importer   dataImporter
	cityRepo   cityRepository
	geoRepo    geoRepository
	regionRepo regionRepository

	caches *methodCaches

	role       Role
	persistent bool
	batchSize  int

	mu     sync.Mutex
	closed bool
}

// Option configures a CityData instance.
type Option func(*options)

type options struct {
	role       Role
	persistent bool
	dataDir    string
	sourceURL  string
	batchSize  int
}

// WithRole sets the bootstrap role. Workers skip schema checks and import.
func WithRole(r Role) Option {
	return func(o *options) { o.role = r }
}

// WithPersistent marks the handle long-lived: Close becomes a no-op and the
// connection is released only at process exit.
func WithPersistent(persistent bool) Option {
	return func(o *options) { o.persistent = persistent }
}

// WithDataDir sets the directory holding the default database file and the
// downloaded dataset.
func WithDataDir(dir string) Option {
	return func(o *options) { o.dataDir = dir }
}

// WithSourceURL overrides where the city CSV is downloaded from.
func WithSourceURL(url string) Option {
	return func(o *options) { o.sourceURL = url }
}

// WithBatchSize sets the default import batch size.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// New connects to target (empty means cities.db inside the data directory)
// and, unless the role is Worker, bootstraps: ensure schema, then import when
// the table is empty. A failed or empty import never fails construction; the
// facade degrades to an empty, queryable state. Connectivity errors do fail
// construction since nothing can be served without a handle.
func New(ctx context.Context, target string, opts ...Option) (*CityData, error) {
	o := &options{
		role:      RoleStandalone,
		dataDir:   "./data",
		batchSize: ingest.DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if target == "" {
		if err := os.MkdirAll(o.dataDir, 0o755); err != nil {
			return nil, eris.Wrap(err, "cities: create data dir")
		}
		target = filepath.Join(o.dataDir, "cities.db")
	}

	log := zap.L().With(
		zap.String("component", "cities"),
		zap.String("role", string(o.role)),
	)
	log.Info("initializing city data facade",
		zap.String("target", target),
		zap.Bool("persistent", o.persistent),
	)

	handle, err := db.Open(target)
	if err != nil {
		return nil, eris.Wrap(err, "cities: open database")
	}

	c := &CityData{
		db:         handle,
		schema:     schema.NewManager(handle),
		importer:   ingest.NewImporter(handle, o.dataDir, o.sourceURL),
		cityRepo:   repo.NewCityRepo(handle),
		geoRepo:    repo.NewGeoRepo(handle),
		regionRepo: repo.NewRegionRepo(handle),
		caches:     newMethodCaches(),
		role:       o.role,
		persistent: o.persistent,
		batchSize:  o.batchSize,
	}

	if c.role != RoleWorker {
		if err := c.bootstrap(ctx); err != nil {
			_ = handle.Close()
			return nil, err
		}
	}
	return c, nil
}

// With runs fn against a freshly opened CityData and always releases it,
// on normal and error return alike.
func With(ctx context.Context, target string, fn func(*CityData) error, opts ...Option) error {
	c, err := New(ctx, target, opts...)
	if err != nil {
		return err
	}
	defer c.Close() //nolint:errcheck
	return fn(c)
}

// bootstrap ensures the schema and imports data when the table is empty.
// Only schema creation failure is fatal; everything else degrades with a log.
func (c *CityData) bootstrap(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "cities"))

	if err := c.schema.EnsureSchema(ctx); err != nil {
		return eris.Wrap(err, "cities: ensure schema")
	}

	info, err := c.schema.TableInfo(ctx)
	if err != nil {
		log.Warn("row count check failed, attempting import anyway", zap.Error(err))
		c.ImportCityData(ctx, "", c.batchSize)
		return nil
	}
	if info.RowCount == 0 {
		log.Info("database is empty, importing city data")
		if !c.ImportCityData(ctx, "", c.batchSize) {
			log.Warn("initial import failed, continuing with empty dataset")
		}
	}
	return nil
}

// ImportCityData imports the city dataset from csvPath (empty means discover
// or download a default source). It is an idempotent no-op when rows already
// exist. When the first attempt fails and no explicit path was given, it
// forces a re-download, clears any partial rows, and retries once. Failures
// are logged and folded into the boolean; this never returns an error.
func (c *CityData) ImportCityData(ctx context.Context, csvPath string, batchSize int) bool {
	log := zap.L().With(zap.String("component", "cities"))
	if batchSize <= 0 {
		batchSize = c.batchSize
	}

	if info, err := c.schema.TableInfo(ctx); err == nil && info.RowCount > 0 {
		log.Info("database already populated, skipping import", zap.Int("rows", info.RowCount))
		return true
	}

	n, err := c.importer.ImportFromCSV(ctx, csvPath, batchSize, true)
	if err == nil {
		return n > 0
	}
	log.Error("city data import failed", zap.Error(err))

	if csvPath != "" {
		return false
	}

	// Recovery path: fresh download, drop whatever half-import is there,
	// try once more.
	path, err := c.importer.Download(ctx, true)
	if err != nil {
		log.Error("forced re-download failed", zap.Error(err))
		return false
	}
	if err := c.schema.Clear(ctx); err != nil {
		log.Error("clearing table before retry failed", zap.Error(err))
		return false
	}
	n, err = c.importer.ImportFromCSV(ctx, path, batchSize, false)
	if err != nil {
		log.Error("import retry failed", zap.Error(err))
		return false
	}
	log.Info("import retry succeeded", zap.Int("rows", n))
	return n > 0
}

// SearchCities finds cities matching query, ranked by relevance and biased
// toward the user's location when provided. Results are memoized on the full
// argument tuple.
func (c *CityData) SearchCities(ctx context.Context, query string, opts SearchOptions) ([]model.City, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	key := tupleKey(query, strconv.Itoa(limit), opts.Country,
		floatArg(opts.UserLat), floatArg(opts.UserLng), opts.UserCountry)
	if cached, ok := c.caches.search.Get(key); ok {
		return cached, nil
	}

	var loc *repo.Location
	if opts.UserLat != nil || opts.UserLng != nil || opts.UserCountry != "" {
		loc = &repo.Location{Lat: opts.UserLat, Lng: opts.UserLng, Country: opts.UserCountry}
	}

	results, err := c.cityRepo.Search(ctx, query, limit, opts.Country, loc)
	if err != nil {
		return nil, err
	}
	c.caches.search.Add(key, results)
	return results, nil
}

// GetCity returns the city with the given id, or nil when unknown.
// Both outcomes are memoized.
func (c *CityData) GetCity(ctx context.Context, id int) (*model.City, error) {
	if cached, ok := c.caches.city.Get(id); ok {
		return cached, nil
	}
	city, err := c.cityRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.caches.city.Add(id, city)
	return city, nil
}

// GetCitiesByCoordinates returns cities within radiusKm of (lat, lng),
// ordered by ascending distance. Radius queries vary too much to memoize
// usefully, so this path always hits the repository.
func (c *CityData) GetCitiesByCoordinates(ctx context.Context, lat, lng, radiusKm float64) ([]model.City, error) {
	return c.geoRepo.FindByCoordinates(ctx, lat, lng, radiusKm)
}

// GetCountries returns every country, sorted.
func (c *CityData) GetCountries(ctx context.Context) ([]string, error) {
	if cached, ok := c.caches.countries.Get(""); ok {
		return cached, nil
	}
	countries, err := c.regionRepo.GetCountries(ctx)
	if err != nil {
		return nil, err
	}
	c.caches.countries.Add("", countries)
	return countries, nil
}

// GetStates returns the states of a country, sorted.
func (c *CityData) GetStates(ctx context.Context, country string) ([]string, error) {
	if cached, ok := c.caches.states.Get(country); ok {
		return cached, nil
	}
	states, err := c.regionRepo.GetStates(ctx, country)
	if err != nil {
		return nil, err
	}
	c.caches.states.Add(country, states)
	return states, nil
}

// GetCitiesInState returns the cities of a state, sorted by name.
func (c *CityData) GetCitiesInState(ctx context.Context, state, country string) ([]model.City, error) {
	key := tupleKey(state, country)
	if cached, ok := c.caches.stateCities.Get(key); ok {
		return cached, nil
	}
	citiesInState, err := c.regionRepo.GetCitiesInState(ctx, state, country)
	if err != nil {
		return nil, err
	}
	c.caches.stateCities.Add(key, citiesInState)
	return citiesInState, nil
}

// GetTableInfo reports the city_data column layout and row count.
func (c *CityData) GetTableInfo(ctx context.Context) (*model.TableInfo, error) {
	return c.schema.TableInfo(ctx)
}

// Close releases the database handle. Persistent instances keep their handle
// until process exit, so Close is a no-op for them. Safe to call repeatedly.
func (c *CityData) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.persistent || c.closed || c.db == nil {
		return nil
	}
	c.closed = true
	zap.L().Debug("closing city database handle")
	return eris.Wrap(c.db.Close(), "cities: close handle")
}
