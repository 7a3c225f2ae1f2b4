package cities

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptekbits/geodash/internal/model"
	"github.com/cryptekbits/geodash/internal/repo"
)

const testCSV = `id,name,ascii_name,state,country,country_code,latitude,longitude,population
1,Paris,Paris,Ile-de-France,France,FR,48.8566,2.3522,2140526
2,Lyon,Lyon,Auvergne-Rhone-Alpes,France,FR,45.7640,4.8357,513275
3,Springfield,Springfield,Illinois,United States,US,39.7817,-89.6501,114394
4,Springfield,Springfield,Missouri,United States,US,37.2089,-93.2923,169176
`

// newTestCityData builds a facade over a temp SQLite database whose data
// directory already contains the dataset, so bootstrap imports locally.
func newTestCityData(t *testing.T, opts ...Option) *CityData {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cities.csv"), []byte(testCSV), 0o644))

	c, err := New(context.Background(), "", append([]Option{WithDataDir(dir)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() }) //nolint:errcheck
	return c
}

func fp(v float64) *float64 { return &v }

func TestNew_BootstrapImports(t *testing.T) {
	c := newTestCityData(t)

	info, err := c.GetTableInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, info.RowCount)
}

func TestNew_WorkerSkipsBootstrap(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cities.csv"), []byte(testCSV), 0o644))

	c, err := New(context.Background(), "", WithDataDir(dir), WithRole(RoleWorker))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() }) //nolint:errcheck

	// Neither schema creation nor import ran: the table does not exist.
	_, err = c.GetTableInfo(context.Background())
	assert.Error(t, err)
}

func TestNew_DegradesWhenNoSourceReachable(t *testing.T) {
	dir := t.TempDir() // no cities.csv
	c, err := New(context.Background(), "",
		WithDataDir(dir),
		WithSourceURL("http://127.0.0.1:1/cities.csv"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() }) //nolint:errcheck

	ctx := context.Background()
	info, err := c.GetTableInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, info.RowCount)

	results, err := c.SearchCities(ctx, "paris", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)

	countries, err := c.GetCountries(ctx)
	require.NoError(t, err)
	assert.Empty(t, countries)
}

func TestNew_ConnectivityErrorSurfaces(t *testing.T) {
	_, err := New(context.Background(), "postgres://nobody@127.0.0.1:1/none")
	assert.Error(t, err)
}

func TestImportCityData_IdempotentWhenPopulated(t *testing.T) {
	c := newTestCityData(t)
	imp := &spyImporter{}
	c.importer = imp

	assert.True(t, c.ImportCityData(context.Background(), "", 0))
	assert.Zero(t, imp.importCalls, "populated store must not be re-imported")
}

func TestImportCityData_ExplicitPathFailureNoRetry(t *testing.T) {
	c := newTestCityData(t)
	sm := &spySchema{}
	imp := &spyImporter{importErr: eris.New("boom")}
	c.schema = sm
	c.importer = imp

	ok := c.ImportCityData(context.Background(), "/nonexistent.csv", 0)
	assert.False(t, ok)
	assert.Equal(t, 1, imp.importCalls)
	assert.Zero(t, imp.downloadCalls, "explicit path must not trigger re-download")
	assert.Zero(t, sm.clearCalls)
}

func TestImportCityData_RetryWithForcedDownload(t *testing.T) {
	c := newTestCityData(t)
	sm := &spySchema{}
	imp := &spyImporter{failFirst: true, importN: 42}
	c.schema = sm
	c.importer = imp

	ok := c.ImportCityData(context.Background(), "", 0)
	assert.True(t, ok)
	assert.Equal(t, 2, imp.importCalls)
	assert.Equal(t, 1, imp.downloadCalls)
	assert.True(t, imp.forcedDownload)
	assert.Equal(t, 1, sm.clearCalls, "partial rows must be cleared before the retry")
}

func TestImportCityData_RetryDownloadFails(t *testing.T) {
	c := newTestCityData(t)
	sm := &spySchema{}
	imp := &spyImporter{importErr: eris.New("parse failed"), downloadErr: eris.New("offline")}
	c.schema = sm
	c.importer = imp

	assert.False(t, c.ImportCityData(context.Background(), "", 0))
	assert.Zero(t, sm.clearCalls, "nothing to clear when the download itself failed")
}

func TestBootstrap_RowCountErrorStillAttemptsImport(t *testing.T) {
	c := newTestCityData(t)
	sm := &spySchema{infoErr: eris.New("corrupt table")}
	imp := &spyImporter{importN: 5}
	c.schema = sm
	c.importer = imp

	require.NoError(t, c.bootstrap(context.Background()))
	assert.Equal(t, 1, sm.ensureCalls)
	assert.Equal(t, 1, imp.importCalls, "import is attempted even when the row count check fails")
}

func TestSearchCities_CachesOnFullArgumentTuple(t *testing.T) {
	c := newTestCityData(t)
	spy := &spyCityRepo{results: []model.City{{ID: 1, Name: "Paris"}}}
	c.cityRepo = spy
	ctx := context.Background()

	opts := SearchOptions{Limit: 10}
	_, err := c.SearchCities(ctx, "paris", opts)
	require.NoError(t, err)
	_, err = c.SearchCities(ctx, "paris", opts)
	require.NoError(t, err)
	assert.Equal(t, 1, spy.searchCalls, "identical arguments must be served from cache")

	// Toggling one optional argument from nil to a value bypasses the cache.
	opts.UserLat = fp(40.0)
	_, err = c.SearchCities(ctx, "paris", opts)
	require.NoError(t, err)
	assert.Equal(t, 2, spy.searchCalls)

	// And 40.0 is itself a new distinct key versus a different value.
	opts.UserLat = fp(41.0)
	_, err = c.SearchCities(ctx, "paris", opts)
	require.NoError(t, err)
	assert.Equal(t, 3, spy.searchCalls)

	// Same tuple again: cached.
	_, err = c.SearchCities(ctx, "paris", opts)
	require.NoError(t, err)
	assert.Equal(t, 3, spy.searchCalls)
}

func TestSearchCities_ResultsComeBackIdentical(t *testing.T) {
	c := newTestCityData(t)
	ctx := context.Background()

	first, err := c.SearchCities(ctx, "springfield", SearchOptions{})
	require.NoError(t, err)
	second, err := c.SearchCities(ctx, "springfield", SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGetCity_CachesHitsAndMisses(t *testing.T) {
	c := newTestCityData(t)
	spy := &spyCityRepo{city: &model.City{ID: 1, Name: "Paris"}}
	c.cityRepo = spy
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := c.GetCity(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, got)
	}
	assert.Equal(t, 1, spy.getCalls)

	// Absent cities are memoized too.
	spy.city = nil
	for i := 0; i < 2; i++ {
		got, err := c.GetCity(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	assert.Equal(t, 2, spy.getCalls)
}

func TestGetCitiesByCoordinates_NotCached(t *testing.T) {
	c := newTestCityData(t)
	spy := &spyGeoRepo{}
	c.geoRepo = spy
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.GetCitiesByCoordinates(ctx, 48.85, 2.35, 25)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, spy.calls, "radius search is deliberately uncached")
}

func TestRegionReads_Cached(t *testing.T) {
	c := newTestCityData(t)
	spy := &spyRegionRepo{countries: []string{"France", "United States"}}
	c.regionRepo = spy
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.GetCountries(ctx)
		require.NoError(t, err)
		_, err = c.GetStates(ctx, "France")
		require.NoError(t, err)
		_, err = c.GetCitiesInState(ctx, "Illinois", "United States")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, spy.countryCalls)
	assert.Equal(t, 1, spy.stateCalls)
	assert.Equal(t, 1, spy.cityCalls)

	// A different country is a different key.
	_, err := c.GetStates(ctx, "Japan")
	require.NoError(t, err)
	assert.Equal(t, 2, spy.stateCalls)
}

func TestRegionHierarchy_Consistency(t *testing.T) {
	c := newTestCityData(t)
	ctx := context.Background()

	seen := map[int]bool{}
	countries, err := c.GetCountries(ctx)
	require.NoError(t, err)
	for _, country := range countries {
		states, err := c.GetStates(ctx, country)
		require.NoError(t, err)
		for _, state := range states {
			inState, err := c.GetCitiesInState(ctx, state, country)
			require.NoError(t, err)
			for _, city := range inState {
				assert.False(t, seen[city.ID], "city %d appeared twice", city.ID)
				seen[city.ID] = true
			}
		}
	}
	assert.Len(t, seen, 4)
}

func TestClose_NonPersistent(t *testing.T) {
	c := newTestCityData(t)
	ctx := context.Background()

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "close must be idempotent")

	_, err := c.GetTableInfo(ctx)
	assert.Error(t, err, "reads after close must fail with a connectivity error")
}

func TestClose_PersistentIsNoOp(t *testing.T) {
	c := newTestCityData(t, WithPersistent(true))
	ctx := context.Background()

	require.NoError(t, c.Close())

	info, err := c.GetTableInfo(ctx)
	require.NoError(t, err, "persistent handles stay open across Close")
	assert.Equal(t, 4, info.RowCount)
}

func TestWith_ReleasesOnError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cities.csv"), []byte(testCSV), 0o644))

	var captured *CityData
	err := With(context.Background(), "", func(c *CityData) error {
		captured = c
		return eris.New("caller failure")
	}, WithDataDir(dir))
	require.Error(t, err)

	_, err = captured.GetTableInfo(context.Background())
	assert.Error(t, err, "handle must be released even when fn fails")
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"worker", RoleWorker},
		{"MASTER", RoleMaster},
		{"standalone", RoleStandalone},
		{"", RoleStandalone},
		{"gibberish", RoleStandalone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseRole(tt.in), tt.in)
	}
}

// --- spies ---

type spyCityRepo struct {
	searchCalls int
	getCalls    int
	results     []model.City
	city        *model.City
}

func (s *spyCityRepo) Search(_ context.Context, _ string, _ int, _ string, _ *repo.Location) ([]model.City, error) {
	s.searchCalls++
	return s.results, nil
}

func (s *spyCityRepo) GetByID(_ context.Context, _ int) (*model.City, error) {
	s.getCalls++
	return s.city, nil
}

type spyGeoRepo struct {
	calls int
}

func (s *spyGeoRepo) FindByCoordinates(_ context.Context, _, _, _ float64) ([]model.City, error) {
	s.calls++
	return nil, nil
}

type spyRegionRepo struct {
	countryCalls int
	stateCalls   int
	cityCalls    int
	countries    []string
}

func (s *spyRegionRepo) GetCountries(_ context.Context) ([]string, error) {
	s.countryCalls++
	return s.countries, nil
}

func (s *spyRegionRepo) GetStates(_ context.Context, _ string) ([]string, error) {
	s.stateCalls++
	return nil, nil
}

func (s *spyRegionRepo) GetCitiesInState(_ context.Context, _, _ string) ([]model.City, error) {
	s.cityCalls++
	return nil, nil
}

type spySchema struct {
	ensureCalls int
	infoCalls   int
	clearCalls  int
	rowCount    int
	infoErr     error
}

func (s *spySchema) EnsureSchema(_ context.Context) error {
	s.ensureCalls++
	return nil
}

func (s *spySchema) TableInfo(_ context.Context) (*model.TableInfo, error) {
	s.infoCalls++
	if s.infoErr != nil {
		return nil, s.infoErr
	}
	return &model.TableInfo{RowCount: s.rowCount}, nil
}

func (s *spySchema) Clear(_ context.Context) error {
	s.clearCalls++
	s.rowCount = 0
	return nil
}

type spyImporter struct {
	importCalls    int
	downloadCalls  int
	importN        int
	importErr      error
	downloadErr    error
	failFirst      bool
	forcedDownload bool
}

func (s *spyImporter) ImportFromCSV(_ context.Context, _ string, _ int, _ bool) (int, error) {
	s.importCalls++
	if s.importErr != nil {
		return 0, s.importErr
	}
	if s.failFirst && s.importCalls == 1 {
		return 0, eris.New("transient failure")
	}
	return s.importN, nil
}

func (s *spyImporter) Download(_ context.Context, force bool) (string, error) {
	s.downloadCalls++
	s.forcedDownload = force
	if s.downloadErr != nil {
		return "", s.downloadErr
	}
	return "/tmp/cities.csv", nil
}
