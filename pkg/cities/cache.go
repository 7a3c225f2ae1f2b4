package cities

import (
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cryptekbits/geodash/internal/model"
)

// Per-method cache capacities. City records never change after import, so
// entries are never invalidated; capacity is the only bound.
const (
	cityCacheSize        = 1000
	searchCacheSize      = 5000
	stateCitiesCacheSize = 500
	statesCacheSize      = 100
	countriesCacheSize   = 1
)

// methodCaches holds one bounded LRU per cached read operation.
type methodCaches struct {
	city        *lru.Cache[int, *model.City]
	search      *lru.Cache[string, []model.City]
	countries   *lru.Cache[string, []string]
	states      *lru.Cache[string, []string]
	stateCities *lru.Cache[string, []model.City]
}

func newMethodCaches() *methodCaches {
	// lru.New only fails for non-positive sizes; all sizes here are
	// compile-time constants.
	city, _ := lru.New[int, *model.City](cityCacheSize)
	search, _ := lru.New[string, []model.City](searchCacheSize)
	countries, _ := lru.New[string, []string](countriesCacheSize)
	states, _ := lru.New[string, []string](statesCacheSize)
	stateCities, _ := lru.New[string, []model.City](stateCitiesCacheSize)
	return &methodCaches{
		city:        city,
		search:      search,
		countries:   countries,
		states:      states,
		stateCities: stateCities,
	}
}

// keySep separates tuple elements; it never appears in queries or names.
const keySep = "\x1f"

// nilMark keys an unset optional argument. It is distinct from every
// formatted concrete value, so nil and 0.0 never collide.
const nilMark = "\x00"

// tupleKey joins the full ordered argument tuple of a cached call.
func tupleKey(parts ...string) string {
	return strings.Join(parts, keySep)
}

func floatArg(f *float64) string {
	if f == nil {
		return nilMark
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
