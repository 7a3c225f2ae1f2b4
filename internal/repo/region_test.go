package repo

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCountries(t *testing.T) {
	r := NewRegionRepo(seedTestDB(t, testCities))

	got, err := r.GetCountries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"France", "Italy", "Japan", "United States"}, got)
}

func TestGetStates(t *testing.T) {
	r := NewRegionRepo(seedTestDB(t, testCities))

	got, err := r.GetStates(context.Background(), "United States")
	require.NoError(t, err)
	assert.Equal(t, []string{"Illinois", "Missouri", "Texas"}, got)
}

func TestGetStates_UnknownCountry(t *testing.T) {
	r := NewRegionRepo(seedTestDB(t, testCities))

	got, err := r.GetStates(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetCitiesInState(t *testing.T) {
	r := NewRegionRepo(seedTestDB(t, testCities))

	got, err := r.GetCitiesInState(context.Background(), "Texas", "United States")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Paris", got[0].Name)
}

// Walking countries -> states -> cities reconstructs the seeded set exactly.
func TestHierarchyRoundTrip(t *testing.T) {
	r := NewRegionRepo(seedTestDB(t, testCities))
	ctx := context.Background()

	countries, err := r.GetCountries(ctx)
	require.NoError(t, err)

	var ids []int
	for _, country := range countries {
		states, err := r.GetStates(ctx, country)
		require.NoError(t, err)
		for _, state := range states {
			cities, err := r.GetCitiesInState(ctx, state, country)
			require.NoError(t, err)
			for _, c := range cities {
				ids = append(ids, c.ID)
			}
		}
	}

	sort.Ints(ids)
	want := make([]int, 0, len(testCities))
	for _, c := range testCities {
		want = append(want, c.ID)
	}
	assert.Equal(t, want, ids)
}
