package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkale/aeris/internal/cache"
	"github.com/rkale/aeris/internal/model"
)

type fakeJourneySearcher struct {
	journeys []model.Journey
	calls    int
}

func (f *fakeJourneySearcher) SearchActive(_ context.Context, _, _ string, _ time.Time) ([]model.Journey, error) {
	f.calls++
	return f.journeys, nil
}

type fakeSeatCounter struct {
	counts map[string]int
}

func (f *fakeSeatCounter) CountAvailable(_ context.Context, flightIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(flightIDs))
	for _, id := range flightIDs {
		out[id] = f.counts[id]
	}
	return out, nil
}

type fakeSearchCache struct {
	entries map[string][]model.Journey
	sets    int
}

func newFakeSearchCache() *fakeSearchCache {
	return &fakeSearchCache{entries: make(map[string][]model.Journey)}
}

func (f *fakeSearchCache) Get(_ context.Context, key string) ([]model.Journey, error) {
	journeys, ok := f.entries[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return journeys, nil
}

func (f *fakeSearchCache) Set(_ context.Context, key string, journeys []model.Journey) error {
	f.entries[key] = journeys
	f.sets++
	return nil
}

var searchDay = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

// searchJourney builds a direct test journey with the given price and
// duration in minutes.
func searchJourney(id, flightID string, price float64, durationMin int) model.Journey {
	return model.Journey{
		ID:          id,
		Legs:        []model.JourneyLeg{{FlightID: flightID, Order: 1}},
		Source:      "DEL",
		Destination: "BOM",
		DepartureAt: searchDay.Add(6 * time.Hour),
		ArrivalAt:   searchDay.Add(6*time.Hour + time.Duration(durationMin)*time.Minute),
		TotalPrice:  price,
		Status:      model.JourneyActive,
	}
}

func baseSearchRequest() *model.SearchRequest {
	return &model.SearchRequest{
		Source:        "DEL",
		Destination:   "BOM",
		DepartureDate: searchDay,
		Passengers:    1,
	}
}

func TestSearch_SortByPriceIsDeterministic(t *testing.T) {
	// Two journeys tie on price; journey id breaks the tie, so repeated
	// searches page identically.
	searcher := &fakeJourneySearcher{journeys: []model.Journey{
		searchJourney("J-b", "F1", 100, 180),
		searchJourney("J-c", "F2", 200, 120),
		searchJourney("J-a", "F3", 100, 150),
	}}
	counter := &fakeSeatCounter{counts: map[string]int{"F1": 5, "F2": 5, "F3": 5}}

	svc := NewSearchService(searcher, counter, newFakeSearchCache(), testBookingCfg)
	req := baseSearchRequest()
	req.SortBy = model.SortByPrice

	results, total, err := svc.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	ids := []string{results[0].Journey.ID, results[1].Journey.ID, results[2].Journey.ID}
	assert.Equal(t, []string{"J-a", "J-b", "J-c"}, ids)
}

func TestSearch_SortByDuration(t *testing.T) {
	searcher := &fakeJourneySearcher{journeys: []model.Journey{
		searchJourney("J1", "F1", 100, 180),
		searchJourney("J2", "F2", 200, 120),
		searchJourney("J3", "F3", 100, 150),
	}}
	counter := &fakeSeatCounter{counts: map[string]int{"F1": 5, "F2": 5, "F3": 5}}

	svc := NewSearchService(searcher, counter, newFakeSearchCache(), testBookingCfg)
	req := baseSearchRequest()
	req.SortBy = model.SortByDuration

	results, _, err := svc.Search(context.Background(), req)
	require.NoError(t, err)

	ids := []string{results[0].Journey.ID, results[1].Journey.ID, results[2].Journey.ID}
	assert.Equal(t, []string{"J2", "J3", "J1"}, ids)
}

func TestSearch_AvailabilityIsTightestLeg(t *testing.T) {
	twoLeg := model.Journey{
		ID: "J1",
		Legs: []model.JourneyLeg{
			{FlightID: "F1", Order: 1},
			{FlightID: "F2", Order: 2},
		},
		Source:      "DEL",
		Destination: "GOI",
		DepartureAt: searchDay.Add(6 * time.Hour),
		ArrivalAt:   searchDay.Add(11 * time.Hour),
		TotalPrice:  300,
		Status:      model.JourneyActive,
	}
	searcher := &fakeJourneySearcher{journeys: []model.Journey{twoLeg}}
	counter := &fakeSeatCounter{counts: map[string]int{"F1": 8, "F2": 3}}

	svc := NewSearchService(searcher, counter, newFakeSearchCache(), testBookingCfg)

	req := baseSearchRequest()
	req.Destination = "GOI"
	req.Passengers = 3
	results, total, err := svc.Search(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, 3, results[0].AvailableSeats)

	// One more passenger than the tightest leg can carry.
	req.Passengers = 4
	results, total, err = svc.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, results)
}

func TestSearch_CacheHitSkipsDatabase(t *testing.T) {
	searcher := &fakeJourneySearcher{journeys: []model.Journey{
		searchJourney("J1", "F1", 100, 120),
	}}
	counter := &fakeSeatCounter{counts: map[string]int{"F1": 5}}
	searchCache := newFakeSearchCache()

	svc := NewSearchService(searcher, counter, searchCache, testBookingCfg)
	req := baseSearchRequest()

	// First search misses the cache and populates it.
	_, _, err := svc.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, searcher.calls)
	assert.Equal(t, 1, searchCache.sets)

	// Second search is served from the cache.
	_, _, err = svc.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, searcher.calls)
}

func TestSearch_InvalidationSurfacesNewJourney(t *testing.T) {
	searcher := &fakeJourneySearcher{journeys: []model.Journey{
		searchJourney("J1", "F1", 100, 120),
	}}
	counter := &fakeSeatCounter{counts: map[string]int{"F1": 5, "F2": 5}}
	searchCache := newFakeSearchCache()

	svc := NewSearchService(searcher, counter, searchCache, testBookingCfg)
	req := baseSearchRequest()

	// Warm the cache, then a precomputed journey lands on the route.
	_, total, err := svc.Search(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, total)

	searcher.journeys = append(searcher.journeys, searchJourney("J2", "F2", 90, 110))

	// Still cached: the new journey is invisible until TTL or invalidation.
	_, total, err = svc.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	// The precomputer's route invalidation makes it visible immediately.
	delete(searchCache.entries, cache.Key("DEL", "BOM", searchDay))
	_, total, err = svc.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestSearch_AvailabilityIsLiveDespiteCache(t *testing.T) {
	searcher := &fakeJourneySearcher{journeys: []model.Journey{
		searchJourney("J1", "F1", 100, 120),
	}}
	counter := &fakeSeatCounter{counts: map[string]int{"F1": 5}}
	svc := NewSearchService(searcher, counter, newFakeSearchCache(), testBookingCfg)
	req := baseSearchRequest()

	results, _, err := svc.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 5, results[0].AvailableSeats)

	// Seats sell out between requests; the cached catalogue entry must not
	// hide that.
	counter.counts["F1"] = 0
	results, total, err := svc.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, results)
}

func TestSearch_LimitTruncatesButCountsAll(t *testing.T) {
	searcher := &fakeJourneySearcher{journeys: []model.Journey{
		searchJourney("J1", "F1", 100, 120),
		searchJourney("J2", "F2", 110, 120),
		searchJourney("J3", "F3", 120, 120),
	}}
	counter := &fakeSeatCounter{counts: map[string]int{"F1": 5, "F2": 5, "F3": 5}}

	svc := NewSearchService(searcher, counter, newFakeSearchCache(), testBookingCfg)
	req := baseSearchRequest()
	req.SortBy = model.SortByPrice
	req.Limit = 2

	results, total, err := svc.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, results, 2)
	assert.Equal(t, "J1", results[0].Journey.ID)
}

func TestSearch_PassengerCapFollowsBookingConfig(t *testing.T) {
	searcher := &fakeJourneySearcher{journeys: []model.Journey{
		searchJourney("J1", "F1", 100, 120),
	}}
	counter := &fakeSeatCounter{counts: map[string]int{"F1": 6}}

	wideCfg := testBookingCfg
	wideCfg.MaxSeatsPerBooking = 4
	svc := NewSearchService(searcher, counter, newFakeSearchCache(), wideCfg)

	// At the configured cap the search goes through.
	req := baseSearchRequest()
	req.Passengers = 4
	_, total, err := svc.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	// One past the cap is rejected, even though the default cap would allow it.
	req = baseSearchRequest()
	req.Passengers = 5
	_, _, err = svc.Search(context.Background(), req)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSearch_Validation(t *testing.T) {
	svc := NewSearchService(&fakeJourneySearcher{}, &fakeSeatCounter{}, newFakeSearchCache(), testBookingCfg)

	cases := []struct {
		name   string
		mutate func(*model.SearchRequest)
	}{
		{"bad source", func(r *model.SearchRequest) { r.Source = "DELHI" }},
		{"lowercase destination", func(r *model.SearchRequest) { r.Destination = "bom" }},
		{"same airports", func(r *model.SearchRequest) { r.Destination = "DEL" }},
		{"zero date", func(r *model.SearchRequest) { r.DepartureDate = time.Time{} }},
		{"zero passengers", func(r *model.SearchRequest) { r.Passengers = 0 }},
		{"too many passengers", func(r *model.SearchRequest) { r.Passengers = 11 }},
		{"bad sort key", func(r *model.SearchRequest) { r.SortBy = "cheapest" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := baseSearchRequest()
			tc.mutate(req)
			_, _, err := svc.Search(context.Background(), req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}
