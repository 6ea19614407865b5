package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkale/aeris/internal/model"
	"github.com/rkale/aeris/internal/repository"
)

var testRules = ConnectionRules{
	MinLayover: 30 * time.Minute,
	MaxLayover: 4 * time.Hour,
	MaxSpan:    24 * time.Hour,
	MaxLegs:    3,
}

// day0 is an arbitrary fixed departure day for test flights.
var day0 = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

// flt builds a test flight departing/arriving at hour offsets from day0.
func flt(id, src, dst string, depHours, arrHours float64) model.Flight {
	return model.Flight{
		ID:          id,
		Source:      src,
		Destination: dst,
		DepartureAt: day0.Add(time.Duration(depHours * float64(time.Hour))),
		ArrivalAt:   day0.Add(time.Duration(arrHours * float64(time.Hour))),
		Price:       100,
		Status:      model.FlightActive,
	}
}

func signatures(journeys []*model.Journey) []string {
	sigs := make([]string, len(journeys))
	for i, j := range journeys {
		sigs[i] = j.Signature()
	}
	return sigs
}

func TestEnumerateJourneys_SingleLeg(t *testing.T) {
	f := flt("F1", "DEL", "BOM", 6, 8)

	journeys := EnumerateJourneys(&f, []model.Flight{f}, testRules)

	require.Len(t, journeys, 1)
	assert.Equal(t, "F1", journeys[0].Signature())
	assert.Equal(t, "DEL", journeys[0].Source)
	assert.Equal(t, "BOM", journeys[0].Destination)
	assert.Equal(t, float64(100), journeys[0].TotalPrice)
	assert.Equal(t, model.JourneyActive, journeys[0].Status)
}

func TestEnumerateJourneys_ForwardConnection(t *testing.T) {
	f := flt("F1", "DEL", "BOM", 6, 8)
	g := flt("F2", "BOM", "GOI", 9, 10.5) // 1h layover

	journeys := EnumerateJourneys(&f, []model.Flight{f, g}, testRules)

	assert.ElementsMatch(t, []string{"F1", "F1>F2"}, signatures(journeys))
}

func TestEnumerateJourneys_BackwardConnection(t *testing.T) {
	// The new flight is the SECOND leg: an earlier flight feeds into it.
	g := flt("F1", "DEL", "BOM", 6, 8)
	f := flt("F2", "BOM", "GOI", 9, 10.5)

	journeys := EnumerateJourneys(&f, []model.Flight{g, f}, testRules)

	assert.ElementsMatch(t, []string{"F2", "F1>F2"}, signatures(journeys))
}

func TestEnumerateJourneys_LayoverWindow(t *testing.T) {
	f := flt("F1", "DEL", "BOM", 6, 8)

	cases := []struct {
		name      string
		departure float64 // hours after day0
		connects  bool
	}{
		{"below minimum", 8.25, false}, // 15m
		{"exactly minimum", 8.5, true}, // 30m
		{"mid window", 10, true},       // 2h
		{"exactly maximum", 12, true},  // 4h
		{"above maximum", 12.5, false}, // 4h30m
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := flt("F2", "BOM", "GOI", tc.departure, tc.departure+1)
			journeys := EnumerateJourneys(&f, []model.Flight{f, g}, testRules)

			if tc.connects {
				assert.Contains(t, signatures(journeys), "F1>F2")
			} else {
				assert.NotContains(t, signatures(journeys), "F1>F2")
			}
		})
	}
}

func TestEnumerateJourneys_RejectsRoundTrips(t *testing.T) {
	// DEL→BOM→DEL closes a loop; the pair must not become a journey.
	f := flt("F1", "DEL", "BOM", 6, 8)
	g := flt("F2", "BOM", "DEL", 9, 11)

	journeys := EnumerateJourneys(&f, []model.Flight{f, g}, testRules)

	assert.ElementsMatch(t, []string{"F1"}, signatures(journeys))
}

func TestEnumerateJourneys_MaxLegs(t *testing.T) {
	f1 := flt("F1", "DEL", "BOM", 1, 2)
	f2 := flt("F2", "BOM", "GOI", 3, 4)
	f3 := flt("F3", "GOI", "MAA", 5, 6)
	f4 := flt("F4", "MAA", "CCU", 7, 8)
	all := []model.Flight{f1, f2, f3, f4}

	journeys := EnumerateJourneys(&f1, all, testRules)

	sigs := signatures(journeys)
	assert.Contains(t, sigs, "F1>F2>F3")
	assert.NotContains(t, sigs, "F1>F2>F3>F4")
}

func TestEnumerateJourneys_MaxSpan(t *testing.T) {
	tight := ConnectionRules{
		MinLayover: 30 * time.Minute,
		MaxLayover: 4 * time.Hour,
		MaxSpan:    5 * time.Hour,
		MaxLegs:    3,
	}

	f := flt("F1", "DEL", "BOM", 0, 2)
	g := flt("F2", "BOM", "GOI", 4, 5.5) // total span 5.5h

	journeys := EnumerateJourneys(&f, []model.Flight{f, g}, tight)

	assert.NotContains(t, signatures(journeys), "F1>F2")
}

func TestEnumerateJourneys_OrderIndependent(t *testing.T) {
	f := flt("F1", "DEL", "BOM", 6, 8)
	g := flt("F2", "BOM", "GOI", 9, 10.5)
	h := flt("F3", "GOI", "MAA", 11.5, 13)

	forward := EnumerateJourneys(&f, []model.Flight{f, g, h}, testRules)
	reversed := EnumerateJourneys(&f, []model.Flight{h, g, f}, testRules)

	assert.ElementsMatch(t, signatures(forward), signatures(reversed))
}

// ─── Process ────────────────────────────────────────────────

type fakeFlightSource struct {
	flights map[string]model.Flight
	sameDay []model.Flight
}

func (f *fakeFlightSource) GetFlight(_ context.Context, id string) (*model.Flight, error) {
	flight, ok := f.flights[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &flight, nil
}

func (f *fakeFlightSource) ListActiveByDepartureDay(_ context.Context, _ time.Time) ([]model.Flight, error) {
	return f.sameDay, nil
}

// fakeJourneyWriter mimics the signature-conflict semantics of the real
// repository: a second insert of the same signature is a no-op.
type fakeJourneyWriter struct {
	inserted map[string]bool
}

func (f *fakeJourneyWriter) InsertJourney(_ context.Context, j *model.Journey) (bool, error) {
	sig := j.Signature()
	if f.inserted[sig] {
		return false, nil
	}
	f.inserted[sig] = true
	return true, nil
}

type fakeInvalidator struct {
	routes [][2]string
}

func (f *fakeInvalidator) InvalidateRoute(_ context.Context, src, dst string) error {
	f.routes = append(f.routes, [2]string{src, dst})
	return nil
}

func TestProcess_CreatesJourneysAndInvalidatesRoutes(t *testing.T) {
	f1 := flt("F1", "DEL", "BOM", 6, 8)
	f2 := flt("F2", "BOM", "GOI", 9, 10.5)

	flights := &fakeFlightSource{
		flights: map[string]model.Flight{"F1": f1, "F2": f2},
		sameDay: []model.Flight{f1, f2},
	}
	writer := &fakeJourneyWriter{inserted: make(map[string]bool)}
	inv := &fakeInvalidator{}

	svc := NewPrecomputeService(flights, writer, inv, testRules)
	err := svc.Process(context.Background(), &model.FlightCreatedEvent{FlightID: "F1"})

	require.NoError(t, err)
	assert.True(t, writer.inserted["F1"])
	assert.True(t, writer.inserted["F1>F2"])
	assert.ElementsMatch(t, [][2]string{{"DEL", "BOM"}, {"DEL", "GOI"}}, inv.routes)
}

func TestProcess_FiveFlightNetworkExactSet(t *testing.T) {
	// A day's network around the new flight A. D feeds into A, B and C
	// chain after it, E would close a loop back to A's origin.
	a := flt("A", "DEL", "BOM", 6, 8)
	b := flt("B", "BOM", "GOI", 9, 10.5)
	c := flt("C", "GOI", "MAA", 11.5, 13)
	d := flt("D", "CCU", "DEL", 3, 5)
	e := flt("E", "BOM", "DEL", 9, 11)
	all := []model.Flight{a, b, c, d, e}

	flights := &fakeFlightSource{
		flights: map[string]model.Flight{"A": a},
		sameDay: all,
	}
	writer := &fakeJourneyWriter{inserted: make(map[string]bool)}
	inv := &fakeInvalidator{}
	svc := NewPrecomputeService(flights, writer, inv, testRules)
	event := &model.FlightCreatedEvent{FlightID: "A"}

	require.NoError(t, svc.Process(context.Background(), event))

	// A>E alone is a DEL→DEL loop and is excluded; prefixed with D the
	// overall endpoints differ (CCU→DEL), so D>A>E is a valid journey.
	want := []string{"A", "A>B", "A>B>C", "D>A", "D>A>B", "D>A>E"}
	got := make([]string, 0, len(writer.inserted))
	for sig := range writer.inserted {
		got = append(got, sig)
	}
	assert.ElementsMatch(t, want, got)

	// A redelivered event adds nothing.
	require.NoError(t, svc.Process(context.Background(), event))
	assert.Len(t, writer.inserted, len(want))
}

func TestProcess_ReplayIsIdempotent(t *testing.T) {
	f1 := flt("F1", "DEL", "BOM", 6, 8)
	f2 := flt("F2", "BOM", "GOI", 9, 10.5)

	flights := &fakeFlightSource{
		flights: map[string]model.Flight{"F1": f1, "F2": f2},
		sameDay: []model.Flight{f1, f2},
	}
	writer := &fakeJourneyWriter{inserted: make(map[string]bool)}
	inv := &fakeInvalidator{}

	svc := NewPrecomputeService(flights, writer, inv, testRules)
	event := &model.FlightCreatedEvent{FlightID: "F1"}

	require.NoError(t, svc.Process(context.Background(), event))
	before := len(writer.inserted)
	routesBefore := len(inv.routes)

	// Redelivery of the same event must not create anything new.
	require.NoError(t, svc.Process(context.Background(), event))
	assert.Equal(t, before, len(writer.inserted))
	assert.Equal(t, routesBefore, len(inv.routes))
}

func TestProcess_UnknownFlightIsDropped(t *testing.T) {
	flights := &fakeFlightSource{flights: map[string]model.Flight{}}
	writer := &fakeJourneyWriter{inserted: make(map[string]bool)}

	svc := NewPrecomputeService(flights, writer, &fakeInvalidator{}, testRules)
	err := svc.Process(context.Background(), &model.FlightCreatedEvent{FlightID: "ghost"})

	require.NoError(t, err)
	assert.Empty(t, writer.inserted)
}
