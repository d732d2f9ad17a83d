package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filltrip/internal/directions"
	"filltrip/internal/metrics"
	"filltrip/internal/models"
	"filltrip/internal/testutil"
)

const testDebounce = 60 * time.Millisecond

var (
	rizalPark = models.PlaceCandidate{Coords: models.Coordinates{Lng: 120.9794, Lat: 14.5826}, DisplayName: "Rizal Park, Manila"}
	rizalAve  = models.PlaceCandidate{Coords: models.Coordinates{Lng: 120.9830, Lat: 14.6042}, DisplayName: "Rizal Avenue, Santa Cruz"}
)

// onLoop runs fn on the controller loop
type onLoop func(c *Controller)

func (onLoop) Name() string                { return "on_loop" }
func (p onLoop) apply(c *Controller) error { p(c); return nil }

type fixture struct {
	c        *Controller
	geocoder *testutil.StubGeocoder
	fetcher  *testutil.StubFetcher
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()

	geocoder := testutil.NewStubGeocoder()
	geocoder.Add("Rizal", rizalPark, rizalAve)
	fetcher := testutil.NewStubFetcher()

	opts := Options{
		Geocoder:     geocoder,
		Fetcher:      fetcher,
		Debounce:     testDebounce,
		InitialWidth: 1280,
	}
	for _, m := range mutate {
		m(&opts)
	}

	c, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	return &fixture{c: c, geocoder: geocoder, fetcher: fetcher}
}

func (f *fixture) send(t *testing.T, ev Event) View {
	t.Helper()
	v, err := f.c.Send(ev)
	require.NoError(t, err)
	return v
}

func (f *fixture) waitFor(t *testing.T, cond func(View) bool) View {
	t.Helper()
	var v View
	require.Eventually(t, func() bool {
		v = f.c.View()
		return cond(v)
	}, 2*time.Second, 5*time.Millisecond)
	return v
}

// setBoth places both endpoints by map click and waits for the route
func (f *fixture) setBoth(t *testing.T, start, end models.Coordinates) View {
	t.Helper()
	f.send(t, SetPickMode{Mode: models.RoleStart})
	f.send(t, MapClick{Coords: start})
	f.send(t, SetPickMode{Mode: models.RoleEnd})
	f.send(t, MapClick{Coords: end})
	return f.waitFor(t, View.RouteVisible)
}

// waitIdle blocks until no route fetch is in flight
func (f *fixture) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		pending := true
		if _, err := f.c.Send(onLoop(func(c *Controller) { pending = c.routes.Pending() })); err != nil {
			return false
		}
		return !pending
	}, 2*time.Second, 5*time.Millisecond)
}

func staleCount(kind string) float64 {
	return promtest.ToFloat64(metrics.StaleResultsTotal.WithLabelValues(kind))
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{Fetcher: testutil.NewStubFetcher()})
	assert.Error(t, err)

	_, err = New(Options{Geocoder: testutil.NewStubGeocoder()})
	assert.Error(t, err)
}

func TestInitialView(t *testing.T) {
	f := newFixture(t)
	v := f.c.View()

	assert.Equal(t, f.c.ID(), v.SessionID)
	assert.Equal(t, models.RoleStart, v.PickMode)
	assert.Equal(t, models.NoneLabel, v.Start.Label)
	assert.Equal(t, models.NoneLabel, v.End.Label)
	assert.Nil(t, v.Route)
	assert.True(t, v.SidebarOpen)
	assert.False(t, v.Mobile)
	assert.Empty(t, v.Map.Markers)
}

func TestShortQueryIssuesNoLookup(t *testing.T) {
	f := newFixture(t)

	for _, q := range []string{"R", "Ri", "  Ri  ", ""} {
		v := f.send(t, TypeQuery{Role: models.RoleStart, Text: q})
		assert.False(t, v.Start.SuggestionsVisible)
		assert.Empty(t, v.Start.Suggestions)
	}

	time.Sleep(3 * testDebounce)
	assert.Empty(t, f.geocoder.Queries())
	assert.Empty(t, f.c.View().Start.Suggestions)
}

func TestShortQueryClearsVisibleSuggestions(t *testing.T) {
	f := newFixture(t)

	f.send(t, TypeQuery{Role: models.RoleStart, Text: "Rizal"})
	f.waitFor(t, func(v View) bool { return v.Start.SuggestionsVisible })

	v := f.send(t, TypeQuery{Role: models.RoleStart, Text: "Ri"})
	assert.False(t, v.Start.SuggestionsVisible)
	assert.Nil(t, v.Start.Suggestions)
}

func TestKeystrokesWithinDebounceIssueOneLookup(t *testing.T) {
	f := newFixture(t)

	for _, q := range []string{"R", "Ri", "Riz", "Riza", "Rizal"} {
		f.send(t, TypeQuery{Role: models.RoleStart, Text: q})
	}

	v := f.waitFor(t, func(v View) bool { return v.Start.SuggestionsVisible })
	assert.Equal(t, []models.PlaceCandidate{rizalPark, rizalAve}, v.Start.Suggestions)

	time.Sleep(3 * testDebounce)
	assert.Equal(t, []string{"Rizal"}, f.geocoder.Queries())
}

func TestSettledQueryEqualToLastSearchIsSkipped(t *testing.T) {
	f := newFixture(t)

	f.send(t, TypeQuery{Role: models.RoleStart, Text: "Rizal"})
	f.waitFor(t, func(v View) bool { return v.Start.SuggestionsVisible })

	f.send(t, TypeQuery{Role: models.RoleStart, Text: "Rizal "})
	time.Sleep(3 * testDebounce)

	assert.Len(t, f.geocoder.Queries(), 1)
}

func TestZeroCandidatesHideList(t *testing.T) {
	f := newFixture(t)

	f.send(t, TypeQuery{Role: models.RoleEnd, Text: "Atlantis"})
	require.Eventually(t, func() bool { return len(f.geocoder.Queries()) == 1 }, time.Second, 5*time.Millisecond)

	time.Sleep(testDebounce)
	assert.False(t, f.c.View().End.SuggestionsVisible)
}

func TestGeocodeFailureIsSilent(t *testing.T) {
	f := newFixture(t)
	f.geocoder.Err = errors.New("upstream down")

	f.send(t, TypeQuery{Role: models.RoleStart, Text: "Rizal"})
	require.Eventually(t, func() bool { return len(f.geocoder.Queries()) == 1 }, time.Second, 5*time.Millisecond)

	time.Sleep(testDebounce)
	v := f.c.View()
	assert.False(t, v.Start.SuggestionsVisible)
	assert.False(t, v.Start.Coords != nil)
	assert.Empty(t, v.Alert)
}

func TestSelectCandidateInvokesOnSelectOnce(t *testing.T) {
	f := newFixture(t)

	sets := 0
	f.send(t, onLoop(func(c *Controller) {
		c.store.Subscribe(func(ch Change) {
			if ch.Kind == ChangeSet && ch.Role == models.RoleStart {
				sets++
			}
		})
	}))

	f.send(t, TypeQuery{Role: models.RoleStart, Text: "Rizal"})
	f.waitFor(t, func(v View) bool { return v.Start.SuggestionsVisible })

	v := f.send(t, SelectCandidate{Role: models.RoleStart, Index: 0})
	assert.Equal(t, 1, sets)
	assert.False(t, v.Start.SuggestionsVisible)
	assert.Equal(t, rizalPark.DisplayName, v.Start.Input)
	assert.Equal(t, rizalPark.DisplayName, v.Start.Label)
	assert.Equal(t, &rizalPark.Coords, v.Start.Coords)

	// List is gone so a second select has nothing to pick
	_, err := f.c.Send(SelectCandidate{Role: models.RoleStart, Index: 0})
	assert.ErrorIs(t, err, ErrNoSuchCandidate)
	assert.Equal(t, 1, sets)
}

func TestSelectLocksUntilNextKeystroke(t *testing.T) {
	f := newFixture(t)

	f.send(t, TypeQuery{Role: models.RoleStart, Text: "Rizal"})
	f.waitFor(t, func(v View) bool { return v.Start.SuggestionsVisible })
	f.send(t, SelectCandidate{Role: models.RoleStart, Index: 1})

	var locked bool
	f.send(t, onLoop(func(c *Controller) { locked = c.resolvers[models.RoleStart].locked }))
	assert.True(t, locked)

	f.send(t, TypeQuery{Role: models.RoleStart, Text: "Rizal Avenue, Santa Cruz M"})
	f.send(t, onLoop(func(c *Controller) { locked = c.resolvers[models.RoleStart].locked }))
	assert.False(t, locked)

	require.Eventually(t, func() bool { return len(f.geocoder.Queries()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestDismissSuggestionsKeepsEndpoints(t *testing.T) {
	f := newFixture(t)

	f.send(t, TypeQuery{Role: models.RoleStart, Text: "Rizal"})
	f.waitFor(t, func(v View) bool { return v.Start.SuggestionsVisible })

	v := f.send(t, DismissSuggestions{Role: models.RoleStart})
	assert.False(t, v.Start.SuggestionsVisible)
	assert.Nil(t, v.Start.Coords)
	assert.Equal(t, "Rizal", v.Start.Input)
}

func TestRetypingDismissedQueryShowsCachedSuggestions(t *testing.T) {
	f := newFixture(t)

	f.send(t, TypeQuery{Role: models.RoleStart, Text: "Rizal"})
	f.waitFor(t, func(v View) bool { return v.Start.SuggestionsVisible })
	f.send(t, DismissSuggestions{Role: models.RoleStart})

	f.send(t, TypeQuery{Role: models.RoleStart, Text: "Riza"})
	f.send(t, TypeQuery{Role: models.RoleStart, Text: "Rizal"})
	v := f.waitFor(t, func(v View) bool { return v.Start.SuggestionsVisible })

	assert.Equal(t, []models.PlaceCandidate{rizalPark, rizalAve}, v.Start.Suggestions)
	assert.Equal(t, []string{"Rizal"}, f.geocoder.Queries())
}

type gatedGeocoder struct {
	*testutil.StubGeocoder
	slow    string
	gate    chan struct{}
	results []models.PlaceCandidate
}

// Search ignores cancellation for the slow query so its result arrives late
func (g *gatedGeocoder) Search(ctx context.Context, query string, limit int) ([]models.PlaceCandidate, error) {
	if query == g.slow {
		g.StubGeocoder.Search(context.Background(), query, limit)
		<-g.gate
		return g.results, nil
	}
	return g.StubGeocoder.Search(ctx, query, limit)
}

func TestSupersededSearchIsDiscarded(t *testing.T) {
	stub := testutil.NewStubGeocoder()
	stub.Add("Rizal", rizalPark)
	gated := &gatedGeocoder{
		StubGeocoder: stub,
		slow:         "Quiapo",
		gate:         make(chan struct{}),
		results:      []models.PlaceCandidate{{DisplayName: "Quiapo Church"}},
	}
	f := newFixture(t, func(o *Options) { o.Geocoder = gated })
	before := staleCount("search")

	f.send(t, TypeQuery{Role: models.RoleStart, Text: "Quiapo"})
	require.Eventually(t, func() bool { return len(stub.Queries()) == 1 }, time.Second, 5*time.Millisecond)

	f.send(t, TypeQuery{Role: models.RoleStart, Text: "Rizal"})
	f.waitFor(t, func(v View) bool { return v.Start.SuggestionsVisible })

	close(gated.gate)
	require.Eventually(t, func() bool { return staleCount("search") >= before+1 }, time.Second, 5*time.Millisecond)

	v := f.c.View()
	assert.Equal(t, []models.PlaceCandidate{rizalPark}, v.Start.Suggestions)
}

func TestRouteDisplayedOnlyWhenBothSet(t *testing.T) {
	f := newFixture(t)

	v := f.send(t, MapClick{Coords: pointA})
	assert.NotNil(t, v.Start.Coords)
	assert.Nil(t, v.End.Coords)
	assert.False(t, v.RouteVisible())

	time.Sleep(testDebounce)
	assert.Empty(t, f.fetcher.Calls())

	v = f.setBoth(t, pointA, pointB)
	assert.True(t, v.RouteVisible())
	assert.Len(t, f.fetcher.Calls(), 1)

	v = f.send(t, Clear{})
	assert.False(t, v.RouteVisible())
}

func TestRouteReadoutFormatting(t *testing.T) {
	f := newFixture(t)

	v := f.setBoth(t, models.Coordinates{Lng: 121.0, Lat: 14.6}, models.Coordinates{Lng: 121.1, Lat: 14.7})

	require.NotNil(t, v.Route)
	assert.Equal(t, "15.23 km", v.Route.Distance)
	assert.Equal(t, "20 min", v.Route.Duration)
	assert.True(t, v.Route.StepsVisible)
	assert.Len(t, v.Route.Steps, 2)

	calls := f.fetcher.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.Coordinates{Lng: 121.0, Lat: 14.6}, calls[0].Start)
	assert.Equal(t, models.Coordinates{Lng: 121.1, Lat: 14.7}, calls[0].End)
}

func TestStepsHiddenWithoutSteps(t *testing.T) {
	f := newFixture(t)
	f.fetcher.Set(&models.Route{DistanceMeters: 500, DurationSecs: 60}, nil)

	v := f.setBoth(t, pointA, pointB)
	assert.False(t, v.Route.StepsVisible)
	assert.Equal(t, "0.50 km", v.Route.Distance)
}

func TestOneFetchPerCompletingMutation(t *testing.T) {
	f := newFixture(t)
	f.setBoth(t, pointA, pointB)

	f.send(t, Swap{})
	f.send(t, MapClick{Coords: models.Coordinates{Lng: 121.2, Lat: 14.8}})
	require.Eventually(t, func() bool { return len(f.fetcher.Calls()) == 3 }, time.Second, 5*time.Millisecond)

	time.Sleep(testDebounce)
	assert.Len(t, f.fetcher.Calls(), 3)
}

func TestEmptyRouteResultKeepsPriorRoute(t *testing.T) {
	f := newFixture(t)
	prior := f.setBoth(t, pointA, pointB)

	f.fetcher.Set(nil, directions.ErrNoRoute)
	f.send(t, MapClick{Coords: models.Coordinates{Lng: 121.3, Lat: 14.9}})
	require.Eventually(t, func() bool { return len(f.fetcher.Calls()) == 2 }, time.Second, 5*time.Millisecond)

	f.waitIdle(t)

	v := f.c.View()
	assert.Equal(t, prior.Route, v.Route)
	assert.Equal(t, prior.Map.Line, v.Map.Line)
}

func TestRouteFailureKeepsPriorRoute(t *testing.T) {
	f := newFixture(t)
	prior := f.setBoth(t, pointA, pointB)

	f.fetcher.Set(nil, &directions.ErrRouteFailed{Reason: "HTTP 503"})
	f.send(t, Swap{})
	require.Eventually(t, func() bool { return len(f.fetcher.Calls()) == 2 }, time.Second, 5*time.Millisecond)

	f.waitIdle(t)

	v := f.c.View()
	assert.Equal(t, prior.Route, v.Route)
	assert.Empty(t, v.Alert)
	assert.Len(t, f.fetcher.Calls(), 2)
}

type pendingFetch struct {
	end   models.Coordinates
	reply chan *models.Route
}

type scriptedFetcher struct {
	calls chan pendingFetch
}

func (f *scriptedFetcher) FetchRoute(ctx context.Context, start, end models.Coordinates) (*models.Route, error) {
	p := pendingFetch{end: end, reply: make(chan *models.Route, 1)}
	f.calls <- p
	select {
	case r := <-p.reply:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestLastIssuedRouteWins(t *testing.T) {
	scripted := &scriptedFetcher{calls: make(chan pendingFetch, 4)}
	f := newFixture(t, func(o *Options) { o.Fetcher = scripted })
	before := staleCount("route")

	f.send(t, MapClick{Coords: pointA})
	f.send(t, SetPickMode{Mode: models.RoleEnd})
	f.send(t, MapClick{Coords: pointB})
	first := <-scripted.calls

	second := models.Coordinates{Lng: 121.5, Lat: 14.5}
	f.send(t, MapClick{Coords: second})
	latest := <-scripted.calls
	assert.Equal(t, second, latest.end)

	latest.reply <- &models.Route{DistanceMeters: 2000, DurationSecs: 120}
	f.waitFor(t, func(v View) bool { return v.RouteVisible() })

	// The superseded fetch resolves last and must not win
	first.reply <- &models.Route{DistanceMeters: 9000, DurationSecs: 900}
	require.Eventually(t, func() bool { return staleCount("route") >= before+1 }, time.Second, 5*time.Millisecond)

	v := f.c.View()
	assert.Equal(t, "2.00 km", v.Route.Distance)
	assert.Equal(t, "2 min", v.Route.Duration)
}

func TestClearDiscardsInFlightRoute(t *testing.T) {
	scripted := &scriptedFetcher{calls: make(chan pendingFetch, 4)}
	f := newFixture(t, func(o *Options) { o.Fetcher = scripted })

	f.send(t, MapClick{Coords: pointA})
	f.send(t, SetPickMode{Mode: models.RoleEnd})
	f.send(t, MapClick{Coords: pointB})
	inflight := <-scripted.calls

	f.send(t, Clear{})
	inflight.reply <- &models.Route{DistanceMeters: 1000}

	time.Sleep(testDebounce)
	v := f.c.View()
	assert.Nil(t, v.Route)
	assert.Nil(t, v.Map.Line)
}

func TestSwapTwiceRestoresEndpoints(t *testing.T) {
	f := newFixture(t)

	f.send(t, TypeQuery{Role: models.RoleStart, Text: "Rizal"})
	f.waitFor(t, func(v View) bool { return v.Start.SuggestionsVisible })
	f.send(t, SelectCandidate{Role: models.RoleStart, Index: 0})
	f.send(t, SetPickMode{Mode: models.RoleEnd})
	before := f.send(t, MapClick{Coords: pointB})

	swapped := f.send(t, Swap{})
	assert.Equal(t, before.Start.Label, swapped.End.Label)
	assert.Equal(t, before.End.Coords, swapped.Start.Coords)
	assert.Equal(t, before.Start.Input, swapped.End.Input)

	after := f.send(t, Swap{})
	assert.Equal(t, before.Start.Coords, after.Start.Coords)
	assert.Equal(t, before.Start.Label, after.Start.Label)
	assert.Equal(t, before.End.Coords, after.End.Coords)
	assert.Equal(t, before.End.Label, after.End.Label)
	assert.Equal(t, before.Start.Input, after.Start.Input)
}

func TestSwapMovesMarkersWithoutRecreating(t *testing.T) {
	f := newFixture(t)
	v := f.setBoth(t, pointA, pointB)
	require.Len(t, v.Map.Markers, 2)
	ids := map[models.Role]int{}
	for _, m := range v.Map.Markers {
		ids[m.Role] = m.ID
	}

	v = f.send(t, Swap{})
	require.Len(t, v.Map.Markers, 2)
	for _, m := range v.Map.Markers {
		assert.Equal(t, ids[m.Role.Other()], m.ID)
		if m.Role == models.RoleStart {
			assert.Equal(t, pointB, m.Coords)
		}
	}
}

func TestClearPostconditions(t *testing.T) {
	f := newFixture(t)

	f.send(t, TypeQuery{Role: models.RoleStart, Text: "Rizal"})
	f.waitFor(t, func(v View) bool { return v.Start.SuggestionsVisible })
	f.send(t, SelectCandidate{Role: models.RoleStart, Index: 0})
	f.send(t, SetPickMode{Mode: models.RoleEnd})
	f.send(t, MapClick{Coords: pointB})
	f.waitFor(t, View.RouteVisible)
	f.send(t, TypeQuery{Role: models.RoleEnd, Text: "Cubao"})

	v := f.send(t, Clear{})

	assert.Nil(t, v.Start.Coords)
	assert.Nil(t, v.End.Coords)
	assert.Equal(t, models.NoneLabel, v.Start.Label)
	assert.Equal(t, models.NoneLabel, v.End.Label)
	assert.Empty(t, v.Start.Input)
	assert.Empty(t, v.End.Input)
	assert.Nil(t, v.Map.Line)
	assert.Empty(t, v.Map.Markers)
	assert.Nil(t, v.Route)
	assert.Equal(t, models.RoleEnd, v.PickMode)

	// A pending debounce for "Cubao" must not resurrect suggestions
	time.Sleep(3 * testDebounce)
	assert.False(t, f.c.View().End.SuggestionsVisible)
}

func TestMapClickUsesPickMode(t *testing.T) {
	f := newFixture(t)

	v := f.send(t, MapClick{Coords: pointA})
	assert.Equal(t, "Dropped pin (14.6000, 121.0000)", v.Start.Label)
	assert.Equal(t, v.Start.Label, v.Start.Input)

	f.send(t, SetPickMode{Mode: models.RoleEnd})
	v = f.send(t, MapClick{Coords: models.Coordinates{Lng: 121.123456, Lat: 14.654321}})
	assert.Equal(t, "Dropped pin (14.6543, 121.1235)", v.End.Label)
	assert.Equal(t, "Dropped pin (14.6000, 121.0000)", v.Start.Label)

	_, err := f.c.Send(SetPickMode{Mode: "middle"})
	assert.Error(t, err)
}

func TestMarkersMoveAndLineUpdatesInPlace(t *testing.T) {
	f := newFixture(t)
	v := f.setBoth(t, pointA, pointB)
	require.NotNil(t, v.Map.Line)
	assert.Equal(t, 1, v.Map.LineCreations)
	assert.Equal(t, 0, v.Map.Line.Updates)
	endID := v.Map.Markers[1].ID

	moved := models.Coordinates{Lng: 121.2, Lat: 14.8}
	f.send(t, MapClick{Coords: moved})
	v = f.waitFor(t, func(v View) bool { return v.Map.Line != nil && v.Map.Line.Updates == 1 })

	assert.Equal(t, 1, v.Map.LineCreations)
	assert.Equal(t, endID, v.Map.Markers[1].ID)
	assert.Equal(t, moved, v.Map.Markers[1].Coords)
	assert.Equal(t, moved, v.Map.Line.Source[len(v.Map.Line.Source)-1])
}

func TestViewportFitReservesSidebarSpace(t *testing.T) {
	f := newFixture(t)
	v := f.setBoth(t, pointA, pointB)

	require.NotNil(t, v.Map.Viewport.Fit)
	assert.Equal(t, pointA, v.Map.Viewport.Fit.SouthWest)
	assert.Equal(t, pointB, v.Map.Viewport.Fit.NorthEast)
	assert.Equal(t, Padding{Top: 60, Right: 60, Bottom: 60, Left: 460}, v.Map.Viewport.Padding)

	f.send(t, ToggleSidebar{})
	f.send(t, Swap{})
	v = f.waitFor(t, func(v View) bool { return v.Map.Viewport.Padding.Left == 60 })
	assert.Equal(t, 60, v.Map.Viewport.Padding.Bottom)
}

func TestGeolocationSuccess(t *testing.T) {
	here := models.Coordinates{Lng: 121.05, Lat: 14.55}
	f := newFixture(t, func(o *Options) { o.Locator = &testutil.StubLocator{Coords: here} })

	f.send(t, Locate{})
	v := f.waitFor(t, func(v View) bool { return v.Start.Coords != nil })

	assert.Equal(t, MyLocationLabel, v.Start.Label)
	assert.Equal(t, here, *v.Start.Coords)
	assert.False(t, v.Locating)
	require.NotNil(t, v.Map.Viewport.Center)
	assert.Equal(t, here, *v.Map.Viewport.Center)
	assert.Equal(t, float64(LocateZoom), v.Map.Viewport.Zoom)
}

func TestGeolocationFailureAlertsWithoutStateChange(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Locator = &testutil.StubLocator{Err: errors.New("denied")}
	})
	before := f.send(t, MapClick{Coords: pointA})

	f.send(t, Locate{})
	v := f.waitFor(t, func(v View) bool { return v.Alert != "" })

	assert.Contains(t, v.Alert, "denied")
	assert.Equal(t, before.Start, v.Start)

	v = f.send(t, DismissAlert{})
	assert.Empty(t, v.Alert)
}

func TestHostReportedLocationFailure(t *testing.T) {
	f := newFixture(t)

	v := f.send(t, LocationFailed{Message: "User denied Geolocation"})
	assert.Contains(t, v.Alert, "denied")
	assert.Nil(t, v.Start.Coords)
}

func TestLocateWithoutLocator(t *testing.T) {
	f := newFixture(t)

	v := f.send(t, Locate{})
	assert.NotEmpty(t, v.Alert)
	assert.Nil(t, v.Start.Coords)
}

func TestSidebarCollapsesOnceWhenCrossingToMobile(t *testing.T) {
	f := newFixture(t)

	closes := 0
	open := f.c.View().SidebarOpen
	track := func(v View) {
		if open && !v.SidebarOpen {
			closes++
		}
		open = v.SidebarOpen
	}

	for _, w := range []int{1024, 800, 767, 500, 320} {
		track(f.send(t, ResizeViewport{Width: w}))
	}
	assert.Equal(t, 1, closes)
	assert.True(t, f.c.View().Mobile)

	// Reverse crossing never reopens
	v := f.send(t, ResizeViewport{Width: 1280})
	track(v)
	assert.False(t, v.SidebarOpen)
	assert.False(t, v.Mobile)

	// Opened on mobile, it stays open while width stays mobile
	f.send(t, ResizeViewport{Width: 600})
	v = f.send(t, ToggleSidebar{})
	track(v)
	require.True(t, v.SidebarOpen)
	track(f.send(t, ResizeViewport{Width: 400}))
	assert.True(t, f.c.View().SidebarOpen)
	assert.Equal(t, 1, closes)

	_, err := f.c.Send(ResizeViewport{Width: 0})
	assert.Error(t, err)
}

func TestMobileMountStartsCollapsed(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.InitialWidth = 375 })
	v := f.c.View()

	assert.True(t, v.Mobile)
	assert.False(t, v.SidebarOpen)
}

func TestSubscribeReceivesViews(t *testing.T) {
	f := newFixture(t)
	views, unsubscribe := f.c.Subscribe()
	defer unsubscribe()

	initial := <-views
	assert.Equal(t, f.c.View().Version, initial.Version)

	require.NoError(t, f.c.Dispatch(ToggleSidebar{}))
	select {
	case v := <-views:
		assert.Greater(t, v.Version, initial.Version)
		assert.False(t, v.SidebarOpen)
	case <-time.After(time.Second):
		t.Fatal("no view published")
	}
}

func TestUnchangedViewKeepsVersion(t *testing.T) {
	f := newFixture(t)
	v1 := f.send(t, SetPickMode{Mode: models.RoleStart})
	v2 := f.send(t, SetPickMode{Mode: models.RoleStart})
	assert.Equal(t, v1.Version, v2.Version)
}

func TestClosedControllerRejectsEvents(t *testing.T) {
	f := newFixture(t)
	f.c.Close()
	f.c.Close()

	_, err := f.c.Send(Swap{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, f.c.Dispatch(Swap{}), ErrClosed)
}
