package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"backoffice_portal_backend/internal/events"
	"backoffice_portal_backend/internal/location/transport"
	"backoffice_portal_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeProvider struct {
	searchCalls  int64
	detailCalls  int64
	reverseCalls int64

	searchFn  func(ctx context.Context, query string) ([]transport.LocationSuggestion, error)
	detailsFn func(ctx context.Context, placeID string) (transport.LocationDetails, error)
	reverseFn func(ctx context.Context, lat, lng float64) (transport.AddressComponents, error)
}

func (f *fakeProvider) SearchLocations(ctx context.Context, query string) ([]transport.LocationSuggestion, error) {
	atomic.AddInt64(&f.searchCalls, 1)
	if f.searchFn == nil {
		return []transport.LocationSuggestion{}, nil
	}
	return f.searchFn(ctx, query)
}

func (f *fakeProvider) ReverseGeocode(ctx context.Context, lat, lng float64) (transport.AddressComponents, error) {
	atomic.AddInt64(&f.reverseCalls, 1)
	if f.reverseFn == nil {
		return transport.AddressComponents{}, errors.New("no reverse geocode configured")
	}
	return f.reverseFn(ctx, lat, lng)
}

func (f *fakeProvider) GetPlaceDetails(ctx context.Context, placeID string) (transport.LocationDetails, error) {
	atomic.AddInt64(&f.detailCalls, 1)
	if f.detailsFn == nil {
		return transport.LocationDetails{}, errors.New("no details configured")
	}
	return f.detailsFn(ctx, placeID)
}

func (f *fakeProvider) GetPostalCodesByDistrict(ctx context.Context, districtID string) ([]transport.PostalCodeOption, error) {
	return []transport.PostalCodeOption{}, nil
}

func (f *fakeProvider) GetPostalCodesByCountry(ctx context.Context, countryCode string) ([]transport.PostalCodeOption, error) {
	return []transport.PostalCodeOption{}, nil
}

type recordingBus struct {
	mu        sync.Mutex
	committed []events.LocationCommitted
}

func (b *recordingBus) Publish(ctx context.Context, event events.Event) {
	if e, ok := event.(events.LocationCommitted); ok {
		b.mu.Lock()
		b.committed = append(b.committed, e)
		b.mu.Unlock()
	}
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(eventName string, handler events.Handler) {}

func (b *recordingBus) commits() []events.LocationCommitted {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.LocationCommitted(nil), b.committed...)
}

type fakeGeolocator struct {
	coords transport.Coordinates
	err    error
}

func (f *fakeGeolocator) CurrentPosition(ctx context.Context) (transport.Coordinates, error) {
	return f.coords, f.err
}

func newTestSession(provider Provider, opts SessionOptions) *Session {
	opts.Provider = provider
	if opts.Log == nil {
		opts.Log = logger.New("development")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Variant == "" {
		opts.Variant = "domestic"
	}
	return NewSession(uuid.New(), opts)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

var sampleDetails = transport.LocationDetails{
	Coordinates: transport.Coordinates{Latitude: -6.2, Longitude: 106.8},
	Info: transport.LocationInfo{
		AddressComponents: transport.AddressComponents{
			FormattedAddress: "Jalan Sudirman No.1",
			City:             "Jakarta",
			Province:         "DKI Jakarta",
			Country:          "Indonesia",
			PostalCode:       "10220",
			CountryCode:      "ID",
			PlaceID:          "p1",
		},
		District: "Tanah Abang",
		DistrictsData: []transport.DistrictData{
			{
				DistrictID:   "d1",
				DistrictName: "Tanah Abang",
				CityID:       "c1",
				CityName:     "Jakarta Pusat",
				ProvinceID:   "pr1",
				ProvinceName: "DKI Jakarta",
				PostalCodes:  []transport.PostalCode{{PostalCode: "10220", Description: "Bendungan Hilir"}},
			},
		},
	},
}

// Two-character queries never reach the network; three characters do, but
// only after the debounce window.
func TestShortQueryNeverFiresSearch(t *testing.T) {
	provider := &fakeProvider{
		searchFn: func(ctx context.Context, query string) ([]transport.LocationSuggestion, error) {
			return []transport.LocationSuggestion{{ID: "p1", Title: "Jakarta"}}, nil
		},
	}
	s := newTestSession(provider, SessionOptions{})
	defer s.Close()

	s.ChangeSearchQuery("ja")
	time.Sleep(400 * time.Millisecond)

	if atomic.LoadInt64(&provider.searchCalls) != 0 {
		t.Fatal("two-character query must not trigger a network call")
	}
	snap := s.Snapshot()
	if snap.Context.IsSearching || len(snap.Context.SearchResults) != 0 {
		t.Fatalf("short query must clear search state: %+v", snap.Context)
	}

	s.ChangeSearchQuery("jak")
	if atomic.LoadInt64(&provider.searchCalls) != 0 {
		t.Fatal("search must not fire before the debounce window")
	}

	waitFor(t, func() bool { return atomic.LoadInt64(&provider.searchCalls) == 1 })
	waitFor(t, func() bool { return len(s.Snapshot().Context.SearchResults) == 1 })
}

// A keystroke during the debounce window supersedes the pending search: only
// one request fires, for the latest query.
func TestDebounceCollapsesKeystrokes(t *testing.T) {
	var lastQuery atomic.Value
	provider := &fakeProvider{
		searchFn: func(ctx context.Context, query string) ([]transport.LocationSuggestion, error) {
			lastQuery.Store(query)
			return []transport.LocationSuggestion{{ID: "p1", Title: query}}, nil
		},
	}
	s := newTestSession(provider, SessionOptions{})
	defer s.Close()

	s.ChangeSearchQuery("jak")
	time.Sleep(100 * time.Millisecond)
	s.ChangeSearchQuery("jakar")
	time.Sleep(100 * time.Millisecond)
	s.ChangeSearchQuery("jakarta")

	waitFor(t, func() bool { return atomic.LoadInt64(&provider.searchCalls) == 1 })
	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt64(&provider.searchCalls); got != 1 {
		t.Fatalf("search calls = %d, want 1", got)
	}
	if got := lastQuery.Load(); got != "jakarta" {
		t.Fatalf("searched query = %v, want jakarta", got)
	}
}

// A response for a superseded query must never become visible, even when it
// arrives after the newer query's response.
func TestStaleSearchResponseDiscarded(t *testing.T) {
	gate := make(chan struct{})
	provider := &fakeProvider{
		searchFn: func(ctx context.Context, query string) ([]transport.LocationSuggestion, error) {
			if query == "Jak" {
				<-gate
				return []transport.LocationSuggestion{{ID: "old", Title: "Jak (stale)"}}, nil
			}
			return []transport.LocationSuggestion{{ID: "new", Title: "Jakarta Selatan"}}, nil
		},
	}
	s := newTestSession(provider, SessionOptions{})
	defer s.Close()

	s.ChangeSearchQuery("Jak")
	// Let the debounce fire so the first request is actually in flight.
	waitFor(t, func() bool { return atomic.LoadInt64(&provider.searchCalls) == 1 })

	s.ChangeSearchQuery("Jakarta Selatan")
	waitFor(t, func() bool {
		results := s.Snapshot().Context.SearchResults
		return len(results) == 1 && results[0].ID == "new"
	})

	// Now the stale response arrives.
	close(gate)
	time.Sleep(50 * time.Millisecond)

	results := s.Snapshot().Context.SearchResults
	if len(results) != 1 || results[0].ID != "new" {
		t.Fatalf("stale results leaked: %+v", results)
	}
}

// End-to-end: search, pick the suggestion, and verify the committed record
// plus the derived district pre-selection.
func TestSuggestionSelectionCommitsAtomically(t *testing.T) {
	provider := &fakeProvider{
		searchFn: func(ctx context.Context, query string) ([]transport.LocationSuggestion, error) {
			return []transport.LocationSuggestion{{ID: "p1", Title: "Jalan Sudirman No.1"}}, nil
		},
		detailsFn: func(ctx context.Context, placeID string) (transport.LocationDetails, error) {
			return sampleDetails, nil
		},
	}
	bus := &recordingBus{}
	s := newTestSession(provider, SessionOptions{Bus: bus})
	defer s.Close()

	s.ChangeSearchQuery("Jalan Sudirman")
	waitFor(t, func() bool { return len(s.Snapshot().Context.SearchResults) == 1 })

	s.SelectSuggestion(transport.LocationSuggestion{ID: "p1", Title: "Jalan Sudirman No.1"})
	waitFor(t, func() bool { return s.Snapshot().Context.SelectedLocation != nil })

	snap := s.Snapshot()
	sel := snap.Context.SelectedLocation

	// Every field originates from the one detail record.
	want := transport.FromDetails(sampleDetails)
	if *sel != want {
		t.Fatalf("committed record is not single-source:\n got %+v\nwant %+v", *sel, want)
	}
	if snap.Context.Coordinates != sampleDetails.Coordinates {
		t.Fatalf("coordinates = %+v", snap.Context.Coordinates)
	}
	if snap.Context.State != StateIdle {
		t.Fatalf("state = %s", snap.Context.State)
	}

	// Postal options derive from the matched district.
	if len(snap.Context.PostalOptions) != 1 || snap.Context.PostalOptions[0].PostalCode != "10220" {
		t.Fatalf("postal options = %+v", snap.Context.PostalOptions)
	}

	// The district selector's derived fields are pre-selected in the form map.
	if snap.FormFields[transport.FieldDistrictName] != "Tanah Abang" ||
		snap.FormFields[transport.FieldDistrictID] != "d1" {
		t.Fatalf("district not pre-selected: %+v", snap.FormFields)
	}

	commits := bus.commits()
	if len(commits) != 1 || commits[0].Location != want || commits[0].Source != string(transport.SourceSearch) {
		t.Fatalf("commit event = %+v", commits)
	}
}

// A failed enrichment leaves the previously committed location fully intact.
func TestPlaceDetailFailurePreservesCommittedLocation(t *testing.T) {
	initial := transport.SelectedLocation{
		Address:     "Existing Address",
		City:        "Bandung",
		PostalCode:  "40111",
		Coordinates: transport.Coordinates{Latitude: -6.9, Longitude: 107.6},
	}
	provider := &fakeProvider{
		detailsFn: func(ctx context.Context, placeID string) (transport.LocationDetails, error) {
			return transport.LocationDetails{}, errors.New("upstream down")
		},
	}
	s := newTestSession(provider, SessionOptions{Initial: &initial})
	defer s.Close()

	s.SelectSuggestion(transport.LocationSuggestion{ID: "bad", Title: "Broken Place"})
	waitFor(t, func() bool { return s.Snapshot().Context.Errors[ErrorKeyPlace] != "" })

	snap := s.Snapshot()
	if snap.Context.SelectedLocation == nil || *snap.Context.SelectedLocation != initial {
		t.Fatalf("committed location mutated on failure: %+v", snap.Context.SelectedLocation)
	}
	if snap.Context.State != StateIdle {
		t.Fatalf("state = %s, want idle", snap.Context.State)
	}
}

func TestRetryReissuesLastFailedRequest(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	provider := &fakeProvider{
		detailsFn: func(ctx context.Context, placeID string) (transport.LocationDetails, error) {
			if fail.Load() {
				return transport.LocationDetails{}, errors.New("flaky upstream")
			}
			if placeID != "p1" {
				return transport.LocationDetails{}, errors.New("retry must reuse the original arguments")
			}
			return sampleDetails, nil
		},
	}
	s := newTestSession(provider, SessionOptions{})
	defer s.Close()

	s.SelectSuggestion(transport.LocationSuggestion{ID: "p1", Title: "Jalan Sudirman No.1"})
	waitFor(t, func() bool { return s.Snapshot().Context.Errors[ErrorKeyPlace] != "" })

	fail.Store(false)
	if err := s.Retry(); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return s.Snapshot().Context.SelectedLocation != nil })
	if got := s.Snapshot().Context.Errors[ErrorKeyPlace]; got != "" {
		t.Fatalf("error not cleared after successful retry: %q", got)
	}

	if err := s.Retry(); err == nil {
		t.Fatal("retry with nothing failed must error")
	}
}

func TestClearErrorDropsRetryState(t *testing.T) {
	provider := &fakeProvider{
		detailsFn: func(ctx context.Context, placeID string) (transport.LocationDetails, error) {
			return transport.LocationDetails{}, errors.New("down")
		},
	}
	s := newTestSession(provider, SessionOptions{})
	defer s.Close()

	s.SelectSuggestion(transport.LocationSuggestion{ID: "p1", Title: "X"})
	waitFor(t, func() bool { return s.Snapshot().Context.Errors[ErrorKeyPlace] != "" })

	s.ClearError(ErrorKeyPlace)
	if got := s.Snapshot().Context.Errors[ErrorKeyPlace]; got != "" {
		t.Fatalf("error not cleared: %q", got)
	}
	if err := s.Retry(); err == nil {
		t.Fatal("retry after clear must have nothing to re-issue")
	}
}

func TestCurrentLocationSuccessTriggersReverseGeocode(t *testing.T) {
	provider := &fakeProvider{
		reverseFn: func(ctx context.Context, lat, lng float64) (transport.AddressComponents, error) {
			return transport.AddressComponents{FormattedAddress: "Here"}, nil
		},
	}
	geo := &fakeGeolocator{coords: transport.Coordinates{Latitude: -6.3, Longitude: 106.7}}
	s := newTestSession(provider, SessionOptions{Geolocator: geo})
	defer s.Close()

	s.RequestCurrentLocation()

	waitFor(t, func() bool {
		snap := s.Snapshot()
		return snap.Context.Coordinates == geo.coords && snap.Geocode.ReverseGeocodedData != nil
	})
	if s.Snapshot().Context.State != StateIdle {
		t.Fatal("state must return to idle")
	}
}

func TestCurrentLocationFailureUsesFixedCatalog(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"denied", ErrGeolocationDenied, "location permission denied"},
		{"timeout", ErrGeolocationTimeout, "location request timed out"},
		{"unavailable", ErrGeolocationUnavailable, "location is unavailable on this device"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSession(&fakeProvider{}, SessionOptions{Geolocator: &fakeGeolocator{err: tc.err}})
			defer s.Close()

			s.RequestCurrentLocation()
			waitFor(t, func() bool { return s.Snapshot().Context.Errors[ErrorKeyGeolocation] != "" })

			if got := s.Snapshot().Context.Errors[ErrorKeyGeolocation]; got != tc.want {
				t.Fatalf("message = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNoGeolocatorMeansUnavailable(t *testing.T) {
	s := newTestSession(&fakeProvider{}, SessionOptions{})
	defer s.Close()

	s.RequestCurrentLocation()
	waitFor(t, func() bool { return s.Snapshot().Context.Errors[ErrorKeyGeolocation] != "" })

	if got := s.Snapshot().Context.Errors[ErrorKeyGeolocation]; got != "location is unavailable on this device" {
		t.Fatalf("message = %q", got)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := newTestSession(&fakeProvider{}, SessionOptions{Initial: &transport.SelectedLocation{Address: "A"}})
	defer s.Close()

	first := s.Snapshot()
	first.Context.SelectedLocation.Address = "mutated"
	first.Context.Errors["fake"] = "mutated"

	second := s.Snapshot()
	if second.Context.SelectedLocation.Address != "A" {
		t.Fatal("snapshot aliases internal state")
	}
	if len(second.Context.Errors) != 0 {
		t.Fatal("snapshot error map aliases internal state")
	}
}

func TestManagerLifecycle(t *testing.T) {
	provider := &fakeProvider{}
	manager := NewManager(ManagerOptions{
		Providers: map[string]Provider{"domestic": provider},
		Resolver:  testResolverConfig{},
		Timeout:   time.Second,
		Log:       logger.New("development"),
	})

	session, err := manager.Create("domestic", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := manager.Create("martian", nil); err == nil {
		t.Fatal("unknown variant must be rejected")
	}

	got, err := manager.Get(session.ID())
	if err != nil || got != session {
		t.Fatalf("get = %v, %v", got, err)
	}

	if err := manager.Delete(session.ID()); err != nil {
		t.Fatal(err)
	}
	if _, err := manager.Get(session.ID()); err == nil {
		t.Fatal("deleted session must not be found")
	}
	if err := manager.Delete(session.ID()); err == nil {
		t.Fatal("double delete must report not found")
	}
	if manager.Len() != 0 {
		t.Fatalf("len = %d", manager.Len())
	}
}

type testResolverConfig struct{}

func (testResolverConfig) GetSearchDebounce() time.Duration       { return 300 * time.Millisecond }
func (testResolverConfig) GetSessionTTL() time.Duration           { return time.Minute }
func (testResolverConfig) GetSessionSweepInterval() time.Duration { return time.Minute }
