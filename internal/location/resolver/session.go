package resolver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"backoffice_portal_backend/internal/events"
	"backoffice_portal_backend/internal/location/client"
	"backoffice_portal_backend/internal/location/geocode"
	"backoffice_portal_backend/internal/location/transport"
	"backoffice_portal_backend/platform/apperr"
	"backoffice_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// SessionOptions bundles the collaborators a session needs.
type SessionOptions struct {
	Variant    string
	Provider   Provider
	Geolocator Geolocator
	Bus        events.Bus
	Log        *logger.Logger
	Debounce   time.Duration
	Timeout    time.Duration
	Initial    *transport.SelectedLocation
}

// Session is one live resolution machine. Every event handler takes the
// session mutex, mutates the context, and releases it; async completions
// carry a generation number and are discarded when superseded.
type Session struct {
	id         uuid.UUID
	variant    string
	provider   Provider
	geolocator Geolocator
	bus        events.Bus
	log        *logger.Logger
	debounce   time.Duration
	timeout    time.Duration

	mu          sync.Mutex
	ctx         Context
	coordinator *geocode.Coordinator
	draft       *PinpointDraft
	searchGen   uint64
	detailGen   uint64
	geoGen      uint64
	searchTimer *time.Timer
	lastFailed  *retryRequest
	lastSeen    time.Time
	closed      bool
}

// NewSession creates a session in the idle state, optionally seeded with a
// previously committed location.
func NewSession(id uuid.UUID, opts SessionOptions) *Session {
	debounce := opts.Debounce
	if debounce < 300*time.Millisecond {
		debounce = 300 * time.Millisecond
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Session{
		id:          id,
		variant:     opts.Variant,
		provider:    opts.Provider,
		geolocator:  opts.Geolocator,
		bus:         opts.Bus,
		log:         opts.Log,
		debounce:    debounce,
		timeout:     timeout,
		ctx:         newContext(opts.Initial),
		coordinator: geocode.New(opts.Provider, timeout, opts.Log),
		lastSeen:    time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Variant returns the provider variant this session resolves against.
func (s *Session) Variant() string {
	return s.variant
}

// LastSeen returns the time of the last dispatched event, for the janitor.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// ChangeSearchQuery handles free-text input. Queries of two characters or
// fewer clear the results without any network activity; longer queries start
// the debounce window, superseding whatever search was pending.
func (s *Session) ChangeSearchQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.ctx.SearchQuery = query
	s.searchGen++

	if s.searchTimer != nil {
		s.searchTimer.Stop()
		s.searchTimer = nil
	}

	trimmed := strings.TrimSpace(query)
	if len([]rune(trimmed)) < client.MinQueryLength {
		s.ctx.SearchResults = []transport.LocationSuggestion{}
		s.ctx.IsSearching = false
		s.ctx.IsDropdownOpen = false
		if s.ctx.State == StateSearching {
			s.ctx.State = StateIdle
		}
		return
	}

	s.ctx.State = StateSearching
	s.ctx.IsSearching = true
	s.ctx.IsDropdownOpen = true

	gen := s.searchGen
	s.searchTimer = time.AfterFunc(s.debounce, func() {
		s.runSearch(gen, trimmed)
	})
}

func (s *Session) runSearch(gen uint64, query string) {
	s.mu.Lock()
	if s.closed || gen != s.searchGen {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	cctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	results, err := s.provider.SearchLocations(cctx, query)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.searchGen {
		// Stale response for a superseded query: discard entirely.
		return
	}

	s.ctx.IsSearching = false
	if s.ctx.State == StateSearching {
		s.ctx.State = StateIdle
	}

	if err != nil {
		// Soft failure: empty results, keyed error, no blocking state.
		s.ctx.SearchResults = []transport.LocationSuggestion{}
		s.ctx.Errors[ErrorKeySearch] = "search failed"
		s.lastFailed = &retryRequest{errorKey: ErrorKeySearch, query: query}
		return
	}

	s.ctx.SearchResults = results
	s.ctx.IsDropdownOpen = len(results) > 0
	delete(s.ctx.Errors, ErrorKeySearch)
}

// SelectSuggestion handles an explicit autocomplete pick. The place-detail
// fetch runs asynchronously; on failure the previously committed location is
// left fully intact.
func (s *Session) SelectSuggestion(suggestion transport.LocationSuggestion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	// Explicit user intent supersedes any pending search or detail fetch.
	s.searchGen++
	s.detailGen++
	if s.searchTimer != nil {
		s.searchTimer.Stop()
		s.searchTimer = nil
	}

	s.ctx.State = StateLoadingPlaceDetails
	s.ctx.IsSearching = false
	s.ctx.IsDropdownOpen = false
	s.ctx.TempLocationTitle = suggestion.Title

	gen := s.detailGen
	go s.runPlaceDetails(gen, suggestion)
}

func (s *Session) runPlaceDetails(gen uint64, suggestion transport.LocationSuggestion) {
	cctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	details, err := s.provider.GetPlaceDetails(cctx, suggestion.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.detailGen {
		return
	}

	if s.ctx.State == StateLoadingPlaceDetails {
		s.ctx.State = StateIdle
	}

	if err != nil {
		s.ctx.Errors[ErrorKeyPlace] = "place detail lookup failed"
		s.lastFailed = &retryRequest{errorKey: ErrorKeyPlace, suggestion: suggestion}
		return
	}

	s.commitLocked(details, postalOptionsFromDetails(details), transport.SourceSearch)
	s.ctx.SearchQuery = suggestion.Title
	s.ctx.SearchResults = []transport.LocationSuggestion{}
}

// ChangeCoordinates updates the committed coordinates and, when requested,
// hands them to the reverse-geocode coordinator instead of geocoding inline.
func (s *Session) ChangeCoordinates(coords transport.Coordinates, shouldReverseGeocode bool) {
	s.mu.Lock()
	s.touch()
	s.ctx.Coordinates = coords
	s.mu.Unlock()

	if shouldReverseGeocode {
		s.coordinator.FetchReverseGeocode(coords)
	}
}

// RequestCurrentLocation asks the device-location collaborator for a
// position. Success behaves like ChangeCoordinates with reverse geocoding
// enabled; failure records one of the fixed geolocation messages.
func (s *Session) RequestCurrentLocation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.geoGen++
	s.ctx.State = StateFetchingCurrentPosition

	gen := s.geoGen
	go s.runGeolocate(gen)
}

func (s *Session) runGeolocate(gen uint64) {
	var (
		coords transport.Coordinates
		err    error
	)
	if s.geolocator == nil {
		err = ErrGeolocationUnavailable
	} else {
		cctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		coords, err = s.geolocator.CurrentPosition(cctx)
	}

	s.mu.Lock()
	if gen != s.geoGen {
		s.mu.Unlock()
		return
	}

	if s.ctx.State == StateFetchingCurrentPosition {
		s.ctx.State = StateIdle
	}

	if err != nil {
		s.ctx.Errors[ErrorKeyGeolocation] = geolocationMessage(err)
		s.lastFailed = &retryRequest{errorKey: ErrorKeyGeolocation}
		s.mu.Unlock()
		return
	}

	s.ctx.Coordinates = coords
	s.mu.Unlock()

	s.coordinator.FetchReverseGeocode(coords)
}

// ApplyPlaceSuccess is the single atomic commit point. It replaces the place
// detail, coordinates and committed location in one step, closes any open
// modal, and publishes the committed record.
func (s *Session) ApplyPlaceSuccess(details transport.LocationDetails, postal []transport.PostalCodeOption, source transport.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	// An explicit commit supersedes any in-flight suggestion chain.
	s.detailGen++
	s.commitLocked(details, postal, source)
}

// commitLocked performs the atomic context replacement. Callers hold the
// mutex.
func (s *Session) commitLocked(details transport.LocationDetails, postal []transport.PostalCodeOption, source transport.Source) {
	detail := details
	committed := transport.FromDetails(detail)

	s.ctx.PlaceDetail = &detail
	s.ctx.Coordinates = detail.Coordinates
	s.ctx.SelectedLocation = &committed
	s.ctx.PostalOptions = postal
	s.ctx.ActiveModal = ModalNone
	delete(s.ctx.Errors, ErrorKeyPlace)
	if s.lastFailed != nil && s.lastFailed.errorKey == ErrorKeyPlace {
		s.lastFailed = nil
	}
	if s.draft != nil {
		s.draft.Cancel()
		s.draft = nil
	}

	if s.bus != nil {
		s.bus.Publish(context.Background(), events.LocationCommitted{
			BaseEvent: events.NewBaseEvent(),
			SessionID: s.id,
			Variant:   s.variant,
			Source:    string(source),
			Location:  committed,
		})
	}
	s.log.Debug("location committed", "sessionId", s.id, "source", string(source))
}

// OpenModal opens the detail or postal modal. Opening the detail modal seeds
// a fresh draft from the committed state; an override positions the pin
// somewhere other than the committed coordinates.
func (s *Session) OpenModal(kind ModalKind, override *transport.Coordinates) error {
	if kind != ModalDetail && kind != ModalPostal {
		return apperr.BadRequest("unknown modal kind")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.ctx.ActiveModal = kind
	if kind == ModalDetail {
		if s.draft != nil {
			s.draft.Cancel()
		}
		s.draft = newPinpointDraft(s.provider, s.ctx, override, s.timeout, s.log)
	}
	return nil
}

// CloseModal discards the draft without committing. The outer context is left
// untouched.
func (s *Session) CloseModal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.ctx.ActiveModal = ModalNone
	if s.draft != nil {
		s.draft.Cancel()
		s.draft = nil
	}
}

// ModalDrag feeds a marker drag into the open draft.
func (s *Session) ModalDrag(coords transport.Coordinates) error {
	draft, err := s.openDraft()
	if err != nil {
		return err
	}
	draft.Drag(coords)
	return nil
}

// ModalSearch runs a suggestion search scoped to the open draft.
func (s *Session) ModalSearch(ctx context.Context, query string) error {
	draft, err := s.openDraft()
	if err != nil {
		return err
	}
	return draft.Search(ctx, query)
}

// ModalSelect picks a suggestion inside the modal. Details are fetched into
// the draft only; the committed location is untouched until commit.
func (s *Session) ModalSelect(ctx context.Context, suggestion transport.LocationSuggestion) error {
	draft, err := s.openDraft()
	if err != nil {
		return err
	}
	return draft.Select(ctx, suggestion)
}

// ModalCommit resolves the draft's best candidate by priority and applies it
// as the one atomic commit.
func (s *Session) ModalCommit() error {
	draft, err := s.openDraft()
	if err != nil {
		return err
	}

	details, postal, source := draft.Commit()
	s.ApplyPlaceSuccess(details, postal, source)
	return nil
}

func (s *Session) openDraft() (*PinpointDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.draft == nil || s.ctx.ActiveModal != ModalDetail {
		return nil, apperr.Conflict("pin-point modal is not open")
	}
	return s.draft, nil
}

// ClearError removes a keyed error. The cached retry arguments for that key
// are dropped with it.
func (s *Session) ClearError(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	delete(s.ctx.Errors, key)
	if s.lastFailed != nil && s.lastFailed.errorKey == key {
		s.lastFailed = nil
	}
}

// Retry re-issues the last failed request with its original arguments. The
// machine never retries on its own; this is the explicit affordance.
func (s *Session) Retry() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	req := s.lastFailed
	if req == nil {
		return apperr.Conflict("nothing to retry")
	}
	delete(s.ctx.Errors, req.errorKey)

	switch req.errorKey {
	case ErrorKeySearch:
		s.searchGen++
		s.ctx.State = StateSearching
		s.ctx.IsSearching = true
		go s.runSearch(s.searchGen, req.query)
	case ErrorKeyPlace:
		s.detailGen++
		s.ctx.State = StateLoadingPlaceDetails
		go s.runPlaceDetails(s.detailGen, req.suggestion)
	case ErrorKeyGeolocation:
		s.geoGen++
		s.ctx.State = StateFetchingCurrentPosition
		go s.runGeolocate(s.geoGen)
	default:
		return apperr.Conflict("nothing to retry")
	}
	return nil
}

// Snapshot renders the full observable state: machine context, coordinator
// state, draft state when a modal is open, and the flattened form fields.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	ctxCopy := s.ctx.clone()
	draft := s.draft
	s.mu.Unlock()

	snap := Snapshot{
		SessionID:  s.id.String(),
		Variant:    s.variant,
		Context:    ctxCopy,
		Geocode:    s.coordinator.Snapshot(),
		FormFields: map[string]string{},
	}
	if draft != nil {
		modal := draft.Snapshot()
		snap.Modal = &modal
	}
	if ctxCopy.SelectedLocation != nil {
		snap.FormFields = transport.FormFields(*ctxCopy.SelectedLocation, ctxCopy.PlaceDetail)
	}
	return snap
}

// Close tears the session down: pending timers stopped, in-flight chains
// cancelled, further async completions discarded.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.searchGen++
	s.detailGen++
	s.geoGen++
	if s.searchTimer != nil {
		s.searchTimer.Stop()
		s.searchTimer = nil
	}
	if s.draft != nil {
		s.draft.Cancel()
		s.draft = nil
	}
	s.mu.Unlock()

	s.coordinator.Clear()
}

// touch must be called with the mutex held.
func (s *Session) touch() {
	s.lastSeen = time.Now()
}

func geolocationMessage(err error) string {
	switch {
	case errors.Is(err, ErrGeolocationDenied):
		return "location permission denied"
	case errors.Is(err, ErrGeolocationTimeout):
		return "location request timed out"
	default:
		return "location is unavailable on this device"
	}
}

// postalOptionsFromDetails derives the postal select options from the matched
// district of an enriched place.
func postalOptionsFromDetails(details transport.LocationDetails) []transport.PostalCodeOption {
	match := transport.MatchDistrict(details.Info.DistrictsData, details.Info.District)
	if match == nil {
		return nil
	}

	options := make([]transport.PostalCodeOption, 0, len(match.PostalCodes))
	for _, code := range match.PostalCodes {
		options = append(options, transport.PostalCodeOption{
			PostalCode:  code.PostalCode,
			Description: code.Description,
		})
	}
	return options
}
