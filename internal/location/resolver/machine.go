// Package resolver implements the location resolution machine: a per-session
// finite-state reducer that reconciles free-text search, pin-drag reverse
// geocoding and place-detail enrichment into one committed location record.
// All transitions are serialized through the session mutex; async completions
// re-enter as guarded events so stale outcomes can never corrupt state.
package resolver

import (
	"context"
	"errors"

	"backoffice_portal_backend/internal/location/geocode"
	"backoffice_portal_backend/internal/location/transport"
)

// State is the machine's top-level state.
type State string

const (
	StateIdle                    State = "idle"
	StateSearching               State = "searching"
	StateLoadingPlaceDetails     State = "loadingPlaceDetails"
	StateFetchingCurrentPosition State = "fetchingCurrentPosition"
)

// ModalKind is the orthogonal active-modal flag. A modal can be open while
// the top-level state keeps evolving, so it is not a State.
type ModalKind string

const (
	ModalNone   ModalKind = ""
	ModalDetail ModalKind = "detail"
	ModalPostal ModalKind = "postal"
)

// Keys into Context.Errors.
const (
	ErrorKeySearch      = "search"
	ErrorKeyPlace       = "place"
	ErrorKeyGeolocation = "geolocation"
)

// Geolocation failures come from a fixed catalog; the machine surfaces the
// message verbatim and never retries on its own.
var (
	ErrGeolocationDenied      = errors.New("GEOLOCATION_PERMISSION_DENIED")
	ErrGeolocationTimeout     = errors.New("GEOLOCATION_TIMEOUT")
	ErrGeolocationUnavailable = errors.New("GEOLOCATION_UNAVAILABLE")
)

// Provider is the adapter surface the machine consumes.
type Provider interface {
	SearchLocations(ctx context.Context, query string) ([]transport.LocationSuggestion, error)
	ReverseGeocode(ctx context.Context, lat, lng float64) (transport.AddressComponents, error)
	GetPlaceDetails(ctx context.Context, placeID string) (transport.LocationDetails, error)
	GetPostalCodesByDistrict(ctx context.Context, districtID string) ([]transport.PostalCodeOption, error)
	GetPostalCodesByCountry(ctx context.Context, countryCode string) ([]transport.PostalCodeOption, error)
}

// Geolocator is the device-location collaborator. Implementations return one
// of the ErrGeolocation* sentinels on failure.
type Geolocator interface {
	CurrentPosition(ctx context.Context) (transport.Coordinates, error)
}

// Context is the machine's typed context. SelectedLocation is the single
// source of truth for the enclosing form; every one of its fields originates
// from the same resolution event.
type Context struct {
	State             State                          `json:"state"`
	SearchQuery       string                         `json:"searchQuery"`
	SearchResults     []transport.LocationSuggestion `json:"searchResults"`
	IsSearching       bool                           `json:"isSearching"`
	IsDropdownOpen    bool                           `json:"isDropdownOpen"`
	Coordinates       transport.Coordinates          `json:"coordinates"`
	SelectedLocation  *transport.SelectedLocation    `json:"selectedLocation,omitempty"`
	PlaceDetail       *transport.LocationDetails     `json:"placeDetail,omitempty"`
	PostalOptions     []transport.PostalCodeOption   `json:"postalOptions,omitempty"`
	TempLocationTitle string                         `json:"tempLocationTitle,omitempty"`
	ActiveModal       ModalKind                      `json:"activeModal"`
	Errors            map[string]string              `json:"errors"`
}

func newContext(initial *transport.SelectedLocation) Context {
	ctx := Context{
		State:         StateIdle,
		SearchResults: []transport.LocationSuggestion{},
		Errors:        map[string]string{},
	}
	if initial != nil {
		committed := *initial
		ctx.SelectedLocation = &committed
		ctx.Coordinates = committed.Coordinates
		ctx.SearchQuery = committed.Address
	}
	return ctx
}

// clone returns a deep copy safe to hand to callers.
func (c Context) clone() Context {
	out := c
	out.SearchResults = append([]transport.LocationSuggestion(nil), c.SearchResults...)
	out.PostalOptions = append([]transport.PostalCodeOption(nil), c.PostalOptions...)
	out.Errors = make(map[string]string, len(c.Errors))
	for key, msg := range c.Errors {
		out.Errors[key] = msg
	}
	if c.SelectedLocation != nil {
		committed := *c.SelectedLocation
		out.SelectedLocation = &committed
	}
	if c.PlaceDetail != nil {
		detail := *c.PlaceDetail
		out.PlaceDetail = &detail
	}
	return out
}

// Snapshot is what the HTTP layer renders: the machine context, the session's
// geocode coordinator state and the flattened form-field map.
type Snapshot struct {
	SessionID  string            `json:"sessionId"`
	Variant    string            `json:"variant"`
	Context    Context           `json:"context"`
	Geocode    geocode.Snapshot  `json:"geocode"`
	Modal      *DraftSnapshot    `json:"modal,omitempty"`
	FormFields map[string]string `json:"formFields"`
}

// retryRequest caches the arguments of the last failed request so RETRY can
// re-issue it unchanged.
type retryRequest struct {
	errorKey   string
	query      string
	suggestion transport.LocationSuggestion
}
