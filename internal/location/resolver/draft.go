package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"backoffice_portal_backend/internal/location/client"
	"backoffice_portal_backend/internal/location/geocode"
	"backoffice_portal_backend/internal/location/transport"
	"backoffice_portal_backend/platform/logger"
)

// PinpointDraft is the modal-local draft: a disjoint copy of the committed
// location that the pin-point modal edits freely. It never aliases the outer
// context; the only way its data reaches the committed state is the single
// commit produced by Commit.
type PinpointDraft struct {
	provider    Provider
	coordinator *geocode.Coordinator
	log         *logger.Logger

	mu                   sync.Mutex
	coordinates          transport.Coordinates
	searchQuery          string
	searchResults        []transport.LocationSuggestion
	dragged              bool
	searchSelection      *transport.LocationDetails
	searchSelectionTitle string
}

// DraftSnapshot is the draft's observable state for the modal UI.
type DraftSnapshot struct {
	Coordinates          transport.Coordinates          `json:"coordinates"`
	SearchQuery          string                         `json:"searchQuery"`
	SearchResults        []transport.LocationSuggestion `json:"searchResults"`
	Dragged              bool                           `json:"dragged"`
	HasSearchSelection   bool                           `json:"hasSearchSelection"`
	SearchSelectionTitle string                         `json:"searchSelectionTitle,omitempty"`
	Geocode              geocode.Snapshot               `json:"geocode"`
}

// newPinpointDraft seeds a draft from the committed context. The pin starts
// at the committed coordinates (or the caller's override) and the search box
// at the best available address string. The dragged flag starts false so
// merely opening the modal never fires a reverse geocode.
func newPinpointDraft(provider Provider, committed Context, override *transport.Coordinates, timeout time.Duration, log *logger.Logger) *PinpointDraft {
	coords := committed.Coordinates
	if override != nil {
		coords = *override
	}

	query := committed.TempLocationTitle
	if committed.SelectedLocation != nil && committed.SelectedLocation.Address != "" {
		query = committed.SelectedLocation.Address
	}

	return &PinpointDraft{
		provider:      provider,
		coordinator:   geocode.New(provider, timeout, log),
		log:           log,
		coordinates:   coords,
		searchQuery:   query,
		searchResults: []transport.LocationSuggestion{},
	}
}

// Drag moves the pin. A drag invalidates any prior search selection (the two
// sources are mutually exclusive) and feeds the coordinator, which handles
// supersession of earlier drags.
func (d *PinpointDraft) Drag(coords transport.Coordinates) {
	d.mu.Lock()
	d.dragged = true
	d.searchSelection = nil
	d.searchSelectionTitle = ""
	d.coordinates = coords
	d.mu.Unlock()

	d.coordinator.FetchReverseGeocode(coords)
}

// Search runs the modal's own suggestion search. Results live in the draft
// only.
func (d *PinpointDraft) Search(ctx context.Context, query string) error {
	d.mu.Lock()
	d.searchQuery = query
	d.mu.Unlock()

	trimmed := strings.TrimSpace(query)
	if len([]rune(trimmed)) < client.MinQueryLength {
		d.mu.Lock()
		d.searchResults = []transport.LocationSuggestion{}
		d.mu.Unlock()
		return nil
	}

	results, err := d.provider.SearchLocations(ctx, trimmed)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.searchResults = results
	d.mu.Unlock()
	return nil
}

// Select picks a suggestion inside the modal. The place details are fetched
// into the draft as the candidate to commit; the committed location is not
// touched. Selecting supersedes any drag-derived enrichment.
func (d *PinpointDraft) Select(ctx context.Context, suggestion transport.LocationSuggestion) error {
	details, err := d.provider.GetPlaceDetails(ctx, suggestion.ID)
	if err != nil {
		return err
	}
	if details.Info.FormattedAddress == "" {
		details.Info.FormattedAddress = suggestion.Title
	}

	// The selection replaces the drag chain as the candidate source.
	d.coordinator.Clear()

	d.mu.Lock()
	d.dragged = false
	d.searchSelection = &details
	d.searchSelectionTitle = suggestion.Title
	d.searchQuery = suggestion.Title
	if !details.Coordinates.IsZero() {
		d.coordinates = details.Coordinates
	}
	d.mu.Unlock()
	return nil
}

// Commit resolves the candidate to commit by fixed priority:
//  1. explicit search selection
//  2. place details chained from a drag reverse geocode
//  3. the raw reverse-geocode address
//  4. a coordinates-only synthetic record
//
// Postal options are populated from sources 1 and 2 only; the later sources
// carry no enrichment to derive them from.
func (d *PinpointDraft) Commit() (transport.LocationDetails, []transport.PostalCodeOption, transport.Source) {
	geo := d.coordinator.Snapshot()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.searchSelection != nil {
		details := *d.searchSelection
		return details, postalOptionsFromDetails(details), transport.SourceSearch
	}

	if geo.PlaceDetails != nil {
		details := *geo.PlaceDetails
		if details.Coordinates.IsZero() {
			details.Coordinates = d.coordinates
		}
		return details, postalOptionsFromDetails(details), transport.SourceDrag
	}

	if geo.ReverseGeocodedData != nil {
		details := transport.LocationDetails{
			Coordinates: d.coordinates,
			Info:        transport.LocationInfo{AddressComponents: *geo.ReverseGeocodedData},
		}
		return details, nil, transport.SourceGeocode
	}

	details := transport.LocationDetails{
		Coordinates: d.coordinates,
		Info: transport.LocationInfo{
			AddressComponents: transport.AddressComponents{
				FormattedAddress: fmt.Sprintf("%.4f, %.4f", d.coordinates.Latitude, d.coordinates.Longitude),
			},
		},
	}
	return details, nil, transport.SourceCoordinates
}

// Cancel discards the draft: the in-flight drag chain is cancelled and its
// state cleared. Nothing reaches the committed context.
func (d *PinpointDraft) Cancel() {
	d.coordinator.Clear()

	d.mu.Lock()
	d.searchSelection = nil
	d.searchSelectionTitle = ""
	d.searchResults = nil
	d.dragged = false
	d.mu.Unlock()
}

// Snapshot copies the draft's observable state.
func (d *PinpointDraft) Snapshot() DraftSnapshot {
	geo := d.coordinator.Snapshot()

	d.mu.Lock()
	defer d.mu.Unlock()

	return DraftSnapshot{
		Coordinates:          d.coordinates,
		SearchQuery:          d.searchQuery,
		SearchResults:        append([]transport.LocationSuggestion(nil), d.searchResults...),
		Dragged:              d.dragged,
		HasSearchSelection:   d.searchSelection != nil,
		SearchSelectionTitle: d.searchSelectionTitle,
		Geocode:              geo,
	}
}
