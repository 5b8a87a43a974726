// Package geocode sequences the reverse-geocode requests produced by pin
// dragging. A dragged marker emits a rapid stream of coordinates; only the
// most recent position's result may survive, regardless of the order in which
// responses arrive.
package geocode

import (
	"context"
	"sync"
	"time"

	"backoffice_portal_backend/internal/location/transport"
	"backoffice_portal_backend/platform/logger"
)

// Provider is the slice of the location client the coordinator needs.
type Provider interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (transport.AddressComponents, error)
	GetPlaceDetails(ctx context.Context, placeID string) (transport.LocationDetails, error)
}

// Snapshot is the coordinator's observable state. All fields are cleared
// together; a partial clear that leaves stale PlaceDetails behind is exactly
// the bug this type exists to prevent.
type Snapshot struct {
	ReverseGeocodedData    *transport.AddressComponents `json:"reverseGeocodedData,omitempty"`
	IsReverseGeocoding     bool                         `json:"isReverseGeocoding"`
	ReverseGeocodeError    string                       `json:"reverseGeocodeError,omitempty"`
	PlaceDetails           *transport.LocationDetails   `json:"placeDetails,omitempty"`
	IsFetchingPlaceDetails bool                         `json:"isFetchingPlaceDetails"`
	PlaceDetailsError      string                       `json:"placeDetailsError,omitempty"`
}

// Coordinator owns the drag-triggered reverse-geocode chain. Supersession is
// enforced with a generation counter checked after every await, plus context
// cancellation so superseded requests stop spending provider quota. Arrival
// order is irrelevant: a response is applied only if its generation is still
// current.
type Coordinator struct {
	mu           sync.Mutex
	provider     Provider
	log          *logger.Logger
	timeout      time.Duration
	gen          uint64
	cancelChain  context.CancelFunc
	cancelDetail context.CancelFunc
	snap         Snapshot
}

// New creates a coordinator. timeout bounds each provider call.
func New(provider Provider, timeout time.Duration, log *logger.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Coordinator{
		provider: provider,
		timeout:  timeout,
		log:      log,
	}
}

// FetchReverseGeocode starts a new chain for the given position, superseding
// any chain still in flight. Unset coordinates are a no-op, not an error.
func (c *Coordinator) FetchReverseGeocode(coords transport.Coordinates) {
	if coords.IsZero() {
		return
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.cancelInFlight()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	c.cancelChain = cancel

	// A new drag invalidates everything from the previous position.
	c.snap = Snapshot{IsReverseGeocoding: true}
	c.mu.Unlock()

	go c.runReverseGeocode(ctx, gen, coords)
}

func (c *Coordinator) runReverseGeocode(ctx context.Context, gen uint64, coords transport.Coordinates) {
	address, err := c.provider.ReverseGeocode(ctx, coords.Latitude, coords.Longitude)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		// Superseded: this outcome reflects abandoned intent, success or
		// failure alike. Not surfaced, not logged as a user-facing error.
		return
	}

	c.snap.IsReverseGeocoding = false
	if err != nil {
		c.snap.ReverseGeocodeError = "reverse geocode failed"
		c.log.Debug("reverse geocode failed", "error", err)
		return
	}

	addressCopy := address
	c.snap.ReverseGeocodedData = &addressCopy

	if address.PlaceID == "" {
		return
	}

	// Chain the enrichment fetch. Its cancellation is independent from the
	// geocode leg so a detail failure cannot take the coarse address with it.
	detailCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
	c.cancelDetail = cancel
	c.snap.IsFetchingPlaceDetails = true

	go c.runPlaceDetails(detailCtx, gen, address.PlaceID)
}

func (c *Coordinator) runPlaceDetails(ctx context.Context, gen uint64, placeID string) {
	details, err := c.provider.GetPlaceDetails(ctx, placeID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}

	c.snap.IsFetchingPlaceDetails = false
	if err != nil {
		// The coarse address stays; the UI degrades to it.
		c.snap.PlaceDetailsError = "place detail lookup failed"
		c.log.Debug("chained place detail failed", "placeId", placeID, "error", err)
		return
	}

	detailsCopy := details
	c.snap.PlaceDetails = &detailsCopy
}

// Clear cancels any in-flight chain and resets every snapshot field in one
// step.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.cancelInFlight()
	c.snap = Snapshot{}
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.snap
	if c.snap.ReverseGeocodedData != nil {
		address := *c.snap.ReverseGeocodedData
		snap.ReverseGeocodedData = &address
	}
	if c.snap.PlaceDetails != nil {
		details := *c.snap.PlaceDetails
		snap.PlaceDetails = &details
	}
	return snap
}

// Busy reports whether any leg of the chain is still in flight.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.IsReverseGeocoding || c.snap.IsFetchingPlaceDetails
}

// cancelInFlight must be called with the mutex held.
func (c *Coordinator) cancelInFlight() {
	if c.cancelChain != nil {
		c.cancelChain()
		c.cancelChain = nil
	}
	if c.cancelDetail != nil {
		c.cancelDetail()
		c.cancelDetail = nil
	}
}
