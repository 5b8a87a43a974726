package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"backoffice_portal_backend/internal/events"
	"backoffice_portal_backend/internal/location/transport"
	"backoffice_portal_backend/platform/apperr"
	"backoffice_portal_backend/platform/config"
	"backoffice_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// Manager owns the live sessions: one resolution machine per mounted
// location field, keyed by UUID, torn down after a period of inactivity.
type Manager struct {
	providers  map[string]Provider
	geolocator Geolocator
	bus        events.Bus
	log        *logger.Logger
	debounce   time.Duration
	timeout    time.Duration
	ttl        time.Duration
	sweep      time.Duration

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// ManagerOptions bundles the manager's collaborators and tuning.
type ManagerOptions struct {
	Providers  map[string]Provider
	Geolocator Geolocator
	Bus        events.Bus
	Resolver   config.ResolverConfig
	Timeout    time.Duration
	Log        *logger.Logger
}

// NewManager creates a manager for the given provider variants.
func NewManager(opts ManagerOptions) *Manager {
	ttl := opts.Resolver.GetSessionTTL()
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	sweep := opts.Resolver.GetSessionSweepInterval()
	if sweep <= 0 {
		sweep = time.Minute
	}

	return &Manager{
		providers:  opts.Providers,
		geolocator: opts.Geolocator,
		bus:        opts.Bus,
		log:        opts.Log,
		debounce:   opts.Resolver.GetSearchDebounce(),
		timeout:    opts.Timeout,
		ttl:        ttl,
		sweep:      sweep,
		sessions:   map[uuid.UUID]*Session{},
	}
}

// Create starts a new session for the given variant, optionally seeded with
// a previously committed location.
func (m *Manager) Create(variant string, initial *transport.SelectedLocation) (*Session, error) {
	provider, err := m.Provider(variant)
	if err != nil {
		return nil, err
	}

	session := NewSession(uuid.New(), SessionOptions{
		Variant:    variant,
		Provider:   provider,
		Geolocator: m.geolocator,
		Bus:        m.bus,
		Log:        m.log,
		Debounce:   m.debounce,
		Timeout:    m.timeout,
		Initial:    initial,
	})

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	m.log.Debug("location session created", "sessionId", session.ID(), "variant", variant)
	return session, nil
}

// Get returns a live session by ID.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	session, ok := m.sessions[id]
	m.mu.Unlock()

	if !ok {
		return nil, apperr.NotFound("location session not found")
	}
	return session, nil
}

// Delete tears a session down.
func (m *Manager) Delete(id uuid.UUID) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return apperr.NotFound("location session not found")
	}
	session.Close()
	return nil
}

// Provider returns the adapter for a variant.
func (m *Manager) Provider(variant string) (Provider, error) {
	provider, ok := m.providers[variant]
	if !ok {
		return nil, apperr.BadRequest(fmt.Sprintf("unknown variant %q", variant))
	}
	return provider, nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Start runs the idle-session janitor until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-ticker.C:
			m.sweepIdle()
		}
	}
}

func (m *Manager) sweepIdle() {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	var expired []*Session
	for id, session := range m.sessions {
		if session.LastSeen().Before(cutoff) {
			expired = append(expired, session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, session := range expired {
		session.Close()
		m.log.Debug("idle location session swept", "sessionId", session.ID())
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, session := range m.sessions {
		sessions = append(sessions, session)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}
