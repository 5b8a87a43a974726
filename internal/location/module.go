// Package location is the location resolution bounded context: provider
// adapter, per-session resolution machines, pin-point modal protocol and the
// commit audit trail.
package location

import (
	"context"

	"backoffice_portal_backend/internal/events"
	apphttp "backoffice_portal_backend/internal/http"
	"backoffice_portal_backend/internal/location/client"
	"backoffice_portal_backend/internal/location/handler"
	"backoffice_portal_backend/internal/location/repository"
	"backoffice_portal_backend/internal/location/resolver"
	"backoffice_portal_backend/platform/config"
	"backoffice_portal_backend/platform/logger"
	"backoffice_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Module is the location bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	manager *resolver.Manager
	cache   *client.Cache
}

// NewModule wires the location module: one provider client per variant, the
// shared response cache, the session manager and the commit audit subscriber.
// pool and rdb may be nil; the audit trail and the Redis cache tier are then
// disabled.
func NewModule(pool *pgxpool.Pool, rdb *redis.Client, eventBus events.Bus, val *validator.Validator, geo resolver.Geolocator, cfg *config.Config, log *logger.Logger) (*Module, error) {
	profile, err := config.LoadProviderProfile(cfg.GetProviderProfilePath())
	if err != nil {
		return nil, err
	}

	cache := client.NewCache(cfg, rdb, log)

	providers := map[string]resolver.Provider{
		"domestic":      client.New(profile.Domestic, client.VariantDomestic, cfg, cache, log),
		"international": client.New(profile.International, client.VariantInternational, cfg, cache, log),
	}

	manager := resolver.NewManager(resolver.ManagerOptions{
		Providers:  providers,
		Geolocator: geo,
		Bus:        eventBus,
		Resolver:   cfg,
		Timeout:    cfg.GetProviderTimeout(),
		Log:        log,
	})

	var repo *repository.Repository
	if pool != nil {
		repo = repository.New(pool)
		repository.Subscribe(eventBus, repo, log)
	}

	return &Module{
		handler: handler.New(manager, repo, val, log),
		manager: manager,
		cache:   cache,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "location"
}

// Manager exposes the session manager for the composition root (janitor).
func (m *Module) Manager() *resolver.Manager {
	return m.manager
}

// Cache exposes the provider response cache for the refresh worker.
func (m *Module) Cache() *client.Cache {
	return m.cache
}

// Start runs the idle-session janitor until ctx is cancelled.
func (m *Module) Start(ctx context.Context) {
	m.manager.Start(ctx)
}

// RegisterRoutes mounts the location routes on the authenticated group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/locations")

	group.POST("/sessions", m.handler.CreateSession)
	group.GET("/sessions/:id", m.handler.GetSession)
	group.DELETE("/sessions/:id", m.handler.DeleteSession)
	group.POST("/sessions/:id/events", m.handler.DispatchEvent)
	group.GET("/sessions/:id/commits", m.handler.ListCommits)

	modal := group.Group("/sessions/:id/modal")
	modal.POST("/open", m.handler.ModalOpen)
	modal.POST("/drag", m.handler.ModalDrag)
	modal.POST("/search", m.handler.ModalSearch)
	modal.POST("/select", m.handler.ModalSelect)
	modal.POST("/commit", m.handler.ModalCommit)
	modal.POST("/cancel", m.handler.ModalCancel)

	group.GET("/search", m.handler.Search)
	group.GET("/districts/:id/postal-codes", m.handler.PostalCodesByDistrict)
	group.GET("/countries/:code/postal-codes", m.handler.PostalCodesByCountry)
}

var _ apphttp.Module = (*Module)(nil)
