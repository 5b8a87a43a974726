// Package handler exposes the location resolution engine over REST: session
// lifecycle, machine event dispatch, the pin-point modal sub-resource and the
// postal-code option sources.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"backoffice_portal_backend/internal/location/client"
	"backoffice_portal_backend/internal/location/repository"
	"backoffice_portal_backend/internal/location/resolver"
	"backoffice_portal_backend/internal/location/transport"
	"backoffice_portal_backend/platform/apperr"
	"backoffice_portal_backend/platform/httpkit"
	"backoffice_portal_backend/platform/logger"
	"backoffice_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	manager  *resolver.Manager
	repo     *repository.Repository
	validate *validator.Validator
	log      *logger.Logger
}

func New(manager *resolver.Manager, repo *repository.Repository, validate *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{
		manager:  manager,
		repo:     repo,
		validate: validate,
		log:      log,
	}
}

// CreateSession handles POST /locations/sessions.
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid session request", err.Error())
		return
	}

	session, err := h.manager.Create(req.Variant, req.Initial)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, session.Snapshot())
}

// GetSession handles GET /locations/sessions/:id.
func (h *Handler) GetSession(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	httpkit.OK(c, session.Snapshot())
}

// DeleteSession handles DELETE /locations/sessions/:id.
func (h *Handler) DeleteSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.manager.Delete(id)) {
		return
	}
	httpkit.NoContent(c)
}

// DispatchEvent handles POST /locations/sessions/:id/events.
func (h *Handler) DispatchEvent(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req DispatchEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid event payload", err.Error())
		return
	}

	if err := h.applyEvent(session, req); err != nil {
		h.respondError(c, err)
		return
	}

	httpkit.OK(c, session.Snapshot())
}

func (h *Handler) applyEvent(session *resolver.Session, req DispatchEventRequest) error {
	switch req.Type {
	case EventSearchQueryChanged:
		if req.Query == nil {
			return apperr.Validation("query is required")
		}
		session.ChangeSearchQuery(*req.Query)
		return nil

	case EventSuggestionSelected:
		if req.Suggestion == nil {
			return apperr.Validation("suggestion is required")
		}
		if err := h.validate.Struct(*req.Suggestion); err != nil {
			return apperr.Validation("suggestion needs id and title")
		}
		session.SelectSuggestion(req.Suggestion.toSuggestion())
		return nil

	case EventCoordinatesChanged:
		if req.Coordinates == nil {
			return apperr.Validation("coordinates are required")
		}
		session.ChangeCoordinates(req.Coordinates.toCoordinates(), req.ShouldReverseGeocode)
		return nil

	case EventGetCurrentLocation:
		session.RequestCurrentLocation()
		return nil

	case EventOpenModal:
		var override *transport.Coordinates
		if req.Coordinates != nil {
			coords := req.Coordinates.toCoordinates()
			override = &coords
		}
		return session.OpenModal(resolver.ModalKind(req.Modal), override)

	case EventCloseModal:
		session.CloseModal()
		return nil

	case EventClearError:
		if req.ErrorKey == "" {
			return apperr.Validation("errorKey is required")
		}
		session.ClearError(req.ErrorKey)
		return nil

	case EventRetry:
		return session.Retry()

	default:
		return apperr.BadRequest("unknown event type")
	}
}

// ModalOpen handles POST /locations/sessions/:id/modal/open.
func (h *Handler) ModalOpen(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req ModalOpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid modal open payload", err.Error())
		return
	}

	var override *transport.Coordinates
	if req.Coordinates != nil {
		coords := req.Coordinates.toCoordinates()
		override = &coords
	}

	if httpkit.HandleError(c, session.OpenModal(resolver.ModalKind(req.Kind), override)) {
		return
	}
	httpkit.OK(c, session.Snapshot())
}

// ModalDrag handles POST /locations/sessions/:id/modal/drag.
func (h *Handler) ModalDrag(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req ModalDragRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid drag payload", err.Error())
		return
	}

	if httpkit.HandleError(c, session.ModalDrag(req.Coordinates.toCoordinates())) {
		return
	}
	httpkit.OK(c, session.Snapshot())
}

// ModalSearch handles POST /locations/sessions/:id/modal/search.
func (h *Handler) ModalSearch(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req ModalSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid search payload", err.Error())
		return
	}

	if err := session.ModalSearch(c.Request.Context(), req.Query); err != nil {
		h.respondError(c, err)
		return
	}
	httpkit.OK(c, session.Snapshot())
}

// ModalSelect handles POST /locations/sessions/:id/modal/select.
func (h *Handler) ModalSelect(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req ModalSelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid select payload", err.Error())
		return
	}
	if err := h.validate.Struct(req.Suggestion); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "suggestion needs id and title", nil)
		return
	}

	if err := session.ModalSelect(c.Request.Context(), req.Suggestion.toSuggestion()); err != nil {
		h.respondError(c, err)
		return
	}
	httpkit.OK(c, session.Snapshot())
}

// ModalCommit handles POST /locations/sessions/:id/modal/commit.
func (h *Handler) ModalCommit(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, session.ModalCommit()) {
		return
	}
	httpkit.OK(c, session.Snapshot())
}

// ModalCancel handles POST /locations/sessions/:id/modal/cancel.
func (h *Handler) ModalCancel(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	session.CloseModal()
	httpkit.OK(c, session.Snapshot())
}

// ListCommits handles GET /locations/sessions/:id/commits.
func (h *Handler) ListCommits(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	if h.repo == nil {
		httpkit.Error(c, http.StatusNotImplemented, "commit audit store is not configured", nil)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	commits, err := h.repo.ListBySession(c.Request.Context(), id, limit)
	if err != nil {
		h.log.DatabaseError("list location commits", err)
		httpkit.Error(c, http.StatusInternalServerError, "could not list commits", nil)
		return
	}

	httpkit.OK(c, gin.H{"items": commits})
}

// Search handles GET /locations/search — a stateless suggestion passthrough
// for simple fields that do not need a session.
func (h *Handler) Search(c *gin.Context) {
	provider, ok := h.provider(c)
	if !ok {
		return
	}

	results, err := provider.SearchLocations(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"items": results})
}

// PostalCodesByDistrict handles GET /locations/districts/:id/postal-codes.
func (h *Handler) PostalCodesByDistrict(c *gin.Context) {
	provider, ok := h.provider(c)
	if !ok {
		return
	}

	options, err := provider.GetPostalCodesByDistrict(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"items": options})
}

// PostalCodesByCountry handles GET /locations/countries/:code/postal-codes.
func (h *Handler) PostalCodesByCountry(c *gin.Context) {
	provider, ok := h.provider(c)
	if !ok {
		return
	}

	options, err := provider.GetPostalCodesByCountry(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"items": options})
}

func (h *Handler) session(c *gin.Context) (*resolver.Session, bool) {
	id, ok := h.sessionID(c)
	if !ok {
		return nil, false
	}

	session, err := h.manager.Get(id)
	if httpkit.HandleError(c, err) {
		return nil, false
	}
	return session, true
}

func (h *Handler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid session id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) provider(c *gin.Context) (resolver.Provider, bool) {
	variant := strings.ToLower(c.DefaultQuery("variant", "domestic"))
	provider, err := h.manager.Provider(variant)
	if httpkit.HandleError(c, err) {
		return nil, false
	}
	return provider, true
}

// respondError maps adapter and machine errors onto the response taxonomy.
func (h *Handler) respondError(c *gin.Context, err error) {
	var fetchErr *client.FetchError
	switch {
	case errors.As(err, &fetchErr):
		if errors.Is(fetchErr.Err, context.DeadlineExceeded) {
			httpkit.HandleError(c, apperr.Timeout("location provider timed out"))
			return
		}
		httpkit.HandleError(c, apperr.Unavailable("location provider unavailable"))
	default:
		httpkit.HandleError(c, err)
	}
}
