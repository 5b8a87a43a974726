package handler

import "backoffice_portal_backend/internal/location/transport"

// Machine event types accepted by the events endpoint. The atomic commit has
// no event type here on purpose: modal-drafted data reaches the committed
// state only through the modal commit endpoint.
const (
	EventSearchQueryChanged = "SEARCH_QUERY_CHANGED"
	EventSuggestionSelected = "SUGGESTION_SELECTED"
	EventCoordinatesChanged = "COORDINATES_CHANGED"
	EventGetCurrentLocation = "GET_CURRENT_LOCATION"
	EventOpenModal          = "OPEN_MODAL"
	EventCloseModal         = "CLOSE_MODAL"
	EventClearError         = "CLEAR_ERROR"
	EventRetry              = "RETRY"
)

// CreateSessionRequest starts a resolution session.
type CreateSessionRequest struct {
	Variant string                      `json:"variant" binding:"required,oneof=domestic international"`
	Initial *transport.SelectedLocation `json:"initial,omitempty"`
}

// CoordinatesPayload mirrors transport.Coordinates for request binding.
type CoordinatesPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (p CoordinatesPayload) toCoordinates() transport.Coordinates {
	return transport.Coordinates{Latitude: p.Latitude, Longitude: p.Longitude}
}

// SuggestionPayload mirrors transport.LocationSuggestion for request binding.
type SuggestionPayload struct {
	ID    string `json:"id" validate:"required"`
	Title string `json:"title" validate:"required"`
}

func (p SuggestionPayload) toSuggestion() transport.LocationSuggestion {
	return transport.LocationSuggestion{ID: p.ID, Title: p.Title}
}

// DispatchEventRequest is the tagged union for the events endpoint. Which
// payload field is required depends on Type; the handler validates the
// combination.
type DispatchEventRequest struct {
	Type                 string              `json:"type" binding:"required"`
	Query                *string             `json:"query,omitempty"`
	Suggestion           *SuggestionPayload  `json:"suggestion,omitempty"`
	Coordinates          *CoordinatesPayload `json:"coordinates,omitempty"`
	ShouldReverseGeocode bool                `json:"shouldReverseGeocode,omitempty"`
	Modal                string              `json:"modal,omitempty"`
	ErrorKey             string              `json:"errorKey,omitempty"`
}

// ModalOpenRequest opens the detail or postal modal.
type ModalOpenRequest struct {
	Kind        string              `json:"kind" binding:"required,oneof=detail postal"`
	Coordinates *CoordinatesPayload `json:"coordinates,omitempty"`
}

// ModalDragRequest moves the pin.
type ModalDragRequest struct {
	Coordinates CoordinatesPayload `json:"coordinates" binding:"required"`
}

// ModalSearchRequest runs the modal-scoped suggestion search.
type ModalSearchRequest struct {
	Query string `json:"query" binding:"required"`
}

// ModalSelectRequest picks a suggestion inside the modal.
type ModalSelectRequest struct {
	Suggestion SuggestionPayload `json:"suggestion" binding:"required"`
}
