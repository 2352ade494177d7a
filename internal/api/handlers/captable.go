package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/equitydesk/captable-backend/internal/api/request"
	"github.com/equitydesk/captable-backend/internal/api/response"
	"github.com/equitydesk/captable-backend/internal/apperrors"
	"github.com/equitydesk/captable-backend/internal/captable"
	"github.com/equitydesk/captable-backend/internal/service"
	"github.com/equitydesk/captable-backend/internal/validation"
)

// CapTableHandler handles cap table HTTP requests: the event log, computed
// snapshots, ownership queries, and the share class registry.
type CapTableHandler struct {
	capTableService *service.CapTableService
}

// NewCapTableHandler creates a new CapTableHandler
func NewCapTableHandler(capTableService *service.CapTableService) *CapTableHandler {
	return &CapTableHandler{
		capTableService: capTableService,
	}
}

// SnapshotResponse represents the computed cap table state as of a date.
type SnapshotResponse struct {
	AsOf                   string              `json:"as_of"`
	Positions              []captable.Position `json:"positions"`
	TotalSharesOutstanding decimal.Decimal     `json:"total_shares_outstanding"`
	FullyDilutedShares     decimal.Decimal     `json:"fully_diluted_shares"`
	OptionPoolAuthorized   decimal.Decimal     `json:"option_pool_authorized"`
	OptionPoolAvailable    decimal.Decimal     `json:"option_pool_available"`
}

// Snapshot handles GET requests for a point-in-time cap table snapshot,
// replayed from the event log.
//
// Endpoint: GET /api/captable/snapshot?as_of=YYYY-MM-DD
// Response: 200 OK with SnapshotResponse
// Error: 400 Bad Request if as_of is malformed
// Error: 422 Unprocessable Entity if replay hits a domain violation
func (h *CapTableHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid as_of date", err.Error())
		return
	}

	snap, err := h.capTableService.SnapshotAt(asOf)
	if err != nil {
		respondDomainError(w, "failed to compute snapshot", err)
		return
	}

	respondSnapshot(w, snap)
}

// OwnershipResponse represents one holder's ownership fraction.
type OwnershipResponse struct {
	HolderID     string          `json:"holder_id"`
	AsOf         string          `json:"as_of"`
	FullyDiluted bool            `json:"fully_diluted"`
	Percentage   decimal.Decimal `json:"percentage"`
}

// Ownership handles GET requests for a holder's ownership percentage.
// An unknown holder is not an error; it simply owns zero.
//
// Endpoint: GET /api/captable/ownership?holder_id=X&as_of=YYYY-MM-DD&fully_diluted=true
// Response: 200 OK with OwnershipResponse
// Error: 400 Bad Request if holder_id is missing or as_of is malformed
func (h *CapTableHandler) Ownership(w http.ResponseWriter, r *http.Request) {
	holderID := r.URL.Query().Get("holder_id")
	if holderID == "" {
		response.RespondError(w, http.StatusBadRequest, "validation failed", "holder_id is required")
		return
	}
	asOf, err := parseAsOf(r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid as_of date", err.Error())
		return
	}
	fullyDiluted := r.URL.Query().Get("fully_diluted") == "true"

	pct, err := h.capTableService.Ownership(holderID, asOf, fullyDiluted)
	if err != nil {
		respondDomainError(w, "failed to compute ownership", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, OwnershipResponse{
		HolderID:     holderID,
		AsOf:         asOf.Format(validation.DateFormat),
		FullyDiluted: fullyDiluted,
		Percentage:   pct,
	})
}

// EventResponse wraps one event with its envelope fields for listings.
type EventResponse struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	EventDate string         `json:"event_date"`
	Event     captable.Event `json:"event"`
}

// Events handles GET requests for the ordered event log.
//
// Endpoint: GET /api/captable/events
// Response: 200 OK with []EventResponse in replay order
func (h *CapTableHandler) Events(w http.ResponseWriter, r *http.Request) {
	events, err := h.capTableService.Events()
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to list events", err.Error())
		return
	}

	out := make([]EventResponse, len(events))
	for i, ev := range events {
		out[i] = newEventResponse(ev)
	}
	response.RespondJSON(w, http.StatusOK, out)
}

// Event handles GET requests for a single event by ID.
//
// Endpoint: GET /api/captable/events/{eventId}
// Response: 200 OK with EventResponse
// Error: 404 Not Found if no event carries the ID
func (h *CapTableHandler) Event(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	ev, err := h.capTableService.Event(eventID)
	if err != nil {
		if errors.Is(err, apperrors.ErrEventNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrEventNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, "failed to retrieve event", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, newEventResponse(ev))
}

// CreateEvent handles POST requests to append an event to the log. The event
// is validated by trial replay before it is persisted; an event that can
// never legally apply is rejected whole.
//
// Endpoint: POST /api/captable/events
// Request Body: CreateEventRequest (event_type, payload)
// Response: 201 Created with EventResponse
// Error: 400 Bad Request if the body or event fields are invalid
// Error: 409 Conflict if the event ID is already in the log
// Error: 422 Unprocessable Entity if the event violates cap table state
func (h *CapTableHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreateEventRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreateEvent(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	ev, err := captable.DecodeEvent(captable.EventType(req.EventType), req.Payload)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid event payload", err.Error())
		return
	}
	if ev.EventID() == "" {
		if m, ok := ev.(interface{ SetEventID(string) }); ok {
			m.SetEventID(uuid.NewString())
		}
	}

	if err := h.capTableService.AppendEvent(ev); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrDuplicateEvent):
			response.RespondError(w, http.StatusConflict, apperrors.ErrDuplicateEvent.Error(), err.Error())
		case errors.Is(err, apperrors.ErrInvalidEvent):
			response.RespondError(w, http.StatusBadRequest, "invalid event", err.Error())
		default:
			respondDomainError(w, "failed to append event", err)
		}
		return
	}

	response.RespondJSON(w, http.StatusCreated, newEventResponse(ev))
}

// Validate handles GET requests for snapshot consistency checks.
//
// Endpoint: GET /api/captable/validate?as_of=YYYY-MM-DD
// Response: 200 OK with validate.Report (valid flag, errors, warnings)
// Error: 422 Unprocessable Entity if replay itself fails
func (h *CapTableHandler) Validate(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid as_of date", err.Error())
		return
	}

	report, err := h.capTableService.ValidateAt(asOf)
	if err != nil {
		respondDomainError(w, "failed to validate snapshot", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, report)
}

// ShareClasses handles GET requests for the share class registry.
//
// Endpoint: GET /api/captable/share-classes
// Response: 200 OK with []captable.ShareClass ordered by ID
func (h *CapTableHandler) ShareClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.capTableService.ListShareClasses()
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to list share classes", err.Error())
		return
	}
	response.RespondJSON(w, http.StatusOK, classes)
}

// CreateShareClass handles POST requests to register a share class.
//
// Endpoint: POST /api/captable/share-classes
// Request Body: CreateShareClassRequest
// Response: 201 Created with captable.ShareClass
// Error: 400 Bad Request if validation fails or the rights are inconsistent
// Error: 409 Conflict if the class ID is already registered
func (h *CapTableHandler) CreateShareClass(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreateShareClassRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreateShareClass(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	sc := captable.ShareClass{
		ID:                    req.ID,
		Name:                  req.Name,
		Type:                  captable.ShareType(req.Type),
		LiquidationPreference: req.LiquidationPreference,
		Participation:         req.Participation,
		Conversion:            req.Conversion,
		AntiDilution:          captable.AntiDilutionKind(req.AntiDilution),
	}

	if err := h.capTableService.RegisterShareClass(sc); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrDuplicateShareClass):
			response.RespondError(w, http.StatusConflict, apperrors.ErrDuplicateShareClass.Error(), err.Error())
		case errors.Is(err, apperrors.ErrInvalidShareClass):
			response.RespondError(w, http.StatusBadRequest, "invalid share class", err.Error())
		default:
			response.RespondError(w, http.StatusInternalServerError, "failed to register share class", err.Error())
		}
		return
	}

	response.RespondJSON(w, http.StatusCreated, sc)
}

// RefreshResponse reports the size of the rebuilt event log, so loaders can
// confirm their writes were picked up.
type RefreshResponse struct {
	Events int `json:"events"`
}

// Refresh handles POST requests to rebuild the cached ledger from storage,
// used after out-of-band data loads. The route sits behind the internal API
// key middleware.
//
// Endpoint: POST /api/captable/refresh
// Response: 200 OK with RefreshResponse
// Error: 500 Internal Server Error if the rebuild fails
func (h *CapTableHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.capTableService.RefreshLedger(); err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to refresh ledger", err.Error())
		return
	}
	count, err := h.capTableService.EventCount()
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to count events", err.Error())
		return
	}
	response.RespondJSON(w, http.StatusOK, RefreshResponse{Events: count})
}

func newEventResponse(ev captable.Event) EventResponse {
	return EventResponse{
		EventID:   ev.EventID(),
		EventType: string(ev.Type()),
		EventDate: ev.EventDate().Format(validation.DateFormat),
		Event:     ev,
	}
}

func respondSnapshot(w http.ResponseWriter, snap *captable.Snapshot) {
	response.RespondJSON(w, http.StatusOK, SnapshotResponse{
		AsOf:                   snap.AsOfDate.Format(validation.DateFormat),
		Positions:              snap.Positions,
		TotalSharesOutstanding: snap.TotalSharesOutstanding,
		FullyDilutedShares:     snap.FullyDilutedShares(),
		OptionPoolAuthorized:   snap.OptionPoolAuthorized,
		OptionPoolAvailable:    snap.OptionPoolAvailable,
	})
}

// respondDomainError maps replay failures onto 422 so that clients can tell
// a broken event log from a broken server.
func respondDomainError(w http.ResponseWriter, message string, err error) {
	var violation *apperrors.DomainViolation
	if errors.As(err, &violation) {
		response.RespondError(w, http.StatusUnprocessableEntity, message, err.Error())
		return
	}
	response.RespondError(w, http.StatusInternalServerError, message, err.Error())
}
