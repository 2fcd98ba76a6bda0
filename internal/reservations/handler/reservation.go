package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"roomio/internal/reservations/service"
	"roomio/internal/rooms"
	apperrors "roomio/pkg/errors"
	httputil "roomio/pkg/http"
	"roomio/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

// userIDHeader carries the authenticated caller's identity, injected by the
// gateway in front of this service.
const userIDHeader = "X-User-ID"

type createRequest struct {
	RoomID    string `json:"room_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type rescheduleRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type ReservationHandler struct {
	service service.ReservationService
	rooms   rooms.Directory
	log     *logger.Logger
}

func NewReservationHandler(service service.ReservationService, rooms rooms.Directory, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		rooms:   rooms,
		log:     log,
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := h.requireUser(w, r, "Create")
	if !ok {
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	start, end, ok := h.parseWindow(w, "Create", req.StartTime, req.EndTime)
	if !ok {
		return
	}

	reservation, err := h.service.Create(r.Context(), req.RoomID, userID, start, end)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "error", err)
	}
}

func (h *ReservationHandler) Reschedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := h.requireUser(w, r, "Reschedule")
	if !ok {
		return
	}
	id := ps.ByName("id")

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Reschedule", apperrors.InvalidInput("Invalid request body"))
		return
	}

	start, end, ok := h.parseWindow(w, "Reschedule", req.StartTime, req.EndTime)
	if !ok {
		return
	}

	reservation, err := h.service.Reschedule(r.Context(), userID, id, start, end)
	if err != nil {
		h.writeError(w, "Reschedule", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "Reschedule", "error", err)
	}
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := h.requireUser(w, r, "Cancel")
	if !ok {
		return
	}

	if err := h.service.Cancel(r.Context(), userID, ps.ByName("id")); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ReservationHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := h.requireUser(w, r, "ListMine")
	if !ok {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	reservations, total, err := h.service.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	if err := httputil.WritePaginated(w, reservations, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListMine", "error", err)
	}
}

func (h *ReservationHandler) ListByRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListByRoom", err)
		return
	}

	reservations, total, err := h.service.ListByRoom(r.Context(), ps.ByName("id"), limit, offset)
	if err != nil {
		h.writeError(w, "ListByRoom", err)
		return
	}

	if err := httputil.WritePaginated(w, reservations, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListByRoom", "error", err)
	}
}

func (h *ReservationHandler) Availability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		h.writeError(w, "Availability", apperrors.InvalidInput("'date' query parameter is required"))
		return
	}
	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		h.writeError(w, "Availability", apperrors.InvalidInput("invalid date format, must be YYYY-MM-DD"))
		return
	}

	free, err := h.service.Availability(r.Context(), ps.ByName("id"), day)
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}

	if err := httputil.WriteSuccess(w, free); err != nil {
		h.log.Error("failed to write success response", "handler", "Availability", "error", err)
	}
}

func (h *ReservationHandler) ListRooms(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	all, err := h.rooms.List(r.Context())
	if err != nil {
		h.writeError(w, "ListRooms", apperrors.Unavailable("Room directory", err))
		return
	}

	if err := httputil.WriteSuccess(w, all); err != nil {
		h.log.Error("failed to write success response", "handler", "ListRooms", "error", err)
	}
}

func (h *ReservationHandler) requireUser(w http.ResponseWriter, r *http.Request, op string) (string, bool) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		h.writeError(w, op, apperrors.InvalidInput("X-User-ID header is required"))
		return "", false
	}
	return userID, true
}

// parseWindow parses the two RFC3339 timestamps of a reservation window.
// Interval validity itself is the service's concern.
func (h *ReservationHandler) parseWindow(w http.ResponseWriter, op, startStr, endStr string) (time.Time, time.Time, bool) {
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		h.writeError(w, op, apperrors.InvalidInput("invalid start_time format, must be RFC3339"))
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		h.writeError(w, op, apperrors.InvalidInput("invalid end_time format, must be RFC3339"))
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "error", writeErr)
	}
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations", h.Create)
	router.GET("/api/v1/reservations/me", h.ListMine)
	router.PATCH("/api/v1/reservations/:id/reschedule", h.Reschedule)
	router.DELETE("/api/v1/reservations/:id", h.Cancel)
	router.GET("/api/v1/rooms", h.ListRooms)
	router.GET("/api/v1/rooms/:id/reservations", h.ListByRoom)
	router.GET("/api/v1/rooms/:id/availability", h.Availability)
}
