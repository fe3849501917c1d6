package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"workspacemgr/internal/bookings/service"
	"workspacemgr/pkg/config"
	"workspacemgr/pkg/errors"
	httputil "workspacemgr/pkg/http"
	"workspacemgr/pkg/logger"
	"workspacemgr/pkg/middleware"
	"workspacemgr/pkg/model"
)

// BookingHandler exposes the booking lifecycle over HTTP. Caller identity is
// bound to the request context by the identity middleware; handlers never
// read tenant or user ids from payloads.
type BookingHandler struct {
	cfg     *config.Config
	service service.BookingService
	sweeper service.NoShowService
	log     *logger.Logger
}

func NewBookingHandler(cfg *config.Config, svc service.BookingService, sweeper service.NoShowService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{cfg: cfg, service: svc, sweeper: sweeper, log: log}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.HandlerFunc(http.MethodPost, "/api/v1/bookings", h.Create)
	router.HandlerFunc(http.MethodGet, "/api/v1/bookings/search", h.Search)
	router.HandlerFunc(http.MethodGet, "/api/v1/bookings/my", h.MyBookings)
	router.HandlerFunc(http.MethodGet, "/api/v1/bookings/upcoming", h.Upcoming)
	router.HandlerFunc(http.MethodPost, "/api/v1/bookings/sweep", h.Sweep)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.PATCH("/api/v1/bookings/id/:id", h.Update)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.POST("/api/v1/bookings/id/:id/checkin", h.CheckIn)
	router.POST("/api/v1/bookings/id/:id/checkout", h.CheckOut)
}

func (h *BookingHandler) caller(w http.ResponseWriter, r *http.Request) (model.Caller, bool) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		h.writeError(w, r, errors.Unauthorized("caller identity missing from request"))
		return model.Caller{}, false
	}
	return caller, true
}

func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := errors.AsAppError(err)
	if appErr.StatusCode() >= http.StatusInternalServerError {
		h.log.Error("request failed",
			"request_id", middleware.RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "error", writeErr)
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var booking model.Booking
	if err := json.NewDecoder(r.Body).Decode(&booking); err != nil {
		h.writeError(w, r, errors.InvalidInput("invalid booking payload: "+err.Error()))
		return
	}

	view, err := h.service.Create(r.Context(), caller, &booking)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := httputil.WriteCreated(w, "booking created", view); err != nil {
		h.log.Error("failed to write response", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetByID(r.Context(), caller, params.ByName("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := httputil.WriteSuccess(w, "", view); err != nil {
		h.log.Error("failed to write response", "error", err)
	}
}

func (h *BookingHandler) Search(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, size, err := httputil.ExtractPage(r, h.cfg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, offset := httputil.PageToOffset(page, size)

	result, err := h.service.Search(r.Context(), caller, filter, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := httputil.WritePaginated(w, result.Bookings, result.TotalCount, page, size); err != nil {
		h.log.Error("failed to write response", "error", err)
	}
}

func (h *BookingHandler) MyBookings(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	page, size, err := httputil.ExtractPage(r, h.cfg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, offset := httputil.PageToOffset(page, size)

	result, err := h.service.GetUserBookings(r.Context(), caller, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := httputil.WritePaginated(w, result.Bookings, result.TotalCount, page, size); err != nil {
		h.log.Error("failed to write response", "error", err)
	}
}

func (h *BookingHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	days := 0
	if s := r.URL.Query().Get("days"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			h.writeError(w, r, errors.InvalidInput("invalid days parameter: "+s))
			return
		}
		days = v
	}

	page, size, err := httputil.ExtractPage(r, h.cfg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, offset := httputil.PageToOffset(page, size)

	result, err := h.service.GetUpcoming(r.Context(), caller, days, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := httputil.WritePaginated(w, result.Bookings, result.TotalCount, page, size); err != nil {
		h.log.Error("failed to write response", "error", err)
	}
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var update model.BookingUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, r, errors.InvalidInput("invalid update payload: "+err.Error()))
		return
	}

	view, err := h.service.Update(r.Context(), caller, params.ByName("id"), &update)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := httputil.WriteSuccess(w, "booking updated", view); err != nil {
		h.log.Error("failed to write response", "error", err)
	}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	// The reason is optional and so is the body itself.
	var req cancelRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, r, errors.InvalidInput("invalid cancel payload: "+err.Error()))
			return
		}
	}

	view, err := h.service.Cancel(r.Context(), caller, params.ByName("id"), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := httputil.WriteSuccess(w, "booking cancelled", view); err != nil {
		h.log.Error("failed to write response", "error", err)
	}
}

func (h *BookingHandler) CheckIn(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	view, err := h.service.CheckIn(r.Context(), caller, params.ByName("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := httputil.WriteSuccess(w, "checked in", view); err != nil {
		h.log.Error("failed to write response", "error", err)
	}
}

func (h *BookingHandler) CheckOut(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	view, err := h.service.CheckOut(r.Context(), caller, params.ByName("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := httputil.WriteSuccess(w, "checked out", view); err != nil {
		h.log.Error("failed to write response", "error", err)
	}
}

// Sweep triggers a no-show sweep on demand, in addition to the scheduled
// sweeper. Restricted to admins.
func (h *BookingHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if !caller.IsAdmin() {
		h.writeError(w, r, errors.Forbidden("running the no-show sweep requires the admin role"))
		return
	}

	flagged, err := h.sweeper.Run(r.Context())
	if err != nil {
		h.writeError(w, r, errors.Internal("no-show sweep failed", err))
		return
	}

	if err := httputil.WriteSuccess(w, "sweep completed", map[string]int{"flagged": flagged}); err != nil {
		h.log.Error("failed to write response", "error", err)
	}
}

func parseFilter(r *http.Request) (model.BookingFilter, error) {
	query := r.URL.Query()

	filter := model.BookingFilter{
		UserID:   query.Get("user_id"),
		DateFrom: query.Get("date_from"),
		DateTo:   query.Get("date_to"),
	}

	if s := query.Get("status"); s != "" {
		filter.Status = model.Status(s)
	}

	resourceType := query.Get("resource_type")
	resourceID := query.Get("resource_id")
	if (resourceType == "") != (resourceID == "") {
		return filter, errors.InvalidInput("resource_type and resource_id must be provided together")
	}
	if resourceType != "" {
		filter.Resource = &model.ResourceRef{Type: model.ResourceType(resourceType), ID: resourceID}
	}

	if filter.DateFrom != "" && !model.ValidDate(filter.DateFrom) {
		return filter, errors.InvalidInput("invalid date_from: " + filter.DateFrom)
	}
	if filter.DateTo != "" && !model.ValidDate(filter.DateTo) {
		return filter, errors.InvalidInput("invalid date_to: " + filter.DateTo)
	}

	return filter, nil
}
