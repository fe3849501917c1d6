package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"workspacemgr/internal/bookings/service"
	"workspacemgr/pkg/errors"
	httputil "workspacemgr/pkg/http"
	"workspacemgr/pkg/logger"
	"workspacemgr/pkg/middleware"
	"workspacemgr/pkg/model"
)

// AvailabilityHandler answers availability queries. Two modes share one
// endpoint: resource_type+resource_id checks a single resource, floor_id
// lists the free resources on a floor.
type AvailabilityHandler struct {
	availability service.AvailabilityService
	log          *logger.Logger
}

func NewAvailabilityHandler(availability service.AvailabilityService, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability, log: log}
}

func (h *AvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.HandlerFunc(http.MethodGet, "/api/v1/availability", h.Check)
}

type resourceAvailability struct {
	Resource  model.ResourceRef `json:"resource"`
	Date      string            `json:"date"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	Available bool              `json:"available"`
	Reason    string            `json:"reason,omitempty"`
}

func (h *AvailabilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		h.write(w, httputil.WriteError(w, errors.Unauthorized("caller identity missing from request")))
		return
	}

	query := r.URL.Query()
	date := query.Get("date")
	startTime := query.Get("start_time")
	endTime := query.Get("end_time")

	if floorID := query.Get("floor_id"); floorID != "" {
		resourceType := model.ResourceType(query.Get("resource_type"))
		if resourceType != model.ResourceDesk && resourceType != model.ResourceMeetingRoom {
			h.write(w, httputil.WriteError(w, errors.InvalidInput("resource_type must be desk or meeting_room")))
			return
		}

		result, err := h.availability.FreeResourcesOnFloor(r.Context(), caller.TenantID, floorID, resourceType, date, startTime, endTime)
		if err != nil {
			h.write(w, httputil.WriteError(w, err))
			return
		}
		h.write(w, httputil.WriteSuccess(w, "", result))
		return
	}

	ref := model.ResourceRef{
		Type: model.ResourceType(query.Get("resource_type")),
		ID:   query.Get("resource_id"),
	}
	if ref.Type == "" || ref.ID == "" {
		h.write(w, httputil.WriteError(w, errors.InvalidInput("either floor_id or resource_type and resource_id are required")))
		return
	}

	result := resourceAvailability{
		Resource:  ref,
		Date:      date,
		StartTime: startTime,
		EndTime:   endTime,
		Available: true,
	}

	err := h.availability.CheckResource(r.Context(), caller.TenantID, ref, date, startTime, endTime, "")
	if err != nil {
		appErr := errors.AsAppError(err)
		if appErr.Code != errors.CodeConflict {
			h.write(w, httputil.WriteError(w, err))
			return
		}
		result.Available = false
		result.Reason = appErr.Message
	}

	h.write(w, httputil.WriteSuccess(w, "", result))
}

func (h *AvailabilityHandler) write(w http.ResponseWriter, err error) {
	if err != nil {
		h.log.Error("failed to write response", "error", err)
	}
}
