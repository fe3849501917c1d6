package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"

	"workspacemgr/internal/bookings/service"
	"workspacemgr/pkg/config"
	"workspacemgr/pkg/errors"
	"workspacemgr/pkg/logger"
	"workspacemgr/pkg/middleware"
	"workspacemgr/pkg/model"
)

type mockBookingService struct {
	createFn   func(ctx context.Context, caller model.Caller, booking *model.Booking) (*model.BookingView, error)
	getByIDFn  func(ctx context.Context, caller model.Caller, id string) (*model.BookingView, error)
	searchFn   func(ctx context.Context, caller model.Caller, filter model.BookingFilter, limit int, offset int64) (*service.SearchPage, error)
	updateFn   func(ctx context.Context, caller model.Caller, id string, update *model.BookingUpdate) (*model.BookingView, error)
	cancelFn   func(ctx context.Context, caller model.Caller, id, reason string) (*model.BookingView, error)
	checkInFn  func(ctx context.Context, caller model.Caller, id string) (*model.BookingView, error)
	checkOutFn func(ctx context.Context, caller model.Caller, id string) (*model.BookingView, error)
}

func (m *mockBookingService) Create(ctx context.Context, caller model.Caller, booking *model.Booking) (*model.BookingView, error) {
	return m.createFn(ctx, caller, booking)
}

func (m *mockBookingService) GetByID(ctx context.Context, caller model.Caller, id string) (*model.BookingView, error) {
	return m.getByIDFn(ctx, caller, id)
}

func (m *mockBookingService) Search(ctx context.Context, caller model.Caller, filter model.BookingFilter, limit int, offset int64) (*service.SearchPage, error) {
	return m.searchFn(ctx, caller, filter, limit, offset)
}

func (m *mockBookingService) GetUserBookings(ctx context.Context, caller model.Caller, limit int, offset int64) (*service.SearchPage, error) {
	return m.searchFn(ctx, caller, model.BookingFilter{UserID: caller.UserID}, limit, offset)
}

func (m *mockBookingService) GetUpcoming(ctx context.Context, caller model.Caller, days, limit int, offset int64) (*service.SearchPage, error) {
	return m.searchFn(ctx, caller, model.BookingFilter{UserID: caller.UserID}, limit, offset)
}

func (m *mockBookingService) Update(ctx context.Context, caller model.Caller, id string, update *model.BookingUpdate) (*model.BookingView, error) {
	return m.updateFn(ctx, caller, id, update)
}

func (m *mockBookingService) Cancel(ctx context.Context, caller model.Caller, id, reason string) (*model.BookingView, error) {
	return m.cancelFn(ctx, caller, id, reason)
}

func (m *mockBookingService) CheckIn(ctx context.Context, caller model.Caller, id string) (*model.BookingView, error) {
	return m.checkInFn(ctx, caller, id)
}

func (m *mockBookingService) CheckOut(ctx context.Context, caller model.Caller, id string) (*model.BookingView, error) {
	return m.checkOutFn(ctx, caller, id)
}

type mockSweeper struct {
	runFn func(ctx context.Context) (int, error)
}

func (m *mockSweeper) Run(ctx context.Context) (int, error) { return m.runFn(ctx) }
func (m *mockSweeper) Start(context.Context)                {}

func testRouter(svc service.BookingService, sweeper service.NoShowService) *httprouter.Router {
	cfg := &config.Config{DefaultPageSize: 20, MaxPageSize: 100}
	log := logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT})
	router := httprouter.New()
	NewBookingHandler(cfg, svc, sweeper, log).RegisterRoutes(router)
	return router
}

func doRequest(router *httprouter.Router, method, path string, body []byte, caller *model.Caller) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != nil {
		req = req.WithContext(context.WithValue(req.Context(), middleware.CallerKey, *caller))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateHandler(t *testing.T) {
	var gotCaller model.Caller
	svc := &mockBookingService{
		createFn: func(_ context.Context, caller model.Caller, booking *model.Booking) (*model.BookingView, error) {
			gotCaller = caller
			booking.ID = "booking-1"
			booking.Status = model.StatusConfirmed
			return &model.BookingView{Booking: *booking}, nil
		},
	}
	router := testRouter(svc, nil)

	payload, _ := json.Marshal(map[string]any{
		"resource": map[string]string{
			"resource_type": "desk",
			"resource_id":   "desk-1",
		},
		"date":       "2026-09-01",
		"start_time": "09:00",
		"end_time":   "10:00",
	})
	caller := model.Caller{TenantID: "tenant-1", UserID: "alice"}
	rec := doRequest(router, http.MethodPost, "/api/v1/bookings", payload, &caller)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotCaller.UserID != "alice" {
		t.Errorf("expected caller to reach the service, got %+v", gotCaller)
	}
}

func TestCreateHandlerRejectsMissingIdentity(t *testing.T) {
	svc := &mockBookingService{}
	router := testRouter(svc, nil)

	rec := doRequest(router, http.MethodPost, "/api/v1/bookings", []byte(`{}`), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCreateHandlerRejectsMalformedBody(t *testing.T) {
	svc := &mockBookingService{}
	router := testRouter(svc, nil)

	caller := model.Caller{TenantID: "tenant-1", UserID: "alice"}
	rec := doRequest(router, http.MethodPost, "/api/v1/bookings", []byte(`{not json`), &caller)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestErrorCodesMapToHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", errors.NotFound("booking"), http.StatusNotFound},
		{"conflict", errors.Conflict("slot taken"), http.StatusConflict},
		{"invalid state", errors.InvalidState("already cancelled"), http.StatusConflict},
		{"forbidden", errors.Forbidden("not yours"), http.StatusForbidden},
		{"validation", errors.Validation("bad window", nil), http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBookingService{
				cancelFn: func(context.Context, model.Caller, string, string) (*model.BookingView, error) {
					return nil, tt.err
				},
			}
			router := testRouter(svc, nil)

			caller := model.Caller{TenantID: "tenant-1", UserID: "alice"}
			rec := doRequest(router, http.MethodPost, "/api/v1/bookings/id/abc/cancel", nil, &caller)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}

			var body struct {
				Code string `json:"code"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if body.Code == "" {
				t.Error("expected a machine-readable error code in the body")
			}
		})
	}
}

func TestSearchHandlerFilterParsing(t *testing.T) {
	var gotFilter model.BookingFilter
	svc := &mockBookingService{
		searchFn: func(_ context.Context, _ model.Caller, filter model.BookingFilter, _ int, _ int64) (*service.SearchPage, error) {
			gotFilter = filter
			return &service.SearchPage{}, nil
		},
	}
	router := testRouter(svc, nil)

	caller := model.Caller{TenantID: "tenant-1", UserID: "ops", Roles: []string{model.RoleAdmin}}
	rec := doRequest(router, http.MethodGet,
		"/api/v1/bookings/search?user_id=alice&status=confirmed&resource_type=desk&resource_id=desk-1&date_from=2026-09-01&date_to=2026-09-30",
		nil, &caller)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotFilter.UserID != "alice" || gotFilter.Status != model.StatusConfirmed {
		t.Errorf("unexpected filter: %+v", gotFilter)
	}
	if gotFilter.Resource == nil || gotFilter.Resource.ID != "desk-1" {
		t.Errorf("expected resource filter, got %+v", gotFilter.Resource)
	}
}

func TestSearchHandlerRejectsHalfResourceFilter(t *testing.T) {
	svc := &mockBookingService{}
	router := testRouter(svc, nil)

	caller := model.Caller{TenantID: "tenant-1", UserID: "ops", Roles: []string{model.RoleAdmin}}
	rec := doRequest(router, http.MethodGet, "/api/v1/bookings/search?resource_type=desk", nil, &caller)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSweepHandlerRequiresAdmin(t *testing.T) {
	sweeper := &mockSweeper{runFn: func(context.Context) (int, error) { return 3, nil }}
	router := testRouter(&mockBookingService{}, sweeper)

	caller := model.Caller{TenantID: "tenant-1", UserID: "alice"}
	rec := doRequest(router, http.MethodPost, "/api/v1/bookings/sweep", nil, &caller)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	adminCaller := model.Caller{TenantID: "tenant-1", UserID: "ops", Roles: []string{model.RoleAdmin}}
	rec = doRequest(router, http.MethodPost, "/api/v1/bookings/sweep", nil, &adminCaller)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
