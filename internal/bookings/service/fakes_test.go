package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	bookingserrors "workspacemgr/internal/bookings/errors"
	"workspacemgr/internal/bookings/repository"
	"workspacemgr/pkg/config"
	mongotx "workspacemgr/pkg/db/mongo"
	"workspacemgr/pkg/logger"
	"workspacemgr/pkg/model"
)

// memBookingRepo is an in-memory BookingRepository. ExecuteTransaction holds
// the repo mutex for the whole callback, mirroring the serialization the
// real transactions provide. Ids are ObjectID hex, as the real store
// assigns them.
type memBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking
}

func newMemBookingRepo() *memBookingRepo {
	return &memBookingRepo{bookings: make(map[string]*model.Booking)}
}

func (r *memBookingRepo) Create(_ context.Context, booking *model.Booking) error {
	booking.ID = primitive.NewObjectID().Hex()
	now := time.Now().UTC()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	clone := *booking
	r.bookings[booking.ID] = &clone
	return nil
}

func (r *memBookingRepo) FindByID(_ context.Context, tenantID, id string) (*model.Booking, error) {
	b, ok := r.bookings[id]
	if !ok || b.TenantID != tenantID {
		return nil, bookingserrors.ErrNotFound
	}
	clone := *b
	return &clone, nil
}

func (r *memBookingRepo) Update(_ context.Context, tenantID, id string, booking *model.Booking) error {
	b, ok := r.bookings[id]
	if !ok || b.TenantID != tenantID {
		return bookingserrors.ErrNotFound
	}
	clone := *booking
	clone.ID = id
	clone.UpdatedAt = time.Now().UTC()
	r.bookings[id] = &clone
	return nil
}

func (r *memBookingRepo) FindOverlapping(_ context.Context, tenantID string, ref model.ResourceRef, date, startTime, endTime, excludeID string) ([]*model.Booking, error) {
	var out []*model.Booking
	for _, b := range r.bookings {
		if b.TenantID != tenantID || b.Resource != ref || b.Date != date {
			continue
		}
		if b.ID == excludeID || !b.Status.BlocksAvailability() {
			continue
		}
		if model.Overlaps(b.StartTime, b.EndTime, startTime, endTime) {
			clone := *b
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memBookingRepo) FindBookedResourceIDs(_ context.Context, tenantID string, resourceType model.ResourceType, date, startTime, endTime string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, b := range r.bookings {
		if b.TenantID != tenantID || b.Resource.Type != resourceType || b.Date != date {
			continue
		}
		if !b.Status.BlocksAvailability() {
			continue
		}
		if model.Overlaps(b.StartTime, b.EndTime, startTime, endTime) {
			seen[b.Resource.ID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *memBookingRepo) matches(b *model.Booking, q repository.SearchQuery) bool {
	if b.TenantID != q.TenantID {
		return false
	}
	f := q.Filter
	if f.UserID != "" && b.UserID != f.UserID {
		return false
	}
	if f.Resource != nil && b.Resource != *f.Resource {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.DateFrom != "" && b.Date < f.DateFrom {
		return false
	}
	if f.DateTo != "" && b.Date > f.DateTo {
		return false
	}
	return true
}

func (r *memBookingRepo) Search(_ context.Context, q repository.SearchQuery) ([]*model.Booking, error) {
	var all []*model.Booking
	for _, b := range r.bookings {
		if r.matches(b, q) {
			clone := *b
			all = append(all, &clone)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Date != all[j].Date {
			if q.Sort == repository.SortDateAsc {
				return all[i].Date < all[j].Date
			}
			return all[i].Date > all[j].Date
		}
		return all[i].StartTime < all[j].StartTime
	})

	start := int(q.Offset)
	if start > len(all) {
		start = len(all)
	}
	end := start + q.Limit
	if q.Limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (r *memBookingRepo) CountSearch(_ context.Context, q repository.SearchQuery) (int64, error) {
	var n int64
	for _, b := range r.bookings {
		if r.matches(b, q) {
			n++
		}
	}
	return n, nil
}

func (r *memBookingRepo) FindNoShowCandidates(_ context.Context, q repository.NoShowQuery) ([]*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Booking
	for _, b := range r.bookings {
		if b.Date != q.Date || b.Status != model.StatusConfirmed {
			continue
		}
		if b.CheckInTime != nil || b.StartTime >= q.StartBefore {
			continue
		}
		clone := *b
		out = append(out, &clone)
	}
	return out, nil
}

func (r *memBookingRepo) MarkNoShow(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok || b.Status != model.StatusConfirmed || b.CheckInTime != nil {
		return false, nil
	}
	b.Status = model.StatusNoShow
	b.IsNoShow = true
	return true, nil
}

func (r *memBookingRepo) ExecuteTransaction(_ context.Context, fn mongotx.TransactionFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(context.Background())
}

// memLockRepo is an in-memory LockRepository with first-writer-wins
// semantics.
type memLockRepo struct {
	mu    sync.Mutex
	locks map[string]struct{}
}

func newMemLockRepo() *memLockRepo {
	return &memLockRepo{locks: make(map[string]struct{})}
}

func (r *memLockRepo) Acquire(_ context.Context, lockID string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, held := r.locks[lockID]; held {
		return bookingserrors.ErrLockHeld
	}
	r.locks[lockID] = struct{}{}
	return nil
}

func (r *memLockRepo) Release(_ context.Context, lockID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.locks, lockID)
	return nil
}

// memDirectoryRepo serves a fixed directory of resources, floors, buildings
// and users.
type memDirectoryRepo struct {
	resources map[string]*model.Resource
	floors    map[string]*model.Floor
	buildings map[string]*model.Building
	users     map[string]*model.User
}

func newMemDirectoryRepo() *memDirectoryRepo {
	return &memDirectoryRepo{
		resources: make(map[string]*model.Resource),
		floors:    make(map[string]*model.Floor),
		buildings: make(map[string]*model.Building),
		users:     make(map[string]*model.User),
	}
}

func (r *memDirectoryRepo) addResource(res *model.Resource) {
	r.resources[res.ID] = res
}

func (r *memDirectoryRepo) FindResource(_ context.Context, tenantID string, ref model.ResourceRef) (*model.Resource, error) {
	res, ok := r.resources[ref.ID]
	if !ok || res.TenantID != tenantID || res.Type != ref.Type {
		return nil, bookingserrors.ErrResourceNotFound
	}
	return res, nil
}

func (r *memDirectoryRepo) ListFloorResources(_ context.Context, tenantID, floorID string, resourceType model.ResourceType) ([]*model.Resource, error) {
	var out []*model.Resource
	for _, res := range r.resources {
		if res.TenantID == tenantID && res.FloorID == floorID && res.Type == resourceType {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memDirectoryRepo) FindFloor(_ context.Context, tenantID, floorID string) (*model.Floor, error) {
	floor, ok := r.floors[floorID]
	if !ok || floor.TenantID != tenantID {
		return nil, bookingserrors.ErrFloorNotFound
	}
	return floor, nil
}

func (r *memDirectoryRepo) FindBuilding(_ context.Context, tenantID, buildingID string) (*model.Building, error) {
	building, ok := r.buildings[buildingID]
	if !ok || building.TenantID != tenantID {
		return nil, bookingserrors.ErrNotFound
	}
	return building, nil
}

func (r *memDirectoryRepo) FindUser(_ context.Context, tenantID, userID string) (*model.User, error) {
	user, ok := r.users[userID]
	if !ok || user.TenantID != tenantID {
		return nil, bookingserrors.ErrNotFound
	}
	return user, nil
}

// recordingPublisher captures published event types for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ *model.Booking) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func testConfig() *config.Config {
	return &config.Config{
		NoShowGrace:        2 * time.Hour,
		SweepInterval:      5 * time.Minute,
		SweepLockTTL:       2 * time.Minute,
		SlotLockTTL:        10 * time.Second,
		CheckInEarlyWindow: 30 * time.Minute,
		DefaultPageSize:    20,
		MaxPageSize:        100,
		MaxUpcomingDays:    90,
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT})
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustTime(layout, value string) time.Time {
	t, err := time.Parse(layout, value)
	if err != nil {
		panic(fmt.Sprintf("bad test time %q: %v", value, err))
	}
	return t
}
