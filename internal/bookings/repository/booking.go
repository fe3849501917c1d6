package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingserrors "workspacemgr/internal/bookings/errors"
	"workspacemgr/pkg/config"
	mongotx "workspacemgr/pkg/db/mongo"
	"workspacemgr/pkg/model"
)

const (
	CollectionName = "Bookings"
)

// SortOrder controls listing order. Search and my-bookings list most recent
// days first; upcoming lists soonest first. Within a day both order by
// start time ascending.
type SortOrder int

const (
	SortDateDesc SortOrder = iota
	SortDateAsc
)

// SearchQuery narrows a tenant-scoped booking listing.
type SearchQuery struct {
	TenantID string
	Filter   model.BookingFilter
	Sort     SortOrder
	Limit    int
	Offset   int64
}

type NoShowQuery struct {
	Date        string
	StartBefore string // exclusive HH:MM cutoff: start + grace < now
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, tenantID, id string) (*model.Booking, error)
	Update(ctx context.Context, tenantID, id string, booking *model.Booking) error
	FindOverlapping(ctx context.Context, tenantID string, ref model.ResourceRef, date, startTime, endTime, excludeID string) ([]*model.Booking, error)
	FindBookedResourceIDs(ctx context.Context, tenantID string, resourceType model.ResourceType, date, startTime, endTime string) ([]string, error)
	Search(ctx context.Context, q SearchQuery) ([]*model.Booking, error)
	CountSearch(ctx context.Context, q SearchQuery) (int64, error)
	FindNoShowCandidates(ctx context.Context, q NoShowQuery) ([]*model.Booking, error)
	MarkNoShow(ctx context.Context, id string) (bool, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless already inside a
// transaction, where wrapping the SessionContext would break transaction
// semantics.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline {
		if remaining := time.Until(deadline); remaining < timeout {
			return context.WithTimeout(ctx, remaining)
		}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, tenantID, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	// Tenant scoping in the filter: another tenant's booking is
	// indistinguishable from a missing one.
	filter := bson.M{"_id": objectID, "tenant_id": tenantID}

	var booking model.Booking
	err = r.collection.FindOne(ctx, filter).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) Update(ctx context.Context, tenantID, id string, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "tenant_id": tenantID}
	update := bson.M{
		"$set": bson.M{
			"date":                booking.Date,
			"start_time":          booking.StartTime,
			"end_time":            booking.EndTime,
			"status":              booking.Status,
			"purpose":             booking.Purpose,
			"check_in_time":       booking.CheckInTime,
			"check_out_time":      booking.CheckOutTime,
			"is_no_show":          booking.IsNoShow,
			"cancellation_reason": booking.CancellationReason,
			"cancelled_at":        booking.CancelledAt,
			"updated_at":          time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrNotFound
	}
	return nil
}

// FindOverlapping returns every booking on the same tenant/resource/date
// whose window overlaps [startTime, endTime) and whose status still blocks
// the slot. Touching windows do not match. excludeID removes one booking
// from the conflict set so an update can be validated against itself.
func (r *mongoBookingRepository) FindOverlapping(
	ctx context.Context,
	tenantID string,
	ref model.ResourceRef,
	date, startTime, endTime, excludeID string,
) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"tenant_id":     tenantID,
		"resource_type": ref.Type,
		"resource_id":   ref.ID,
		"date":          date,
		"status":        bson.M{"$nin": []model.Status{model.StatusCancelled, model.StatusNoShow}},
		"start_time":    bson.M{"$lt": endTime},
		"end_time":      bson.M{"$gt": startTime},
	}

	if excludeID != "" {
		objectID, err := primitive.ObjectIDFromHex(excludeID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, excludeID)
		}
		filter["_id"] = bson.M{"$ne": objectID}
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

// FindBookedResourceIDs returns the distinct resource ids of the given type
// with a blocking booking overlapping the window. Used by the floor-level
// availability query.
func (r *mongoBookingRepository) FindBookedResourceIDs(
	ctx context.Context,
	tenantID string,
	resourceType model.ResourceType,
	date, startTime, endTime string,
) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"tenant_id":     tenantID,
		"resource_type": resourceType,
		"date":          date,
		"status":        bson.M{"$nin": []model.Status{model.StatusCancelled, model.StatusNoShow}},
		"start_time":    bson.M{"$lt": endTime},
		"end_time":      bson.M{"$gt": startTime},
	}

	raw, err := r.collection.Distinct(ctx, "resource_id", filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list booked resources: %w", err)
	}

	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *mongoBookingRepository) Search(ctx context.Context, q SearchQuery) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	dateOrder := -1
	if q.Sort == SortDateAsc {
		dateOrder = 1
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: dateOrder}, {Key: "start_time", Value: 1}}).
		SetLimit(int64(q.Limit)).
		SetSkip(q.Offset)

	cursor, err := r.collection.Find(ctx, buildSearchFilter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) CountSearch(ctx context.Context, q SearchQuery) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildSearchFilter(q))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func buildSearchFilter(q SearchQuery) bson.M {
	filter := bson.M{"tenant_id": q.TenantID}

	if q.Filter.UserID != "" {
		filter["user_id"] = q.Filter.UserID
	}
	if q.Filter.Resource != nil {
		filter["resource_type"] = q.Filter.Resource.Type
		filter["resource_id"] = q.Filter.Resource.ID
	}
	if q.Filter.Status != "" {
		filter["status"] = q.Filter.Status
	}

	dateFilter := bson.M{}
	if q.Filter.DateFrom != "" {
		dateFilter["$gte"] = q.Filter.DateFrom
	}
	if q.Filter.DateTo != "" {
		dateFilter["$lte"] = q.Filter.DateTo
	}
	if len(dateFilter) > 0 {
		filter["date"] = dateFilter
	}

	return filter
}

// FindNoShowCandidates scans all tenants for confirmed bookings dated today
// with no check-in and a start time past the grace cutoff.
func (r *mongoBookingRepository) FindNoShowCandidates(ctx context.Context, q NoShowQuery) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"date":          q.Date,
		"status":        model.StatusConfirmed,
		"check_in_time": nil,
		"start_time":    bson.M{"$lt": q.StartBefore},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find no-show candidates: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

// MarkNoShow flips one booking to NoShow. The filter re-checks the sweep
// predicate at write time so a check-in that committed after the scan wins
// and the flip becomes a no-op.
func (r *mongoBookingRepository) MarkNoShow(ctx context.Context, id string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":           objectID,
		"status":        model.StatusConfirmed,
		"check_in_time": nil,
	}
	update := bson.M{
		"$set": bson.M{
			"status":     model.StatusNoShow,
			"is_no_show": true,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to mark booking as no-show: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
