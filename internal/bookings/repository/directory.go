package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "workspacemgr/internal/bookings/errors"
	"workspacemgr/pkg/config"
	"workspacemgr/pkg/model"
)

const (
	DeskCollectionName        = "Desks"
	MeetingRoomCollectionName = "Meeting_rooms"
	FloorCollectionName       = "Floors"
	BuildingCollectionName    = "Buildings"
	UserCollectionName        = "Users"
)

// DirectoryRepository is the read-only view of the workspace directory:
// desks, meeting rooms, floors, buildings and users. The booking service
// never writes these collections.
type DirectoryRepository interface {
	FindResource(ctx context.Context, tenantID string, ref model.ResourceRef) (*model.Resource, error)
	ListFloorResources(ctx context.Context, tenantID, floorID string, resourceType model.ResourceType) ([]*model.Resource, error)
	FindFloor(ctx context.Context, tenantID, floorID string) (*model.Floor, error)
	FindBuilding(ctx context.Context, tenantID, buildingID string) (*model.Building, error)
	FindUser(ctx context.Context, tenantID, userID string) (*model.User, error)
}

type mongoDirectoryRepository struct {
	cfg *config.Config
	db  *mongo.Database
}

func NewMongoDirectoryRepository(cfg *config.Config) DirectoryRepository {
	return &mongoDirectoryRepository{
		cfg: cfg,
		db:  cfg.Client.Mongo.Database(cfg.MongoDatabaseName),
	}
}

func resourceCollection(resourceType model.ResourceType) (string, error) {
	switch resourceType {
	case model.ResourceDesk:
		return DeskCollectionName, nil
	case model.ResourceMeetingRoom:
		return MeetingRoomCollectionName, nil
	default:
		return "", fmt.Errorf("unknown resource type: %s", resourceType)
	}
}

func (r *mongoDirectoryRepository) FindResource(ctx context.Context, tenantID string, ref model.ResourceRef) (*model.Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	collName, err := resourceCollection(ref.Type)
	if err != nil {
		return nil, err
	}

	var resource model.Resource
	filter := bson.M{"_id": ref.ID, "tenant_id": tenantID}
	err = r.db.Collection(collName).FindOne(ctx, filter).Decode(&resource)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to find resource: %w", err)
	}

	resource.Type = ref.Type
	return &resource, nil
}

func (r *mongoDirectoryRepository) ListFloorResources(ctx context.Context, tenantID, floorID string, resourceType model.ResourceType) ([]*model.Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	collName, err := resourceCollection(resourceType)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"tenant_id": tenantID, "floor_id": floorID}
	cursor, err := r.db.Collection(collName).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list floor resources: %w", err)
	}
	defer cursor.Close(ctx)

	var resources []*model.Resource
	if err = cursor.All(ctx, &resources); err != nil {
		return nil, fmt.Errorf("failed to decode resources: %w", err)
	}

	for _, res := range resources {
		res.Type = resourceType
	}
	return resources, nil
}

func (r *mongoDirectoryRepository) FindFloor(ctx context.Context, tenantID, floorID string) (*model.Floor, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var floor model.Floor
	filter := bson.M{"_id": floorID, "tenant_id": tenantID}
	err := r.db.Collection(FloorCollectionName).FindOne(ctx, filter).Decode(&floor)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrFloorNotFound
		}
		return nil, fmt.Errorf("failed to find floor: %w", err)
	}
	return &floor, nil
}

func (r *mongoDirectoryRepository) FindBuilding(ctx context.Context, tenantID, buildingID string) (*model.Building, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var building model.Building
	filter := bson.M{"_id": buildingID, "tenant_id": tenantID}
	err := r.db.Collection(BuildingCollectionName).FindOne(ctx, filter).Decode(&building)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find building: %w", err)
	}
	return &building, nil
}

func (r *mongoDirectoryRepository) FindUser(ctx context.Context, tenantID, userID string) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var user model.User
	filter := bson.M{"_id": userID, "tenant_id": tenantID}
	err := r.db.Collection(UserCollectionName).FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}
