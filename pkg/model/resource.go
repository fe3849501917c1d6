package model

import "time"

// Resource is the read model for a bookable desk or meeting room. These
// records are owned by the resource directory service; this core only reads
// them to gate availability and to denormalize names into booking views.
type Resource struct {
	ID          string       `json:"id" bson:"_id"`
	TenantID    string       `json:"tenant_id" bson:"tenant_id"`
	Type        ResourceType `json:"type" bson:"-"`
	FloorID     string       `json:"floor_id" bson:"floor_id"`
	Name        string       `json:"name" bson:"name"`
	Capacity    int          `json:"capacity,omitempty" bson:"capacity,omitempty"`
	IsAvailable bool         `json:"is_available" bson:"is_available"`
}

// Ref returns the booking-side reference to this resource.
func (r *Resource) Ref() ResourceRef {
	return ResourceRef{Type: r.Type, ID: r.ID}
}

type Floor struct {
	ID         string `json:"id" bson:"_id"`
	TenantID   string `json:"tenant_id" bson:"tenant_id"`
	BuildingID string `json:"building_id" bson:"building_id"`
	Name       string `json:"name" bson:"name"`
}

type Building struct {
	ID       string `json:"id" bson:"_id"`
	TenantID string `json:"tenant_id" bson:"tenant_id"`
	Name     string `json:"name" bson:"name"`
}

// User is the requester read model, used only for view projections.
type User struct {
	ID       string `json:"id" bson:"_id"`
	TenantID string `json:"tenant_id" bson:"tenant_id"`
	Name     string `json:"name" bson:"name"`
	Email    string `json:"email" bson:"email"`
}

// FloorAvailability lists the free resources of one type on a floor for a
// requested window.
type FloorAvailability struct {
	FloorID   string       `json:"floor_id"`
	Type      ResourceType `json:"resource_type"`
	Date      string       `json:"date"`
	StartTime string       `json:"start_time"`
	EndTime   string       `json:"end_time"`
	Free      []*Resource  `json:"free"`
	CheckedAt time.Time    `json:"checked_at"`
}
