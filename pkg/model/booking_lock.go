package model

import "time"

// AdvisoryLock is a short-lived lock document. A unique insert on the slot
// coordinates serializes concurrent writers for the same reservation slot;
// the no-show sweep uses the same mechanism with a fixed id to stay
// single-writer. Expired locks are reaped by a TTL index on expires_at.
type AdvisoryLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
