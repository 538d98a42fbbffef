package domain

import "time"

// Idempotency records the outcome of a public write so that a retried request
// carrying the same Idempotency-Key gets the original response back instead of
// creating a second recommendation or review. Records are keyed by
// (client, scope, key): client is the caller (admin user or remote IP) and
// scope is the route the key was used on.
type Idempotency struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Client     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_client_scope_key,priority:1"`
	Scope      string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_client_scope_key,priority:2"`
	Key        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_client_scope_key,priority:3"`
	ResourceID string    `gorm:"type:TEXT NOT NULL"`
	Status     int       `gorm:"type:INTEGER NOT NULL"`
	Body       string    `gorm:"type:TEXT NOT NULL"`
	CreatedAt  time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// Snapshot is one entry of the local snapshot: a JSON document stored under a
// well known key such as "merchants" or "reviews_42".
type Snapshot struct {
	Key       string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Value     string    `gorm:"type:TEXT NOT NULL"`
	UpdatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoUpdateTime"`
}

// TableName implements the GORM tabler interface.
func (Snapshot) TableName() string { return "snapshots" }
