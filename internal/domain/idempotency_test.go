package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestIdempotency_MigrateAndUniqueKey(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasTable(&Idempotency{}) {
		t.Fatalf("expected table %q", Idempotency{}.TableName())
	}
	if !m.HasIndex(&Idempotency{}, "ux_client_scope_key") {
		t.Fatalf("expected composite index ux_client_scope_key")
	}

	now := time.Now().UTC()
	rec := &Idempotency{
		ID: "id-1", Client: "1.2.3.4", Scope: "recommendations", Key: "k1",
		ResourceID: "r1", Status: 201, Body: `{"id":"r1"}`,
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}

	var got Idempotency
	if err := db.First(&got, "id = ?", "id-1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.ResourceID != "r1" || got.Status != 201 || got.Body != `{"id":"r1"}` {
		t.Fatalf("unexpected row: %+v", got)
	}

	dup := *rec
	dup.ID = "id-2"
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected unique violation on (client, scope, key)")
	}

	other := *rec
	other.ID = "id-3"
	other.Scope = "reviews"
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("same key in another scope should be allowed: %v", err)
	}
}

func TestSnapshot_Upsertable(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Snapshot{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Create(&Snapshot{Key: "theme", Value: `"dark"`}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := db.Create(&Snapshot{Key: "theme", Value: `"light"`}).Error; err == nil {
		t.Fatalf("expected primary key violation")
	}
	var got Snapshot
	if err := db.First(&got, "key = ?", "theme").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.Value != `"dark"` || got.UpdatedAt.IsZero() {
		t.Fatalf("unexpected row: %+v", got)
	}
}
