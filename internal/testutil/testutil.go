// Package testutil opens throwaway databases and seeds common fixtures.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/arnold/gatherings-api/internal/database"
	"github.com/arnold/gatherings-api/internal/models"
	"gorm.io/gorm"
)

// Epoch is the fixed "now" most tests start from.
var Epoch = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// OpenDB returns a migrated in-memory SQLite database private to t.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// CreateMember inserts a member named name with a derived email.
func CreateMember(t *testing.T, db *gorm.DB, name string) *models.Member {
	t.Helper()

	m := &models.Member{
		Email:    fmt.Sprintf("%s@example.com", name),
		Password: "x",
		Name:     name,
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("create member %s: %v", name, err)
	}
	return m
}

// CreateGathering inserts a gathering row directly, bypassing the service rules.
func CreateGathering(t *testing.T, db *gorm.DB, g *models.Gathering) *models.Gathering {
	t.Helper()

	if g.Category == "" {
		g.Category = "study"
	}
	if g.Location == "" {
		g.Location = "Seoul"
	}
	if g.GatheringTime.IsZero() {
		g.GatheringTime = Epoch.Add(72 * time.Hour)
	}
	if g.DueTime.IsZero() {
		g.DueTime = g.GatheringTime.Add(-29 * time.Hour)
	}
	if g.MinAttendees == 0 {
		g.MinAttendees = 2
	}
	if g.MaxAttendees == 0 {
		g.MaxAttendees = 10
	}
	if err := db.Create(g).Error; err != nil {
		t.Fatalf("create gathering %s: %v", g.Name, err)
	}
	return g
}
