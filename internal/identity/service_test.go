package identity

import (
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rangeops/doctrine/backend/internal/auth"
	"gorm.io/gorm"
)

func newTestIdentityService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:doctrine_identity_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&Identity{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database: db,
		Clock:    func() time.Time { return time.Unix(1700000600, 0).UTC() },
	})
	if err != nil {
		t.Fatalf("failed to build identity service: %v", err)
	}
	return service, db
}

func TestRecordCreatesIdentity(t *testing.T) {
	service, _ := newTestIdentityService(t)

	err := service.Record(auth.IdentityClaims{
		Subject:     " editor-1 ",
		DisplayName: "Editor One",
		Role:        "editor",
	})
	if err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}

	record, err := service.Lookup("editor-1")
	if err != nil {
		t.Fatalf("unexpected lookup error: %v", err)
	}
	if record.UserID != "editor-1" {
		t.Fatalf("expected trimmed subject, got %q", record.UserID)
	}
	if record.DisplayName != "Editor One" || record.Role != "editor" {
		t.Fatalf("unexpected stored identity: %#v", record)
	}
}

func TestRecordUpdatesChangedClaims(t *testing.T) {
	service, _ := newTestIdentityService(t)

	if err := service.Record(auth.IdentityClaims{Subject: "editor-1", DisplayName: "Old Name", Role: "editor"}); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}
	if err := service.Record(auth.IdentityClaims{Subject: "editor-1", DisplayName: "New Name", Role: "approver"}); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	record, err := service.Lookup("editor-1")
	if err != nil {
		t.Fatalf("unexpected lookup error: %v", err)
	}
	if record.DisplayName != "New Name" {
		t.Fatalf("expected display name update, got %q", record.DisplayName)
	}
	if record.Role != "approver" {
		t.Fatalf("expected role update, got %q", record.Role)
	}
}

func TestRecordCachesRepeatedSightings(t *testing.T) {
	service, db := newTestIdentityService(t)

	claims := auth.IdentityClaims{Subject: "editor-1", DisplayName: "Editor One", Role: "editor"}
	if err := service.Record(claims); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}

	// Delete behind the cache; an unchanged sighting must skip the write.
	if err := db.Exec("DELETE FROM operator_identities WHERE user_id = ?", "editor-1").Error; err != nil {
		t.Fatalf("failed to clear table: %v", err)
	}
	if err := service.Record(claims); err != nil {
		t.Fatalf("unexpected cached record error: %v", err)
	}
	if _, err := service.Lookup("editor-1"); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected cached sighting to skip the insert, got %v", err)
	}
}

func TestRecordRejectsEmptySubject(t *testing.T) {
	service, _ := newTestIdentityService(t)

	if err := service.Record(auth.IdentityClaims{Subject: "   ", Role: "editor"}); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected invalid identity error, got %v", err)
	}
}

func TestLookupUnknownUser(t *testing.T) {
	service, _ := newTestIdentityService(t)

	if _, err := service.Lookup("ghost"); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected invalid identity error, got %v", err)
	}
}
