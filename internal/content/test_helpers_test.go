package content

import (
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

type sequentialIDGenerator struct {
	next int
}

func (g *sequentialIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("id-%04d", g.next), nil
}

func mustItemID(t *testing.T, value string) ItemID {
	t.Helper()
	id, err := NewItemID(value)
	if err != nil {
		t.Fatalf("unexpected item id error: %v", err)
	}
	return id
}

func mustVersionID(t *testing.T, value string) VersionID {
	t.Helper()
	id, err := NewVersionID(value)
	if err != nil {
		t.Fatalf("unexpected version id error: %v", err)
	}
	return id
}

func mustUserID(t *testing.T, value string) UserID {
	t.Helper()
	id, err := NewUserID(value)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	return id
}

func editorActor(t *testing.T, value string) Actor {
	t.Helper()
	return Actor{UserID: mustUserID(t, value), Role: RoleEditor}
}

func approverActor(t *testing.T, value string) Actor {
	t.Helper()
	return Actor{UserID: mustUserID(t, value), Role: RoleApprover}
}

func adminActor(t *testing.T, value string) Actor {
	t.Helper()
	return Actor{UserID: mustUserID(t, value), Role: RoleAdmin}
}

func sampleMetadata() Metadata {
	return Metadata{
		Category:      "gunnery",
		SecurityLevel: SecurityRestricted,
		Courses:       []string{"basic-gunnery", "advanced-gunnery"},
		Tags:          []string{"sop", "drill"},
	}
}

func mustVersion(t *testing.T, factory versionFactory, inputs versionInputs, previous *Version) Version {
	t.Helper()
	version, err := factory.build(inputs, previous)
	if err != nil {
		t.Fatalf("unexpected factory error: %v", err)
	}
	return version
}

func newTestFactory(ids IDProvider) versionFactory {
	return versionFactory{
		ids:   ids,
		clock: func() time.Time { return time.Unix(1700000600, 0).UTC() },
	}
}

func newTestService(t *testing.T, lockTTL time.Duration) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:doctrine_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Item{}, &Version{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1700000600, 0).UTC() },
		IDProvider: &sequentialIDGenerator{},
		LockTTL:    lockTTL,
	})
	if err != nil {
		t.Fatalf("failed to construct content service: %v", err)
	}

	return service, db
}
