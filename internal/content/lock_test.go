package content

import (
	"errors"
	"testing"
	"time"
)

func TestLockAcquireIsExclusive(t *testing.T) {
	policy := LockPolicy{}
	now := time.Unix(1700000600, 0).UTC()
	item := Item{ItemID: "item-1", CurrentVersionID: "v-1"}

	if err := policy.Acquire(&item, editorActor(t, "editor-1"), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !item.IsLocked || item.LockedBy == nil || *item.LockedBy != "editor-1" {
		t.Fatalf("expected lock to be held by editor-1, got %#v", item)
	}

	if err := policy.Acquire(&item, editorActor(t, "editor-2"), now); !errors.Is(err, ErrAlreadyLocked) {
		t.Fatalf("expected already locked error, got %v", err)
	}
}

func TestLockAcquireIsIdempotentForHolder(t *testing.T) {
	policy := LockPolicy{}
	now := time.Unix(1700000600, 0).UTC()
	item := Item{ItemID: "item-1", CurrentVersionID: "v-1"}

	if err := policy.Acquire(&item, editorActor(t, "editor-1"), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := policy.Acquire(&item, editorActor(t, "editor-1"), now.Add(time.Minute)); err != nil {
		t.Fatalf("expected re-acquisition by holder to succeed, got %v", err)
	}
}

func TestLockReleaseRequiresHolderOrAdmin(t *testing.T) {
	policy := LockPolicy{}
	now := time.Unix(1700000600, 0).UTC()
	item := Item{ItemID: "item-1", CurrentVersionID: "v-1"}

	if err := policy.Acquire(&item, editorActor(t, "editor-1"), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := policy.Release(&item, editorActor(t, "editor-2"), now); !errors.Is(err, ErrNotLockHolder) {
		t.Fatalf("expected not lock holder error, got %v", err)
	}
	if !item.IsLocked {
		t.Fatalf("rejected release must not clear the lock")
	}

	if err := policy.Release(&item, adminActor(t, "admin-1"), now); err != nil {
		t.Fatalf("expected admin override release to succeed, got %v", err)
	}
	if item.IsLocked || item.LockedBy != nil || item.LockedAtSeconds != nil {
		t.Fatalf("expected lock descriptor to be cleared, got %#v", item)
	}
}

func TestLockReleaseOfUnheldLockIsNoOp(t *testing.T) {
	policy := LockPolicy{}
	item := Item{ItemID: "item-1", CurrentVersionID: "v-1"}

	if err := policy.Release(&item, editorActor(t, "editor-1"), time.Unix(1700000600, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLockExpiresAfterTTL(t *testing.T) {
	policy := LockPolicy{TTL: 30 * time.Minute}
	acquiredAt := time.Unix(1700000600, 0).UTC()
	item := Item{ItemID: "item-1", CurrentVersionID: "v-1"}

	if err := policy.Acquire(&item, editorActor(t, "editor-1"), acquiredAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	beforeExpiry := acquiredAt.Add(29 * time.Minute)
	if !policy.HeldByOther(item, mustUserID(t, "editor-2"), beforeExpiry) {
		t.Fatalf("expected lock to block editor-2 before expiry")
	}

	afterExpiry := acquiredAt.Add(31 * time.Minute)
	if policy.HeldByOther(item, mustUserID(t, "editor-2"), afterExpiry) {
		t.Fatalf("expected lock to be treated as free after expiry")
	}
	if err := policy.Acquire(&item, editorActor(t, "editor-2"), afterExpiry); err != nil {
		t.Fatalf("expected expired lock to be re-acquirable, got %v", err)
	}
	if *item.LockedBy != "editor-2" {
		t.Fatalf("expected editor-2 to hold the lock, got %s", *item.LockedBy)
	}
}

func TestLockWithoutTTLNeverExpires(t *testing.T) {
	policy := LockPolicy{}
	acquiredAt := time.Unix(1700000600, 0).UTC()
	item := Item{ItemID: "item-1", CurrentVersionID: "v-1"}

	if err := policy.Acquire(&item, editorActor(t, "editor-1"), acquiredAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	muchLater := acquiredAt.Add(90 * 24 * time.Hour)
	if !policy.HeldByOther(item, mustUserID(t, "editor-2"), muchLater) {
		t.Fatalf("expected lock without TTL to persist")
	}
}
