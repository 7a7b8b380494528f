package content

import (
	"fmt"
	"time"
)

// LockPolicy governs the exclusive edit lock on an item. The lock is the
// cooperative application-level claim exposed to users; the repository's
// transactions provide the lower-level serialization independently.
//
// TTL zero preserves the no-expiry discipline: locks are released only by
// the holder or an administrative override, which leaves a stale lock
// permanently held if the holder disconnects. A positive TTL treats a lock
// older than the TTL as free on the next check.
type LockPolicy struct {
	TTL time.Duration
}

// Acquire grants the exclusive lock to the actor. Re-acquisition by the
// current holder is an idempotent success; a lock held by anyone else fails
// fast with ErrAlreadyLocked rather than waiting.
func (p LockPolicy) Acquire(item *Item, actor Actor, now time.Time) error {
	if p.heldAt(*item, now) && *item.LockedBy != actor.UserID.String() {
		return fmt.Errorf("%w: held by %s", ErrAlreadyLocked, *item.LockedBy)
	}
	item.IsLocked = true
	item.LockedBy = pointerTo(actor.UserID.String())
	item.LockedAtSeconds = pointerTo(now.Unix())
	return nil
}

// Release clears the lock. Only the holder or an admin override may release;
// releasing an unheld lock is a no-op success.
func (p LockPolicy) Release(item *Item, actor Actor, now time.Time) error {
	if !p.heldAt(*item, now) {
		item.clearLock()
		return nil
	}
	if *item.LockedBy != actor.UserID.String() && !actor.IsAdmin() {
		return fmt.Errorf("%w: held by %s", ErrNotLockHolder, *item.LockedBy)
	}
	item.clearLock()
	return nil
}

// HeldByOther reports whether the lock blocks the given user right now.
func (p LockPolicy) HeldByOther(item Item, user UserID, now time.Time) bool {
	return p.heldAt(item, now) && *item.LockedBy != user.String()
}

func (p LockPolicy) heldAt(item Item, now time.Time) bool {
	if !item.IsLocked || item.LockedBy == nil {
		return false
	}
	if p.TTL <= 0 {
		return true
	}
	if item.LockedAtSeconds == nil {
		return true
	}
	return now.Sub(time.Unix(*item.LockedAtSeconds, 0)) < p.TTL
}

func (i *Item) clearLock() {
	i.IsLocked = false
	i.LockedBy = nil
	i.LockedAtSeconds = nil
}
