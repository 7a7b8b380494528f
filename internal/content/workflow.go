package content

import (
	"fmt"
	"strings"
)

// Status is the review-pipeline stage of a version.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusPendingReview Status = "pending_review"
	StatusApproved      Status = "approved"
	StatusPublished     Status = "published"
	StatusArchived      Status = "archived"
	// StatusSuperseded is reachable only as the side effect of another version
	// of the same item becoming published, never via a direct transition.
	StatusSuperseded Status = "superseded"
)

// ParseStatus validates a raw status label.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.TrimSpace(raw)) {
	case StatusDraft:
		return StatusDraft, nil
	case StatusPendingReview:
		return StatusPendingReview, nil
	case StatusApproved:
		return StatusApproved, nil
	case StatusPublished:
		return StatusPublished, nil
	case StatusArchived:
		return StatusArchived, nil
	case StatusSuperseded:
		return StatusSuperseded, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, raw)
	}
}

// TransitionContext carries the facts the workflow rules consult beyond the
// version itself.
type TransitionContext struct {
	Actor Actor
	// Note is the caller-supplied annotation; the rejection path requires it.
	Note string
	// LockedByOther reports whether the owning item is locked by a user other
	// than the actor at the time of the transition.
	LockedByOther bool
}

// ValidateTransition checks a requested status change against the central
// transition table. It returns nil when the transition may proceed; the
// repository applies the side effects (approval stamps, superseding the
// previously published version) inside its transaction.
func ValidateTransition(version Version, target Status, tc TransitionContext) error {
	from := version.Status

	// Archival is an explicit administrative action allowed from any state.
	if target == StatusArchived {
		if !tc.Actor.IsAdmin() {
			return fmt.Errorf("%w: archiving requires the admin role", ErrNotAuthorized)
		}
		if from == StatusArchived {
			return &InvalidTransitionError{From: from, To: target}
		}
		return nil
	}

	// Archived is terminal and superseded is never a direct target.
	if from == StatusArchived || target == StatusSuperseded {
		return &InvalidTransitionError{From: from, To: target}
	}

	switch {
	case from == StatusDraft && target == StatusPendingReview:
		if strings.TrimSpace(version.ChangeDescription) == "" {
			return fmt.Errorf("%w: change description is required for review submission", ErrValidation)
		}
		return nil

	case from == StatusPendingReview && target == StatusApproved:
		// Four-eyes rule: the creator may not approve their own version.
		if tc.Actor.UserID.String() == version.CreatedBy {
			return fmt.Errorf("%w: version creator may not approve their own version", ErrNotAuthorized)
		}
		return nil

	case from == StatusApproved && target == StatusPublished:
		if tc.LockedByOther {
			return fmt.Errorf("%w: cannot publish while another user holds the lock", ErrItemLocked)
		}
		return nil

	case from == StatusPendingReview && target == StatusDraft:
		// Rejection path: sending back for revision requires a reason.
		if strings.TrimSpace(tc.Note) == "" {
			return fmt.Errorf("%w: rejection requires a reason", ErrValidation)
		}
		return nil

	default:
		return &InvalidTransitionError{From: from, To: target}
	}
}
