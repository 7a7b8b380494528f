package content

import (
	"errors"
	"testing"
)

func workflowVersion(status Status, createdBy, changeDescription string) Version {
	return Version{
		VersionID:         "v-1",
		ItemID:            "item-1",
		Status:            status,
		CreatedBy:         createdBy,
		ChangeDescription: changeDescription,
	}
}

func TestValidateTransitionAllowsReviewSubmission(t *testing.T) {
	version := workflowVersion(StatusDraft, "editor-1", "Updated misfire drill")
	tc := TransitionContext{Actor: editorActor(t, "editor-1")}

	if err := ValidateTransition(version, StatusPendingReview, tc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateTransitionRequiresChangeDescriptionForReview(t *testing.T) {
	version := workflowVersion(StatusDraft, "editor-1", "   ")
	tc := TransitionContext{Actor: editorActor(t, "editor-1")}

	if err := ValidateTransition(version, StatusPendingReview, tc); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateTransitionEnforcesFourEyes(t *testing.T) {
	version := workflowVersion(StatusPendingReview, "editor-1", "change")

	selfApproval := TransitionContext{Actor: approverActor(t, "editor-1")}
	if err := ValidateTransition(version, StatusApproved, selfApproval); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected self-approval to be rejected, got %v", err)
	}

	peerApproval := TransitionContext{Actor: approverActor(t, "approver-1")}
	if err := ValidateTransition(version, StatusApproved, peerApproval); err != nil {
		t.Fatalf("unexpected error for peer approval: %v", err)
	}
}

func TestValidateTransitionBlocksPublishWhileLockedByOther(t *testing.T) {
	version := workflowVersion(StatusApproved, "editor-1", "change")

	blocked := TransitionContext{Actor: editorActor(t, "editor-2"), LockedByOther: true}
	if err := ValidateTransition(version, StatusPublished, blocked); !errors.Is(err, ErrItemLocked) {
		t.Fatalf("expected lock conflict, got %v", err)
	}

	free := TransitionContext{Actor: editorActor(t, "editor-2")}
	if err := ValidateTransition(version, StatusPublished, free); err != nil {
		t.Fatalf("unexpected error when unlocked: %v", err)
	}
}

func TestValidateTransitionRejectionRequiresReason(t *testing.T) {
	version := workflowVersion(StatusPendingReview, "editor-1", "change")

	noReason := TransitionContext{Actor: approverActor(t, "approver-1")}
	if err := ValidateTransition(version, StatusDraft, noReason); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected missing reason to fail, got %v", err)
	}

	withReason := TransitionContext{Actor: approverActor(t, "approver-1"), Note: "Needs safety annex"}
	if err := ValidateTransition(version, StatusDraft, withReason); err != nil {
		t.Fatalf("unexpected error with reason: %v", err)
	}
}

func TestValidateTransitionArchiveRequiresAdmin(t *testing.T) {
	version := workflowVersion(StatusPublished, "editor-1", "change")

	if err := ValidateTransition(version, StatusArchived, TransitionContext{Actor: editorActor(t, "editor-2")}); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected non-admin archive to be rejected, got %v", err)
	}
	if err := ValidateTransition(version, StatusArchived, TransitionContext{Actor: adminActor(t, "admin-1")}); err != nil {
		t.Fatalf("unexpected error for admin archive: %v", err)
	}
}

func TestValidateTransitionRejectsForbiddenPairs(t *testing.T) {
	tests := []struct {
		name   string
		from   Status
		target Status
	}{
		{name: "draft-to-published", from: StatusDraft, target: StatusPublished},
		{name: "draft-to-approved", from: StatusDraft, target: StatusApproved},
		{name: "approved-to-draft", from: StatusApproved, target: StatusDraft},
		{name: "published-to-approved", from: StatusPublished, target: StatusApproved},
		{name: "archived-is-terminal", from: StatusArchived, target: StatusDraft},
		{name: "superseded-to-published", from: StatusSuperseded, target: StatusPublished},
		{name: "direct-supersede", from: StatusPublished, target: StatusSuperseded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version := workflowVersion(tt.from, "editor-1", "change")
			err := ValidateTransition(version, tt.target, TransitionContext{Actor: adminActor(t, "admin-1")})

			var invalid *InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected invalid transition error, got %v", err)
			}
			if invalid.From != tt.from || invalid.To != tt.target {
				t.Fatalf("unexpected transition pair: %s -> %s", invalid.From, invalid.To)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("pending_review"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseStatus("in_review"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected unknown status to fail, got %v", err)
	}
}
