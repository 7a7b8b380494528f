package content

import (
	"errors"
	"testing"
	"time"
)

func TestSecurityLevelOrdering(t *testing.T) {
	ordered := []SecurityLevel{SecurityUnclassified, SecurityRestricted, SecurityConfidential, SecuritySecret}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Rank() >= ordered[i].Rank() {
			t.Fatalf("expected %s to rank below %s", ordered[i-1], ordered[i])
		}
	}
	if SecurityLevel("cosmic").Valid() {
		t.Fatalf("expected unknown level to be invalid")
	}
}

func TestMetadataEqualityIgnoresListOrdering(t *testing.T) {
	left := sampleMetadata()
	right := sampleMetadata()
	right.Courses = []string{"advanced-gunnery", "basic-gunnery"}
	right.Tags = []string{"drill", "sop"}

	if !left.Equal(right) {
		t.Fatalf("expected metadata with reordered lists to be equal")
	}

	right.Category = "maintenance"
	if left.Equal(right) {
		t.Fatalf("expected differing category to break equality")
	}
}

func TestMetadataEqualityDistinguishesAbsentFromEmpty(t *testing.T) {
	left := sampleMetadata()
	right := sampleMetadata()
	right.Subcategory = pointerTo("")

	// An absent subcategory and a present-but-empty one canonicalize the
	// same way; only a real value differs.
	if !left.Equal(right) {
		t.Fatalf("expected empty optional to compare equal to absent")
	}
	right.Subcategory = pointerTo("misfire-drills")
	if left.Equal(right) {
		t.Fatalf("expected populated subcategory to differ")
	}
}

func TestMetadataCanonicalIncludesValidityWindow(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	meta := sampleMetadata()
	meta.ValidFrom = &from

	withWindow := meta.Canonical()
	withoutWindow := sampleMetadata().Canonical()
	if withWindow == withoutWindow {
		t.Fatalf("expected validity window to change canonical form")
	}
}

func TestIdentifierValidation(t *testing.T) {
	if _, err := NewItemID("  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected empty item id to fail, got %v", err)
	}
	if _, err := NewVersionID(""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected empty version id to fail, got %v", err)
	}
	if _, err := NewUserID(string(make([]byte, 200))); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected oversized user id to fail")
	}
	id, err := NewItemID(" item-1 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.String() != "item-1" {
		t.Fatalf("expected trimmed identifier, got %q", id.String())
	}
}
