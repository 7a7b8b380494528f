package content

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const maxIdentifierLength = 190

// SecurityLevel is the ordered classification of a document; higher ranks are more restricted.
type SecurityLevel string

const (
	SecurityUnclassified SecurityLevel = "unclassified"
	SecurityRestricted   SecurityLevel = "restricted"
	SecurityConfidential SecurityLevel = "confidential"
	SecuritySecret       SecurityLevel = "secret"
)

var securityRanks = map[SecurityLevel]int{
	SecurityUnclassified: 0,
	SecurityRestricted:   1,
	SecurityConfidential: 2,
	SecuritySecret:       3,
}

// Rank returns the ordering position of the level, with unknown levels below unclassified.
func (l SecurityLevel) Rank() int {
	rank, ok := securityRanks[l]
	if !ok {
		return -1
	}
	return rank
}

// Valid reports whether the level is one of the known classifications.
func (l SecurityLevel) Valid() bool {
	_, ok := securityRanks[l]
	return ok
}

// ChangeType tags how a version came to exist.
type ChangeType string

const (
	ChangeTypeCreated         ChangeType = "created"
	ChangeTypeEdited          ChangeType = "edited"
	ChangeTypeStatusChanged   ChangeType = "status_changed"
	ChangeTypeMetadataUpdated ChangeType = "metadata_updated"
	ChangeTypeRestored        ChangeType = "restored"
)

// ItemID represents a validated content item identifier.
type ItemID string

// NewItemID validates raw input and returns an ItemID.
func NewItemID(rawInput string) (ItemID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty item id", ErrValidation)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: item id exceeds %d characters", ErrValidation, maxIdentifierLength)
	}
	return ItemID(trimmed), nil
}

// String returns the underlying string identifier.
func (id ItemID) String() string {
	return string(id)
}

// VersionID represents a validated version identifier.
type VersionID string

// NewVersionID validates raw input and returns a VersionID.
func NewVersionID(rawInput string) (VersionID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty version id", ErrValidation)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: version id exceeds %d characters", ErrValidation, maxIdentifierLength)
	}
	return VersionID(trimmed), nil
}

// String returns the underlying string identifier.
func (id VersionID) String() string {
	return string(id)
}

// UserID represents a validated acting user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty user id", ErrValidation)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: user id exceeds %d characters", ErrValidation, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// Role describes the authority of an acting identity, supplied by the external auth system.
type Role string

const (
	RoleEditor   Role = "editor"
	RoleApprover Role = "approver"
	RoleAdmin    Role = "admin"
)

// Actor is the authenticated identity performing an engine operation.
type Actor struct {
	UserID UserID
	Role   Role
}

// IsAdmin reports whether the actor carries the administrative role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Metadata is the pure value type describing a version's classification and associations.
// Two metadata values are compared field by field; course and tag ordering is irrelevant.
type Metadata struct {
	Category       string        `json:"category"`
	Subcategory    *string       `json:"subcategory,omitempty"`
	WeaponSystem   *string       `json:"weapon_system,omitempty"`
	Courses        []string      `json:"courses,omitempty"`
	SecurityLevel  SecurityLevel `json:"security_level"`
	Tags           []string      `json:"tags,omitempty"`
	ValidFrom      *time.Time    `json:"valid_from,omitempty"`
	ValidUntil     *time.Time    `json:"valid_until,omitempty"`
	SourceDocument *string       `json:"source_document,omitempty"`
	LastReviewedAt *time.Time    `json:"last_reviewed_at,omitempty"`
	NextReviewAt   *time.Time    `json:"next_review_at,omitempty"`
}

// metadataFieldNames lists the diffable fields in canonical order.
var metadataFieldNames = []string{
	"category",
	"subcategory",
	"weapon_system",
	"courses",
	"security_level",
	"tags",
	"valid_from",
	"valid_until",
	"source_document",
	"last_reviewed_at",
	"next_review_at",
}

// canonicalFields renders every metadata field to a comparable string form.
// Courses and tags are sorted so that ordering differences never register.
func (m Metadata) canonicalFields() map[string]string {
	return map[string]string{
		"category":         m.Category,
		"subcategory":      canonicalOptionalString(m.Subcategory),
		"weapon_system":    canonicalOptionalString(m.WeaponSystem),
		"courses":          canonicalStringList(m.Courses),
		"security_level":   string(m.SecurityLevel),
		"tags":             canonicalStringList(m.Tags),
		"valid_from":       canonicalOptionalTime(m.ValidFrom),
		"valid_until":      canonicalOptionalTime(m.ValidUntil),
		"source_document":  canonicalOptionalString(m.SourceDocument),
		"last_reviewed_at": canonicalOptionalTime(m.LastReviewedAt),
		"next_review_at":   canonicalOptionalTime(m.NextReviewAt),
	}
}

// Canonical produces the deterministic string form of the metadata used for digesting.
func (m Metadata) Canonical() string {
	fields := m.canonicalFields()
	parts := make([]string, 0, len(metadataFieldNames))
	for _, name := range metadataFieldNames {
		parts = append(parts, name+"="+fields[name])
	}
	return strings.Join(parts, ";")
}

// Equal reports field-by-field equality, ignoring course and tag ordering.
func (m Metadata) Equal(other Metadata) bool {
	left := m.canonicalFields()
	right := other.canonicalFields()
	for _, name := range metadataFieldNames {
		if left[name] != right[name] {
			return false
		}
	}
	return true
}

func (m Metadata) validate() error {
	if strings.TrimSpace(m.Category) == "" {
		return fmt.Errorf("%w: metadata category is required", ErrValidation)
	}
	if !m.SecurityLevel.Valid() {
		return fmt.Errorf("%w: unknown security level %q", ErrValidation, m.SecurityLevel)
	}
	return nil
}

func canonicalOptionalString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func canonicalOptionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func canonicalStringList(values []string) string {
	if len(values) == 0 {
		return ""
	}
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// Version is an immutable snapshot of a document at one point in time.
// Only the workflow fields (status, approval stamps) change after creation.
type Version struct {
	VersionID         string     `gorm:"column:version_id;primaryKey;size:190;not null"`
	ItemID            string     `gorm:"column:item_id;size:190;not null;index:idx_versions_item_created,priority:1"`
	VersionNumber     string     `gorm:"column:version_number;size:32;not null"`
	Title             string     `gorm:"column:title;size:512;not null"`
	Content           string     `gorm:"column:content;type:text;not null"`
	MetadataJSON      string     `gorm:"column:metadata_json;type:text;not null"`
	Status            Status     `gorm:"column:status;size:32;not null"`
	CreatedAtSeconds  int64      `gorm:"column:created_at_s;not null;index:idx_versions_item_created,priority:2"`
	CreatedBy         string     `gorm:"column:created_by;size:190;not null"`
	ChangeDescription string     `gorm:"column:change_description;type:text;not null"`
	ChangeType        ChangeType `gorm:"column:change_type;size:32;not null"`
	PreviousVersionID *string    `gorm:"column:prev_version_id;size:190"`
	ApprovedBy        *string    `gorm:"column:approved_by;size:190"`
	ApprovedAtSeconds *int64     `gorm:"column:approved_at_s"`
	Digest            string     `gorm:"column:digest;size:32;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Version) TableName() string {
	return "content_versions"
}

// Metadata decodes the stored metadata snapshot.
func (v Version) Metadata() (Metadata, error) {
	var meta Metadata
	if err := json.Unmarshal([]byte(v.MetadataJSON), &meta); err != nil {
		return Metadata{}, fmt.Errorf("%w: undecodable metadata for version %s: %v", ErrIntegrityViolation, v.VersionID, err)
	}
	return meta, nil
}

// Item is the long-lived identity of a document, owning its version chain and lock descriptor.
type Item struct {
	ItemID           string  `gorm:"column:item_id;primaryKey;size:190;not null"`
	CurrentVersionID string  `gorm:"column:current_version_id;size:190;not null"`
	CreatedAtSeconds int64   `gorm:"column:created_at_s;not null"`
	CreatedBy        string  `gorm:"column:created_by;size:190;not null"`
	IsLocked         bool    `gorm:"column:is_locked;not null;default:false"`
	LockedBy         *string `gorm:"column:locked_by;size:190"`
	LockedAtSeconds  *int64  `gorm:"column:locked_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (Item) TableName() string {
	return "content_items"
}

// MetadataChange records one field whose value differs between two versions.
type MetadataChange struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// VersionDiff is the ephemeral result of comparing two versions; it is never persisted.
type VersionDiff struct {
	AddedLines      []string         `json:"added_lines"`
	RemovedLines    []string         `json:"removed_lines"`
	ModifiedLines   []string         `json:"modified_lines"`
	MetadataChanges []MetadataChange `json:"metadata_changes"`
}

// Empty reports whether the two compared versions were identical.
func (d VersionDiff) Empty() bool {
	return len(d.AddedLines) == 0 && len(d.RemovedLines) == 0 &&
		len(d.ModifiedLines) == 0 && len(d.MetadataChanges) == 0
}

func encodeMetadata(meta Metadata) (string, error) {
	payload, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("%w: unencodable metadata: %v", ErrValidation, err)
	}
	return string(payload), nil
}

func pointerTo[T any](value T) *T {
	v := value
	return &v
}
