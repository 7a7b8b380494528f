package content

import (
	"fmt"
	"strings"
	"time"
)

// IDProvider issues globally unique identifiers.
type IDProvider interface {
	NewID() (string, error)
}

// versionInputs collects the caller-supplied material for a new version.
type versionInputs struct {
	ItemID            ItemID
	Title             string
	Content           string
	Metadata          Metadata
	Editor            UserID
	ChangeDescription string
	ChangeType        ChangeType
	IsMinor           bool
}

func (in versionInputs) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(in.ChangeDescription) == "" {
		return fmt.Errorf("%w: change description is required", ErrValidation)
	}
	return in.Metadata.validate()
}

// versionFactory assembles immutable Version records, deriving the version
// number from the previous version and stamping the integrity digest.
type versionFactory struct {
	ids   IDProvider
	clock func() time.Time
}

// build creates the next version after previous (nil for the first version of
// an item). New versions always start in draft.
func (f versionFactory) build(inputs versionInputs, previous *Version) (Version, error) {
	if err := inputs.validate(); err != nil {
		return Version{}, err
	}

	previousNumber := ""
	var previousID *string
	if previous != nil {
		previousNumber = previous.VersionNumber
		previousID = pointerTo(previous.VersionID)
	}

	number, err := NextVersionNumber(previousNumber, inputs.IsMinor)
	if err != nil {
		return Version{}, err
	}

	versionID, err := f.ids.NewID()
	if err != nil {
		return Version{}, err
	}

	metadataJSON, err := encodeMetadata(inputs.Metadata)
	if err != nil {
		return Version{}, err
	}

	return Version{
		VersionID:         versionID,
		ItemID:            inputs.ItemID.String(),
		VersionNumber:     number,
		Title:             inputs.Title,
		Content:           inputs.Content,
		MetadataJSON:      metadataJSON,
		Status:            StatusDraft,
		CreatedAtSeconds:  f.clock().UTC().Unix(),
		CreatedBy:         inputs.Editor.String(),
		ChangeDescription: inputs.ChangeDescription,
		ChangeType:        inputs.ChangeType,
		PreviousVersionID: previousID,
		Digest:            Digest(inputs.Content, inputs.Metadata),
	}, nil
}
