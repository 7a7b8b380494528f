package content

import (
	"fmt"
	"strings"
)

// Compare computes the structural difference between two versions.
//
// Content is compared positionally, line against line: a line present only in
// the newer version is added, present only in the older is removed, present in
// both but differing is modified. This is a deliberately cheap approximation,
// not a minimal-edit diff; a mid-document insertion shifts every following
// line and over-reports modifications. Callers rely on that positional
// contract, so it must not be replaced with an LCS diff.
//
// Metadata is compared field by field on the canonical string form, each
// mismatch yielding one MetadataChange.
func Compare(oldVersion, newVersion Version) (VersionDiff, error) {
	oldMeta, err := oldVersion.Metadata()
	if err != nil {
		return VersionDiff{}, err
	}
	newMeta, err := newVersion.Metadata()
	if err != nil {
		return VersionDiff{}, err
	}

	diff := VersionDiff{
		AddedLines:      []string{},
		RemovedLines:    []string{},
		ModifiedLines:   []string{},
		MetadataChanges: []MetadataChange{},
	}

	oldLines := splitLines(oldVersion.Content)
	newLines := splitLines(newVersion.Content)
	limit := len(oldLines)
	if len(newLines) > limit {
		limit = len(newLines)
	}
	for i := 0; i < limit; i++ {
		switch {
		case i >= len(oldLines):
			diff.AddedLines = append(diff.AddedLines, newLines[i])
		case i >= len(newLines):
			diff.RemovedLines = append(diff.RemovedLines, oldLines[i])
		case oldLines[i] != newLines[i]:
			diff.ModifiedLines = append(diff.ModifiedLines,
				fmt.Sprintf("Line %d: %q -> %q", i+1, oldLines[i], newLines[i]))
		}
	}

	oldFields := oldMeta.canonicalFields()
	newFields := newMeta.canonicalFields()
	for _, name := range metadataFieldNames {
		if oldFields[name] != newFields[name] {
			diff.MetadataChanges = append(diff.MetadataChanges, MetadataChange{
				Field:    name,
				OldValue: oldFields[name],
				NewValue: newFields[name],
			})
		}
	}

	return diff, nil
}

func splitLines(contentBody string) []string {
	if contentBody == "" {
		return nil
	}
	return strings.Split(contentBody, "\n")
}
