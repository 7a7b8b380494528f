package content

import (
	"fmt"
	"strconv"
	"strings"
)

const initialVersionNumber = "1.0"

// NextVersionNumber derives the next major.minor label from the previous one.
// An empty previous label yields "1.0". A previous label that does not parse
// as two dot-separated non-negative integers fails with ErrMalformedVersionNumber;
// it is never silently coerced.
func NextVersionNumber(previous string, isMinor bool) (string, error) {
	if previous == "" {
		return initialVersionNumber, nil
	}

	major, minor, err := parseVersionNumber(previous)
	if err != nil {
		return "", err
	}

	if isMinor {
		return fmt.Sprintf("%d.%d", major, minor+1), nil
	}
	return fmt.Sprintf("%d.0", major+1), nil
}

func parseVersionNumber(label string) (int, int, error) {
	parts := strings.Split(label, ".")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedVersionNumber, label)
	}
	major, err := parseVersionComponent(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedVersionNumber, label)
	}
	minor, err := parseVersionComponent(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedVersionNumber, label)
	}
	return major, minor, nil
}

func parseVersionComponent(raw string) (int, error) {
	if raw == "" || strings.TrimLeft(raw, "0123456789") != "" {
		return 0, fmt.Errorf("non-numeric component %q", raw)
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid component %q", raw)
	}
	return value, nil
}
