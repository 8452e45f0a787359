package order

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeID trims surrounding whitespace and NFC-normalizes an identifier,
// so the same visual ID typed on two keyboards addresses the same item.
func NormalizeID(id string) (string, error) {
	out := norm.NFC.String(strings.TrimSpace(id))
	if out == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidID)
	}
	return out, nil
}

// NormalizeIDs applies NormalizeID to every element and returns a new slice.
func NormalizeIDs(ids []string) ([]string, error) {
	out := make([]string, len(ids))
	for i, id := range ids {
		n, err := NormalizeID(id)
		if err != nil {
			return nil, fmt.Errorf("ids[%d]: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}
