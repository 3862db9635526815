// Package resolver expands the short ID prefixes nestctl prints into full IDs.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// ResolveID resolves a short ID prefix of an entity of the given kind to its
// full UUID. Returns an error unless exactly one entity matches.
func ResolveID(ctx context.Context, client *market.Client, kind market.EntityKind, shortID string) (string, error) {
	if len(shortID) == 36 && strings.Count(shortID, "-") == 4 {
		n, err := client.RedisClient().Exists(ctx, entityPrefix(client, kind)+shortID).Result()
		if err != nil {
			return "", fmt.Errorf("failed to verify %s existence: %w", kind, err)
		}
		if n == 0 {
			return "", &NotFoundError{Kind: kind, ShortID: shortID}
		}
		return shortID, nil
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	matches, err := scanPrefix(ctx, client, kind, shortID)
	if err != nil {
		return "", fmt.Errorf("failed to search for %s: %w", kind, err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{Kind: kind, ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{Kind: kind, ShortID: shortID, Matches: matches}
	}
}

func entityPrefix(client *market.Client, kind market.EntityKind) string {
	return fmt.Sprintf("nest:%s:%s:", client.InstanceName(), kind)
}

func scanPrefix(ctx context.Context, client *market.Client, kind market.EntityKind, shortID string) ([]string, error) {
	prefix := entityPrefix(client, kind)
	iter := client.RedisClient().Scan(ctx, 0, prefix+shortID+"*", 0).Iterator()

	var matches []string
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), prefix)
		// booking:{id}:payments and friends share the prefix
		if strings.Contains(id, ":") {
			continue
		}
		matches = append(matches, id)
	}
	return matches, iter.Err()
}

// NotFoundError indicates no entity matched the short ID.
type NotFoundError struct {
	Kind    market.EntityKind
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %ss found matching '%s'", e.Kind, e.ShortID)
}

// AmbiguousError indicates multiple entities matched the short ID.
type AmbiguousError struct {
	Kind    market.EntityKind
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d %ss", e.ShortID, len(e.Matches), e.Kind)
}

// FormatAmbiguousError creates a user-friendly error message for ambiguous short IDs.
// Lists all matching UUIDs (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: ambiguous short ID '%s' matches %d %ss:\n", err.ShortID, len(err.Matches), err.Kind)

	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}
	for i := 0; i < displayCount; i++ {
		fmt.Fprintf(&b, "  %s\n", err.Matches[i])
	}
	if len(err.Matches) > 10 {
		fmt.Fprintf(&b, "  ...and %d more\n", len(err.Matches)-10)
	}

	fmt.Fprintf(&b, "\nUse a longer prefix to uniquely identify the %s.", err.Kind)
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
