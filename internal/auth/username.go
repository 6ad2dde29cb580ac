package auth

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	maxBaseNameLength = 24
	maxNameLength     = 50
	maxNameSuffix     = 10000
	fallbackBaseName  = "user"
)

var nameDisallowed = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// deriveBaseName turns an email local-part into a display-handle base.
func deriveBaseName(email string) string {
	local := email
	if at := strings.LastIndex(email, "@"); at >= 0 {
		local = email[:at]
	}

	base := strings.ToLower(nameDisallowed.ReplaceAllString(local, ""))
	if len(base) > maxBaseNameLength {
		base = base[:maxBaseNameLength]
	}
	if base == "" {
		base = fallbackBaseName
	}
	return base
}

// uniqueName returns base, or base-1, base-2, ... whichever is free first.
func uniqueName(ctx context.Context, repo Repository, base string) (string, error) {
	taken, err := repo.NameTaken(ctx, base)
	if err != nil {
		return "", err
	}
	if !taken {
		return base, nil
	}

	for i := 1; i <= maxNameSuffix; i++ {
		suffix := fmt.Sprintf("-%d", i)
		candidate := truncateName(base, len(suffix)) + suffix

		taken, err := repo.NameTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	// Pathological collision run; fall back to a random suffix.
	suffix := "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return truncateName(base, len(suffix)) + suffix, nil
}

func truncateName(base string, reserve int) string {
	if len(base)+reserve <= maxNameLength {
		return base
	}
	return base[:maxNameLength-reserve]
}
