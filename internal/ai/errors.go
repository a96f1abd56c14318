package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
)

var ErrUnavailable = fmt.Errorf("%w: ai provider not configured", appErr.ErrUnavailable)

// markQuota tags rate limit failures so callers can ask the user to retry
// later instead of reporting a generic failure.
func markQuota(err error, status int) error {
	if err == nil || errors.Is(err, appErr.ErrQuotaExceeded) {
		return err
	}
	if status == http.StatusTooManyRequests || looksLikeQuota(err.Error()) {
		return fmt.Errorf("%w: %w", appErr.ErrQuotaExceeded, err)
	}
	return err
}

func looksLikeQuota(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "rate limit")
}
