package storage

import (
	"context"
	"fmt"

	"talkitout/internal/domain"
)

// Unavailable stands in for a store that could not be configured. Every
// upload fails with *domain.UploadError wrapping Err, so recording and the
// local parts of the app keep working.
type Unavailable struct {
	Err error
}

func (u Unavailable) Upload(_ context.Context, _ string, destPath string) (string, error) {
	return "", &domain.UploadError{Path: destPath, Err: u.Err}
}

func (u Unavailable) UploadText(_ context.Context, _ string, destPath string) (string, error) {
	return "", &domain.UploadError{Path: destPath, Err: u.Err}
}

func (u Unavailable) Download(_ context.Context, locator string) (string, error) {
	return "", fmt.Errorf("cannot fetch %s: %w", locator, u.Err)
}
