package domain

import (
	"errors"
	"fmt"
)

// ErrPermissionDenied is returned when microphone access was refused.
var ErrPermissionDenied = errors.New("microphone permission denied")

// CaptureConfigurationError wraps audio capture setup failures.
type CaptureConfigurationError struct {
	Err error
}

func (e *CaptureConfigurationError) Error() string {
	return fmt.Sprintf("audio capture configuration failed: %v", e.Err)
}

func (e *CaptureConfigurationError) Unwrap() error { return e.Err }

// TranscriptionStartError wraps live transcription start failures.
type TranscriptionStartError struct {
	Err error
}

func (e *TranscriptionStartError) Error() string {
	return fmt.Sprintf("live transcription failed to start: %v", e.Err)
}

func (e *TranscriptionStartError) Unwrap() error { return e.Err }

// UploadError is returned by uploaders. No partial write may be assumed.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %q failed: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
