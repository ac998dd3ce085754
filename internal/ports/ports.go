package ports

import (
	"context"
	"io"

	"talkitout/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
	// OutputPath receives the encoded recording alongside the PCM stream.
	OutputPath string
}

// AudioSession is a live capture session. Reads yield PCM for transcription.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// MicrophonePermission gates recording on user consent.
type MicrophonePermission interface {
	Status() domain.PermissionStatus
	Request(ctx context.Context) (bool, error)
}

// PermissionPrompter asks the user for microphone access.
type PermissionPrompter interface {
	AskMicrophoneAccess(ctx context.Context) (bool, error)
}

// Classifier resolves a topic and a follow-up prompt. It never fails; errors
// resolve to the Unknown sentinel.
type Classifier interface {
	Classify(ctx context.Context, transcript string) domain.Classification
}

// Uploader stores blobs remotely and resolves durable locators. Failures are
// *domain.UploadError.
type Uploader interface {
	Upload(ctx context.Context, localPath string, destPath string) (string, error)
	UploadText(ctx context.Context, text string, destPath string) (string, error)
}

// Downloader fetches text previously stored by an Uploader.
type Downloader interface {
	Download(ctx context.Context, locator string) (string, error)
}

// EntryStore is the mutable entry collection.
type EntryStore interface {
	Append(entry domain.Entry)
	Replace(id string, entry domain.Entry) (domain.Entry, error)
	Get(id string) (domain.Entry, bool)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	LiveTranscript(text string, lines []string)
	ClassificationChanged(result domain.Classification)
	StreakChanged(count int)
	PermissionDenied()
	SessionError(code domain.ErrorCode, detail string)
}
