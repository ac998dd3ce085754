package domain

// SessionState models the record/stop lifecycle.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateRecording SessionState = "recording"
	SessionStateStopping  SessionState = "stopping"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady              SessionStateReason = "ready"
	SessionReasonRecordingStarted   SessionStateReason = "recording_started"
	SessionReasonRecordingRestarted SessionStateReason = "recording_restarted"
	SessionReasonStopping           SessionStateReason = "stopping"
	SessionReasonSaving             SessionStateReason = "saving"
	SessionReasonRecordingDiscarded SessionStateReason = "recording_discarded"
	SessionReasonNoTranscript       SessionStateReason = "no_transcript"
	SessionReasonPermissionDenied   SessionStateReason = "permission_denied"
	SessionReasonCaptureFailed      SessionStateReason = "capture_failed"
)

// ErrorCode identifies backend errors surfaced to the views. None are fatal.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodePermission    ErrorCode = "permission"
	ErrorCodeCapture       ErrorCode = "capture"
	ErrorCodeAudioStop     ErrorCode = "audio_stop"
	ErrorCodeAudioStream   ErrorCode = "audio_stream"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeUpload        ErrorCode = "upload"
)

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental transcription output from a provider.
type TranscriptEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
}

// UnknownTopic is the sentinel topic returned when classification fails.
const UnknownTopic = "Unknown"

// Classification is the topic/prompt pair suggested for a transcript.
type Classification struct {
	Topic  string `json:"topic"`
	Prompt string `json:"prompt"`
}

// DisplayTopic suppresses the Unknown sentinel.
func (c Classification) DisplayTopic() string {
	if c.Topic == UnknownTopic {
		return ""
	}
	return c.Topic
}

// StopResult is returned once recording is stopped. Classification and upload
// continue in the background when Dispatched is set.
type StopResult struct {
	Transcript string `json:"transcript"`
	LocalPath  string `json:"localPath"`
	Dispatched bool   `json:"dispatched"`
}

// Status summarizes the current runtime status.
type Status struct {
	State      SessionState `json:"state"`
	Active     bool         `json:"active"`
	Streak     int          `json:"streak"`
	Topic      string       `json:"topic,omitempty"`
	Prompt     string       `json:"prompt,omitempty"`
	Transcript string       `json:"transcript,omitempty"`
}

// PermissionStatus is the microphone authorization state.
type PermissionStatus string

const (
	PermissionUndetermined PermissionStatus = "undetermined"
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
)

// Profile holds the user-visible profile fields kept in local settings.
type Profile struct {
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
	Avatar      string `json:"avatar,omitempty"` // base64 image bytes
}
