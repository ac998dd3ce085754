package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"talkitout/internal/domain"
	"talkitout/internal/ports"
)

type fakeAudioCapture struct {
	sessions []ports.AudioSession
	err      error
	calls    int
	paths    []string
}

// Start creates an empty recording at cfg.OutputPath, like the encoder would.
func (f *fakeAudioCapture) Start(_ context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	if cfg.OutputPath != "" {
		if err := os.WriteFile(cfg.OutputPath, []byte("m4a"), 0o600); err != nil {
			return nil, err
		}
	}
	f.paths = append(f.paths, cfg.OutputPath)
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	stopCalls int
	stopErr   error
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index >= len(f.chunks) {
		return 0, io.EOF
	}
	n := copy(p, f.chunks[f.index])
	f.index++
	return n, nil
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return f.stopErr
}

type fakeProvider struct {
	sessions []ports.StreamingSession
	err      error
	calls    int
}

func (f *fakeProvider) StartStreaming(_ context.Context, _ ports.StreamingConfig) (ports.StreamingSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no stream session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeStreamingSession struct {
	events     chan domain.TranscriptEvent
	waitErr    error
	closeSend  int
	closeCalls int
	closed     bool
	mu         sync.Mutex
}

func newFakeStreamingSession(events ...domain.TranscriptEvent) *fakeStreamingSession {
	f := &fakeStreamingSession{events: make(chan domain.TranscriptEvent, 16)}
	for _, event := range events {
		f.events <- event
	}
	return f
}

func (f *fakeStreamingSession) SendAudio(_ []byte) error { return nil }

func (f *fakeStreamingSession) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeSend++
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

func (f *fakeStreamingSession) Events() <-chan domain.TranscriptEvent { return f.events }

func (f *fakeStreamingSession) Wait() error {
	time.Sleep(5 * time.Millisecond)
	return f.waitErr
}

func (f *fakeStreamingSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

type fakePermission struct {
	status   domain.PermissionStatus
	answer   bool
	err      error
	requests int
}

func (f *fakePermission) Status() domain.PermissionStatus { return f.status }

func (f *fakePermission) Request(context.Context) (bool, error) {
	f.requests++
	return f.answer, f.err
}

type fakeClassifier struct {
	mu      sync.Mutex
	result  domain.Classification
	release chan struct{}
	calls   int
}

func (f *fakeClassifier) Classify(ctx context.Context, _ string) domain.Classification {
	f.mu.Lock()
	f.calls++
	release := f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return domain.Classification{Topic: domain.UnknownTopic, Prompt: "Could not get prompt."}
		}
	}
	return f.result
}

func (f *fakeClassifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeUploader struct {
	mu    sync.Mutex
	err   error
	dests []string
	blobs map[string]string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{blobs: make(map[string]string)}
}

func (f *fakeUploader) Upload(_ context.Context, localPath string, destPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dests = append(f.dests, destPath)
	if f.err != nil {
		return "", &domain.UploadError{Path: destPath, Err: f.err}
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", &domain.UploadError{Path: destPath, Err: err}
	}
	return f.store(destPath, string(data)), nil
}

func (f *fakeUploader) UploadText(_ context.Context, text string, destPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dests = append(f.dests, destPath)
	if f.err != nil {
		return "", &domain.UploadError{Path: destPath, Err: f.err}
	}
	return f.store(destPath, text), nil
}

func (f *fakeUploader) Download(_ context.Context, locator string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dest, ok := strings.CutPrefix(locator, "https://files.test/")
	if !ok {
		return "", fmt.Errorf("unknown locator %q", locator)
	}
	dest, _, _ = strings.Cut(dest, "?")
	text, ok := f.blobs[dest]
	if !ok {
		return "", fmt.Errorf("no blob at %q", dest)
	}
	return text, nil
}

func (f *fakeUploader) store(destPath string, body string) string {
	f.blobs[destPath] = body
	return "https://files.test/" + destPath + "?token=t"
}

func (f *fakeUploader) snapshotDests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dests...)
}

type fakeEventSink struct {
	mu sync.Mutex

	states           []stateEvent
	lives            []liveEvent
	classifications  []domain.Classification
	streaks          []int
	permissionDenied int
	errors           []errEvent
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type liveEvent struct {
	text  string
	lines []string
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) LiveTranscript(text string, lines []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lives = append(f.lives, liveEvent{text: text, lines: lines})
}

func (f *fakeEventSink) ClassificationChanged(result domain.Classification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classifications = append(f.classifications, result)
}

func (f *fakeEventSink) StreakChanged(count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streaks = append(f.streaks, count)
}

func (f *fakeEventSink) PermissionDenied() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permissionDenied++
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stateEvent(nil), f.states...)
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errEvent(nil), f.errors...)
}

func (f *fakeEventSink) snapshotLives() []liveEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]liveEvent(nil), f.lives...)
}

func (f *fakeEventSink) snapshotClassifications() []domain.Classification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Classification(nil), f.classifications...)
}

func (f *fakeEventSink) snapshotStreaks() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.streaks...)
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}
