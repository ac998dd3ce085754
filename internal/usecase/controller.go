package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"talkitout/internal/domain"
	"talkitout/internal/ports"
	"talkitout/internal/streak"
	"talkitout/internal/transcript"
)

var ErrNoActiveSession = errors.New("no active recording session")

const (
	defaultChunkSize       = 4096
	defaultStreamWait      = 4 * time.Second
	defaultClassifyTimeout = 30 * time.Second
	defaultUploadTimeout   = 2 * time.Minute

	recordingExt     = ".m4a"
	remoteRecordings = "recordings"
)

// Config controls recording and post-processing behavior.
type Config struct {
	Audio          ports.AudioConfig
	Streaming      ports.StreamingConfig
	ChunkSize      int
	StreamingGrace time.Duration
	StreamWait     time.Duration

	RecordingsDir   string
	ClassifyTimeout time.Duration
	UploadTimeout   time.Duration
}

// Deps are the controller's collaborators. A nil Permission always grants.
type Deps struct {
	Audio      ports.AudioCapture
	Provider   ports.TranscriptionProvider
	Permission ports.MicrophonePermission
	Classifier ports.Classifier
	Uploader   ports.Uploader
	Entries    ports.EntryStore
	Events     ports.EventSink
	Logger     *slog.Logger
	Now        func() time.Time
	NewID      func() string
}

// SessionController orchestrates recording, live transcription and the
// classification/upload tails that run after each stop.
type SessionController struct {
	audio      ports.AudioCapture
	provider   ports.TranscriptionProvider
	permission ports.MicrophonePermission
	classifier ports.Classifier
	uploader   ports.Uploader
	entries    ports.EntryStore
	events     ports.EventSink
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
	cfg        Config

	mu        sync.Mutex
	current   *recording
	sessionID uint64
	display   domain.Classification
	streak    streak.Tracker

	tails sync.WaitGroup
}

func NewSessionController(deps Deps, cfg Config) *SessionController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.StreamWait <= 0 {
		cfg.StreamWait = defaultStreamWait
	}
	if cfg.ClassifyTimeout <= 0 {
		cfg.ClassifyTimeout = defaultClassifyTimeout
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = defaultUploadTimeout
	}
	if cfg.RecordingsDir == "" {
		cfg.RecordingsDir = filepath.Join(os.TempDir(), "talkitout", "recordings")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	return &SessionController{
		audio:      deps.Audio,
		provider:   deps.Provider,
		permission: deps.Permission,
		classifier: deps.Classifier,
		uploader:   deps.Uploader,
		entries:    deps.Entries,
		events:     deps.Events,
		logger:     deps.Logger,
		now:        deps.Now,
		newID:      deps.NewID,
		cfg:        cfg,
	}
}

// Start begins a new capture/transcription session, discarding any session
// that is already recording.
func (c *SessionController) Start(ctx context.Context) error {
	if err := c.ensurePermission(ctx); err != nil {
		return err
	}

	// A session that is already stopping belongs to its Stop call and is left
	// to finish on its own.
	c.mu.Lock()
	previous := c.current
	if previous != nil && previous.transition(domain.SessionStateRecording, domain.SessionStateStopping) {
		c.current = nil
	} else {
		previous = nil
	}
	c.mu.Unlock()

	if previous != nil {
		previous.halt()
		c.discardRecording(previous)
	}

	c.mu.Lock()
	c.sessionID++
	id := c.sessionID
	c.display = domain.Classification{}
	c.events.ClassificationChanged(c.display)
	c.mu.Unlock()

	localPath := filepath.Join(c.cfg.RecordingsDir, c.newID()+recordingExt)
	sessionCtx, cancel := context.WithCancel(ctx)

	audioCfg := c.cfg.Audio
	audioCfg.OutputPath = localPath
	audioSession, err := c.audio.Start(sessionCtx, audioCfg)
	if err != nil {
		cancel()
		captureErr := &domain.CaptureConfigurationError{Err: err}
		c.logger.Error("audio capture failed to start", slog.Any("error", err))
		c.events.SessionError(domain.ErrorCodeCapture, captureErr.Error())
		c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonCaptureFailed)
		return captureErr
	}

	stream, err := c.provider.StartStreaming(sessionCtx, c.cfg.Streaming)
	if err != nil {
		startErr := &domain.TranscriptionStartError{Err: err}
		c.logger.Warn("recording without live transcription", slog.Any("error", err))
		c.events.SessionError(domain.ErrorCodeTranscription, startErr.Error())
		stream = nil
	}

	active := newRecording(id, localPath, c.now(), cancel, audioSession, stream)

	c.mu.Lock()
	c.current = active
	c.mu.Unlock()

	active.run(c.cfg.ChunkSize, func(text string) { c.publishLive(id, text) }, c.events)

	reason := domain.SessionReasonRecordingStarted
	if previous != nil {
		reason = domain.SessionReasonRecordingRestarted
	}
	c.logger.Info("recording started", slog.Uint64("session", id), slog.Bool("live", active.live()))
	c.events.SessionStateChanged(domain.SessionStateRecording, reason)
	return nil
}

// Stop ends the active session. A non-empty transcript is classified and its
// recording uploaded in the background; Stop does not wait for either.
func (c *SessionController) Stop(ctx context.Context) (domain.StopResult, error) {
	active, err := c.claim()
	if err != nil {
		return domain.StopResult{}, err
	}

	c.events.SessionStateChanged(domain.SessionStateStopping, domain.SessionReasonStopping)

	stopErr, streamErr := active.drain(ctx, c.cfg.StreamingGrace, c.cfg.StreamWait)
	if stopErr != nil {
		c.logger.Warn("audio capture did not stop cleanly", slog.Any("error", stopErr))
		c.events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}

	text := active.aggregator.Text()
	if streamErr != nil {
		c.logger.Warn("live transcription ended with error", slog.Any("error", streamErr))
		if text == "" {
			c.events.SessionError(domain.ErrorCodeTranscription, streamErr.Error())
		}
	}

	if text == "" {
		c.discardRecording(active)
		c.clearDisplay(active.id)
		c.finishSession(active, domain.SessionReasonNoTranscript)
		return domain.StopResult{}, nil
	}

	c.logger.Info("recording stopped",
		slog.Uint64("session", active.id),
		slog.Duration("duration", c.now().Sub(active.startedAt)),
		slog.Int64("bytes", active.captured.Load()),
	)
	active.aggregator.Reset()
	c.clearLive(active.id)
	c.finishSession(active, domain.SessionReasonSaving)
	c.dispatch(ctx, active.id, text, active.localPath)

	return domain.StopResult{Transcript: text, LocalPath: active.localPath, Dispatched: true}, nil
}

// Abort cancels and discards an active session without classification or
// upload.
func (c *SessionController) Abort() error {
	active, err := c.claim()
	if err != nil {
		return err
	}

	active.halt()
	c.discardRecording(active)
	c.clearLive(active.id)
	c.finishSession(active, domain.SessionReasonRecordingDiscarded)
	return nil
}

// Status returns the current backend status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := domain.Status{
		State:  domain.SessionStateIdle,
		Streak: c.streak.Count,
		Topic:  c.display.DisplayTopic(),
		Prompt: c.display.Prompt,
	}
	if c.current != nil {
		status.State = c.current.getState()
		status.Active = status.State != domain.SessionStateIdle
		status.Transcript = c.current.aggregator.Text()
	}
	return status
}

// RecordEntry advances the streak for an entry dated date and publishes the
// new count.
func (c *SessionController) RecordEntry(date time.Time) int {
	c.mu.Lock()
	count := c.streak.Record(date)
	c.mu.Unlock()

	c.events.StreakChanged(count)
	return count
}

// Wait blocks until every dispatched classification and upload has finished.
func (c *SessionController) Wait() {
	c.tails.Wait()
}

func (c *SessionController) ensurePermission(ctx context.Context) error {
	if c.permission == nil {
		return nil
	}

	granted := false
	switch c.permission.Status() {
	case domain.PermissionGranted:
		granted = true
	case domain.PermissionUndetermined:
		var err error
		granted, err = c.permission.Request(ctx)
		if err != nil {
			c.logger.Error("microphone permission request failed", slog.Any("error", err))
			c.events.SessionError(domain.ErrorCodePermission, fmt.Sprintf("microphone permission request failed: %v", err))
			return err
		}
	}

	if !granted {
		c.logger.Warn("recording blocked, microphone permission denied")
		c.events.PermissionDenied()
		c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonPermissionDenied)
		return domain.ErrPermissionDenied
	}
	return nil
}

// publishLive drops updates from a session that has been superseded.
func (c *SessionController) publishLive(id uint64, text string) {
	lines := transcript.Segment(text)

	c.mu.Lock()
	defer c.mu.Unlock()
	if id == c.sessionID {
		c.events.LiveTranscript(text, lines)
	}
}

// clearDisplay resets the classification and live transcript unless a newer
// session has started since id.
func (c *SessionController) clearDisplay(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != c.sessionID {
		return
	}
	c.display = domain.Classification{}
	c.events.ClassificationChanged(c.display)
	c.events.LiveTranscript("", nil)
}

func (c *SessionController) clearLive(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == c.sessionID {
		c.events.LiveTranscript("", nil)
	}
}

// claim hands the current recording to exactly one Stop or Abort caller.
func (c *SessionController) claim() (*recording, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || !c.current.transition(domain.SessionStateRecording, domain.SessionStateStopping) {
		return nil, ErrNoActiveSession
	}
	return c.current, nil
}

func (c *SessionController) discardRecording(active *recording) {
	if err := active.discard(); err != nil {
		c.logger.Warn("failed to remove local recording", slog.String("path", active.localPath), slog.Any("error", err))
	}
}

// finishSession releases active. The idle state is only published while
// active is still the current session; a newer recording owns the state
// otherwise.
func (c *SessionController) finishSession(active *recording, reason domain.SessionStateReason) {
	active.cancel()
	active.setState(domain.SessionStateIdle)

	c.mu.Lock()
	current := c.current == active
	if current {
		c.current = nil
	}
	c.mu.Unlock()

	if current {
		c.events.SessionStateChanged(domain.SessionStateIdle, reason)
	}
}
