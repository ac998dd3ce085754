package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"talkitout/internal/bootstrap"
	"talkitout/internal/domain"
	"talkitout/internal/journal"
	"talkitout/internal/transcript"
	"talkitout/internal/usecase"
)

const (
	eventSession        = "talkitout:session"
	eventLive           = "talkitout:live"
	eventClassification = "talkitout:classification"
	eventEntries        = "talkitout:entries"
	eventStreak         = "talkitout:streak"
	eventError          = "talkitout:error"
	eventPermission     = "talkitout:permission"
	eventReminder       = "talkitout:reminder"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services    bootstrap.Services
	unsubscribe func()
	bootErr     error

	// emit is runtime.EventsEmit outside tests.
	emit   func(ctx context.Context, name string, data ...interface{})
	mu     sync.Mutex
	logger *slog.Logger
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit, logger: slog.Default()}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(ctx, bootstrap.Hooks{
		Events:   a,
		Prompter: &dialogPrompter{app: a},
		Remind:   a.Reminder,
	})
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.logger = services.Logger
	if err := bootstrap.Validate(services.Config); err != nil {
		a.logger.Warn("running with incomplete configuration", slog.Any("error", err))
		a.SessionError(domain.ErrorCodeStartup, err.Error())
	}
	if services.StorageErr != nil {
		a.SessionError(domain.ErrorCodeUpload, services.StorageErr.Error())
	}

	a.unsubscribe = services.Entries.Subscribe(a.entriesChanged)
	if err := services.Reminder.Start(); err != nil {
		a.logger.Error("reminder not scheduled", slog.Any("error", err))
		a.SessionError(domain.ErrorCodeStartup, err.Error())
	}
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(_ context.Context) {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.services.Controller != nil {
		_ = a.services.Controller.Abort()
	}
	if err := a.services.Close(); err != nil {
		a.logger.Warn("shutdown", slog.Any("error", err))
	}
}

// StartRecording starts a journal recording.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.services.Controller.Start(a.ctx); err != nil {
		return domain.Status{}, err
	}
	return a.services.Controller.Status(), nil
}

// StopRecording stops recording. Classification and upload continue in the
// background and are reported through events.
func (a *App) StopRecording() (domain.StopResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.StopResult{}, err
	}
	return a.services.Controller.Stop(a.ctx)
}

// AbortRecording discards an in-progress recording.
func (a *App) AbortRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Controller.Abort(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
		return err
	}
	return nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.services.Controller == nil {
		return domain.Status{State: domain.SessionStateIdle}
	}
	return a.services.Controller.Status()
}

// ListEntries returns every journal entry, optionally filtered by type.
func (a *App) ListEntries(kind string) ([]domain.Entry, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	if kind == "" {
		return a.services.Entries.All(), nil
	}
	return a.services.Entries.OfKind(domain.EntryKind(kind)), nil
}

// SegmentTranscript splits a transcript into display lines.
func (a *App) SegmentTranscript(text string) []string {
	return transcript.Segment(text)
}

func (a *App) CreateTextEntry(title string, text string) (domain.Entry, error) {
	if err := a.requireReady(); err != nil {
		return domain.Entry{}, err
	}
	return a.services.TextJournal.Create(a.ctx, usecase.TextInput{Title: title, Text: text})
}

func (a *App) UpdateTextEntry(id string, title string, text string) (domain.Entry, error) {
	if err := a.requireReady(); err != nil {
		return domain.Entry{}, err
	}
	return a.services.TextJournal.Update(a.ctx, id, usecase.TextInput{Title: title, Text: text})
}

// LoadEntryText resolves a text entry body.
func (a *App) LoadEntryText(id string) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.services.TextJournal.Load(a.ctx, id)
}

func (a *App) GetProfile() (domain.Profile, error) {
	if err := a.requireReady(); err != nil {
		return domain.Profile{}, err
	}
	return a.services.Settings.Profile(a.ctx)
}

func (a *App) SaveProfile(profile domain.Profile) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Settings.SaveProfile(a.ctx, profile)
}

func (a *App) IsOnboardingComplete() (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	return a.services.Settings.OnboardingCompleted(a.ctx)
}

func (a *App) CompleteOnboarding() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Settings.CompleteOnboarding(a.ctx)
}

// ResetMicrophonePermission forgets the stored answer so the next recording
// asks again.
func (a *App) ResetMicrophonePermission() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Permission.Reset(a.ctx)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	cfg := a.services.Config
	return map[string]string{
		"transcription":    "Deepgram " + cfg.Deepgram.Model,
		"language":         cfg.Deepgram.Language,
		"classifier":       cfg.OpenAI.Model,
		"bucket":           cfg.Storage.Bucket,
		"audioInput":       cfg.Audio.InputDevice,
		"audioInputFormat": cfg.Audio.InputFormat,
		"reminder":         cfg.Reminder.Schedule,
		"microphone":       string(a.microphoneStatus()),
		"storage":          storageStatus(a.services.StorageErr),
	}
}

func storageStatus(err error) string {
	if err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}

func (a *App) microphoneStatus() domain.PermissionStatus {
	if a.services.Permission == nil {
		return domain.PermissionUndetermined
	}
	return a.services.Permission.Status()
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services.Controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) send(name string, data interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.emit(a.ctx, name, data)
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	a.send(eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// LiveTranscript emits the running transcript and its display lines.
func (a *App) LiveTranscript(text string, lines []string) {
	if lines == nil {
		lines = []string{}
	}
	a.send(eventLive, map[string]interface{}{"text": text, "lines": lines})
}

// ClassificationChanged emits the display topic and prompt. The Unknown
// sentinel shows as an empty topic.
func (a *App) ClassificationChanged(result domain.Classification) {
	a.send(eventClassification, map[string]string{
		"topic":  result.DisplayTopic(),
		"prompt": result.Prompt,
	})
}

func (a *App) StreakChanged(count int) {
	a.send(eventStreak, map[string]int{"count": count})
}

// PermissionDenied tells the user recording needs microphone access.
func (a *App) PermissionDenied() {
	a.send(eventPermission, map[string]string{"status": string(domain.PermissionDenied)})
	if a.ctx == nil || a.emit == nil {
		return
	}
	go func() {
		_, err := runtime.MessageDialog(a.ctx, runtime.MessageDialogOptions{
			Type:    runtime.WarningDialog,
			Title:   "Microphone access needed",
			Message: "Talk It Out needs microphone access to record journal entries.",
		})
		if err != nil {
			a.logger.Warn("permission alert failed", slog.Any("error", err))
		}
	}()
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.send(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

// Reminder emits the daily journaling nudge.
func (a *App) Reminder(message string) {
	a.send(eventReminder, map[string]string{"message": message})
}

func (a *App) entriesChanged(change journal.Change) {
	a.send(eventEntries, change)
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready"
	case domain.SessionReasonRecordingStarted:
		return "Recording started"
	case domain.SessionReasonRecordingRestarted:
		return "Recording restarted; previous capture discarded"
	case domain.SessionReasonStopping:
		return "Recording stopped"
	case domain.SessionReasonSaving:
		return "Saving entry..."
	case domain.SessionReasonRecordingDiscarded:
		return "Recording discarded"
	case domain.SessionReasonNoTranscript:
		return "Nothing was heard"
	case domain.SessionReasonPermissionDenied:
		return "Microphone access denied"
	case domain.SessionReasonCaptureFailed:
		return "Could not start the microphone"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodePermission:
		return "Microphone permission error"
	case domain.ErrorCodeCapture:
		return "Audio capture failed"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeTranscription:
		return "Live transcription unavailable"
	case domain.ErrorCodeUpload:
		return "Entry could not be saved"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

// dialogPrompter asks for microphone access with a native question dialog.
type dialogPrompter struct {
	app *App
}

func (p *dialogPrompter) AskMicrophoneAccess(ctx context.Context) (bool, error) {
	if p.app.ctx == nil {
		return false, errors.New("application is not initialized")
	}
	answer, err := runtime.MessageDialog(p.app.ctx, runtime.MessageDialogOptions{
		Type:          runtime.QuestionDialog,
		Title:         "Microphone access",
		Message:       "Allow Talk It Out to use the microphone for journal recordings?",
		Buttons:       []string{"Allow", "Don't Allow"},
		DefaultButton: "Allow",
		CancelButton:  "Don't Allow",
	})
	if err != nil {
		return false, err
	}
	return isAffirmative(answer), nil
}

// isAffirmative accepts the custom button label and the platform defaults
// used where custom labels are unsupported.
func isAffirmative(answer string) bool {
	switch answer {
	case "Allow", "Yes", "Ok", "OK":
		return true
	default:
		return false
	}
}
