package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"talkitout/internal/audio"
	"talkitout/internal/config"
	"talkitout/internal/journal"
	"talkitout/internal/permission"
	"talkitout/internal/ports"
	"talkitout/internal/providers/deepgram"
	"talkitout/internal/providers/openai"
	"talkitout/internal/reminder"
	"talkitout/internal/settings"
	"talkitout/internal/storage"
	"talkitout/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Config      config.Config
	Logger      *slog.Logger
	Settings    *settings.Store
	Permission  *permission.Gate
	Entries     *journal.Collection
	Controller  *usecase.SessionController
	TextJournal *usecase.TextJournal
	Reminder    *reminder.Scheduler

	// StorageErr is set when the object store could not be configured.
	// Uploads then fail individually and the rest of the graph still works.
	StorageErr error
}

// Hooks are the UI-side collaborators supplied by the application shell.
type Hooks struct {
	Events   ports.EventSink
	Prompter ports.PermissionPrompter
	Remind   reminder.Notifier
	// LogOutput defaults to stderr.
	LogOutput io.Writer
}

// Build wires all backend dependencies for the current runtime.
func Build(ctx context.Context, hooks Hooks) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWith(ctx, cfg, hooks)
}

// BuildWith wires dependencies from an already loaded config.
func BuildWith(ctx context.Context, cfg config.Config, hooks Hooks) (Services, error) {
	logger, err := NewLogger(cfg, hooks.LogOutput)
	if err != nil {
		return Services{}, err
	}

	store, err := settings.Open(cfg.Data.SettingsPath)
	if err != nil {
		return Services{}, err
	}

	objects, storageErr := newObjectStore(ctx, cfg, logger.With(slog.String("component", "storage")))
	if storageErr != nil {
		logger.Warn("object storage unavailable, entries will not be saved", slog.Any("error", storageErr))
	}

	gate := permission.NewGate(store, hooks.Prompter, logger.With(slog.String("component", "permission")))
	entries := journal.NewCollection()

	controller := usecase.NewSessionController(usecase.Deps{
		Audio:      audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, logger.With(slog.String("component", "audio"))),
		Provider:   deepgram.NewProvider(deepgramConfig(cfg), logger.With(slog.String("component", "deepgram"))),
		Permission: gate,
		Classifier: openai.NewClassifier(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		}, logger.With(slog.String("component", "classifier"))),
		Uploader: objects,
		Entries:  entries,
		Events:   hooks.Events,
		Logger:   logger.With(slog.String("component", "session")),
	}, usecase.Config{
		Audio: ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
		Streaming: ports.StreamingConfig{
			SampleRate:     cfg.Audio.SampleRate,
			Channels:       cfg.Audio.Channels,
			Encoding:       "linear16",
			InterimResults: true,
		},
		ChunkSize:       cfg.Session.ChunkSize,
		StreamingGrace:  cfg.Session.StreamingGrace,
		StreamWait:      cfg.Session.StreamWait,
		RecordingsDir:   cfg.Data.RecordingsDir,
		ClassifyTimeout: cfg.OpenAI.Timeout,
		UploadTimeout:   cfg.Storage.UploadTimeout,
	})

	texts := usecase.NewTextJournal(usecase.TextJournalDeps{
		Uploader:   objects,
		Downloader: objects,
		Entries:    entries,
		Streak:     controller,
		Logger:     logger.With(slog.String("component", "text_journal")),
	}, cfg.Storage.UploadTimeout)

	scheduler := reminder.New(cfg.Reminder.Schedule, entries, hooks.Remind, logger.With(slog.String("component", "reminder")))

	return Services{
		Config:      cfg,
		Logger:      logger,
		Settings:    store,
		Permission:  gate,
		Entries:     entries,
		Controller:  controller,
		TextJournal: texts,
		Reminder:    scheduler,
		StorageErr:  storageErr,
	}, nil
}

type objectStore interface {
	ports.Uploader
	ports.Downloader
}

func newObjectStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (objectStore, error) {
	cloud, err := storage.NewCloudStore(ctx, storage.Config{
		Bucket:          cfg.Storage.Bucket,
		CredentialsFile: cfg.Storage.CredentialsFile,
		Endpoint:        cfg.Storage.Endpoint,
		DownloadBaseURL: cfg.Storage.DownloadBaseURL,
		Anonymous:       cfg.Storage.Anonymous,
	}, logger)
	if err != nil {
		return storage.Unavailable{Err: err}, err
	}
	return cloud, nil
}

// Close stops background work and releases local resources.
func (s Services) Close() error {
	if s.Reminder != nil {
		s.Reminder.Stop()
	}
	if s.Controller != nil {
		s.Controller.Wait()
	}
	if s.Settings != nil {
		return s.Settings.Close()
	}
	return nil
}

// NewLogger builds the JSON logger at the configured level.
func NewLogger(cfg config.Config, out io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = os.Stderr
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})), nil
}

func deepgramConfig(cfg config.Config) deepgram.Config {
	return deepgram.Config{
		APIKey:      cfg.Deepgram.APIKey,
		APIBaseURL:  cfg.Deepgram.APIBaseURL,
		Model:       cfg.Deepgram.Model,
		Language:    cfg.Deepgram.Language,
		SmartFormat: cfg.Deepgram.SmartFormat,
		KeepAlive:   cfg.Deepgram.KeepAlive,
	}
}

// ErrNotConfigured reports required settings that are missing.
var ErrNotConfigured = errors.New("missing required configuration")

// Validate reports the credentials the runtime cannot work without.
func Validate(cfg config.Config) error {
	var missing []string
	if cfg.Deepgram.APIKey == "" {
		missing = append(missing, "DEEPGRAM_API_KEY")
	}
	if cfg.OpenAI.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if cfg.Storage.Bucket == "" {
		missing = append(missing, "STORAGE_BUCKET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrNotConfigured, missing)
	}
	return nil
}
