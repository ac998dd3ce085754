package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"talkitout/internal/domain"
	"talkitout/internal/ports"
)

var (
	ErrInvalidTextInput = errors.New("invalid text entry")
	ErrEntryNotFound    = errors.New("entry not found")
	ErrNotTextEntry     = errors.New("entry is not a text entry")
)

const remoteTextEntries = "text_entries"

// TextInput is a typed journal entry as submitted by the views.
type TextInput struct {
	Title string `json:"title" validate:"max=200"`
	Text  string `json:"text" validate:"required"`
}

// StreakRecorder advances the streak for a newly saved entry.
type StreakRecorder interface {
	RecordEntry(date time.Time) int
}

// TextJournalDeps are the text journal's collaborators.
type TextJournalDeps struct {
	Uploader   ports.Uploader
	Downloader ports.Downloader
	Entries    ports.EntryStore
	Streak     StreakRecorder
	Logger     *slog.Logger
	Now        func() time.Time
	NewID      func() string
}

// TextJournal stores typed entries as remote text blobs.
type TextJournal struct {
	uploader   ports.Uploader
	downloader ports.Downloader
	entries    ports.EntryStore
	streak     StreakRecorder
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
	timeout    time.Duration
	validate   *validator.Validate
}

func NewTextJournal(deps TextJournalDeps, uploadTimeout time.Duration) *TextJournal {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if uploadTimeout <= 0 {
		uploadTimeout = defaultUploadTimeout
	}
	return &TextJournal{
		uploader:   deps.Uploader,
		downloader: deps.Downloader,
		entries:    deps.Entries,
		streak:     deps.Streak,
		logger:     deps.Logger,
		now:        deps.Now,
		newID:      deps.NewID,
		timeout:    uploadTimeout,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Create uploads the entry text and appends a text entry pointing at it.
func (j *TextJournal) Create(ctx context.Context, input TextInput) (domain.Entry, error) {
	input = normalizeTextInput(input)
	if err := j.validate.Struct(input); err != nil {
		return domain.Entry{}, fmt.Errorf("%w: %v", ErrInvalidTextInput, err)
	}

	id := j.newID()
	locator, err := j.put(ctx, input.Text)
	if err != nil {
		return domain.Entry{}, err
	}

	entry := domain.NewTextEntry(id, j.now(), input.Title, locator)
	j.entries.Append(entry)
	j.logger.Info("text entry saved", slog.String("id", id))
	if j.streak != nil {
		j.streak.RecordEntry(entry.Date)
	}
	return entry, nil
}

// Update stores a fresh copy of the text and replaces the entry in place,
// keeping its id and date. Title and text are both required.
func (j *TextJournal) Update(ctx context.Context, id string, input TextInput) (domain.Entry, error) {
	input = normalizeTextInput(input)
	if err := j.validate.Struct(input); err != nil {
		return domain.Entry{}, fmt.Errorf("%w: %v", ErrInvalidTextInput, err)
	}
	if err := j.validate.Var(input.Title, "required"); err != nil {
		return domain.Entry{}, fmt.Errorf("%w: title is required", ErrInvalidTextInput)
	}

	existing, ok := j.entries.Get(id)
	if !ok {
		return domain.Entry{}, ErrEntryNotFound
	}
	if existing.Kind() != domain.EntryKindText {
		return domain.Entry{}, ErrNotTextEntry
	}

	locator, err := j.put(ctx, input.Text)
	if err != nil {
		return domain.Entry{}, err
	}

	replaced, err := j.entries.Replace(id, domain.NewTextEntry(id, existing.Date, input.Title, locator))
	if err != nil {
		return domain.Entry{}, fmt.Errorf("failed to replace entry %s: %w", id, err)
	}
	j.logger.Info("text entry updated", slog.String("id", id))
	return replaced, nil
}

// Load returns the entry text, fetching it when the entry holds a remote
// locator.
func (j *TextJournal) Load(ctx context.Context, id string) (string, error) {
	entry, ok := j.entries.Get(id)
	if !ok {
		return "", ErrEntryNotFound
	}
	payload, ok := entry.Text()
	if !ok {
		return "", ErrNotTextEntry
	}
	if !isRemoteLocator(payload.Text) {
		return payload.Text, nil
	}

	text, err := j.downloader.Download(ctx, payload.Text)
	if err != nil {
		return "", fmt.Errorf("failed to load entry %s: %w", id, err)
	}
	return text, nil
}

func (j *TextJournal) put(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	destPath := path.Join(remoteTextEntries, j.newID()+".txt")
	locator, err := j.uploader.UploadText(ctx, text, destPath)
	if err != nil {
		j.logger.Error("text upload failed", slog.String("path", destPath), slog.Any("error", err))
		return "", err
	}
	return locator, nil
}

func normalizeTextInput(input TextInput) TextInput {
	return TextInput{
		Title: strings.TrimSpace(input.Title),
		Text:  strings.TrimSpace(input.Text),
	}
}

func isRemoteLocator(text string) bool {
	return strings.HasPrefix(text, "https://") || strings.HasPrefix(text, "http://")
}
