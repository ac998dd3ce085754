package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"talkitout/internal/domain"
)

// dispatch starts classification and upload for a stopped session. Both run
// detached from the caller's cancellation, each under its own deadline.
func (c *SessionController) dispatch(ctx context.Context, sessionID uint64, text string, localPath string) {
	tailCtx := context.WithoutCancel(ctx)
	destPath := path.Join(remoteRecordings, filepath.Base(localPath))

	c.tails.Add(2)
	go c.classify(tailCtx, sessionID, text)
	go c.upload(tailCtx, text, localPath, destPath)
}

// classify updates the display classification unless a newer session has
// started since sessionID.
func (c *SessionController) classify(ctx context.Context, sessionID uint64, text string) {
	defer c.tails.Done()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ClassifyTimeout)
	defer cancel()

	result := c.classifier.Classify(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	if sessionID != c.sessionID {
		c.logger.Debug("discarding stale classification",
			slog.Uint64("session", sessionID),
			slog.Uint64("current", c.sessionID),
		)
		return
	}
	c.display = result
	c.events.ClassificationChanged(result)
}

// upload stores the recording and appends the audio entry. Uploads are never
// discarded for staleness; the entry belongs to the session that recorded it.
func (c *SessionController) upload(ctx context.Context, text string, localPath string, destPath string) {
	defer c.tails.Done()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.UploadTimeout)
	defer cancel()

	locator, err := c.uploader.Upload(ctx, localPath, destPath)
	if err != nil {
		c.logger.Error("recording upload failed", slog.String("path", destPath), slog.Any("error", err))
		c.events.SessionError(domain.ErrorCodeUpload, fmt.Sprintf("failed to upload %s: %v", destPath, err))
		return
	}

	entry := domain.NewAudioEntry(c.newID(), c.now(), text, locator)
	c.entries.Append(entry)
	c.logger.Info("audio entry saved", slog.String("id", entry.ID), slog.String("path", destPath))
	c.RecordEntry(entry.Date)
}
