// Package permission gates recording on a persisted microphone consent.
package permission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"talkitout/internal/domain"
	"talkitout/internal/ports"
)

// Store persists the user's answer.
type Store interface {
	MicrophonePermission(ctx context.Context) (domain.PermissionStatus, error)
	SetMicrophonePermission(ctx context.Context, status domain.PermissionStatus) error
}

// Gate implements ports.MicrophonePermission. A stored answer is returned
// without prompting again until Reset.
type Gate struct {
	store    Store
	prompter ports.PermissionPrompter
	logger   *slog.Logger

	mu sync.Mutex
}

func NewGate(store Store, prompter ports.PermissionPrompter, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: store, prompter: prompter, logger: logger}
}

func (g *Gate) Status() domain.PermissionStatus {
	status, err := g.store.MicrophonePermission(context.Background())
	if err != nil {
		g.logger.Warn("failed to read microphone permission", slog.Any("error", err))
		return domain.PermissionUndetermined
	}
	return status
}

// Request returns the stored answer, prompting the user when undetermined.
func (g *Gate) Request(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	status, err := g.store.MicrophonePermission(ctx)
	if err != nil {
		return false, fmt.Errorf("read microphone permission: %w", err)
	}
	switch status {
	case domain.PermissionGranted:
		return true, nil
	case domain.PermissionDenied:
		return false, nil
	}

	if g.prompter == nil {
		return false, fmt.Errorf("no permission prompter configured")
	}
	granted, err := g.prompter.AskMicrophoneAccess(ctx)
	if err != nil {
		return false, fmt.Errorf("ask microphone access: %w", err)
	}

	status = domain.PermissionDenied
	if granted {
		status = domain.PermissionGranted
	}
	if err := g.store.SetMicrophonePermission(ctx, status); err != nil {
		g.logger.Warn("failed to persist microphone permission", slog.Any("error", err))
	}
	g.logger.Info("microphone permission answered", slog.String("status", string(status)))
	return granted, nil
}

// Reset forgets the stored answer so the next Request prompts again.
func (g *Gate) Reset(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.SetMicrophonePermission(ctx, domain.PermissionUndetermined)
}
