// Package settings persists local app state (profile, onboarding, microphone
// permission) in a small SQLite key-value table.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"talkitout/internal/domain"
)

const (
	keyProfile    = "profile"
	keyOnboarding = "onboarding_completed"
	keyMicrophone = "microphone_permission"
)

const schema = `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)
`

// Store is a SQLite-backed key-value store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the settings database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create settings dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}
	// A single connection keeps :memory: databases coherent and serializes writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create settings table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored value and whether the key exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read setting %q: %w", key, err)
	}
	return value, true, nil
}

// Set upserts a value.
func (s *Store) Set(ctx context.Context, key string, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("write setting %q: %w", key, err)
	}
	return nil
}

// Delete removes a key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %q: %w", key, err)
	}
	return nil
}

// Profile returns the saved profile, or the zero profile if none was saved.
func (s *Store) Profile(ctx context.Context) (domain.Profile, error) {
	raw, ok, err := s.Get(ctx, keyProfile)
	if err != nil || !ok {
		return domain.Profile{}, err
	}
	var profile domain.Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return domain.Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return profile, nil
}

func (s *Store) SaveProfile(ctx context.Context, profile domain.Profile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return s.Set(ctx, keyProfile, string(raw))
}

func (s *Store) OnboardingCompleted(ctx context.Context) (bool, error) {
	value, _, err := s.Get(ctx, keyOnboarding)
	return value == "true", err
}

func (s *Store) CompleteOnboarding(ctx context.Context) error {
	return s.Set(ctx, keyOnboarding, "true")
}

// MicrophonePermission returns the persisted answer, undetermined if the user
// was never asked.
func (s *Store) MicrophonePermission(ctx context.Context) (domain.PermissionStatus, error) {
	value, ok, err := s.Get(ctx, keyMicrophone)
	if err != nil || !ok {
		return domain.PermissionUndetermined, err
	}
	switch status := domain.PermissionStatus(value); status {
	case domain.PermissionGranted, domain.PermissionDenied:
		return status, nil
	default:
		return domain.PermissionUndetermined, nil
	}
}

func (s *Store) SetMicrophonePermission(ctx context.Context, status domain.PermissionStatus) error {
	if status == domain.PermissionUndetermined {
		return s.Delete(ctx, keyMicrophone)
	}
	return s.Set(ctx, keyMicrophone, string(status))
}
