package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolateEnv(t)

	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.OpenAI.Model != "gpt-3.5-turbo" || cfg.OpenAI.Timeout != 30*time.Second {
		t.Fatalf("unexpected openai defaults: %+v", cfg.OpenAI)
	}
	if cfg.Deepgram.APIBaseURL != "https://api.deepgram.com/v1" || cfg.Deepgram.Model != "nova-2" || !cfg.Deepgram.SmartFormat {
		t.Fatalf("unexpected deepgram defaults: %+v", cfg.Deepgram)
	}
	if cfg.Audio.RecorderCommand != "ffmpeg" || cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 {
		t.Fatalf("unexpected audio defaults: %+v", cfg.Audio)
	}
	if cfg.Session.ChunkSize != 4096 || cfg.Session.StreamingGrace != time.Second {
		t.Fatalf("unexpected session defaults: %+v", cfg.Session)
	}
	if cfg.Storage.DownloadBaseURL != "https://firebasestorage.googleapis.com" || cfg.Storage.UploadTimeout != 2*time.Minute {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Reminder.Schedule != "0 20 * * *" {
		t.Fatalf("unexpected reminder schedule: %q", cfg.Reminder.Schedule)
	}

	dataDir := filepath.Join(home, ".config", "talkitout")
	if cfg.Data.Dir != dataDir {
		t.Fatalf("unexpected data dir: %q", cfg.Data.Dir)
	}
	if cfg.Data.RecordingsDir != filepath.Join(dataDir, "recordings") || cfg.Data.SettingsPath != filepath.Join(dataDir, "settings.sqlite") {
		t.Fatalf("unexpected data paths: %+v", cfg.Data)
	}

	level, err := cfg.SlogLevel()
	if err != nil || level != slog.LevelInfo {
		t.Fatalf("unexpected log level %v err=%v", level, err)
	}
}

func TestLoadRespectsOverrides(t *testing.T) {
	isolateEnv(t)
	data := t.TempDir()

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("CLASSIFY_TIMEOUT", "5s")
	t.Setenv("DEEPGRAM_API_KEY", "dg-test")
	t.Setenv("DEEPGRAM_API_BASE", "https://example.com/v1")
	t.Setenv("DEEPGRAM_LANGUAGE", "en")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "false")
	t.Setenv("TALKITOUT_FFMPEG_COMMAND", "my-ffmpeg")
	t.Setenv("TALKITOUT_AUDIO_INPUT_FORMAT", "avfoundation")
	t.Setenv("TALKITOUT_AUDIO_INPUT_DEVICE", ":0")
	t.Setenv("TALKITOUT_SAMPLE_RATE", "22050")
	t.Setenv("TALKITOUT_CHANNELS", "2")
	t.Setenv("TALKITOUT_AUDIO_CHUNK_SIZE", "512")
	t.Setenv("TALKITOUT_STREAMING_GRACE", "25ms")
	t.Setenv("STORAGE_BUCKET", "journal.appspot.com")
	t.Setenv("STORAGE_ANONYMOUS", "true")
	t.Setenv("UPLOAD_TIMEOUT", "10s")
	t.Setenv("TALKITOUT_DATA_DIR", data)
	t.Setenv("TALKITOUT_REMINDER_SCHEDULE", "")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.OpenAI.APIKey != "sk-test" || cfg.OpenAI.Model != "gpt-4o-mini" || cfg.OpenAI.Timeout != 5*time.Second {
		t.Fatalf("unexpected openai config: %+v", cfg.OpenAI)
	}
	if cfg.Deepgram.APIKey != "dg-test" || cfg.Deepgram.APIBaseURL != "https://example.com/v1" || cfg.Deepgram.Language != "en" || cfg.Deepgram.SmartFormat {
		t.Fatalf("unexpected deepgram config: %+v", cfg.Deepgram)
	}
	if cfg.Audio.RecorderCommand != "my-ffmpeg" || cfg.Audio.InputFormat != "avfoundation" || cfg.Audio.InputDevice != ":0" {
		t.Fatalf("unexpected audio config: %+v", cfg.Audio)
	}
	if cfg.Audio.SampleRate != 22050 || cfg.Audio.Channels != 2 {
		t.Fatalf("unexpected sample/channels: %+v", cfg.Audio)
	}
	if cfg.Session.ChunkSize != 512 || cfg.Session.StreamingGrace != 25*time.Millisecond {
		t.Fatalf("unexpected session config: %+v", cfg.Session)
	}
	if cfg.Storage.Bucket != "journal.appspot.com" || !cfg.Storage.Anonymous || cfg.Storage.UploadTimeout != 10*time.Second {
		t.Fatalf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Data.RecordingsDir != filepath.Join(data, "recordings") {
		t.Fatalf("unexpected recordings dir: %q", cfg.Data.RecordingsDir)
	}
	if cfg.Reminder.Schedule != "" {
		t.Fatalf("an explicitly empty schedule must disable the reminder, got %q", cfg.Reminder.Schedule)
	}
	if level, _ := cfg.SlogLevel(); level != slog.LevelDebug {
		t.Fatalf("unexpected log level: %v", level)
	}
}

func TestLoadClampsNonPositiveValues(t *testing.T) {
	isolateEnv(t)
	t.Setenv("TALKITOUT_SAMPLE_RATE", "0")
	t.Setenv("TALKITOUT_CHANNELS", "-1")
	t.Setenv("TALKITOUT_AUDIO_CHUNK_SIZE", "5")
	t.Setenv("TALKITOUT_STREAMING_GRACE", "-1s")
	t.Setenv("CLASSIFY_TIMEOUT", "0s")
	t.Setenv("UPLOAD_TIMEOUT", "-5s")

	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 {
		t.Fatalf("expected default audio format, got %+v", cfg.Audio)
	}
	if cfg.Session.ChunkSize != 4096 || cfg.Session.StreamingGrace != time.Second {
		t.Fatalf("expected default session values, got %+v", cfg.Session)
	}
	if cfg.OpenAI.Timeout != 30*time.Second || cfg.Storage.UploadTimeout != 2*time.Minute {
		t.Fatalf("expected default timeouts, got %s %s", cfg.OpenAI.Timeout, cfg.Storage.UploadTimeout)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	cases := map[string]string{
		"TALKITOUT_SAMPLE_RATE": "bad",
		"DEEPGRAM_SMART_FORMAT": "not-bool",
		"UPLOAD_TIMEOUT":        "soon",
		"LOG_LEVEL":             "chatty",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			isolateEnv(t)
			t.Setenv(key, value)
			if _, err := LoadFrom(""); err == nil {
				t.Fatalf("expected %s=%q to fail", key, value)
			}
		})
	}
}

func TestLoadReadsDotenvWithoutOverriding(t *testing.T) {
	isolateEnv(t)
	dotenv := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(dotenv, []byte("DEEPGRAM_MODEL=nova-3\nDEEPGRAM_LANGUAGE=de\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	t.Setenv("DEEPGRAM_LANGUAGE", "fr")
	// Setenv registers the restore; the key itself must be absent for the file to apply.
	t.Setenv("DEEPGRAM_MODEL", "")
	os.Unsetenv("DEEPGRAM_MODEL")

	cfg, err := LoadFrom(dotenv)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Deepgram.Model != "nova-3" {
		t.Fatalf("expected model from dotenv, got %q", cfg.Deepgram.Model)
	}
	if cfg.Deepgram.Language != "fr" {
		t.Fatalf("environment must win over dotenv, got %q", cfg.Deepgram.Language)
	}
}

func TestLoadMissingDotenvIsIgnored(t *testing.T) {
	isolateEnv(t)
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing dotenv must be ignored, got %v", err)
	}
}
