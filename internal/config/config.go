package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	defaultSampleRate      = 16000
	defaultChannels        = 1
	defaultChunkSize       = 4096
	defaultStreamingGrace  = time.Second
	defaultStreamWait      = 4 * time.Second
	defaultKeepAlive       = 5 * time.Second
	defaultClassifyTimeout = 30 * time.Second
	defaultUploadTimeout   = 2 * time.Minute
)

// Config stores runtime configuration.
type Config struct {
	OpenAI   OpenAIConfig
	Deepgram DeepgramConfig
	Audio    AudioConfig
	Session  SessionConfig
	Storage  StorageConfig
	Data     DataConfig
	Reminder ReminderConfig

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type OpenAIConfig struct {
	APIKey  string        `env:"OPENAI_API_KEY"`
	BaseURL string        `env:"OPENAI_BASE_URL"`
	Model   string        `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	Timeout time.Duration `env:"CLASSIFY_TIMEOUT" envDefault:"30s"`
}

type DeepgramConfig struct {
	APIKey      string        `env:"DEEPGRAM_API_KEY"`
	APIBaseURL  string        `env:"DEEPGRAM_API_BASE" envDefault:"https://api.deepgram.com/v1"`
	Model       string        `env:"DEEPGRAM_MODEL" envDefault:"nova-2"`
	Language    string        `env:"DEEPGRAM_LANGUAGE"`
	SmartFormat bool          `env:"DEEPGRAM_SMART_FORMAT" envDefault:"true"`
	KeepAlive   time.Duration `env:"DEEPGRAM_KEEPALIVE" envDefault:"5s"`
}

type AudioConfig struct {
	RecorderCommand string `env:"TALKITOUT_FFMPEG_COMMAND" envDefault:"ffmpeg"`
	InputFormat     string `env:"TALKITOUT_AUDIO_INPUT_FORMAT" envDefault:"pulse"`
	InputDevice     string `env:"TALKITOUT_AUDIO_INPUT_DEVICE" envDefault:"default"`
	SampleRate      int    `env:"TALKITOUT_SAMPLE_RATE" envDefault:"16000"`
	Channels        int    `env:"TALKITOUT_CHANNELS" envDefault:"1"`
}

type SessionConfig struct {
	ChunkSize      int           `env:"TALKITOUT_AUDIO_CHUNK_SIZE" envDefault:"4096"`
	StreamingGrace time.Duration `env:"TALKITOUT_STREAMING_GRACE" envDefault:"1s"`
	StreamWait     time.Duration `env:"TALKITOUT_STREAM_WAIT" envDefault:"4s"`
}

type StorageConfig struct {
	Bucket          string        `env:"STORAGE_BUCKET"`
	CredentialsFile string        `env:"STORAGE_CREDENTIALS_FILE"`
	Endpoint        string        `env:"STORAGE_ENDPOINT"`
	DownloadBaseURL string        `env:"STORAGE_DOWNLOAD_BASE" envDefault:"https://firebasestorage.googleapis.com"`
	Anonymous       bool          `env:"STORAGE_ANONYMOUS" envDefault:"false"`
	UploadTimeout   time.Duration `env:"UPLOAD_TIMEOUT" envDefault:"2m"`
}

// DataConfig locates local state. Empty paths resolve under Dir.
type DataConfig struct {
	Dir           string `env:"TALKITOUT_DATA_DIR"`
	RecordingsDir string `env:"TALKITOUT_RECORDINGS_DIR"`
	SettingsPath  string `env:"TALKITOUT_SETTINGS_DB"`
}

// ReminderConfig schedules the daily journaling reminder (cron syntax, UTC).
// An empty schedule disables it.
type ReminderConfig struct {
	Schedule string `env:"TALKITOUT_REMINDER_SCHEDULE" envDefault:"0 20 * * *"`
}

// Load reads an optional .env from the working directory, then the process
// environment.
func Load() (Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with an explicit dotenv path. Variables already set in the
// environment win over the file.
func LoadFrom(dotenvPath string) (Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to read %s: %w", dotenvPath, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if _, err := cfg.SlogLevel(); err != nil {
		return Config{}, err
	}
	if err := cfg.resolveDataPaths(); err != nil {
		return Config{}, err
	}
	cfg.clamp()
	return cfg, nil
}

// SlogLevel parses LOG_LEVEL.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func (c *Config) resolveDataPaths() error {
	if c.Data.Dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return errors.New("could not determine config directory, set TALKITOUT_DATA_DIR")
		}
		c.Data.Dir = filepath.Join(base, "talkitout")
	}
	if c.Data.RecordingsDir == "" {
		c.Data.RecordingsDir = filepath.Join(c.Data.Dir, "recordings")
	}
	if c.Data.SettingsPath == "" {
		c.Data.SettingsPath = filepath.Join(c.Data.Dir, "settings.sqlite")
	}
	return nil
}

func (c *Config) clamp() {
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = defaultSampleRate
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = defaultChannels
	}
	if c.Session.ChunkSize < 256 {
		c.Session.ChunkSize = defaultChunkSize
	}
	if c.Session.StreamingGrace < 0 {
		c.Session.StreamingGrace = defaultStreamingGrace
	}
	if c.Session.StreamWait <= 0 {
		c.Session.StreamWait = defaultStreamWait
	}
	if c.Deepgram.KeepAlive <= 0 {
		c.Deepgram.KeepAlive = defaultKeepAlive
	}
	if c.OpenAI.Timeout <= 0 {
		c.OpenAI.Timeout = defaultClassifyTimeout
	}
	if c.Storage.UploadTimeout <= 0 {
		c.Storage.UploadTimeout = defaultUploadTimeout
	}
}
