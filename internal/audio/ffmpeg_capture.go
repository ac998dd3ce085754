// Package audio records the microphone with ffmpeg, writing an encoded file
// while streaming raw PCM for live transcription.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"talkitout/internal/ports"
)

const (
	defaultSampleRate  = 16000
	defaultChannels    = 1
	defaultInputFormat = "pulse"
	defaultInputDevice = "default"

	startupProbe = 250 * time.Millisecond
	stopGrace    = 1500 * time.Millisecond
)

// FFMPEGCapture implements ports.AudioCapture with an ffmpeg subprocess.
type FFMPEGCapture struct {
	command string
	logger  *slog.Logger
}

func NewFFMPEGCapture(command string, logger *slog.Logger) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFMPEGCapture{command: command, logger: logger}
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cfg = withCaptureDefaults(cfg)
	if cfg.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create recording dir: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, c.command, captureArgs(cfg)...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
		close(exited)
	}()

	select {
	case err := <-exited:
		detail := strings.TrimSpace(stderr.String())
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, detail)
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(startupProbe):
	}

	c.logger.Debug("audio capture started",
		slog.Int("pid", cmd.Process.Pid),
		slog.String("output", cfg.OutputPath),
		slog.Int("sample_rate", cfg.SampleRate),
	)

	return &captureSession{
		pcm:     stdout,
		stderr:  stderr,
		process: cmd.Process,
		exited:  exited,
		logger:  c.logger,
	}, nil
}

func withCaptureDefaults(cfg ports.AudioConfig) ports.AudioConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = defaultChannels
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = defaultInputFormat
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = defaultInputDevice
	}
	return cfg
}

// captureArgs maps one input onto an optional AAC file output and a PCM
// stdout output.
func captureArgs(cfg ports.AudioConfig) []string {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
	}
	if cfg.OutputPath != "" {
		args = append(args,
			"-map", "0:a",
			"-c:a", "aac",
			"-y", cfg.OutputPath,
		)
	}
	return append(args,
		"-map", "0:a",
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	)
}

type captureSession struct {
	pcm    io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	exited  <-chan error
	logger  *slog.Logger

	stopOnce sync.Once
	stopErr  error
}

func (s *captureSession) Read(p []byte) (int, error) {
	return s.pcm.Read(p)
}

func (s *captureSession) Close() error {
	return s.Stop()
}

// Stop interrupts ffmpeg so it finalizes the output file, killing it if it
// has not exited within the grace period.
func (s *captureSession) Stop() error {
	s.stopOnce.Do(func() {
		_ = s.process.Signal(os.Interrupt)

		var err error
		select {
		case err = <-s.exited:
		case <-time.After(stopGrace):
			s.logger.Warn("ffmpeg did not exit after interrupt, killing", slog.Int("pid", s.process.Pid))
			_ = s.process.Kill()
			err = <-s.exited
		}
		s.stopErr = ignoreExitStatus(err)

		if closeErr := s.pcm.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = closeErr
		}
		if s.stopErr != nil {
			if detail := strings.TrimSpace(s.stderr.String()); detail != "" {
				s.stopErr = fmt.Errorf("%w: %s", s.stopErr, detail)
			}
		}
	})
	return s.stopErr
}

// ignoreExitStatus drops non-zero exit codes; ffmpeg exits 255 on interrupt.
func ignoreExitStatus(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
