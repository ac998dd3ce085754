package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"talkitout/internal/domain"
	"talkitout/internal/ports"
)

// recording is one capture from Start until Stop or Abort. The encoded file at
// localPath is written by the capture itself; PCM read from audio is
// forwarded to stream while one is attached.
type recording struct {
	id        uint64
	localPath string
	startedAt time.Time

	cancel func()
	audio  ports.AudioSession
	// stream is nil when live transcription failed to start.
	stream ports.StreamingSession

	stateMu sync.Mutex
	state   domain.SessionState

	aggregator *transcriptAggregator
	captured   atomic.Int64
	eventsDone chan struct{}
	audioDone  chan struct{}
}

func newRecording(id uint64, localPath string, startedAt time.Time, cancel func(), audio ports.AudioSession, stream ports.StreamingSession) *recording {
	return &recording{
		id:         id,
		localPath:  localPath,
		startedAt:  startedAt,
		cancel:     cancel,
		audio:      audio,
		stream:     stream,
		state:      domain.SessionStateRecording,
		aggregator: newTranscriptAggregator(),
		eventsDone: make(chan struct{}),
		audioDone:  make(chan struct{}),
	}
}

// run starts the transcript consumer and the audio pump.
func (r *recording) run(chunkSize int, live func(string), events ports.EventSink) {
	if r.stream != nil {
		go consumeTranscriptionEvents(r.stream, r.aggregator, live, r.eventsDone)
	} else {
		close(r.eventsDone)
	}
	go r.pump(chunkSize, events)
}

func (r *recording) live() bool { return r.stream != nil }

// pump forwards PCM chunks until the capture ends. Capture keeps being drained
// after a send failure or without a stream so the encoder never blocks on a
// full pipe.
func (r *recording) pump(chunkSize int, events ports.EventSink) {
	defer close(r.audioDone)

	if chunkSize < 256 {
		chunkSize = defaultChunkSize
	}

	stream := r.stream
	buf := make([]byte, chunkSize)
	for {
		n, err := r.audio.Read(buf)
		if n > 0 {
			r.captured.Add(int64(n))
			if stream != nil {
				if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
					events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("failed to stream audio: %v", sendErr))
					stream = nil
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", err))
			}
			return
		}
	}
}

// drain stops capture and lets the provider flush final results, waiting up
// to grace before closing the send side and then up to wait for the stream to
// end.
func (r *recording) drain(ctx context.Context, grace, wait time.Duration) (stopErr error, streamErr error) {
	stopErr = r.audio.Stop()

	if r.stream != nil {
		if grace > 0 {
			timer := time.NewTimer(grace)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
			}
		}
		_ = r.stream.CloseSend()
		streamErr = waitForStream(r.stream, wait)
	}

	r.wait()
	return stopErr, streamErr
}

// halt tears the recording down without waiting for final results.
func (r *recording) halt() {
	r.cancel()
	_ = r.audio.Stop()
	if r.stream != nil {
		_ = r.stream.Close()
	}
	r.wait()
}

func (r *recording) wait() {
	<-r.eventsDone
	<-r.audioDone
}

// discard removes the local file. A recording that was never written is not
// an error.
func (r *recording) discard() error {
	if err := os.Remove(r.localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (r *recording) setState(state domain.SessionState) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.state = state
}

// transition moves the recording to "to" only if it is in "from". The caller
// that wins the transition owns the teardown.
func (r *recording) transition(from, to domain.SessionState) bool {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	if r.state != from {
		return false
	}
	r.state = to
	return true
}

func (r *recording) getState() domain.SessionState {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.state
}

func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		_ = session.Close()
		return <-done
	}
}
