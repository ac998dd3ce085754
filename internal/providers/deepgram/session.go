package deepgram

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"talkitout/internal/domain"
)

var (
	closeStreamMessage = []byte(`{"type":"CloseStream"}`)
	keepAliveMessage   = []byte(`{"type":"KeepAlive"}`)
)

// liveSession owns one websocket. The write loop is the only writer; the read
// loop is the only reader.
type liveSession struct {
	conn      *websocket.Conn
	keepAlive time.Duration
	logger    *slog.Logger

	events   chan domain.TranscriptEvent
	audio    chan []byte
	readDone chan struct{}
	done     chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func newLiveSession(conn *websocket.Conn, keepAlive time.Duration, logger *slog.Logger) *liveSession {
	s := &liveSession{
		conn:      conn,
		keepAlive: keepAlive,
		logger:    logger,
		events:    make(chan domain.TranscriptEvent, 64),
		audio:     make(chan []byte, 32),
		readDone:  make(chan struct{}),
		done:      make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		close(s.events)
		close(s.done)
		_ = conn.Close()
	}()
	return s
}

func (s *liveSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errors.New("audio stream is already closed")
	}

	select {
	case <-s.readDone:
		return s.closedErr()
	default:
	}

	select {
	case s.audio <- append([]byte(nil), chunk...):
		return nil
	case <-s.readDone:
		return s.closedErr()
	}
}

func (s *liveSession) closedErr() error {
	if err := s.waitErr(); err != nil {
		return err
	}
	return errors.New("session closed")
}

// CloseSend flushes queued audio and asks Deepgram to finalize the stream.
func (s *liveSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *liveSession) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *liveSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *liveSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *liveSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *liveSession) setErr(err error) {
	if err == nil || isCleanClose(err) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// isCleanClose reports whether err, possibly wrapped, is an orderly websocket
// close.
func isCleanClose(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	switch closeErr.Code {
	case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
		return true
	default:
		return false
	}
}

func (s *liveSession) writeLoop() {
	defer s.wg.Done()

	var tick <-chan time.Time
	if s.keepAlive > 0 {
		ticker := time.NewTicker(s.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				if err := s.conn.WriteMessage(websocket.TextMessage, closeStreamMessage); err != nil {
					s.setErr(fmt.Errorf("failed to close stream: %w", err))
				}
				return
			}
			if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				s.setErr(fmt.Errorf("failed to send audio: %w", err))
				return
			}
		case <-tick:
			if err := s.conn.WriteMessage(websocket.TextMessage, keepAliveMessage); err != nil {
				s.setErr(fmt.Errorf("failed to send keepalive: %w", err))
				return
			}
		case <-s.readDone:
			return
		}
	}
}

func (s *liveSession) readLoop() {
	defer s.wg.Done()
	defer close(s.readDone)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read provider event: %w", err))
			return
		}

		var msg message
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Debug("ignoring malformed deepgram message", slog.Any("error", err))
			continue
		}

		if strings.EqualFold(msg.Type, "Error") {
			s.emit(domain.TranscriptEvent{Kind: domain.TranscriptKindFinal, IsSpeechFinal: true})
			s.setErr(errors.New(msg.errorText()))
			return
		}

		if event, ok := msg.event(); ok {
			s.emit(event)
		}
	}
}

func (s *liveSession) emit(event domain.TranscriptEvent) {
	select {
	case s.events <- event:
	default:
		s.logger.Warn("transcript event dropped, consumer is behind")
	}
}
