package usecase

import (
	"strings"
	"sync"

	"talkitout/internal/domain"
	"talkitout/internal/ports"
)

// transcriptAggregator folds provider events into the session transcript.
// Partials are per utterance: each one replaces the pending text until a
// final settles it.
type transcriptAggregator struct {
	mu      sync.Mutex
	settled []string
	pending string
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

// Add folds event in and reports whether the transcript changed.
func (a *transcriptAggregator) Add(event domain.TranscriptEvent) bool {
	text := strings.TrimSpace(event.Text)
	if text == "" {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if event.Kind == domain.TranscriptKindFinal {
		a.settled = append(a.settled, text)
		a.pending = ""
		return true
	}
	if text == a.pending {
		return false
	}
	a.pending = text
	return true
}

// Text is the settled utterances followed by the pending one.
func (a *transcriptAggregator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	parts := a.settled
	if a.pending != "" {
		parts = append(parts[:len(parts):len(parts)], a.pending)
	}
	return strings.Join(parts, " ")
}

func (a *transcriptAggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settled = nil
	a.pending = ""
}

// consumeTranscriptionEvents feeds the aggregator and hands every updated
// transcript to live.
func consumeTranscriptionEvents(
	session ports.StreamingSession,
	aggregator *transcriptAggregator,
	live func(text string),
	done chan struct{},
) {
	defer close(done)

	for event := range session.Events() {
		if aggregator.Add(event) {
			live(aggregator.Text())
		}
	}
}
