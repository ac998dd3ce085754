package deepgram

import (
	"strings"

	"talkitout/internal/domain"
)

type alternative struct {
	Transcript string `json:"transcript"`
}

// message covers both live Results and the batch-style results envelope.
type message struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []alternative `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (m message) transcript() string {
	if len(m.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(m.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(m.Results.Channels) > 0 && len(m.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(m.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func (m message) event() (domain.TranscriptEvent, bool) {
	text := m.transcript()
	if text == "" {
		return domain.TranscriptEvent{}, false
	}
	kind := domain.TranscriptKindPartial
	if m.IsFinal || m.SpeechFinal {
		kind = domain.TranscriptKindFinal
	}
	return domain.TranscriptEvent{Kind: kind, Text: text, IsSpeechFinal: m.SpeechFinal}, true
}

func (m message) errorText() string {
	for _, text := range []string{m.Message, m.Description} {
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	return "deepgram returned an unknown error"
}
