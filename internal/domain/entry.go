package domain

import (
	"encoding/json"
	"time"
)

// EntryKind is the closed tag of a journal entry.
type EntryKind string

const (
	EntryKindAudio EntryKind = "audio"
	EntryKindText  EntryKind = "text"
)

// AudioEntry is the payload of a recorded entry.
type AudioEntry struct {
	Transcript string
	AudioURL   string
}

// TextEntry is the payload of a typed entry. Text is either the literal body
// or a storage locator fetched lazily.
type TextEntry struct {
	Title string
	Text  string
}

// Entry is a journal entry. Exactly one payload is set and it matches the
// kind; build entries with NewAudioEntry or NewTextEntry.
type Entry struct {
	ID   string
	Date time.Time

	kind  EntryKind
	audio *AudioEntry
	text  *TextEntry
}

func NewAudioEntry(id string, date time.Time, transcript string, audioURL string) Entry {
	return Entry{
		ID:    id,
		Date:  date,
		kind:  EntryKindAudio,
		audio: &AudioEntry{Transcript: transcript, AudioURL: audioURL},
	}
}

func NewTextEntry(id string, date time.Time, title string, text string) Entry {
	return Entry{
		ID:   id,
		Date: date,
		kind: EntryKindText,
		text: &TextEntry{Title: title, Text: text},
	}
}

// Kind is empty only for the zero Entry.
func (e Entry) Kind() EntryKind { return e.kind }

func (e Entry) Audio() (AudioEntry, bool) {
	if e.audio == nil {
		return AudioEntry{}, false
	}
	return *e.audio, true
}

func (e Entry) Text() (TextEntry, bool) {
	if e.text == nil {
		return TextEntry{}, false
	}
	return *e.text, true
}

// WithIdentity returns a copy of e carrying id and date.
func (e Entry) WithIdentity(id string, date time.Time) Entry {
	e.ID = id
	e.Date = date
	return e
}

type entryJSON struct {
	ID         string    `json:"id"`
	Date       time.Time `json:"date"`
	Type       EntryKind `json:"type"`
	Title      *string   `json:"title,omitempty"`
	Transcript *string   `json:"transcript,omitempty"`
	AudioURL   *string   `json:"audioURL,omitempty"`
	Text       *string   `json:"text,omitempty"`
}

// MarshalJSON flattens the entry into the record shape the views consume.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := entryJSON{ID: e.ID, Date: e.Date, Type: e.kind}
	if a, ok := e.Audio(); ok {
		out.Transcript = &a.Transcript
		out.AudioURL = &a.AudioURL
	}
	if t, ok := e.Text(); ok {
		if t.Title != "" {
			out.Title = &t.Title
		}
		out.Text = &t.Text
	}
	return json.Marshal(out)
}
