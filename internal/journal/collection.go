// Package journal holds the in-memory entry collection observed by the views.
package journal

import (
	"errors"
	"sync"

	"github.com/samber/lo"

	"talkitout/internal/domain"
)

var (
	ErrEntryNotFound = errors.New("journal entry not found")
	ErrKindMismatch  = errors.New("journal entry type cannot change")
)

// ChangeOp names a collection mutation.
type ChangeOp string

const (
	ChangeAppended  ChangeOp = "appended"
	ChangePrepended ChangeOp = "prepended"
	ChangeReplaced  ChangeOp = "replaced"
)

// Change is published to subscribers after every mutation.
type Change struct {
	Op    ChangeOp     `json:"op"`
	Entry domain.Entry `json:"entry"`
}

// Collection is an ordered list of entries, newest last. It is safe for
// concurrent use; subscribers are called outside the lock.
type Collection struct {
	mu      sync.RWMutex
	entries []domain.Entry

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Change)
}

func NewCollection() *Collection {
	return &Collection{subs: make(map[int]func(Change))}
}

func (c *Collection) Append(entry domain.Entry) {
	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()

	c.publish(Change{Op: ChangeAppended, Entry: entry})
}

func (c *Collection) Prepend(entry domain.Entry) {
	c.mu.Lock()
	c.entries = append([]domain.Entry{entry}, c.entries...)
	c.mu.Unlock()

	c.publish(Change{Op: ChangePrepended, Entry: entry})
}

// Replace swaps the entry with the given id for entry, keeping the original
// id and date. The entry type cannot change.
func (c *Collection) Replace(id string, entry domain.Entry) (domain.Entry, error) {
	c.mu.Lock()
	existing, index, ok := lo.FindIndexOf(c.entries, func(e domain.Entry) bool { return e.ID == id })
	if !ok {
		c.mu.Unlock()
		return domain.Entry{}, ErrEntryNotFound
	}
	if existing.Kind() != entry.Kind() {
		c.mu.Unlock()
		return domain.Entry{}, ErrKindMismatch
	}
	replaced := entry.WithIdentity(existing.ID, existing.Date)
	c.entries[index] = replaced
	c.mu.Unlock()

	c.publish(Change{Op: ChangeReplaced, Entry: replaced})
	return replaced, nil
}

func (c *Collection) Get(id string) (domain.Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lo.Find(c.entries, func(e domain.Entry) bool { return e.ID == id })
}

// All returns a snapshot in collection order.
func (c *Collection) All() []domain.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// OfKind returns a snapshot filtered by entry type.
func (c *Collection) OfKind(kind domain.EntryKind) []domain.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lo.Filter(c.entries, func(e domain.Entry, _ int) bool { return e.Kind() == kind })
}

// Latest returns the most recently dated entry.
func (c *Collection) Latest() (domain.Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.entries) == 0 {
		return domain.Entry{}, false
	}
	return lo.MaxBy(c.entries, func(a, b domain.Entry) bool { return a.Date.After(b.Date) }), true
}

// Subscribe registers fn for change notifications and returns a cancel func.
func (c *Collection) Subscribe(fn func(Change)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Collection) publish(change Change) {
	c.subMu.Lock()
	subs := lo.Values(c.subs)
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(change)
	}
}
