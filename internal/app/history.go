package app

import (
	"sort"

	"github.com/irfansharif/collage/internal/render"
	"github.com/irfansharif/collage/internal/template"
)

// EntryID identifies a rendered composition within a session.
type EntryID int

// Entry is one rendered composition. Key and Seed reproduce it exactly.
type Entry struct {
	ID      EntryID
	Key     string
	Seed    int64
	Params  template.Params
	Outcome render.Outcome
	// Liked is nil until feedback is given.
	Liked *bool
}

// History keeps the compositions rendered this session, in creation order,
// and a cursor for stepping through them.
type History struct {
	entries     map[EntryID]*Entry
	currentID   EntryID
	currentSeed int64
	nextID      EntryID
}

// NewHistory returns an empty history whose seeds start after seed.
func NewHistory(seed int64) *History {
	return &History{
		entries:     make(map[EntryID]*Entry),
		currentID:   -1,
		currentSeed: seed,
	}
}

// Add records a composition and makes it current.
func (h *History) Add(key string, seed int64, res render.Result) *Entry {
	e := &Entry{
		ID:      h.nextID,
		Key:     key,
		Seed:    seed,
		Params:  res.Params,
		Outcome: res.Outcome,
	}
	h.entries[e.ID] = e
	h.currentID = e.ID
	h.nextID++
	return e
}

// Get returns the entry with id.
func (h *History) Get(id EntryID) (*Entry, bool) {
	e, ok := h.entries[id]
	return e, ok
}

// Current returns the current entry, or nil.
func (h *History) Current() *Entry {
	return h.entries[h.currentID]
}

// Len returns the number of entries.
func (h *History) Len() int { return len(h.entries) }

// Entries returns every entry sorted by ID (ascending).
func (h *History) Entries() []*Entry {
	entries := make([]*Entry, 0, len(h.entries))
	for _, e := range h.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// Remove drops an entry.
func (h *History) Remove(id EntryID) bool {
	if _, ok := h.entries[id]; ok {
		delete(h.entries, id)
		return true
	}
	return false
}

// IncrementSeed increments the seed by 1 and returns it.
func (h *History) IncrementSeed() int64 {
	h.currentSeed++
	return h.currentSeed
}

// Iter moves the cursor to the next or previous entry, wrapping around, and
// returns it. It returns nil for an empty history.
func (h *History) Iter(next bool) *Entry {
	if len(h.entries) == 0 {
		h.currentID = -1
		return nil
	}

	direction := 1
	if !next {
		direction = -1
	}

	entries := h.Entries()
	pos := -1
	for i, e := range entries {
		if e.ID == h.currentID {
			pos = i
			break
		}
	}
	if pos == -1 {
		// No current entry (or it was removed): start from an end.
		if next {
			pos = len(entries) - 1
		} else {
			pos = 0
		}
	}

	e := entries[(pos+direction+len(entries))%len(entries)]
	h.currentID = e.ID
	return e
}
