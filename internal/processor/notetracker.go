package processor

import (
	"slices"

	"gitlab.com/gomidi/midi/v2"
)

// Key identifies a note on a channel.
type Key struct {
	Ch, Note uint8
}

func compareKeys(a, b Key) int {
	if a.Ch != b.Ch {
		return int(a.Ch) - int(b.Ch)
	}
	return int(a.Note) - int(b.Note)
}

// NoteTracker keeps track of which notes are sounding.
type NoteTracker struct {
	refcounting bool
	activeNotes map[Key]int
}

// NewNoteTracker returns an empty tracker. With refcounting, a note started
// twice needs to be ended twice.
func NewNoteTracker(refcounting bool) *NoteTracker {
	return &NoteTracker{
		refcounting: refcounting,
		activeNotes: map[Key]int{},
	}
}

// Playing returns whether any note is sounding.
func (t *NoteTracker) Playing() bool {
	return len(t.activeNotes) > 0
}

// Handle updates the tracker. It returns false if the message did not change
// whether its note is sounding.
func (t *NoteTracker) Handle(msg midi.Message) bool {
	var ch, note, velocity uint8
	if msg.GetNoteStart(&ch, &note, &velocity) {
		k := Key{ch, note}
		result := t.activeNotes[k] == 0
		if t.refcounting {
			t.activeNotes[k]++
		} else {
			t.activeNotes[k] = 1
		}
		return result
	}
	if msg.GetNoteEnd(&ch, &note) {
		k := Key{ch, note}
		result := t.activeNotes[k] == 1
		if t.refcounting {
			if t.activeNotes[k] > 0 {
				t.activeNotes[k]--
				if t.activeNotes[k] == 0 {
					delete(t.activeNotes, k)
				}
			}
		} else {
			delete(t.activeNotes, k)
		}
		return result
	}
	return true
}

// Notes returns the sounding notes ordered by channel and note.
func (t *NoteTracker) Notes() []Key {
	keys := make([]Key, 0, len(t.activeNotes))
	for k := range t.activeNotes {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// Reset forgets all sounding notes.
func (t *NoteTracker) Reset() {
	clear(t.activeNotes)
}
