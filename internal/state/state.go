package state

import (
	"maps"

	"github.com/Amund211/coursesync/internal/actions"
	"github.com/Amund211/coursesync/internal/domain"
)

// State maps entity kind to per-key slots. A State is never modified after it is built.
type State struct {
	slots map[domain.Kind]map[string]Slot
}

func Empty() State {
	return State{slots: map[domain.Kind]map[string]Slot{}}
}

// Slot returns the slot for key, Uninitialized if it was never written
func (s State) Slot(key actions.Key) Slot {
	return s.slots[key.Kind][key.ID]
}

// Kind returns a copy of all written slots of one kind, keyed by key id
func (s State) Kind(kind domain.Kind) map[string]Slot {
	return maps.Clone(s.slots[kind])
}

func (s State) Len() int {
	count := 0
	for _, byID := range s.slots {
		count += len(byID)
	}
	return count
}

// with returns a new State where key holds slot. Only the affected kind is copied.
func (s State) with(key actions.Key, slot Slot) State {
	outer := maps.Clone(s.slots)
	if outer == nil {
		outer = map[domain.Kind]map[string]Slot{}
	}
	inner := maps.Clone(outer[key.Kind])
	if inner == nil {
		inner = map[string]Slot{}
	}
	inner[key.ID] = slot
	outer[key.Kind] = inner
	return State{slots: outer}
}
