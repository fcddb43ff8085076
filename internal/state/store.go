package state

import (
	"sync"

	"github.com/Amund211/coursesync/internal/actions"
)

// Listener is called after every dispatched action with the resulting state
type Listener func(action actions.Action, next State)

// Store holds the current State. Actions are reduced one at a time in dispatch order.
type Store struct {
	reducer Reducer

	mu        sync.Mutex
	state     State
	listeners map[int]Listener
	nextID    int
}

func NewStore(reducer Reducer) *Store {
	return &Store{
		reducer:   reducer,
		state:     Empty(),
		listeners: map[int]Listener{},
	}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch reduces the action and notifies listeners while holding the store lock.
// Listeners must not dispatch synchronously.
func (s *Store) Dispatch(action actions.Action) State {
	return s.DispatchWith(action, nil)
}

// DispatchWith is Dispatch with a hook that sees the reduced state before any listener.
// applied runs under the store lock and must not dispatch.
func (s *Store) DispatchWith(action actions.Action, applied func(next State)) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = s.reducer(s.state, action)
	if applied != nil {
		applied(s.state)
	}
	for _, listener := range s.listeners {
		listener(action, s.state)
	}
	return s.state
}

// Subscribe registers a listener and returns a function removing it
func (s *Store) Subscribe(listener Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = listener

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
