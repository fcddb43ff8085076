package state

import (
	"github.com/Amund211/coursesync/internal/actions"
	"github.com/Amund211/coursesync/internal/domain"
	"github.com/Amund211/coursesync/internal/resources"
)

type Reducer func(State, actions.Action) State

type ResourceResolver interface {
	Lookup(kind domain.Kind) (resources.Resource, bool)
}

// NewReducer builds the pure reducer for the entity store.
//
// Fetched completions are stamped with the sequence number of their request. A completion
// whose request is older than the last write to the slot is dropped, so a slow response
// can not overwrite a newer local update. Applying the same Fetched twice is a no-op the
// second time. Revoked and Deleted are applied relative to the current value and are not
// idempotent.
func NewReducer(resolver ResourceResolver) Reducer {
	return func(s State, action actions.Action) State {
		switch a := action.(type) {
		case actions.Fetched:
			return reduceFetched(s, a)
		case actions.Revoked:
			return reduceRevoked(s, resolver, a)
		case actions.Deleted:
			return reduceDeleted(s, resolver, a)
		default:
			return s
		}
	}
}

func reduceFetched(s State, a actions.Fetched) State {
	key := a.Key()
	current := s.Slot(key)
	if a.RequestSeq < current.seq {
		return s
	}

	if a.Err != nil {
		return s.with(key, FailedSlot(a.Err, a.RequestSeq))
	}
	return s.with(key, LoadedSlot(a.Value, a.RequestSeq))
}

func reduceRevoked(s State, resolver ResourceResolver, a actions.Revoked) State {
	current := s.Slot(a.Key)
	if current.status != Loaded {
		// Nothing to merge into. The next fetch brings the full value.
		return s
	}

	resource, ok := resolver.Lookup(a.Key.Kind)
	if !ok {
		return s
	}

	merged, err := resource.Merge(current.value, a.ItemID, a.Patch)
	if err != nil {
		return s
	}
	return s.with(a.Key, LoadedSlot(merged, a.Seq))
}

func reduceDeleted(s State, resolver ResourceResolver, a actions.Deleted) State {
	current := s.Slot(a.Key)

	resource, ok := resolver.Lookup(a.Key.Kind)
	if !ok {
		return s
	}

	if !resource.Collection() {
		return s.with(a.Key, DeletedSlot(a.Seq))
	}

	if current.status != Loaded {
		return s
	}
	remaining, removed := resource.Remove(current.value, a.ItemID)
	if !removed {
		return s
	}
	return s.with(a.Key, LoadedSlot(remaining, a.Seq))
}
