package ports

import (
	"context"
	"fmt"

	"github.com/Amund211/coursesync/internal/actions"
	"github.com/Amund211/coursesync/internal/domain"
	"github.com/Amund211/coursesync/internal/state"
)

// Runtime is the part of the app runtime the ports read from and dispatch to
type Runtime interface {
	Dispatch(action actions.Action) actions.Action
	State() state.State
	Subscribe(listener state.Listener) func()
	Fresh(key actions.Key) bool
}

type ViewStatus string

const (
	ViewUninitialized ViewStatus = "uninitialized"
	ViewLoaded        ViewStatus = "loaded"
	ViewFailed        ViewStatus = "failed"
	ViewDeleted       ViewStatus = "deleted"
	// ViewDenied means the caller may not see the slot. Nothing is fetched.
	ViewDenied ViewStatus = "denied"
)

// View is what a consumer sees of one cache slot
type View[T any] struct {
	Status ViewStatus
	Value  T
	Err    error
	// Stale is set on loaded values older than the freshness TTL
	Stale bool
	// Reload requests a new fetch of the slot
	Reload func()
}

func viewOf[T any](rt Runtime, kind domain.Kind, params actions.Params) View[T] {
	key := actions.KeyOf(kind, params)
	reload := func() {
		rt.Dispatch(actions.FetchRequested{Kind: kind, Params: params})
	}

	slot := rt.State().Slot(key)
	view := View[T]{Reload: reload}
	switch slot.Status() {
	case state.Loaded:
		value, ok := state.ValueAs[T](slot)
		if !ok {
			view.Status = ViewFailed
			view.Err = fmt.Errorf("slot %s does not hold a %T", key, view.Value)
			return view
		}
		view.Status = ViewLoaded
		view.Value = value
		view.Stale = !rt.Fresh(key)
	case state.Failed:
		view.Status = ViewFailed
		view.Err = slot.Err()
	case state.Deleted:
		view.Status = ViewDeleted
	default:
		view.Status = ViewUninitialized
	}
	return view
}

func denied[T any]() View[T] {
	return View[T]{
		Status: ViewDenied,
		Err:    domain.ErrForbidden,
		Reload: func() {},
	}
}

// Use returns the current view of the slot for kind and params.
// An uninitialized or stale slot gets a fetch dispatched; concurrent callers share it.
// A failed slot is only refetched through Reload.
func Use[T any](rt Runtime, kind domain.Kind, params actions.Params, allowed bool) View[T] {
	if !allowed {
		return denied[T]()
	}

	view := viewOf[T](rt, kind, params)
	if view.Status == ViewUninitialized || view.Stale {
		view.Reload()
	}
	return view
}

// Watch streams the view of the slot, starting with the current one, until ctx is done.
// Intermediate views may be skipped when the consumer is slow; the latest is always delivered.
func Watch[T any](ctx context.Context, rt Runtime, kind domain.Kind, params actions.Params, allowed bool) <-chan View[T] {
	out := make(chan View[T], 1)
	if !allowed {
		out <- denied[T]()
		close(out)
		return out
	}

	key := actions.KeyOf(kind, params)
	changed := make(chan struct{}, 1)
	unsubscribe := rt.Subscribe(func(action actions.Action, next state.State) {
		if target, ok := actions.TargetKey(action); !ok || target != key {
			return
		}
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	go func() {
		defer close(out)
		defer unsubscribe()

		view := Use[T](rt, kind, params, true)
		for {
			select {
			case out <- view:
			case <-ctx.Done():
				return
			}

			select {
			case <-changed:
				view = viewOf[T](rt, kind, params)
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
