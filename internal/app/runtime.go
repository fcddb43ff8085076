package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Amund211/coursesync/internal/actions"
	"github.com/Amund211/coursesync/internal/adapters/credentials"
	"github.com/Amund211/coursesync/internal/effects"
	"github.com/Amund211/coursesync/internal/gate"
	"github.com/Amund211/coursesync/internal/lanes"
	"github.com/Amund211/coursesync/internal/logging"
	"github.com/Amund211/coursesync/internal/reporting"
	"github.com/Amund211/coursesync/internal/resources"
	"github.com/Amund211/coursesync/internal/state"
	"github.com/jellydator/ttlcache/v3"
)

// Runtime owns the entity store and everything that feeds it.
//
// Dispatch stamps each action with the next sequence number, reduces it into the store and
// then hands requests to their coordinator. Fetches wait behind the login gate; deletes and
// mutations go straight to their coordinators and fail with ErrUnauthenticated when logged out.
type Runtime struct {
	ctx      context.Context
	registry *resources.Registry
	store    *state.Store
	holder   *credentials.Holder

	loginGate *gate.Gate[actions.FetchRequested]
	fetches   *lanes.Coordinator[actions.FetchRequested]
	deletes   *lanes.Coordinator[actions.DeleteRequested]
	mutations *lanes.Coordinator[actions.MutateRequested]

	freshnessTTL time.Duration
	freshness    *ttlcache.Cache[actions.Key, uint64]

	seq atomic.Uint64
}

// NewRuntime wires a runtime on top of the platform API.
// Effects run with a context derived from ctx, detached from its cancellation.
func NewRuntime(ctx context.Context, api effects.API, holder *credentials.Holder, registry *resources.Registry, freshnessTTL time.Duration) (*Runtime, error) {
	rt := &Runtime{
		ctx:          reporting.Detach(ctx),
		registry:     registry,
		store:        state.NewStore(state.NewReducer(registry)),
		holder:       holder,
		freshnessTTL: freshnessTTL,
		freshness: ttlcache.New[actions.Key, uint64](
			ttlcache.WithTTL[actions.Key, uint64](freshnessTTL),
			ttlcache.WithDisableTouchOnHit[actions.Key, uint64](),
		),
	}

	workers, err := effects.NewWorkers(api, registry, func(action actions.Action) {
		rt.Dispatch(action)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create workers: %w", err)
	}

	rt.fetches, err = lanes.New("fetch", lanes.Leading, func(a actions.FetchRequested) string {
		return a.Key().String()
	}, workers.Fetch)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch coordinator: %w", err)
	}

	rt.deletes, err = lanes.New("delete", lanes.Leading, func(a actions.DeleteRequested) string {
		return a.LaneKey().String()
	}, workers.Delete)
	if err != nil {
		return nil, fmt.Errorf("failed to create delete coordinator: %w", err)
	}

	rt.mutations, err = lanes.New("mutate", lanes.Serial, rt.mutationLaneKey, workers.Mutate)
	if err != nil {
		return nil, fmt.Errorf("failed to create mutation coordinator: %w", err)
	}

	rt.loginGate = gate.New(func(a actions.FetchRequested) string {
		return a.Key().String()
	}, func(a actions.FetchRequested) {
		rt.fetches.Route(rt.ctx, a)
	})

	go rt.freshness.Start()

	return rt, nil
}

// mutationLaneKey serializes every mutation touching the same slot
func (rt *Runtime) mutationLaneKey(a actions.MutateRequested) string {
	resource, ok := rt.registry.Lookup(a.Kind)
	if !ok {
		return actions.KeyOf(a.Kind, a.Params).String()
	}
	return resource.SlotKey(a.Params).String()
}

// Dispatch applies the action to the store and routes it. Returns the stamped action.
func (rt *Runtime) Dispatch(action actions.Action) actions.Action {
	stamped := actions.Stamp(action, rt.seq.Add(1))
	rt.store.DispatchWith(stamped, func(next state.State) {
		// Subscribers reading the new slot must already see it as fresh
		if a, ok := stamped.(actions.Fetched); ok && !a.Failed() && next.Slot(a.Key()).Seq() == a.RequestSeq {
			rt.freshness.Set(a.Key(), a.RequestSeq, ttlcache.DefaultTTL)
		}
	})

	switch a := stamped.(type) {
	case actions.FetchRequested:
		if !rt.loginGate.Submit(a) {
			logging.FromContext(rt.ctx).DebugContext(rt.ctx, "Holding fetch until login", "key", a.Key().String())
		}
	case actions.DeleteRequested:
		rt.deletes.Route(rt.ctx, a)
	case actions.MutateRequested:
		rt.mutations.Route(rt.ctx, a)
	case actions.LoginSucceeded:
		rt.holder.Set(a.Credentials)
		rt.loginGate.Open()
	case actions.LoggedOut:
		rt.holder.Clear()
		rt.loginGate.Close()
	}

	return stamped
}

func (rt *Runtime) State() state.State {
	return rt.store.State()
}

func (rt *Runtime) Subscribe(listener state.Listener) func() {
	return rt.store.Subscribe(listener)
}

func (rt *Runtime) Registry() *resources.Registry {
	return rt.registry
}

// Fresh reports whether the slot was loaded within the freshness TTL
func (rt *Runtime) Fresh(key actions.Key) bool {
	return rt.freshness.Has(key)
}

func (rt *Runtime) LoggedIn() bool {
	return rt.loginGate.IsOpen()
}

// WaitForLogin blocks until the user is logged in or ctx is done
func (rt *Runtime) WaitForLogin(ctx context.Context) error {
	return rt.loginGate.Wait(ctx)
}

// Wait blocks until no effect is running
func (rt *Runtime) Wait() {
	for {
		rt.fetches.Wait()
		rt.deletes.Wait()
		rt.mutations.Wait()
		if rt.fetches.Active() == 0 && rt.deletes.Active() == 0 && rt.mutations.Active() == 0 {
			return
		}
	}
}

// Close stops background tasks and waits for running effects
func (rt *Runtime) Close() {
	rt.freshness.Stop()
	rt.Wait()
}
