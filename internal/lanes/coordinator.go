package lanes

import (
	"context"
	"fmt"
	"sync"

	"github.com/Amund211/coursesync/internal/logging"
	"github.com/Amund211/coursesync/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Policy decides what happens to an action whose lane is busy
type Policy int

const (
	// Leading drops the action. Used for idempotent fetches and deletes.
	Leading Policy = iota
	// Latest keeps only the newest waiting action and runs it after the current one
	Latest
	// Serial queues every action and runs them in arrival order
	Serial
)

func (p Policy) String() string {
	switch p {
	case Leading:
		return "leading"
	case Latest:
		return "latest"
	case Serial:
		return "serial"
	}
	return "unknown"
}

type Outcome int

const (
	// Started means the lane was idle and the effect is now running
	Started Outcome = iota
	// Queued means the action will run once the lane is free
	Queued
	// Coalesced means the action was absorbed by the effect already in flight
	Coalesced
)

func (o Outcome) String() string {
	switch o {
	case Started:
		return "started"
	case Queued:
		return "queued"
	case Coalesced:
		return "coalesced"
	}
	return "unknown"
}

type lanesMetricsCollection struct {
	routed metric.Int64Counter
	panics metric.Int64Counter
}

func setupLanesMetrics(meter metric.Meter) (lanesMetricsCollection, error) {
	routed, err := meter.Int64Counter(
		"lanes/routed_count",
		metric.WithDescription("Actions routed to a lane, by outcome"),
	)
	if err != nil {
		return lanesMetricsCollection{}, fmt.Errorf("failed to create routed count metric: %w", err)
	}

	panics, err := meter.Int64Counter(
		"lanes/effect_panic_count",
		metric.WithDescription("Effects that panicked inside a lane"),
	)
	if err != nil {
		return lanesMetricsCollection{}, fmt.Errorf("failed to create panic count metric: %w", err)
	}

	return lanesMetricsCollection{
		routed: routed,
		panics: panics,
	}, nil
}

// lane is the busy state of one key. An idle key has no lane.
type lane[A any] struct {
	pending []A
}

// Coordinator runs at most one effect per key at a time. Different keys run concurrently.
type Coordinator[A any] struct {
	name   string
	policy Policy
	keyOf  func(A) string
	effect func(ctx context.Context, action A)

	mu      sync.Mutex
	lanes   map[string]*lane[A]
	drained *sync.Cond

	metrics lanesMetricsCollection
}

func New[A any](name string, policy Policy, keyOf func(A) string, effect func(ctx context.Context, action A)) (*Coordinator[A], error) {
	metrics, err := setupLanesMetrics(otel.Meter("coursesync/lanes"))
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	c := &Coordinator[A]{
		name:    name,
		policy:  policy,
		keyOf:   keyOf,
		effect:  effect,
		lanes:   make(map[string]*lane[A]),
		metrics: metrics,
	}
	c.drained = sync.NewCond(&c.mu)
	return c, nil
}

// Route hands the action to the lane for its key, creating the lane if the key is idle.
// Route never blocks on the effect.
func (c *Coordinator[A]) Route(ctx context.Context, action A) Outcome {
	key := c.keyOf(action)
	outcome := c.claim(key, action)

	c.metrics.routed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("coordinator", c.name),
		attribute.String("outcome", outcome.String()),
	))

	switch outcome {
	case Started:
		go c.drain(ctx, key, action)
	case Coalesced:
		logging.FromContext(ctx).DebugContext(ctx, "Coalesced action into in-flight effect", "coordinator", c.name, "key", key)
	}

	return outcome
}

func (c *Coordinator[A]) claim(key string, action A) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, busy := c.lanes[key]
	if !busy {
		c.lanes[key] = &lane[A]{}
		return Started
	}

	switch c.policy {
	case Latest:
		l.pending = []A{action}
		return Queued
	case Serial:
		l.pending = append(l.pending, action)
		return Queued
	default:
		return Coalesced
	}
}

func (c *Coordinator[A]) drain(ctx context.Context, key string, action A) {
	for {
		c.execute(ctx, key, action)

		next, ok := c.next(key)
		if !ok {
			return
		}
		action = next
	}
}

// next pops the next pending action, or releases the lane when there is none
func (c *Coordinator[A]) next(key string) (A, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	l := c.lanes[key]
	if len(l.pending) == 0 {
		delete(c.lanes, key)
		if len(c.lanes) == 0 {
			c.drained.Broadcast()
		}
		var empty A
		return empty, false
	}

	action := l.pending[0]
	l.pending = l.pending[1:]
	return action, true
}

func (c *Coordinator[A]) execute(ctx context.Context, key string, action A) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("effect panicked: %v", r)
			c.metrics.panics.Add(ctx, 1, metric.WithAttributes(attribute.String("coordinator", c.name)))
			reporting.Report(ctx, err, map[string]string{
				"coordinator": c.name,
				"key":         key,
			})
		}
	}()

	c.effect(ctx, action)
}

// Active returns the number of busy keys
func (c *Coordinator[A]) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lanes)
}

// Wait blocks until every lane has drained
func (c *Coordinator[A]) Wait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.lanes) > 0 {
		c.drained.Wait()
	}
}
