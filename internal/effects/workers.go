package effects

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Amund211/coursesync/internal/actions"
	"github.com/Amund211/coursesync/internal/domain"
	"github.com/Amund211/coursesync/internal/logging"
	"github.com/Amund211/coursesync/internal/reporting"
	"github.com/Amund211/coursesync/internal/resources"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// API is the platform API as seen by the workers
type API interface {
	Get(ctx context.Context, path string, query url.Values) ([]byte, error)
	Delete(ctx context.Context, path string) error
	Send(ctx context.Context, method, path string, body []byte) ([]byte, error)
}

type ResourceResolver interface {
	Lookup(kind domain.Kind) (resources.Resource, bool)
}

type workersMetricsCollection struct {
	completed metric.Int64Counter
}

func setupWorkersMetrics(meter metric.Meter) (workersMetricsCollection, error) {
	completed, err := meter.Int64Counter(
		"effects/completed_count",
		metric.WithDescription("Effects completed, by worker and outcome"),
	)
	if err != nil {
		return workersMetricsCollection{}, fmt.Errorf("failed to create completed count metric: %w", err)
	}
	return workersMetricsCollection{completed: completed}, nil
}

// Workers perform the side effects behind fetch, delete and mutate requests.
// Every failure is turned into a value; nothing escapes as a panic.
type Workers struct {
	api      API
	resolver ResourceResolver
	dispatch func(actions.Action)

	tracer  trace.Tracer
	metrics workersMetricsCollection
}

func NewWorkers(api API, resolver ResourceResolver, dispatch func(actions.Action)) (*Workers, error) {
	const name = "coursesync/internal/effects"

	metrics, err := setupWorkersMetrics(otel.Meter(name))
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &Workers{
		api:      api,
		resolver: resolver,
		dispatch: dispatch,
		tracer:   otel.Tracer(name),
		metrics:  metrics,
	}, nil
}

func (w *Workers) lookup(kind domain.Kind) (resources.Resource, error) {
	resource, ok := w.resolver.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: no resource for kind %s", domain.ErrInvalidParams, kind)
	}
	return resource, nil
}

func (w *Workers) record(ctx context.Context, worker string, kind domain.Kind, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	w.metrics.completed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("worker", worker),
		attribute.String("kind", string(kind)),
		attribute.String("outcome", outcome),
	))
}

// recovered turns a panic into an error and reports it
func recovered(ctx context.Context, r any, worker string) error {
	err := fmt.Errorf("%s worker panicked: %v", worker, r)
	reporting.Report(ctx, err)
	return err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Fetch loads the slot addressed by req and dispatches exactly one Fetched completion
func (w *Workers) Fetch(ctx context.Context, req actions.FetchRequested) {
	ctx, span := w.tracer.Start(ctx, "Workers.Fetch", trace.WithAttributes(
		attribute.String("kind", string(req.Kind)),
		attribute.String("key", req.Key().String()),
	))
	ctx = reporting.AddSlotToContext(ctx, string(req.Kind), req.Key().String())

	var value any
	var err error
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, recovered(ctx, r, "fetch")
		}
		endSpan(span, err)
		w.record(ctx, "fetch", req.Kind, err)
		w.dispatch(actions.Completed(req, value, err))
	}()

	value, err = w.fetch(ctx, req)
	if err != nil {
		logging.FromContext(ctx).InfoContext(ctx, "Fetch failed", "key", req.Key().String(), "error", err.Error())
	}
}

func (w *Workers) fetch(ctx context.Context, req actions.FetchRequested) (any, error) {
	resource, err := w.lookup(req.Kind)
	if err != nil {
		return nil, err
	}

	path, query, err := resource.FetchPath(req.Params)
	if err != nil {
		return nil, err
	}

	data, err := w.api.Get(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", req.Kind, err)
	}

	value, err := resource.Decode(data)
	if err != nil {
		err := fmt.Errorf("failed to decode %s: %w", req.Kind, err)
		reporting.Report(ctx, err, map[string]string{"kind": string(req.Kind)})
		return nil, err
	}
	return value, nil
}

// Delete removes the item addressed by req.
// On success the delete callback runs, then Deleted is dispatched. On failure only the error callback runs.
func (w *Workers) Delete(ctx context.Context, req actions.DeleteRequested) {
	ctx, span := w.tracer.Start(ctx, "Workers.Delete", trace.WithAttributes(
		attribute.String("kind", string(req.Kind)),
		attribute.String("key", req.LaneKey().String()),
	))
	ctx = reporting.AddSlotToContext(ctx, string(req.Kind), req.LaneKey().String())

	var ids []string
	var err error
	deleted := false
	defer func() {
		if r := recover(); r != nil {
			err = recovered(ctx, r, "delete")
			if !deleted && req.OnError != nil {
				req.OnError(err, ids...)
			}
		}
		endSpan(span, err)
		w.record(ctx, "delete", req.Kind, err)
	}()

	resource, err := w.lookup(req.Kind)
	if err != nil {
		w.failDelete(ctx, req, err, nil)
		return
	}
	ids = resource.DeleteIDs(req.Params)

	path, err := resource.DeletePath(req.Params)
	if err != nil {
		w.failDelete(ctx, req, err, ids)
		return
	}

	if err = w.api.Delete(ctx, path); err != nil {
		err = fmt.Errorf("failed to delete %s: %w", req.Kind, err)
		w.failDelete(ctx, req, err, ids)
		return
	}
	deleted = true

	if req.OnDelete != nil {
		req.OnDelete(ids...)
	}
	w.dispatch(actions.DeleteCompleted(req, resource.SlotKey(req.Params), resource.ItemID(req.Params)))
}

func (w *Workers) failDelete(ctx context.Context, req actions.DeleteRequested, err error, ids []string) {
	logging.FromContext(ctx).InfoContext(ctx, "Delete failed", "key", req.LaneKey().String(), "error", err.Error())
	if req.OnError != nil {
		req.OnError(err, ids...)
	}
}

// Mutate writes req.Body to the platform and merges the response into the cached slot
func (w *Workers) Mutate(ctx context.Context, req actions.MutateRequested) {
	ctx, span := w.tracer.Start(ctx, "Workers.Mutate", trace.WithAttributes(
		attribute.String("kind", string(req.Kind)),
		attribute.String("method", req.Method),
	))
	ctx = reporting.AddSlotToContext(ctx, string(req.Kind), actions.KeyOf(req.Kind, req.Params).String())

	var err error
	done := false
	defer func() {
		if r := recover(); r != nil {
			err = recovered(ctx, r, "mutate")
			if !done && req.OnError != nil {
				req.OnError(err)
			}
		}
		endSpan(span, err)
		w.record(ctx, "mutate", req.Kind, err)
	}()

	data, revoked, err := w.mutate(ctx, req)
	if err != nil {
		logging.FromContext(ctx).InfoContext(ctx, "Mutation failed", "kind", string(req.Kind), "error", err.Error())
		if req.OnError != nil {
			req.OnError(err)
		}
		return
	}
	done = true

	if revoked != nil {
		w.dispatch(*revoked)
	}
	if req.OnDone != nil {
		req.OnDone(data)
	}
}

func (w *Workers) mutate(ctx context.Context, req actions.MutateRequested) ([]byte, *actions.Revoked, error) {
	switch req.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return nil, nil, fmt.Errorf("%w: unsupported mutation method %s", domain.ErrInvalidParams, req.Method)
	}

	resource, err := w.lookup(req.Kind)
	if err != nil {
		return nil, nil, err
	}

	path, err := resource.MutatePath(req.Method, req.Params)
	if err != nil {
		return nil, nil, err
	}

	data, err := w.api.Send(ctx, req.Method, path, req.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to %s %s: %w", req.Method, req.Kind, err)
	}
	if len(data) == 0 {
		return data, nil, nil
	}

	itemID := resource.ItemID(req.Params)
	if itemID == "" {
		itemID, err = resource.DecodeItemID(data)
		if err != nil {
			err := fmt.Errorf("failed to decode %s response: %w", req.Kind, err)
			reporting.Report(ctx, err, map[string]string{"kind": string(req.Kind)})
			return nil, nil, err
		}
	}

	revoked := actions.Revoke(resource.SlotKey(req.Params), itemID, data)
	return data, &revoked, nil
}
