package ports

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/Amund211/coursesync/internal/actions"
	"github.com/Amund211/coursesync/internal/adapters/credentials"
	"github.com/Amund211/coursesync/internal/domain"
	"github.com/Amund211/coursesync/internal/logging"
	"github.com/Amund211/coursesync/internal/ratelimiting"
	"github.com/Amund211/coursesync/internal/reporting"
)

const maxBodySize = 1 << 20

// How long write handlers wait for their effect before answering 202 Accepted
const effectWaitTimeout = 10 * time.Second

// How long a state request with wait=true waits for the first value
const stateWaitTimeout = 5 * time.Second

const waitParam = "wait"

func onLimitExceeded(w http.ResponseWriter, r *http.Request) {
	writeError(r.Context(), w, http.StatusTooManyRequests, "rate limit exceeded")
}

func newIPRateLimitMiddleware() Middleware {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(20),
		ratelimiting.BurstSize(200),
	)
	return NewRateLimitMiddleware(
		ratelimiting.NewRequestBasedRateLimiter(ipLimiter, ratelimiting.IPKeyFunc),
		onLimitExceeded,
	)
}

func buildMiddleware(
	handlerName string,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware Middleware,
	extra ...Middleware,
) Middleware {
	return ComposeMiddlewares(append([]Middleware{
		buildMetricsMiddleware(handlerName),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		BuildCORSMiddleware(allowedOrigins),
		newIPRateLimitMiddleware(),
	}, extra...)...)
}

// requestKind parses the {kind} path value and tags the request context with it
func requestKind(w http.ResponseWriter, r *http.Request) (context.Context, domain.Kind, bool) {
	ctx := r.Context()
	kind, err := domain.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, "unknown kind")
		return ctx, "", false
	}
	ctx = reporting.AddTagsToContext(ctx, map[string]string{"kind": string(kind)})
	return ctx, kind, true
}

// queryParams turns the query string into action params. The first value of each name is used.
func queryParams(r *http.Request, reserved ...string) actions.Params {
	query := r.URL.Query()
	pairs := make([]actions.Param, 0, len(query))
	for name, values := range query {
		if len(values) == 0 || slices.Contains(reserved, name) {
			continue
		}
		pairs = append(pairs, actions.P(name, values[0]))
	}
	return actions.NewParams(pairs...)
}

type stateResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Stale   bool   `json:"stale,omitempty"`
	Value   any    `json:"value,omitempty"`
	Cause   string `json:"cause,omitempty"`
}

func awaitView(ctx context.Context, rt Runtime, kind domain.Kind, params actions.Params) View[any] {
	ctx, cancel := context.WithTimeout(ctx, stateWaitTimeout)
	defer cancel()

	var view View[any]
	for view = range Watch[any](ctx, rt, kind, params, true) {
		if view.Status != ViewUninitialized {
			return view
		}
	}
	return view
}

func MakeGetStateHandler(
	rt Runtime,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware Middleware,
) http.HandlerFunc {
	middleware := buildMiddleware("get_state", allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, kind, ok := requestKind(w, r)
		if !ok {
			return
		}

		params := queryParams(r, waitParam)
		ctx = logging.AddMetaToContext(ctx, slog.String("key", actions.KeyOf(kind, params).String()))

		var view View[any]
		if r.URL.Query().Get(waitParam) == "true" {
			view = awaitView(ctx, rt, kind, params)
		} else {
			view = Use[any](rt, kind, params, true)
		}

		switch view.Status {
		case ViewLoaded:
			writeJSON(ctx, w, http.StatusOK, stateResponse{
				Success: true,
				Status:  string(view.Status),
				Stale:   view.Stale,
				Value:   view.Value,
			})
		case ViewFailed:
			statusCode, cause := statusForError(view.Err)
			writeJSON(ctx, w, statusCode, stateResponse{
				Success: false,
				Status:  string(view.Status),
				Cause:   cause,
			})
		case ViewDeleted:
			writeJSON(ctx, w, http.StatusNotFound, stateResponse{
				Success: false,
				Status:  string(view.Status),
				Cause:   "deleted",
			})
		default:
			writeJSON(ctx, w, http.StatusAccepted, stateResponse{
				Success: true,
				Status:  string(view.Status),
			})
		}
	}

	return middleware(handler)
}

func MakeReloadHandler(
	rt Runtime,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware Middleware,
) http.HandlerFunc {
	kindLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(1),
		ratelimiting.BurstSize(10),
	)
	middleware := buildMiddleware("reload", allowedOrigins, rootLogger, sentryMiddleware,
		NewRateLimitMiddleware(
			ratelimiting.NewRequestBasedRateLimiter(kindLimiter, ratelimiting.KindKeyFunc),
			onLimitExceeded,
		),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, kind, ok := requestKind(w, r)
		if !ok {
			return
		}

		rt.Dispatch(actions.FetchRequested{Kind: kind, Params: queryParams(r)})
		writeJSON(ctx, w, http.StatusAccepted, map[string]any{"success": true})
	}

	return middleware(handler)
}

type deleteResponse struct {
	Success bool     `json:"success"`
	IDs     []string `json:"ids"`
}

type deleteResult struct {
	ids []string
	err error
}

func MakeDeleteHandler(
	rt Runtime,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware Middleware,
) http.HandlerFunc {
	middleware := buildMiddleware("delete", allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, kind, ok := requestKind(w, r)
		if !ok {
			return
		}

		results := make(chan deleteResult, 1)
		rt.Dispatch(actions.DeleteRequest(kind, queryParams(r),
			func(ids ...string) {
				results <- deleteResult{ids: ids}
			},
			func(err error, ids ...string) {
				results <- deleteResult{ids: ids, err: err}
			},
		))

		select {
		case result := <-results:
			if result.err != nil {
				writeDomainError(ctx, w, result.err)
				return
			}
			writeJSON(ctx, w, http.StatusOK, deleteResponse{Success: true, IDs: result.ids})
		case <-time.After(effectWaitTimeout):
			// The delete may have been absorbed by one already in flight
			writeJSON(ctx, w, http.StatusAccepted, map[string]any{"success": true})
		case <-ctx.Done():
		}
	}

	return middleware(handler)
}

type mutateResult struct {
	data json.RawMessage
	err  error
}

func MakeMutateHandler(
	rt Runtime,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware Middleware,
) http.HandlerFunc {
	middleware := buildMiddleware("mutate", allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, kind, ok := requestKind(w, r)
		if !ok {
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil || !json.Valid(body) {
			writeError(ctx, w, http.StatusBadRequest, "invalid body")
			return
		}

		results := make(chan mutateResult, 1)
		rt.Dispatch(actions.Mutate(kind, r.Method, queryParams(r), body).WithCallbacks(
			func(data json.RawMessage) {
				results <- mutateResult{data: data}
			},
			func(err error) {
				results <- mutateResult{err: err}
			},
		))

		select {
		case result := <-results:
			if result.err != nil {
				writeDomainError(ctx, w, result.err)
				return
			}
			writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true, "value": result.data})
		case <-time.After(effectWaitTimeout):
			writeJSON(ctx, w, http.StatusAccepted, map[string]any{"success": true})
		case <-ctx.Done():
		}
	}

	return middleware(handler)
}

type loginRequest struct {
	Token string `json:"token"`
}

type loginResponse struct {
	Success   bool       `json:"success"`
	UserID    string     `json:"userId,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func MakeLoginHandler(
	rt Runtime,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware Middleware,
) http.HandlerFunc {
	middleware := buildMiddleware("login", allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var request loginRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&request); err != nil {
			writeError(ctx, w, http.StatusBadRequest, "invalid body")
			return
		}

		creds, err := credentials.FromToken(request.Token)
		if err != nil {
			writeDomainError(ctx, w, err)
			return
		}
		ctx = reporting.SetUserIDInContext(ctx, creds.UserID)

		rt.Dispatch(actions.Login(creds))
		logging.FromContext(ctx).InfoContext(ctx, "Logged in", "userId", creds.UserID)

		response := loginResponse{Success: true, UserID: creds.UserID}
		if !creds.ExpiresAt.IsZero() {
			response.ExpiresAt = &creds.ExpiresAt
		}
		writeJSON(ctx, w, http.StatusOK, response)
	}

	return middleware(handler)
}

func MakeLogoutHandler(
	rt Runtime,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware Middleware,
) http.HandlerFunc {
	middleware := buildMiddleware("logout", allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		rt.Dispatch(actions.Logout())
		writeJSON(r.Context(), w, http.StatusOK, map[string]any{"success": true})
	}

	return middleware(handler)
}
