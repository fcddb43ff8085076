package ports_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Amund211/coursesync/internal/adapters/credentials"
	"github.com/Amund211/coursesync/internal/adapters/platformapi"
	"github.com/Amund211/coursesync/internal/app"
	"github.com/Amund211/coursesync/internal/ports"
	"github.com/Amund211/coursesync/internal/ratelimiting"
	"github.com/Amund211/coursesync/internal/resources"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t        *testing.T
	mux      *http.ServeMux
	rt       *app.Runtime
	platform *platformapi.MockPlatform
}

func noopMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return next
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	holder := credentials.NewHolder(time.Now)
	platform := platformapi.NewMockPlatform(time.Now)
	client, err := platformapi.NewClient(
		"http://platform.mock",
		platform,
		holder,
		ratelimiting.NewRealtimeWindowLimiter(1000, time.Second),
		time.Now,
	)
	require.NoError(t, err)

	rt, err := app.NewRuntime(t.Context(), client, holder, resources.Default(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	allowedOrigins, err := ports.NewDomainSuffixes("localhost")
	require.NoError(t, err)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/state/{kind}", ports.MakeGetStateHandler(rt, allowedOrigins, logger, noopMiddleware))
	mux.HandleFunc("POST /v1/reload/{kind}", ports.MakeReloadHandler(rt, allowedOrigins, logger, noopMiddleware))
	mux.HandleFunc("DELETE /v1/entities/{kind}", ports.MakeDeleteHandler(rt, allowedOrigins, logger, noopMiddleware))
	mux.HandleFunc("POST /v1/entities/{kind}", ports.MakeMutateHandler(rt, allowedOrigins, logger, noopMiddleware))
	mux.HandleFunc("PATCH /v1/entities/{kind}", ports.MakeMutateHandler(rt, allowedOrigins, logger, noopMiddleware))
	mux.HandleFunc("POST /v1/login", ports.MakeLoginHandler(rt, allowedOrigins, logger, noopMiddleware))
	mux.HandleFunc("POST /v1/logout", ports.MakeLogoutHandler(rt, allowedOrigins, logger, noopMiddleware))

	return &testServer{t: t, mux: mux, rt: rt, platform: platform}
}

func (s *testServer) do(method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	require.Equal(s.t, "application/json", w.Header().Get("Content-Type"))
	var response map[string]any
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return w, response
}

func signedToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func (s *testServer) login() {
	s.t.Helper()
	w, response := s.do(http.MethodPost, "/v1/login", `{"token":"`+signedToken(s.t, "7", time.Now().Add(time.Hour))+`"}`)
	require.Equal(s.t, http.StatusOK, w.Code)
	require.Equal(s.t, true, response["success"])
}

func TestLoginHandler(t *testing.T) {
	t.Parallel()

	t.Run("jwt", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t)
		expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)

		w, response := server.do(http.MethodPost, "/v1/login", `{"token":"`+signedToken(t, "7", expiresAt)+`"}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "7", response["userId"])
		parsed, err := time.Parse(time.RFC3339, response["expiresAt"].(string))
		require.NoError(t, err)
		require.True(t, expiresAt.Equal(parsed))
		require.True(t, server.rt.LoggedIn())
	})

	t.Run("opaque token", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t)

		w, response := server.do(http.MethodPost, "/v1/login", `{"token":"opaque"}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotContains(t, response, "userId")
		require.NotContains(t, response, "expiresAt")
		require.True(t, server.rt.LoggedIn())
	})

	t.Run("empty token", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t)

		w, response := server.do(http.MethodPost, "/v1/login", `{"token":""}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, "invalid params", response["cause"])
		require.False(t, server.rt.LoggedIn())
	})

	t.Run("invalid body", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t)

		w, response := server.do(http.MethodPost, "/v1/login", `not json`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, "invalid body", response["cause"])
	})
}

func TestGetStateHandler(t *testing.T) {
	t.Parallel()

	t.Run("fetch waits for login", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t)

		w, response := server.do(http.MethodGet, "/v1/state/participants?courseId=1", "")
		require.Equal(t, http.StatusAccepted, w.Code)
		require.Equal(t, "uninitialized", response["status"])

		server.login()

		w, response = server.do(http.MethodGet, "/v1/state/participants?courseId=1&wait=true", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Equal(t, "loaded", response["status"])
		require.NotContains(t, response, "stale")
		require.Len(t, response["value"], 3)
	})

	t.Run("failures are mapped to status codes", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t)
		server.login()

		w, response := server.do(http.MethodGet, "/v1/state/lesson?lessonId=999&wait=true", "")
		require.Equal(t, http.StatusNotFound, w.Code)
		require.Equal(t, "failed", response["status"])
		require.Equal(t, "not found", response["cause"])

		w, response = server.do(http.MethodGet, "/v1/state/lessons?wait=true", "")
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, "invalid params", response["cause"])
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t)

		w, response := server.do(http.MethodGet, "/v1/state/grades", "")
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, "unknown kind", response["cause"])
	})
}

func TestReloadHandler(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	server.login()

	w, _ := server.do(http.MethodGet, "/v1/state/subjects?wait=true", "")
	require.Equal(t, http.StatusOK, w.Code)

	server.platform.SetCollection("/subjects", map[string]any{"id": "3", "name": "Chemistry"})

	w, _ = server.do(http.MethodPost, "/v1/reload/subjects", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	server.rt.Wait()

	w, response := server.do(http.MethodGet, "/v1/state/subjects", "")
	require.Equal(t, http.StatusOK, w.Code)
	value := response["value"].([]any)
	require.Len(t, value, 1)
	require.Equal(t, "Chemistry", value[0].(map[string]any)["name"])
}

func TestDeleteHandler(t *testing.T) {
	t.Parallel()

	t.Run("removes the item from the cached collection", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t)
		server.login()

		w, _ := server.do(http.MethodGet, "/v1/state/participants?courseId=1&wait=true", "")
		require.Equal(t, http.StatusOK, w.Code)

		w, response := server.do(http.MethodDelete, "/v1/entities/participants?courseId=1&userId=7", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Equal(t, []any{"1", "7"}, response["ids"])
		server.rt.Wait()

		w, response = server.do(http.MethodGet, "/v1/state/participants?courseId=1", "")
		require.Equal(t, http.StatusOK, w.Code)
		value := response["value"].([]any)
		require.Len(t, value, 2)
		for _, participant := range value {
			require.NotEqual(t, "7", participant.(map[string]any)["id"])
		}
	})

	t.Run("missing item", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t)
		server.login()

		w, response := server.do(http.MethodDelete, "/v1/entities/participants?courseId=1&userId=99", "")
		require.Equal(t, http.StatusNotFound, w.Code)
		require.Equal(t, "not found", response["cause"])
	})

	t.Run("logged out", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t)

		w, response := server.do(http.MethodDelete, "/v1/entities/participants?courseId=1&userId=7", "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Equal(t, "unauthenticated", response["cause"])
	})
}

func TestMutateHandler(t *testing.T) {
	t.Parallel()

	t.Run("created item is merged into the collection", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t)
		server.login()

		w, _ := server.do(http.MethodGet, "/v1/state/subjects?wait=true", "")
		require.Equal(t, http.StatusOK, w.Code)

		w, response := server.do(http.MethodPost, "/v1/entities/subjects", `{"name":"Chemistry"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Equal(t, "Chemistry", response["value"].(map[string]any)["name"])
		server.rt.Wait()

		w, response = server.do(http.MethodGet, "/v1/state/subjects", "")
		require.Equal(t, http.StatusOK, w.Code)
		value := response["value"].([]any)
		require.Len(t, value, 3)
		require.Equal(t, "Chemistry", value[2].(map[string]any)["name"])
	})

	t.Run("invalid body", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(t)
		server.login()

		w, response := server.do(http.MethodPost, "/v1/entities/subjects", `{"name":`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, "invalid body", response["cause"])
	})
}

func TestLogoutHandler(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	server.login()
	require.True(t, server.rt.LoggedIn())

	w, response := server.do(http.MethodPost, "/v1/logout", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, response["success"])
	require.False(t, server.rt.LoggedIn())

	// Fetches are held again until the next login
	w, response = server.do(http.MethodGet, "/v1/state/teachers", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, "uninitialized", response["status"])
}
