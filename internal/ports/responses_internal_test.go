package ports

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Amund211/coursesync/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestStatusForError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		status int
		cause  string
	}{
		{err: domain.ErrUnauthenticated, status: http.StatusUnauthorized, cause: "unauthenticated"},
		{err: domain.ErrForbidden, status: http.StatusForbidden, cause: "forbidden"},
		{err: domain.ErrNotFound, status: http.StatusNotFound, cause: "not found"},
		{err: domain.ErrInvalidParams, status: http.StatusBadRequest, cause: "invalid params"},
		{err: domain.ErrTemporarilyUnavailable, status: http.StatusServiceUnavailable, cause: "temporarily unavailable"},
		{err: fmt.Errorf("failed to fetch lessons: %w", domain.ErrNotFound), status: http.StatusNotFound, cause: "not found"},
		{err: errors.New("connection reset"), status: http.StatusInternalServerError, cause: "internal server error"},
	}

	for _, c := range cases {
		t.Run(c.err.Error(), func(t *testing.T) {
			t.Parallel()

			status, cause := statusForError(c.err)
			require.Equal(t, c.status, status)
			require.Equal(t, c.cause, cause)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	t.Run("value", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		writeJSON(t.Context(), w, http.StatusAccepted, map[string]any{"success": true})

		require.Equal(t, http.StatusAccepted, w.Code)
		require.Equal(t, "application/json", w.Header().Get("Content-Type"))
		require.JSONEq(t, `{"success":true}`, w.Body.String())
	})

	t.Run("unmarshalable value", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		writeJSON(t.Context(), w, http.StatusOK, map[string]any{"value": make(chan int)})

		require.Equal(t, http.StatusInternalServerError, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"internal server error"}`, w.Body.String())
	})
}

func TestMetricsMiddlewareRecordsStatus(t *testing.T) {
	t.Parallel()

	var recorded *statusRecorder
	handler := buildMetricsMiddleware("test")(func(w http.ResponseWriter, r *http.Request) {
		recorded = w.(*statusRecorder)
		w.WriteHeader(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/v1/state/courses", nil))

	require.Equal(t, http.StatusTeapot, w.Code)
	require.Equal(t, http.StatusTeapot, recorded.status)
}
