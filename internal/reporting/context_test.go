package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetaFromContext(t *testing.T) {
	t.Parallel()

	t.Run("empty context", func(t *testing.T) {
		t.Parallel()

		meta := MetaFromContext(t.Context())
		require.Empty(t, meta.tags)
		require.Empty(t, meta.extras)
		require.Empty(t, meta.userID)
		require.True(t, meta.startedAt.IsZero())

		// Writable without a panic
		meta.tags["kind"] = "courses"
	})

	t.Run("updates accumulate", func(t *testing.T) {
		t.Parallel()

		startedAt := time.Date(2026, time.October, 1, 12, 0, 0, 0, time.UTC)

		ctx := AddTagsToContext(t.Context(), map[string]string{"userAgent": "test"})
		ctx = AddExtrasToContext(ctx, map[string]string{"attempt": "1"})
		ctx = AddSlotToContext(ctx, "lessons", "lessons?courseId=1")
		ctx = SetUserIDInContext(ctx, "7")
		ctx = setStartedAtInContext(ctx, startedAt)

		meta := MetaFromContext(ctx)
		require.Equal(t, map[string]string{"userAgent": "test", "kind": "lessons"}, meta.tags)
		require.Equal(t, map[string]string{"attempt": "1", "slot": "lessons?courseId=1"}, meta.extras)
		require.Equal(t, "7", meta.userID)
		require.Equal(t, startedAt, meta.startedAt)
	})

	t.Run("parent context is not changed", func(t *testing.T) {
		t.Parallel()

		parent := AddTagsToContext(t.Context(), map[string]string{"kind": "courses"})
		child := AddTagsToContext(parent, map[string]string{"kind": "lessons"})

		MetaFromContext(child).tags["kind"] = "webinars"

		require.Equal(t, "courses", MetaFromContext(parent).tags["kind"])
		require.Equal(t, "lessons", MetaFromContext(child).tags["kind"])
	})
}
