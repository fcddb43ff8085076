package gate_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Amund211/coursesync/internal/gate"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu        sync.Mutex
	forwarded []string
}

func (r *recorder) forward(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forwarded = append(r.forwarded, s)
}

func (r *recorder) Forwarded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.forwarded...)
}

func identity(s string) string {
	return s
}

func TestGate(t *testing.T) {
	t.Parallel()

	t.Run("buffers until opened", func(t *testing.T) {
		t.Parallel()

		r := &recorder{}
		g := gate.New(identity, r.forward)

		require.False(t, g.IsOpen())
		require.False(t, g.Submit("subjects"))
		require.False(t, g.Submit("teachers"))
		require.False(t, g.Submit("courses"))
		require.Empty(t, r.Forwarded())
		require.Equal(t, 3, g.Buffered())

		g.Open()

		require.True(t, g.IsOpen())
		require.Equal(t, []string{"subjects", "teachers", "courses"}, r.Forwarded())
		require.Equal(t, 0, g.Buffered())
	})

	t.Run("forwards directly once open", func(t *testing.T) {
		t.Parallel()

		r := &recorder{}
		g := gate.New(identity, r.forward)
		g.Open()

		require.True(t, g.Submit("lessons"))
		require.Equal(t, []string{"lessons"}, r.Forwarded())
	})

	t.Run("opening twice does not replay", func(t *testing.T) {
		t.Parallel()

		r := &recorder{}
		g := gate.New(identity, r.forward)
		g.Submit("subjects")
		g.Open()
		g.Open()

		require.Equal(t, []string{"subjects"}, r.Forwarded())
	})

	t.Run("closing re-blocks and reopening replays the new buffer", func(t *testing.T) {
		t.Parallel()

		r := &recorder{}
		g := gate.New(identity, r.forward)
		g.Submit("first")
		g.Open()

		g.Close()
		require.False(t, g.IsOpen())
		require.False(t, g.Submit("second"))
		require.False(t, g.Submit("third"))
		require.Equal(t, []string{"first"}, r.Forwarded())

		g.Open()
		require.Equal(t, []string{"first", "second", "third"}, r.Forwarded())
	})

	t.Run("buffers one submission per key", func(t *testing.T) {
		t.Parallel()

		r := &recorder{}
		g := gate.New(identity, r.forward)
		for range 10_000 {
			g.Submit("courses")
		}
		g.Submit("subjects")
		g.Submit("courses")
		require.Equal(t, 2, g.Buffered())

		g.Open()
		require.Equal(t, []string{"courses", "subjects"}, r.Forwarded())
	})

	t.Run("a repeated key keeps its position and the newest submission", func(t *testing.T) {
		t.Parallel()

		type fetch struct {
			key string
			seq int
		}
		var forwarded []fetch
		g := gate.New(func(f fetch) string { return f.key }, func(f fetch) {
			forwarded = append(forwarded, f)
		})
		g.Submit(fetch{key: "courses", seq: 1})
		g.Submit(fetch{key: "subjects", seq: 2})
		g.Submit(fetch{key: "courses", seq: 3})

		g.Open()
		require.Equal(t, []fetch{{key: "courses", seq: 3}, {key: "subjects", seq: 2}}, forwarded)
	})

	t.Run("keys seen before a logout are buffered again", func(t *testing.T) {
		t.Parallel()

		r := &recorder{}
		g := gate.New(identity, r.forward)
		g.Submit("courses")
		g.Open()
		g.Close()
		g.Submit("courses")
		require.Equal(t, 1, g.Buffered())

		g.Open()
		require.Equal(t, []string{"courses", "courses"}, r.Forwarded())
	})

	t.Run("buffered submissions come before concurrent ones", func(t *testing.T) {
		t.Parallel()

		r := &recorder{}
		g := gate.New(identity, r.forward)
		for i := range 100 {
			g.Submit(fmt.Sprintf("buffered %d", i))
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Open()
		}()
		for i := range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				g.Submit(fmt.Sprintf("late %d", i))
			}()
		}
		wg.Wait()
		g.Open()

		forwarded := r.Forwarded()
		require.Len(t, forwarded, 200)

		seenLate := false
		for _, s := range forwarded {
			if strings.HasPrefix(s, "late") {
				seenLate = true
				continue
			}
			require.False(t, seenLate, "buffered submission forwarded after a late one")
		}
	})
}

func TestGateWait(t *testing.T) {
	t.Parallel()

	t.Run("returns once opened", func(t *testing.T) {
		t.Parallel()

		g := gate.New(identity, func(string) {})

		done := make(chan error)
		go func() {
			done <- g.Wait(t.Context())
		}()

		select {
		case <-done:
			t.Fatal("Wait returned before the gate opened")
		case <-time.After(20 * time.Millisecond):
		}

		g.Open()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Wait did not return after Open")
		}
	})

	t.Run("returns immediately when open", func(t *testing.T) {
		t.Parallel()

		g := gate.New(identity, func(string) {})
		g.Open()
		require.NoError(t, g.Wait(t.Context()))
	})

	t.Run("blocks again after close", func(t *testing.T) {
		t.Parallel()

		g := gate.New(identity, func(string) {})
		g.Open()
		g.Close()

		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()
		require.ErrorIs(t, g.Wait(ctx), context.DeadlineExceeded)
	})

	t.Run("context cancellation", func(t *testing.T) {
		t.Parallel()

		g := gate.New(identity, func(string) {})
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		require.ErrorIs(t, g.Wait(ctx), context.Canceled)
	})
}
