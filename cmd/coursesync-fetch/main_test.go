package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"github.com/Amund211/coursesync/internal/actions"
	"github.com/Amund211/coursesync/internal/domain"
)

var errExitCalled = errors.New("exit called")

func newCLI() *CLI {
	return &CLI{Token: "token", Timeout: 5 * time.Second}
}

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("get with params", func(t *testing.T) {
		t.Parallel()

		var cli CLI
		k, err := kong.New(&cli, kong.Exit(func(int) { panic(errExitCalled) }))
		require.NoError(t, err)

		_, err = k.Parse([]string{"--token", "abc", "--timeout", "2s", "get", "lessons", "courseId=1"})
		require.NoError(t, err)
		require.Equal(t, "abc", cli.Token)
		require.Equal(t, 2*time.Second, cli.Timeout)
		require.Equal(t, "lessons", cli.Get.Kind)
		require.Equal(t, []string{"courseId=1"}, cli.Get.Params)
	})

	t.Run("token is required", func(t *testing.T) {
		t.Parallel()

		var cli CLI
		k, err := kong.New(&cli, kong.Exit(func(int) { panic(errExitCalled) }))
		require.NoError(t, err)

		_, err = k.Parse([]string{"get", "courses"})
		require.Error(t, err)
	})
}

func TestParseParams(t *testing.T) {
	t.Parallel()

	params, err := parseParams([]string{"userId=7", "courseId=1", "empty="})
	require.NoError(t, err)
	require.Equal(t, actions.NewParams(actions.P("courseId", "1"), actions.P("empty", ""), actions.P("userId", "7")), params)

	_, err = parseParams([]string{"courseId"})
	require.ErrorIs(t, err, domain.ErrInvalidParams)

	_, err = parseParams([]string{"=1"})
	require.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestGetCmd(t *testing.T) {
	t.Parallel()

	t.Run("prints the loaded collection", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		cmd := &GetCmd{Kind: "participants", Params: []string{"courseId=1"}}
		require.NoError(t, cmd.Run(newCLI(), &out))

		var participants []domain.Participant
		require.NoError(t, json.Unmarshal(out.Bytes(), &participants))
		require.Len(t, participants, 3)
	})

	t.Run("prints a singleton", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		cmd := &GetCmd{Kind: "me"}
		require.NoError(t, cmd.Run(newCLI(), &out))

		var me domain.Account
		require.NoError(t, json.Unmarshal(out.Bytes(), &me))
		require.Equal(t, "7", me.ID)
	})

	t.Run("missing entity", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		cmd := &GetCmd{Kind: "lesson", Params: []string{"lessonId=999"}}
		require.ErrorIs(t, cmd.Run(newCLI(), &out), domain.ErrNotFound)
		require.Empty(t, out.String())
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		cmd := &GetCmd{Kind: "grades"}
		require.Error(t, cmd.Run(newCLI(), &out))
	})
}

func TestDeleteCmd(t *testing.T) {
	t.Parallel()

	t.Run("prints the deleted ids", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		cmd := &DeleteCmd{Kind: "participants", Params: []string{"courseId=1", "userId=7"}}
		require.NoError(t, cmd.Run(newCLI(), &out))
		require.JSONEq(t, `{"deleted":["1","7"]}`, out.String())
	})

	t.Run("missing entity", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		cmd := &DeleteCmd{Kind: "participants", Params: []string{"courseId=1", "userId=99"}}
		require.ErrorIs(t, cmd.Run(newCLI(), &out), domain.ErrNotFound)
	})
}
