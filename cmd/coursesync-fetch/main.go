package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/Amund211/coursesync/internal/actions"
	"github.com/Amund211/coursesync/internal/adapters/credentials"
	"github.com/Amund211/coursesync/internal/adapters/platformapi"
	"github.com/Amund211/coursesync/internal/app"
	"github.com/Amund211/coursesync/internal/config"
	"github.com/Amund211/coursesync/internal/domain"
	"github.com/Amund211/coursesync/internal/logging"
	"github.com/Amund211/coursesync/internal/ports"
	"github.com/Amund211/coursesync/internal/ratelimiting"
	"github.com/Amund211/coursesync/internal/resources"
)

// CLI is the top-level command structure for coursesync-fetch.
type CLI struct {
	Token   string        `help:"Bearer token of the user." env:"COURSESYNC_TOKEN" required:""`
	APIURL  string        `name:"api-url" help:"Platform API base URL. The in-memory mock platform is used when empty." env:"PLATFORM_API_URL"`
	Timeout time.Duration `help:"How long to wait for the platform." default:"30s"`
	Verbose bool          `help:"Log runtime activity to stderr." short:"v"`

	Get    GetCmd    `cmd:"" help:"Fetch an entity slot and print it as JSON."`
	Delete DeleteCmd `cmd:"" help:"Delete an entity and print the deleted ids."`
}

// GetCmd fetches one slot, e.g. `get lessons courseId=1`.
type GetCmd struct {
	Kind   string   `arg:"" help:"Entity kind."`
	Params []string `arg:"" optional:"" help:"Params as name=value."`
}

// DeleteCmd deletes one entity, e.g. `delete participants courseId=1 userId=7`.
type DeleteCmd struct {
	Kind   string   `arg:"" help:"Entity kind."`
	Params []string `arg:"" optional:"" help:"Params as name=value."`
}

func parseParams(raw []string) (actions.Params, error) {
	pairs := make([]actions.Param, 0, len(raw))
	for _, param := range raw {
		name, value, ok := strings.Cut(param, "=")
		if !ok || name == "" {
			return actions.Params{}, fmt.Errorf("%w: param %q is not name=value", domain.ErrInvalidParams, param)
		}
		pairs = append(pairs, actions.P(name, value))
	}
	return actions.NewParams(pairs...), nil
}

// session is a logged in runtime on top of the configured platform
func (cli *CLI) session(ctx context.Context) (*app.Runtime, error) {
	level := slog.LevelWarn
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ctx = logging.AddToContext(ctx, logger)

	httpClient, baseURL, err := platformapi.NewHttpClientOrMock(config.NewDevelopment(cli.APIURL), time.Now)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}

	holder := credentials.NewHolder(time.Now)
	client, err := platformapi.NewClient(baseURL, httpClient, holder, ratelimiting.NewRealtimeWindowLimiter(10, time.Second), time.Now)
	if err != nil {
		return nil, fmt.Errorf("failed to create platform client: %w", err)
	}

	creds, err := credentials.FromToken(cli.Token)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	rt, err := app.NewRuntime(ctx, client, holder, resources.Default(), time.Minute)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}
	rt.Dispatch(actions.Login(creds))
	return rt, nil
}

func printJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

// Run executes the get command.
func (c *GetCmd) Run(cli *CLI, out io.Writer) error {
	kind, err := domain.ParseKind(c.Kind)
	if err != nil {
		return err
	}
	params, err := parseParams(c.Params)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cli.Timeout)
	defer cancel()

	rt, err := cli.session(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	for view := range ports.Watch[any](ctx, rt, kind, params, true) {
		switch view.Status {
		case ports.ViewUninitialized:
			continue
		case ports.ViewLoaded:
			return printJSON(out, view.Value)
		case ports.ViewDeleted:
			return fmt.Errorf("%s: %w", kind, domain.ErrNotFound)
		default:
			return view.Err
		}
	}
	return fmt.Errorf("timed out fetching %s: %w", kind, ctx.Err())
}

// Run executes the delete command.
func (c *DeleteCmd) Run(cli *CLI, out io.Writer) error {
	kind, err := domain.ParseKind(c.Kind)
	if err != nil {
		return err
	}
	params, err := parseParams(c.Params)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cli.Timeout)
	defer cancel()

	rt, err := cli.session(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	type result struct {
		ids []string
		err error
	}
	results := make(chan result, 1)
	rt.Dispatch(actions.DeleteRequest(kind, params,
		func(ids ...string) {
			results <- result{ids: ids}
		},
		func(err error, ids ...string) {
			results <- result{ids: ids, err: err}
		},
	))

	select {
	case r := <-results:
		if r.err != nil {
			return r.err
		}
		return printJSON(out, map[string]any{"deleted": r.ids})
	case <-ctx.Done():
		return fmt.Errorf("timed out deleting %s: %w", kind, ctx.Err())
	}
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Description("Fetch or delete platform entities through the coursesync runtime."),
		kong.BindTo(io.Writer(os.Stdout), (*io.Writer)(nil)),
	)
	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		if errors.Is(err, domain.ErrUnauthenticated) || errors.Is(err, domain.ErrForbidden) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
