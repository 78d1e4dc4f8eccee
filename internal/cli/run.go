package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/tagmanager/internal/config"
	"github.com/gyaneshwarpardhi/tagmanager/internal/engine"
	"github.com/gyaneshwarpardhi/tagmanager/internal/event"
	"github.com/gyaneshwarpardhi/tagmanager/internal/page"
	"github.com/gyaneshwarpardhi/tagmanager/internal/telemetry"
)

type runOptions struct {
	url         string
	referrer    string
	embed       string
	containerID string
	endpoint    string
	containers  string
	pushes      []string
	clicks      []string
	debug       bool
	noCode      bool
}

// RunResult is the json output of the run command.
type RunResult struct {
	Document string          `json:"document"`
	State    engine.Snapshot `json:"state"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [page.html]",
		Short: "Run the engine against an HTML page",
		Long: `Run the engine against an HTML page (a blank page when omitted).

The page goes through the full lifecycle: config load and pageview, then DOM
ready (click listeners are bound here), then window load. Afterwards every
--push record is pushed and every --click selector is clicked, in order.
The resulting document and engine state are printed.`,
		Example: `  tagmanager run shop.html --url https://shop.example/cart --containers ./containers --container CTM-1 \
    --push '{"event":"purchase","amount":42}' --click 'a.buy'`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pagePath := ""
			if len(args) == 1 {
				pagePath = args[0]
			}
			return runPage(cmd, rootOpts, opts, pagePath)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.url, "url", "https://example.com/", "URL the page is served from")
	f.StringVar(&opts.referrer, "referrer", "", "document referrer")
	f.StringVar(&opts.embed, "embed", "", "engine load URL, e.g. https://tags.example.com/container.js?id=CTM-1&debug=true")
	f.StringVar(&opts.containerID, "container", "", "container id (overrides engine.container_id)")
	f.StringVar(&opts.endpoint, "endpoint", "", "config API base URL (overrides engine.api_endpoint)")
	f.StringVar(&opts.containers, "containers", "", "load containers from this directory instead of the API")
	f.StringArrayVar(&opts.pushes, "push", nil, "JSON record to push after load (repeatable)")
	f.StringArrayVar(&opts.clicks, "click", nil, "CSS selector to click after load (repeatable)")
	f.BoolVar(&opts.debug, "debug", false, "engine debug mode")
	f.BoolVar(&opts.noCode, "no-code", false, "refuse to run code tags")
	return cmd
}

func runPage(cmd *cobra.Command, rootOpts *RootOptions, opts *runOptions, pagePath string) error {
	settings, err := rootOpts.loadSettings()
	if err != nil {
		return err
	}
	conf := settings.Engine
	if opts.embed != "" {
		e, err := config.ParseEmbed(opts.embed)
		if err != nil {
			return err
		}
		conf.ContainerID = e.ContainerID
		conf.Debug = conf.Debug || e.Debug
		if e.Endpoint != "" {
			conf.APIEndpoint = e.Endpoint
		}
	}
	if opts.containerID != "" {
		conf.ContainerID = opts.containerID
	}
	if opts.endpoint != "" {
		conf.APIEndpoint = opts.endpoint
	}

	records, err := parsePushes(opts.pushes)
	if err != nil {
		return err
	}
	doc, err := openPage(pagePath, opts)
	if err != nil {
		return err
	}

	var loader config.Loader
	switch {
	case opts.containers != "":
		loader = config.FileLoader{Dir: opts.containers}
	case conf.APIEndpoint != "":
		loader = config.NewHTTPLoader(conf.APIEndpoint, conf.FetchTimeout())
	default:
		return errors.New("no config source: set --containers, --endpoint or engine.api_endpoint")
	}

	var sink telemetry.Sink = telemetry.Nop{}
	if settings.Telemetry.Enabled {
		sink = telemetry.NewHTTPSink(telemetry.HTTPOptions{
			Endpoint:   conf.APIEndpoint,
			Workers:    settings.Telemetry.Workers,
			QueueDepth: settings.Telemetry.QueueDepth,
			Timeout:    settings.Telemetry.Timeout(),
		})
	}

	eng := engine.New(engine.Options{
		ContainerID:   conf.ContainerID,
		Loader:        loader,
		Host:          doc,
		DisableCode:   opts.noCode || !conf.CodeAllowed(),
		Telemetry:     sink,
		EventLogLimit: conf.EventLogLimit,
		Debug:         conf.Debug || opts.debug || rootOpts.Verbose,
		LogOutput:     cmd.ErrOrStderr(),
	})
	defer eng.Close()

	if err := eng.Start(cmd.Context()); err != nil {
		return err
	}
	doc.Advance(page.Interactive)
	doc.Advance(page.Complete)
	for _, rec := range records {
		eng.Push(rec)
	}
	for _, sel := range opts.clicks {
		if err := doc.Click(sel); err != nil {
			return err
		}
	}

	rendered, err := doc.Render()
	if err != nil {
		return err
	}
	return printRun(cmd.OutOrStdout(), rootOpts.Format, RunResult{Document: rendered, State: eng.State()})
}

func parsePushes(raw []string) ([]event.Context, error) {
	out := make([]event.Context, 0, len(raw))
	for i, r := range raw {
		var rec event.Context
		if err := json.Unmarshal([]byte(r), &rec); err != nil {
			return nil, fmt.Errorf("--push[%d]: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func openPage(path string, opts *runOptions) (*page.Document, error) {
	pageOpts := []page.Option{page.WithReferrer(opts.referrer)}
	if path == "" {
		return page.NewDocument(opts.url, pageOpts...)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return page.Parse(f, opts.url, pageOpts...)
}

func printRun(w io.Writer, format string, res RunResult) error {
	if format == "json" {
		return writeJSON(w, res)
	}
	fmt.Fprintln(w, res.Document)
	fmt.Fprintln(w)
	st := res.State
	fmt.Fprintf(w, "container: %s (phase %s, api %s)\n", st.ContainerID, st.Phase, st.Version)
	fmt.Fprintf(w, "executed:  %s\n", strings.Join(st.ExecutedTags, ", "))
	fmt.Fprintf(w, "events:    %d\n", len(st.Events))
	return nil
}
