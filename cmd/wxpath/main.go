// Command wxpath evaluates a wxpath DSL expression against the live
// web and streams the results as newline-delimited JSON. Stdlib flag,
// no CLI framework: a single-command tool has no subcommand surface.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/chroma/v2/quick"

	"github.com/wxpath/wxpath/internal/config"
	"github.com/wxpath/wxpath/internal/engine"
	"github.com/wxpath/wxpath/internal/hooks"
	"github.com/wxpath/wxpath/internal/httpclient"
	"github.com/wxpath/wxpath/internal/logging"
	"github.com/wxpath/wxpath/internal/parser"
	"github.com/wxpath/wxpath/internal/sink/blob"
	"github.com/wxpath/wxpath/internal/sink/graph"
	"github.com/wxpath/wxpath/internal/tui"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("wxpath", flag.ContinueOnError)
	depth := fs.Int("depth", -1, "override the maximum crawl depth")
	concurrency := fs.Int("concurrency", -1, "override the global fetch concurrency")
	perHost := fs.Int("concurrency-per-host", -1, "override the per-host fetch concurrency")
	debug := fs.Bool("debug", false, "syntax-highlight the parsed expression before evaluating")
	verbose := fs.Bool("verbose", false, "echo the canonical parsed program before evaluating")
	progress := fs.Bool("progress", false, "render a live crawl status table on stderr")
	configPath := fs.String("config", "", "path to an optional YAML settings override file")
	sinkName := fs.String("sink", "", "where extracted values are written: ndjson, graph, or blob")
	out := fs.String("out", "", "destination for the selected sink (file path, bolt db path, or s3 <region>:<bucket>[/<prefix>])")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: wxpath <expression> [flags]")
		return 2
	}
	expr := fs.Arg(0)

	logger := logging.New("wxpath")

	file, err := config.LoadFile(*configPath)
	if err != nil {
		logger.Printf("loading config file: %v", err)
		return 1
	}
	flags := config.FlagOverrides{Debug: debug, Verbose: verbose}
	if *depth >= 0 {
		flags.MaxDepth = depth
	}
	if *concurrency > 0 {
		flags.Concurrency = concurrency
	}
	if *perHost > 0 {
		flags.ConcurrencyPerHost = perHost
	}
	if *sinkName != "" {
		flags.Sink = sinkName
	}
	if *out != "" {
		flags.Out = out
	}
	cfg := config.Resolve(flags, file)

	if cfg.Debug {
		if err := quick.Highlight(os.Stdout, expr, "xml", "terminal256", "monokai"); err != nil {
			fmt.Fprintln(os.Stdout, expr)
		}
		fmt.Fprintln(os.Stdout)
	}

	program, err := parser.Parse(expr)
	if err != nil {
		var syn *parser.SyntaxError
		if errors.As(err, &syn) {
			fmt.Fprintf(os.Stderr, "syntax error: %v\n", syn)
			return 2
		}
		fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
		return 1
	}
	if cfg.Verbose {
		fmt.Fprintf(os.Stderr, "parsed: %s\n", parser.Print(program))
	}

	registry := hooks.NewRegistry()
	registry.Register(hooks.Serializer{})

	sinkHook, closeSink, err := buildSink(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sink error: %v\n", err)
		return 1
	}
	if sinkHook != nil {
		registry.Register(sinkHook)
	}
	if closeSink != nil {
		defer closeSink()
	}

	client := httpclient.New(cfg.Concurrency, cfg.ConcurrencyPerHost)
	client.UserAgent = cfg.UserAgent
	client.Retry = httpclient.NewRetryPolicy(3)
	client.Stats = httpclient.NewStats()

	eng := engine.New(client, registry, cfg.MaxDepth)
	eng.RequestTimeout = cfg.RequestTimeout

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	results, err := eng.Run(ctx, program)
	if err != nil {
		fmt.Fprintf(os.Stderr, "evaluation error: %v\n", err)
		return 1
	}

	var renderer tui.Renderer
	var rows []tui.Row
	if *progress {
		renderer = tui.NewTermRenderer(os.Stderr)
		defer renderer.Close()
	}

	enc := json.NewEncoder(os.Stdout)
	exitCode := 0
	for r := range results {
		if renderer != nil {
			if row, ok := progressRow(r); ok {
				rows = append(rows, row)
				renderer.Render(rows)
			}
		}
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", r.Err)
			exitCode = 1
			continue
		}
		if err := enc.Encode(r.Value); err != nil {
			if isBrokenPipe(err) {
				// Downstream consumer (e.g. "wxpath ... | head") closed
				// its end; stop producing quietly rather than spamming
				// write errors, matching a well-behaved Unix filter.
				eng.Stop()
				break
			}
			fmt.Fprintf(os.Stderr, "encode error: %v\n", err)
			exitCode = 1
		}
	}

	logger.Print(client.Stats.Summary())
	return exitCode
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE)
}

// progressRow maps one serialized result onto a status-table row; values
// without a base_url (bare strings, numbers) have no URL to show.
func progressRow(r engine.Result) (tui.Row, bool) {
	if r.Err != nil {
		return tui.Row{URL: r.Err.Error(), State: tui.StateError}, true
	}
	doc, ok := r.Value.(map[string]any)
	if !ok {
		return tui.Row{}, false
	}
	url, _ := doc["base_url"].(string)
	if url == "" {
		return tui.Row{}, false
	}
	depth, _ := doc["depth"].(int)
	return tui.Row{URL: url, Depth: depth, State: tui.StateDone}, true
}

// buildSink constructs the optional PostExtract sink hook selected by
// cfg.Sink, returning a cleanup function to flush/close it.
func buildSink(cfg config.Config, logger interface{ Printf(string, ...any) }) (hooks.PostExtract, func(), error) {
	switch cfg.Sink {
	case "", "ndjson":
		if cfg.Out == "" || cfg.Out == "-" {
			return nil, nil, nil
		}
		w, err := hooks.NewNDJSONWriter(cfg.Out, 256, nil)
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil

	case "graph":
		path := cfg.Out
		if path == "" {
			path = "wxpath-graph.db"
		}
		s, err := graph.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil

	case "blob":
		if cfg.Out == "" {
			return nil, nil, errors.New("blob sink requires --out <region>:<bucket>[/<prefix>]")
		}
		s, err := blob.New(cfg.Out)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}
}
