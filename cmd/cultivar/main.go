package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/cultivar-map/internal/api"
	"github.com/joeblew999/cultivar-map/internal/grid"
	"github.com/joeblew999/cultivar-map/internal/logging"
	"github.com/joeblew999/cultivar-map/internal/server"
)

var version = "0.1.0"

// shutdownWait bounds how long a signal waits for the server to drain.
const shutdownWait = 15 * time.Second

// Options defines all CLI flags and env vars for the map server.
// Flags: --host, --port, --data-dir, --web-dir, --wms-url, --duckdb, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, ...
type Options struct {
	Host       string `doc:"Host to bind to" default:"0.0.0.0"`
	Port       int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir    string `doc:"Directory holding site.yaml, legends.json and grid.geojson" default:"data"`
	WebDir     string `doc:"Path to web/ directory" default:"web"`
	WMSURL     string `name:"wms-url" doc:"WMS endpoint, overrides site.yaml"`
	DuckDB     string `name:"duckdb" doc:"DuckDB mirror: 'memory', a file path, or empty to disable" default:"memory"`
	LogLevel   string `doc:"Log level: debug, info, warn or error" default:"info"`
	LogJSON    bool   `name:"log-json" doc:"Log as JSON instead of console text"`
	Watch      bool   `doc:"Reload template overrides when they change"`
	SessionTTL int    `name:"session-ttl" doc:"Idle minutes before a viewer session is dropped" default:"120"`
}

// lifecycle ties the humacli start and stop hooks together. humacli traps
// SIGINT/SIGTERM and exits as soon as OnStop returns, so stop cancels the
// running server and waits for start to finish its cleanup.
type lifecycle struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newLifecycle() *lifecycle {
	ctx, cancel := context.WithCancel(context.Background())
	return &lifecycle{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

func (l *lifecycle) start(fn func(ctx context.Context)) {
	defer close(l.done)
	defer l.cancel()
	fn(l.ctx)
}

// stop reports whether start finished within wait.
func (l *lifecycle) stop(wait time.Duration) bool {
	l.cancel()
	select {
	case <-l.done:
		return true
	case <-time.After(wait):
		return false
	}
}

func newLogger(opts *Options) *zap.Logger {
	logger, err := logging.New(opts.LogLevel, opts.LogJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func newServer(ctx context.Context, opts *Options, logger *zap.Logger) *server.Server {
	srv, err := server.New(ctx, server.Config{
		Host:       opts.Host,
		Port:       fmt.Sprintf("%d", opts.Port),
		DataDir:    opts.DataDir,
		WebDir:     opts.WebDir,
		WMSURL:     opts.WMSURL,
		DuckDB:     opts.DuckDB,
		Watch:      opts.Watch,
		Version:    version,
		SessionTTL: time.Duration(opts.SessionTTL) * time.Minute,
	}, logger)
	if err != nil {
		logger.Fatal("startup_failed", zap.String("data_dir", opts.DataDir), zap.Error(err))
	}
	return srv
}

func loadServices(ctx context.Context, opts *Options) *api.Services {
	svc, err := api.Load(ctx, opts.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", opts.DataDir, err)
		os.Exit(1)
	}
	return svc
}

func output(v any, useYAML bool) {
	var (
		out []byte
		err error
	)
	if useYAML {
		out, err = yaml.Marshal(v)
	} else {
		out, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

// serve runs the map server until ctx is cancelled.
func serve(ctx context.Context, opts *Options) {
	logger := newLogger(opts)
	defer logger.Sync()
	srv := newServer(ctx, opts, logger)
	defer srv.Close()

	displayHost := opts.Host
	if displayHost == "0.0.0.0" {
		displayHost = "localhost"
	}
	baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)
	logger.Info("server_starting",
		zap.String("viewer", baseURL+"/viewer"),
		zap.String("docs", baseURL+"/docs"),
		zap.String("openapi", baseURL+"/openapi.json"),
		zap.String("data_dir", opts.DataDir))

	if err := srv.Run(ctx); err != nil {
		logger.Error("server_error", zap.Error(err))
	}
	logger.Info("server_stopped")
}

func main() {
	// .env only fills variables the environment does not already set.
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		run := newLifecycle()

		hooks.OnStart(func() { run.start(func(ctx context.Context) { serve(ctx, opts) }) })
		hooks.OnStop(func() { run.stop(shutdownWait) })
	})

	cli.Root().Use = "cultivar"
	cli.Root().Short = "Opportunity map viewer with grid cell legends"
	cli.Root().Version = version

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.DuckDB = ""
			srv := newServer(cmd.Context(), opts, zap.NewNop())
			defer srv.Close()
			useYAML, _ := cmd.Flags().GetBool("yaml")
			output(srv.OpenAPI(), useYAML)
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// check subcommand: validate the data directory
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate site.yaml, legends.json and grid.geojson",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			issues := api.Check(loadServices(cmd.Context(), opts))
			for _, issue := range issues {
				fmt.Println(issue)
			}
			if len(issues) > 0 {
				fmt.Fprintf(os.Stderr, "%d issue(s) found\n", len(issues))
				os.Exit(1)
			}
			fmt.Println("OK")
		}),
	}
	cli.Root().AddCommand(checkCmd)

	// legend subcommand: resolve one cell's legend
	legendCmd := &cobra.Command{
		Use:   "legend <cell-id>",
		Short: "Print the resolved legend of a grid cell",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			svc := loadServices(cmd.Context(), opts)
			lang, _ := cmd.Flags().GetString("lang")
			body, err := api.NewAPIHandler(svc).CellLegend(args[0], svc.Langs.Match(lang, ""))
			if errors.Is(err, grid.ErrNoFeature) {
				fmt.Fprintf(os.Stderr, "No grid cell %q\n", args[0])
				os.Exit(1)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			useYAML, _ := cmd.Flags().GetBool("yaml")
			output(body, useYAML)
		}),
	}
	legendCmd.Flags().StringP("lang", "l", "", "Language code (defaults to the site default)")
	legendCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(legendCmd)

	cli.Run()
}
