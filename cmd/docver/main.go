package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/deepankarm/docver/internal/builder"
	"github.com/deepankarm/docver/internal/config"
	"github.com/deepankarm/docver/internal/daemon"
	"github.com/deepankarm/docver/internal/events"
	"github.com/deepankarm/docver/internal/history"
	"github.com/deepankarm/docver/internal/logfields"
	"github.com/deepankarm/docver/internal/metrics"
	"github.com/deepankarm/docver/internal/preview"
	"github.com/deepankarm/docver/internal/provision"
	"github.com/deepankarm/docver/internal/release"
	"github.com/deepankarm/docver/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"docver.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Development   string `arg:"" optional:"" help:"Pass 'development' to add the current branch to the build whitelist"`
		Output        string `short:"o" help:"Override the configured output directory"`
		MissingOnly   bool   `help:"Only build versions without existing output"`
		PromoteLatest bool   `help:"Move the latest version's output to the site root"`
	} `cmd:"" help:"Build versioned documentation for recent releases"`

	Releases struct {
		Count int `short:"n" help:"Override the configured release count"`
	} `cmd:"" help:"List the releases a build would use"`

	Status struct{} `cmd:"" help:"Show built and missing versions in the output directory"`

	History struct {
		Limit int `short:"n" default:"10" help:"Number of runs to show"`
	} `cmd:"" help:"Show recent build runs"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Daemon struct{} `cmd:"" help:"Run periodic builds on the configured interval"`

	Serve struct {
		Port int `short:"p" default:"8080" help:"Port to serve the built site on"`
	} `cmd:"" help:"Serve the built documentation locally"`

	Provision struct {
		Branch string `arg:"" help:"Branch name the harness is provisioned for"`
	} `cmd:"" help:"Provision the two-instance test harness"`

	Teardown struct {
		Branch string `arg:"" help:"Branch name the harness was provisioned for"`
	} `cmd:"" help:"Tear down the test harness"`
}

func main() {
	kctx := kong.Parse(&CLI)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch kctx.Command() {
	case "build", "build <development>":
		err = runBuild(ctx)
	case "releases":
		err = runReleases(ctx)
	case "status":
		err = runStatus(ctx)
	case "history":
		err = runHistory(ctx)
	case "init":
		err = config.Init(CLI.Config, CLI.Init.Force)
	case "daemon":
		err = runDaemon(ctx)
	case "serve":
		err = runServe(ctx)
	case "provision <branch>":
		err = runProvision(ctx, CLI.Provision.Branch)
	case "teardown <branch>":
		err = runTeardown(ctx, CLI.Teardown.Branch)
	default:
		err = fmt.Errorf("unknown command: %s", kctx.Command())
	}
	if err != nil {
		slog.Error("Command failed", slog.String("command", kctx.Command()), logfields.Error(err))
		os.Exit(1)
	}
}

// newRecorder returns a Prometheus recorder when metrics are enabled, nil
// otherwise (the pipeline falls back to its noop recorder).
func newRecorder(cfg *config.Config, registry *prom.Registry) metrics.Recorder {
	if cfg.Metrics == nil || !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.NewPrometheusRecorder(registry)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	config.SetupLogging(cfg.Logging, CLI.Verbose)
	return cfg, nil
}

// newPipeline wires a pipeline with the optional collaborators the
// configuration enables. The recorder is created once by the caller because
// Prometheus collectors can only be registered once per registry. The returned
// cleanup must run after the build.
func newPipeline(ctx context.Context, cfg *config.Config, recorder metrics.Recorder) (*builder.Pipeline, func(), error) {
	client := release.NewClient(cfg.Repository.Owner, cfg.Repository.Name, cfg.Repository.Token)
	p := builder.New(cfg, client).WithRecorder(recorder)

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	if cfg.Events != nil && cfg.Events.Enabled {
		pub, err := events.NewNATSPublisher(ctx, cfg.Events)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		p = p.WithPublisher(pub)
		cleanups = append(cleanups, pub.Close)
	}
	if cfg.History != nil && cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		p = p.WithHistory(store)
		cleanups = append(cleanups, func() {
			if err := store.Close(); err != nil {
				slog.Warn("Failed to close history store", logfields.Error(err))
			}
		})
	}
	return p, cleanup, nil
}

// developmentMode interprets the optional positional build argument.
func developmentMode(arg string) (bool, error) {
	switch arg {
	case "":
		return false, nil
	case "development":
		return true, nil
	default:
		return false, fmt.Errorf("unknown build mode %q (expected 'development' or nothing)", arg)
	}
}

func runBuild(ctx context.Context) error {
	development, err := developmentMode(CLI.Build.Development)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if CLI.Build.Output != "" {
		cfg.Output.Directory = CLI.Build.Output
	}

	p, cleanup, err := newPipeline(ctx, cfg, newRecorder(cfg, prom.NewRegistry()))
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := p.Run(ctx, builder.Options{
		Development:   development,
		MissingOnly:   CLI.Build.MissingOnly,
		PromoteLatest: CLI.Build.PromoteLatest,
	})
	if err != nil {
		return err
	}

	slog.Info("Build completed",
		logfields.JobID(result.JobID),
		logfields.Tag(result.Latest),
		slog.Int("versions", len(result.Versions)),
		logfields.Path(result.OutputDir),
		slog.Duration("duration", result.Duration))
	return nil
}

func runReleases(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	count := cfg.Releases.Count
	if CLI.Releases.Count > 0 {
		count = CLI.Releases.Count
	}

	client := release.NewClient(cfg.Repository.Owner, cfg.Repository.Name, cfg.Repository.Token)
	releases, err := client.LastN(ctx, count)
	if err != nil {
		return err
	}

	latest, err := version.SelectLatest(release.Tags(releases), cfg.Releases.Policy)
	if err != nil {
		return err
	}
	for _, r := range releases {
		marker := " "
		if r.TagName == latest {
			marker = "*"
		}
		fmt.Printf("%s %-16s %s\n", marker, r.TagName, r.PublishedAt.Format("2006-01-02"))
	}
	return nil
}

func runStatus(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := release.NewClient(cfg.Repository.Owner, cfg.Repository.Name, cfg.Repository.Token)
	releases, err := client.LastN(ctx, cfg.Releases.Count)
	if err != nil {
		return err
	}

	expected := version.DropdownOrder(cfg.Repository.DefaultBranch, release.Tags(releases), true)
	version.SortVersions(expected)

	for _, v := range expected {
		state := "missing"
		if _, err := os.Stat(filepath.Join(cfg.Output.Directory, v, "index.html")); err == nil {
			state = "built"
		}
		fmt.Printf("%-16s %s\n", v, state)
	}
	return nil
}

func runHistory(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.History == nil || !cfg.History.Enabled {
		return fmt.Errorf("history is not enabled in the configuration")
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Recent(ctx, CLI.History.Limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %-8s latest=%-12s versions=%d  %dms\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Outcome, r.Latest, len(r.Versions), r.DurationMS)
	}
	return nil
}

func runDaemon(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry := prom.NewRegistry()
	recorder := newRecorder(cfg, registry)
	build := func(ctx context.Context, cfg *config.Config, jobID string) error {
		p, cleanup, err := newPipeline(ctx, cfg, recorder)
		if err != nil {
			return err
		}
		defer cleanup()

		opts := builder.Options{JobID: jobID}
		if cfg.Daemon != nil {
			opts.Development = cfg.Daemon.Development
		}
		_, err = p.Run(ctx, opts)
		return err
	}

	d := daemon.New(cfg, build, registry)

	watcher, err := daemon.NewConfigWatcher(CLI.Config, d)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	return d.Run(ctx)
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return preview.Serve(ctx, cfg.Output.Directory, CLI.Serve.Port)
}

func runProvision(ctx context.Context, branch string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	h, err := provision.NewFromConfig(cfg.Harness)
	if err != nil {
		return err
	}

	result, err := h.Provision(ctx, branch)
	if err != nil {
		return err
	}
	for _, inst := range result.Instances {
		fmt.Printf("%-24s %s\n", inst.Name, inst.IP)
	}
	return nil
}

func runTeardown(ctx context.Context, branch string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	h, err := provision.NewFromConfig(cfg.Harness)
	if err != nil {
		return err
	}
	return h.Teardown(ctx, branch)
}
