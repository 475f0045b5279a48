// Package builder runs the release-aware documentation build: fetch recent
// releases, pick the latest published version, build every whitelisted branch
// and tag with the external generator, and post-process the output tree.
//
// The pipeline is a single linear run. Any failure aborts the whole run; there
// is no retry and no partial success.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/deepankarm/docver/internal/config"
	"github.com/deepankarm/docver/internal/events"
	"github.com/deepankarm/docver/internal/gitrepo"
	"github.com/deepankarm/docver/internal/history"
	"github.com/deepankarm/docver/internal/logfields"
	"github.com/deepankarm/docver/internal/metrics"
	"github.com/deepankarm/docver/internal/release"
	"github.com/deepankarm/docver/internal/site"
	"github.com/deepankarm/docver/internal/version"
	"github.com/deepankarm/docver/internal/workspace"
)

// ReleaseLister abstracts the release API client for testing.
type ReleaseLister interface {
	LastN(ctx context.Context, n int) ([]release.Release, error)
}

// Options control a single pipeline run.
type Options struct {
	// Development adds the current branch of the local clone to the branch
	// whitelist when it differs from the default branch.
	Development bool
	// PromoteLatest moves the latest version's output to the site root and
	// injects the version selector. Without it, a redirect page is written
	// instead.
	PromoteLatest bool
	// MissingOnly skips versions that already have output. Implies the output
	// directory is not cleaned first.
	MissingOnly bool
	// JobID labels the run in history and events; generated when empty.
	JobID string
}

// Result summarizes a completed run.
type Result struct {
	JobID     string
	Latest    string
	Versions  []string // versions built, branches first
	OutputDir string
	Duration  time.Duration
}

// Pipeline wires the collaborators of one build run.
type Pipeline struct {
	cfg       *config.Config
	releases  ReleaseLister
	recorder  metrics.Recorder
	publisher events.Publisher
	store     *history.Store
}

// New creates a pipeline with noop observability; use the With helpers to
// attach collaborators.
func New(cfg *config.Config, releases ReleaseLister) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		releases:  releases,
		recorder:  metrics.NoopRecorder{},
		publisher: events.NoopPublisher{},
	}
}

// WithRecorder attaches a metrics recorder (fluent helper).
func (p *Pipeline) WithRecorder(r metrics.Recorder) *Pipeline {
	if r != nil {
		p.recorder = r
	}
	return p
}

// WithPublisher attaches an event publisher (fluent helper).
func (p *Pipeline) WithPublisher(pub events.Publisher) *Pipeline {
	if pub != nil {
		p.publisher = pub
	}
	return p
}

// WithHistory attaches the build history store (fluent helper).
func (p *Pipeline) WithHistory(s *history.Store) *Pipeline { p.store = s; return p }

// Run executes the pipeline once.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	jobID := opts.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}

	result, err := p.run(ctx, jobID, opts)
	duration := time.Since(start)
	p.recorder.ObserveBuildDuration(duration)

	if err != nil {
		p.recorder.IncBuildOutcome("failed")
		p.publishEvent(ctx, events.Event{Type: events.TypeBuildFailed, JobID: jobID, Error: err.Error()})
		p.recordRun(ctx, history.Run{
			JobID: jobID, Outcome: "failed", Error: err.Error(),
			StartedAt: start, DurationMS: duration.Milliseconds(),
		})
		return nil, err
	}

	result.Duration = duration
	p.recorder.IncBuildOutcome("success")
	p.recorder.SetVersionsBuilt(len(result.Versions))
	p.publishEvent(ctx, events.Event{Type: events.TypeBuildCompleted, JobID: jobID, Latest: result.Latest})
	p.recordRun(ctx, history.Run{
		JobID: jobID, Latest: result.Latest, Versions: result.Versions,
		Outcome: "success", StartedAt: start, DurationMS: duration.Milliseconds(),
	})
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, jobID string, opts Options) (*Result, error) {
	cfg := p.cfg
	p.publishEvent(ctx, events.Event{Type: events.TypeBuildStarted, JobID: jobID})

	// Fetch the N most recent releases.
	fetchStart := time.Now()
	releases, err := p.releases.LastN(ctx, cfg.Releases.Count)
	if err != nil {
		return nil, fmt.Errorf("fetch releases: %w", err)
	}
	p.recorder.ObserveReleaseFetchDuration(time.Since(fetchStart))

	tags := release.Tags(releases)
	latest, err := version.SelectLatest(tags, cfg.Releases.Policy)
	if err != nil {
		return nil, err
	}
	if cfg.Releases.Policy == config.PolicyStable && len(tags) == 1 {
		slog.Warn("Only one release available, treating it as latest", logfields.Tag(latest))
	}
	slog.Info("Selected latest version",
		logfields.Tag(latest), slog.Int("releases", len(tags)), slog.String("policy", string(cfg.Releases.Policy)))

	// Whitelists.
	repo, err := gitrepo.Open(cfg.Repository.Path)
	if err != nil {
		return nil, err
	}
	current := ""
	if opts.Development {
		if current, err = repo.CurrentBranch(); err != nil {
			return nil, err
		}
	}
	branches := version.BranchWhitelist(current, cfg.Repository.DefaultBranch, opts.Development)
	versions := append(append([]string{}, branches...), tags...)
	slog.Info("Build whitelist computed",
		slog.Any("branches", branches), slog.Any("tags", tags))

	// Destructive prep: prior build output and the generated API-doc
	// directory are removed before rebuilding.
	outputDir := cfg.Output.Directory
	if cfg.Output.CleanEnabled() && !opts.MissingOnly {
		if err := os.RemoveAll(outputDir); err != nil {
			return nil, fmt.Errorf("clean output directory: %w", err)
		}
	}
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	if cfg.Output.APIDocDir != "" {
		apiDir := filepath.Join(cfg.Repository.Path, cfg.Output.APIDocDir)
		if err := os.RemoveAll(apiDir); err != nil {
			return nil, fmt.Errorf("remove generated API doc directory: %w", err)
		}
	}

	// Checkouts land in a throwaway workspace unless a persistent one is
	// configured, which keeps them around between runs.
	var ws *workspace.Manager
	if cfg.Builder.WorkspaceDir != "" {
		ws = workspace.NewPersistentManager(cfg.Builder.WorkspaceDir, "checkouts")
	} else {
		ws = workspace.NewManager("")
	}
	if err := ws.Create(); err != nil {
		return nil, err
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			slog.Warn("Failed to cleanup workspace", logfields.Error(err))
		}
	}()

	env := whitelistEnv(branches, tags, latest)

	var built []string
	for _, v := range versions {
		if opts.MissingOnly {
			if _, err := os.Stat(filepath.Join(outputDir, v)); err == nil {
				slog.Info("Version already built, skipping", logfields.Version(v))
				continue
			}
		}
		if err := p.buildVersion(ctx, repo, ws, v, outputDir, env); err != nil {
			return nil, err
		}
		built = append(built, v)
		p.publishEvent(ctx, events.Event{Type: events.TypeVersionBuilt, JobID: jobID, Version: v})
	}

	if err := p.postProcess(outputDir, latest, tags, releases, opts); err != nil {
		return nil, err
	}

	return &Result{JobID: jobID, Latest: latest, Versions: built, OutputDir: outputDir}, nil
}

// buildVersion materializes one branch/tag and runs the external generator in it.
func (p *Pipeline) buildVersion(ctx context.Context, repo *gitrepo.Repo, ws *workspace.Manager, v, outputDir string, env []string) error {
	start := time.Now()
	slog.Info("Building version", logfields.Version(v))

	checkout, err := ws.CreateSubdir(v)
	if err != nil {
		return err
	}
	if err := repo.Materialize(v, checkout); err != nil {
		p.recorder.ObserveVersionBuildDuration(v, time.Since(start), false)
		return err
	}

	docsDir := filepath.Join(checkout, p.cfg.Builder.DocsDir)
	if err := runGenerator(ctx, p.cfg.Builder, docsDir, append(env, "DOCVER_VERSION="+v)); err != nil {
		p.recorder.ObserveVersionBuildDuration(v, time.Since(start), false)
		return fmt.Errorf("build version %s: %w", v, err)
	}

	buildOut := filepath.Join(docsDir, p.cfg.Builder.BuildDir)
	dest := filepath.Join(outputDir, v)
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("clean version output: %w", err)
	}
	if err := copyTree(buildOut, dest); err != nil {
		p.recorder.ObserveVersionBuildDuration(v, time.Since(start), false)
		return fmt.Errorf("collect output for %s: %w", v, err)
	}

	p.recorder.ObserveVersionBuildDuration(v, time.Since(start), true)
	slog.Info("Version built", logfields.Version(v),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return nil
}

// postProcess writes the release notes page and either promotes the latest
// version to the site root (with version selectors) or writes the redirect page.
func (p *Pipeline) postProcess(outputDir, latest string, tags []string, releases []release.Release, opts Options) error {
	notes := make([]site.Note, 0, len(releases))
	for _, r := range releases {
		notes = append(notes, site.Note{Tag: r.TagName, Title: r.Name, Body: r.Body})
	}
	if err := site.WriteNotes(outputDir, notes); err != nil {
		return err
	}

	if !opts.PromoteLatest {
		return site.WriteRedirect(outputDir, latest)
	}

	if err := site.PromoteLatest(outputDir, latest); err != nil {
		return err
	}
	dropdown := version.DropdownOrder(p.cfg.Repository.DefaultBranch, tags, true)
	for _, v := range dropdown {
		if _, err := os.Stat(filepath.Join(outputDir, v)); err != nil && v != latest {
			continue // version not built (e.g. default branch outside dev mode)
		}
		if err := site.UpdateDropdowns(outputDir, v, latest, dropdown); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) publishEvent(ctx context.Context, ev events.Event) {
	if err := p.publisher.Publish(ctx, ev); err != nil {
		slog.Warn("Failed to publish build event", slog.String("type", ev.Type), logfields.Error(err))
	}
}

func (p *Pipeline) recordRun(ctx context.Context, run history.Run) {
	if p.store == nil {
		return
	}
	if err := p.store.Record(ctx, run); err != nil {
		slog.Warn("Failed to record build run", logfields.Error(err))
	}
}
