package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"autobuild/internal/ports"
	"autobuild/internal/types"
)

const (
	PhaseBinary = "build"
	PhaseSource = "source"
)

var failureMarkerContent = []byte("build failed\n")

type RunnerConfig struct {
	Store    ports.ArtifactStorePort
	Sources  ports.SourceTreePort
	Builder  ports.PackageBuilderPort
	Env      Environment
	Budget   Budget
	BuildDir string
	Clock    func() time.Time
}

// BuildRunner builds TODO entries one at a time against a shared time
// budget.
type BuildRunner struct {
	store    ports.ArtifactStorePort
	sources  ports.SourceTreePort
	builder  ports.PackageBuilderPort
	stager   Stager
	env      Environment
	budget   Budget
	buildDir string
	now      func() time.Time
}

func NewBuildRunner(cfg RunnerConfig) BuildRunner {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return BuildRunner{
		store:    cfg.Store,
		sources:  cfg.Sources,
		builder:  cfg.Builder,
		stager:   NewStager(cfg.Store),
		env:      cfg.Env,
		budget:   cfg.Budget,
		buildDir: cfg.BuildDir,
		now:      now,
	}
}

// Run builds the nodes in order. Missing dependencies and build failures
// are recorded and the run moves on; a timeout stops the run and leaves
// the rest unbuilt. Any other error aborts the run and is returned along
// with the report so far.
func (r BuildRunner) Run(ctx context.Context, todo []*Node) (types.RunReport, error) {
	report := types.RunReport{
		StartedAt:   r.now(),
		Built:       []string{},
		Failed:      []string{},
		MissingDeps: []string{},
		Remaining:   []string{},
	}

	for i, node := range todo {
		logger := log.Ctx(ctx).With().Str("package", node.Name()).Str("repo", node.Entry.Repo).Logger()
		logger.Info().Msg("building")
		err := r.BuildPackage(logger.WithContext(ctx), node)

		var restoreErr *RestoreError
		var missingErr *MissingDependencyError
		var timeoutErr *BuildTimeoutError
		var buildErr *BuildError
		switch {
		case err == nil:
			logger.Info().Msg("built")
			report.Built = append(report.Built, node.Name())
		case errors.As(err, &restoreErr):
			report.FinishedAt = r.now()
			return report, err
		case errors.As(err, &missingErr):
			logger.Warn().Err(err).Msg("missing dependencies")
			report.MissingDeps = append(report.MissingDeps, node.Name())
		case errors.As(err, &timeoutErr):
			logger.Warn().Err(err).Msg("build budget exhausted")
			report.TimedOut = node.Name()
			for _, rest := range todo[i+1:] {
				report.Remaining = append(report.Remaining, rest.Name())
			}
			report.FinishedAt = r.now()
			return report, nil
		case errors.As(err, &buildErr):
			logger.Error().Err(err).Msg("build failed")
			report.Failed = append(report.Failed, node.Name())
		default:
			report.FinishedAt = r.now()
			return report, err
		}
	}
	report.FinishedAt = r.now()
	return report, nil
}

// BuildPackage checks out the node's sources, builds it with its
// dependencies staged and publishes the outputs or failure markers. The
// checkout is cleaned afterwards whatever the outcome.
func (r BuildRunner) BuildPackage(ctx context.Context, node *Node) (err error) {
	assert.NotEmpty(ctx, r.buildDir, "build dir must be set")
	entry := node.Entry
	if err := os.MkdirAll(r.buildDir, 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create build dir").
			WithCause(err)
	}
	sourceDir := filepath.Join(r.buildDir, SourceDir(entry.Repo))
	if err := r.sources.Prepare(ctx, entry.RepoURL, sourceDir); err != nil {
		return err
	}
	defer func() {
		if cleanErr := r.sources.Clean(context.WithoutCancel(ctx), sourceDir); cleanErr != nil {
			log.Ctx(ctx).Error().Err(cleanErr).Str("path", sourceDir).Msg("failed to clean sources")
			err = errors.Join(err, &RestoreError{Op: "clean sources", Cause: cleanErr})
		}
	}()

	packageDir := filepath.Join(sourceDir, filepath.FromSlash(entry.RepoPath))
	return r.stager.With(ctx, r.env, node, func(ctx context.Context) error {
		if err := r.build(ctx, node, packageDir); err != nil {
			return err
		}
		return r.publish(ctx, entry, packageDir)
	})
}

func (r BuildRunner) build(ctx context.Context, node *Node, packageDir string) error {
	entry := node.Entry
	phases := []struct {
		name string
		run  func(ctx context.Context, dir string, kind types.SourceKind) error
	}{
		{name: PhaseBinary, run: r.builder.BuildBinary},
		{name: PhaseSource, run: r.builder.BuildSource},
	}
	for _, phase := range phases {
		err := r.runPhase(ctx, func(ctx context.Context) error {
			return phase.run(ctx, packageDir, entry.Kind)
		})
		if err == nil {
			continue
		}
		var timeoutErr *BuildTimeoutError
		if errors.As(err, &timeoutErr) {
			timeoutErr.Package = entry.Name
			timeoutErr.Phase = phase.name
			return timeoutErr
		}
		if ctx.Err() != nil {
			return err
		}
		if markErr := r.markFailed(ctx, entry); markErr != nil {
			return errors.Join(err, markErr)
		}
		return &BuildError{Package: entry.Name, Phase: phase.name, Cause: err}
	}
	return nil
}

// runPhase bounds fn by the remaining budget. An exhausted budget fails
// without calling fn.
func (r BuildRunner) runPhase(ctx context.Context, fn func(ctx context.Context) error) error {
	remaining := r.budget.Remaining()
	if remaining <= 0 {
		return &BuildTimeoutError{}
	}
	phaseCtx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()
	err := fn(phaseCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(phaseCtx.Err(), context.DeadlineExceeded) {
		return &BuildTimeoutError{Cause: err}
	}
	return err
}

func (r BuildRunner) markFailed(ctx context.Context, entry types.QueueEntry) error {
	dir, err := os.MkdirTemp("", "autobuild-failed-")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create marker dir").
			WithCause(err)
	}
	defer os.RemoveAll(dir)
	for _, item := range entry.Packages {
		path := filepath.Join(dir, FailureMarkerName(item, entry.Version))
		if err := os.WriteFile(path, failureMarkerContent, 0o644); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to write marker %s", path)).
				WithCause(err)
		}
		if err := r.store.Upload(ctx, types.ChannelFailed, path, true); err != nil {
			return err
		}
	}
	return nil
}

func (r BuildRunner) publish(ctx context.Context, entry types.QueueEntry, packageDir string) error {
	files, err := os.ReadDir(packageDir)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to read %s", packageDir)).
			WithCause(err)
	}
	channel := types.ChannelForKind(entry.Kind)
	published := 0
	for _, file := range files {
		if file.IsDir() || !IsBuildOutput(file.Name()) {
			continue
		}
		if err := r.store.Upload(ctx, channel, filepath.Join(packageDir, file.Name()), true); err != nil {
			return err
		}
		published++
	}
	log.Ctx(ctx).Info().Int("files", published).Str("channel", string(channel)).Msg("outputs published")
	return nil
}

// LogClassification logs one line per entry with its outcome.
func LogClassification(logger *zerolog.Logger, classification types.Classification) {
	for _, entry := range classification.Done {
		logger.Info().Str("package", entry.Name).Str("version", entry.Version).Msg(string(types.OutcomeDone))
	}
	for _, skipped := range classification.Skipped {
		logger.Info().Str("package", skipped.Entry.Name).Str("version", skipped.Entry.Version).Str("reason", skipped.Reason).Msg(string(types.OutcomeSkipped))
	}
	for _, entry := range classification.Todo {
		logger.Info().Str("package", entry.Name).Str("version", entry.Version).Msg(string(types.OutcomeTodo))
	}
}
