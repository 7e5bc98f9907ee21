package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"autobuild/internal/core"
	"autobuild/internal/types"
)

// Build classifies the queue and builds every TODO entry in queue order.
// The time budget starts counting before anything else happens.
func (s Service) Build(ctx context.Context, req BuildRequest) (BuildResult, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = core.DefaultBuildTimeout
	}
	budget := core.NewBudget(timeout, s.Clock)

	root, err := existingDir(req.MSYS2Root, "msys2 root")
	if err != nil {
		return BuildResult{}, err
	}
	buildDir := strings.TrimSpace(req.BuildDir)
	if buildDir == "" {
		return BuildResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("build directory is required")
	}
	buildDir, err = filepath.Abs(buildDir)
	if err != nil {
		return BuildResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid build directory").
			WithCause(err)
	}

	if err := s.SourceCheck.Check(ctx); err != nil {
		return BuildResult{}, err
	}
	toolchain := s.Toolchain(root)
	if err := toolchain.Shell.Check(ctx); err != nil {
		return BuildResult{}, err
	}

	graph, classification, err := s.classify(ctx)
	if err != nil {
		return BuildResult{}, err
	}
	core.LogClassification(log.Ctx(ctx), classification)

	todo := make([]*core.Node, 0, len(classification.Todo))
	for _, entry := range classification.Todo {
		node, ok := graph.Node(entry.Name)
		if !ok {
			return BuildResult{}, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("classified entry %s is not in the build graph", entry.Name))
		}
		todo = append(todo, node)
	}

	runner := core.NewBuildRunner(core.RunnerConfig{
		Store:   s.Store,
		Sources: s.Sources,
		Builder: toolchain.Builder,
		Env: core.Environment{
			PackageManager: toolchain.PackageManager,
			Config:         toolchain.Config,
			StagingRoot:    filepath.Join(buildDir, core.StagingDirName),
		},
		Budget:   budget,
		BuildDir: buildDir,
		Clock:    s.Clock,
	})
	run, runErr := runner.Run(ctx, todo)
	result := BuildResult{Classification: classification, Run: run}

	if req.ReportPath != "" {
		report := types.Report{Classification: classification, Run: &run}
		if err := s.Reports.Write(req.ReportPath, report); err != nil {
			if runErr != nil {
				log.Ctx(ctx).Error().Err(err).Str("path", req.ReportPath).Msg("failed to write report")
				return result, runErr
			}
			return result, err
		}
	}
	return result, runErr
}

func existingDir(path string, what string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(what + " is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s %s not found", what, path)).
			WithCause(err)
	}
	if !info.IsDir() {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s %s is not a directory", what, path))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid %s %s", what, path)).
			WithCause(err)
	}
	return abs, nil
}
