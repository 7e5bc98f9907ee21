package adapters

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"autobuild/internal/ports"
	"autobuild/internal/shared"
)

// GitSourceTreeAdapter keeps package source checkouts with the git CLI.
type GitSourceTreeAdapter struct {
	Binary string
}

func NewGitSourceTreeAdapter() GitSourceTreeAdapter {
	return GitSourceTreeAdapter{Binary: "git"}
}

// Check reports whether the git binary can be found.
func (a GitSourceTreeAdapter) Check(context.Context) error {
	if _, err := exec.LookPath(a.binary()); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("git not in PATH").
			WithCause(err)
	}
	return nil
}

func (a GitSourceTreeAdapter) Prepare(ctx context.Context, url string, path string) error {
	if strings.TrimSpace(url) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("repository url is empty")
	}
	_, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Ctx(ctx).Info().Str("url", url).Str("path", path).Msg("cloning")
		return a.run(ctx, "", "clone", url, path)
	case err != nil:
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to inspect checkout %s", path)).
			WithCause(err)
	}
	if err := a.run(ctx, path, "fetch", "origin"); err != nil {
		return err
	}
	if err := a.run(ctx, path, "remote", "set-head", "origin", "--auto"); err != nil {
		return err
	}
	return a.run(ctx, path, "reset", "--hard", "origin/HEAD")
}

func (a GitSourceTreeAdapter) Clean(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("checkout %s is missing", path)).
			WithCause(err)
	}
	if err := a.run(ctx, path, "clean", "-xfdf"); err != nil {
		return err
	}
	return a.run(ctx, path, "reset", "--hard", "HEAD")
}

func (a GitSourceTreeAdapter) run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, a.binary(), args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("git %s failed", args[0])).
			WithCause(shared.CommandError(output, err))
	}
	return nil
}

func (a GitSourceTreeAdapter) binary() string {
	if a.Binary == "" {
		return "git"
	}
	return a.Binary
}

var (
	_ ports.SourceTreePort       = GitSourceTreeAdapter{}
	_ ports.EnvironmentCheckPort = GitSourceTreeAdapter{}
)
