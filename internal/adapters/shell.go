package adapters

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"autobuild/internal/ports"
	"autobuild/internal/types"
)

const shellWaitDelay = 10 * time.Second

// shellEnv makes the login shell start in the working directory with the
// plain MSYS environment and a minimal PATH.
var shellEnv = map[string]string{
	"CHERE_INVOKING":  "1",
	"MSYSTEM":         "MSYS",
	"MSYS2_PATH_TYPE": "minimal",
}

// MSYS2ShellAdapter runs commands through the login shell of an MSYS2
// installation.
type MSYS2ShellAdapter struct {
	Root   string
	Shell  string
	Stdout io.Writer
	Stderr io.Writer
}

func NewMSYS2ShellAdapter(root string) MSYS2ShellAdapter {
	shell := filepath.Join(root, "usr", "bin", "bash")
	if runtime.GOOS == "windows" {
		shell += ".exe"
	}
	return MSYS2ShellAdapter{Root: root, Shell: shell, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run quotes the arguments into a single script line. The process is
// killed once ctx is done.
func (a MSYS2ShellAdapter) Run(ctx context.Context, command types.Command) error {
	script := shellescape.QuoteCommand(command.Args)
	cmd := exec.CommandContext(ctx, a.Shell, "-lc", script)
	cmd.Dir = command.Dir
	cmd.Env = mergeEnv(os.Environ(), shellEnv, command.Env)
	cmd.Stdout = writerOrDiscard(a.Stdout)
	cmd.Stderr = writerOrDiscard(a.Stderr)
	cmd.WaitDelay = shellWaitDelay
	log.Ctx(ctx).Debug().Str("dir", command.Dir).Str("script", script).Msg("running command")
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("command failed: %s", script)).
			WithCause(err)
	}
	return nil
}

// Check runs an empty script to prove the installation is usable.
func (a MSYS2ShellAdapter) Check(ctx context.Context) error {
	if err := a.Run(ctx, types.Command{}); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("msys2 root %s is not functional", a.Root)).
			WithCause(err)
	}
	return nil
}

func mergeEnv(base []string, layers ...map[string]string) []string {
	merged := append([]string(nil), base...)
	for _, layer := range layers {
		keys := make([]string, 0, len(layer))
		for key := range layer {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			merged = append(merged, key+"="+layer[key])
		}
	}
	return merged
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

var (
	_ ports.CommandPort          = MSYS2ShellAdapter{}
	_ ports.EnvironmentCheckPort = MSYS2ShellAdapter{}
)
