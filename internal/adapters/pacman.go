package adapters

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"autobuild/internal/ports"
	"autobuild/internal/shared"
	"autobuild/internal/types"
)

const (
	pacmanConfPath   = "etc/pacman.conf"
	backupSuffix     = ".backup"
	optionsSection   = "options"
	neverSigLevel    = "Never"
	pacmanConfigMode = 0o644
)

// PacmanAdapter drives pacman and repo-add inside the MSYS2 shell.
type PacmanAdapter struct {
	Shell ports.CommandPort
}

func NewPacmanAdapter(shell ports.CommandPort) PacmanAdapter {
	return PacmanAdapter{Shell: shell}
}

func (a PacmanAdapter) Sync(ctx context.Context, mode types.SyncMode) error {
	flag := "-Suy"
	if mode == types.SyncDowngrade {
		flag = "-Suuy"
	}
	return a.Shell.Run(ctx, types.Command{Args: []string{"pacman", "--noconfirm", flag}})
}

func (a PacmanAdapter) RepoAdd(ctx context.Context, dbPath string, packagePath string) error {
	return a.Shell.Run(ctx, types.Command{
		Dir:  filepath.Dir(dbPath),
		Args: []string{"repo-add", shared.ToPosixPath(dbPath), shared.ToPosixPath(packagePath)},
	})
}

func (a PacmanAdapter) RepositoryURI(dir string) string {
	return (&url.URL{Scheme: "file", Path: shared.ToPosixPath(dir)}).String()
}

// PacmanConfAdapter edits pacman.conf of an MSYS2 root. Backup copies the
// file aside and Restore moves the copy back in one rename.
type PacmanConfAdapter struct {
	Path string
}

func NewPacmanConfAdapter(root string) PacmanConfAdapter {
	return PacmanConfAdapter{Path: filepath.Join(root, filepath.FromSlash(pacmanConfPath))}
}

func (a PacmanConfAdapter) backupPath() string {
	return a.Path + backupSuffix
}

func (a PacmanConfAdapter) Backup() error {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to read pacman.conf").
			WithCause(err)
	}
	mode := os.FileMode(pacmanConfigMode)
	if info, err := os.Stat(a.Path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(a.backupPath(), data, mode); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to back up pacman.conf").
			WithCause(err)
	}
	return nil
}

// AddRepository registers a repository ahead of every other repository so
// its packages win. Nothing changes when serverURI is already configured.
func (a PacmanConfAdapter) AddRepository(name string, serverURI string) error {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to read pacman.conf").
			WithCause(err)
	}
	if bytes.Contains(data, []byte(serverURI)) {
		return nil
	}
	updated := insertRepository(data, name, serverURI)
	info, err := os.Stat(a.Path)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to stat pacman.conf").
			WithCause(err)
	}
	if err := os.WriteFile(a.Path, updated, info.Mode().Perm()); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write pacman.conf").
			WithCause(err)
	}
	return nil
}

func (a PacmanConfAdapter) Restore() error {
	if err := os.Rename(a.backupPath(), a.Path); err != nil {
		code := errbuilder.CodeInternal
		if errors.Is(err, os.ErrNotExist) {
			code = errbuilder.CodeFailedPrecondition
		}
		return errbuilder.New().
			WithCode(code).
			WithMsg("failed to restore pacman.conf").
			WithCause(err)
	}
	return nil
}

func insertRepository(data []byte, name string, serverURI string) []byte {
	stanza := fmt.Sprintf("[%s]\nServer = %s\nSigLevel = %s\n\n", name, serverURI, neverSigLevel)
	offset := firstRepositoryOffset(data)
	if offset < 0 {
		out := append([]byte(nil), data...)
		if len(out) > 0 && !bytes.HasSuffix(out, []byte("\n")) {
			out = append(out, '\n')
		}
		if len(out) > 0 {
			out = append(out, '\n')
		}
		return append(out, stanza...)
	}
	out := make([]byte, 0, len(data)+len(stanza))
	out = append(out, data[:offset]...)
	out = append(out, stanza...)
	return append(out, data[offset:]...)
}

// firstRepositoryOffset returns the byte offset of the first section header
// other than [options], or -1.
func firstRepositoryOffset(data []byte) int {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Split(scanLinesKeepEnds)
	offset := 0
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			section := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
			if section != optionsSection {
				return offset
			}
		}
		offset += len(line)
	}
	return -1
}

func scanLinesKeepEnds(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i+1], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var (
	_ ports.PackageManagerPort = PacmanAdapter{}
	_ ports.PackageConfigPort  = PacmanConfAdapter{}
)
