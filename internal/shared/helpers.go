// Package shared provides small helpers used by both the adapters and the
// application layer.
package shared

import (
	"fmt"
	"strings"
)

// HTTPStatusError creates a formatted error for non-2xx HTTP responses.
func HTTPStatusError(status int, url string) error {
	return fmt.Errorf("status=%d url=%s", status, url)
}

// HTTPStatusErrorWithBody creates a formatted error that includes the
// response body for non-2xx HTTP responses.
func HTTPStatusErrorWithBody(status int, url string, body string) error {
	return fmt.Errorf("status=%d url=%s response=%s", status, url, body)
}

// CommandError wraps a command execution error with its trimmed output
// for cleaner error messages.
func CommandError(output []byte, err error) error {
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return err
	}
	return fmt.Errorf("%s: %w", trimmed, err)
}

// ToPosixPath converts a native Windows path such as C:\msys64\tmp into
// the /C/msys64/tmp form the MSYS2 tools expect. Paths that are already
// POSIX style are returned unchanged.
func ToPosixPath(path string) string {
	if len(path) >= 2 && path[1] == ':' {
		rest := strings.ReplaceAll(path[2:], `\`, "/")
		if !strings.HasPrefix(rest, "/") {
			rest = "/" + rest
		}
		return "/" + path[:1] + rest
	}
	return strings.ReplaceAll(path, `\`, "/")
}
