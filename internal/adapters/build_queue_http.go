package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"autobuild/internal/ports"
	"autobuild/internal/shared"
	"autobuild/internal/types"
)

const (
	DefaultQueueURL         = "https://packages.msys2.org/api/buildqueue"
	DefaultSystemRepoPrefix = "MSYS2"
)

type queueDescriptor struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	RepoURL  string   `json:"repo_url"`
	RepoPath string   `json:"repo_path"`
	Packages []string `json:"packages"`
	Depends  []string `json:"depends"`
}

// BuildQueueHTTPAdapter fetches the build queue from the package index.
type BuildQueueHTTPAdapter struct {
	URL              string
	SystemRepoPrefix string
	client           *http.Client
}

func NewBuildQueueHTTPAdapter(url string, systemRepoPrefix string, timeout time.Duration) BuildQueueHTTPAdapter {
	if strings.TrimSpace(url) == "" {
		url = DefaultQueueURL
	}
	if strings.TrimSpace(systemRepoPrefix) == "" {
		systemRepoPrefix = DefaultSystemRepoPrefix
	}
	return BuildQueueHTTPAdapter{
		URL:              strings.TrimSpace(url),
		SystemRepoPrefix: systemRepoPrefix,
		client:           newTransferClient(timeout),
	}
}

func (a BuildQueueHTTPAdapter) Fetch(ctx context.Context) ([]types.QueueEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to create build queue request").
			WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("build queue request failed").
			WithCause(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read build queue").
			WithCause(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("build queue request failed").
			WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, a.URL, strings.TrimSpace(string(body))))
	}
	entries, err := a.decode(body)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Debug().Int("entries", len(entries)).Str("url", a.URL).Msg("build queue fetched")
	return entries, nil
}

func (a BuildQueueHTTPAdapter) decode(body []byte) ([]types.QueueEntry, error) {
	var descriptors []queueDescriptor
	if err := json.Unmarshal(body, &descriptors); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("malformed build queue").
			WithCause(err)
	}
	entries := make([]types.QueueEntry, 0, len(descriptors))
	for i, item := range descriptors {
		repo := repoFromURL(item.RepoURL)
		if repo == "" {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("build queue entry %d (%s) has no repo url", i, item.Name))
		}
		kind := types.SourceKindExtension
		if strings.HasPrefix(repo, a.SystemRepoPrefix) {
			kind = types.SourceKindSystem
		}
		entries = append(entries, types.QueueEntry{
			Name:     item.Name,
			Version:  item.Version,
			RepoURL:  item.RepoURL,
			RepoPath: item.RepoPath,
			Repo:     repo,
			Kind:     kind,
			Packages: item.Packages,
			Depends:  item.Depends,
		})
	}
	return entries, nil
}

func repoFromURL(url string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(url), "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

var _ ports.BuildQueuePort = BuildQueueHTTPAdapter{}
