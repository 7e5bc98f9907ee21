package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"autobuild/internal/ports"
	"autobuild/internal/shared"
	"autobuild/internal/types"
)

const (
	DefaultGitHubAPIURL    = "https://api.github.com"
	DefaultArtifactRepo    = "msys2/msys2-devtools"
	DefaultTrustedLogin    = "github-actions[bot]"
	DefaultTrustedType     = "Bot"
	defaultGitHubRetries   = 3
	defaultGitHubDelay     = 200 * time.Millisecond
	maxGitHubRetryDelay    = 2 * time.Second
	defaultTransferTimeout = 15 * time.Second
	downloadChunkSize      = 4096
	assetsPerPage          = 100
)

// DefaultTrustedIdentity is the automation account every published asset
// must come from.
var DefaultTrustedIdentity = types.Identity{Login: DefaultTrustedLogin, Type: DefaultTrustedType}

type GitHubCredentials struct {
	Token    string
	Username string
	Password string
}

func (c GitHubCredentials) Empty() bool {
	return strings.TrimSpace(c.Token) == "" && (strings.TrimSpace(c.Username) == "" || c.Password == "")
}

type GitHubStoreOptions struct {
	APIURL         string
	Repo           string
	Credentials    GitHubCredentials
	Trusted        types.Identity
	PublishEnabled bool
	Retries        int
	RetryDelay     time.Duration
	Timeout        time.Duration
}

// GitHubStoreAdapter keeps artifacts as assets of one release per channel,
// tagged with the channel name.
type GitHubStoreAdapter struct {
	APIURL         string
	Repo           string
	Credentials    GitHubCredentials
	Trusted        types.Identity
	PublishEnabled bool
	Retries        int
	RetryDelay     time.Duration
	client         *http.Client
}

type githubUser struct {
	Login string `json:"login"`
	Type  string `json:"type"`
}

type githubRelease struct {
	ID        int64  `json:"id"`
	TagName   string `json:"tag_name"`
	UploadURL string `json:"upload_url"`
}

type githubAsset struct {
	ID                 int64      `json:"id"`
	Name               string     `json:"name"`
	Size               int64      `json:"size"`
	BrowserDownloadURL string     `json:"browser_download_url"`
	CreatedAt          string     `json:"created_at"`
	UpdatedAt          string     `json:"updated_at"`
	Uploader           githubUser `json:"uploader"`
}

func NewGitHubStoreAdapter(opts GitHubStoreOptions) GitHubStoreAdapter {
	apiURL := strings.TrimRight(strings.TrimSpace(opts.APIURL), "/")
	if apiURL == "" {
		apiURL = DefaultGitHubAPIURL
	}
	repo := strings.Trim(strings.TrimSpace(opts.Repo), "/")
	if repo == "" {
		repo = DefaultArtifactRepo
	}
	trusted := opts.Trusted
	if trusted.Login == "" && trusted.Type == "" {
		trusted = DefaultTrustedIdentity
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = defaultGitHubRetries
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = defaultGitHubDelay
	}
	return GitHubStoreAdapter{
		APIURL:         apiURL,
		Repo:           repo,
		Credentials:    opts.Credentials,
		Trusted:        trusted,
		PublishEnabled: opts.PublishEnabled,
		Retries:        retries,
		RetryDelay:     delay,
		client:         newTransferClient(opts.Timeout),
	}
}

// newTransferClient bounds connecting and waiting for response headers but
// not reading the body, so large downloads are never cut off mid-stream.
func newTransferClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTransferTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport}
}

// CurrentIdentity returns the account the credentials authenticate as.
func (a GitHubStoreAdapter) CurrentIdentity(ctx context.Context) (types.Identity, error) {
	var user githubUser
	if err := a.getJSON(ctx, a.APIURL+"/user", &user); err != nil {
		return types.Identity{}, err
	}
	return types.Identity{Login: user.Login, Type: user.Type}, nil
}

func (a GitHubStoreAdapter) List(ctx context.Context, channel types.Channel) ([]types.Asset, error) {
	release, err := a.release(ctx, channel)
	if err != nil {
		return nil, err
	}
	raw, err := a.releaseAssets(ctx, release)
	if err != nil {
		return nil, err
	}
	assets := make([]types.Asset, 0, len(raw))
	for _, item := range raw {
		asset := item.toAsset(channel)
		if !asset.Uploader.Equal(a.Trusted) {
			return nil, untrustedAssetError(asset, a.Trusted)
		}
		assets = append(assets, asset)
	}
	log.Ctx(ctx).Debug().Str("channel", string(channel)).Int("assets", len(assets)).Msg("release assets listed")
	return assets, nil
}

func (a GitHubStoreAdapter) Download(ctx context.Context, asset types.Asset, destPath string) error {
	if strings.TrimSpace(asset.DownloadURL) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("asset %s has no download url", asset.Name))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.DownloadURL, nil)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create download request").
			WithCause(err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	resp, err := a.client.Do(req)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("download of %s failed", asset.Name)).
			WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("download of %s failed", asset.Name)).
			WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, asset.DownloadURL, strings.TrimSpace(string(body))))
	}
	return writeStream(destPath, resp.Body)
}

// writeStream copies body to path in fixed-size chunks. A partial file is
// removed when the copy fails.
func writeStream(path string, body io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create %s", path)).
			WithCause(err)
	}
	_, copyErr := io.CopyBuffer(file, body, make([]byte, downloadChunkSize))
	closeErr := file.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(path)
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to write %s", path)).
			WithCause(err)
	}
	return nil
}

func (a GitHubStoreAdapter) Upload(ctx context.Context, channel types.Channel, path string, replace bool) error {
	name := filepath.Base(path)
	if !a.PublishEnabled {
		log.Ctx(ctx).Warn().Str("asset", name).Str("channel", string(channel)).Msg("upload skipped, publishing is disabled")
		return nil
	}
	release, err := a.release(ctx, channel)
	if err != nil {
		return err
	}
	if replace {
		existing, err := a.releaseAssets(ctx, release)
		if err != nil {
			return err
		}
		for _, item := range existing {
			if item.Name != name {
				continue
			}
			if err := a.Delete(ctx, item.toAsset(channel)); err != nil {
				return err
			}
		}
	}
	return a.uploadAsset(ctx, release, path)
}

func (a GitHubStoreAdapter) uploadAsset(ctx context.Context, release githubRelease, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to open upload").
			WithCause(err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to stat upload").
			WithCause(err)
	}
	base := release.UploadURL
	if idx := strings.Index(base, "{"); idx >= 0 {
		base = base[:idx]
	}
	uploadURL := base + "?name=" + url.QueryEscape(filepath.Base(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, file)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create upload request").
			WithCause(err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")
	a.authorize(req)
	resp, err := a.client.Do(req)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("asset upload failed").
			WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("asset upload failed").
			WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, uploadURL, strings.TrimSpace(string(body))))
	}
	log.Ctx(ctx).Info().Str("asset", filepath.Base(path)).Str("release", release.TagName).Msg("asset uploaded")
	return nil
}

func (a GitHubStoreAdapter) Delete(ctx context.Context, asset types.Asset) error {
	if strings.TrimSpace(asset.ID) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("asset %s has no id", asset.Name))
	}
	deleteURL := fmt.Sprintf("%s/repos/%s/releases/assets/%s", a.APIURL, a.Repo, url.PathEscape(asset.ID))
	resp, err := a.send(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to delete asset %s", asset.Name)).
			WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, deleteURL, strings.TrimSpace(string(body))))
	}
	log.Ctx(ctx).Info().Str("asset", asset.Name).Msg("asset deleted")
	return nil
}

func (a GitHubStoreAdapter) Trigger(ctx context.Context, event string) error {
	if strings.TrimSpace(event) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("event type is empty")
	}
	payload, err := json.Marshal(map[string]string{"event_type": event})
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode dispatch").
			WithCause(err)
	}
	dispatchURL := fmt.Sprintf("%s/repos/%s/dispatches", a.APIURL, a.Repo)
	resp, err := a.send(ctx, http.MethodPost, dispatchURL, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("repository dispatch failed").
			WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, dispatchURL, strings.TrimSpace(string(body))))
	}
	return nil
}

func (a GitHubStoreAdapter) release(ctx context.Context, channel types.Channel) (githubRelease, error) {
	var release githubRelease
	releaseURL := fmt.Sprintf("%s/repos/%s/releases/tags/%s", a.APIURL, a.Repo, url.PathEscape(string(channel)))
	if err := a.getJSON(ctx, releaseURL, &release); err != nil {
		return githubRelease{}, err
	}
	return release, nil
}

func (a GitHubStoreAdapter) releaseAssets(ctx context.Context, release githubRelease) ([]githubAsset, error) {
	var all []githubAsset
	for page := 1; ; page++ {
		var batch []githubAsset
		pageURL := fmt.Sprintf("%s/repos/%s/releases/%d/assets?per_page=%d&page=%d", a.APIURL, a.Repo, release.ID, assetsPerPage, page)
		if err := a.getJSON(ctx, pageURL, &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < assetsPerPage {
			return all, nil
		}
	}
}

func (a GitHubStoreAdapter) getJSON(ctx context.Context, target string, out any) error {
	var lastErr error
	for attempt := 0; attempt < a.Retries; attempt++ {
		retry, err := a.getJSONOnce(ctx, target, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt == a.Retries-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.retryDelay(attempt)):
		}
	}
	return lastErr
}

func (a GitHubStoreAdapter) getJSONOnce(ctx context.Context, target string, out any) (bool, error) {
	resp, err := a.send(ctx, http.MethodGet, target, nil)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("github resource not found").
			WithCause(shared.HTTPStatusError(resp.StatusCode, target))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, errbuilder.New().
			WithCode(errbuilder.CodePermissionDenied).
			WithMsg("github request not authorized").
			WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, target, strings.TrimSpace(string(body))))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		retry := resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
		return retry, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("github request failed").
			WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, target, strings.TrimSpace(string(body))))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to decode github response").
			WithCause(err)
	}
	return false, nil
}

func (a GitHubStoreAdapter) send(ctx context.Context, method string, target string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create github request").
			WithCause(err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	a.authorize(req)
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("github request failed").
			WithCause(err)
	}
	return resp, nil
}

func (a GitHubStoreAdapter) authorize(req *http.Request) {
	if token := strings.TrimSpace(a.Credentials.Token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		return
	}
	if user := strings.TrimSpace(a.Credentials.Username); user != "" {
		req.SetBasicAuth(user, a.Credentials.Password)
	}
}

func (a GitHubStoreAdapter) retryDelay(attempt int) time.Duration {
	delay := a.RetryDelay * time.Duration(1<<attempt)
	if delay > maxGitHubRetryDelay {
		delay = maxGitHubRetryDelay
	}
	jitter := time.Duration(time.Now().UnixNano() % int64(delay/2+1))
	return delay + jitter
}

func (g githubAsset) toAsset(channel types.Channel) types.Asset {
	return types.Asset{
		ID:          strconv.FormatInt(g.ID, 10),
		Name:        g.Name,
		Size:        g.Size,
		Channel:     channel,
		Uploader:    types.Identity{Login: g.Uploader.Login, Type: g.Uploader.Type},
		DownloadURL: g.BrowserDownloadURL,
		CreatedAt:   parseTimeFlexible(g.CreatedAt),
		UpdatedAt:   parseTimeFlexible(g.UpdatedAt),
	}
}

func untrustedAssetError(asset types.Asset, trusted types.Identity) error {
	return errbuilder.New().
		WithCode(errbuilder.CodePermissionDenied).
		WithMsg(fmt.Sprintf("untrusted uploader %s (%s) for asset %s in %s, expected %s (%s)",
			asset.Uploader.Login, asset.Uploader.Type, asset.Name, asset.Channel, trusted.Login, trusted.Type))
}

var _ ports.ArtifactStorePort = GitHubStoreAdapter{}
