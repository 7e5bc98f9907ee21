package adapters

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autobuild/internal/types"
)

type fakeGitHub struct {
	mu          sync.Mutex
	server      *httptest.Server
	assets      []githubAsset
	content     map[string]string
	nextID      int64
	uploads     []string
	deletes     []string
	dispatches  []string
	failures    int
	authHeaders []string
	user        githubUser
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	fake := &fakeGitHub{content: map[string]string{}, nextID: 100, user: githubUser{Login: "github-actions[bot]", Type: "Bot"}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/msys2/devtools/releases/tags/{tag}", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		if fake.fail() {
			http.Error(w, "try again", http.StatusBadGateway)
			return
		}
		tag := r.PathValue("tag")
		if tag == "missing" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, githubRelease{ID: 7, TagName: tag, UploadURL: fake.server.URL + "/uploads/7/assets{?name,label}"})
	})
	mux.HandleFunc("GET /repos/msys2/devtools/releases/7/assets", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		fake.mu.Lock()
		defer fake.mu.Unlock()
		start := (page - 1) * perPage
		if start >= len(fake.assets) {
			writeJSON(w, []githubAsset{})
			return
		}
		end := min(start+perPage, len(fake.assets))
		writeJSON(w, fake.assets[start:end])
	})
	mux.HandleFunc("DELETE /repos/msys2/devtools/releases/assets/{id}", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		fake.mu.Lock()
		defer fake.mu.Unlock()
		id := r.PathValue("id")
		fake.deletes = append(fake.deletes, id)
		kept := fake.assets[:0]
		for _, asset := range fake.assets {
			if strconv.FormatInt(asset.ID, 10) != id {
				kept = append(kept, asset)
			}
		}
		fake.assets = kept
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /uploads/7/assets", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		body, _ := io.ReadAll(r.Body)
		name := r.URL.Query().Get("name")
		fake.mu.Lock()
		defer fake.mu.Unlock()
		fake.nextID++
		fake.uploads = append(fake.uploads, name)
		fake.content[name] = string(body)
		fake.assets = append(fake.assets, githubAsset{ID: fake.nextID, Name: name, Size: int64(len(body)), Uploader: fake.user})
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("POST /repos/msys2/devtools/dispatches", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		fake.mu.Lock()
		fake.dispatches = append(fake.dispatches, payload["event_type"])
		fake.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		writeJSON(w, fake.user)
	})
	mux.HandleFunc("GET /download/{name}", func(w http.ResponseWriter, r *http.Request) {
		content, ok := fake.content[r.PathValue("name")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, content)
	})
	fake.server = httptest.NewServer(mux)
	t.Cleanup(fake.server.Close)
	return fake
}

func (f *fakeGitHub) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
}

func (f *fakeGitHub) fail() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return true
	}
	return false
}

func (f *fakeGitHub) addAsset(name string, content string, uploader githubUser) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.assets = append(f.assets, githubAsset{
		ID:                 f.nextID,
		Name:               name,
		Size:               int64(len(content)),
		BrowserDownloadURL: f.server.URL + "/download/" + name,
		CreatedAt:          "2024-03-09T18:04:05Z",
		Uploader:           uploader,
	})
	f.content[name] = content
}

func (f *fakeGitHub) adapter(publish bool) GitHubStoreAdapter {
	return NewGitHubStoreAdapter(GitHubStoreOptions{
		APIURL:         f.server.URL,
		Repo:           "msys2/devtools",
		Credentials:    GitHubCredentials{Token: "secret"},
		PublishEnabled: publish,
		RetryDelay:     time.Millisecond,
	})
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}

var botUser = githubUser{Login: "github-actions[bot]", Type: "Bot"}

func TestGitHubStoreListPaginatesAndConverts(t *testing.T) {
	fake := newFakeGitHub(t)
	for i := range assetsPerPage + 3 {
		fake.addAsset(fmt.Sprintf("pkg%03d-1-1-x86_64.pkg.tar.zst", i), "x", botUser)
	}

	assets, err := fake.adapter(false).List(t.Context(), types.ChannelSystem)
	require.NoError(t, err)
	require.Len(t, assets, assetsPerPage+3)
	first := assets[0]
	assert.Equal(t, "101", first.ID)
	assert.Equal(t, types.ChannelSystem, first.Channel)
	assert.Equal(t, types.Identity{Login: "github-actions[bot]", Type: "Bot"}, first.Uploader)
	assert.Equal(t, time.Date(2024, 3, 9, 18, 4, 5, 0, time.UTC), first.CreatedAt)
	assert.Equal(t, "Bearer secret", fake.authHeaders[0])
}

func TestGitHubStoreListRejectsUntrustedUploader(t *testing.T) {
	for _, uploader := range []githubUser{
		{Login: "someone", Type: "User"},
		{Login: "github-actions[bot]", Type: "User"},
		{Login: "dependabot[bot]", Type: "Bot"},
	} {
		t.Run(uploader.Login+"/"+uploader.Type, func(t *testing.T) {
			fake := newFakeGitHub(t)
			fake.addAsset("good-1-1-x86_64.pkg.tar.zst", "x", botUser)
			fake.addAsset("evil-1-1-x86_64.pkg.tar.zst", "x", uploader)

			assets, err := fake.adapter(false).List(t.Context(), types.ChannelSystem)
			require.Error(t, err)
			assert.Nil(t, assets)
			assert.Equal(t, errbuilder.CodePermissionDenied, errbuilder.CodeOf(err))
			assert.Contains(t, err.Error(), "evil-1-1-x86_64.pkg.tar.zst")
		})
	}
}

func TestGitHubStoreRetriesServerErrors(t *testing.T) {
	fake := newFakeGitHub(t)
	fake.failures = 2
	fake.addAsset("a-1-1-any.pkg.tar.zst", "x", botUser)

	assets, err := fake.adapter(false).List(t.Context(), types.ChannelSystem)
	require.NoError(t, err)
	assert.Len(t, assets, 1)

	fake.failures = 5
	_, err = fake.adapter(false).List(t.Context(), types.ChannelSystem)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInternal, errbuilder.CodeOf(err))
}

func TestGitHubStoreMissingRelease(t *testing.T) {
	fake := newFakeGitHub(t)
	_, err := fake.adapter(false).List(t.Context(), types.Channel("missing"))
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))
}

func TestGitHubStoreDownload(t *testing.T) {
	fake := newFakeGitHub(t)
	fake.addAsset("a-1-1-any.pkg.tar.zst", "package bytes", botUser)
	adapter := fake.adapter(false)
	assets, err := adapter.List(t.Context(), types.ChannelSystem)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "a.pkg")
	require.NoError(t, adapter.Download(t.Context(), assets[0], dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "package bytes", string(data))

	missing := assets[0]
	missing.DownloadURL = fake.server.URL + "/download/gone"
	dest = filepath.Join(t.TempDir(), "gone.pkg")
	err = adapter.Download(t.Context(), missing, dest)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInternal, errbuilder.CodeOf(err))
	assert.NoFileExists(t, dest)
}

func TestGitHubStoreUploadReplaces(t *testing.T) {
	fake := newFakeGitHub(t)
	fake.addAsset("a-1-1-any.pkg.tar.zst", "old", botUser)
	fake.addAsset("b-1-1-any.pkg.tar.zst", "other", botUser)
	path := filepath.Join(t.TempDir(), "a-1-1-any.pkg.tar.zst")
	require.NoError(t, os.WriteFile(path, []byte("new"), 0o644))

	require.NoError(t, fake.adapter(true).Upload(t.Context(), types.ChannelSystem, path, true))

	assert.Equal(t, []string{"101"}, fake.deletes)
	assert.Equal(t, []string{"a-1-1-any.pkg.tar.zst"}, fake.uploads)
	assert.Equal(t, "new", fake.content["a-1-1-any.pkg.tar.zst"])
	var names []string
	for _, asset := range fake.assets {
		names = append(names, asset.Name)
	}
	if diff := cmp.Diff([]string{"b-1-1-any.pkg.tar.zst", "a-1-1-any.pkg.tar.zst"}, names); diff != "" {
		t.Fatalf("unexpected assets (-want +got):\n%s", diff)
	}
}

func TestGitHubStoreUploadDisabledIsNoop(t *testing.T) {
	fake := newFakeGitHub(t)
	path := filepath.Join(t.TempDir(), "a-1.failed")
	require.NoError(t, os.WriteFile(path, []byte("build failed\n"), 0o644))

	require.NoError(t, fake.adapter(false).Upload(t.Context(), types.ChannelFailed, path, true))
	assert.Empty(t, fake.uploads)
	assert.Empty(t, fake.authHeaders)
}

func TestGitHubStoreTriggerAndIdentity(t *testing.T) {
	fake := newFakeGitHub(t)
	adapter := fake.adapter(false)

	require.NoError(t, adapter.Trigger(t.Context(), "manual-build"))
	assert.Equal(t, []string{"manual-build"}, fake.dispatches)

	identity, err := adapter.CurrentIdentity(t.Context())
	require.NoError(t, err)
	assert.True(t, identity.Equal(DefaultTrustedIdentity))

	err = adapter.Trigger(t.Context(), " ")
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}

func TestGitHubStoreBasicAuth(t *testing.T) {
	fake := newFakeGitHub(t)
	adapter := NewGitHubStoreAdapter(GitHubStoreOptions{
		APIURL:      fake.server.URL,
		Repo:        "msys2/devtools",
		Credentials: GitHubCredentials{Username: "user", Password: "pass"},
	})
	_, err := adapter.CurrentIdentity(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "Basic dXNlcjpwYXNz", fake.authHeaders[0])
}

func TestGitHubCredentialsEmpty(t *testing.T) {
	assert.True(t, GitHubCredentials{}.Empty())
	assert.True(t, GitHubCredentials{Username: "user"}.Empty())
	assert.False(t, GitHubCredentials{Token: "t"}.Empty())
	assert.False(t, GitHubCredentials{Username: "user", Password: "pass"}.Empty())
}
