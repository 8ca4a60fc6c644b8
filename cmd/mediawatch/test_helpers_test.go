package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

const libraryItems = `{"Items":[
{"Id":"dune","Name":"Dune Part Two","Type":"Movie","ProductionYear":2024},
{"Id":"matrix","Name":"The Matrix","Type":"Movie","ProductionYear":1999}
],"TotalRecordCount":2}`

const releaseFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Releases</title>
<item><title>Dune: Part Two arrives on 4K</title><link>https://example.com/dune</link><guid>dune-4k</guid><category>PG-13</category></item>
<item><title>The Matrix Resurrections trailer</title><link>https://example.com/matrix</link><category>R</category></item>
<item><title>Something else</title><guid>other</guid></item>
</channel></rss>`

type cliTestEnv struct {
	baseDir    string
	logDir     string
	configPath string
	ntfyHits   *atomic.Int32
	ntfyURL    string
}

// setupCLITestEnv starts fake Jellyfin, feed, and ntfy servers and writes a
// config pointing at them. Extra TOML is appended with {{ntfy}} replaced by
// the ntfy topic URL.
func setupCLITestEnv(t *testing.T, extraTOML string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	for _, name := range []string{"TMDB_API_KEY", "JELLYFIN_URL", "JELLYFIN_API_KEY", "JELLYFIN_USER_ID", "NTFY_TOPIC", "REDIS_URL", "SMTP_PASSWORD"} {
		t.Setenv(name, "")
	}

	jellyfin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Emby-Token") != "jf-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(libraryItems))
	}))
	t.Cleanup(jellyfin.Close)

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(releaseFeed))
	}))
	t.Cleanup(feed.Close)

	hits := &atomic.Int32{}
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ntfy.Close)

	ntfyURL := ntfy.URL + "/mediawatch"
	extraTOML = strings.ReplaceAll(extraTOML, "{{ntfy}}", ntfyURL)

	configPath := filepath.Join(base, "config.toml")
	logDir := filepath.Join(base, "logs")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[jellyfin]
url = %q
api_key = "jf-key"
user_id = "user-1"

[tmdb]
releases = false
recommendations = false

[feeds]
urls = [%q]

[retry]
max_attempts = 2
initial_delay_seconds = 0

[logging]
format = "json"
level = "error"
%s`, base, logDir, jellyfin.URL, feed.URL, extraTOML)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &cliTestEnv{baseDir: base, logDir: logDir, configPath: configPath, ntfyHits: hits, ntfyURL: ntfyURL}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIContext(t, context.Background(), args, configPath)
}

func runCLIContext(t *testing.T, ctx context.Context, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output string, parts ...string) {
	t.Helper()
	for _, part := range parts {
		if !strings.Contains(output, part) {
			t.Fatalf("expected output to contain %q, got:\n%s", part, output)
		}
	}
}

func writeConfigReplacing(t *testing.T, path, old, replacement string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), old) {
		t.Fatalf("config does not contain %q", old)
	}
	if err := os.WriteFile(path, []byte(strings.Replace(string(data), old, replacement, 1)), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
