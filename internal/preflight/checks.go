package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"mediawatch/internal/config"
	"mediawatch/internal/freshness"
	"mediawatch/internal/logging"
)

const checkTimeout = 5 * time.Second

// CheckJellyfin verifies Jellyfin connectivity and authentication.
func CheckJellyfin(ctx context.Context, baseURL, apiKey string) Result {
	const name = "Jellyfin"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	if strings.TrimSpace(apiKey) == "" {
		return Result{Name: name, Detail: "missing api key"}
	}

	req, err := http.NewRequest(http.MethodGet, base+"/System/Info", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("auth check failed (%v)", err)}
	}
	req.Header.Set("X-Emby-Token", strings.TrimSpace(apiKey))
	return httpCheck(ctx, name, req)
}

// CheckTMDB verifies the TMDB API key against the configuration endpoint.
func CheckTMDB(ctx context.Context, baseURL, apiKey string) Result {
	const name = "TMDB"

	if strings.TrimSpace(apiKey) == "" {
		return Result{Name: name, Detail: "missing api key"}
	}
	endpoint, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/configuration")
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid base url (%v)", err)}
	}
	endpoint.RawQuery = url.Values{"api_key": {apiKey}}.Encode()

	req, err := http.NewRequest(http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("auth check failed (%v)", err)}
	}
	return httpCheck(ctx, name, req)
}

// CheckFeed verifies that a release feed answers with a 2xx status.
func CheckFeed(ctx context.Context, feedURL string) Result {
	name := "Feed " + feedURL
	req, err := http.NewRequest(http.MethodGet, feedURL, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url (%v)", err)}
	}
	return httpCheck(ctx, name, req)
}

func httpCheck(ctx context.Context, name string, req *http.Request) Result {
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	client := &http.Client{Timeout: checkTimeout}
	resp, err := client.Do(req.WithContext(checkCtx))
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%d)", resp.StatusCode)}
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreshness opens the configured store and reads one record.
func CheckFreshness(ctx context.Context, cfg *config.Config) Result {
	name := "Freshness store (" + cfg.Freshness.Backend + ")"

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	store, err := freshness.Open(checkCtx, cfg, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()

	if _, err := store.History(checkCtx, freshness.HistoryFilter{Limit: 1}); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("read failed (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: "Readable"}
}

// CheckSMTP verifies that the SMTP server accepts TCP connections.
func CheckSMTP(ctx context.Context, host string, port int) Result {
	const name = "SMTP"
	if strings.TrimSpace(host) == "" {
		return Result{Name: name, Detail: "missing server"}
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: checkTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Detail: addr + " accepting connections"}
}

// summarizeNetError produces a human-readable summary for connectivity failures.
func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (service unreachable)"
	}
	return err.Error()
}
