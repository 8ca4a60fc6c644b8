package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediawatch/internal/classify"
	"mediawatch/internal/config"
	"mediawatch/internal/services"
)

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

// NewNtfyService returns a push notifier, or nil when no topic is configured.
func NewNtfyService(cfg config.Ntfy) Service {
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		return nil
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

func (n *ntfyService) Deliver(ctx context.Context, digest classify.Digest) error {
	total := digest.Buckets.Total()
	data := payload{
		title:   fmt.Sprintf("mediawatch - %d new", total),
		message: Summary(digest),
		tags:    []string{"mediawatch", "digest"},
	}
	if digest.Buckets.Counts()[classify.Adult] > 0 {
		data.tags = append(data.tags, "adult")
	}
	return n.send(ctx, data)
}

func (n *ntfyService) Test(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "mediawatch - Test",
		message:  "Notification system test",
		tags:     []string{"mediawatch", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return services.TransportError("emit", "ntfy", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return services.StatusError("emit", "ntfy", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
