package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sheets_append/internal/retry"

	"github.com/rs/zerolog/log"
)

// Client posts run summaries to an ntfy topic.
type Client struct {
	httpClient *http.Client
	baseURL    string
	topic      string
	enabled    bool
	priority   string
	retry      retry.Config
}

// RunSummary is what a finished run reports.
type RunSummary struct {
	Document  string
	Sheet     string
	Mode      string
	Rows      int
	Succeeded int
	Failed    int
	// Err is the fatal error of an aborted run.
	Err error
}

type NotificationError struct {
	Type       string
	StatusCode int
	Underlying error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification failed [%s]: %v", e.Type, e.Underlying)
}

func (e *NotificationError) Unwrap() error { return e.Underlying }

func (e *NotificationError) IsRetryable() bool {
	switch e.Type {
	case "network", "server", "rate_limit":
		return true
	case "auth", "client":
		return false
	default:
		return e.StatusCode >= 500
	}
}

// DefaultRetry is the delivery policy used by the command.
func DefaultRetry() retry.Config {
	return retry.Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
		Timeout:    10 * time.Second,
	}
}

func NewClient(baseURL, topic string, enabled bool, priority string, rc retry.Config) *Client {
	rc.Retryable = isRetryable
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		topic:    topic,
		enabled:  enabled,
		priority: priority,
		retry:    rc,
	}
}

func (c *Client) Enabled() bool { return c != nil && c.enabled }

func isRetryable(err error) bool {
	var notifErr *NotificationError
	if errors.As(err, &notifErr) {
		return notifErr.IsRetryable()
	}
	return true
}

// SendNotification delivers one message, retrying transient failures.
func (c *Client) SendNotification(ctx context.Context, title, message string) error {
	if !c.Enabled() {
		log.Debug().Msg("Notifications disabled, skipping")
		return nil
	}

	_, err := retry.WithRetry(ctx, c.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.sendSingleNotification(ctx, title, message)
	})
	return err
}

func (c *Client) sendSingleNotification(ctx context.Context, title, message string) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, c.topic)

	log.Debug().
		Str("url", url).
		Str("title", title).
		Msg("Sending notification")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(message))
	if err != nil {
		return &NotificationError{Type: "client", Underlying: err}
	}

	req.Header.Set("Content-Type", "text/plain")
	if title != "" {
		req.Header.Set("Title", title)
	}
	if c.priority != "" {
		req.Header.Set("Priority", c.priority)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NotificationError{Type: "network", Underlying: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &NotificationError{
			Type:       categorizeHTTPError(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Underlying: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status),
		}
	}

	log.Debug().Int("status_code", resp.StatusCode).Msg("Notification sent successfully")
	return nil
}

// NotifyRun sends the summary of a finished or aborted run.
func (c *Client) NotifyRun(ctx context.Context, s RunSummary) error {
	if !c.Enabled() {
		return nil
	}
	title, body := formatRunMessage(s)
	return c.SendNotification(ctx, title, body)
}

func formatRunMessage(s RunSummary) (string, string) {
	target := fmt.Sprintf("%s / %s", s.Document, s.Sheet)

	var sb strings.Builder
	if s.Err != nil {
		fmt.Fprintf(&sb, "Upload to %s aborted after %d row(s)\n", target, s.Rows)
		fmt.Fprintf(&sb, "Error: %v", s.Err)
		return "sheets-append: aborted", sb.String()
	}

	fmt.Fprintf(&sb, "%s mode: %d row(s) appended to %s", s.Mode, s.Succeeded, target)
	if s.Failed > 0 {
		fmt.Fprintf(&sb, "\n%d row(s) failed", s.Failed)
		return "sheets-append: finished with failures", sb.String()
	}
	return "sheets-append: done", sb.String()
}

func categorizeHTTPError(statusCode int) string {
	switch {
	case statusCode == 401 || statusCode == 403:
		return "auth"
	case statusCode == 429:
		return "rate_limit"
	case statusCode >= 400 && statusCode < 500:
		return "client"
	case statusCode >= 500:
		return "server"
	default:
		return "unknown"
	}
}
