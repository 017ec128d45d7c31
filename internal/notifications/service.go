package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"callqa/internal/config"
	"callqa/internal/records"
)

const userAgent = "callqa/0.1.0"

// maxAlertLines caps how many alerts are listed in one message body.
const maxAlertLines = 5

// Service defines the notification surface exposed to the evaluator and CLI.
type Service interface {
	NotifyAlerts(ctx context.Context, rec records.CallRecord) error
	NotifyBatchCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether svc actually delivers messages.
func Enabled(svc Service) bool {
	if svc == nil {
		return false
	}
	_, noop := svc.(noopService)
	return !noop
}

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

func (n *ntfyService) NotifyAlerts(ctx context.Context, rec records.CallRecord) error {
	if len(rec.SupervisorAlerts) == 0 {
		return nil
	}
	return n.send(ctx, alertPayload(rec))
}

func alertPayload(rec records.CallRecord) payload {
	agent := strings.TrimSpace(rec.Name)
	if agent == "" {
		agent = strings.TrimSpace(rec.UserID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Call %s", rec.CallID)
	if agent != "" {
		fmt.Fprintf(&b, " (%s)", agent)
	}
	fmt.Fprintf(&b, " scored %.1f%% (%s)", rec.FinalScore(), rec.Evaluation.Scoring.Grade)

	alerts := rec.SupervisorAlerts
	shown := alerts[:min(len(alerts), maxAlertLines)]
	for _, alert := range shown {
		b.WriteString("\n- ")
		b.WriteString(strings.TrimSpace(alert))
	}
	if extra := len(alerts) - len(shown); extra > 0 {
		fmt.Fprintf(&b, "\n(+%d more)", extra)
	}

	tags := []string{"callqa", "alert"}
	if region := strings.TrimSpace(rec.Metadata.Region); region != "" {
		tags = append(tags, region)
	}
	return payload{
		title:    "callqa - Supervisor Alert",
		message:  b.String(),
		tags:     tags,
		priority: "high",
	}
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title, message string
	if failed == 0 {
		title = "callqa - Batch Complete"
		message = fmt.Sprintf("Batch complete: %d calls scored in %s", processed, durationText)
	} else {
		title = "callqa - Batch Complete (with errors)"
		message = fmt.Sprintf("Batch complete: %d succeeded, %d failed in %s", processed, failed, durationText)
	}

	return n.send(ctx, payload{
		title:   title,
		message: message,
		tags:    []string{"callqa", "batch", "completed"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "callqa - Test",
		message:  "Notification system test",
		tags:     []string{"callqa", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

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
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyAlerts(context.Context, records.CallRecord) error              { return nil }
func (noopService) NotifyBatchCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
