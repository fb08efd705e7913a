package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hbashir/aide/internal/approval"
	"github.com/hbashir/aide/internal/executor"
	"github.com/hbashir/aide/internal/metrics"
	"github.com/hbashir/aide/internal/notify"
	"github.com/hbashir/aide/internal/vault"
)

// instrumentExecutor records the outcome and latency of every run.
func instrumentExecutor(rec *metrics.RuntimeMetrics, fn executor.Func) executor.Func {
	return func(ctx context.Context, payload map[string]any) executor.Result {
		start := time.Now()
		res := fn(ctx, payload)
		_, _ = rec.RecordExecution(time.Since(start), res.Status == executor.StatusError, res.Message)
		return res
	}
}

// meteredNotifier counts notification sends per outcome.
type meteredNotifier struct {
	approval.Notifier
	rec *metrics.RuntimeMetrics
}

func (m meteredNotifier) Notify(ctx context.Context, req approval.Request) error {
	err := m.Notifier.Notify(ctx, req)
	_, _ = m.rec.RecordNotification(err == nil)
	return err
}

func (m meteredNotifier) NotifyEscalation(ctx context.Context, req approval.Request) error {
	err := m.Notifier.NotifyEscalation(ctx, req)
	_, _ = m.rec.RecordNotification(err == nil)
	return err
}

// emailSendExecutor sends an email once the request is approved. The payload
// carries the message: {"subject": ..., "body": ...}.
func emailSendExecutor(sender *notify.Email) executor.Func {
	return func(_ context.Context, payload map[string]any) executor.Result {
		subject := payloadString(payload, "subject")
		body := payloadString(payload, "body")
		if subject == "" && body == "" {
			return executor.Result{
				Status:  executor.StatusError,
				Message: "payload has no subject or body",
			}
		}

		if err := sender.Send(subject, body); err != nil {
			return executor.Result{
				Status:  executor.StatusError,
				Message: fmt.Sprintf("send email: %v", err),
			}
		}
		return executor.Result{
			Status:  executor.StatusSuccess,
			Message: "email sent",
		}
	}
}

// postPublishExecutor writes the approved post into the vault's Approved
// folder, ready for publishing. Payload: {"title": ..., "content": ...}.
func postPublishExecutor(vlt *vault.Vault) executor.Func {
	return func(_ context.Context, payload map[string]any) executor.Result {
		content := payloadString(payload, "content")
		if content == "" {
			return executor.Result{
				Status:  executor.StatusError,
				Message: "payload has no content",
			}
		}
		title := payloadString(payload, "title")
		if title == "" {
			title = "post"
		}

		name := fmt.Sprintf("POST_%s_%s.md", time.Now().Format("20060102T150405"), slugify(title))
		path := filepath.Join(vlt.Dir(vault.FolderApproved), name)
		if err := os.WriteFile(path, []byte("# "+title+"\n\n"+content+"\n"), 0644); err != nil {
			return executor.Result{
				Status:  executor.StatusError,
				Message: fmt.Sprintf("write post: %v", err),
			}
		}
		return executor.Result{
			Status:  executor.StatusSuccess,
			Message: "post written to " + name,
			Data:    map[string]any{"path": path},
		}
	}
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	s, _ := payload[key].(string)
	return strings.TrimSpace(s)
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "post"
	}
	if len(slug) > 40 {
		slug = slug[:40]
	}
	return slug
}
