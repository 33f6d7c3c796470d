// Package notify pushes job status changes to chat platforms.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/opsgate/internal/config"
	opsErrors "github.com/harunnryd/opsgate/internal/errors"
	"github.com/harunnryd/opsgate/internal/store"
)

// Sender delivers a rendered notification to one platform.
type Sender interface {
	// Name returns the platform name (e.g. "slack", "telegram").
	Name() string

	Send(ctx context.Context, content string) error

	// Health checks if the platform accepts our credentials.
	Health(ctx context.Context) error
}

// Notifier fans a job notification out to every configured sender.
type Notifier struct {
	senders []Sender
}

func New(senders ...Sender) *Notifier {
	return &Notifier{senders: senders}
}

// FromConfig builds a notifier for the enabled platforms.
func FromConfig(cfg config.NotifyConfig) (*Notifier, error) {
	var senders []Sender

	if cfg.Slack.Enabled {
		if strings.TrimSpace(cfg.Slack.BotToken) == "" {
			return nil, opsErrors.Configuration("notify.slack.bot_token is required when slack notifications are enabled")
		}
		if strings.TrimSpace(cfg.Slack.Channel) == "" {
			return nil, opsErrors.Configuration("notify.slack.channel is required when slack notifications are enabled")
		}
		senders = append(senders, NewSlackSender(cfg.Slack.BotToken, cfg.Slack.Channel))
	}

	if cfg.Telegram.Enabled {
		if strings.TrimSpace(cfg.Telegram.BotToken) == "" {
			return nil, opsErrors.Configuration("notify.telegram.bot_token is required when telegram notifications are enabled")
		}
		if cfg.Telegram.ChatID == 0 {
			return nil, opsErrors.Configuration("notify.telegram.chat_id is required when telegram notifications are enabled")
		}
		senders = append(senders, NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}

	return New(senders...), nil
}

func (n *Notifier) Senders() []Sender {
	out := make([]Sender, len(n.senders))
	copy(out, n.senders)
	return out
}

// NotifyJob sends the job summary to every sender. One failing platform does
// not stop the others.
func (n *Notifier) NotifyJob(ctx context.Context, job store.Job) error {
	if len(n.senders) == 0 {
		return nil
	}

	content := FormatJob(job)
	var errs []error
	for _, sender := range n.senders {
		if err := sender.Send(ctx, content); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sender.Name(), err))
			continue
		}
		slog.Debug("Job notification sent", "sender", sender.Name(), "job_id", job.ID, "status", job.Status)
	}
	return errors.Join(errs...)
}

func (n *Notifier) Health(ctx context.Context) error {
	var errs []error
	for _, sender := range n.senders {
		if err := sender.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sender.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// FormatJob renders the plain-text notification body for a job.
func FormatJob(job store.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[opsgate] Job %s is %s\n", job.ID, job.Status)
	fmt.Fprintf(&b, "Goal: %s\n", job.Goal)
	fmt.Fprintf(&b, "Risk: %s in %s\n", job.Risk, job.Environment)

	if job.RequiredApprovals > 0 {
		fmt.Fprintf(&b, "Approvals: %d/%d\n", len(job.Approvals), job.RequiredApprovals)
	}
	if job.Status == store.StatusAwaitingApproval {
		fmt.Fprintf(&b, "Approve with: POST /agent/jobs/%s/approve\n", job.ID)
	}
	if job.Report != nil && job.Report.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", job.Report.Summary)
	}

	return strings.TrimRight(b.String(), "\n")
}
