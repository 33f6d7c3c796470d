package components

import (
	"context"
	"log/slog"

	"github.com/harunnryd/opsgate/internal/config"
	"github.com/harunnryd/opsgate/internal/daemon"
	"github.com/harunnryd/opsgate/internal/notify"
	"github.com/harunnryd/opsgate/internal/report"
)

// NotifierComponent owns the outbound side of a job: chat notifications and
// the report export directory.
type NotifierComponent struct {
	lifecycle
	notifyCfg  *config.NotifyConfig
	reportsCfg *config.ReportsConfig
	notifier   *notify.Notifier
	sink       *report.FileSink
}

func NewNotifierComponent(notifyCfg *config.NotifyConfig, reportsCfg *config.ReportsConfig) *NotifierComponent {
	return &NotifierComponent{notifyCfg: notifyCfg, reportsCfg: reportsCfg}
}

func (n *NotifierComponent) Name() string {
	return "Notifier"
}

func (n *NotifierComponent) Dependencies() []string {
	return nil
}

func (n *NotifierComponent) Init(ctx context.Context) error {
	notifier, err := notify.FromConfig(*n.notifyCfg)
	if err != nil {
		return err
	}

	var sink *report.FileSink
	if n.reportsCfg.Dir != "" {
		sink, err = report.NewFileSink(n.reportsCfg.Dir)
		if err != nil {
			return err
		}
	}

	senders := make([]string, 0)
	for _, sender := range notifier.Senders() {
		senders = append(senders, sender.Name())
	}

	n.mu.Lock()
	n.notifier = notifier
	n.sink = sink
	n.mu.Unlock()
	n.markInitialized()
	slog.Info("Notifier initialized", "component", n.Name(), "senders", senders, "reports_dir", n.reportsCfg.Dir)
	return nil
}

func (n *NotifierComponent) Start(ctx context.Context) error {
	return n.markStarted(n.Name())
}

func (n *NotifierComponent) Stop(ctx context.Context) error {
	n.markStopped()
	return nil
}

func (n *NotifierComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	return n.health(n.Name()), nil
}

func (n *NotifierComponent) Notifier() *notify.Notifier {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.notifier
}

// Sink returns nil when no reports directory is configured.
func (n *NotifierComponent) Sink() *report.FileSink {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sink
}
