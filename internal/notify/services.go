package notify

import (
	"context"
	"log/slog"

	"github.com/sznuper/agentprobe/internal/probe"
)

// Services sends a plain-text alert to each extra shoutrrr service.
type Services struct {
	Defs     map[string]ServiceDef
	Template string // defaults to DefaultServiceTemplate
	DryRun   bool
	Logger   *slog.Logger

	send SendFunc
}

func (s *Services) Notify(_ context.Context, a AlertContext) {
	log := loggerOr(s.Logger).With("endpoint", a.ServerName)

	tmplStr := s.Template
	if tmplStr == "" {
		tmplStr = DefaultServiceTemplate
	}
	targets, err := ResolveTargets(s.Defs, tmplStr, a)
	if err != nil {
		log.Error("could not build service alerts", "class", probe.ErrNotificationFailure, "error", err)
		return
	}

	send := s.send
	if send == nil {
		send = Send
	}
	for _, t := range targets {
		tlog := log.With("notifier", t.ServiceName)
		if s.DryRun {
			if err := Verify(t); err != nil {
				tlog.Error("alert would fail", "class", probe.ErrNotificationFailure, "error", err)
				continue
			}
			tlog.Info("dry run: would send alert", "message", t.Message)
			continue
		}
		if err := send(t); err != nil {
			tlog.Error("failed to send alert", "class", probe.ErrNotificationFailure, "error", err)
			continue
		}
		tlog.Info("alert sent")
	}
}
