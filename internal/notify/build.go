package notify

import (
	"log/slog"

	"github.com/sznuper/agentprobe/internal/config"
)

// FromConfig builds the notifier for cfg: the mailer, followed by the extra
// services when any are configured.
func FromConfig(cfg *config.Config, dryRun bool, logger *slog.Logger) Notifier {
	m := cfg.Mail
	multi := Multi{&Mailer{
		Host:          m.Host,
		Port:          int(m.Port),
		Username:      m.Username,
		Password:      m.Password,
		From:          m.From,
		To:            m.To,
		CC:            m.CC,
		SubjectPrefix: m.SubjectPrefix,
		Template:      m.Template,
		DryRun:        dryRun,
		Logger:        logger,
	}}

	if len(cfg.Services) > 0 {
		defs := make(map[string]ServiceDef, len(cfg.Services))
		for name, svc := range cfg.Services {
			defs[name] = ServiceDef{URL: svc.URL, Template: svc.Template, Params: svc.Params}
		}
		multi = append(multi, &Services{Defs: defs, DryRun: dryRun, Logger: logger})
	}
	return multi
}
