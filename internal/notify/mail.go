package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/sznuper/agentprobe/internal/probe"
)

// Mailer sends one HTML email per alert to a fixed recipient list over
// authenticated STARTTLS SMTP.
type Mailer struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string // defaults to Username
	To            []string
	CC            []string
	SubjectPrefix string
	Template      string // defaults to DefaultMailTemplate
	DryRun        bool
	Logger        *slog.Logger

	send SendFunc
}

// Subject returns the subject line for an alert about server.
func (m *Mailer) Subject(server string) string {
	return fmt.Sprintf("%s: %s", m.SubjectPrefix, server)
}

// URL returns the shoutrrr smtp URL for this mailer. CC recipients are
// delivered through the same recipient list as To.
func (m *Mailer) URL() string {
	from := m.From
	if from == "" {
		from = m.Username
	}

	q := url.Values{}
	q.Set("fromaddress", from)
	q.Set("toaddresses", strings.Join(m.recipients(), ","))
	q.Set("auth", "Plain")
	q.Set("encryption", "ExplicitTLS")
	q.Set("usestarttls", "Yes")
	q.Set("usehtml", "Yes")

	u := url.URL{
		Scheme:   "smtp",
		User:     url.UserPassword(m.Username, m.Password),
		Host:     net.JoinHostPort(m.Host, strconv.Itoa(m.Port)),
		Path:     "/",
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (m *Mailer) recipients() []string {
	all := make([]string, 0, len(m.To)+len(m.CC))
	all = append(all, m.To...)
	return append(all, m.CC...)
}

// Target renders the alert email.
func (m *Mailer) Target(a AlertContext) (Target, error) {
	tmplStr := m.Template
	if tmplStr == "" {
		tmplStr = DefaultMailTemplate()
	}
	body, err := RenderHTML(tmplStr, mailData{AlertContext: a, To: m.To, CC: m.CC})
	if err != nil {
		return Target{}, fmt.Errorf("rendering alert email: %w", err)
	}
	return Target{
		ServiceName: "mail",
		URL:         m.URL(),
		Message:     body,
		Params:      map[string]string{"subject": m.Subject(a.ServerName)},
	}, nil
}

func (m *Mailer) Notify(_ context.Context, a AlertContext) {
	log := loggerOr(m.Logger).With("notifier", "mail", "endpoint", a.ServerName)

	if m.Username == "" || m.Password == "" {
		log.Warn("email credentials not configured, skipping alert")
		return
	}
	if len(m.To)+len(m.CC) == 0 {
		log.Warn("no email recipients configured, skipping alert")
		return
	}

	t, err := m.Target(a)
	if err != nil {
		log.Error("could not build alert email", "class", probe.ErrNotificationFailure, "error", err)
		return
	}

	if m.DryRun {
		if err := Verify(t); err != nil {
			log.Error("alert email would fail", "class", probe.ErrNotificationFailure, "error", err)
			return
		}
		log.Info("dry run: would send alert email", "to", m.To, "cc", m.CC, "subject", t.Params["subject"])
		return
	}

	send := m.send
	if send == nil {
		send = Send
	}
	if err := send(t); err != nil {
		log.Error("failed to send alert email", "class", probe.ErrNotificationFailure, "error", err)
		return
	}
	log.Info("alert email sent", "to", m.To, "cc", m.CC)
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
