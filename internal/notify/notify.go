package notify

import (
	"context"
	"time"

	"github.com/sznuper/agentprobe/internal/probe"
)

// AlertContext is everything an alert message may mention about one failed
// endpoint.
type AlertContext struct {
	ServerName string
	Reason     string
	Class      string // a probe.ErrorKind value
	Address    string
	Payload    probe.Payload
	Hostname   string
	Time       time.Time
}

// NewAlertContext describes a failed outcome of ep.
func NewAlertContext(hostname string, ep probe.Endpoint, out probe.Outcome) AlertContext {
	return AlertContext{
		ServerName: ep.Name,
		Reason:     out.Diagnostic,
		Class:      string(out.Class),
		Address:    ep.Address,
		Payload:    ep.Payload,
		Hostname:   hostname,
		Time:       time.Now(),
	}
}

// Notifier delivers alerts. Delivery is best effort: failures are logged by
// the implementation and never reported to the caller.
type Notifier interface {
	Notify(ctx context.Context, a AlertContext)
}

// Multi sends every alert to each of its notifiers in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, a AlertContext) {
	for _, n := range m {
		n.Notify(ctx, a)
	}
}

// Nop discards alerts.
type Nop struct{}

func (Nop) Notify(context.Context, AlertContext) {}
