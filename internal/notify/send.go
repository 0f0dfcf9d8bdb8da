package notify

import (
	"fmt"
	"maps"
	"slices"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// Target holds a fully resolved notification target ready to send.
type Target struct {
	ServiceName string
	URL         string
	Message     string
	Params      map[string]string
}

// ServiceDef is an extra notification service: a shoutrrr URL, an optional
// message template and base params.
type ServiceDef struct {
	URL      string
	Template string
	Params   map[string]string
}

// SendFunc delivers one target. Send is the real implementation.
type SendFunc func(Target) error

// ResolveTargets renders one target per service, in service name order. The
// service's own template wins over defaultTemplate; param values are
// templates too.
func ResolveTargets(services map[string]ServiceDef, defaultTemplate string, a AlertContext) ([]Target, error) {
	var targets []Target

	for _, name := range slices.Sorted(maps.Keys(services)) {
		svc := services[name]

		tmplStr := defaultTemplate
		if svc.Template != "" {
			tmplStr = svc.Template
		}

		msg, err := Render(tmplStr, a)
		if err != nil {
			return nil, fmt.Errorf("rendering template for %s: %w", name, err)
		}

		params := make(map[string]string, len(svc.Params))
		for k, v := range svc.Params {
			rendered, err := Render(v, a)
			if err != nil {
				return nil, fmt.Errorf("rendering param %q for %s: %w", k, name, err)
			}
			params[k] = rendered
		}

		targets = append(targets, Target{
			ServiceName: name,
			URL:         svc.URL,
			Message:     msg,
			Params:      params,
		})
	}

	return targets, nil
}

// Send delivers a notification to a single target via Shoutrrr.
func Send(t Target) error {
	sender, err := shoutrrr.CreateSender(t.URL)
	if err != nil {
		return fmt.Errorf("creating sender for %s: %w", t.ServiceName, err)
	}

	params := types.Params(t.Params)
	errs := sender.Send(t.Message, &params)
	for _, e := range errs {
		if e != nil {
			return fmt.Errorf("sending to %s: %w", t.ServiceName, e)
		}
	}

	return nil
}

// Verify checks that a shoutrrr URL names a known service with a valid
// configuration, without sending anything.
func Verify(t Target) error {
	if _, err := shoutrrr.CreateSender(t.URL); err != nil {
		return fmt.Errorf("invalid sender for %s: %w", t.ServiceName, err)
	}
	return nil
}
