package config

import (
	"time"

	"github.com/sznuper/agentprobe/internal/probe"
)

const (
	DefaultSlowThreshold = 10 * time.Second
	DefaultMaxResponse   = 30 * time.Second
	DefaultConcurrency   = 4
	DefaultLogLevel      = "info"
	DefaultMailHost      = "smtp.gmail.com"
	DefaultMailPort      = 587
	DefaultSubjectPrefix = "AI Agent - Health Check Alert"
)

// DefaultPayload is the synthetic request sent to stream endpoints that do
// not configure their own.
func DefaultPayload() probe.Payload {
	return probe.Payload{
		Query:       "222 1000",
		User:        "Divya D",
		UserID:      193,
		Page:        "Neurovoyager",
		PageContext: map[string]any{},
	}
}

// ApplyDefaults fills every unset field that has a default. Endpoint kinds
// are inferred from the address scheme; addresses that cannot be resolved
// are left for Validate to report.
func (c *Config) ApplyDefaults() {
	if c.Options.LogLevel == "" {
		c.Options.LogLevel = DefaultLogLevel
	}
	if c.Options.Marker == "" {
		c.Options.Marker = probe.DefaultMarker
	}
	if c.Options.Concurrency == 0 {
		c.Options.Concurrency = DefaultConcurrency
	}

	if c.Probe.IsZero() {
		c.Probe = DefaultPayload()
	}
	if c.Probe.PageContext == nil {
		c.Probe.PageContext = map[string]any{}
	}

	if c.Mail.Host == "" {
		c.Mail.Host = DefaultMailHost
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = DefaultMailPort
	}
	if c.Mail.SubjectPrefix == "" {
		c.Mail.SubjectPrefix = DefaultSubjectPrefix
	}

	for i := range c.Endpoints {
		ep := &c.Endpoints[i]
		if ep.Kind != "" {
			continue
		}
		if kind, err := probe.ResolveKind(ep.Address); err == nil {
			ep.Kind = kind
		}
	}
}

// ProbeEndpoints returns the configured endpoints in declaration order, each
// carrying the payload it should send.
func (c *Config) ProbeEndpoints() []probe.Endpoint {
	eps := make([]probe.Endpoint, 0, len(c.Endpoints))
	for _, ep := range c.Endpoints {
		eps = append(eps, c.probeEndpoint(ep))
	}
	return eps
}

// FindEndpoint looks up an endpoint by name.
func (c *Config) FindEndpoint(name string) (probe.Endpoint, bool) {
	for _, ep := range c.Endpoints {
		if ep.Name == name {
			return c.probeEndpoint(ep), true
		}
	}
	return probe.Endpoint{}, false
}

func (c *Config) probeEndpoint(ep Endpoint) probe.Endpoint {
	payload := c.Probe
	if ep.Payload != nil && !ep.Payload.IsZero() {
		payload = *ep.Payload
	}
	if payload.PageContext == nil {
		payload.PageContext = map[string]any{}
	}
	return probe.Endpoint{
		Name:    ep.Name,
		Address: ep.Address,
		Kind:    ep.Kind,
		Payload: payload,
	}
}
