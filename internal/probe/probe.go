package probe

import (
	"context"
	"errors"
	"time"
)

// Kind is the transport an endpoint is probed over.
type Kind string

const (
	KindHTTP   Kind = "http"
	KindStream Kind = "stream"
)

// ErrorKind classifies why a probe failed. It is empty for healthy outcomes.
type ErrorKind string

const (
	ErrConnectionFailure   ErrorKind = "connection_failure"
	ErrResponseTimeout     ErrorKind = "response_timeout"
	ErrTransport           ErrorKind = "transport_error"
	ErrHTTPStatus          ErrorKind = "http_status"
	ErrNotificationFailure ErrorKind = "notification_failure"
)

// Error is a classified probe failure.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err, or "" if err is not a *Error.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// Payload is the synthetic request sent to the agent on stream open. HTTP
// endpoints carry one too; it only feeds the alert context there.
type Payload struct {
	Query       string         `json:"query" yaml:"query"`
	User        string         `json:"user" yaml:"user"`
	UserID      int            `json:"userId" yaml:"user_id"`
	Page        string         `json:"page" yaml:"page"`
	PageContext map[string]any `json:"page_context" yaml:"page_context"`
}

// IsZero reports whether no field of the payload is set.
func (p Payload) IsZero() bool {
	return p.Query == "" && p.User == "" && p.UserID == 0 && p.Page == "" && len(p.PageContext) == 0
}

// Endpoint is one named probe target.
type Endpoint struct {
	Name    string
	Address string
	Kind    Kind
	Payload Payload
}

// Outcome is the result of a single probe invocation. Failures are captured
// here rather than returned, so the caller always has something to report.
type Outcome struct {
	Endpoint   string
	Kind       Kind
	Healthy    bool
	Diagnostic string
	Class      ErrorKind
	Err        error
	Elapsed    time.Duration
	StatusCode int    // HTTP only; 0 on transport errors
	Response   string // accumulated stream text or HTTP body preview
}

// Prober probes one endpoint. Implementations never return errors; every
// failure ends up in the Outcome.
type Prober interface {
	Probe(ctx context.Context, ep Endpoint) Outcome
}

func healthy(ep Endpoint, start time.Time) Outcome {
	return Outcome{
		Endpoint:   ep.Name,
		Kind:       ep.Kind,
		Healthy:    true,
		Diagnostic: "ok",
		Elapsed:    time.Since(start),
	}
}

func failed(ep Endpoint, start time.Time, err error) Outcome {
	return Outcome{
		Endpoint:   ep.Name,
		Kind:       ep.Kind,
		Diagnostic: err.Error(),
		Class:      KindOf(err),
		Err:        err,
		Elapsed:    time.Since(start),
	}
}
