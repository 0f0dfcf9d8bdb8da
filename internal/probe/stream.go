package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultConnectTimeout  = 10 * time.Second
	DefaultResponseTimeout = 15 * time.Second
	DefaultGrace           = 5 * time.Second
	DefaultMarker          = "###END"

	defaultCloseWait = 2 * time.Second
)

// StreamProbe checks a WebSocket agent endpoint: connect, send one synthetic
// request, and wait for a response containing the completion marker.
type StreamProbe struct {
	Dialer          *websocket.Dialer
	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration
	Grace           time.Duration
	Marker          string
	Payload         Payload // used when the endpoint has none
	Logger          *slog.Logger

	closeWait time.Duration
	observe   func(*session)
}

// NewStreamProbe returns a StreamProbe with the default timeouts and marker.
func NewStreamProbe(logger *slog.Logger) *StreamProbe {
	return &StreamProbe{
		ConnectTimeout:  DefaultConnectTimeout,
		ResponseTimeout: DefaultResponseTimeout,
		Grace:           DefaultGrace,
		Marker:          DefaultMarker,
		Logger:          logger,
	}
}

// Probe runs one full session against ep. It returns only after the
// connection is closed and the session's goroutines have exited.
func (p *StreamProbe) Probe(ctx context.Context, ep Endpoint) Outcome {
	connectTimeout := orDefault(p.ConnectTimeout, DefaultConnectTimeout)
	responseTimeout := orDefault(p.ResponseTimeout, DefaultResponseTimeout)
	grace := orDefault(p.Grace, DefaultGrace)
	marker := p.Marker
	if marker == "" {
		marker = DefaultMarker
	}

	log := loggerOr(p.Logger).With("endpoint", ep.Name)
	start := time.Now()

	s := newSession(marker, orDefault(p.closeWait, defaultCloseWait), log)
	if p.observe != nil {
		defer p.observe(s)
	}
	defer s.cleanup()

	s.setState(stateConnecting)
	log.Info("connecting", "url", ep.Address)
	conn, err := p.dial(ctx, ep.Address, connectTimeout)
	if err != nil {
		s.resolve(termError, err)
		log.Error("could not connect", "error", err)
		return failed(ep, start, err)
	}
	s.conn = conn
	s.setState(stateOpen)

	payload := p.payloadFor(ep)
	if err := conn.WriteJSON(payload); err != nil {
		werr := &Error{Kind: ErrTransport, Msg: fmt.Sprintf("sending probe message: %v", err), Err: err}
		s.resolve(termError, werr)
		log.Error("error sending probe message", "error", err)
		return failed(ep, start, werr)
	}
	log.Info("sent probe message", "query", payload.Query, "page", payload.Page)

	s.timer = startOneShot(responseTimeout, func() { s.onTimeout(responseTimeout) })
	s.setState(stateAwaiting)
	s.startReading()

	bound := time.NewTimer(responseTimeout + grace)
	defer bound.Stop()

	select {
	case <-s.gate:
	case <-bound.C:
		log.Warn("close handshake did not complete in time", "bound", responseTimeout+grace)
	case <-ctx.Done():
		s.resolve(termError, &Error{
			Kind: ErrTransport,
			Msg:  fmt.Sprintf("probe interrupted: %v", ctx.Err()),
			Err:  ctx.Err(),
		})
	}
	// Nothing resolved by now means nothing may resolve later.
	s.resolve(termTimeout, timeoutError(responseTimeout))

	var out Outcome
	switch term, err := s.result(); term {
	case termSuccess:
		log.Info("stream connection succeeded", "elapsed", time.Since(start))
		out = healthy(ep, start)
	default:
		out = failed(ep, start, err)
	}
	out.Response = s.response()
	return out
}

func (p *StreamProbe) dial(ctx context.Context, address string, timeout time.Duration) (*websocket.Conn, error) {
	dialer := p.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		}
	}

	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dctx, address, nil)
	if err == nil {
		return conn, nil
	}
	if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
		return nil, &Error{
			Kind: ErrConnectionFailure,
			Msg:  fmt.Sprintf("handshake rejected with HTTP status %d", resp.StatusCode),
			Err:  err,
		}
	}
	return nil, connectError(err, timeout)
}

func (p *StreamProbe) payloadFor(ep Endpoint) Payload {
	payload := ep.Payload
	if payload.IsZero() {
		payload = p.Payload
	}
	if payload.PageContext == nil {
		payload.PageContext = map[string]any{}
	}
	return payload
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
