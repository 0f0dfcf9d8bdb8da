package probe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	previewBytes       = 200
)

// HTTPProbe issues a single bounded GET and requires status 200.
type HTTPProbe struct {
	Client *http.Client
	Logger *slog.Logger
}

// NewHTTPProbe returns an HTTPProbe whose requests are bounded by timeout.
func NewHTTPProbe(timeout time.Duration, logger *slog.Logger) *HTTPProbe {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPProbe{
		Client: &http.Client{Timeout: timeout},
		Logger: logger,
	}
}

// Probe performs one GET against ep.Address. Any status other than 200 is
// unhealthy; the status only changes the diagnostic text.
func (h *HTTPProbe) Probe(ctx context.Context, ep Endpoint) Outcome {
	log := loggerOr(h.Logger).With("endpoint", ep.Name)
	start := time.Now()

	log.Info("checking http get", "url", ep.Address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.Address, nil)
	if err != nil {
		return failed(ep, start, &Error{Kind: ErrTransport, Msg: err.Error(), Err: err})
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		log.Error("http get failed", "error", err)
		kind := ErrTransport
		if isConnectError(err) {
			kind = ErrConnectionFailure
		}
		return failed(ep, start, &Error{Kind: kind, Msg: err.Error(), Err: err})
	}
	defer resp.Body.Close()

	preview, _ := io.ReadAll(io.LimitReader(resp.Body, previewBytes))
	log.Info("http get responded", "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		out := failed(ep, start, &Error{Kind: ErrHTTPStatus, Msg: StatusDiagnostic(resp.StatusCode)})
		out.StatusCode = resp.StatusCode
		out.Response = string(preview)
		return out
	}

	out := healthy(ep, start)
	out.StatusCode = resp.StatusCode
	out.Response = string(preview)
	return out
}

// StatusDiagnostic describes a non-200 status for alerts and logs.
func StatusDiagnostic(code int) string {
	msg := fmt.Sprintf("HTTP GET returned status %d", code)
	switch {
	case code == http.StatusBadGateway:
		return msg + " (Bad Gateway - Server/Proxy issue)"
	case code == http.StatusServiceUnavailable:
		return msg + " (Service Unavailable)"
	case code == http.StatusGatewayTimeout:
		return msg + " (Gateway Timeout)"
	case code >= 500:
		return msg + " (Server Error)"
	case code >= 400:
		return msg + " (Client Error)"
	default:
		return msg
	}
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
