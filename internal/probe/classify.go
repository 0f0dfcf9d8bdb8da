package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// connectError wraps a failure to establish a connection with a diagnostic
// that names the cause: timeout, refusal, name resolution or something else.
func connectError(err error, timeout time.Duration) *Error {
	return &Error{
		Kind: ErrConnectionFailure,
		Msg:  describeConnectError(err, timeout),
		Err:  err,
	}
}

func describeConnectError(err error, timeout time.Duration) string {
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr):
		return fmt.Sprintf("name resolution failed for %s: %v", dnsErr.Name, err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Sprintf("connection refused: %v", err)
	case isTimeout(err):
		return fmt.Sprintf("connection timeout after %s: %v", timeout, err)
	default:
		return fmt.Sprintf("connection failed: %v", err)
	}
}

// isConnectError reports whether err happened while establishing the
// connection rather than after it was up.
func isConnectError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return isTimeout(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
