package probe

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveKind infers the probe kind from an endpoint address.
//
// Supported schemes:
//   - http://, https:// → KindHTTP
//   - ws://, wss://     → KindStream
func ResolveKind(address string) (Kind, error) {
	u, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("parsing address %q: %w", address, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("address has no host: %s", address)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return KindHTTP, nil
	case "ws", "wss":
		return KindStream, nil
	default:
		return "", fmt.Errorf("unsupported address scheme: %s", address)
	}
}

// CheckKind verifies that an explicitly configured kind matches the address.
func CheckKind(kind Kind, address string) error {
	inferred, err := ResolveKind(address)
	if err != nil {
		return err
	}
	if kind != "" && kind != inferred {
		return fmt.Errorf("kind %q does not match address scheme of %s", kind, address)
	}
	return nil
}
