package blacklist

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// ErrInvalidIP marks a literal that was rejected before any store access.
var ErrInvalidIP = errors.New("invalid ip literal")

// NormalizeIP validates an IP literal and returns its canonical text.
// IPv4 dotted-quad and every RFC 4291 IPv6 textual form are accepted,
// including zero compression. Zoned addresses (fe80::1%eth0) and
// IPv4-in-IPv6 literals (::ffff:1.2.3.4) are rejected: neither names a
// routable client address this system should key on.
func NormalizeIP(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidIP)
	}

	addr, err := netip.ParseAddr(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidIP, raw)
	}
	if addr.Zone() != "" {
		return "", fmt.Errorf("%w: zoned address %q", ErrInvalidIP, raw)
	}
	if addr.Is4In6() {
		return "", fmt.Errorf("%w: 4-in-6 address %q", ErrInvalidIP, raw)
	}

	return addr.String(), nil
}
