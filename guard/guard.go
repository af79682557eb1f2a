// Package guard confines document sources supplied by API clients: file
// paths stay under a root directory, URLs may not reach private networks,
// document ids are plain identifiers and reads are bounded.
package guard

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

var (
	// ErrPathTraversal is returned when a client path escapes its root.
	ErrPathTraversal = errors.New("guard: path escapes the document root")
	// ErrSSRF is returned when a URL targets a private or loopback address.
	ErrSSRF = errors.New("guard: URL targets a private or loopback address")
	// ErrUnsafeScheme is returned for URL schemes other than http and https.
	ErrUnsafeScheme = errors.New("guard: only http and https URLs are allowed")
	// ErrInvalidIdentifier is returned by ValidateIdentifier.
	ErrInvalidIdentifier = errors.New("guard: invalid identifier")
	// ErrTooLarge is returned by LimitedReadAll.
	ErrTooLarge = errors.New("guard: input too large")
)

// Forbidden reports whether err is one of the confinement errors, as
// opposed to a malformed request or an I/O failure.
func Forbidden(err error) bool {
	return errors.Is(err, ErrPathTraversal) || errors.Is(err, ErrSSRF) || errors.Is(err, ErrUnsafeScheme)
}

// SafePath resolves a client path below root. Absolute inputs are taken
// relative to root; any ".." element is refused.
func SafePath(root, input string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: no document root configured", ErrPathTraversal)
	}
	for _, el := range strings.FieldsFunc(input, func(r rune) bool { return r == '/' || r == '\\' }) {
		if el == ".." {
			return "", ErrPathTraversal
		}
	}
	base := filepath.Clean(root)
	cleaned := filepath.Join(base, filepath.Clean("/"+input))
	if cleaned != base && !strings.HasPrefix(cleaned, base+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

// Resolver looks up the addresses of a host.
type Resolver func(host string) ([]string, error)

// ValidateURL checks that rawURL is http(s) with a host that does not
// resolve to a private address. A nil resolver uses net.LookupHost. Lookup
// failures are let through; the fetch fails on its own.
func ValidateURL(rawURL string, resolve Resolver) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("guard: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("guard: URL %q has no host", rawURL)
	}
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrSSRF
		}
		return nil
	}
	if resolve == nil {
		resolve = net.LookupHost
	}
	addrs, err := resolve(host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return ErrSSRF
		}
	}
	return nil
}

// ValidateIdentifier accepts 1 to 128 characters of [A-Za-z0-9_.-], not
// starting with a dot.
func ValidateIdentifier(s string) error {
	switch {
	case s == "":
		return fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	case len(s) > 128:
		return fmt.Errorf("%w: longer than 128 characters", ErrInvalidIdentifier)
	case s[0] == '.':
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidIdentifier, s)
	}
	for _, r := range s {
		if !isIdentChar(r) {
			return fmt.Errorf("%w: character %q in %q", ErrInvalidIdentifier, r, s)
		}
	}
	return nil
}

// LimitedReadAll reads r, failing with ErrTooLarge past maxBytes.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}

var privateNets = func() []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"100.64.0.0/10",
		"169.254.0.0/16",
		"fc00::/7",
	} {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}()

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
