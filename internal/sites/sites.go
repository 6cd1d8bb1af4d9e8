// Package sites holds the pure hostname helpers shared by the tracker, the
// HTTP handlers and the configure CLI.
package sites

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// BlankPage is the browser's empty page marker
const BlankPage = "about:blank"

// MaxHostnameLength is the DNS limit for a full hostname
const MaxHostnameLength = 253

var (
	// ErrUntrackable is returned for URLs the tracker must ignore
	ErrUntrackable = errors.New("untrackable url")
	// ErrNoHostname is returned when a URL parses but carries no host
	ErrNoHostname = errors.New("url has no hostname")
	// ErrInvalidHostname is returned when a host cannot be stored as a site
	ErrInvalidHostname = errors.New("invalid hostname")
)

// privilegedSchemes are browser-internal or opaque schemes that never map to a site
var privilegedSchemes = []string{
	"chrome:",
	"chrome-extension:",
	"chrome-search:",
	"chrome-untrusted:",
	"edge:",
	"brave:",
	"about:",
	"moz-extension:",
	"devtools:",
	"view-source:",
	"file:",
	"data:",
	"javascript:",
	"blob:",
}

// IsTrackable reports whether rawURL may be turned into a site. It only looks
// at the string prefix so it is safe for schemeless or opaque inputs.
func IsTrackable(rawURL string) bool {
	u := strings.TrimSpace(rawURL)
	if u == "" || u == BlankPage {
		return false
	}
	lower := strings.ToLower(u)
	for _, scheme := range privilegedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}
	return true
}

// HostnameFromURL returns the normalized site identifier for a tab URL.
// Callers must treat any error as "skip this transition".
func HostnameFromURL(rawURL string) (string, error) {
	if !IsTrackable(rawURL) {
		return "", ErrUntrackable
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", ErrNoHostname
	}

	var site string
	if strings.Contains(host, ":") {
		// Hostname drops the brackets of an IPv6 literal; stored sites keep them
		site = "[" + strings.ToLower(host) + "]"
	} else {
		site = strings.ToLower(host)
		if strings.HasPrefix(site, "www.") {
			site = site[len("www."):]
		}
		site = toASCII(strings.TrimSuffix(site, "."))
	}
	if !Valid(site) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHostname, site)
	}
	return site, nil
}

// Normalize turns user input ("https://www.Example.com/path?q=1") into the
// stored site identifier ("example.com"). Hostnames are lowercased.
func Normalize(input string) string {
	domain := strings.TrimSpace(input)
	lower := strings.ToLower(domain)
	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(lower, prefix) {
			domain = domain[len(prefix):]
			lower = lower[len(prefix):]
			break
		}
	}
	if strings.HasPrefix(lower, "www.") {
		domain = domain[len("www."):]
	}
	if i := strings.IndexAny(domain, "/?#"); i >= 0 {
		domain = domain[:i]
	}
	// drop a port, but leave bracketed IPv6 literals intact
	if i := strings.LastIndex(domain, ":"); i >= 0 && !strings.HasSuffix(domain, "]") {
		domain = domain[:i]
	}
	domain = strings.TrimSuffix(domain, ".")
	return toASCII(strings.ToLower(domain))
}

// toASCII converts an internationalized hostname to its punycode form, the
// way the browser reports it. Hosts that fail conversion are returned as is
// and rejected by Valid.
func toASCII(host string) string {
	for i := 0; i < len(host); i++ {
		if host[i] >= utf8.RuneSelf {
			ascii, err := idna.Lookup.ToASCII(host)
			if err != nil {
				return host
			}
			return ascii
		}
	}
	return host
}

// Valid reports whether site looks like a stored site identifier
func Valid(site string) bool {
	if site == "" || len(site) > MaxHostnameLength {
		return false
	}
	for _, r := range site {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '.', r == '-', r == '_', r == ':', r == '[', r == ']':
		default:
			// IDN hostnames are stored in punycode
			return false
		}
	}
	return true
}
