package urlhandler

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// UnknownDomain is the sentinel returned for unparsable request URLs.
// Malformed input is classified rather than rejected, so a hostile extension
// cannot hide traffic behind a broken URL.
const UnknownDomain = "unknown"

// NormalizeURL normalizes a URL string, ensuring it has a scheme, lowercase
// host, and no fragment.
func NormalizeURL(rawURL string) (string, error) {
	trimmedURL := strings.TrimSpace(rawURL)
	if trimmedURL == "" {
		return "", errors.New("URL is empty or only whitespace")
	}

	if !strings.Contains(trimmedURL, "://") && !strings.HasPrefix(trimmedURL, "//") {
		trimmedURL = "http://" + trimmedURL
	}

	parsedURL, err := url.Parse(trimmedURL)
	if err != nil {
		return "", fmt.Errorf("could not parse URL '%s': %w", trimmedURL, err)
	}

	if parsedURL.Host == "" {
		return "", errors.New("URL lacks a valid hostname")
	}

	parsedURL.Host = strings.ToLower(parsedURL.Host)
	parsedURL.Fragment = ""

	return parsedURL.String(), nil
}

// ExtractDomain returns the registrable domain of a request URL, falling back
// through host, IP literal, and finally UnknownDomain for malformed input.
func ExtractDomain(rawURL string) string {
	parsedURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsedURL.Host == "" {
		return UnknownDomain
	}

	host := strings.ToLower(parsedURL.Hostname())
	if host == "" {
		return UnknownDomain
	}

	// IP literals have no registrable domain.
	if net.ParseIP(host) != nil {
		return host
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Single-label hosts (localhost, intranet names) keep the raw host.
		return host
	}
	return domain
}

// ExtractHostname returns the lowercase hostname of a URL, or UnknownDomain.
func ExtractHostname(rawURL string) string {
	parsedURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsedURL.Host == "" {
		return UnknownDomain
	}
	return strings.ToLower(parsedURL.Hostname())
}
