package detector

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/config"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
)

var base64TokenRegex = regexp.MustCompile(`^[A-Za-z0-9+/_-]+={0,2}$`)

// DetectEncodedParameters flags request URLs whose query values or path
// segments carry base64 or heavily percent-encoded payloads above the length
// threshold, a proxy for covert data exfiltration.
func DetectEncodedParameters(records []models.NetworkRequestRecord, cfg config.DetectorConfig, _ time.Time) []models.SuspiciousPattern {
	minLength := cfg.EncodedMinLength
	if minLength <= 0 {
		minLength = config.DefaultEncodedMinLength
	}

	type hit struct {
		count  int
		sample string
	}
	hits := make(map[string]*hit)

	for _, record := range records {
		if record.ExtensionID == "" {
			continue
		}
		token, found := findEncodedToken(record.URL, minLength)
		if !found {
			continue
		}
		h := hits[record.ExtensionID]
		if h == nil {
			h = &hit{sample: truncate(token, 48)}
			hits[record.ExtensionID] = h
		}
		h.count++
	}

	findings := make([]models.SuspiciousPattern, 0)
	for extensionID, h := range hits {
		score := 15 + 5*h.count
		if score > 30 {
			score = 30
		}
		findings = append(findings, models.SuspiciousPattern{
			Kind:        models.PatternEncodedParams,
			ExtensionID: extensionID,
			Evidence:    fmt.Sprintf("%d URLs with encoded payloads, e.g. %q", h.count, h.sample),
			Score:       score,
		})
	}
	return findings
}

// findEncodedToken scans query values and path segments for an encoded
// payload of at least minLength characters.
func findEncodedToken(rawURL string, minLength int) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	for _, values := range parsed.Query() {
		for _, value := range values {
			if isEncodedPayload(value, minLength) {
				return value, true
			}
		}
	}

	for _, segment := range strings.Split(parsed.EscapedPath(), "/") {
		if isEncodedPayload(segment, minLength) {
			return segment, true
		}
	}
	return "", false
}

func isEncodedPayload(token string, minLength int) bool {
	if len(token) < minLength {
		return false
	}

	// Heavy percent encoding: escape sequences span a third or more of the token.
	percentCount := strings.Count(token, "%")
	if percentCount >= 8 && percentCount*9 >= len(token) {
		return true
	}

	if !base64TokenRegex.MatchString(token) {
		return false
	}

	normalized := strings.ReplaceAll(strings.ReplaceAll(token, "-", "+"), "_", "/")
	if _, err := base64.StdEncoding.DecodeString(pad(normalized)); err == nil {
		return true
	}
	return false
}

func pad(s string) string {
	if rem := len(s) % 4; rem != 0 {
		return s + strings.Repeat("=", 4-rem)
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
