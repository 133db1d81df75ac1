package services

import (
	"net/url"
	"strings"

	"github.com/capitao/athena-tasks/internal/apperrors"
)

// linkHosts maps link fields to the hosts their URLs must live on. Fields
// not listed here are free-form: any http(s) URL or a filesystem path.
var linkHosts = map[string][]string{
	"github_issue": {"github.com"},
	"github_pr":    {"github.com"},
	"gdrive":       {"drive.google.com", "docs.google.com"},
	"doc":          {"docs.google.com"},
}

// normalizeLink validates a link value against its field's domain rule and
// returns the normalized form: tracking query parameters (utm_*) stripped
// and no trailing slash.
func normalizeLink(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperrors.NewValidation("link %q cannot be empty; use null to clear it", field)
	}

	if !strings.Contains(value, "://") {
		// Filesystem paths are only accepted for free-form fields.
		if _, restricted := linkHosts[field]; restricted {
			return "", apperrors.NewValidation("link %q must be a URL, got path %q", field, value)
		}
		return strings.TrimRight(value, "/"), nil
	}

	u, err := url.Parse(value)
	if err != nil {
		return "", apperrors.NewValidation("link %q is not a valid URL: %v", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", apperrors.NewValidation("link %q must use http or https, got %q", field, u.Scheme)
	}
	if u.Host == "" {
		return "", apperrors.NewValidation("link %q has no host", field)
	}

	if hosts, restricted := linkHosts[field]; restricted && !hostAllowed(u.Hostname(), hosts) {
		return "", apperrors.NewValidation("link %q must point at %s, got %q",
			field, strings.Join(hosts, " or "), u.Hostname())
	}

	q := u.Query()
	for param := range q {
		if strings.HasPrefix(strings.ToLower(param), "utm_") {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String(), nil
}

func hostAllowed(host string, allowed []string) bool {
	host = strings.ToLower(host)
	for _, a := range allowed {
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

// normalizeLinks validates and normalizes a full links update. Nil values
// pass through untouched; they clear the link.
func normalizeLinks(links map[string]*string) (map[string]*string, error) {
	if links == nil {
		return nil, nil
	}
	out := make(map[string]*string, len(links))
	for field, value := range links {
		if value == nil {
			out[field] = nil
			continue
		}
		normalized, err := normalizeLink(field, *value)
		if err != nil {
			return nil, err
		}
		out[field] = &normalized
	}
	return out, nil
}
