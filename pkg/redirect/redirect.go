// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

/*
Package redirect builds user-facing redirect URLs that are safe against
open-redirect attacks.

Every browser-facing authentication flow (magic link verification, OAuth
callback) ends in a redirect back to a frontend. This package is the single
place where those URLs are constructed, so the allow-list policy cannot be
bypassed by an individual handler.

Policy:

  - Only http and https schemes are ever accepted.
  - When an allow-list is configured, the target host must match one of the
    allowed domains ("example.com") or wildcard entries ("*.example.com").
  - Query parameter values are stripped of HTML/JS injection characters and
    line breaks before being attached.
*/
package redirect

import (
	"errors"
	"net/url"
	"strings"
)

// ErrDisallowedURL is returned when a target URL fails the safety policy.
var ErrDisallowedURL = errors.New("redirect: URL is not allowed")

// # Parameters

// Params holds the query parameters a redirect URL may carry.
//
// Zero-valued fields are omitted from the final URL.
type Params struct {
	AccessToken  string
	RefreshToken string
	Error        string
	Message      string
	UserID       string
	Email        string
	Name         string
}

// # URL Construction

// Build attaches the sanitized params to baseURL after validating it against
// the allow-list. It returns [ErrDisallowedURL] when the base URL is unsafe.
func Build(baseURL string, params Params, allowedDomains []string) (string, error) {

	// 1. The base URL itself must pass the policy before anything is appended.
	sanitizedBase, err := Sanitize(baseURL, allowedDomains)
	if err != nil {
		return "", err
	}

	target, err := url.Parse(sanitizedBase)
	if err != nil {
		return "", ErrDisallowedURL
	}

	// 2. Attach the non-empty, sanitized parameters.
	query := target.Query()
	for key, value := range map[string]string{
		"accessToken":  params.AccessToken,
		"refreshToken": params.RefreshToken,
		"error":        params.Error,
		"message":      params.Message,
		"userId":       params.UserID,
		"email":        params.Email,
		"name":         params.Name,
	} {
		cleaned := sanitizeParam(value)
		if cleaned != "" {
			query.Set(key, cleaned)
		}
	}
	target.RawQuery = query.Encode()

	return target.String(), nil
}

// Sanitize validates a URL against the scheme and domain policy.
//
// It returns the normalized URL string, or [ErrDisallowedURL] if the URL is
// malformed, uses a non-http(s) scheme, or targets a host outside the
// allow-list (when one is configured).
func Sanitize(rawURL string, allowedDomains []string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", ErrDisallowedURL
	}

	// Only web schemes may be redirect targets. This blocks javascript:,
	// data:, file: and friends.
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", ErrDisallowedURL
	}

	if parsed.Hostname() == "" {
		return "", ErrDisallowedURL
	}

	// An empty allow-list means any http(s) host is accepted.
	if len(allowedDomains) > 0 && !hostAllowed(parsed.Hostname(), allowedDomains) {
		return "", ErrDisallowedURL
	}

	return parsed.String(), nil
}

// IsValid reports whether a URL passes the redirect safety policy.
func IsValid(rawURL string, allowedDomains []string) bool {
	_, err := Sanitize(rawURL, allowedDomains)
	return err == nil
}

// ParseAllowedDomains splits a comma-separated domain allow-list from
// configuration into a normalized slice. Empty entries are dropped.
func ParseAllowedDomains(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	domains := make([]string, 0, len(parts))
	for _, part := range parts {
		domain := strings.TrimSpace(part)
		if domain != "" {
			domains = append(domains, domain)
		}
	}
	return domains
}

// # Internal Policy Helpers

// hostAllowed checks a hostname against exact and wildcard domain entries.
func hostAllowed(hostname string, allowedDomains []string) bool {
	for _, domain := range allowedDomains {

		// Wildcard entries ("*.example.com") match the base domain and any subdomain.
		if base, isWildcard := strings.CutPrefix(domain, "*."); isWildcard {
			if hostname == base || strings.HasSuffix(hostname, "."+base) {
				return true
			}
			continue
		}

		if hostname == domain {
			return true
		}
	}
	return false
}

// sanitizeParam strips characters that could be abused for HTML/JS injection
// or header splitting when the frontend reflects the value.
func sanitizeParam(value string) string {
	replacer := strings.NewReplacer(
		"<", "", ">", "", "'", "", `"`, "", "&", "",
		"\r", "", "\n", "",
	)
	return strings.TrimSpace(replacer.Replace(value))
}
