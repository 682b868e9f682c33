package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/user/crawl-tracker/internal/entity"
)

// HashURL creates a SHA256 hash of a URL string.
// This is useful for creating consistent, safe keys for Redis.
func HashURL(rawURL string) string {
	h := sha256.New()
	h.Write([]byte(rawURL))
	return hex.EncodeToString(h.Sum(nil))
}

// ToAbsoluteURL converts a relative URL to an absolute URL given a base URL.
func ToAbsoluteURL(base *url.URL, relative string) (string, error) {
	relURL, err := url.Parse(relative)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(relURL).String(), nil
}

// ValidateURL checks that rawURL is an absolute http(s) URL with a host.
func ValidateURL(rawURL string) (*url.URL, error) {
	invalid := func(reason string) error {
		return &entity.ValidationError{Field: "url", Value: rawURL, Reason: reason}
	}
	if strings.TrimSpace(rawURL) == "" {
		return nil, invalid("url is empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, invalid("cannot be parsed")
	}
	if u.Scheme == "" {
		return nil, invalid("missing scheme")
	}
	if u.Host == "" || u.Hostname() == "" {
		return nil, invalid("missing host")
	}
	if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
		return nil, invalid("scheme must be http or https")
	}
	return u, nil
}

// DomainOf returns the network location (host and optional port) a page is
// grouped under, lowercased.
func DomainOf(u *url.URL) string {
	return strings.ToLower(u.Host)
}

// NormalizeDomain validates a bare network location such as "example.com" or
// "example.com:8080" and returns it in the form DomainOf produces.
func NormalizeDomain(name string) (string, error) {
	invalid := func(reason string) error {
		return &entity.ValidationError{Field: "domain", Value: name, Reason: reason}
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", invalid("domain is empty")
	}
	u, err := url.Parse("http://" + trimmed)
	if err != nil {
		return "", invalid("cannot be parsed")
	}
	if u.Host != trimmed || u.Hostname() == "" || u.User != nil {
		return "", invalid("must be a host with an optional port")
	}
	return strings.ToLower(u.Host), nil
}
