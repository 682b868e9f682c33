package utils

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/crawl-tracker/internal/entity"
)

func TestHashURL(t *testing.T) {
	a := HashURL("https://example.com/a")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashURL("https://example.com/a"))
	assert.NotEqual(t, a, HashURL("https://example.com/b"))
}

func TestToAbsoluteURL(t *testing.T) {
	base, _ := url.Parse("https://example.com/recipes/soup")
	abs, err := ToAbsoluteURL(base, "../about")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/about", abs)

	abs, err = ToAbsoluteURL(base, "https://other.org/x")
	require.NoError(t, err)
	assert.Equal(t, "https://other.org/x", abs)
}

func TestValidateURL(t *testing.T) {
	valid := []string{
		"https://example.com",
		"http://example.com:8080/path?q=1",
		"HTTPS://Example.com/a",
	}
	for _, raw := range valid {
		_, err := ValidateURL(raw)
		assert.NoError(t, err, raw)
	}

	invalid := []string{
		"",
		"   ",
		"not a url",
		"example.com/page",
		"/relative/path",
		"https://",
		"ftp://example.com/file",
		"mailto:someone@example.com",
	}
	for _, raw := range invalid {
		_, err := ValidateURL(raw)
		var vErr *entity.ValidationError
		assert.True(t, errors.As(err, &vErr), "expected validation error for %q", raw)
	}
}

func TestDomainOf(t *testing.T) {
	u, err := ValidateURL("https://Sub.Example.com:8443/a/b")
	require.NoError(t, err)
	assert.Equal(t, "sub.example.com:8443", DomainOf(u))
}

func TestNormalizeDomain(t *testing.T) {
	valid := map[string]string{
		"example.com":        "example.com",
		"  Sub.Example.COM ": "sub.example.com",
		"localhost:8080":     "localhost:8080",
		"Example.com:443":    "example.com:443",
	}
	for in, want := range valid {
		got, err := NormalizeDomain(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	invalid := []string{
		"",
		"  ",
		"https://example.com",
		"example.com/path",
		"example.com?q=1",
		"user@example.com",
		":8080",
		"exa mple.com",
		"example.com:port",
	}
	for _, in := range invalid {
		_, err := NormalizeDomain(in)
		var vErr *entity.ValidationError
		assert.True(t, errors.As(err, &vErr), "expected validation error for %q", in)
	}
}
