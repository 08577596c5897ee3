package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"forces https and lowercases host", "http://EX.com/a/", "https://ex.com/a"},
		{"strips query string", "https://example.com/page?utm_source=x", "https://example.com/page"},
		{"strips fragment", "https://example.com/page#section", "https://example.com/page"},
		{"trims trailing slash", "https://example.com/gallery/", "https://example.com/gallery"},
		{"keeps bare root slash", "https://example.com/", "https://example.com/"},
		{"adds root slash to bare host", "https://example.com", "https://example.com/"},
		{"preserves path case", "https://example.com/MyWork", "https://example.com/MyWork"},
		{"already normalized", "https://example.com/a", "https://example.com/a"},
		{"trims surrounding whitespace", "  https://example.com/a  ", "https://example.com/a"},
		{"no host passes through", "not a url", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeURL(tt.input))
		})
	}
}

func TestNormalizeURLIdempotent(t *testing.T) {
	inputs := []string{
		"http://EX.com/a/",
		"https://example.com/page?q=1#top",
		"https://example.com/",
		"https://example.com",
		"not a url",
	}

	for _, in := range inputs {
		once := NormalizeURL(in)
		assert.Equal(t, once, NormalizeURL(once), "normalize(%q) must be idempotent", in)
	}
}
