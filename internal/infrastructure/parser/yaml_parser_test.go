package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specht/specht-client/internal/domain/model"
)

const validConfig = `port: 9090
adapter:
  - id: proxy
    type: socks5
    host: proxy.example.com
    port: 1080
rule:
  - type: country
    country: CN
    adapter: direct
  - type: all
    adapter: proxy
`

func newParser(t *testing.T) *YAMLParser {
	t.Helper()
	p, err := NewYAMLParser()
	require.NoError(t, err)
	return p
}

func TestValidate_Valid(t *testing.T) {
	p := newParser(t)
	assert.NoError(t, p.Validate([]byte(validConfig)))
}

func TestValidate_BuiltinAdapterOnly(t *testing.T) {
	p := newParser(t)
	assert.NoError(t, p.Validate([]byte("port: 8080\nrule:\n  - type: all\n    adapter: direct\n")))
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]string{
		"malformed yaml":     "port: [9090\nrule:\n",
		"empty document":     "",
		"scalar document":    "just text",
		"missing port":       "rule:\n  - type: all\n",
		"port out of range":  "port: 70000\nrule:\n  - type: all\n",
		"port wrong type":    "port: high\nrule:\n  - type: all\n",
		"no rules":           "port: 9090\nrule: []\n",
		"unknown rule type":  "port: 9090\nrule:\n  - type: sometimes\n",
		"unknown adapter":    "port: 9090\nadapter:\n  - id: a\n    type: warp\nrule:\n  - type: all\n",
		"dangling reference": "port: 9090\nrule:\n  - type: all\n    adapter: missing\n",
		"duplicate adapter":  "port: 9090\nadapter:\n  - id: a\n    type: http\n  - id: a\n    type: ss\nrule:\n  - type: all\n    adapter: a\n",
	}

	p := newParser(t)
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			err := p.Validate([]byte(text))
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrInvalidConfig), "got %v", err)

			var parseErr *ParseError
			assert.True(t, errors.As(err, &parseErr))
		})
	}
}

func TestValidate_ExtraKeysAllowed(t *testing.T) {
	p := newParser(t)
	text := "port: 9090\nipv6: true\nrule:\n  - type: dnsfail\n    adapter: reject\n    note: fallback\n"
	assert.NoError(t, p.Validate([]byte(text)))
}
