package store

import (
	"testing"

	"github.com/ksdme/vortex/internal/address"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]address.Address{
		`alice@example.com`:            "alice@example.com",
		`"alice@example.com"`:          "alice@example.com",
		"\"\\\"alice@example.com\\\"\"": "alice@example.com",
		`'alice@example.com'`:          "alice@example.com",
		`""alice@example.com""`:        "alice@example.com",
		` "Alice@Example.com" `:        "alice@example.com",
		`a"b@example.com`:              "ab@example.com",
		`"alice@example.com`:           "alice@example.com",
		`alice'@example.com'`:          "alice@example.com",
		`"`:                            "",
		``:                             "",
	}

	for raw, expected := range cases {
		normalized := Normalize(raw)
		assert.Equal(t, expected, normalized, raw)
		assert.NotContains(t, normalized.String(), `"`, raw)
		assert.NotContains(t, normalized.String(), `'`, raw)
	}
}
