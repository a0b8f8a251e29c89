package address

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var domains = []string{"example.com", "example.org"}

func TestNewGenerator_NoDomains(t *testing.T) {
	_, err := NewGenerator(nil, 1)
	assert.ErrorIs(t, err, ErrNoDomains)

	_, err = NewGenerator([]string{}, 1)
	assert.ErrorIs(t, err, ErrNoDomains)
}

func TestGenerate_ProducesValidAddresses(t *testing.T) {
	generator, err := NewGenerator(domains, 42)
	require.NoError(t, err)

	for range 200 {
		generated := generator.Generate()

		local, domain, ok := strings.Cut(generated.String(), "@")
		require.True(t, ok, "address %q has no @", generated)
		assert.NotEmpty(t, local)
		assert.Contains(t, domains, domain)
		assert.Equal(t, strings.ToLower(local), local)
		assert.NoError(t, ValidateLocal(local))
		assert.True(t, generator.Allowed(generated))
	}
}

func TestGenerate_DiscardingResultsKeepsNextValid(t *testing.T) {
	generator, err := NewGenerator(domains, 7)
	require.NoError(t, err)

	_ = generator.Generate()
	second := generator.Generate()

	assert.NotEmpty(t, second.Local())
	assert.Contains(t, domains, second.Domain())
}

func TestGenerate_SingleDomain(t *testing.T) {
	generator, err := NewGenerator([]string{"only.example"}, 3)
	require.NoError(t, err)

	assert.Equal(t, "only.example", generator.Generate().Domain())
}

func TestParse(t *testing.T) {
	parsed, err := Parse("  Alice@Example.com ", domains)
	require.NoError(t, err)
	assert.Equal(t, Address("alice@example.com"), parsed)
	assert.Equal(t, "alice", parsed.Local())
	assert.Equal(t, "example.com", parsed.Domain())

	_, err = Parse("alice", domains)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = Parse("alice@unknown.com", domains)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = Parse(".alice@example.com", domains)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = Parse("@example.com", domains)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAllowed_RejectsForeignDomains(t *testing.T) {
	generator, err := NewGenerator(domains, 1)
	require.NoError(t, err)

	assert.True(t, generator.Allowed("bob@example.org"))
	assert.False(t, generator.Allowed("bob@elsewhere.net"))
	assert.False(t, generator.Allowed(""))
}

func TestSanitizeLocal(t *testing.T) {
	assert.Equal(t, "john.doe", sanitizeLocal("John..Doe"))
	assert.Equal(t, "kuhn4567", sanitizeLocal("Kuhn4567"))
	assert.Equal(t, "a-b", sanitizeLocal("_-A--B-_"))
	assert.Equal(t, "", sanitizeLocal("!!!"))
}
