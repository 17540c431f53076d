package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsernameOfSplitsAtLastSeparator(t *testing.T) {
	tests := []struct {
		serviceName string
		username    string
		suffix      string
	}{
		{"alice@host1", "alice", "host1"},
		{"bob@h2", "bob", "h2"},
		{"user@name@host", "user@name", "host"},
		{"carol@", "carol", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.username, UsernameOf(tt.serviceName), "username of %q", tt.serviceName)
		assert.Equal(t, tt.suffix, SuffixOf(tt.serviceName), "suffix of %q", tt.serviceName)
	}
}

func TestUsernameOfKeepsMalformedNames(t *testing.T) {
	// No separator at all, or nothing before it: legacy and malformed
	// names display as-is.
	assert.Equal(t, "justaname", UsernameOf("justaname"))
	assert.Equal(t, "", SuffixOf("justaname"))
	assert.Equal(t, "@host", UsernameOf("@host"))
	assert.Equal(t, "", UsernameOf(""))
}

func TestServiceNameRoundTrip(t *testing.T) {
	wellFormed := []string{
		"alice@host1",
		"bob@h2",
		"user@name@host",
		"émile@ordinateur-1",
	}

	for _, name := range wellFormed {
		recomposed := ServiceNameOf(UsernameOf(name), SuffixOf(name))
		assert.Equal(t, name, recomposed)
	}
}
