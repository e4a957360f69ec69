package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aliceRule() MappingRule {
	return MappingRule{
		Username:  "alice_local",
		UID:       2000,
		Group:     "alice_local",
		GID:       2000,
		Home:      "/home/alice_local",
		Shell:     "/bin/bash",
		Attribute: AttributeKey{Vendor: 1, Subtype: 1},
		Value:     []byte{0xAA},
	}
}

func TestResolveMatchesRule(t *testing.T) {
	remote := RemoteIdentity{
		Username:   "alice",
		Attributes: []Attribute{{Vendor: 1, Subtype: 1, Value: []byte{0xAA}}},
	}

	s, ok := Resolve(remote, []MappingRule{aliceRule()})
	require.True(t, ok)
	assert.Equal(t, aliceRule(), s.Local)
	assert.Equal(t, remote, s.Remote)
}

func TestResolveNoMatch(t *testing.T) {
	remote := RemoteIdentity{
		Username:   "mallory",
		Attributes: []Attribute{{Vendor: 9, Subtype: 9, Value: []byte{0xFF}}},
	}

	s, ok := Resolve(remote, []MappingRule{aliceRule()})
	assert.False(t, ok)
	assert.Nil(t, s)
}

func TestResolveRequiresKeyAndValue(t *testing.T) {
	tests := []struct {
		name string
		attr Attribute
	}{
		{"wrong vendor", Attribute{Vendor: 2, Subtype: 1, Value: []byte{0xAA}}},
		{"wrong subtype", Attribute{Vendor: 1, Subtype: 2, Value: []byte{0xAA}}},
		{"wrong value", Attribute{Vendor: 1, Subtype: 1, Value: []byte{0xAB}}},
		{"value prefix", Attribute{Vendor: 1, Subtype: 1, Value: []byte{0xAA, 0x00}}},
		{"empty value", Attribute{Vendor: 1, Subtype: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Resolve(RemoteIdentity{Username: "u", Attributes: []Attribute{tt.attr}}, []MappingRule{aliceRule()})
			assert.False(t, ok)
		})
	}
}

func TestResolveIgnoresAttributeOrder(t *testing.T) {
	match := Attribute{Vendor: 1, Subtype: 1, Value: []byte{0xAA}}
	noise := []Attribute{
		{Vendor: 0, Subtype: 25, Value: []byte("class")},
		{Vendor: 311, Subtype: 7, Value: []byte{0x01}},
		{Vendor: 1, Subtype: 1, Value: []byte{0xBB}},
	}

	orders := [][]Attribute{
		{match, noise[0], noise[1], noise[2]},
		{noise[0], match, noise[1], noise[2]},
		{noise[2], noise[1], noise[0], match},
	}
	for _, attrs := range orders {
		s, ok := Resolve(RemoteIdentity{Username: "alice", Attributes: attrs}, []MappingRule{aliceRule()})
		require.True(t, ok)
		assert.Equal(t, "alice_local", s.Local.Username)
	}
}

func TestResolveFirstMatchWins(t *testing.T) {
	first := aliceRule()
	first.Username = "first"
	second := aliceRule()
	second.Username = "second"
	second.Attribute = AttributeKey{Vendor: 2, Subtype: 2}
	second.Value = []byte{0x01}

	// The identity satisfies both rules; the second rule's attribute comes
	// first on the wire.
	remote := RemoteIdentity{
		Username: "bob",
		Attributes: []Attribute{
			{Vendor: 2, Subtype: 2, Value: []byte{0x01}},
			{Vendor: 1, Subtype: 1, Value: []byte{0xAA}},
		},
	}

	s, ok := Resolve(remote, []MappingRule{first, second})
	require.True(t, ok)
	assert.Equal(t, "first", s.Local.Username)

	s, ok = Resolve(remote, []MappingRule{second, first})
	require.True(t, ok)
	assert.Equal(t, "second", s.Local.Username)
}

func TestResolveClonesInputs(t *testing.T) {
	rules := []MappingRule{aliceRule()}
	remote := RemoteIdentity{
		Username:   "alice",
		Attributes: []Attribute{{Vendor: 1, Subtype: 1, Value: []byte{0xAA}}},
	}

	s, ok := Resolve(remote, rules)
	require.True(t, ok)

	rules[0].Value[0] = 0x00
	remote.Attributes[0].Value[0] = 0x00
	assert.Equal(t, []byte{0xAA}, s.Local.Value)
	assert.Equal(t, []byte{0xAA}, s.Remote.Attributes[0].Value)
}

func TestParseAttributeKey(t *testing.T) {
	k, err := ParseAttributeKey("311.25")
	require.NoError(t, err)
	assert.Equal(t, AttributeKey{Vendor: 311, Subtype: 25}, k)
	assert.Equal(t, "311.25", k.String())

	for _, bad := range []string{"", "1", "1.", ".1", "a.b", "1.256", "1.2.3", "-1.2", "4294967296.1"} {
		_, err := ParseAttributeKey(bad)
		assert.Error(t, err, bad)
	}
}
