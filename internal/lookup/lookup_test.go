package lookup_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/SecareLupus/radius-virtual/internal/config"
	"github.com/SecareLupus/radius-virtual/internal/db"
	"github.com/SecareLupus/radius-virtual/internal/identity"
	"github.com/SecareLupus/radius-virtual/internal/lookup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nssConfig = config.NSSConfig{
	Shell:       "/usr/bin/radius_shell",
	Placeholder: true,
	DefaultUser: config.PlaceholderUser{
		Name:  "normaluser",
		UID:   1011,
		GID:   1011,
		Home:  "/tmp",
		Gecos: "NON EXISTENT",
	},
}

func session() identity.ResolvedSession {
	return identity.ResolvedSession{
		Remote: identity.RemoteIdentity{
			Username:   "alice",
			Attributes: []identity.Attribute{{Vendor: 1, Subtype: 1, Value: []byte{0xAA}}},
		},
		Local: identity.MappingRule{
			Username:  "alice_local",
			UID:       2000,
			Group:     "alice_local",
			GID:       2000,
			Home:      "/home/alice_local",
			Shell:     "/bin/bash",
			Attribute: identity.AttributeKey{Vendor: 1, Subtype: 1},
			Value:     []byte{0xAA},
		},
	}
}

func newAdapter(t *testing.T, nss config.NSSConfig) *lookup.Adapter {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.Upsert(session())
	require.NoError(t, err)
	return lookup.New(store, nss)
}

func TestForDirectory(t *testing.T) {
	a := newAdapter(t, nssConfig)

	rule, ok := a.ForDirectory("alice_local")
	require.True(t, ok)
	assert.Equal(t, session().Local, *rule)

	_, ok = a.ForDirectory("nobody")
	assert.False(t, ok)
}

func TestForCredentialCheck(t *testing.T) {
	a := newAdapter(t, nssConfig)

	assert.True(t, a.ForCredentialCheck("alice_local"))
	assert.True(t, a.ForCredentialCheck("alice"))
	assert.False(t, a.ForCredentialCheck("nobody"))
}

func TestPasswd(t *testing.T) {
	a := newAdapter(t, nssConfig)

	want := &lookup.PasswdEntry{
		Name:   "alice_local",
		Passwd: "x",
		UID:    2000,
		GID:    2000,
		Home:   "/home/alice_local",
		Shell:  "/usr/bin/radius_shell",
	}

	tests := []struct {
		query string
		gecos string
	}{
		{"alice_local", "Mapped RADIUS account alice_local->alice_local"},
		{"alice", "Mapped RADIUS account alice->alice_local"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, ok := a.Passwd(tt.query)
			require.True(t, ok)
			w := *want
			w.Gecos = tt.gecos
			assert.Equal(t, &w, got)
		})
	}
}

func TestPasswdPlaceholder(t *testing.T) {
	a := newAdapter(t, nssConfig)

	got, ok := a.Passwd("bob")
	require.True(t, ok)
	assert.Equal(t, &lookup.PasswdEntry{
		Name:   "normaluser",
		Passwd: "x",
		UID:    1011,
		GID:    1011,
		Gecos:  "NON EXISTENT",
		Home:   "/tmp",
		Shell:  "/usr/bin/radius_shell",
	}, got)

	off := nssConfig
	off.Placeholder = false
	_, ok = newAdapter(t, off).Passwd("bob")
	assert.False(t, ok)
}

func TestShadow(t *testing.T) {
	a := newAdapter(t, nssConfig)

	got, ok := a.Shadow("alice")
	require.True(t, ok)
	assert.Equal(t, &lookup.ShadowEntry{
		Name:       "alice_local",
		Hash:       "!",
		LastChange: -1,
		Min:        -1,
		Max:        -1,
		Warn:       -1,
		Inactive:   -1,
		Expire:     -1,
	}, got)

	_, ok = a.Shadow("bob")
	assert.False(t, ok, "shadow never serves the placeholder")
}

type failingStore struct{}

func (failingStore) GetByUsername(string) (*db.Record, error) {
	return nil, errors.Join(db.ErrStoreIO, errors.New("disk on fire"))
}

func (failingStore) GetByRemoteUsername(string) (*db.Record, error) {
	return nil, errors.Join(db.ErrStoreIO, errors.New("disk on fire"))
}

func TestStoreFailureCollapses(t *testing.T) {
	a := lookup.New(failingStore{}, nssConfig)

	_, ok := a.ForDirectory("alice_local")
	assert.False(t, ok)
	assert.False(t, a.ForCredentialCheck("alice_local"))
	_, ok = a.Shadow("alice_local")
	assert.False(t, ok)

	got, ok := a.Passwd("alice_local")
	require.True(t, ok)
	assert.Equal(t, "normaluser", got.Name)
}
