package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SecareLupus/radius-virtual/internal/config"
	"github.com/SecareLupus/radius-virtual/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[db]
path = "/var/lib/radius-virtual/sessions.db"

[radius]
shared_secret = "global-secret"
timeout = 5
attributes = ["9.1", "311.25"]

[[radius.servers]]
address = "10.0.0.1"

[[radius.servers]]
address = "10.0.0.2:1645"
shared_secret = "second-secret"
timeout = "45s"

[[users]]
username = "alice_local"
uid = 2000
group = "alice_local"
gid = 2000
home = "/home/alice_local"
shell = "/bin/bash"
attribute = "1.1"
attribute_value = "AA"

[[users]]
username = "ops"
uid = 2001
group = "ops"
gid = 2001
home = "/home/ops"
shell = "/bin/zsh"
attribute = "9.1"
attribute_value = [111, 112, 115]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "radius_auth_virtual.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/radius-virtual/sessions.db", cfg.DB.Path)
	assert.Equal(t, config.DefaultBusyTimeout, cfg.DB.BusyTimeout)

	assert.Equal(t, 5*time.Second, cfg.Radius.Timeout)
	assert.Equal(t, []identity.AttributeKey{{Vendor: 9, Subtype: 1}, {Vendor: 311, Subtype: 25}}, cfg.Radius.Attributes)
	require.Len(t, cfg.Radius.Servers, 2)
	assert.Equal(t, "10.0.0.1", cfg.Radius.Servers[0].Address)
	assert.Equal(t, 45*time.Second, cfg.Radius.Servers[1].Timeout)

	require.Len(t, cfg.Users, 2)
	assert.Equal(t, identity.AttributeKey{Vendor: 1, Subtype: 1}, cfg.Users[0].Attribute)
	assert.Equal(t, config.HexBytes{0xAA}, cfg.Users[0].AttributeValue)
	assert.Equal(t, config.HexBytes("ops"), cfg.Users[1].AttributeValue)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultNSSShell, cfg.NSS.Shell)
	assert.True(t, cfg.NSS.Placeholder)
	assert.Equal(t, "normaluser", cfg.NSS.DefaultUser.Name)
	assert.Equal(t, uint32(1011), cfg.NSS.DefaultUser.UID)
	assert.Equal(t, uint32(1011), cfg.NSS.DefaultUser.GID)
	assert.Equal(t, "/tmp", cfg.NSS.DefaultUser.Home)
	assert.Equal(t, "NON EXISTENT", cfg.NSS.DefaultUser.Gecos)

	assert.Zero(t, cfg.Handoff.MaxTokenAge)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "auto", cfg.Logging.Output)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RADIUS_VIRTUAL_DB_PATH", "/tmp/override.db")
	t.Setenv("RADIUS_VIRTUAL_HANDOFF_MAX_TOKEN_AGE", "2m")
	t.Setenv("RADIUS_VIRTUAL_LOGGING_LEVEL", "debug")

	cfg, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.db", cfg.DB.Path)
	assert.Equal(t, 2*time.Minute, cfg.Handoff.MaxTokenAge)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadSystemIgnoresEnv(t *testing.T) {
	t.Setenv("RADIUS_VIRTUAL_DB_PATH", "/tmp/attacker.db")
	t.Setenv("RADIUS_VIRTUAL_LOGGING_OUTPUT", "/etc/shadow")
	t.Setenv("RADIUS_VIRTUAL_NSS_DEFAULT_USER_UID", "0")

	cfg, err := config.LoadSystem(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/radius-virtual/sessions.db", cfg.DB.Path)
	assert.Equal(t, "auto", cfg.Logging.Output)
	assert.Equal(t, uint32(1011), cfg.NSS.DefaultUser.UID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "no db path",
			content: strings.Replace(sampleConfig, `path = "/var/lib/radius-virtual/sessions.db"`, "", 1),
			want:    "DB.Path is required",
		},
		{
			name:    "db path with query",
			content: strings.Replace(sampleConfig, `path = "/var/lib/radius-virtual/sessions.db"`, `path = "/tmp/s.db?mode=ro"`, 1),
			want:    "DB.Path must not contain",
		},
		{
			name: "no servers",
			content: `
[db]
path = "/tmp/s.db"
[radius]
shared_secret = "s"
`,
			want: "Radius.Servers",
		},
		{
			name: "no shared secret",
			content: `
[db]
path = "/tmp/s.db"
[[radius.servers]]
address = "10.0.0.1"
`,
			want: "no shared secret",
		},
		{
			name: "secret too long",
			content: `
[db]
path = "/tmp/s.db"
[[radius.servers]]
address = "10.0.0.1"
shared_secret = "` + strings.Repeat("x", 257) + `"
`,
			want: "longer than 256 bytes",
		},
		{
			name:    "bad attribute",
			content: strings.Replace(sampleConfig, `attribute = "1.1"`, `attribute = "1-1"`, 1),
			want:    "invalid attribute format",
		},
		{
			name:    "bad attribute value",
			content: strings.Replace(sampleConfig, `attribute_value = "AA"`, `attribute_value = "XYZ"`, 1),
			want:    "invalid base16 value",
		},
		{
			name:    "byte out of range",
			content: strings.Replace(sampleConfig, `[111, 112, 115]`, `[111, 300]`, 1),
			want:    "out of range",
		},
		{
			name:    "bad nas ip",
			content: strings.Replace(sampleConfig, `timeout = 5`, "timeout = 5\nnas_ip = \"not-an-ip\"", 1),
			want:    "Radius.NASIP must be an IP address",
		},
		{
			name:    "bad log format",
			content: sampleConfig + "\n[logging]\nformat = \"xml\"\n",
			want:    "Logging.Format must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			require.ErrorIs(t, err, config.ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRules(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	rules := cfg.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, identity.MappingRule{
		Username:  "alice_local",
		UID:       2000,
		Group:     "alice_local",
		GID:       2000,
		Home:      "/home/alice_local",
		Shell:     "/bin/bash",
		Attribute: identity.AttributeKey{Vendor: 1, Subtype: 1},
		Value:     []byte{0xAA},
	}, rules[0])

	rules[0].Value[0] = 0
	assert.Equal(t, config.HexBytes{0xAA}, cfg.Users[0].AttributeValue, "rules must not alias configuration")
}

func TestServerSettings(t *testing.T) {
	r := config.RadiusConfig{SharedSecret: "global"}

	assert.Equal(t, "global", r.Secret(config.ServerConfig{}))
	assert.Equal(t, "own", r.Secret(config.ServerConfig{SharedSecret: "own"}))

	tests := []struct {
		global, server, want time.Duration
	}{
		{0, 0, 10 * time.Second},
		{5 * time.Second, 0, 5 * time.Second},
		{5 * time.Second, 7 * time.Second, 7 * time.Second},
		{0, 100 * time.Millisecond, time.Second},
		{0, time.Minute, 30 * time.Second},
		{2 * time.Minute, 0, 30 * time.Second},
	}
	for _, tt := range tests {
		r := config.RadiusConfig{Timeout: tt.global}
		assert.Equal(t, tt.want, r.ServerTimeout(config.ServerConfig{Timeout: tt.server}), "global=%s server=%s", tt.global, tt.server)
	}
}

func TestHexBytesString(t *testing.T) {
	assert.Equal(t, "0AFF", config.HexBytes{0x0a, 0xff}.String())
}
