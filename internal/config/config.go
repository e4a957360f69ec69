/*
 * Copyright (c) 2026 SecareLupus
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SecareLupus/radius-virtual/internal/identity"
	"github.com/spf13/viper"
)

// Version is injected at build time
var Version = "dev"

// DefaultPath is where every component looks for its configuration.
const DefaultPath = "/etc/radius_auth_virtual.toml"

// EnvPrefix prefixes environment overrides, e.g. RADIUS_VIRTUAL_DB_PATH.
const EnvPrefix = "RADIUS_VIRTUAL"

// ErrInvalid wraps every configuration failure. It is always fatal.
var ErrInvalid = errors.New("invalid configuration")

// Config holds the configuration shared by the PAM module, the NSS module,
// the shell helper and the admin tool.
type Config struct {
	DB      DBConfig      `mapstructure:"db" yaml:"db"`
	Radius  RadiusConfig  `mapstructure:"radius" yaml:"radius"`
	Users   []UserConfig  `mapstructure:"users" validate:"dive" yaml:"users"`
	NSS     NSSConfig     `mapstructure:"nss" yaml:"nss"`
	Handoff HandoffConfig `mapstructure:"handoff" yaml:"handoff"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// DBConfig locates the session store.
type DBConfig struct {
	Path string `mapstructure:"path" validate:"required,excludesall=?#" yaml:"path"`
	// EncryptionKey seals stored sessions when set.
	EncryptionKey string        `mapstructure:"encryption_key" yaml:"encryption_key,omitempty"`
	BusyTimeout   time.Duration `mapstructure:"busy_timeout" validate:"gte=0" yaml:"busy_timeout"`
}

// RadiusConfig configures the RADIUS client.
type RadiusConfig struct {
	SharedSecret string         `mapstructure:"shared_secret" yaml:"shared_secret,omitempty"`
	Timeout      time.Duration  `mapstructure:"timeout" validate:"gte=0" yaml:"timeout"`
	Debug        bool           `mapstructure:"debug" yaml:"debug"`
	NASIP        string         `mapstructure:"nas_ip" validate:"omitempty,ip" yaml:"nas_ip,omitempty"`
	Servers      []ServerConfig `mapstructure:"servers" validate:"required,min=1,dive" yaml:"servers"`

	// Attributes restricts which vendor attributes are kept from an
	// Access-Accept. Empty keeps all of them.
	Attributes []identity.AttributeKey `mapstructure:"attributes" yaml:"attributes,omitempty"`
}

// ServerConfig is one RADIUS server, tried in configured order.
type ServerConfig struct {
	Address      string        `mapstructure:"address" validate:"required" yaml:"address"`
	SharedSecret string        `mapstructure:"shared_secret" yaml:"shared_secret,omitempty"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gte=0" yaml:"timeout,omitempty"`
}

// UserConfig maps one attribute value to a local account.
type UserConfig struct {
	Username       string                `mapstructure:"username" validate:"required" yaml:"username"`
	UID            uint32                `mapstructure:"uid" yaml:"uid"`
	Group          string                `mapstructure:"group" validate:"required" yaml:"group"`
	GID            uint32                `mapstructure:"gid" yaml:"gid"`
	Home           string                `mapstructure:"home" validate:"required" yaml:"home"`
	Shell          string                `mapstructure:"shell" validate:"required" yaml:"shell"`
	Attribute      identity.AttributeKey `mapstructure:"attribute" yaml:"attribute"`
	AttributeValue HexBytes              `mapstructure:"attribute_value" validate:"required" yaml:"attribute_value"`
}

// NSSConfig shapes the entries served to the name service switch.
type NSSConfig struct {
	// Shell is reported for every mapped account; it must be the setuid helper.
	Shell string `mapstructure:"shell" validate:"required" yaml:"shell"`
	// Placeholder answers unknown names with DefaultUser so that login can
	// reach PAM for users that have never authenticated.
	Placeholder bool            `mapstructure:"placeholder" yaml:"placeholder"`
	DefaultUser PlaceholderUser `mapstructure:"default_user" yaml:"default_user"`
}

// PlaceholderUser is the identity returned for names with no session.
type PlaceholderUser struct {
	Name  string `mapstructure:"name" validate:"required" yaml:"name"`
	UID   uint32 `mapstructure:"uid" yaml:"uid"`
	GID   uint32 `mapstructure:"gid" yaml:"gid"`
	Home  string `mapstructure:"home" validate:"required" yaml:"home"`
	Gecos string `mapstructure:"gecos" yaml:"gecos"`
}

// HandoffConfig controls token redemption by the shell helper.
type HandoffConfig struct {
	// MaxTokenAge rejects tokens older than this. Zero disables the check.
	MaxTokenAge time.Duration `mapstructure:"max_token_age" validate:"gte=0" yaml:"max_token_age"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	// Format is text or json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	// Output is auto, stdout, stderr, journal, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// Load reads the TOML file at path (DefaultPath when empty), applies
// RADIUS_VIRTUAL_* environment overrides and defaults, and validates the
// result. Only the admin tool may use it; privileged components call
// LoadSystem.
func Load(path string) (*Config, error) {
	return load(path, true)
}

// LoadSystem is Load without environment overrides. The PAM module, the
// NSS module and the setuid helper run with a caller-controlled
// environment, so only the file decides their settings.
func LoadSystem(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, env bool) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	v := viper.New()
	setupViper(v, path, env)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrInvalid, path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrInvalid, path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, path string, env bool) {
	if env {
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("toml")
}

// Rules returns the mapping rules in configured order.
func (c *Config) Rules() []identity.MappingRule {
	rules := make([]identity.MappingRule, 0, len(c.Users))
	for _, u := range c.Users {
		rules = append(rules, identity.MappingRule{
			Username:  u.Username,
			UID:       u.UID,
			Group:     u.Group,
			GID:       u.GID,
			Home:      u.Home,
			Shell:     u.Shell,
			Attribute: u.Attribute,
			Value:     append([]byte(nil), u.AttributeValue...),
		})
	}
	return rules
}

// Secret returns the shared secret for s, falling back to the global one.
func (r *RadiusConfig) Secret(s ServerConfig) string {
	if s.SharedSecret != "" {
		return s.SharedSecret
	}
	return r.SharedSecret
}

// MaxSecretLength is the longest shared secret the client accepts, in bytes.
const MaxSecretLength = 256

const (
	minServerTimeout = time.Second
	maxServerTimeout = 30 * time.Second
)

// ServerTimeout returns the per-attempt timeout for s: its own value, else
// the global one, clamped to [1s, 30s].
func (r *RadiusConfig) ServerTimeout(s ServerConfig) time.Duration {
	t := s.Timeout
	if t == 0 {
		t = r.Timeout
	}
	if t == 0 {
		t = DefaultRadiusTimeout
	}
	return min(max(t, minServerTimeout), maxServerTimeout)
}
