package main

import (
	"testing"

	"github.com/SecareLupus/radius-virtual/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want options
	}{
		{"defaults", nil, options{config: config.DefaultPath}},
		{"config", []string{"config=/etc/alt.toml"}, options{config: "/etc/alt.toml"}},
		{"empty config", []string{"config="}, options{config: config.DefaultPath}},
		{"debug", []string{"debug", "use_first_pass"}, options{config: config.DefaultPath, debug: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseArgs(tt.args))
		})
	}
}
