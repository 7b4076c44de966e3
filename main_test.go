package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		check   func(t *testing.T, o *options)
		wantErr bool
	}{
		{
			name: "default is tray mode",
			args: nil,
			check: func(t *testing.T, o *options) {
				assert.False(t, o.cliMode())
				assert.False(t, o.tui)
			},
		},
		{
			name: "connect",
			args: []string{"--connect", "Home"},
			check: func(t *testing.T, o *options) {
				assert.True(t, o.cliMode())
				assert.Equal(t, "Home", o.connect)
			},
		},
		{
			name: "bare disconnect means all",
			args: []string{"--disconnect"},
			check: func(t *testing.T, o *options) {
				assert.Equal(t, "all", o.disconnect)
			},
		},
		{
			name: "disconnect by name",
			args: []string{"--disconnect=Cafe"},
			check: func(t *testing.T, o *options) {
				assert.Equal(t, "Cafe", o.disconnect)
			},
		},
		{
			name: "short flags",
			args: []string{"-v", "-c", "/tmp/config.yaml", "--tui"},
			check: func(t *testing.T, o *options) {
				assert.True(t, o.verbose)
				assert.Equal(t, "/tmp/config.yaml", o.configPath)
				assert.True(t, o.tui)
			},
		},
		{
			name:    "tray and tui conflict",
			args:    []string{"--tray", "--tui"},
			wantErr: true,
		},
		{
			name:    "unknown flag",
			args:    []string{"--bogus"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := parseFlags(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, o)
		})
	}
}
