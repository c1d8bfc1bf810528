package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"cmd", "-a", "http://gate:9090", "-i", "10", "-f", "/tmp/s.db"}, expectPanic: false,
			expected: &Config{ServerURL: "http://gate:9090", OnlineCheckInterval: 10 * time.Second, SessionDB: "/tmp/s.db"}},
		{name: "Test2 foreign flags ignored", args: []string{"cmd", "-x", "1", "-a", "http://gate:9090"}, expectPanic: false,
			expected: &Config{ServerURL: "http://gate:9090"}},
		{name: "Test3 incorrect check interval", args: []string{"cmd", "-a", "http://gate:9090", "-i", "abc"}, expectPanic: true, expected: &Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
