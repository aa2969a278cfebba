package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		daykeyAt = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDayKeyCommand(t *testing.T) {
	t.Setenv("DEVOTIONAL_TIMEZONE", "America/New_York")
	t.Setenv("DEVOTIONAL_ROLLOVER_HOUR", "7")

	tests := []struct {
		at   string
		key  string
		next string
	}{
		{"2024-01-15T11:59:00Z", "2024-01-14", "2024-01-15T07:00:00-05:00"},
		{"2024-01-15T12:00:00Z", "2024-01-15", "2024-01-16T07:00:00-05:00"},
		{"2024-07-04T10:30:00Z", "2024-07-03", "2024-07-04T07:00:00-04:00"},
	}

	for _, tt := range tests {
		out, err := runCLI(t, "daykey", "--at", tt.at)
		require.NoError(t, err)
		assert.Contains(t, out, tt.key+"\n", tt.at)
		assert.Contains(t, out, "next rollover: "+tt.next, tt.at)
	}
}

func TestDayKeyCommandRejectsBadTime(t *testing.T) {
	_, err := runCLI(t, "daykey", "--at", "yesterday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --at")
}
