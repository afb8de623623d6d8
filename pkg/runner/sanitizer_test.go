package runner_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/waypoint/pkg/runner"
)

func TestSanitizeCommand(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "next", "next"},
		{"trimmed", "  goto 3 \r\n", "goto 3"},
		{"escape stripped", "\x1b[31mskip\x1b[0m", "[31mskip[0m"},
		{"tab becomes space", "route\t/deck", "route /deck"},
		{"null and bell", "n\x00e\axt", "next"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runner.SanitizeCommand(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("size limit", func(t *testing.T) {
		_, err := runner.SanitizeCommand(strings.Repeat("a", runner.MaxCommandSize))
		assert.NoError(t, err)
		_, err = runner.SanitizeCommand(strings.Repeat("a", runner.MaxCommandSize+1))
		assert.ErrorIs(t, err, runner.ErrCommandTooLarge)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		_, err := runner.SanitizeCommand("next\xff")
		assert.ErrorIs(t, err, runner.ErrInvalidUTF8)
	})
}
