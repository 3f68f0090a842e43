package printer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		err := Error("Backend Unreachable", "The échéance API did not respond", []string{})
		require.Error(t, err)
		require.Equal(t, "Backend Unreachable", err.Error())
	})

	t.Run("returns error with title when including suggestions", func(t *testing.T) {
		err := Error("Backend Unreachable", "Explanation", []string{"Check the endpoint in echeancier.yml"})
		require.Error(t, err)
		require.Equal(t, "Backend Unreachable", err.Error())
	})

	t.Run("returns error with title for multiple suggestions", func(t *testing.T) {
		err := Error("Backend Unreachable", "Explanation", []string{
			"Check the endpoint in echeancier.yml",
			"Verify the server is running",
		})
		require.Error(t, err)
		require.Equal(t, "Backend Unreachable", err.Error())
	})
}

// Note: the printers write colored output to stdout/stderr. The error object
// returned by Error only contains the title for Cobra's error handling.
// This is intentional to avoid duplicate output while providing rich formatted errors.
