package job

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"plain failure", errors.New("exit status 1"), FailureGeneric},
		{"missing executable", exec.ErrNotFound, FailureNotFound},
		{"wrapped missing executable", fmt.Errorf("renderer: %w", exec.ErrNotFound), FailureNotFound},
		{"timeout", context.DeadlineExceeded, FailureTimeout},
		{"wrapped timeout", fmt.Errorf("renderer timed out: %w", context.DeadlineExceeded), FailureTimeout},
		{"cancellation is generic", context.Canceled, FailureGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyFailure(tt.err))
		})
	}
}

func TestFailureClass_Retryable(t *testing.T) {
	assert.True(t, FailureGeneric.Retryable())
	assert.True(t, FailureTimeout.Retryable())
	assert.False(t, FailureNotFound.Retryable())
}

func TestFailureClass_String(t *testing.T) {
	assert.Equal(t, "generic", FailureGeneric.String())
	assert.Equal(t, "not_found", FailureNotFound.String())
	assert.Equal(t, "timeout", FailureTimeout.String())
}

func TestExecRenderer_MissingExecutable(t *testing.T) {
	r := &ExecRenderer{Command: "no-such-renderer-binary"}

	err := r.Invoke(context.Background(), "artifact.svg")
	require.Error(t, err)
	assert.Equal(t, FailureNotFound, ClassifyFailure(err))
}

func TestExecRenderer_ExitFailureCarriesOutput(t *testing.T) {
	r := &ExecRenderer{Command: "sh", Args: []string{"-c", "echo spool jam >&2; exit 1"}}

	err := r.Invoke(context.Background(), "artifact.svg")
	require.Error(t, err)
	assert.Equal(t, FailureGeneric, ClassifyFailure(err))
	assert.Contains(t, err.Error(), "spool jam")
}

func TestExecRenderer_Timeout(t *testing.T) {
	// The sleep runs as a grandchild of the invocation and inherits the
	// output pipes. Killing sh alone must not let the invocation block
	// until the grandchild exits.
	r := &ExecRenderer{
		Command: "sh",
		Args:    []string{"-c", "sleep 5; #"},
		Timeout: 50 * time.Millisecond,
	}

	start := time.Now()
	err := r.Invoke(context.Background(), "artifact.svg")
	require.Error(t, err)
	assert.Equal(t, FailureTimeout, ClassifyFailure(err))
	assert.Less(t, time.Since(start), 2*time.Second,
		"invocation must end within timeout plus the wait delay")
}

func TestExecRenderer_Success(t *testing.T) {
	r := &ExecRenderer{Command: "true"}
	assert.NoError(t, r.Invoke(context.Background(), "artifact.svg"))
}
