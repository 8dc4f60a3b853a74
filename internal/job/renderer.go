package job

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// FailureClass is the observable failure taxonomy of a renderer invocation.
// The renderer is an external program; outcomes are distinguished by
// inspecting the failure, not by a structured return value.
type FailureClass int

const (
	// FailureGeneric is any renderer failure that is neither a missing
	// executable nor a timeout. Retryable.
	FailureGeneric FailureClass = iota

	// FailureNotFound means the renderer executable does not exist.
	// Retrying cannot succeed until the installation is fixed.
	FailureNotFound

	// FailureTimeout means the invocation exceeded its per-attempt budget.
	// Retryable.
	FailureTimeout
)

func (c FailureClass) String() string {
	switch c {
	case FailureNotFound:
		return "not_found"
	case FailureTimeout:
		return "timeout"
	default:
		return "generic"
	}
}

// Retryable reports whether a failure of this class may succeed on retry.
func (c FailureClass) Retryable() bool {
	return c != FailureNotFound
}

// ClassifyFailure maps a renderer invocation error onto the failure
// taxonomy.
func ClassifyFailure(err error) FailureClass {
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return FailureNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	default:
		return FailureGeneric
	}
}

// Renderer invokes the external rendering program on a generated artifact
// file. Injected into the Processor so retry/backoff logic and its tests do
// not depend on the actual external program being installed.
type Renderer interface {
	Invoke(ctx context.Context, artifactPath string) error
}

// ExecRenderer runs the renderer as an out-of-process command, appending
// the artifact path to the configured arguments. Each invocation gets its
// own timeout budget.
type ExecRenderer struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// Invoke runs the renderer on artifactPath, blocking until it exits or the
// per-attempt timeout elapses. A timeout is surfaced as
// context.DeadlineExceeded so ClassifyFailure can tell it apart from the
// renderer's own exit failures.
func (r *ExecRenderer) Invoke(ctx context.Context, artifactPath string) error {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, r.Args...), artifactPath)
	cmd := exec.CommandContext(attemptCtx, r.Command, args...)
	// Killing the direct child does not close pipes still held by its
	// subprocesses; without a wait delay CombinedOutput would block until
	// every grandchild exits and the per-attempt budget would not hold.
	cmd.WaitDelay = time.Second

	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if attemptCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("renderer %s timed out after %s: %w", r.Command, timeout, context.DeadlineExceeded)
	}
	if len(out) > 0 {
		return fmt.Errorf("renderer %s: %w: %s", r.Command, err, truncate(string(out), 512))
	}
	return fmt.Errorf("renderer %s: %w", r.Command, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
