// Package job runs per-side production jobs: it advances one side of one
// order through the pending -> processing -> printed/error state machine,
// generating the renderer input artifact, invoking the external renderer
// with bounded retries, and verifying the produced output.
//
// # Coordination
//
// The store's side status column is the only lock. The transition to
// processing is a single conditional update committed before any slow work
// starts, so of two racing callers exactly one proceeds and the other
// receives an ALREADY_PROCESSING conflict. Nothing here is cancellable
// mid-flight; a stuck processing row is recovered manually via ResetSide.
//
// # Failure handling
//
// Failures are classified into configuration errors (missing rule or
// template setup, permanent) and transient errors (renderer not found,
// timeout, generic failure, verification failure). The classification
// decides both the persisted side state and the retry budget; see
// Processor.ProcessSide.
package job
