package job

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/laserline/engraver/internal/orders"
	"github.com/laserline/engraver/internal/rules"
	"github.com/laserline/engraver/internal/store"
)

const (
	// transientCeiling is the attempt count at which a transiently failing
	// side stops returning to pending and moves to error.
	transientCeiling = 3

	// configAttemptSentinel pins the attempt count of a configuration
	// failure so automated retry logic treats the side as exhausted. Only
	// an explicit reset makes the side processable again.
	configAttemptSentinel = 99

	// configMessagePrefix tags configuration errors in the persisted error
	// message, letting callers separate "needs configuration" from
	// "transient, will retry".
	configMessagePrefix = "CONFIG: "

	// maxRenderAttempts is the initial invocation plus two retries.
	maxRenderAttempts = 3
)

// defaultBackoff is the delay before render retry n.
var defaultBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Result reports a successful side job.
type Result struct {
	JobID          string      `json:"job_id"`
	OrderID        string      `json:"order_id"`
	Side           orders.Side `json:"side"`
	Artifact       string      `json:"artifact"`
	RenderAttempts int         `json:"render_attempts"`

	// AlreadyPrinted warns that the side was complete before this job ran
	// and the job was an explicit resend. Non-fatal.
	AlreadyPrinted bool `json:"already_printed,omitempty"`
}

// Processor advances one side of one order through the production state
// machine: pending -> processing -> printed/error.
//
// There is no in-process coordination between processors; the side status
// column in the store is the lock. AcquireSide's conditional update is the
// sole concurrency guard, so the transition to processing is committed
// before any slow generation or rendering work begins.
type Processor struct {
	store    *store.Store
	engine   *rules.Engine
	gen      *Generator
	renderer Renderer

	logger      *slog.Logger
	tokens      TokenGenerator
	backoff     []time.Duration
	settleDelay time.Duration
	now         func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// WithTokenGenerator replaces the UUIDv7 job token generator.
// Tests use a FixedGenerator for deterministic job IDs.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(p *Processor) { p.tokens = g }
}

// WithBackoff replaces the render retry delays.
// Tests use zero delays to keep retry tests fast.
func WithBackoff(delays []time.Duration) Option {
	return func(p *Processor) { p.backoff = delays }
}

// WithSettleDelay sets the pause between renderer success and artifact
// verification, giving the filesystem time to flush.
func WithSettleDelay(d time.Duration) Option {
	return func(p *Processor) { p.settleDelay = d }
}

// WithClock replaces the wall clock used for processed-at stamps.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a side job processor.
func NewProcessor(st *store.Store, engine *rules.Engine, gen *Generator, renderer Renderer, opts ...Option) *Processor {
	p := &Processor{
		store:       st,
		engine:      engine,
		gen:         gen,
		renderer:    renderer,
		logger:      slog.Default(),
		tokens:      UUIDv7Generator{},
		backoff:     defaultBackoff,
		settleDelay: 200 * time.Millisecond,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessSide runs one production job for the given order and side.
//
// Failures are persisted on the side before being returned: transient
// faults increment the attempt count and return the side to pending until
// the ceiling is reached; configuration faults pin the attempt count and
// move the side to error immediately. Working-area assets copied during
// generation are deleted on failure and kept on success (the renderer
// still needs them afterward).
func (p *Processor) ProcessSide(ctx context.Context, orderID string, side orders.Side) (*Result, error) {
	jobID := p.tokens.Generate()
	log := p.logger.With("job_id", jobID, "order_id", orderID, "side", string(side))

	o, err := p.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if o == nil {
		return nil, newProcessError(ErrCodeNotFound, orderID, side, "order does not exist", nil)
	}
	if o.SideState(side).Status == orders.StatusNotRequired {
		return nil, newProcessError(ErrCodeSideNotRequired, orderID, side, "side is not required for this order", nil)
	}
	alreadyPrinted := o.SideState(side).Status == orders.StatusPrinted

	acquired, err := p.store.AcquireSide(ctx, orderID, side)
	if err != nil {
		return nil, fmt.Errorf("acquire side: %w", err)
	}
	if !acquired {
		return nil, p.classifyRefusal(ctx, orderID, side)
	}

	// Re-read now that the lock is held so the attempt count baseline is
	// the one the acquisition actually transitioned away from.
	o, err = p.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if o == nil {
		return nil, newProcessError(ErrCodeNotFound, orderID, side, "order vanished during processing", nil)
	}
	prior := o.SideState(side)

	log.Info("side acquired")
	result := &Result{JobID: jobID, OrderID: orderID, Side: side, AlreadyPrinted: alreadyPrinted}

	template, err := p.engine.ResolveTemplate(ctx, o.SKU, side)
	if err != nil {
		return nil, p.fail(ctx, log, o, side, prior, ErrCodeTransient, fmt.Errorf("resolve template: %w", err), nil)
	}
	if template == "" {
		return nil, p.fail(ctx, log, o, side, prior, ErrCodeConfiguration,
			fmt.Errorf("no template rule matches sku %q for side %s", o.SKU, side), nil)
	}

	name := rules.ExtractName(o.CustomField)
	assets, err := p.engine.ResolveAssets(ctx, o.CustomField)
	if err != nil {
		return nil, p.fail(ctx, log, o, side, prior, ErrCodeTransient, fmt.Errorf("resolve assets: %w", err), nil)
	}

	artifact, copied, err := p.gen.Generate(o, side, template, name, assets)
	if err != nil {
		code := ErrCodeTransient
		if errors.Is(err, errTemplateMissing) {
			code = ErrCodeConfiguration
		}
		return nil, p.fail(ctx, log, o, side, prior, code, err, copied)
	}
	result.Artifact = artifact
	log.Debug("artifact generated", "artifact", artifact, "template", template, "name", name)

	attempts, err := p.render(ctx, log, artifact)
	result.RenderAttempts = attempts
	if err != nil {
		return nil, p.fail(ctx, log, o, side, prior, ErrCodeTransient, err, copied)
	}

	if err := sleepCtx(ctx, p.settleDelay); err != nil {
		return nil, p.fail(ctx, log, o, side, prior, ErrCodeTransient, err, copied)
	}
	if err := verifyArtifact(artifact); err != nil {
		return nil, p.fail(ctx, log, o, side, prior, ErrCodeTransient, err, copied)
	}

	ok, err := p.store.CompleteSide(ctx, orderID, side, p.now())
	if err != nil {
		return nil, fmt.Errorf("complete side: %w", err)
	}
	if !ok {
		// A concurrent sync deleted the order mid-job. Known hazard: the
		// work is discarded and the working area cleaned like a failure.
		p.cleanup(log, copied)
		return nil, newProcessError(ErrCodeNotFound, orderID, side, "order vanished during processing", nil)
	}

	if alreadyPrinted {
		log.Warn("side was already printed; job treated as resend")
	}
	log.Info("side printed", "artifact", artifact, "render_attempts", attempts)
	return result, nil
}

// ResetSide is the manual recovery path: back to pending with a zeroed
// attempt count and no error message, bypassing the retry ceiling.
// Rejected while the side is processing.
func (p *Processor) ResetSide(ctx context.Context, orderID string, side orders.Side) error {
	ok, err := p.store.ResetSide(ctx, orderID, side)
	if err != nil {
		return fmt.Errorf("reset side: %w", err)
	}
	if !ok {
		return p.classifyRefusal(ctx, orderID, side)
	}
	p.logger.Info("side reset", "order_id", orderID, "side", string(side))
	return nil
}

// classifyRefusal turns a refused guarded update into the right error by
// re-reading the row. The re-read is diagnostic only; the refusal itself
// was decided atomically by the conditional update.
func (p *Processor) classifyRefusal(ctx context.Context, orderID string, side orders.Side) error {
	o, err := p.store.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("classify refusal: %w", err)
	}
	if o == nil {
		return newProcessError(ErrCodeNotFound, orderID, side, "order does not exist", nil)
	}

	switch o.SideState(side).Status {
	case orders.StatusNotRequired:
		return newProcessError(ErrCodeSideNotRequired, orderID, side, "side is not required for this order", nil)
	case orders.StatusProcessing:
		return newProcessError(ErrCodeConflict, orderID, side, "side is already processing", nil)
	default:
		return newProcessError(ErrCodeConflict, orderID, side, "side state changed concurrently", nil)
	}
}

// render invokes the external renderer with up to two retries and
// exponential backoff on retryable failures. A missing renderer executable
// is never retried.
func (p *Processor) render(ctx context.Context, log *slog.Logger, artifact string) (int, error) {
	var err error
	for attempt := 1; attempt <= maxRenderAttempts; attempt++ {
		err = p.renderer.Invoke(ctx, artifact)
		if err == nil {
			return attempt, nil
		}

		class := ClassifyFailure(err)
		log.Warn("render attempt failed", "attempt", attempt, "class", class.String(), "error", err)
		if !class.Retryable() || attempt == maxRenderAttempts {
			return attempt, fmt.Errorf("render (%s): %w", class, err)
		}

		delay := p.backoff[min(attempt-1, len(p.backoff)-1)]
		if serr := sleepCtx(ctx, delay); serr != nil {
			return attempt, fmt.Errorf("render (%s): %w", class, err)
		}
	}
	return maxRenderAttempts, err
}

// fail persists the failure on the side and releases the processing lock.
//
// Transient failures increment the attempt count: below the ceiling the
// side returns to pending (eligible for retry), at the ceiling it moves to
// error. Configuration failures pin the attempt count to the sentinel and
// move to error immediately; they need an administrative fix, not a retry.
//
// Copied working-area assets are always removed here. Cleanup failures are
// logged and never mask the original error.
func (p *Processor) fail(ctx context.Context, log *slog.Logger, o *orders.Order, side orders.Side, prior orders.SideState, code ErrorCode, cause error, copied []string) error {
	defer p.cleanup(log, copied)

	message := cause.Error()
	status := orders.StatusError
	attempts := prior.AttemptCount

	if code == ErrCodeConfiguration {
		attempts = configAttemptSentinel
		message = configMessagePrefix + message
	} else {
		attempts = prior.AttemptCount + 1
		if attempts < transientCeiling {
			status = orders.StatusPending
		}
	}

	ok, err := p.store.FailSide(ctx, o.OrderID, side, status, message, attempts)
	if err != nil {
		log.Error("record side failure", "error", err)
	} else if !ok {
		log.Warn("order vanished while recording failure")
	}

	log.Error("side failed",
		"code", string(code),
		"status", string(status),
		"attempt_count", attempts,
		"error", cause,
	)
	return newProcessError(code, o.OrderID, side, message, cause)
}

// cleanup removes files copied into the working area. Called only on the
// failure path: a successful job leaves its copied assets in place because
// the external renderer reads them after the job returns.
func (p *Processor) cleanup(log *slog.Logger, copied []string) {
	for _, path := range copied {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn("working-area cleanup failed", "path", path, "error", err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
