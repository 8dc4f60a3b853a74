// Package syncer reconciles the persisted order set against the external
// order feed.
//
// A sync is a mirror operation, not an additive import: new feed orders are
// inserted (insert-or-ignore, so existing orders keep all side state) and
// persisted orders that vanished from the feed are deleted. A post-pass
// promotes the retro side to pending for every SKU that resolves a retro
// template, which is the only place retro-requirement is ever decided.
package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/laserline/engraver/internal/feed"
	"github.com/laserline/engraver/internal/orders"
	"github.com/laserline/engraver/internal/rules"
	"github.com/laserline/engraver/internal/store"
)

// Report is the outcome of one sync pass.
type Report struct {
	RunID         string `json:"run_id"`
	TotalParsed   int    `json:"total_parsed"`
	Added         int    `json:"added"`
	Duplicates    int    `json:"duplicates"`
	Deleted       int    `json:"deleted"`
	Skipped       int    `json:"skipped"`
	RetroPromoted int    `json:"retro_promoted"`
}

// IntegrityError signals that a non-empty feed yielded not a single order,
// new or known: a strong sign the field mapping broke, not that the shop is
// idle. The sync stops before the reconciling delete so a mapping bug
// cannot wipe the order set.
type IntegrityError struct {
	TotalParsed int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf(
		"sync integrity: feed contained %d records but none mapped to an order",
		e.TotalParsed)
}

// Syncer drives reconciling syncs. It is the only component that creates
// or deletes orders.
type Syncer struct {
	reader   *feed.Reader
	store    *store.Store
	engine   *rules.Engine
	location string
	logger   *slog.Logger
}

// New creates a Syncer reading the feed at location.
func New(reader *feed.Reader, st *store.Store, engine *rules.Engine, location string, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		reader:   reader,
		store:    st,
		engine:   engine,
		location: location,
		logger:   logger,
	}
}

// Sync runs one full reconciling pass:
//
//  1. read and normalize the entire feed
//  2. drop records without a resolvable order ID (counted as skipped)
//  3. insert-or-ignore every remaining record (added vs duplicates)
//  4. integrity check: a non-empty feed must have mapped at least one
//     record to an order
//  5. delete every persisted order absent from this feed snapshot
//  6. promote retro to pending, per distinct SKU, where a retro template
//     resolves
//
// Sync never mutates an existing order's side state; the insert conflict
// policy leaves duplicates completely untouched.
func (s *Syncer) Sync(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.Must(uuid.NewV7()).String()}
	log := s.logger.With("run_id", report.RunID)

	records, kind, err := s.reader.Read(ctx, s.location)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	report.TotalParsed = len(records)
	log.Debug("feed read", "location", s.location, "kind", string(kind), "records", len(records))

	keep := make([]string, 0, len(records))
	for _, rec := range records {
		n := feed.Normalize(rec)
		if n.OrderID == "" {
			report.Skipped++
			log.Warn("record without order id skipped", "raw", rec.Raw)
			continue
		}

		keep = append(keep, n.OrderID)
		inserted, err := s.store.InsertOrder(ctx, &orders.Order{
			OrderID:      n.OrderID,
			SKU:          n.SKU,
			BuyerName:    n.BuyerName,
			CustomField:  n.CustomField,
			PurchaseDate: n.PurchaseDate,
			RawPayload:   n.Raw,
		})
		if err != nil {
			return nil, fmt.Errorf("insert order %s: %w", n.OrderID, err)
		}
		if inserted {
			report.Added++
		} else {
			report.Duplicates++
		}
	}

	// Every parsed record lands in exactly one of added/duplicates/skipped,
	// so the guard keys on order activity alone: a non-empty feed where no
	// record mapped to an order ID means the field mapping broke, and the
	// reconciling delete below must not run against it.
	if report.TotalParsed > 0 && report.Added+report.Duplicates == 0 {
		return nil, &IntegrityError{TotalParsed: report.TotalParsed}
	}

	deleted, err := s.store.DeleteOrdersNotIn(ctx, keep)
	if err != nil {
		return nil, fmt.Errorf("reconcile delete: %w", err)
	}
	report.Deleted = int(deleted)

	promoted, err := s.promoteRetro(ctx, log)
	if err != nil {
		return nil, err
	}
	report.RetroPromoted = promoted

	log.Info("sync complete",
		"total_parsed", report.TotalParsed,
		"added", report.Added,
		"duplicates", report.Duplicates,
		"deleted", report.Deleted,
		"skipped", report.Skipped,
		"retro_promoted", report.RetroPromoted,
	)
	return report, nil
}

// promoteRetro marks the retro side pending for every order whose SKU
// resolves a retro template. Grouped by SKU so each distinct SKU costs one
// rule evaluation regardless of how many orders share it.
func (s *Syncer) promoteRetro(ctx context.Context, log *slog.Logger) (int, error) {
	skus, err := s.store.RetroNotRequiredSKUs(ctx)
	if err != nil {
		return 0, fmt.Errorf("retro promotion: %w", err)
	}

	promoted := 0
	for _, sku := range skus {
		template, err := s.engine.ResolveTemplate(ctx, sku, orders.SideRetro)
		if err != nil {
			return 0, fmt.Errorf("retro promotion: resolve template for %q: %w", sku, err)
		}
		if template == "" {
			continue
		}

		n, err := s.store.PromoteRetro(ctx, sku)
		if err != nil {
			return 0, fmt.Errorf("retro promotion: %w", err)
		}
		promoted += int(n)
		log.Debug("retro promoted", "sku", sku, "template", template, "orders", n)
	}
	return promoted, nil
}
