package orders

import (
	"fmt"
	"time"
)

// Side identifies one of the two production faces of an order.
type Side string

const (
	SideFront Side = "front"
	SideRetro Side = "retro"
)

// ParseSide converts a user-supplied side name into a Side.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideFront:
		return SideFront, nil
	case SideRetro:
		return SideRetro, nil
	default:
		return "", fmt.Errorf("invalid side %q: must be %q or %q", s, SideFront, SideRetro)
	}
}

// SideStatus is the production status of a single side.
//
// StatusNotRequired is valid only for the retro side: it is the retro's
// initial value and is terminal unless the synchronizer promotes the side
// to StatusPending during its post-sync pass.
type SideStatus string

const (
	StatusNotRequired SideStatus = "not_required"
	StatusPending     SideStatus = "pending"
	StatusProcessing  SideStatus = "processing"
	StatusPrinted     SideStatus = "printed"
	StatusError       SideStatus = "error"
)

// Valid reports whether s is one of the five side statuses.
func (s SideStatus) Valid() bool {
	switch s {
	case StatusNotRequired, StatusPending, StatusProcessing, StatusPrinted, StatusError:
		return true
	}
	return false
}

// Processable reports whether a side in this status may be picked up for
// processing. StatusProcessing is excluded (exclusive, transient) and
// StatusNotRequired is excluded (the side does not apply).
func (s SideStatus) Processable() bool {
	switch s {
	case StatusPending, StatusPrinted, StatusError:
		return true
	}
	return false
}

// OverallStatus is the derived order-level status.
type OverallStatus string

const (
	OverallPending    OverallStatus = "pending"
	OverallProcessing OverallStatus = "processing"
	OverallPrinted    OverallStatus = "printed"
	OverallError      OverallStatus = "error"
)

// SideState is the persisted production state of one side.
type SideState struct {
	Status       SideStatus
	ErrorMessage string // empty when no error is recorded
	AttemptCount int
	ProcessedAt  *time.Time
}

// Order is one external order and its two-sided production state.
//
// OrderID is the identity key from the feed: globally unique, immutable.
// RawPayload preserves the verbatim source record for traceability.
type Order struct {
	OrderID      string
	SKU          string
	BuyerName    string
	CustomField  string
	PurchaseDate string
	RawPayload   string

	Front SideState
	Retro SideState

	Overall   OverallStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SideState returns the state of the requested side.
func (o *Order) SideState(side Side) SideState {
	if side == SideRetro {
		return o.Retro
	}
	return o.Front
}
