// Package orders defines the domain model for two-sided production orders.
//
// An order has two independent production sides: the front (always required)
// and the retro (opt-in, promoted to required by the synchronizer when a
// retro template exists for the order's SKU). Each side carries its own
// status, error message, attempt count and processed timestamp; the order's
// overall status is derived from the two side statuses by Aggregate and is
// never set directly by production logic.
package orders
