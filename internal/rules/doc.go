// Package rules implements the rule-evaluation engine that resolves which
// production template and decorative assets apply to an order.
//
// Two independent rule sets are evaluated:
//
//   - Template rules map a SKU to a template file. Matching is a
//     case-insensitive substring scan ordered by priority, then by pattern
//     specificity, filtered by side compatibility of the template filename.
//   - Asset rules map a keyword found in free text to a decorative asset
//     (image, font or color).
//
// Rules are authored in CUE files (see loader.go) and served to the engine
// from the store through the Source interface.
package rules
