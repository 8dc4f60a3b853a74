// Package feed fetches raw order feeds and normalizes their records.
//
// A feed is addressed by a location string (http(s) URL or local path) and
// arrives in one of three content kinds: delimited text (CSV/TSV),
// structured objects (JSON) or markup (XML). The kind is inferred from the
// transport's Content-Type hint or the location's file extension.
//
// Records are heterogeneous: different feed sources spell the same field
// differently ("Order ID", "order_id", "AmazonOrderID"). Normalize maps
// them onto the canonical field set through a case- and punctuation-
// insensitive alias table; a field with no alias match stays unset and is
// never inferred from other fields.
package feed
