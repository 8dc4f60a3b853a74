package feed

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalized is a feed record mapped onto the canonical field set.
// Fields with no alias match stay empty; nothing is ever inferred.
type Normalized struct {
	OrderID      string
	SKU          string
	BuyerName    string
	CustomField  string
	PurchaseDate string
	Raw          string
}

// Canonical field names.
const (
	fieldOrderID      = "orderId"
	fieldSKU          = "sku"
	fieldBuyerName    = "buyerName"
	fieldCustomField  = "customField"
	fieldPurchaseDate = "purchaseDate"
)

// fieldAliases maps header spellings, reduced by normKey, to canonical
// fields. Covers the spellings seen across marketplace exports; extend here
// when a new feed source shows up, never by guessing at read time.
var fieldAliases = map[string]string{
	"orderid":       fieldOrderID,
	"amazonorderid": fieldOrderID,
	"ordernumber":   fieldOrderID,
	"orderno":       fieldOrderID,
	"idordine":      fieldOrderID,
	"numeroordine":  fieldOrderID,

	"sku":            fieldSKU,
	"sellersku":      fieldSKU,
	"itemsku":        fieldSKU,
	"productsku":     fieldSKU,
	"codicearticolo": fieldSKU,

	"buyername":      fieldBuyerName,
	"recipientname":  fieldBuyerName,
	"customername":   fieldBuyerName,
	"shipname":       fieldBuyerName,
	"acquirente":     fieldBuyerName,
	"nomeacquirente": fieldBuyerName,

	"customfield":       fieldCustomField,
	"customization":     fieldCustomField,
	"customizedinfo":    fieldCustomField,
	"giftmessage":       fieldCustomField,
	"personalizzazione": fieldCustomField,
	"note":              fieldCustomField,

	"purchasedate": fieldPurchaseDate,
	"orderdate":    fieldPurchaseDate,
	"dataordine":   fieldPurchaseDate,
	"dataacquisto": fieldPurchaseDate,
}

var keyFolder = cases.Fold()

// normKey reduces a header spelling to its alias-table form: NFC
// normalization, Unicode case folding, and every non-letter, non-digit
// rune dropped. "Order ID", "order_id" and "OrderId" all reduce to
// "orderid".
func normKey(s string) string {
	s = keyFolder.String(norm.NFC.String(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize maps one raw record onto the canonical field set.
//
// Source fields are visited in sorted key order and the first value to
// claim a canonical field wins, so the outcome does not depend on map
// iteration order when two source headers alias the same field.
func Normalize(rec Record) Normalized {
	out := Normalized{Raw: rec.Raw}

	keys := make([]string, 0, len(rec.Fields))
	for k := range rec.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		canonical, ok := fieldAliases[normKey(k)]
		if !ok {
			continue
		}
		value := strings.TrimSpace(rec.Fields[k])
		if value == "" {
			continue
		}
		switch canonical {
		case fieldOrderID:
			if out.OrderID == "" {
				out.OrderID = value
			}
		case fieldSKU:
			if out.SKU == "" {
				out.SKU = value
			}
		case fieldBuyerName:
			if out.BuyerName == "" {
				out.BuyerName = value
			}
		case fieldCustomField:
			if out.CustomField == "" {
				out.CustomField = value
			}
		case fieldPurchaseDate:
			if out.PurchaseDate == "" {
				out.PurchaseDate = value
			}
		}
	}
	return out
}
