package rules

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/laserline/engraver/internal/orders"
)

// Filename markers that bind a template to one side. A template whose
// basename carries no marker is usable for the front (legacy templates
// predate the retro side).
const (
	frontMarker = "-fronte"
	retroMarker = "-retro"
)

// folder performs Unicode case folding for all case-insensitive matching.
// Folding (rather than ToLower) keeps SKU and keyword comparison stable for
// non-ASCII buyer text.
var folder = cases.Fold()

// namePattern captures the text to engrave from the order's custom field:
// an "Engrave:" or "Name:" marker, everything up to the next comma.
var namePattern = regexp.MustCompile(`(?i)(?:engrave|name)\s*:\s*([^,]*)`)

// Source serves the current rule sets. Implemented by *store.Store in
// production and by fixed slices in tests.
type Source interface {
	TemplateRules(ctx context.Context) ([]TemplateRule, error)
	AssetRules(ctx context.Context) ([]AssetRule, error)
}

// Engine evaluates template and asset rules against order data.
// Rules are re-read from the Source on every resolution so configuration
// changes take effect without a restart.
type Engine struct {
	src Source
}

// NewEngine creates an Engine reading rules from src.
func NewEngine(src Source) *Engine {
	return &Engine{src: src}
}

// ResolveTemplate returns the template filename for the given SKU and side,
// or "" if no usable rule matches.
//
// Selection is deterministic: rules are ordered by priority descending,
// ties broken by pattern length descending (longer patterns are more
// specific). A rule matches if the folded SKU contains the folded pattern
// as a substring. A matching rule whose filename is not compatible with the
// requested side does not stop the search; the scan continues to the next
// candidate.
func (e *Engine) ResolveTemplate(ctx context.Context, sku string, side orders.Side) (string, error) {
	list, err := e.src.TemplateRules(ctx)
	if err != nil {
		return "", fmt.Errorf("load template rules: %w", err)
	}
	if len(list) == 0 {
		return "", nil
	}

	sorted := make([]TemplateRule, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return len(sorted[i].SKUPattern) > len(sorted[j].SKUPattern)
	})

	foldedSKU := folder.String(sku)
	for _, rule := range sorted {
		if rule.SKUPattern == "" {
			continue
		}
		if !strings.Contains(foldedSKU, folder.String(rule.SKUPattern)) {
			continue
		}
		if !SideCompatible(rule.TemplateFile, side) {
			continue
		}
		return rule.TemplateFile, nil
	}
	return "", nil
}

// SideCompatible reports whether a template filename may be used for the
// given side, based on its basename marker: a retro marker binds the file
// to the retro side; a front marker or no marker at all means front.
func SideCompatible(filename string, side orders.Side) bool {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = folder.String(base)
	retro := strings.HasSuffix(base, retroMarker)
	if side == orders.SideRetro {
		return retro
	}
	return !retro
}

// ResolveAssets scans all asset rules against the given text and fills one
// slot per asset type whose keyword occurs in the text (case-insensitive
// substring).
//
// Unlike template resolution, the scan is not priority-ordered and does not
// stop at the first hit per slot: when several rules for the same asset
// type match, the last one in store iteration order wins. The asymmetry
// with ResolveTemplate is inherited behavior and is preserved on purpose;
// do not unify the two scans.
func (e *Engine) ResolveAssets(ctx context.Context, text string) (Assets, error) {
	list, err := e.src.AssetRules(ctx)
	if err != nil {
		return Assets{}, fmt.Errorf("load asset rules: %w", err)
	}

	var out Assets
	folded := folder.String(text)
	for _, rule := range list {
		if rule.Keyword == "" {
			continue
		}
		if !strings.Contains(folded, folder.String(rule.Keyword)) {
			continue
		}
		switch rule.Type {
		case AssetImage:
			out.Image = rule.Value
		case AssetFont:
			out.Font = rule.Value
		case AssetColor:
			out.Color = rule.Value
		}
	}
	return out, nil
}

// ExtractName returns the text to engrave found in the given free text, or
// "" when no marker is present. It never falls back to any other field.
func ExtractName(text string) string {
	m := namePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
