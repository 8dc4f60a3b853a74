package store

import (
	"context"
	"fmt"

	"github.com/laserline/engraver/internal/rules"
)

// TemplateRules returns all template rules ordered by priority descending,
// then by id for a stable tie-break. Implements rules.Source.
func (s *Store) TemplateRules(ctx context.Context) ([]rules.TemplateRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku_pattern, template_file, priority
		FROM template_rules
		ORDER BY priority DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query template rules: %w", err)
	}
	defer rows.Close()

	var list []rules.TemplateRule
	for rows.Next() {
		var r rules.TemplateRule
		if err := rows.Scan(&r.ID, &r.SKUPattern, &r.TemplateFile, &r.Priority); err != nil {
			return nil, fmt.Errorf("scan template rule: %w", err)
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template rules: %w", err)
	}
	return list, nil
}

// AssetRules returns all asset rules in insertion order (id ascending).
// The order is load-bearing: asset resolution gives the last matching rule
// the win, so iteration order decides keyword overlaps.
// Implements rules.Source.
func (s *Store) AssetRules(ctx context.Context) ([]rules.AssetRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, keyword, asset_type, value
		FROM asset_rules
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query asset rules: %w", err)
	}
	defer rows.Close()

	var list []rules.AssetRule
	for rows.Next() {
		var r rules.AssetRule
		var typ string
		if err := rows.Scan(&r.ID, &r.Keyword, &typ, &r.Value); err != nil {
			return nil, fmt.Errorf("scan asset rule: %w", err)
		}
		r.Type = rules.AssetType(typ)
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset rules: %w", err)
	}
	return list, nil
}

// ReplaceRules atomically swaps both rule tables for the given set.
// Insertion order is preserved so asset iteration order matches the
// declaration order of the loaded files.
func (s *Store) ReplaceRules(ctx context.Context, set *rules.Set) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace rules: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM template_rules`); err != nil {
		return fmt.Errorf("replace rules: clear templates: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_rules`); err != nil {
		return fmt.Errorf("replace rules: clear assets: %w", err)
	}

	for _, r := range set.Templates {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO template_rules (sku_pattern, template_file, priority)
			VALUES (?, ?, ?)
		`, r.SKUPattern, r.TemplateFile, r.Priority)
		if err != nil {
			return fmt.Errorf("replace rules: insert template rule %q: %w", r.SKUPattern, err)
		}
	}

	for _, r := range set.Assets {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO asset_rules (keyword, asset_type, value)
			VALUES (?, ?, ?)
		`, r.Keyword, string(r.Type), r.Value)
		if err != nil {
			return fmt.Errorf("replace rules: insert asset rule %q: %w", r.Keyword, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace rules: commit: %w", err)
	}
	return nil
}
