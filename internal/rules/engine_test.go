package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laserline/engraver/internal/orders"
)

// fixedSource serves rule slices without a store.
type fixedSource struct {
	templates []TemplateRule
	assets    []AssetRule
}

func (s *fixedSource) TemplateRules(ctx context.Context) ([]TemplateRule, error) {
	return s.templates, nil
}

func (s *fixedSource) AssetRules(ctx context.Context) ([]AssetRule, error) {
	return s.assets, nil
}

func TestResolveTemplate_PriorityWins(t *testing.T) {
	engine := NewEngine(&fixedSource{templates: []TemplateRule{
		{SKUPattern: "MUG", TemplateFile: "a-fronte.lbrn2", Priority: 1},
		{SKUPattern: "MUG-RED", TemplateFile: "b-fronte.lbrn2", Priority: 5},
	}})

	got, err := engine.ResolveTemplate(context.Background(), "MUG-RED-01", orders.SideFront)
	require.NoError(t, err)
	assert.Equal(t, "b-fronte.lbrn2", got, "higher priority wins over pattern length")
}

func TestResolveTemplate_PatternLengthBreaksTies(t *testing.T) {
	engine := NewEngine(&fixedSource{templates: []TemplateRule{
		{SKUPattern: "MUG", TemplateFile: "short.lbrn2", Priority: 2},
		{SKUPattern: "MUG-RED", TemplateFile: "long.lbrn2", Priority: 2},
	}})

	got, err := engine.ResolveTemplate(context.Background(), "mug-red-01", orders.SideFront)
	require.NoError(t, err)
	assert.Equal(t, "long.lbrn2", got, "longer pattern is more specific at equal priority")
}

func TestResolveTemplate_CaseInsensitive(t *testing.T) {
	engine := NewEngine(&fixedSource{templates: []TemplateRule{
		{SKUPattern: "mug-red", TemplateFile: "plate.lbrn2", Priority: 1},
	}})

	got, err := engine.ResolveTemplate(context.Background(), "MUG-RED-XL", orders.SideFront)
	require.NoError(t, err)
	assert.Equal(t, "plate.lbrn2", got)
}

func TestResolveTemplate_SideCompatibilitySkips(t *testing.T) {
	// The retro-only rule has the highest priority and matches the SKU,
	// but resolving the front must fall through to the next candidate
	// instead of failing outright.
	engine := NewEngine(&fixedSource{templates: []TemplateRule{
		{SKUPattern: "MUG", TemplateFile: "special-retro.lbrn2", Priority: 9},
		{SKUPattern: "MUG", TemplateFile: "base-fronte.lbrn2", Priority: 1},
	}})

	front, err := engine.ResolveTemplate(context.Background(), "MUG-01", orders.SideFront)
	require.NoError(t, err)
	assert.Equal(t, "base-fronte.lbrn2", front)

	retro, err := engine.ResolveTemplate(context.Background(), "MUG-01", orders.SideRetro)
	require.NoError(t, err)
	assert.Equal(t, "special-retro.lbrn2", retro)
}

func TestResolveTemplate_UnmarkedFilenameIsFront(t *testing.T) {
	engine := NewEngine(&fixedSource{templates: []TemplateRule{
		{SKUPattern: "MUG", TemplateFile: "legacy.lbrn2", Priority: 1},
	}})

	front, err := engine.ResolveTemplate(context.Background(), "MUG-01", orders.SideFront)
	require.NoError(t, err)
	assert.Equal(t, "legacy.lbrn2", front, "no side marker defaults to front")

	retro, err := engine.ResolveTemplate(context.Background(), "MUG-01", orders.SideRetro)
	require.NoError(t, err)
	assert.Empty(t, retro, "unmarked template must not serve the retro side")
}

func TestResolveTemplate_NoRules(t *testing.T) {
	engine := NewEngine(&fixedSource{})

	got, err := engine.ResolveTemplate(context.Background(), "MUG-01", orders.SideFront)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveTemplate_NoMatch(t *testing.T) {
	engine := NewEngine(&fixedSource{templates: []TemplateRule{
		{SKUPattern: "PLATE", TemplateFile: "plate.lbrn2", Priority: 1},
	}})

	got, err := engine.ResolveTemplate(context.Background(), "MUG-01", orders.SideFront)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSideCompatible(t *testing.T) {
	tests := []struct {
		file string
		side orders.Side
		want bool
	}{
		{"a-fronte.lbrn2", orders.SideFront, true},
		{"a-fronte.lbrn2", orders.SideRetro, false},
		{"b-retro.lbrn2", orders.SideRetro, true},
		{"b-retro.lbrn2", orders.SideFront, false},
		{"plain.lbrn2", orders.SideFront, true},
		{"plain.lbrn2", orders.SideRetro, false},
		{"B-RETRO.LBRN2", orders.SideRetro, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SideCompatible(tt.file, tt.side), "%s for %s", tt.file, tt.side)
	}
}

func TestResolveAssets_LastMatchWins(t *testing.T) {
	// Unlike template resolution, the asset scan is not priority-ordered:
	// with two matching image rules the later one in iteration order wins.
	engine := NewEngine(&fixedSource{assets: []AssetRule{
		{Keyword: "heart", Type: AssetImage, Value: "heart.png"},
		{Keyword: "love", Type: AssetImage, Value: "love.png"},
	}})

	got, err := engine.ResolveAssets(context.Background(), "Engrave: Anna, heart love theme")
	require.NoError(t, err)
	assert.Equal(t, "love.png", got.Image)
}

func TestResolveAssets_FillsEachSlot(t *testing.T) {
	engine := NewEngine(&fixedSource{assets: []AssetRule{
		{Keyword: "heart", Type: AssetImage, Value: "heart.png"},
		{Keyword: "script", Type: AssetFont, Value: "GreatVibes"},
		{Keyword: "gold", Type: AssetColor, Value: "#c9a227"},
		{Keyword: "absent", Type: AssetColor, Value: "#000000"},
	}})

	got, err := engine.ResolveAssets(context.Background(), "Name: Luca, heart, SCRIPT font, gold finish")
	require.NoError(t, err)
	assert.Equal(t, Assets{Image: "heart.png", Font: "GreatVibes", Color: "#c9a227"}, got)
}

func TestResolveAssets_NoMatch(t *testing.T) {
	engine := NewEngine(&fixedSource{assets: []AssetRule{
		{Keyword: "heart", Type: AssetImage, Value: "heart.png"},
	}})

	got, err := engine.ResolveAssets(context.Background(), "plain text")
	require.NoError(t, err)
	assert.Equal(t, Assets{}, got)
}

func TestExtractName(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"engrave marker", "Engrave: Anna, heart theme", "Anna"},
		{"name marker", "Name: Luca Bianchi, gold", "Luca Bianchi"},
		{"case insensitive", "ENGRAVE:Maria", "Maria"},
		{"no marker", "just a gift note", ""},
		{"marker at end", "please hurry, Engrave: Paolo", "Paolo"},
		{"empty capture", "Engrave: , heart", ""},
		{"never falls back", "buyer Anna Rossi", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractName(tt.text))
		})
	}
}
