package rules

// AssetType identifies the slot a decorative asset occupies.
type AssetType string

const (
	AssetImage AssetType = "image"
	AssetFont  AssetType = "font"
	AssetColor AssetType = "color"
)

// Valid reports whether t is one of the three asset types.
func (t AssetType) Valid() bool {
	switch t {
	case AssetImage, AssetFont, AssetColor:
		return true
	}
	return false
}

// TemplateRule maps a SKU pattern to a production template file.
// Higher priority wins; at equal priority the longer (more specific)
// pattern is preferred.
type TemplateRule struct {
	ID           int64
	SKUPattern   string
	TemplateFile string
	Priority     int
}

// AssetRule maps a trigger keyword to a decorative asset value: an image
// filename, a font descriptor or a color code depending on Type.
type AssetRule struct {
	ID      int64
	Keyword string
	Type    AssetType
	Value   string
}

// Assets holds the decorative assets resolved for a piece of text.
// A zero value in a slot means no rule matched for that asset type.
type Assets struct {
	Image string
	Font  string
	Color string
}
