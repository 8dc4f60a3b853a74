package job

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/laserline/engraver/internal/orders"
	"github.com/laserline/engraver/internal/rules"
)

// minArtifactSize rejects empty or truncated renderer input. Any smaller
// project file is structurally incomplete.
const minArtifactSize = 64

// errTemplateMissing marks a resolved template file that does not exist on
// disk. Distinguished from other generation faults because it is a
// configuration error, not a transient one.
var errTemplateMissing = errors.New("template file missing")

// Template placeholders substituted during generation.
const (
	placeholderName    = "{{NAME}}"
	placeholderOrderID = "{{ORDER_ID}}"
	placeholderSKU     = "{{SKU}}"
	placeholderImage   = "{{IMAGE}}"
	placeholderFont    = "{{FONT}}"
	placeholderColor   = "{{COLOR}}"
)

// Generator produces renderer input artifacts from templates.
//
// Generation is plain text substitution: the template is read from
// TemplatesDir, the placeholders above are replaced with the order's
// extracted name and resolved assets, and the result is written to a
// side-specific path under WorkDir. An image asset is copied from
// AssetsDir into WorkDir first, since the renderer resolves image
// references relative to the artifact.
type Generator struct {
	TemplatesDir string
	AssetsDir    string
	WorkDir      string
}

// Generate writes the artifact for one side of one order and returns its
// path along with any files copied into the working area. Copied files are
// reported even when generation fails partway, so the caller can clean up.
func (g *Generator) Generate(o *orders.Order, side orders.Side, templateFile, name string, assets rules.Assets) (artifact string, copied []string, err error) {
	templatePath := filepath.Join(g.TemplatesDir, templateFile)
	data, err := os.ReadFile(templatePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s", errTemplateMissing, templatePath)
		}
		return "", nil, fmt.Errorf("read template: %w", err)
	}

	if err := os.MkdirAll(g.WorkDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create working area: %w", err)
	}

	imageRef := ""
	if assets.Image != "" {
		dest, err := g.copyAsset(assets.Image)
		if err != nil {
			return "", copied, err
		}
		copied = append(copied, dest)
		imageRef = filepath.Base(dest)
	}

	content := strings.NewReplacer(
		placeholderName, name,
		placeholderOrderID, o.OrderID,
		placeholderSKU, o.SKU,
		placeholderImage, imageRef,
		placeholderFont, assets.Font,
		placeholderColor, assets.Color,
	).Replace(string(data))

	ext := filepath.Ext(templateFile)
	if ext == "" {
		ext = ".lbrn2"
	}
	artifact = filepath.Join(g.WorkDir, fmt.Sprintf("%s-%s%s", sanitizeName(o.OrderID), side, ext))
	if err := os.WriteFile(artifact, []byte(content), 0o644); err != nil {
		return "", copied, fmt.Errorf("write artifact: %w", err)
	}
	return artifact, copied, nil
}

// copyAsset copies one decorative asset file into the working area and
// returns the destination path.
func (g *Generator) copyAsset(name string) (string, error) {
	src := filepath.Join(g.AssetsDir, filepath.Base(name))
	dest := filepath.Join(g.WorkDir, filepath.Base(name))

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open asset %s: %w", name, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("copy asset %s: %w", name, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", fmt.Errorf("copy asset %s: %w", name, err)
	}
	if err := out.Sync(); err != nil {
		return "", fmt.Errorf("copy asset %s: %w", name, err)
	}
	return dest, nil
}

// verifyArtifact rejects missing, empty or truncated artifacts before and
// after renderer invocation.
func verifyArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("artifact missing: %w", err)
	}
	if info.Size() < minArtifactSize {
		return fmt.Errorf("artifact truncated: %d bytes, need at least %d", info.Size(), minArtifactSize)
	}
	return nil
}

// sanitizeName keeps order IDs path-safe.
func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
