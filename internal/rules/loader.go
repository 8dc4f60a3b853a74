package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Error codes for rule-file loading.
const (
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeParse      = "PARSE_ERROR"
	ErrCodeInvalid    = "INVALID_RULES"
	ErrCodeEmptyInput = "EMPTY_INPUT"
)

// ruleSchema constrains rule files. Unified with every loaded instance so
// malformed rules are rejected with a position instead of loading garbage
// into the store.
const ruleSchema = `
#TemplateRule: {
	pattern:  string & !=""
	file:     string & !=""
	priority: *0 | int
}

#AssetRule: {
	keyword: string & !=""
	type:    "image" | "font" | "color"
	value:   string & !=""
}

templates?: [...#TemplateRule]
assets?: [...#AssetRule]
`

// LoadError represents an error that occurred during rule-file loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Set is the result of loading rule files from a directory.
type Set struct {
	Templates []TemplateRule
	Assets    []AssetRule
	FileCount int
}

type fileTemplateRule struct {
	Pattern  string `json:"pattern"`
	File     string `json:"file"`
	Priority int    `json:"priority"`
}

type fileAssetRule struct {
	Keyword string `json:"keyword"`
	Type    string `json:"type"`
	Value   string `json:"value"`
}

// Load reads and validates all CUE rule files in dir.
//
// Every file is unified with the embedded rule schema before decoding, so
// an invalid priority type or unknown asset type fails here with the file
// position rather than surfacing later during resolution.
func Load(dir string) (*Set, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rules directory not found: %s", dir)}
	}
	if err != nil {
		return nil, fmt.Errorf("stat rules directory: %w", err)
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := cueFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeEmptyInput, Message: fmt.Sprintf("no .cue files in %s", dir)}
	}

	cuectx := cuecontext.New()
	schema := cuectx.CompileString(ruleSchema)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile rule schema: %w", err)
	}

	// Each file is compiled on its own. Unifying files into one instance
	// would merge their rule lists by CUE unification, which rejects two
	// concrete lists of different lengths; separate compilation keeps each
	// file self-contained and preserves lexical file order.
	set := &Set{FileCount: len(files)}
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read rule file %s: %w", name, err)
		}

		v := cuectx.CompileBytes(data, cue.Filename(name))
		if err := v.Err(); err != nil {
			return nil, loadErr(ErrCodeParse, err)
		}

		v = v.Unify(schema)
		if err := v.Validate(cue.Concrete(true)); err != nil {
			return nil, loadErr(ErrCodeInvalid, err)
		}

		if err := decodeInstance(v, set); err != nil {
			return nil, err
		}
	}

	return set, nil
}

// cueFiles returns the .cue files directly under dir, relative to it, in
// lexical order. Order matters for asset rules: later files win on keyword
// overlap, matching store iteration order after a load.
func cueFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read rules directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) != ".cue" || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files = append(files, entry.Name())
	}
	return files, nil
}

func decodeInstance(v cue.Value, set *Set) error {
	if tv := v.LookupPath(cue.ParsePath("templates")); tv.Exists() {
		var raw []fileTemplateRule
		if err := tv.Decode(&raw); err != nil {
			return loadErr(ErrCodeInvalid, err)
		}
		for _, r := range raw {
			set.Templates = append(set.Templates, TemplateRule{
				SKUPattern:   r.Pattern,
				TemplateFile: r.File,
				Priority:     r.Priority,
			})
		}
	}

	if av := v.LookupPath(cue.ParsePath("assets")); av.Exists() {
		var raw []fileAssetRule
		if err := av.Decode(&raw); err != nil {
			return loadErr(ErrCodeInvalid, err)
		}
		for _, r := range raw {
			set.Assets = append(set.Assets, AssetRule{
				Keyword: r.Keyword,
				Type:    AssetType(r.Type),
				Value:   r.Value,
			})
		}
	}

	return nil
}

// loadErr converts a CUE error into a LoadError, carrying the first
// position when one is available.
func loadErr(code string, err error) *LoadError {
	le := &LoadError{Code: code, Message: err.Error()}
	if pos := errors.Positions(errors.Promote(err, "")); len(pos) > 0 {
		le.Pos = pos[0]
	}
	return le
}
