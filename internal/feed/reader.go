package feed

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind is the content kind of a feed.
type Kind string

const (
	KindDelimited  Kind = "delimited"  // CSV or TSV with a header row
	KindStructured Kind = "structured" // JSON array of objects
	KindMarkup     Kind = "markup"     // XML, one element per record
)

// Record is one raw feed record: its fields as decoded, keyed by the
// source's own header spellings, plus the verbatim source text kept for
// traceability.
type Record struct {
	Fields map[string]string
	Raw    string
}

// Reader fetches and decodes order feeds.
type Reader struct {
	client *http.Client
	// kind, when set, overrides content-kind inference.
	kind Kind
}

// Option configures a Reader.
type Option func(*Reader)

// WithHTTPClient replaces the default HTTP client (10s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(r *Reader) { r.client = c }
}

// WithKind forces the content kind instead of inferring it from the
// transport hint or file extension.
func WithKind(k Kind) Option {
	return func(r *Reader) { r.kind = k }
}

// NewReader creates a feed Reader.
func NewReader(opts ...Option) *Reader {
	r := &Reader{
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read fetches the feed at location and decodes it into raw records,
// reporting the content kind it decoded as.
//
// Fetch failures return an UnreachableError; decode failures return a
// MalformedError.
func (r *Reader) Read(ctx context.Context, location string) ([]Record, Kind, error) {
	data, hint, err := r.fetch(ctx, location)
	if err != nil {
		return nil, "", err
	}

	kind := r.kind
	if kind == "" {
		kind = inferKind(location, hint)
	}

	var records []Record
	switch kind {
	case KindStructured:
		records, err = decodeStructured(data)
	case KindMarkup:
		records, err = decodeMarkup(data)
	default:
		kind = KindDelimited
		records, err = decodeDelimited(data)
	}
	if err != nil {
		return nil, "", &MalformedError{Location: location, Err: err}
	}
	return records, kind, nil
}

// fetch returns the feed body plus the transport's content-type hint
// (empty for local files).
func (r *Reader) fetch(ctx context.Context, location string) (data []byte, hint string, err error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, "", &UnreachableError{Location: location, Err: err}
		}

		resp, err := r.client.Do(req)
		if err != nil {
			return nil, "", &UnreachableError{Location: location, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, "", &UnreachableError{
				Location: location,
				Err:      fmt.Errorf("unexpected status %s", resp.Status),
			}
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", &UnreachableError{Location: location, Err: err}
		}
		return body, resp.Header.Get("Content-Type"), nil
	}

	body, err := os.ReadFile(location)
	if err != nil {
		return nil, "", &UnreachableError{Location: location, Err: err}
	}
	return body, "", nil
}

// inferKind decides the content kind from the transport hint, falling back
// to the location's file extension. Unknown feeds decode as delimited text,
// the dominant feed form.
func inferKind(location, contentType string) Kind {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			switch {
			case mt == "application/json" || strings.HasSuffix(mt, "+json"):
				return KindStructured
			case mt == "text/xml" || mt == "application/xml" || strings.HasSuffix(mt, "+xml"):
				return KindMarkup
			case mt == "text/csv" || mt == "text/tab-separated-values":
				return KindDelimited
			}
		}
	}

	ext := strings.ToLower(path.Ext(strings.SplitN(location, "?", 2)[0]))
	switch ext {
	case ".json":
		return KindStructured
	case ".xml":
		return KindMarkup
	default:
		return KindDelimited
	}
}

// decodeDelimited parses CSV or TSV with a header row. The delimiter is
// sniffed from the header line: a tab anywhere in it wins over comma.
func decodeDelimited(data []byte) ([]Record, error) {
	text := strings.TrimPrefix(string(data), "\uFEFF")
	if strings.TrimSpace(text) == "" {
		return []Record{}, nil
	}

	delimiter := ','
	if firstLine, _, _ := strings.Cut(text, "\n"); strings.ContainsRune(firstLine, '\t') {
		delimiter = '\t'
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse delimited feed: %w", err)
	}
	if len(rows) == 0 {
		return []Record{}, nil
	}

	header := rows[0]
	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		fields := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(row) {
				fields[strings.TrimSpace(name)] = strings.TrimSpace(row[i])
			}
		}
		records = append(records, Record{
			Fields: fields,
			Raw:    strings.Join(row, string(delimiter)),
		})
	}
	return records, nil
}

// decodeStructured parses a JSON feed: either a top-level array of objects
// or an object wrapping exactly one array of objects.
func decodeStructured(data []byte) ([]Record, error) {
	var items []json.RawMessage
	if err := unmarshalStrict(data, &items); err != nil {
		var wrapper map[string]json.RawMessage
		if werr := unmarshalStrict(data, &wrapper); werr != nil {
			return nil, fmt.Errorf("parse structured feed: %w", err)
		}
		items = nil
		for _, key := range sortedKeys(wrapper) {
			var arr []json.RawMessage
			if err := unmarshalStrict(wrapper[key], &arr); err == nil {
				items = arr
				break
			}
		}
		if items == nil {
			return nil, fmt.Errorf("parse structured feed: no record array found")
		}
	}

	records := make([]Record, 0, len(items))
	for i, item := range items {
		var obj map[string]any
		dec := json.NewDecoder(bytes.NewReader(item))
		dec.UseNumber()
		if err := dec.Decode(&obj); err != nil {
			return nil, fmt.Errorf("parse structured feed: record %d: %w", i, err)
		}

		fields := make(map[string]string, len(obj))
		for k, v := range obj {
			if s, ok := scalarString(v); ok {
				fields[k] = s
			}
		}
		records = append(records, Record{Fields: fields, Raw: string(item)})
	}
	return records, nil
}

// scalarString renders a decoded JSON scalar as a string. Nested objects
// and arrays have no header-field equivalent and are dropped.
func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

func unmarshalStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type xmlField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type xmlRecord struct {
	XMLName xml.Name
	Fields  []xmlField `xml:",any"`
}

type xmlFeed struct {
	XMLName xml.Name
	Records []xmlRecord `xml:",any"`
}

// decodeMarkup parses an XML feed: every child element of the root is one
// record, and each of its child elements is one field.
func decodeMarkup(data []byte) ([]Record, error) {
	var doc xmlFeed
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse markup feed: %w", err)
	}

	records := make([]Record, 0, len(doc.Records))
	for _, rec := range doc.Records {
		fields := make(map[string]string, len(rec.Fields))
		var raw strings.Builder
		fmt.Fprintf(&raw, "<%s>", rec.XMLName.Local)
		for _, f := range rec.Fields {
			fields[f.XMLName.Local] = strings.TrimSpace(f.Value)
			fmt.Fprintf(&raw, "<%s>%s</%s>", f.XMLName.Local, f.Value, f.XMLName.Local)
		}
		fmt.Fprintf(&raw, "</%s>", rec.XMLName.Local)
		records = append(records, Record{Fields: fields, Raw: raw.String()})
	}
	return records, nil
}
