// Package ingestion reads the classification, segmentation and site metadata
// exports into typed records.
package ingestion

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrSourceNotFound is returned when an input path does not exist
	ErrSourceNotFound = errors.New("source file not found")
	// ErrMissingColumn is returned when a required field cannot be located
	// in the header
	ErrMissingColumn = errors.New("required column missing")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Encoding names reported on a Table
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1250 = "windows-1250"
)

// NoPosition marks a field without a positional fallback column
const NoPosition = -1

// Field describes one logical column of a source file
type Field struct {
	Name     string
	Aliases  []string
	Required bool
	// Position is the zero-based column used when no header alias matches
	Position int
}

// Schema is the declarative header layout of one source file
type Schema struct {
	Name   string
	Fields []Field
}

// Row maps field names to trimmed cell values
type Row struct {
	Line   int
	values map[string]string
}

// Get returns the cell for a field, or "" when the column is absent
func (r Row) Get(field string) string {
	return r.values[field]
}

// Table is a fully decoded source file
type Table struct {
	Path      string
	Encoding  string
	Delimiter rune
	Header    []string
	// Columns maps each resolved field to its column index
	Columns map[string]int
	Rows    []Row
}

// Reader loads tabular sources
type Reader struct {
	logger *zap.Logger
}

// NewReader creates a reader that reports skipped rows to logger
func NewReader(logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{logger: logger}
}

// ReadTable reads path with a reader that does not log
func ReadTable(path string, schema Schema) (*Table, error) {
	return NewReader(nil).ReadTable(path, schema)
}

// ReadTable decodes the file at path, resolves its header against schema and
// returns every data row. Malformed rows are skipped, never fatal.
func (r *Reader) ReadTable(path string, schema Schema) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s %s: %w", schema.Name, path, ErrSourceNotFound)
		}
		return nil, fmt.Errorf("failed to read %s file: %w", schema.Name, err)
	}

	text, encoding, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s file: %w", schema.Name, err)
	}
	if encoding != EncodingUTF8 {
		r.logger.Info("re-decoded source",
			zap.String("source", schema.Name),
			zap.String("encoding", encoding),
		)
	}

	table := &Table{
		Path:      path,
		Encoding:  encoding,
		Delimiter: detectDelimiter(text),
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = table.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s file %s is empty: %w", schema.Name, path, ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s header: %w", schema.Name, err)
	}
	table.Header = header

	columns, err := resolveColumns(header, schema)
	if err != nil {
		return nil, err
	}
	table.Columns = columns

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			r.logger.Warn("skipping unreadable row", zap.String("source", schema.Name), zap.Error(err))
			continue
		}
		line, _ := reader.FieldPos(0)

		values := make(map[string]string, len(columns))
		for name, idx := range columns {
			if idx < len(record) {
				values[name] = strings.TrimSpace(record[idx])
			}
		}
		table.Rows = append(table.Rows, Row{Line: line, values: values})
	}

	r.logger.Debug("read source",
		zap.String("source", schema.Name),
		zap.String("path", path),
		zap.Int("rows", len(table.Rows)),
		zap.String("delimiter", string(table.Delimiter)),
	)
	return table, nil
}

// decode returns the file as UTF-8 text. Content that is not valid UTF-8,
// or that already carries replacement characters, is re-decoded as
// Windows-1250, the encoding of the spreadsheet exports.
func decode(raw []byte) (string, string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) && !bytes.ContainsRune(raw, utf8.RuneError) {
		return string(raw), EncodingUTF8, nil
	}
	decoded, err := charmap.Windows1250.NewDecoder().Bytes(raw)
	if err != nil {
		return "", "", err
	}
	return string(decoded), EncodingWindows1250, nil
}

func detectDelimiter(text string) rune {
	firstLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		firstLine = text[:i]
	}
	if strings.ContainsRune(firstLine, '\t') {
		return '\t'
	}
	return ','
}

// normalizeHeader folds a header cell or alias for comparison: case,
// surrounding quotes and the separators in "image_name", "Image Name" and
// "ImageName" are ignored.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.Trim(h, " \t\"'“”"))
	return headerSeparators.Replace(h)
}

var headerSeparators = strings.NewReplacer("_", "", " ", "", "-", "", ".", "")

// resolveColumns maps every schema field to a column index. A header that
// names every required field is resolved by alias only, and optional fields
// it lacks stay absent. Any other header is taken as the fixed export layout
// and every field is read from its positional column.
func resolveColumns(header []string, schema Schema) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}

	columns := make(map[string]int, len(schema.Fields))
	var missing []string
	for _, f := range schema.Fields {
		for _, alias := range append([]string{f.Name}, f.Aliases...) {
			if idx, ok := index[normalizeHeader(alias)]; ok {
				columns[f.Name] = idx
				break
			}
		}
		if _, ok := columns[f.Name]; !ok && f.Required {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) == 0 {
		return columns, nil
	}

	positional := make(map[string]int, len(schema.Fields))
	for _, f := range schema.Fields {
		if f.Position != NoPosition {
			positional[f.Name] = f.Position
			continue
		}
		if f.Required {
			return nil, fmt.Errorf("%s file: column %q: %w", schema.Name, missing[0], ErrMissingColumn)
		}
	}
	return positional, nil
}
