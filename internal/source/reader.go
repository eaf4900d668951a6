// Package source reads raw state extract files into string-typed row
// batches. No type inference happens here; every value stays an opaque
// string for the import engine to interpret through the state's profile.
package source

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/civicworks/voterbase/internal/profile"
)

var (
	ErrEmptyFile = errors.New("extract file is empty")
	ErrNoHeader  = errors.New("extract file has no header row")
)

// Batch is an ordered set of raw records sharing one header. Values are
// opaque strings; missing trailing cells read as "".
type Batch struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of data rows.
func (b *Batch) Len() int { return len(b.Rows) }

// Lookup builds a case-insensitive index from column name to position,
// keeping the first occurrence when names collide.
func (b *Batch) Lookup() map[string]int {
	idx := make(map[string]int, len(b.Columns))
	for i, c := range b.Columns {
		key := strings.ToLower(strings.TrimSpace(c))
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	return idx
}

// Value returns the cell for a raw column name in a row, looked up
// case-insensitively via an index from Lookup.
func (b *Batch) Value(idx map[string]int, row []string, column string) string {
	i, ok := idx[strings.ToLower(strings.TrimSpace(column))]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// ReadFile reads an extract according to a profile's file format. limit > 0
// caps the number of data rows read; 0 reads everything.
func ReadFile(path string, ff profile.FileFormat, limit int) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open extract: %w", err)
	}
	defer f.Close()
	return Read(f, ff, limit)
}

// Read reads an extract stream according to a file format descriptor.
func Read(r io.Reader, ff profile.FileFormat, limit int) (*Batch, error) {
	dec, err := decoderFor(ff.Encoding)
	if err != nil {
		return nil, err
	}
	if dec != nil {
		r = transform.NewReader(r, dec)
	}

	cr := csv.NewReader(stripBOM(r))
	cr.Comma = delimiterRune(ff.Delimiter)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	batch := &Batch{Columns: header}
	for {
		if limit > 0 && len(batch.Rows) >= limit {
			break
		}
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(batch.Rows)+2, err)
		}
		if isEmptyRow(row) {
			continue
		}
		batch.Rows = append(batch.Rows, row)
	}
	return batch, nil
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func delimiterRune(d string) rune {
	switch d {
	case "", ",":
		return ','
	case "\\t", "\t":
		return '\t'
	default:
		return rune(d[0])
	}
}

// decoderFor maps a profile encoding name to a charset decoder. utf-8 needs
// none; state extracts are commonly windows-1252 or latin1.
func decoderFor(name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported extract encoding %q", name)
	}
}

// Sniff inspects the first line of an extract to detect its delimiter,
// encoding, and header. Used only during onboarding; imports replay the
// frozen profile. Detection order matches historical behavior: comma means
// csv, then pipe, then tab, defaulting to comma.
func Sniff(path string) (profile.FileFormat, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return profile.FileFormat{}, nil, fmt.Errorf("open extract: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	raw, err := br.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return profile.FileFormat{}, nil, fmt.Errorf("read first line: %w", err)
	}

	enc := detectEncoding(raw)
	line := string(raw)
	if dec, err := decoderFor(enc); err == nil && dec != nil {
		if decoded, _, err := transform.Bytes(dec, raw); err == nil {
			line = string(decoded)
		}
	}
	line = strings.TrimPrefix(line, "\ufeff")
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return profile.FileFormat{}, nil, ErrEmptyFile
	}

	ff := profile.FileFormat{Type: "csv", Delimiter: ",", Encoding: enc, HasHeader: true}
	switch {
	case strings.Contains(line, ","):
		ff.Type, ff.Delimiter = "csv", ","
	case strings.Contains(line, "|"):
		ff.Type, ff.Delimiter = "text", "|"
	case strings.Contains(line, "\t"):
		ff.Type, ff.Delimiter = "text", "\t"
	}

	var cols []string
	for _, c := range strings.Split(line, ff.Delimiter) {
		cols = append(cols, strings.TrimSpace(c))
	}
	return ff, cols, nil
}

// detectEncoding picks the first encoding in the fallback chain that can
// represent the sampled bytes: utf-8, then windows-1252, then latin1.
// Windows-1252 leaves five bytes undefined that latin1 maps to control
// characters; a sample using one of them falls through to latin1.
func detectEncoding(sample []byte) string {
	if utf8.Valid(sample) {
		return "utf-8"
	}
	for _, b := range sample {
		switch b {
		case 0x81, 0x8D, 0x8F, 0x90, 0x9D:
			return "latin1"
		}
	}
	return "windows-1252"
}

// stripBOM drops a UTF-8 BOM if the stream starts with one.
func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	b, err := br.Peek(3)
	if err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		br.Discard(3)
	}
	return br
}
