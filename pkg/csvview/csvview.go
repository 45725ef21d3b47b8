// Package csvview loads Redmine CSV exports and prepares them for
// display. Exports from German-locale Redmine installations arrive in a
// mix of encodings (UTF-8, Windows-1252, Latin-1, sometimes UTF-16) and
// frequently with umlauts already garbled by a bad transcoding step
// upstream, so loading both detects the encoding and repairs the usual
// mojibake sequences.
package csvview

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Column names the viewer knows about.
const (
	orderColumn    = "Auftragsnummer"
	fisOrderColumn = "FIS Auftragsnummer"
	statusColumn   = "Status"
	priorityColumn = "Priorität"
	assigneeColumn = "Zugewiesen an"

	// NoOrder labels rows without any order number.
	NoOrder = "No Order"
)

// mojibakeFixer repairs UTF-8 text that went through a Latin-1 decode at
// some point. Longer sequences must come before their prefixes.
var mojibakeFixer = strings.NewReplacer(
	"â€œ", "“",
	"â€", "”",
	"â€™", "’",
	"â€˜", "‘",
	"â€“", "–",
	"â€”", "—",
	"â€¦", "…",
	"â‚¬", "€",
	"Ã¤", "ä",
	"Ã¶", "ö",
	"Ã¼", "ü",
	"Ã„", "Ä",
	"Ã–", "Ö",
	"Ãœ", "Ü",
	"ÃŸ", "ß",
	"Ã©", "é",
	"Ã¨", "è",
	"Ã ", "à",
	"Â°", "°",
	"Â§", "§",
)

// FixEncoding repairs the common double-encoding artifacts in a cell.
func FixEncoding(s string) string {
	return mojibakeFixer.Replace(s)
}

// Table is a loaded CSV export.
type Table struct {
	Headers []string
	Rows    [][]string
	index   map[string]int
}

// Load reads a CSV export, detecting encoding and delimiter.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	text, err := decodeBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode csv %s: %w", path, err)
	}
	return Parse(text)
}

// Parse builds a Table from decoded CSV text.
func Parse(text string) (*Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse csv: no rows")
	}

	t := &Table{index: make(map[string]int)}
	for i, h := range records[0] {
		name := FixEncoding(strings.TrimSpace(h))
		t.Headers = append(t.Headers, name)
		t.index[name] = i
	}
	for _, rec := range records[1:] {
		row := make([]string, len(rec))
		for i, cell := range rec {
			row[i] = FixEncoding(cell)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// decodeBytes turns raw file bytes into a UTF-8 string: a UTF-16 BOM is
// honored first, then valid UTF-8 is taken as-is, and anything else is
// treated as Windows-1252 with Latin-1 as the last resort.
func decodeBytes(raw []byte) (string, error) {
	if len(raw) >= 2 && (bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) || bytes.HasPrefix(raw, []byte{0xFE, 0xFF})) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, err := dec.Bytes(raw)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	// Strip a UTF-8 BOM if present.
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	if out, err := charmap.Windows1252.NewDecoder().Bytes(raw); err == nil {
		return string(out), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// sniffDelimiter picks ';' or ',' by counting occurrences in the first
// kilobyte; German exports usually use the semicolon.
func sniffDelimiter(text string) rune {
	sample := text
	if len(sample) > 1024 {
		sample = sample[:1024]
	}
	if strings.Count(sample, ";") >= strings.Count(sample, ",") {
		return ';'
	}
	return ','
}

// WithRows returns a table with the same columns but a different row
// set, for running aggregations over a filtered subset.
func (t *Table) WithRows(rows [][]string) *Table {
	return &Table{Headers: t.Headers, Rows: rows, index: t.index}
}

// Value returns a cell by column name, "" when the column or cell is
// missing.
func (t *Table) Value(row []string, column string) string {
	i, ok := t.index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// CombinedOrder joins the order number and the FIS order number of a
// row, deduplicated and " | " separated. Empty when the row has neither.
func (t *Table) CombinedOrder(row []string) string {
	order := t.Value(row, orderColumn)
	fis := t.Value(row, fisOrderColumn)
	switch {
	case order != "" && fis != "" && order != fis:
		return order + " | " + fis
	case order != "":
		return order
	default:
		return fis
	}
}

// FilterContains returns the rows whose column contains substr,
// case-insensitively.
func (t *Table) FilterContains(column, substr string) [][]string {
	needle := strings.ToLower(substr)
	var out [][]string
	for _, row := range t.Rows {
		if strings.Contains(strings.ToLower(t.Value(row, column)), needle) {
			out = append(out, row)
		}
	}
	return out
}

// GroupByOrder buckets the rows by their combined order field. Rows
// without any order number land under NoOrder.
func (t *Table) GroupByOrder() map[string][][]string {
	groups := make(map[string][][]string)
	for _, row := range t.Rows {
		key := t.CombinedOrder(row)
		if key == "" {
			key = NoOrder
		}
		groups[key] = append(groups[key], row)
	}
	return groups
}

// Summary aggregates the export: row counts by status and priority plus
// the number of distinct assignees.
type Summary struct {
	Total      int
	ByStatus   map[string]int
	ByPriority map[string]int
	Assignees  int
}

// Percent returns count as a percentage of the total.
func (s Summary) Percent(count int) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(count) * 100 / float64(s.Total)
}

// Summarize computes the summary over all rows.
func (t *Table) Summarize() Summary {
	s := Summary{
		Total:      len(t.Rows),
		ByStatus:   make(map[string]int),
		ByPriority: make(map[string]int),
	}
	assignees := make(map[string]bool)
	for _, row := range t.Rows {
		status := t.Value(row, statusColumn)
		if status == "" {
			status = "(unbekannt)"
		}
		s.ByStatus[status]++
		if prio := t.Value(row, priorityColumn); prio != "" {
			s.ByPriority[prio]++
		}
		if who := t.Value(row, assigneeColumn); who != "" {
			assignees[who] = true
		}
	}
	s.Assignees = len(assignees)
	return s
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"02.01.2006",
	time.RFC3339,
}

// NormalizeDate renders the date formats Redmine exports use as
// DD.MM.YYYY. A datetime that fails to parse is truncated to its date
// part; anything else is returned unchanged.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("02.01.2006")
		}
	}
	if len(s) > 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t.Format("02.01.2006")
		}
	}
	return s
}

// SplitSubject splits a requirement subject of the form "REQ-123: text"
// into its identifier and the remaining text. Subjects without an
// identifier prefix come back with an empty id.
func SplitSubject(subject string) (id, text string) {
	before, after, found := strings.Cut(subject, ":")
	if !found {
		return "", strings.TrimSpace(subject)
	}
	id = strings.TrimSpace(before)
	if id == "" || strings.ContainsAny(id, " \t") || !strings.ContainsAny(id, "0123456789") {
		return "", strings.TrimSpace(subject)
	}
	return id, strings.TrimSpace(after)
}
