package onboarding

// csv.go tokenizes student CSV uploads.
//
// The format is line based: each non-blank line is one record, a double quote
// toggles quoted mode, two double quotes inside a quoted field are a literal
// quote, and a comma outside quotes ends the field. Rows whose cell count does
// not match the header are reported as diagnostics and skipped so one bad
// line never sinks the whole upload.

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const reasonColumnMismatch = "column count mismatch"

// RowDiagnostic describes a data line the tokenizer skipped.
type RowDiagnostic struct {
	Row    int      `json:"row"`
	Reason string   `json:"reason"`
	Values []string `json:"values,omitempty"`
}

func (d RowDiagnostic) Error() string {
	return fmt.Sprintf("row %d: %s", d.Row, d.Reason)
}

// ParseResult holds the tokenizer output.
type ParseResult struct {
	Header      []string
	Rows        []Row
	Diagnostics []RowDiagnostic
}

// Parse tokenizes CSV text into student rows.
//
// It fails with ErrMalformedInput when fewer than two non-blank lines remain
// and with a *SchemaError when required columns are missing. When every data
// line was skipped, the first diagnostic is returned as the error together
// with the partial result.
func Parse(text string) (*ParseResult, error) {
	lines := nonBlankLines(strings.TrimPrefix(text, "\uFEFF"))
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: need a header and at least one data row", ErrMalformedInput)
	}

	header := canonicalHeader(tokenizeLine(lines[0]))
	idx := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	result := &ParseResult{
		Header: header,
		Rows:   make([]Row, 0, len(lines)-1),
	}

	for i, line := range lines[1:] {
		rowNum := i + 1
		values := tokenizeLine(line)
		if len(values) != len(header) {
			result.Diagnostics = append(result.Diagnostics, RowDiagnostic{
				Row:    rowNum,
				Reason: reasonColumnMismatch,
				Values: trimAll(values),
			})
			continue
		}
		result.Rows = append(result.Rows, buildRow(rowNum, values, idx))
	}

	if len(result.Rows) == 0 && len(result.Diagnostics) > 0 {
		return result, fmt.Errorf("%w: %v", ErrMalformedInput, result.Diagnostics[0])
	}

	return result, nil
}

// nonBlankLines splits on newlines, strips a trailing carriage return and
// drops whitespace-only lines.
func nonBlankLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func canonicalHeader(cells []string) []string {
	lower := cases.Lower(language.Und)
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = lower.String(strings.TrimSpace(c))
	}
	return out
}

// tokenizeLine splits one line into raw (untrimmed) cells.
func tokenizeLine(line string) []string {
	var (
		fields   []string
		buf      strings.Builder
		inQuotes bool
	)

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				buf.WriteByte('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			fields = append(fields, buf.String())
			buf.Reset()
		default:
			buf.WriteByte(c)
		}
	}

	return append(fields, buf.String())
}

func buildRow(line int, values []string, idx map[string]int) Row {
	cell := func(col string) string {
		return strings.TrimSpace(values[idx[col]])
	}
	optional := func(col string) *string {
		v := cell(col)
		if v == "" {
			return nil
		}
		return &v
	}

	return Row{
		Line:          line,
		Name:          cell(ColName),
		Email:         cell(ColEmail),
		StudentID:     cell(ColStudentID),
		Batch:         optional(ColBatch),
		DegreeProgram: optional(ColDegreeProgram),
		Semester:      optional(ColSemester),
	}
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
