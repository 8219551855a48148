package importer

import (
	"io"
	"strings"
)

const (
	separator = ','
	enclosure = '"'
	escape    = '\\'
)

// Row is one record of a delimited file. Line is the 1-based line on which
// the record starts.
type Row struct {
	Line  int
	Cells []string
}

// Cell returns the cell at i and whether it exists.
func (r Row) Cell(i int) (string, bool) {
	if i < 0 || i >= len(r.Cells) {
		return "", false
	}
	return r.Cells[i], true
}

// Blank reports whether every cell is empty after trimming.
func (r Row) Blank() bool {
	for _, c := range r.Cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// RowReader splits comma separated text into rows. Fields may be enclosed
// in double quotes; inside an enclosure a doubled quote is a literal quote
// and a backslash protects the following character. The backslash itself is
// kept, as spreadsheet exports that rely on it expect. Enclosed fields may
// span lines. Input must already use "\n" line endings.
type RowReader struct {
	src  []rune
	pos  int
	line int
}

// NewRowReader returns a reader over normalised text.
func NewRowReader(text string) *RowReader {
	return &RowReader{src: []rune(text), line: 1}
}

// Read returns the next row, or io.EOF once the input is exhausted.
func (r *RowReader) Read() (Row, error) {
	if r.pos >= len(r.src) {
		return Row{}, io.EOF
	}

	row := Row{Line: r.line}
	for {
		cell, last := r.readField()
		row.Cells = append(row.Cells, cell)
		if last {
			return row, nil
		}
	}
}

// ReadAll drains the reader.
func (r *RowReader) ReadAll() []Row {
	var rows []Row
	for {
		row, err := r.Read()
		if err != nil {
			return rows
		}
		rows = append(rows, row)
	}
}

// readField consumes one field and the delimiter after it. last is true when
// the field ended the record (newline or end of input).
func (r *RowReader) readField() (string, bool) {
	var b strings.Builder

	// whitespace in front of an enclosure is ignored
	start := r.pos
	for start < len(r.src) && (r.src[start] == ' ' || r.src[start] == '\t') {
		start++
	}
	if start < len(r.src) && r.src[start] == enclosure {
		r.pos = start + 1
		r.readEnclosed(&b)
	}

	for r.pos < len(r.src) {
		c := r.src[r.pos]
		r.pos++
		switch c {
		case separator:
			return b.String(), false
		case '\n':
			r.line++
			return b.String(), true
		default:
			b.WriteRune(c)
		}
	}
	return b.String(), true
}

// readEnclosed consumes up to and including the closing quote. An
// unterminated enclosure runs to the end of the input.
func (r *RowReader) readEnclosed(b *strings.Builder) {
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		switch {
		case c == escape && r.pos+1 < len(r.src):
			b.WriteRune(c)
			b.WriteRune(r.src[r.pos+1])
			if r.src[r.pos+1] == '\n' {
				r.line++
			}
			r.pos += 2
		case c == enclosure:
			if r.pos+1 < len(r.src) && r.src[r.pos+1] == enclosure {
				b.WriteRune(enclosure)
				r.pos += 2
				continue
			}
			r.pos++
			return
		default:
			if c == '\n' {
				r.line++
			}
			b.WriteRune(c)
			r.pos++
		}
	}
}
