// Package importer turns uploaded lyric sheets into scene drafts.
//
// Two layouts are understood: plain text with one lyric per line, and comma
// separated text whose optional header row may use English or Japanese
// column names. Parsing has no side effects; drafts are persisted by the
// caller.
package importer

import (
	"fmt"
	"strings"

	apperrors "github.com/Corphon/MVScenePlanner/internal/errors"
	"github.com/Corphon/MVScenePlanner/internal/models"
)

// Warning describes a row that was skipped.
type Warning struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (w Warning) String() string {
	return fmt.Sprintf("row %d: %s", w.Row, w.Reason)
}

// Result is the outcome of a successful parse.
type Result struct {
	Drafts   []models.SceneDraft `json:"drafts"`
	Warnings []Warning           `json:"warnings"`
	// Header is true when the first row of a delimited file was a header.
	Header bool `json:"header"`
}

// WarningStrings formats the warnings for display.
func (r *Result) WarningStrings() []string {
	return FormatWarnings(r.Warnings)
}

// FormatWarnings renders warnings as "row N: reason" lines.
func FormatWarnings(ws []Warning) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.String())
	}
	return out
}

// Parser parses import files with a fixed alias table.
type Parser struct {
	aliases AliasTable
}

// NewParser returns a parser using the given header aliases.
func NewParser(aliases AliasTable) *Parser {
	return &Parser{aliases: aliases}
}

var defaultParser = NewParser(DefaultAliases())

// Parse parses content with the built-in aliases.
func Parse(content []byte, kind Kind) (*Result, error) {
	return defaultParser.Parse(content, kind)
}

// ParseFile picks the mode from the file name, rejects binary uploads and
// parses the content.
func (p *Parser) ParseFile(filename string, content []byte) (*Result, error) {
	kind, err := KindForFilename(filename)
	if err != nil {
		return nil, err
	}
	if err := Sniff(content); err != nil {
		return nil, err
	}
	return p.Parse(content, kind)
}

// Parse converts content into drafts numbered from 1 in file order. It fails
// with an empty-import error when no row survives.
func (p *Parser) Parse(content []byte, kind Kind) (*Result, error) {
	text, err := decodeText(content)
	if err != nil {
		return nil, err
	}

	var res *Result
	switch kind {
	case KindLineText:
		res = parseLines(text)
	case KindDelimited:
		res = p.parseDelimited(text)
	default:
		return nil, apperrors.NewUnsupportedFormatError(fmt.Sprintf("unknown import kind %q", kind))
	}

	if len(res.Drafts) == 0 {
		return nil, apperrors.NewEmptyImportError(res.WarningStrings())
	}
	return res, nil
}

func parseLines(text string) *Result {
	res := &Result{}
	order := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		order++
		res.Drafts = append(res.Drafts, models.SceneDraft{
			StartTime:     models.DefaultStartTime,
			Lyrics:        line,
			ProposedOrder: order,
		})
	}
	return res
}

func (p *Parser) parseDelimited(text string) *Result {
	res := &Result{}
	rows := NewRowReader(text).ReadAll()
	if len(rows) == 0 {
		return res
	}

	cols, header := detectHeader(rows[0], p.aliases)
	if header {
		res.Header = true
		rows = rows[1:]
	}

	order := 0
	for _, row := range rows {
		draft, reason, ok := cols.mapRow(row)
		if !ok {
			if reason != "" {
				res.Warnings = append(res.Warnings, Warning{Row: row.Line, Reason: reason})
			}
			continue
		}
		order++
		draft.ProposedOrder = order
		res.Drafts = append(res.Drafts, draft)
	}
	return res
}
