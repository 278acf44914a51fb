// pkg/catalog/toon.go
//
// TOON is a compact tabular encoding for intent catalogs: one header line
// declaring the row count and column names, then one comma-separated row per
// intent. Cells may be double-quoted; commas inside quotes do not split.
// List-valued cells (keywords, triggers) separate their elements with ';',
// so a trigger pattern must not contain a literal semicolon.
package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var toonHeaderPattern = regexp.MustCompile(`^intents\[(\d+)\]\{([^}]*)\}:$`)

const toonColumns = "id,label,description,keywords,triggers,semantic_seed"

// ParseTOON decodes the TOON catalog encoding. Blank lines and lines
// starting with '#' are ignored. The declared row count must match the
// number of rows present.
func ParseTOON(data []byte) (*Catalog, error) {
	var header string
	var rows []string
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if header == "" {
			header = line
			continue
		}
		rows = append(rows, line)
	}
	if header == "" {
		return nil, fmt.Errorf("parse catalog toon: missing header line")
	}

	m := toonHeaderPattern.FindStringSubmatch(header)
	if m == nil {
		return nil, fmt.Errorf("parse catalog toon: malformed header %q", header)
	}
	declared, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("parse catalog toon: bad row count in header: %w", err)
	}
	if cols := strings.ReplaceAll(m[2], " ", ""); cols != toonColumns {
		return nil, fmt.Errorf("parse catalog toon: unexpected columns %q, want %q", m[2], toonColumns)
	}
	if len(rows) != declared {
		return nil, fmt.Errorf("parse catalog toon: header declares %d rows, found %d", declared, len(rows))
	}

	cat := &Catalog{Intents: make([]Intent, 0, len(rows))}
	for i, row := range rows {
		cells := splitTOONRow(row)
		if len(cells) != 6 {
			return nil, fmt.Errorf("parse catalog toon: row %d has %d cells, want 6", i+1, len(cells))
		}
		cat.Intents = append(cat.Intents, Intent{
			ID:           cells[0],
			Label:        cells[1],
			Description:  cells[2],
			Keywords:     splitTOONList(cells[3]),
			Triggers:     splitTOONList(cells[4]),
			SemanticSeed: cells[5],
		})
	}
	return cat, nil
}

// EncodeTOON renders the catalog in the TOON encoding.
func (c *Catalog) EncodeTOON() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "intents[%d]{%s}:\n", len(c.Intents), toonColumns)
	for _, in := range c.Intents {
		cells := []string{
			quoteTOONCell(in.ID, false),
			quoteTOONCell(in.Label, false),
			quoteTOONCell(in.Description, true),
			quoteTOONCell(strings.Join(in.Keywords, ";"), true),
			quoteTOONCell(strings.Join(in.Triggers, ";"), true),
			quoteTOONCell(in.SemanticSeed, true),
		}
		b.WriteString("  " + strings.Join(cells, ",") + "\n")
	}
	return []byte(b.String())
}

// splitTOONRow splits a row on commas outside double quotes. The quote
// characters themselves are dropped.
func splitTOONRow(line string) []string {
	var cells []string
	var cur strings.Builder
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	cells = append(cells, strings.TrimSpace(cur.String()))
	return cells
}

func splitTOONList(cell string) []string {
	var out []string
	for _, part := range strings.Split(cell, ";") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func quoteTOONCell(cell string, force bool) string {
	if force || strings.ContainsAny(cell, ",\"") {
		return `"` + strings.ReplaceAll(cell, `"`, "") + `"`
	}
	return cell
}
