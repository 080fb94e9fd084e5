package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/xuri/excelize/v2"

	"github.com/finscrape/finscrape/internal/sheet"
	"github.com/finscrape/finscrape/internal/site"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText  OutputFormat = "text"
	FormatJSON  OutputFormat = "json"
	FormatTable OutputFormat = "table"
	FormatXLSX  OutputFormat = "xlsx"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatText, FormatJSON, FormatTable, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("invalid format: %s (must be 'text', 'json', 'table' or 'xlsx')", s)
}

// WriteOutput writes the sheet in the specified format. Rule decides the
// shape of text output.
func WriteOutput(w io.Writer, sh *sheet.Sheet, rule site.Rule, format OutputFormat) error {
	switch format {
	case FormatText:
		return writeText(w, sh, rule)
	case FormatJSON:
		return writeJSON(w, sh, rule)
	case FormatTable:
		return writeTable(w, sh, rule)
	case FormatXLSX:
		return writeXLSX(w, sh, rule)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeText prints one line per extracted field. Nothing is written for an
// empty sheet.
func writeText(w io.Writer, sh *sheet.Sheet, rule site.Rule) error {
	for _, rec := range sh.Records {
		var err error
		switch rule {
		case site.RulePair:
			_, err = fmt.Fprintln(w, rec.Raw)
		case site.RulePositional:
			_, err = fmt.Fprintf(w, "%s\n%s\n", rec.Label, rec.Value)
		case site.RuleCells:
			for _, cell := range rec.Fields {
				if _, err = fmt.Fprintln(w, cell+" "); err != nil {
					break
				}
			}
		default:
			_, err = fmt.Fprintln(w, rec.Label)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// writeJSON outputs the label -> value mapping, or the list of items for
// list pages.
func writeJSON(w io.Writer, sh *sheet.Sheet, rule site.Rule) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if rule == site.RuleList {
		return encoder.Encode(sh.Items())
	}
	return encoder.Encode(sh.Map())
}

func writeTable(w io.Writer, sh *sheet.Sheet, rule site.Rule) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(tableTitle(sh))

	header, rows := tabulate(sh, rule)
	t.AppendHeader(toRow(header))
	for _, r := range rows {
		t.AppendRow(toRow(r))
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d records", len(sh.Records))})
	t.Render()
	return nil
}

func writeXLSX(w io.Writer, sh *sheet.Sheet, rule site.Rule) error {
	f := excelize.NewFile()
	defer f.Close()

	name := sh.Site
	if name == "" {
		name = "Sheet1"
	}
	if err := f.SetSheetName("Sheet1", name); err != nil {
		return fmt.Errorf("naming worksheet: %w", err)
	}

	header, rows := tabulate(sh, rule)
	if err := f.SetSheetRow(name, "A1", toCells(header)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, toCells(r)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// tabulate lays a sheet out as header plus rows. Cell pages keep every cell,
// padded to the widest row.
func tabulate(sh *sheet.Sheet, rule site.Rule) ([]string, [][]string) {
	switch rule {
	case site.RuleList:
		rows := make([][]string, 0, len(sh.Records))
		for _, rec := range sh.Records {
			rows = append(rows, []string{rec.Label})
		}
		return []string{"Name"}, rows

	case site.RuleCells:
		width := 0
		for _, rec := range sh.Records {
			if len(rec.Fields) > width {
				width = len(rec.Fields)
			}
		}
		header := make([]string, width)
		for i := range header {
			header[i] = fmt.Sprintf("Column %d", i+1)
		}
		if width > 0 {
			header[0] = "Label"
		}
		rows := make([][]string, 0, len(sh.Records))
		for _, rec := range sh.Records {
			r := make([]string, width)
			copy(r, rec.Fields)
			rows = append(rows, r)
		}
		return header, rows

	default:
		rows := make([][]string, 0, len(sh.Records))
		for _, rec := range sh.Records {
			rows = append(rows, []string{rec.Label, rec.Value})
		}
		return []string{"Label", "Value"}, rows
	}
}

func tableTitle(sh *sheet.Sheet) string {
	if sh.Ticker == "" {
		return sh.Site
	}
	return sh.Site + " " + strings.ToUpper(sh.Ticker)
}

func toRow(cells []string) table.Row {
	r := make(table.Row, len(cells))
	for i, c := range cells {
		r[i] = c
	}
	return r
}

func toCells(cells []string) *[]interface{} {
	r := make([]interface{}, len(cells))
	for i, c := range cells {
		r[i] = c
	}
	return &r
}
