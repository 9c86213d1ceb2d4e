package cmd

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/mcfsalla/sqlregexp/internal/regex"
)

const (
	formatAuto  = "auto"
	formatTable = "table"
	formatTSV   = "tsv"
)

// nullText is how SQL NULL is printed.
const nullText = "NULL"

type printer struct {
	w      io.Writer
	format string
}

// newPrinter resolves the auto format to a table on terminals and TSV
// otherwise.
func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case "", formatAuto:
		format = formatTSV
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = formatTable
		}
	case formatTable, formatTSV:
	default:
		return nil, fmt.Errorf("unknown output format %q: want %s, %s or %s", format, formatAuto, formatTable, formatTSV)
	}
	return &printer{w: w, format: format}, nil
}

// printRows drains and closes rows. Statements without result columns print
// nothing.
func (p *printer) printRows(rows *sql.Rows) error {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	var records [][]string
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = formatValue(v)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}
	return p.print(cols, records)
}

func (p *printer) print(headers []string, records [][]string) error {
	if p.format == formatTable {
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return lipgloss.NewStyle().Bold(true).Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			}).
			Headers(headers...).
			Rows(records...)
		_, err := fmt.Fprintln(p.w, t.String())
		return err
	}

	var b strings.Builder
	b.WriteString(strings.Join(headers, "\t"))
	b.WriteByte('\n')
	for _, record := range records {
		for i, field := range record {
			record[i] = escapeTSV(field)
		}
		b.WriteString(strings.Join(record, "\t"))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(p.w, b.String())
	return err
}

// printStats writes one line per pattern cache. The case-insensitive cache is
// skipped when it was never used.
func printStats(w io.Writer, backend string, exact, folded regex.CacheStats) error {
	caches := []struct {
		name  string
		stats regex.CacheStats
	}{
		{name: "exact", stats: exact},
		{name: "folded", stats: folded},
	}
	for _, c := range caches {
		if c.name == "folded" && c.stats == (regex.CacheStats{}) {
			continue
		}
		_, err := fmt.Fprintf(w, "%s %s cache: %s compiled, %s failed, %s hits, %s released, %d live\n",
			backend, c.name,
			humanize.Comma(c.stats.Compiles),
			humanize.Comma(c.stats.Failures),
			humanize.Comma(c.stats.Hits),
			humanize.Comma(c.stats.Releases),
			c.stats.Live,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return nullText
	case []byte:
		return string(v)
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

var tsvEscaper = strings.NewReplacer(`\`, `\\`, "\t", `\t`, "\n", `\n`, "\r", `\r`)

func escapeTSV(s string) string {
	return tsvEscaper.Replace(s)
}
