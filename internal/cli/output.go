package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"parcel-tracking/internal/carriers"
	"parcel-tracking/internal/workers"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// OutputFormatter handles different output formats
type OutputFormatter struct {
	format string
	quiet  bool
	color  bool
	out    io.Writer
	errOut io.Writer

	headerStyle  lipgloss.Style
	successStyle lipgloss.Style
	errorStyle   lipgloss.Style
	mutedStyle   lipgloss.Style
}

// NewOutputFormatter creates a formatter writing to stdout. Color is used
// only when stdout is a terminal and noColor is not set.
func NewOutputFormatter(format string, quiet, noColor bool) *OutputFormatter {
	color := !noColor && os.Getenv("NO_COLOR") == "" && isatty.IsTerminal(os.Stdout.Fd())
	return NewOutputFormatterWithWriters(format, quiet, color, os.Stdout, os.Stderr)
}

// NewOutputFormatterWithWriters creates a formatter with explicit writers
func NewOutputFormatterWithWriters(format string, quiet, color bool, out, errOut io.Writer) *OutputFormatter {
	if format == "" {
		format = FormatTable
	}
	f := &OutputFormatter{
		format: format,
		quiet:  quiet,
		color:  color,
		out:    out,
		errOut: errOut,
	}
	if color {
		f.headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
		f.successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
		f.errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		f.mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	}
	return f
}

// ValidateFormat rejects unknown output formats
func ValidateFormat(format string) error {
	switch format {
	case "", FormatTable, FormatJSON:
		return nil
	}
	return fmt.Errorf("unsupported format: %s (must be table or json)", format)
}

// PrintRecords prints tracking records. Quiet mode prints one tracking
// number per line.
func (f *OutputFormatter) PrintRecords(records []workers.TrackingRecord) error {
	if f.quiet {
		for _, r := range records {
			fmt.Fprintln(f.out, r.TrackingNumber)
		}
		return nil
	}

	switch f.format {
	case FormatJSON:
		if records == nil {
			records = []workers.TrackingRecord{}
		}
		return f.encode(records)
	case FormatTable:
		return f.printRecordsTable(records)
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

// PrintSnapshot prints the records of a poll followed by a summary line
func (f *OutputFormatter) PrintSnapshot(s workers.Snapshot) error {
	if f.format == FormatJSON && !f.quiet {
		return f.encode(s)
	}
	if err := f.PrintRecords(s.Records); err != nil {
		return err
	}
	if f.quiet {
		return nil
	}
	summary := fmt.Sprintf("%d record(s) in %s", s.Total, s.Duration.Round(time.Millisecond))
	if s.LastError != "" {
		summary += ", last error: " + s.LastError
	}
	fmt.Fprintln(f.out, f.render(f.mutedStyle, summary))
	return nil
}

// CarrierRow is a carrier rule as shown by the CLI
type CarrierRow struct {
	carriers.Rule
	HasAPI bool `json:"has_api"`
	Active bool `json:"active"`
}

// PrintCarriers prints carrier rules. Quiet mode prints the keys only.
func (f *OutputFormatter) PrintCarriers(rows []CarrierRow) error {
	if f.quiet {
		for _, r := range rows {
			fmt.Fprintln(f.out, r.Key)
		}
		return nil
	}

	switch f.format {
	case FormatJSON:
		if rows == nil {
			rows = []CarrierRow{}
		}
		return f.encode(rows)
	case FormatTable:
		return f.printCarriersTable(rows)
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

// PrintSuccess prints a success message
func (f *OutputFormatter) PrintSuccess(message string) {
	if !f.quiet {
		fmt.Fprintf(f.out, "%s %s\n", f.render(f.successStyle, "✓"), message)
	}
}

// PrintError prints an error message
func (f *OutputFormatter) PrintError(err error) {
	if !f.quiet {
		fmt.Fprintf(f.errOut, "%s Error: %v\n", f.render(f.errorStyle, "✗"), err)
	}
}

// PrintInfo prints an informational message
func (f *OutputFormatter) PrintInfo(message string) {
	if !f.quiet {
		fmt.Fprintf(f.out, "ℹ %s\n", message)
	}
}

func (f *OutputFormatter) encode(v any) error {
	enc := json.NewEncoder(f.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f *OutputFormatter) render(style lipgloss.Style, s string) string {
	if !f.color {
		return s
	}
	return style.Render(s)
}

func (f *OutputFormatter) printRecordsTable(records []workers.TrackingRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(f.out, "No tracking records found.")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.TrackingNumber,
			r.Carrier,
			r.StatusCode,
			r.ETA,
			truncate(r.ServiceURL, 60),
		})
	}
	return f.writeTable([]string{"TRACKING", "CARRIER", "STATUS", "ETA", "LINK"}, rows)
}

func (f *OutputFormatter) printCarriersTable(rows []CarrierRow) error {
	if len(rows) == 0 {
		fmt.Fprintln(f.out, "No carriers configured.")
		return nil
	}

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{
			r.Key,
			truncate(r.SearchCriteria, 30),
			truncate(r.TrackingPattern, 30),
			r.Template(),
			yesNo(r.HasAPI),
			yesNo(r.Active),
		})
	}
	return f.writeTable([]string{"KEY", "SEARCH", "PATTERN", "TEMPLATE", "API", "ACTIVE"}, cells)
}

// writeTable aligns the table before styling the header so escape codes do
// not disturb the column widths
func (f *OutputFormatter) writeTable(header []string, rows [][]string) error {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	lines := strings.SplitAfterN(buf.String(), "\n", 2)
	fmt.Fprint(f.out, f.render(f.headerStyle, strings.TrimSuffix(lines[0], "\n"))+"\n")
	if len(lines) > 1 {
		fmt.Fprint(f.out, lines[1])
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// truncate truncates a string to the specified length
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
