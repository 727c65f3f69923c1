package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-ingest/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
	"github.com/ekaya-inc/ekaya-ingest/pkg/services"
)

// getOutputFormat returns the effective output format from the root command's persistent flags.
func getOutputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	return v
}

func validateOutputFormat(output string) error {
	if output != "" && output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes rows under an upper-cased header, columns aligned.
func printTable(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	upper := make([]string, len(header))
	for i, h := range header {
		upper[i] = strings.ToUpper(h)
	}
	fmt.Fprintln(tw, strings.Join(upper, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func printSchema(w io.Writer, format string, schema *models.SchemaDescriptor) error {
	if format == "json" {
		return printJSON(w, schema)
	}
	fmt.Fprintf(w, "Schema: %s\n", schema.Name)
	rows := make([][]string, len(schema.Fields))
	for i, f := range schema.Fields {
		rows[i] = []string{f.Name, f.Type}
	}
	return printTable(w, []string{"field", "type"}, rows)
}

func printPage(w io.Writer, format string, schema *models.SchemaDescriptor, page *models.PreviewPage) error {
	if format == "json" {
		return printJSON(w, page)
	}

	header := schema.FieldNames()
	rows := make([][]string, len(page.Rows))
	for i, rec := range page.Rows {
		cells := make([]string, len(header))
		for j, name := range header {
			cells[j] = jsonutil.CellText(rec[name])
		}
		rows[i] = cells
	}
	if err := printTable(w, header, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Page %d of %d (%d records)\n",
		page.PageNumber, max(page.TotalPages(), 1), page.TotalRecords)
	return err
}

func printHistory(w io.Writer, format string, entries []models.HistoryEntry) error {
	if format == "json" {
		return printJSON(w, entries)
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		detail := ""
		switch {
		case e.RecordCount != nil:
			detail = fmt.Sprintf("%d records", *e.RecordCount)
		case e.ErrorMessage != nil:
			detail = *e.ErrorMessage
		}
		id := e.ID
		if e.Pending {
			id += " (pending)"
		}
		rows[i] = []string{
			id,
			string(e.Kind),
			e.Name,
			deref(e.Connection),
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			string(e.Status),
			detail,
		}
	}
	return printTable(w, []string{"id", "type", "name", "connection", "timestamp", "status", "detail"}, rows)
}

func printConnections(w io.Writer, format string, saved []models.SavedConnection) error {
	if format == "json" {
		return printJSON(w, saved)
	}
	rows := make([][]string, len(saved))
	for i, s := range saved {
		rows[i] = []string{s.ID, s.Name, string(s.Engine), s.Config.Host + ":" + s.Config.Port, s.Config.Database, s.Config.Table}
	}
	return printTable(w, []string{"id", "name", "type", "address", "database", "table"}, rows)
}

func printStatus(w io.Writer, status services.StatusEvent) {
	if status.Message != "" {
		fmt.Fprintln(w, status.Message)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
