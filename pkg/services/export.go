package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-ingest/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// ExportDelimiter separates cells in an exported table.
const ExportDelimiter = ","

// SerializedTable is a delimited text rendering of a preview page.
type SerializedTable struct {
	Header  []string
	Content string
}

// Filename is the download name for a table exported at t.
func (t SerializedTable) Filename(at time.Time) string {
	return fmt.Sprintf("data_preview_%d.csv", at.UnixMilli())
}

// ExportCurrentPage renders rows as delimited text. The header lists the
// schema's field names in schema order; each row emits one cell per field.
// A cell is quoted only when its text contains the delimiter. Missing and
// null values render as empty cells. Lines are joined by "\n" with no
// trailing newline.
func ExportCurrentPage(schema *models.SchemaDescriptor, rows []models.Record) SerializedTable {
	header := schema.FieldNames()

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, joinCells(header))

	cells := make([]string, len(header))
	for _, row := range rows {
		for i, name := range header {
			cells[i] = jsonutil.CellText(row[name])
		}
		lines = append(lines, joinCells(cells))
	}

	return SerializedTable{
		Header:  header,
		Content: strings.Join(lines, "\n"),
	}
}

func joinCells(cells []string) string {
	quoted := make([]string, len(cells))
	for i, c := range cells {
		quoted[i] = quoteCell(c)
	}
	return strings.Join(quoted, ExportDelimiter)
}

func quoteCell(s string) string {
	if !strings.Contains(s, ExportDelimiter) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
