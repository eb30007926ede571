package reporting

import (
	"fmt"

	"commodity-forecast/internal/observability"
)

// Output formats.
const (
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatXLSX     = "xlsx"
	FormatParquet  = "parquet"
)

// Rendered is a dashboard serialized to one file format.
type Rendered struct {
	Format      string
	Extension   string
	ContentType string
	Data        []byte
}

// Render serializes the dashboard. csv and parquet contain the result rows;
// markdown and xlsx also contain the error summary.
func Render(d *Dashboard, format string) (*Rendered, error) {
	out := &Rendered{Format: format}
	var err error

	switch format {
	case FormatMarkdown:
		out.Extension, out.ContentType = ".md", "text/markdown; charset=utf-8"
		out.Data = []byte(RenderMarkdown(d))
	case FormatCSV:
		out.Extension, out.ContentType = ".csv", "text/csv; charset=utf-8"
		out.Data = []byte(RenderCSV(d.Results))
	case FormatXLSX:
		out.Extension, out.ContentType = ".xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		out.Data, err = RenderXLSX(d)
	case FormatParquet:
		out.Extension, out.ContentType = ".parquet", "application/octet-stream"
		out.Data, err = RenderParquet(d.Results)
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
	if err != nil {
		return nil, err
	}

	observability.RecordReport(format)
	return out, nil
}
