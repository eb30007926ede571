package reporting

import (
	"fmt"
	"strings"
	"time"

	"commodity-forecast/internal/domain"
)

// RenderMarkdown renders the dashboard as Markdown string.
func RenderMarkdown(d *Dashboard) string {
	var sb strings.Builder

	sb.WriteString("# Forecast Dashboard\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", d.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("## Latest Results\n\n")
	if len(d.Results) > 0 {
		sb.WriteString("| Date | Asset | Predicted | Actual | Error |\n")
		sb.WriteString("|------|-------|-----------|--------|-------|\n")
		for _, r := range d.Results {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.4f | %.4f | %.4f |\n",
				domain.FormatDate(r.Date), r.Asset, r.PredictedPrice, r.ActualPrice, r.Error))
		}
	} else {
		sb.WriteString("No results found yet.\n")
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("## Error Summary (last %d per asset)\n\n", d.ErrorWindow))
	if len(d.Summaries) > 0 {
		sb.WriteString("| Asset | N | From | To | MAE | RMSE | MAPE | Bias | P50 | P90 | Max | Last |\n")
		sb.WriteString("|-------|---|------|----|-----|------|------|------|-----|-----|-----|------|\n")
		for _, s := range d.Summaries {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %.4f | %.4f | %.2f%% | %.4f | %.4f | %.4f | %.4f | %.4f |\n",
				s.Asset, s.Count, domain.FormatDate(s.From), domain.FormatDate(s.To),
				s.MAE, s.RMSE, s.MAPE*100, s.Bias, s.P50Error, s.P90Error, s.MaxError, s.LastError))
		}
	} else {
		sb.WriteString("No error statistics available.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Error History\n\n")
	if len(d.ErrorHistory) > 0 {
		sb.WriteString("| Date | Asset | Error |\n")
		sb.WriteString("|------|-------|-------|\n")
		for _, r := range d.ErrorHistory {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.4f |\n", domain.FormatDate(r.Date), r.Asset, r.Error))
		}
	} else {
		sb.WriteString("No error history available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
