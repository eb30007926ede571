package reporting

import (
	"fmt"
	"io"
	"text/tabwriter"

	"commodity-forecast/internal/domain"
)

// WriteText prints the dashboard as aligned console tables.
func WriteText(w io.Writer, d *Dashboard) error {
	if d.Empty() {
		_, err := fmt.Fprintln(w, "No results found yet.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "=== Prediction History ===")
	fmt.Fprintln(tw, "date\tasset\tpredicted_price\tactual_price\terror")
	for _, r := range d.Results {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\t%.4f\n",
			domain.FormatDate(r.Date), r.Asset, r.PredictedPrice, r.ActualPrice, r.Error)
	}

	fmt.Fprintf(tw, "\n=== Error History (last %d) ===\n", d.ErrorWindow)
	fmt.Fprintln(tw, "date\tasset\terror")
	for _, r := range d.ErrorHistory {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\n", domain.FormatDate(r.Date), r.Asset, r.Error)
	}

	fmt.Fprintln(tw, "\n=== Error Summary ===")
	fmt.Fprintln(tw, "asset\tn\tMAE\tRMSE\tMAPE\tmax\tlast")
	for _, s := range d.Summaries {
		fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.4f\t%.2f%%\t%.4f\t%.4f\n",
			s.Asset, s.Count, s.MAE, s.RMSE, s.MAPE*100, s.MaxError, s.LastError)
	}

	return tw.Flush()
}
