package reporting

import (
	"fmt"
	"strings"

	"commodity-forecast/internal/domain"
)

// RenderCSV renders forecast records as CSV string, in results.csv layout.
func RenderCSV(records []*domain.ForecastRecord) string {
	var sb strings.Builder

	sb.WriteString("date,asset,predicted_price,actual_price,error\n")
	for _, r := range records {
		sb.WriteString(fmt.Sprintf("%s,%s,%.6f,%.6f,%.6f\n",
			domain.FormatDate(r.Date),
			r.Asset,
			r.PredictedPrice,
			r.ActualPrice,
			r.Error,
		))
	}

	return sb.String()
}
