package reporting

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"commodity-forecast/internal/domain"
)

const (
	sheetResults = "Results"
	sheetSummary = "Summary"
)

// RenderXLSX renders the dashboard as an Excel workbook with a results
// sheet and an error summary sheet.
func RenderXLSX(d *Dashboard) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetResults); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}

	rows := [][]interface{}{{"date", "asset", "predicted_price", "actual_price", "error"}}
	for _, r := range d.Results {
		rows = append(rows, []interface{}{domain.FormatDate(r.Date), r.Asset, r.PredictedPrice, r.ActualPrice, r.Error})
	}
	if err := writeRows(f, sheetResults, rows); err != nil {
		return nil, err
	}

	rows = [][]interface{}{{"asset", "count", "from", "to", "mae", "rmse", "mape", "bias", "max_error", "last_error"}}
	for _, s := range d.Summaries {
		rows = append(rows, []interface{}{
			s.Asset, s.Count, domain.FormatDate(s.From), domain.FormatDate(s.To),
			s.MAE, s.RMSE, s.MAPE, s.Bias, s.MaxError, s.LastError,
		})
	}
	if err := writeRows(f, sheetSummary, rows); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
