package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"commodity-forecast/internal/domain"
)

var (
	// ErrNoDateColumn is returned when the file has no date, Date or DATE column.
	ErrNoDateColumn = errors.New("no date column found in historical CSV")

	// ErrColumnNotFound is returned when the asset's historical key is not a column.
	ErrColumnNotFound = errors.New("column not found in historical data")
)

var dateColumns = []string{"date", "Date", "DATE"}

// Table is a parsed wide historical file: one date column and one price
// column per asset. Missing cells are NaN.
type Table struct {
	Dates   []time.Time
	Columns map[string][]float64
}

// Series extracts the column named key as an asset series, skipping missing
// cells and sorting by date.
func (t *Table) Series(asset, key string) (domain.AssetSeries, error) {
	col, ok := t.Columns[key]
	if !ok {
		return domain.AssetSeries{}, fmt.Errorf("%w: %q", ErrColumnNotFound, key)
	}

	s := domain.AssetSeries{Asset: asset, Points: make([]domain.PricePoint, 0, len(col))}
	for i, price := range col {
		if math.IsNaN(price) {
			continue
		}
		s.Points = append(s.Points, domain.PricePoint{Date: t.Dates[i], Price: price})
	}
	sort.SliceStable(s.Points, func(i, j int) bool {
		return s.Points[i].Date.Before(s.Points[j].Date)
	})
	return s, nil
}

// CSVSource reads a wide historical CSV file.
type CSVSource struct {
	path string
}

// NewCSVSource creates a source for the file at path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Load reads the file and returns the asset's HistoricalKey column.
func (s *CSVSource) Load(ctx context.Context, asset domain.AssetConfig) (domain.AssetSeries, error) {
	t, err := s.ReadTable(ctx)
	if err != nil {
		return domain.AssetSeries{}, err
	}
	series, err := t.Series(asset.ID, asset.HistoricalKey)
	if err != nil {
		return domain.AssetSeries{}, fmt.Errorf("load %s: %w", asset.ID, err)
	}
	return series, nil
}

// ReadTable parses the whole file.
func (s *CSVSource) ReadTable(ctx context.Context) (*Table, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open historical csv: %w", err)
	}
	defer f.Close()

	return ParseTable(ctx, f)
}

// ParseTable parses a wide CSV from r.
func ParseTable(ctx context.Context, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	dateIdx := -1
	for _, name := range dateColumns {
		for i, col := range header {
			if strings.TrimSpace(col) == name {
				dateIdx = i
				break
			}
		}
		if dateIdx >= 0 {
			break
		}
	}
	if dateIdx < 0 {
		return nil, ErrNoDateColumn
	}

	t := &Table{Columns: make(map[string][]float64, len(header)-1)}
	names := make([]string, len(header))
	for i, col := range header {
		names[i] = strings.TrimSpace(col)
		if i != dateIdx {
			t.Columns[names[i]] = nil
		}
	}

	for line := 2; ; line++ {
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := domain.ParseDate(strings.TrimSpace(record[dateIdx]))
		if err != nil {
			return nil, fmt.Errorf("line %d: parse date %q: %w", line, record[dateIdx], err)
		}
		t.Dates = append(t.Dates, date)

		for i, cell := range record {
			if i == dateIdx {
				continue
			}
			price, err := parseCell(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, names[i], err)
			}
			t.Columns[names[i]] = append(t.Columns[names[i]], price)
		}
	}

	return t, nil
}

// parseCell returns NaN for blank or NaN cells.
func parseCell(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	switch strings.ToLower(cell) {
	case "", "nan", "null", "na":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}
