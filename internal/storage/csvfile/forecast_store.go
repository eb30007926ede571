package csvfile

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/storage"
)

var resultsHeader = []string{"date", "asset", "predicted_price", "actual_price", "error", "updated_at"}

// ForecastStore implements storage.ForecastStore on results.csv.
type ForecastStore struct {
	mu   sync.Mutex
	path string
}

// NewForecastStore creates a store writing dir/results.csv.
func NewForecastStore(dir string) *ForecastStore {
	return &ForecastStore{path: filepath.Join(dir, ResultsFile)}
}

// Compile-time interface check.
var _ storage.ForecastStore = (*ForecastStore)(nil)

// Upsert rewrites the file with the record for (date, asset) replaced.
func (s *ForecastStore) Upsert(_ context.Context, r *domain.ForecastRecord) error {
	if err := storage.ValidateForecast(r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}

	copy := *r
	copy.Date = domain.DateOf(r.Date)
	copy.UpdatedAt = time.Now().UTC()

	replaced := false
	for i, existing := range records {
		if existing.Asset == copy.Asset && existing.Date.Equal(copy.Date) {
			records[i] = &copy
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, &copy)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		return records[i].Asset < records[j].Asset
	})

	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = []string{
			domain.FormatDate(rec.Date),
			rec.Asset,
			formatFloat(rec.PredictedPrice),
			formatFloat(rec.ActualPrice),
			formatFloat(rec.Error),
			rec.UpdatedAt.UTC().Format(timeLayout),
		}
	}
	if err := writeAll(s.path, resultsHeader, rows); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

// Get retrieves the record for (asset, date). Returns ErrNotFound if not exists.
func (s *ForecastStore) Get(_ context.Context, asset string, date time.Time) (*domain.ForecastRecord, error) {
	records, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	d := domain.DateOf(date)
	for _, r := range records {
		if r.Asset == asset && r.Date.Equal(d) {
			return r, nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetByAsset retrieves all records for an asset, ordered by date ASC.
func (s *ForecastStore) GetByAsset(ctx context.Context, asset string) ([]*domain.ForecastRecord, error) {
	return s.GetAfter(ctx, asset, time.Time{})
}

// GetAfter retrieves records for an asset with date > after, ordered by date ASC.
func (s *ForecastStore) GetAfter(_ context.Context, asset string, after time.Time) ([]*domain.ForecastRecord, error) {
	records, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	var result []*domain.ForecastRecord
	for _, r := range records {
		if r.Asset != asset {
			continue
		}
		if !after.IsZero() && !r.Date.After(domain.DateOf(after)) {
			continue
		}
		result = append(result, r)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// GetRecent retrieves up to limit records, newest first.
func (s *ForecastStore) GetRecent(_ context.Context, asset string, limit int) ([]*domain.ForecastRecord, error) {
	records, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	var result []*domain.ForecastRecord
	for _, r := range records {
		if asset == "" || r.Asset == asset {
			result = append(result, r)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].Asset < result[j].Asset
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *ForecastStore) snapshot() ([]*domain.ForecastRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// load parses the file. Caller holds mu.
func (s *ForecastStore) load() ([]*domain.ForecastRecord, error) {
	rows, err := readAll(s.path, resultsHeader)
	if err != nil {
		return nil, err
	}

	records := make([]*domain.ForecastRecord, 0, len(rows))
	for i, row := range rows {
		r, err := parseForecastRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", ResultsFile, i+2, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func parseForecastRow(row []string) (*domain.ForecastRecord, error) {
	date, err := domain.ParseDate(row[0])
	if err != nil {
		return nil, fmt.Errorf("parse date: %w", err)
	}
	r := &domain.ForecastRecord{Date: date, Asset: row[1]}
	if r.PredictedPrice, err = parseFloat(row[2]); err != nil {
		return nil, fmt.Errorf("parse predicted_price: %w", err)
	}
	if r.ActualPrice, err = parseFloat(row[3]); err != nil {
		return nil, fmt.Errorf("parse actual_price: %w", err)
	}
	if r.Error, err = parseFloat(row[4]); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if row[5] != "" {
		if r.UpdatedAt, err = time.Parse(timeLayout, row[5]); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
	}
	return r, nil
}
