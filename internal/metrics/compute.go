package metrics

import (
	"math"
	"sort"
	"time"

	"commodity-forecast/internal/domain"
)

// AbsoluteError returns |actual - predicted|.
func AbsoluteError(actual, predicted float64) float64 {
	return math.Abs(actual - predicted)
}

// ErrorSummary describes forecast accuracy over a window of records.
type ErrorSummary struct {
	Asset     string
	Count     int
	From      time.Time // earliest record date in the window
	To        time.Time // latest record date in the window
	MAE       float64   // mean absolute error
	RMSE      float64   // root mean squared error
	MAPE      float64   // mean absolute percentage error, relative to actual
	Bias      float64   // mean of predicted - actual
	MaxError  float64
	MinError  float64
	P50Error  float64
	P90Error  float64
	LastError float64 // error of the latest record
}

// computeSummary calculates all statistics from records.
// Records are sorted by date ASC before computing order-dependent fields.
func computeSummary(asset string, records []*domain.ForecastRecord) *ErrorSummary {
	n := len(records)
	if n == 0 {
		return &ErrorSummary{Asset: asset}
	}

	sorted := make([]*domain.ForecastRecord, n)
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	errs := make([]float64, n)
	var sumSq, sumPct, sumBias float64
	for i, r := range sorted {
		e := AbsoluteError(r.ActualPrice, r.PredictedPrice)
		errs[i] = e
		sumSq += e * e
		sumBias += r.PredictedPrice - r.ActualPrice
		if r.ActualPrice != 0 {
			sumPct += e / math.Abs(r.ActualPrice)
		}
	}

	sortedErrs := make([]float64, n)
	copy(sortedErrs, errs)
	sort.Float64s(sortedErrs)

	return &ErrorSummary{
		Asset:     asset,
		Count:     n,
		From:      sorted[0].Date,
		To:        sorted[n-1].Date,
		MAE:       computeMean(errs),
		RMSE:      math.Sqrt(sumSq / float64(n)),
		MAPE:      sumPct / float64(n),
		Bias:      sumBias / float64(n),
		MaxError:  sortedErrs[n-1],
		MinError:  sortedErrs[0],
		P50Error:  computePercentile(sortedErrs, 0.50),
		P90Error:  computePercentile(sortedErrs, 0.90),
		LastError: errs[n-1],
	}
}

// computeMean calculates arithmetic mean of values.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
