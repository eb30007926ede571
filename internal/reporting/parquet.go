package reporting

import (
	"bytes"
	"fmt"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"commodity-forecast/internal/domain"
)

type forecastParquetRecord struct {
	Date           string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Asset          string  `parquet:"name=asset, type=BYTE_ARRAY, convertedtype=UTF8"`
	PredictedPrice float64 `parquet:"name=predicted_price, type=DOUBLE"`
	ActualPrice    float64 `parquet:"name=actual_price, type=DOUBLE"`
	Error          float64 `parquet:"name=error, type=DOUBLE"`
	UpdatedAt      int64   `parquet:"name=updated_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

// memFile is a write-only in-memory parquet target.
type memFile struct {
	buffer *bytes.Buffer
}

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, fmt.Errorf("read not supported") }
func (m *memFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFile) Close() error                              { return nil }

// RenderParquet renders forecast records as a snappy-compressed parquet file.
func RenderParquet(records []*domain.ForecastRecord) ([]byte, error) {
	mem := &memFile{buffer: &bytes.Buffer{}}
	pw, err := writer.NewParquetWriter(mem, new(forecastParquetRecord), 1)
	if err != nil {
		return nil, fmt.Errorf("new parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range records {
		rec := forecastParquetRecord{
			Date:           domain.FormatDate(r.Date),
			Asset:          r.Asset,
			PredictedPrice: r.PredictedPrice,
			ActualPrice:    r.ActualPrice,
			Error:          r.Error,
			UpdatedAt:      r.UpdatedAt.UnixMilli(),
		}
		if err := pw.Write(rec); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("write forecast record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet: %w", err)
	}
	return mem.buffer.Bytes(), nil
}
