package export

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commodity-forecast/internal/config"
	"commodity-forecast/internal/reporting"
)

type fakeUploader struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeUploader) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Exporter_Export(t *testing.T) {
	up := &fakeUploader{}
	e := NewS3ExporterWithClient(up, "reports-bucket", "forecasts", nil)
	e.now = func() time.Time { return time.Date(2024, 1, 3, 18, 30, 0, 0, time.UTC) }

	key, err := e.Export(context.Background(), &reporting.Rendered{
		Format:      reporting.FormatCSV,
		Extension:   ".csv",
		ContentType: "text/csv",
		Data:        []byte("date,asset\n"),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "forecasts/date=2024-01-03/dashboard_20240103183000_"), key)
	assert.True(t, strings.HasSuffix(key, ".csv"), key)
	assert.Equal(t, "reports-bucket", *up.input.Bucket)
	assert.Equal(t, key, *up.input.Key)
	assert.Equal(t, "text/csv", *up.input.ContentType)
	assert.Equal(t, "csv", up.input.Metadata["report-format"])
	assert.Equal(t, "date,asset\n", up.body)
}

func TestS3Exporter_UploadError(t *testing.T) {
	e := NewS3ExporterWithClient(&fakeUploader{err: errors.New("access denied")}, "b", "", nil)

	_, err := e.Export(context.Background(), &reporting.Rendered{Extension: ".md"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestNewS3Exporter(t *testing.T) {
	_, err := NewS3Exporter(context.Background(), config.ExportConfig{}, nil)
	assert.Error(t, err)

	e, err := NewS3Exporter(context.Background(), config.ExportConfig{
		Bucket:          "b",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		PathStyle:       true,
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
	}, nil)
	require.NoError(t, err)
	assert.NotNil(t, e.client)
}
