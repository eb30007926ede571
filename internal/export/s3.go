// Package export uploads rendered dashboards to S3-compatible object storage.
package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"commodity-forecast/internal/config"
	"commodity-forecast/internal/logger"
	"commodity-forecast/internal/reporting"
)

// Uploader is the subset of the S3 client used by S3Exporter.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter writes reports under <prefix>/date=YYYY-MM-DD/.
type S3Exporter struct {
	client Uploader
	bucket string
	prefix string
	log    *logger.Logger
	now    func() time.Time
}

// NewS3Exporter builds an S3 client from cfg. Static credentials are used
// when both keys are set, otherwise the default AWS credential chain.
func NewS3Exporter(ctx context.Context, cfg config.ExportConfig, log *logger.Logger) (*S3Exporter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("export bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return NewS3ExporterWithClient(client, cfg.Bucket, cfg.Prefix, log), nil
}

// NewS3ExporterWithClient creates an exporter on an existing client.
func NewS3ExporterWithClient(client Uploader, bucket, prefix string, log *logger.Logger) *S3Exporter {
	if log == nil {
		log = logger.Nop()
	}
	return &S3Exporter{
		client: client,
		bucket: bucket,
		prefix: prefix,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Export uploads a rendered report and returns its object key.
func (e *S3Exporter) Export(ctx context.Context, r *reporting.Rendered) (string, error) {
	key := e.objectKey(r.Extension)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	_, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(r.Data),
		ContentType: aws.String(r.ContentType),
		Metadata: map[string]string{
			"report-format": r.Format,
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload report to s3://%s/%s: %w", e.bucket, key, err)
	}

	e.log.Info("report exported",
		logger.String("bucket", e.bucket),
		logger.String("key", key),
		logger.Int("bytes", len(r.Data)))
	return key, nil
}

func (e *S3Exporter) objectKey(ext string) string {
	now := e.now()
	name := fmt.Sprintf("dashboard_%s_%s%s", now.Format("20060102150405"), uuid.NewString()[:8], ext)
	return path.Join(e.prefix, "date="+now.Format("2006-01-02"), name)
}
