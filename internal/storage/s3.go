package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultProgressInterval = 200 * time.Millisecond

// ObjectUploader is the subset of the S3 upload manager used here.
type ObjectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// ObjectAPI is the subset of the S3 client used here.
type ObjectAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Service uploads images to Amazon S3 (or compatible APIs).
type S3Service struct {
	client           ObjectAPI
	uploader         ObjectUploader
	progressInterval time.Duration
}

// S3Option customizes an S3Service.
type S3Option func(*S3Service)

// WithProgressInterval sets the minimum delay between two progress reports.
func WithProgressInterval(d time.Duration) S3Option {
	return func(s *S3Service) {
		if d >= 0 {
			s.progressInterval = d
		}
	}
}

// WithUploader replaces the upload manager.
func WithUploader(u ObjectUploader) S3Option {
	return func(s *S3Service) {
		s.uploader = u
	}
}

func NewS3Service(client *s3.Client, opts ...S3Option) *S3Service {
	return newS3Service(client, manager.NewUploader(client), opts...)
}

func newS3Service(client ObjectAPI, uploader ObjectUploader, opts ...S3Option) *S3Service {
	s := &S3Service{
		client:           client,
		uploader:         uploader,
		progressInterval: defaultProgressInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *S3Service) Upload(ctx context.Context, req UploadRequest, progress ProgressFunc) (string, error) {
	if req.Bucket == "" {
		return "", fmt.Errorf("storage bucket is required")
	}
	if strings.TrimSpace(req.Key) == "" {
		return "", fmt.Errorf("object key is required")
	}
	if req.Body == nil {
		return "", fmt.Errorf("upload body is required")
	}

	reporter := newProgressReporter(req.Size, progress, s.progressInterval)
	var body io.Reader = req.Body
	if reporter != nil {
		reporter.report(0)
		body = io.TeeReader(req.Body, reporter)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(req.Bucket),
		Key:    aws.String(req.Key),
		Body:   body,
	}
	if req.ContentType != "" {
		input.ContentType = aws.String(req.ContentType)
	}

	out, err := s.uploader.Upload(ctx, input)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", req.Key, err)
	}

	if reporter != nil {
		reporter.flush()
	}

	if out != nil && out.Location != "" {
		return out.Location, nil
	}
	return fmt.Sprintf("s3://%s/%s", req.Bucket, req.Key), nil
}

func (s *S3Service) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	var objects []ObjectInfo
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if strings.TrimSpace(prefix) != "" {
		input.Prefix = aws.String(prefix)
	}

	for {
		output, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}

		for _, obj := range output.Contents {
			objects = append(objects, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: obj.LastModified,
			})
		}

		if !aws.ToBool(output.IsTruncated) || output.NextContinuationToken == nil {
			break
		}
		input.ContinuationToken = output.NextContinuationToken
	}

	return objects, nil
}

func (s *S3Service) DeleteObject(ctx context.Context, bucket, key string) error {
	if bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("object key is required")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

var _ Service = (*S3Service)(nil)

// progressReporter counts bytes read by the uploader and forwards them,
// at most once per interval, to the callback.
type progressReporter struct {
	total    int64
	done     int64
	cb       ProgressFunc
	interval time.Duration
	mu       sync.Mutex
	lastFire time.Time
}

func newProgressReporter(total int64, cb ProgressFunc, interval time.Duration) *progressReporter {
	if cb == nil {
		return nil
	}
	return &progressReporter{
		total:    total,
		cb:       cb,
		interval: interval,
	}
}

func (p *progressReporter) Write(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done += int64(len(b))
	now := time.Now()
	if now.Sub(p.lastFire) >= p.interval || p.done == p.total {
		p.lastFire = now
		p.cb(p.done, p.total)
	}

	return len(b), nil
}

func (p *progressReporter) report(done int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = done
	p.lastFire = time.Now()
	p.cb(p.done, p.total)
}

func (p *progressReporter) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cb(p.done, p.total)
}
