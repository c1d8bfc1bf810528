package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/campusgate/internal/server/config"
	"github.com/google/uuid"
)

// DefaultMaxBuffered bounds memory use while the object store is unreachable.
const DefaultMaxBuffered = 10000

// ErrBufferFull is returned by Record once the buffer is at capacity.
var ErrBufferFull = errors.New("audit buffer full")

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// ObjectPutter is the part of *s3.Client the archive uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive buffers events in memory and writes them to a bucket as
// newline-delimited JSON objects on Flush.
type S3Archive struct {
	client      ObjectPutter
	bucket      string
	maxBuffered int
	now         func() time.Time

	mu     sync.Mutex
	events []Event
}

// NewS3ArchiveWithClient builds an archive around an existing client.
func NewS3ArchiveWithClient(client ObjectPutter, bucket string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket, maxBuffered: DefaultMaxBuffered, now: time.Now}
}

// NewS3Archive builds an S3 (or MinIO) client from the server config.
func NewS3Archive(ctx context.Context, cfg *sc.Config) (*S3Archive, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3ArchiveWithClient(client, cfg.S3AuditBucket), nil
}

func (a *S3Archive) Record(_ context.Context, e Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) >= a.maxBuffered {
		return ErrBufferFull
	}
	a.events = append(a.events, e)
	return nil
}

// Pending returns the number of buffered events.
func (a *S3Archive) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

// Flush uploads all buffered events as one object. On failure the events are
// kept for the next attempt.
func (a *S3Archive) Flush(ctx context.Context) error {
	a.mu.Lock()
	batch := a.events
	a.events = nil
	a.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range batch {
		if err := enc.Encode(e); err != nil {
			a.requeue(batch)
			return fmt.Errorf("encode event: %w", err)
		}
	}

	key := objectKey(a.now())
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		a.requeue(batch)
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (a *S3Archive) requeue(batch []Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	merged := append(batch, a.events...)
	if len(merged) > a.maxBuffered {
		merged = merged[len(merged)-a.maxBuffered:]
	}
	a.events = merged
}

func objectKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("security-events/%d/%02d/%02d/%d-%v.ndjson", t.Year(), t.Month(), t.Day(), t.Unix(), uuid.New())
}
