package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/campusgate/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	err    error
	bucket string
	key    string
	lines  []string
	calls  int
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	body, _ := io.ReadAll(in.Body)
	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	for scanner.Scan() {
		f.lines = append(f.lines, scanner.Text())
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Archive_FlushWritesNDJSON(t *testing.T) {
	p := &fakePutter{}
	a := NewS3ArchiveWithClient(p, "audit")
	a.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	ctx := context.Background()

	require.NoError(t, a.Record(ctx, Event{Type: EventLogin, UserID: 1}))
	require.NoError(t, a.Record(ctx, Event{Type: EventTheftDetected, UserID: 2, Fingerprint: "fp"}))
	assert.Equal(t, 2, a.Pending())

	require.NoError(t, a.Flush(ctx))
	assert.Equal(t, 0, a.Pending())
	assert.Equal(t, "audit", p.bucket)
	assert.True(t, strings.HasPrefix(p.key, "security-events/2026/03/04/"), p.key)
	require.Len(t, p.lines, 2)

	var e Event
	require.NoError(t, json.Unmarshal([]byte(p.lines[1]), &e))
	assert.Equal(t, EventTheftDetected, e.Type)
	assert.Equal(t, "fp", e.Fingerprint)
}

func TestS3Archive_EmptyFlushIsNoop(t *testing.T) {
	p := &fakePutter{}
	a := NewS3ArchiveWithClient(p, "audit")
	require.NoError(t, a.Flush(context.Background()))
	assert.Zero(t, p.calls)
}

func TestS3Archive_FailedFlushKeepsEvents(t *testing.T) {
	p := &fakePutter{err: errors.New("unreachable")}
	a := NewS3ArchiveWithClient(p, "audit")
	ctx := context.Background()

	require.NoError(t, a.Record(ctx, Event{Type: EventRefresh, UserID: 1}))
	err := a.Flush(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
	assert.Equal(t, 1, a.Pending())

	p.err = nil
	require.NoError(t, a.Flush(ctx))
	assert.Equal(t, 0, a.Pending())
	assert.Len(t, p.lines, 1)
}

func TestS3Archive_BufferBound(t *testing.T) {
	a := NewS3ArchiveWithClient(&fakePutter{}, "audit")
	a.maxBuffered = 2
	ctx := context.Background()

	require.NoError(t, a.Record(ctx, Event{}))
	require.NoError(t, a.Record(ctx, Event{}))
	assert.ErrorIs(t, a.Record(ctx, Event{}), ErrBufferFull)
}

func TestNewS3Archive_AppliesConfig(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-central-1", lo.Region)
		return aws.Config{Region: lo.Region}, nil
	}
	var gotOpts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&gotOpts)
		}
		return s3.NewFromConfig(cfg)
	}

	a, err := NewS3Archive(context.Background(), &sc.Config{
		S3Region:       "eu-central-1",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3RootUser:     "minio",
		S3RootPassword: "minio123",
		S3AuditBucket:  "campusgate-audit",
	})
	require.NoError(t, err)
	assert.Equal(t, "campusgate-audit", a.bucket)
	assert.Equal(t, "http://127.0.0.1:9000", aws.ToString(gotOpts.BaseEndpoint))
	assert.True(t, gotOpts.UsePathStyle)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no creds")
	}
	_, err = NewS3Archive(context.Background(), &sc.Config{})
	assert.Error(t, err)
}
