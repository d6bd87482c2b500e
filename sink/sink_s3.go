package sink

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/baldanca/demand-writer/retry"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stores every accepted payload as one object under a prefix, keyed by an
// increasing sequence number.
//
// S3 has no notion of a short write: a payload is either fully accepted or the
// attempt fails and zero bytes are reported. The sequence number only advances
// on success, so a failed payload re-offered later lands on the same key.
type S3 struct {
	client s3API

	bucket      string
	bucketPtr   *string
	prefix      string
	contentType string

	retry retry.Policy
	seq   uint64
}

// NewS3 returns an S3 sink writing to bucket under prefix.
func NewS3(client s3API, bucket, prefix string) *S3 {
	if client == nil {
		panic("s3 client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		panic("bucket is required")
	}

	s := &S3{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		retry:  retry.Nop{},
	}
	// Stable pointer, avoids aws.String allocations per Accept.
	s.bucketPtr = &s.bucket
	return s
}

// SetRetryPolicy controls retries around PutObject. Passing nil restores the
// single-attempt default.
func (s *S3) SetRetryPolicy(p retry.Policy) {
	if p == nil {
		s.retry = retry.Nop{}
		return
	}
	s.retry = p
}

// SetContentType sets the Content-Type stamped on uploaded objects.
func (s *S3) SetContentType(ct string) { s.contentType = ct }

func (s *S3) Accept(ctx context.Context, p []byte) (int, error) {
	key := fmt.Sprintf("%012d", s.seq)
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}

	cl := int64(len(p))

	input := s3.PutObjectInput{
		Bucket:        s.bucketPtr,
		Key:           &key,
		ContentLength: &cl,
	}
	if s.contentType != "" {
		ct := s.contentType
		input.ContentType = &ct
	}

	var body bytes.Reader
	input.Body = &body

	err := s.retry.Do(ctx, func(ctx context.Context) error {
		// Reset on every attempt: a retried PutObject re-reads the body.
		body.Reset(p)
		_, err := s.client.PutObject(ctx, &input)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("put s3 object key=%q: %w", key, err)
	}

	s.seq++
	return len(p), nil
}
