// Package blob opens the objects that trigger a load, either from S3 or from
// the local filesystem.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectRef identifies an object by bucket and key.
type ObjectRef struct {
	Bucket string
	Key    string
}

func (r ObjectRef) String() string {
	if r.Bucket == "" {
		return r.Key
	}
	return "s3://" + r.Bucket + "/" + r.Key
}

// Source opens objects for reading. Callers close the returned reader.
type Source interface {
	Open(ctx context.Context, ref ObjectRef) (io.ReadCloser, error)
}

// ObjectGetter is the part of the S3 client an S3Source needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ ObjectGetter = (*s3.Client)(nil)

// ErrNotFound is returned when the object does not exist.
var ErrNotFound = errors.New("object not found")

// S3Source reads objects with GetObject.
type S3Source struct {
	Client ObjectGetter
}

func NewS3Source(client ObjectGetter) *S3Source {
	return &S3Source{Client: client}
}

func (s *S3Source) Open(ctx context.Context, ref ObjectRef) (io.ReadCloser, error) {
	if ref.Bucket == "" || ref.Key == "" {
		return nil, fmt.Errorf("bucket and key are required, got %q", ref.String())
	}
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &ref.Bucket,
		Key:    &ref.Key,
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		var noSuchBucket *s3types.NoSuchBucket
		if errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
			return nil, fmt.Errorf("get %s: %w: %w", ref, ErrNotFound, err)
		}
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	return out.Body, nil
}

// FileSource reads objects from a directory. The bucket is a subdirectory of
// Root when set, so "s3://b/k" maps to Root/b/k.
type FileSource struct {
	Root string
}

func (f FileSource) Open(_ context.Context, ref ObjectRef) (io.ReadCloser, error) {
	if ref.Key == "" {
		return nil, errors.New("key is required")
	}
	path := filepath.Join(f.Root, ref.Bucket, filepath.FromSlash(ref.Key))
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w: %w", path, ErrNotFound, err)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return file, nil
}
