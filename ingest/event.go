package ingest

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/acksell/csvload/blob"
	"github.com/aws/aws-lambda-go/events"
)

// ObjectFromEvent returns the object named by the first record of an S3
// notification. Object keys arrive URL encoded and are decoded here.
func ObjectFromEvent(ev events.S3Event) (blob.ObjectRef, error) {
	if len(ev.Records) == 0 {
		return blob.ObjectRef{}, ErrNoRecords
	}
	s3 := ev.Records[0].S3
	key, err := url.QueryUnescape(s3.Object.Key)
	if err != nil {
		return blob.ObjectRef{}, fmt.Errorf("decode object key %q: %w", s3.Object.Key, err)
	}
	if s3.Bucket.Name == "" || key == "" {
		return blob.ObjectRef{}, fmt.Errorf("record without bucket or key: %q/%q", s3.Bucket.Name, key)
	}
	return blob.ObjectRef{Bucket: s3.Bucket.Name, Key: key}, nil
}

// TableName derives the table name from an object key: the directory part,
// a compression suffix and the last extension are removed.
//
//	orders.csv          -> orders
//	uploads/orders.csv  -> orders
//	orders.csv.lz4      -> orders
func TableName(key string) (string, error) {
	name := path.Base(key)
	name = strings.TrimSuffix(name, CompressedSuffix)
	name = strings.TrimSuffix(name, path.Ext(name))
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("%w: key %q", ErrTableName, key)
	}
	return name, nil
}
