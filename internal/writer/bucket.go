package writer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// DefaultDir is where series land when no output is configured.
const DefaultDir = "./data/stocks"

// Open opens the output location: a bucket URL (file://, mem://, s3://, gs://
// when the matching driver is linked in) or a plain local directory.
func Open(ctx context.Context, location string) (*blob.Bucket, error) {
	if location == "" {
		location = DefaultDir
	}
	if strings.Contains(location, "://") {
		b, err := blob.OpenBucket(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("opening bucket %s: %w", location, err)
		}
		return b, nil
	}
	return OpenDir(location)
}

// OpenDir opens dir as a bucket, creating it when missing. Objects are written
// through a temp file next to their destination and no metadata sidecars are kept.
func OpenDir(dir string) (*blob.Bucket, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	b, err := fileblob.OpenBucket(dir, &fileblob.Options{
		CreateDir: true,
		NoTempDir: true,
		Metadata:  fileblob.MetadataDontWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("opening output dir %s: %w", dir, err)
	}
	return b, nil
}
