// Package blob reads whole objects from the S3 bucket that holds service assets.
package blob

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
)

// Getter is the slice of the S3 client the service needs. The real
// *s3.Client satisfies it; tests substitute fakes.
type Getter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Fetch downloads an object and returns its full contents. Objects here are
// small (adjacency table, landing page), so buffering whole is fine.
func Fetch(ctx context.Context, g Getter, bucket, key string) ([]byte, error) {
	out, err := g.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "blob: get s3://%s/%s", bucket, key)
	}
	defer out.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "blob: read s3://%s/%s", bucket, key)
	}
	return data, nil
}
