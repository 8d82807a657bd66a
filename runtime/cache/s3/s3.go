// Package s3 is an optional shared runtime-fetch-cache Backend over AWS S3,
// selected when EGG_CACHE_S3_BUCKET is set. It lets several hatchers on
// different hosts share fetched .img blobs instead of each refetching from
// the registry. Scoped down to the three operations cache.Backend needs
// rather than a full multipart-upload blob storage surface: this module
// only ever stores whole, already-downloaded files, so multipart upload has
// no caller. Azure and Swift backends are not wired as a second and third
// tier — see DESIGN.md for why one representative remote backend is enough
// here.
package s3

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/henhouse/egg/runtime/cache"
)

func init() {
	cache.Register("s3", func(parameters map[string]string) (cache.Backend, error) {
		return New(parameters["bucket"], parameters["region"])
	})
}

// Driver stores cache entries as objects in an S3 bucket.
type Driver struct {
	bucket string
	client *s3.S3
}

// New constructs a Driver for bucket, using the default AWS SDK credential
// and region resolution chain when region is empty.
func New(bucket, region string) (*Driver, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	return &Driver{bucket: bucket, client: s3.New(sess)}, nil
}

func (d *Driver) Has(ctx context.Context, key string) (bool, error) {
	_, err := d.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (d *Driver) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := d.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, cache.ErrNotFound
		}
		return nil, err
	}
	return out.Body, nil
}

func (d *Driver) Put(ctx context.Context, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	_, err = d.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

func isNotFound(err error) bool {
	type statusCoder interface{ StatusCode() int }
	if sc, ok := err.(statusCoder); ok {
		return sc.StatusCode() == 404
	}
	return false
}
