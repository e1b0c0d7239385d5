package config

import (
	"context"
	"fmt"

	"github.com/hupe1980/coverid/blobstore"
	"github.com/hupe1980/coverid/blobstore/minio"
	"github.com/hupe1980/coverid/blobstore/s3"
)

// Open connects to the blob store described by s.
func (s StoreConfig) Open(ctx context.Context) (blobstore.BlobStore, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	switch s.Kind {
	case StoreMemory:
		return blobstore.NewMemoryStore(), nil
	case StoreS3:
		var opts []s3.Option
		if s.Prefix != "" {
			opts = append(opts, s3.WithPrefix(s.Prefix))
		}
		if s.Region != "" {
			opts = append(opts, s3.WithRegion(s.Region))
		}
		if s.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(s.Endpoint))
		}
		return s3.New(ctx, s.Bucket, opts...)
	case StoreMinIO:
		return minio.New(ctx, minio.Config{
			Endpoint:  s.Endpoint,
			AccessKey: s.AccessKey,
			SecretKey: s.SecretKey,
			Secure:    s.Secure,
			Bucket:    s.Bucket,
			Prefix:    s.Prefix,
		})
	case StoreLocal:
		return blobstore.NewLocalStore(s.Path), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", s.Kind)
	}
}
