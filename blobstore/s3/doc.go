// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("msd_codes/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
// Shard artifacts are written with a single PutObject when they are small and
// through the multipart upload manager otherwise.
package s3
