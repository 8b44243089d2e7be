// Package s3 provides an S3 implementation of the blobstore.Store interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(s3.NewFromConfig(cfg), "my-bucket", "potentials/")
//
// # Features
//
//   - Range reads for partial fetches of large array sidecars
//   - Multipart uploads with CRC32C integrity checks for big models
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
