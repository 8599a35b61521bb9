// Package s3 provides Amazon S3 and DynamoDB backends for mirroring.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	mirror := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "indexes/")
//	journal := s3.NewDDBJournal(dynamodb.NewFromConfig(cfg), "chunkcanvas-commits")
//
//	store := chunkcanvas.New(chunkcanvas.WithMirror(mirror), chunkcanvas.WithJournal(journal))
//
// # Features
//
//   - Multipart uploads for large index files
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//   - Versioned commit journal with conditional writes
package s3
