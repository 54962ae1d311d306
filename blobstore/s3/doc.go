// Package s3 stores table snapshots in Amazon S3.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil {
//	    return err
//	}
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "tables/")
//	ts := tablestore.New(store)
//
// Reads use ranged GETs; writes stream through the SDK's multipart uploader.
package s3
