// Package s3 reads record documents from Amazon S3 or an S3-compatible store.
//
// Storage wraps the AWS SDK v2 client with the three calls the XML record
// source needs: Fetch reads one object, Keys lists the objects under a prefix
// and Exists probes a key. SDK errors are mapped onto the package sentinels, so
// a missing key surfaces as ErrObjectNotFound whichever way S3 reports it:
//
//	store, err := s3.New(ctx, s3.Config{Bucket: "sis-exports", Region: "eu-west-1"})
//	if err != nil {
//		return err
//	}
//	data, err := store.Fetch(ctx, "students/2024-09-01.xml")
//	if errors.Is(err, s3.ErrObjectNotFound) {
//		// nothing exported yet
//	}
//
// For MinIO and similar services set Endpoint and ForcePathStyle. Tests inject a
// fake client with WithS3Client and, for Keys, a paginator with
// WithPaginatorFactory.
package s3
