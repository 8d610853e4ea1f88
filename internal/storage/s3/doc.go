// Package s3 provides the S3-backed object store used as the single-item
// operation source for batch uploads and deletes. Each method performs
// one attempt and surfaces raw SDK failures; retry policy and error
// classification live above this layer.
package s3
