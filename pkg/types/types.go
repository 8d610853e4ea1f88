// Package types defines the shared data model for MediaStash storage
// operations.
package types

import "time"

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	LastModified time.Time         `json:"last_modified"`
	ETag         string            `json:"etag"`
	ContentType  string            `json:"content_type"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// UploadRequest is one unit of upload work. Immutable once submitted to
// a batch.
type UploadRequest struct {
	Content     []byte            `json:"-"`
	TargetName  string            `json:"target_name"`
	Category    string            `json:"category"`
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ObjectRef identifies a stored object for deletion. Immutable once
// submitted to a batch.
type ObjectRef struct {
	Bucket    string `json:"bucket,omitempty"`
	Key       string `json:"key"`
	VersionID string `json:"version_id,omitempty"`
}
