package types

import "context"

// ObjectStore is the single-item storage primitive batch operations are
// built on. Implementations own the network call and surface raw,
// transport-specific failures; classification happens in the retry
// layer. Operations must be idempotent for the same logical item: a
// retry can follow a failure the remote side actually applied, so the
// contract is at-least-once execution per item.
type ObjectStore interface {
	// Upload stores content under key and returns the resulting object
	// description.
	Upload(ctx context.Context, key string, content []byte, contentType string, metadata map[string]string) (ObjectInfo, error)

	// Delete removes the referenced object. Deleting a missing object is
	// not an error.
	Delete(ctx context.Context, ref ObjectRef) error

	// Head returns metadata for one object.
	Head(ctx context.Context, key string) (ObjectInfo, error)

	// List returns descriptions of objects under a key prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
