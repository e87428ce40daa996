// Package docstore defines the named-document collection contract used for
// the knowledge and learnings stores. Each collection holds opaque
// documents keyed by name; inserting an existing name can either skip or
// fail, and search internals belong to the backing store.
package docstore

import "context"

// Doc is a named document in a collection.
type Doc struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Store is a single named-document collection.
type Store interface {
	// Insert stores a document under name. When a document with that name
	// already exists: skipIfExists=true returns (false, nil), otherwise an
	// error. inserted=true means the document was written by this call.
	Insert(ctx context.Context, name, content string, skipIfExists bool) (inserted bool, err error)

	// Search returns documents matching the query, best match first.
	Search(ctx context.Context, query string, limit int) ([]Doc, error)
}
