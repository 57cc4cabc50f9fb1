package core

import "context"

// KeywordStore is the persistence collaborator of the import pipeline.
// The reconciler never writes; the service applies its result through
// this interface.
type KeywordStore interface {
	// ListExistingKeywords returns every keyword in the project's lists.
	// A fresh project yields an empty slice.
	ListExistingKeywords(ctx context.Context, projectID string) ([]ExistingKeyword, error)

	// UpdateKeyword applies the non-nil fields of u.
	UpdateKeyword(ctx context.Context, id string, u KeywordUpdate) error

	// InsertKeywords adds keywords to a list.
	InsertKeywords(ctx context.Context, listID string, keywords []NewKeyword) error
}

// BatchUpdater is implemented by stores that can apply all matched
// updates in one round trip. The service prefers it when available.
type BatchUpdater interface {
	UpdateKeywords(ctx context.Context, merged []MergedKeyword) error
}
