package store

import "errors"

// Storage error sentinels.
var (
	ErrListNotFound    = errors.New("keyword list not found")
	ErrKeywordNotFound = errors.New("keyword not found")
)
