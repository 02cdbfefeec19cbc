// Provides common zerog errors definitions.
package zerog_errors

import "errors"

var (
	ErrSyntax = errors.New("zerog: constraint syntax error")

	ErrTypeUnknown  = errors.New("zerog: unknown object type")
	ErrUnknownIndex = errors.New("zerog: unknown index name")
	ErrUnknownOrder = errors.New("zerog: unknown order index")
	ErrBadSelect    = errors.New("zerog: unknown select column")
	ErrBadMetadata  = errors.New("zerog: bad object metadata")

	ErrIteratorConsumed = errors.New("zerog: iterator already consumed")
	ErrClosed           = errors.New("zerog: indexer closed")
)
