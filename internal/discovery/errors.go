package discovery

import "errors"

var (
	ErrInvalidCriteria    = errors.New("invalid discovery criteria")
	ErrNotFound           = errors.New("game not found")
	ErrRawQueriesDisabled = errors.New("raw catalog queries are disabled")
)
