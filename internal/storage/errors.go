package storage

import "errors"

// ErrUnavailable marks failures of a backing store (sqlite, redis). Callers
// match it with errors.Is; losing conversation or audit data silently is
// worse than failing the request.
var ErrUnavailable = errors.New("storage unavailable")
