package fetcher

import "errors"

// ErrTooManyRedirects is returned when a fetch exceeds the configured
// redirect hop limit.
var ErrTooManyRedirects = errors.New("too many redirects")
