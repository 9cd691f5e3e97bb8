package crawler

import "errors"

// ErrInvalidConfiguration is returned by Crawl when a bound is out of range
// or the root URL has no usable hostname. No request is made in that case.
var ErrInvalidConfiguration = errors.New("invalid crawl configuration")
