// Package urlnorm turns raw URLs into the two forms the crawler works with.
//
// # Forms
//
//   - Canonical fetch form (Canonicalize): the URL with its fragment and
//     utm_* tracking parameters removed. Everything else, including the
//     order of the remaining query parameters, is left as written. This is
//     the form used to issue requests and to record link graph edges.
//   - Comparison key (ComparisonKey): a scheme-free string of the form
//     host[:port]path[?query] used only to decide whether two URLs point at
//     the same page. It is never used to issue a request.
//
// Both functions are pure and safe for concurrent use.
package urlnorm
