// Package catalog is the HTTP client for the remote workflow catalog.
//
// The catalog serves a listing (a JSON array of entries, each naming a
// workflow id, where to fetch its content, and optionally a fingerprint
// and an update time) and one content document per workflow. The listing
// is treated as a complete snapshot on every call; there is no paging.
//
// Requests are paced by a token bucket and transient failures (network
// errors, 429 and 5xx responses) are retried with exponential backoff.
// Other 4xx responses fail immediately.
package catalog
