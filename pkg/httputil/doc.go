// Package httputil downloads build artifacts over HTTP.
//
// # Overview
//
//   - [Fetcher]: streams a remote file to a local path with a given mode
//   - [Retry]: retries operations that fail with a [RetryableError]
//
// # Fetching
//
// [Fetcher.Fetch] performs a GET and writes the body to disk:
//
//	f := httputil.NewFetcher(httputil.WithLogger(logger))
//	path, err := f.Fetch(ctx, "https://getcomposer.org/download/1.8.0/composer.phar", dst, 0o755)
//
// A connection failure is reported as a TRANSPORT_ERROR and a failure status
// as an HTTP_STATUS error wrapping a [*StatusError]. The destination is
// written in place, so a failed transfer can leave a partial file behind.
//
// # Retry
//
// By default a fetch is attempted once. [WithAttempts] enables retries with
// exponential backoff for transport errors and 5xx responses.
//
// # Caching
//
// [WithCache] stores successful downloads in a [cache.Cache] keyed by URL,
// so repeated builds of the same composer release skip the network.
package httputil
