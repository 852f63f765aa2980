package safefetch

import (
	"net/http"
	"time"
)

// WithOption is the interface for all client option functions.
type WithOption func(c *Client)

// WithBaseDomain overrides the hub base domain, e.g. for a mirror or a test
// server. Default is https://huggingface.co.
func WithBaseDomain(domain string) WithOption {
	return func(c *Client) {
		c.baseDomain = domain
	}
}

// WithRevision selects the repository revision (branch, tag or commit) that
// shard URLs resolve against. Default is "main".
func WithRevision(revision string) WithOption {
	return func(c *Client) {
		c.revision = revision
	}
}

// WithUserAgent sets the User-Agent header attached to every outbound request.
func WithUserAgent(userAgent string) WithOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithAuthToken sets the bearer token attached to every outbound request,
// overriding the HF_TOKEN environment variable. An empty token disables the
// Authorization header.
func WithAuthToken(token string) WithOption {
	return func(c *Client) {
		c.authToken = token
	}
}

// WithMaxHeaderBytes bounds the container prefix fetched when parsing a shard
// header. Parsing fails if the metadata does not fit. Default is 5 MiB.
func WithMaxHeaderBytes(n int64) WithOption {
	return func(c *Client) {
		c.maxHeaderBytes = n
	}
}

// WithMultithreadThreshold sets the transfer size at or above which a range is
// fetched with parallel chunked requests. Default is 100 MiB.
func WithMultithreadThreshold(n int64) WithOption {
	return func(c *Client) {
		c.multithreadThreshold = n
	}
}

// WithWorkerCount sets the number of concurrent requests used by the parallel
// fetch path. A count of 1 disables it. Default is 8.
func WithWorkerCount(n int) WithOption {
	return func(c *Client) {
		c.workerCount = n
	}
}

// WithTimeout sets the per-request timeout. Default is 120 seconds. Ignored
// when a custom HTTP client is supplied.
func WithTimeout(d time.Duration) WithOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client, including its timeout.
func WithHTTPClient(client *http.Client) WithOption {
	return func(c *Client) {
		c.httpClient = client
	}
}
