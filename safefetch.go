// Package safefetch enumerates and reads tensors out of safetensors model
// files hosted behind an HTTP(S) endpoint, without downloading the files in
// full. A model is resolved into a map of lazily readable tensor handles; each
// handle fetches its exact byte range on demand, using parallel range requests
// for large transfers.
package safefetch

import (
	"net/http"
	"os"
	"time"
)

const (
	defaultBaseDomain = "https://huggingface.co"
	defaultRevision   = "main"
	defaultUserAgent  = "safefetch"

	// tokenEnvVar is read at client construction when no token option is given.
	tokenEnvVar = "HF_TOKEN"

	// defaultMaxHeaderBytes bounds the container prefix fetched to read the
	// metadata header. Headers larger than this fail parsing instead of being
	// silently truncated.
	defaultMaxHeaderBytes = 5 * 1024 * 1024

	// defaultMultithreadThreshold is the transfer size at which the fetch
	// engine switches from one request to parallel chunked requests.
	defaultMultithreadThreshold = 100 * 1024 * 1024
	defaultWorkerCount          = 8

	defaultTimeout = 120 * time.Second
)

// Client resolves remote safetensors models and fetches byte ranges from their
// shard files. The zero value is not usable; construct with NewClient. A Client
// is immutable after construction and safe for concurrent use.
type Client struct {
	baseDomain           string
	revision             string
	userAgent            string
	authToken            string
	maxHeaderBytes       int64
	multithreadThreshold int64
	workerCount          int
	timeout              time.Duration
	httpClient           *http.Client
}

// NewClient creates a Client with the given options applied over the defaults.
// The bearer token defaults to the HF_TOKEN environment variable.
func NewClient(opts ...WithOption) *Client {
	c := &Client{
		baseDomain:           defaultBaseDomain,
		revision:             defaultRevision,
		userAgent:            defaultUserAgent,
		authToken:            os.Getenv(tokenEnvVar),
		maxHeaderBytes:       defaultMaxHeaderBytes,
		multithreadThreshold: defaultMultithreadThreshold,
		workerCount:          defaultWorkerCount,
		timeout:              defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}
