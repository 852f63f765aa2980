package safefetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/phuslu/log"
)

// FetchRange returns exactly size bytes of the resource at rawURL, starting at
// byte offset start. A size of -1 means "from start to the end of the
// resource". A size of zero returns an empty slice without issuing a request.
// Transfers of multithreadThreshold bytes or more are split into workerCount
// parallel chunk requests; the result is byte-identical to a single request
// either way. Nothing is retried and no partial data is ever returned.
func (c *Client) FetchRange(ctx context.Context, rawURL string, start, size int64) ([]byte, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	if size == 0 {
		// a bytes=N-(N-1) range is unsatisfiable, there is nothing to ask for
		return []byte{}, nil
	}
	if size >= c.multithreadThreshold && c.workerCount > 1 {
		return c.fetchParallel(ctx, rawURL, start, size)
	}
	return c.fetchSingle(ctx, rawURL, start, size)
}

func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &InvalidURLError{URL: rawURL}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

// get issues one GET with an optional Range header and returns the full body.
// Non-2xx statuses become a StatusError.
func (c *Client) get(ctx context.Context, url, rangeHeader string) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	c.setHeaders(req)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp, &StatusError{URL: url, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, err
	}
	return body, resp, nil
}

func (c *Client) fetchSingle(ctx context.Context, url string, start, size int64) ([]byte, error) {
	var rangeHeader string
	switch {
	case size > -1:
		// Range end byte is inclusive.
		rangeHeader = fmt.Sprintf("bytes=%d-%d", start, start+size-1)
	case start > 0:
		rangeHeader = fmt.Sprintf("bytes=%d-", start)
	}
	// start == 0 && size == -1 requests the whole resource, no Range header.
	body, resp, err := c.get(ctx, url, rangeHeader)
	if err != nil {
		return nil, err
	}
	if size > -1 && int64(len(body)) != size {
		return nil, &SizeMismatchError{
			URL:          url,
			RangeHeader:  rangeHeader,
			Requested:    size,
			Received:     int64(len(body)),
			Status:       resp.StatusCode,
			ContentRange: resp.Header.Get("Content-Range"),
		}
	}
	return body, nil
}

// fetchPrefix requests up to max leading bytes of the resource. Unlike
// fetchSingle it tolerates a shorter body, so header parsing works on files
// smaller than the prefix bound.
func (c *Client) fetchPrefix(ctx context.Context, url string, max int64) ([]byte, error) {
	if err := validateURL(url); err != nil {
		return nil, err
	}
	body, _, err := c.get(ctx, url, fmt.Sprintf("bytes=0-%d", max-1))
	if err != nil {
		return nil, err
	}
	return body, nil
}

type byteRange struct {
	start int64
	size  int64
}

// splitRange partitions [start, start+size) into n contiguous chunks whose
// sizes differ by at most one byte, the leading chunks taking the remainder.
func splitRange(start, size int64, n int) []byteRange {
	chunks := make([]byteRange, n)
	base := size / int64(n)
	remainder := size % int64(n)
	offset := start
	for i := range chunks {
		chunkSize := base
		if int64(i) < remainder {
			chunkSize++
		}
		chunks[i] = byteRange{start: offset, size: chunkSize}
		offset += chunkSize
	}
	return chunks
}

func (c *Client) fetchParallel(ctx context.Context, url string, start, size int64) ([]byte, error) {
	log.Debug().Str("url", url).Int64("bytes", size).Int("workers", c.workerCount).
		Msg("fetching range with parallel requests")

	chunks := splitRange(start, size, c.workerCount)
	results := make([][]byte, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		if chunk.size == 0 {
			continue
		}
		wg.Add(1)
		go func(i int, chunk byteRange) {
			defer wg.Done()
			results[i], errs[i] = c.fetchSingle(ctx, url, chunk.start, chunk.size)
		}(i, chunk)
	}
	// Full join: every chunk runs to completion even when a sibling fails.
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
	}

	data := make([]byte, 0, size)
	for _, part := range results {
		data = append(data, part...)
	}
	if int64(len(data)) != size {
		return nil, &SizeMismatchError{URL: url, Requested: size, Received: int64(len(data))}
	}
	return data, nil
}

// exists probes the resource with a minimal ranged HEAD request. It is
// advisory only: transport failures and unparseable URLs report false.
func (c *Client) exists(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	c.setHeaders(req)
	req.Header.Set("Range", "bytes=0-0")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 400
}
