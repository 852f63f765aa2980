package safefetch

import "fmt"

// InvalidURLError reports a URL without a scheme or host.
type InvalidURLError struct {
	URL string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid URL: %s", e.URL)
}

// NotFoundError reports a model with neither a single-file nor a sharded
// safetensors layout on the hub.
type NotFoundError struct {
	ModelID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("model %s does not have any safetensors files", e.ModelID)
}

// FormatError reports a malformed or incomplete container header or index
// manifest. Tensor is set when a specific metadata entry is at fault.
type FormatError struct {
	URL    string
	Tensor string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Tensor != "" {
		return fmt.Sprintf("%s: tensor %q: %s", e.URL, e.Tensor, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.URL, e.Reason)
}

// StatusError reports a non-success HTTP response status.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Status, e.URL)
}

// SizeMismatchError reports a response body whose length does not match the
// requested byte range, at either the per-chunk or whole-transfer level.
type SizeMismatchError struct {
	URL          string
	RangeHeader  string
	Requested    int64
	Received     int64
	Status       int
	ContentRange string
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("downloaded size mismatch for %s (Range: %q): requested %d bytes, got %d (status %d, Content-Range: %q)",
		e.URL, e.RangeHeader, e.Requested, e.Received, e.Status, e.ContentRange)
}
