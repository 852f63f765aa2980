package safefetch

import (
	"context"
	"slices"
	"sort"
)

// RemoteTensor is a lazily readable handle to one tensor inside a remote
// container shard. It is immutable: byte data is never cached in the value, so
// every Data call fetches from the network.
type RemoteTensor struct {
	name        string
	dtype       string
	shape       []int64
	offsetStart int64
	size        int64
	url         string
	client      *Client
}

// Name returns the tensor name, unique within its resolved model.
func (t *RemoteTensor) Name() string { return t.name }

// Dtype returns the dtype string as declared by the container. It is not
// validated against a fixed set of types.
func (t *RemoteTensor) Dtype() string { return t.dtype }

// Shape returns a copy of the tensor dimensions, outer to inner.
func (t *RemoteTensor) Shape() []int64 { return slices.Clone(t.shape) }

// Size returns the tensor's data size in bytes.
func (t *RemoteTensor) Size() int64 { return t.size }

// OffsetStart returns the absolute offset of the tensor's first data byte
// within its shard file.
func (t *RemoteTensor) OffsetStart() int64 { return t.offsetStart }

// URL returns the shard file this tensor lives in.
func (t *RemoteTensor) URL() string { return t.url }

// NumElements returns the total number of elements, the product of the shape.
// A scalar has one element.
func (t *RemoteTensor) NumElements() int64 {
	n := int64(1)
	for _, dim := range t.shape {
		n *= dim
	}
	return n
}

// Data fetches the tensor's raw bytes from its shard. It returns exactly Size
// bytes or an error, never partial data.
func (t *RemoteTensor) Data(ctx context.Context) ([]byte, error) {
	return t.client.FetchRange(ctx, t.url, t.offsetStart, t.size)
}

// ResolvedModel maps tensor names to their remote handles.
type ResolvedModel map[string]*RemoteTensor

// Names returns the tensor names in lexicographic order.
func (m ResolvedModel) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TotalParameters returns the element count summed over all tensors.
func (m ResolvedModel) TotalParameters() int64 {
	var total int64
	for _, t := range m {
		total += t.NumElements()
	}
	return total
}

// TotalBytes returns the data size in bytes summed over all tensors.
func (m ResolvedModel) TotalBytes() int64 {
	var total int64
	for _, t := range m {
		total += t.size
	}
	return total
}
