package safefetch

import (
	"context"
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/phuslu/log"
)

// Canonical file names of the two hosting layouts.
const (
	singleFileName = "model.safetensors"
	indexFileName  = "model.safetensors.index.json"
)

// shardIndex mirrors the sharded checkpoint manifest: weight_map assigns every
// tensor name to the shard file holding it.
type shardIndex struct {
	Metadata  map[string]jsoniter.RawMessage `json:"metadata"`
	WeightMap map[string]string              `json:"weight_map"`
}

// FileURL returns the URL a repository file resolves to, under the client's
// base domain and revision.
func (c *Client) FileURL(modelID, filename string) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s", c.baseDomain, modelID, c.revision, filename)
}

// ResolveModel enumerates all tensors of a hub model, detecting whether the
// model is hosted as one safetensors file or as multiple shards behind an
// index manifest. The returned handles stay valid for the lifetime of the
// client; their bytes are fetched on demand through Data.
func (c *Client) ResolveModel(ctx context.Context, modelID string) (ResolvedModel, error) {
	singleURL := c.FileURL(modelID, singleFileName)
	// The probe swallows transport errors, but a malformed base domain is a
	// configuration mistake and must surface, not read as "model absent".
	if err := validateURL(singleURL); err != nil {
		return nil, err
	}
	if c.exists(ctx, singleURL) {
		return c.ListTensors(ctx, singleURL)
	}
	indexURL := c.FileURL(modelID, indexFileName)
	if c.exists(ctx, indexURL) {
		return c.resolveSharded(ctx, modelID, indexURL)
	}
	return nil, &NotFoundError{ModelID: modelID}
}

func (c *Client) resolveSharded(ctx context.Context, modelID, indexURL string) (ResolvedModel, error) {
	indexData, err := c.FetchRange(ctx, indexURL, 0, -1)
	if err != nil {
		return nil, err
	}
	var index shardIndex
	if err := jsoniter.Unmarshal(indexData, &index); err != nil {
		return nil, &FormatError{URL: indexURL, Reason: fmt.Sprintf("cannot parse index manifest as JSON: %v", err)}
	}
	if index.WeightMap == nil {
		return nil, &FormatError{URL: indexURL, Reason: "weight_map not found in index manifest"}
	}

	seen := make(map[string]bool)
	var shards []string
	for _, filename := range index.WeightMap {
		if !seen[filename] {
			seen[filename] = true
			shards = append(shards, filename)
		}
	}
	// Shards are processed in sorted order so resolution is reproducible.
	sort.Strings(shards)

	model := make(ResolvedModel)
	for _, filename := range shards {
		shard, err := c.ListTensors(ctx, c.FileURL(modelID, filename))
		if err != nil {
			return nil, err
		}
		for name, tensor := range shard {
			if previous, ok := model[name]; ok {
				log.Warn().Str("tensor", name).Str("kept", tensor.url).Str("replaced", previous.url).
					Msg("duplicate tensor name across shards")
			}
			model[name] = tensor
		}
	}
	return model, nil
}

// ListTensors parses the container header of one shard file and returns the
// tensor handles it declares, keyed by name.
func (c *Client) ListTensors(ctx context.Context, url string) (ResolvedModel, error) {
	tensors, dataStart, err := c.parseHeader(ctx, url)
	if err != nil {
		return nil, err
	}
	model := make(ResolvedModel, len(tensors))
	for name, info := range tensors {
		model[name] = &RemoteTensor{
			name:        name,
			dtype:       info.Dtype,
			shape:       info.Shape,
			offsetStart: dataStart + info.OffsetStart,
			size:        info.OffsetEnd - info.OffsetStart,
			url:         url,
			client:      c,
		}
	}
	return model, nil
}
