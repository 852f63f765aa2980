package safefetch

import (
	"context"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

// Container layout:
// [8 bytes: metadata length (uint64 LE)]
// [metadata length bytes: JSON object]
// [padding to 8-byte alignment]
// [raw tensor data region]

// dataAlignment is fixed by the container format: the data region starts at
// the first multiple of 8 at or after the end of the metadata.
const dataAlignment = 8

// reservedMetadataKey marks the free-form metadata entry of the header, which
// is not a tensor.
const reservedMetadataKey = "__metadata__"

// tensorInfo is one validated header entry. Offsets are relative to the start
// of the data region.
type tensorInfo struct {
	Dtype       string
	Shape       []int64
	OffsetStart int64
	OffsetEnd   int64
}

// rawTensorInfo separates JSON decoding from validation, so missing fields are
// distinguishable from zero values.
type rawTensorInfo struct {
	Dtype       *string  `json:"dtype"`
	Shape       *[]int64 `json:"shape"`
	DataOffsets *[]int64 `json:"data_offsets"`
}

// align8 rounds n up to the next multiple of the data alignment.
func align8(n int64) int64 {
	if rem := n % dataAlignment; rem != 0 {
		n += dataAlignment - rem
	}
	return n
}

// RawHeader returns the metadata JSON of the container at url exactly as
// stored, plus the absolute offset of the data region. The bytes are verified
// to be complete UTF-8 text but are not validated as tensor metadata.
func (c *Client) RawHeader(ctx context.Context, url string) ([]byte, int64, error) {
	prefix, err := c.fetchPrefix(ctx, url, c.maxHeaderBytes)
	if err != nil {
		return nil, 0, err
	}
	if len(prefix) < 8 {
		return nil, 0, &FormatError{URL: url, Reason: "not enough data to read metadata size"}
	}
	metadataLength := binary.LittleEndian.Uint64(prefix[:8])
	if metadataLength > uint64(len(prefix)-8) {
		return nil, 0, &FormatError{URL: url, Reason: fmt.Sprintf(
			"could not read complete metadata: need %d bytes, got %d", 8+metadataLength, len(prefix))}
	}
	dataStart := align8(8 + int64(metadataLength))

	metadataBytes := prefix[8 : 8+metadataLength]
	if !utf8.Valid(metadataBytes) {
		return nil, 0, &FormatError{URL: url, Reason: "metadata is not valid UTF-8"}
	}
	return metadataBytes, dataStart, nil
}

// parseHeader fetches the container prefix at url and decodes the metadata
// header into a tensor map plus the absolute offset of the data region.
func (c *Client) parseHeader(ctx context.Context, url string) (map[string]tensorInfo, int64, error) {
	metadataBytes, dataStart, err := c.RawHeader(ctx, url)
	if err != nil {
		return nil, 0, err
	}
	var raw map[string]jsoniter.RawMessage
	if err := jsoniter.Unmarshal(metadataBytes, &raw); err != nil {
		return nil, 0, &FormatError{URL: url, Reason: fmt.Sprintf("cannot parse metadata as JSON: %v", err)}
	}

	tensors := make(map[string]tensorInfo, len(raw))
	for name, message := range raw {
		if name == reservedMetadataKey {
			continue
		}
		info, err := validateTensorEntry(url, name, message)
		if err != nil {
			return nil, 0, err
		}
		tensors[name] = info
	}
	return tensors, dataStart, nil
}

func validateTensorEntry(url, name string, message jsoniter.RawMessage) (tensorInfo, error) {
	var raw rawTensorInfo
	if err := jsoniter.Unmarshal(message, &raw); err != nil {
		return tensorInfo{}, &FormatError{URL: url, Tensor: name,
			Reason: fmt.Sprintf("metadata entry is not a valid object: %v", err)}
	}
	switch {
	case raw.Dtype == nil:
		return tensorInfo{}, &FormatError{URL: url, Tensor: name, Reason: `missing field "dtype"`}
	case raw.Shape == nil:
		return tensorInfo{}, &FormatError{URL: url, Tensor: name, Reason: `missing field "shape"`}
	case raw.DataOffsets == nil:
		return tensorInfo{}, &FormatError{URL: url, Tensor: name, Reason: `missing field "data_offsets"`}
	}
	offsets := *raw.DataOffsets
	if len(offsets) != 2 {
		return tensorInfo{}, &FormatError{URL: url, Tensor: name,
			Reason: fmt.Sprintf("data_offsets must hold exactly two integers, got %d", len(offsets))}
	}
	if offsets[0] < 0 || offsets[1] < offsets[0] {
		return tensorInfo{}, &FormatError{URL: url, Tensor: name,
			Reason: fmt.Sprintf("invalid data_offsets [%d, %d]", offsets[0], offsets[1])}
	}
	for _, dim := range *raw.Shape {
		if dim < 0 {
			return tensorInfo{}, &FormatError{URL: url, Tensor: name,
				Reason: fmt.Sprintf("negative dimension %d in shape", dim)}
		}
	}
	return tensorInfo{
		Dtype:       *raw.Dtype,
		Shape:       *raw.Shape,
		OffsetStart: offsets[0],
		OffsetEnd:   offsets[1],
	}, nil
}
