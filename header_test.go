package safefetch

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildContainer assembles a safetensors byte stream: length prefix, metadata
// JSON, alignment padding, then the raw data region.
func buildContainer(t *testing.T, metadata []byte, data []byte) []byte {
	t.Helper()
	buf := make([]byte, 8, 8+len(metadata)+len(data))
	binary.LittleEndian.PutUint64(buf, uint64(len(metadata)))
	buf = append(buf, metadata...)
	for len(buf)%8 != 0 {
		buf = append(buf, ' ')
	}
	return append(buf, data...)
}

func serveBlob(t *testing.T, blob []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "model.safetensors", time.Time{}, bytes.NewReader(blob))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAlign8(t *testing.T) {
	cases := map[int64]int64{0: 0, 1: 8, 7: 8, 8: 8, 9: 16, 16: 16, 1001: 1008}
	for in, want := range cases {
		assert.Equal(t, want, align8(in))
		// idempotent and always a multiple of 8 at or above the input
		assert.Equal(t, align8(in), align8(align8(in)))
		assert.Zero(t, align8(in)%8)
		assert.GreaterOrEqual(t, align8(in), in)
	}
}

func TestListTensorsRoundTrip(t *testing.T) {
	dataA := bytes.Repeat([]byte{0xAB}, 40)
	dataB := bytes.Repeat([]byte{0xCD}, 24)
	metadata := []byte(`{"__metadata__":{"format":"pt"},` +
		`"a":{"dtype":"F32","shape":[2,5],"data_offsets":[0,40]},` +
		`"b":{"dtype":"F16","shape":[12],"data_offsets":[40,64]}}`)
	blob := buildContainer(t, metadata, append(append([]byte{}, dataA...), dataB...))
	server := serveBlob(t, blob)
	client := NewClient(WithAuthToken(""))

	model, err := client.ListTensors(context.Background(), server.URL)
	require.NoError(t, err)
	// the reserved metadata entry is not a tensor
	require.Len(t, model, 2)

	a := model["a"]
	require.NotNil(t, a)
	assert.Equal(t, "a", a.Name())
	assert.Equal(t, "F32", a.Dtype())
	assert.Equal(t, []int64{2, 5}, a.Shape())
	assert.Equal(t, int64(40), a.Size())
	assert.Equal(t, int64(10), a.NumElements())
	assert.Equal(t, server.URL, a.URL())
	assert.Zero(t, a.OffsetStart()%8)

	gotA, err := a.Data(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dataA, gotA)

	gotB, err := model["b"].Data(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dataB, gotB)
}

func TestRawHeader(t *testing.T) {
	metadata := []byte(`{"w":{"dtype":"F32","shape":[4],"data_offsets":[0,16]}}`)
	server := serveBlob(t, buildContainer(t, metadata, make([]byte, 16)))
	client := NewClient(WithAuthToken(""))

	raw, dataStart, err := client.RawHeader(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, metadata, raw)
	assert.Equal(t, align8(8+int64(len(metadata))), dataStart)
}

func TestZeroSizeTensorData(t *testing.T) {
	metadata := []byte(`{"empty":{"dtype":"F32","shape":[0],"data_offsets":[8,8]},` +
		`"w":{"dtype":"F32","shape":[2],"data_offsets":[0,8]}}`)
	server := serveBlob(t, buildContainer(t, metadata, make([]byte, 8)))
	client := NewClient(WithAuthToken(""))

	model, err := client.ListTensors(context.Background(), server.URL)
	require.NoError(t, err)
	empty := model["empty"]
	require.NotNil(t, empty)
	assert.Equal(t, int64(0), empty.Size())
	assert.Equal(t, int64(0), empty.NumElements())

	got, err := empty.Data(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseHeaderTooShort(t *testing.T) {
	server := serveBlob(t, []byte{1, 2, 3})
	client := NewClient(WithAuthToken(""))

	_, err := client.ListTensors(context.Background(), server.URL)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Reason, "metadata size")
}

func TestParseHeaderDeclaredLengthPastPrefix(t *testing.T) {
	// prefix declares 100 metadata bytes but only 4 follow
	blob := make([]byte, 12)
	binary.LittleEndian.PutUint64(blob, 100)
	server := serveBlob(t, blob)
	client := NewClient(WithAuthToken(""))

	_, err := client.ListTensors(context.Background(), server.URL)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Reason, "could not read complete metadata")
}

func TestParseHeaderMetadataExceedsPrefixBound(t *testing.T) {
	metadata := []byte(`{"w":{"dtype":"F32","shape":[64],"data_offsets":[0,256]}}`)
	blob := buildContainer(t, metadata, make([]byte, 256))
	server := serveBlob(t, blob)
	client := NewClient(WithAuthToken(""), WithMaxHeaderBytes(16))

	_, err := client.ListTensors(context.Background(), server.URL)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Reason, "could not read complete metadata")
}

func TestParseHeaderInvalidJSON(t *testing.T) {
	server := serveBlob(t, buildContainer(t, []byte(`not json at all`), nil))
	client := NewClient(WithAuthToken(""))

	_, err := client.ListTensors(context.Background(), server.URL)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Reason, "JSON")
}

func TestParseHeaderInvalidUTF8(t *testing.T) {
	server := serveBlob(t, buildContainer(t, []byte{0xFF, 0xFE, 0xFD, '{', '}'}, nil))
	client := NewClient(WithAuthToken(""))

	_, err := client.ListTensors(context.Background(), server.URL)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Reason, "UTF-8")
}

func TestParseHeaderTensorValidation(t *testing.T) {
	cases := []struct {
		name     string
		metadata string
		reason   string
	}{
		{"missing dtype", `{"w":{"shape":[1],"data_offsets":[0,4]}}`, `missing field "dtype"`},
		{"missing shape", `{"w":{"dtype":"F32","data_offsets":[0,4]}}`, `missing field "shape"`},
		{"missing data_offsets", `{"w":{"dtype":"F32","shape":[1]}}`, `missing field "data_offsets"`},
		{"not an object", `{"w":5}`, "not a valid object"},
		{"three offsets", `{"w":{"dtype":"F32","shape":[1],"data_offsets":[0,4,8]}}`, "exactly two integers"},
		{"end before start", `{"w":{"dtype":"F32","shape":[1],"data_offsets":[8,4]}}`, "invalid data_offsets"},
		{"negative start", `{"w":{"dtype":"F32","shape":[1],"data_offsets":[-4,4]}}`, "invalid data_offsets"},
		{"negative dimension", `{"w":{"dtype":"F32","shape":[2,-3],"data_offsets":[0,4]}}`, "negative dimension"},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			server := serveBlob(t, buildContainer(t, []byte(testCase.metadata), make([]byte, 16)))
			client := NewClient(WithAuthToken(""))

			_, err := client.ListTensors(context.Background(), server.URL)
			var formatErr *FormatError
			require.ErrorAs(t, err, &formatErr)
			assert.Equal(t, "w", formatErr.Tensor)
			assert.Contains(t, formatErr.Reason, testCase.reason)
		})
	}
}

func TestParseHeaderOpaqueDtype(t *testing.T) {
	// dtype strings are not validated against a fixed set
	metadata := []byte(`{"w":{"dtype":"MXFP4","shape":[8],"data_offsets":[0,4]}}`)
	server := serveBlob(t, buildContainer(t, metadata, make([]byte, 8)))
	client := NewClient(WithAuthToken(""))

	model, err := client.ListTensors(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "MXFP4", model["w"].Dtype())
}
