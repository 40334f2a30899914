package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

var allProtocols = []Protocol{ProtocolProto, ProtocolJSON, ProtocolCBOR}

func newPair(t *testing.T, p Protocol, buf *bytes.Buffer) (Reader, Writer) {
	t.Helper()
	reader, err := NewReader(p, buf)
	require.NoError(t, err)
	writer, err := NewWriter(p, buf)
	require.NoError(t, err)
	return reader, writer
}

// TEST001: Requests written back-to-back on one stream decode in order, then EOF
func TestPipelinedRequests(t *testing.T) {
	for _, p := range allProtocols {
		t.Run(string(p), func(t *testing.T) {
			var buf bytes.Buffer
			reader, writer := newPair(t, p, &buf)

			requests := []*WorkRequest{
				{Arguments: []string{"-d", "out", "Foo.scala"}, RequestID: 1},
				{Arguments: []string{"--", "", "with space"}, RequestID: 2, Verbosity: 10},
				{Arguments: nil},
			}
			for _, req := range requests {
				require.NoError(t, writer.WriteRequest(req))
			}

			for i, want := range requests {
				got, err := reader.ReadRequest()
				require.NoError(t, err, "request %d", i)
				assert.Equal(t, len(want.Arguments), len(got.Arguments))
				for j := range want.Arguments {
					assert.Equal(t, want.Arguments[j], got.Arguments[j])
				}
				assert.Equal(t, want.RequestID, got.RequestID)
				assert.Equal(t, want.Verbosity, got.Verbosity)
			}

			_, err := reader.ReadRequest()
			assert.Equal(t, io.EOF, err, "clean closure must be reported as io.EOF")
		})
	}
}

// TEST002: Pass-through request fields survive encoding
func TestRequestPassThroughFields(t *testing.T) {
	for _, p := range allProtocols {
		t.Run(string(p), func(t *testing.T) {
			var buf bytes.Buffer
			reader, writer := newPair(t, p, &buf)

			req := &WorkRequest{
				Arguments:  []string{"a"},
				Inputs:     []Input{{Path: "src/A.scala", Digest: []byte{0xde, 0xad}}},
				RequestID:  42,
				Cancel:     true,
				Verbosity:  3,
				SandboxDir: "/tmp/sandbox/1",
			}
			require.NoError(t, writer.WriteRequest(req))

			got, err := reader.ReadRequest()
			require.NoError(t, err)
			assert.Equal(t, req, got)
		})
	}
}

// TEST003: Responses round-trip, including zero exit code and empty output
func TestResponses(t *testing.T) {
	for _, p := range allProtocols {
		t.Run(string(p), func(t *testing.T) {
			var buf bytes.Buffer
			reader, writer := newPair(t, p, &buf)

			responses := []*WorkResponse{
				{ExitCode: 0, Output: ""},
				{ExitCode: 123, Output: "error: oh no\n", RequestID: 7},
				{ExitCode: -1, Output: "negative"},
			}
			for _, resp := range responses {
				require.NoError(t, writer.WriteResponse(resp))
			}
			for _, want := range responses {
				got, err := reader.ReadResponse()
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

// TEST004: EOF in the middle of a record is a framing error, not a clean close
func TestTruncatedRecord(t *testing.T) {
	for _, p := range allProtocols {
		t.Run(string(p), func(t *testing.T) {
			var full bytes.Buffer
			_, writer := newPair(t, p, &full)
			require.NoError(t, writer.WriteRequest(&WorkRequest{Arguments: []string{"truncate", "me"}}))

			truncated := bytes.NewBuffer(full.Bytes()[:full.Len()-3])
			reader, err := NewReader(p, truncated)
			require.NoError(t, err)

			_, err = reader.ReadRequest()
			require.Error(t, err)
			assert.NotEqual(t, io.EOF, err)
			assert.True(t, IsFramingError(err), "expected framing error, got %v", err)
		})
	}
}

// TEST005: An announced length above MaxFrame is rejected before allocation
func TestFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	var lengthBuf [4]byte
	binary.BigEndian.PutUint32(lengthBuf[:], 1024)
	buf.Write(lengthBuf[:])

	reader, err := NewReader(ProtocolCBOR, &buf)
	require.NoError(t, err)
	reader.SetLimits(Limits{MaxFrame: 512})

	_, err = reader.ReadRequest()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFrameTooLarge))

	var tooLarge *FrameTooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, uint64(1024), tooLarge.Size)
	assert.Equal(t, 512, tooLarge.Limit)
}

// TEST006: Garbage bytes inside a well-framed proto record are rejected
func TestProtoCorruptBody(t *testing.T) {
	var buf bytes.Buffer
	body := []byte{0x0a, 0x05, 'a'} // field 1 claims 5 bytes, only 1 present
	buf.Write(protowire.AppendVarint(nil, uint64(len(body))))
	buf.Write(body)

	reader, err := NewReader(ProtocolProto, &buf)
	require.NoError(t, err)
	_, err = reader.ReadRequest()
	require.Error(t, err)
	assert.True(t, IsFramingError(err))
}

// TEST007: Unknown proto fields are skipped
func TestProtoUnknownFields(t *testing.T) {
	var body []byte
	body = protowire.AppendTag(body, 1, protowire.BytesType)
	body = protowire.AppendString(body, "kept")
	body = protowire.AppendTag(body, 99, protowire.Fixed64Type)
	body = protowire.AppendFixed64(body, 12345)
	body = protowire.AppendTag(body, 100, protowire.BytesType)
	body = protowire.AppendString(body, "ignored")

	var buf bytes.Buffer
	buf.Write(protowire.AppendVarint(nil, uint64(len(body))))
	buf.Write(body)

	reader, err := NewReader(ProtocolProto, &buf)
	require.NoError(t, err)
	req, err := reader.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, req.Arguments)
}

// TEST008: A zero-length proto record is a valid empty request
func TestProtoEmptyRecord(t *testing.T) {
	reader, err := NewReader(ProtocolProto, bytes.NewReader([]byte{0x00}))
	require.NoError(t, err)
	req, err := reader.ReadRequest()
	require.NoError(t, err)
	assert.Empty(t, req.Arguments)
}

// TEST009: Proto encoding matches the orchestrator's wire layout byte for byte
func TestProtoWireLayout(t *testing.T) {
	var buf bytes.Buffer
	writer, err := NewWriter(ProtocolProto, &buf)
	require.NoError(t, err)
	require.NoError(t, writer.WriteResponse(&WorkResponse{ExitCode: 1, Output: "hi"}))

	// len=6, field1 varint 1, field2 bytes "hi"
	assert.Equal(t, []byte{0x06, 0x08, 0x01, 0x12, 0x02, 'h', 'i'}, buf.Bytes())
}

// TEST010: JSON requests violating the schema are framing errors
func TestJSONSchemaViolation(t *testing.T) {
	reader, err := NewReader(ProtocolJSON, bytes.NewBufferString(`{"arguments": [1, 2]}`))
	require.NoError(t, err)

	_, err = reader.ReadRequest()
	require.Error(t, err)
	var schemaErr *SchemaValidationError
	require.True(t, errors.As(err, &schemaErr), "expected schema error, got %v", err)
	assert.NotEmpty(t, schemaErr.Details)
}

// TEST011: JSON requests with unknown keys are accepted
func TestJSONUnknownKeys(t *testing.T) {
	input := `{"arguments": ["x"], "requestId": 3, "somethingNew": {"a": 1}}` + "\n"
	reader, err := NewReader(ProtocolJSON, bytes.NewBufferString(input))
	require.NoError(t, err)

	req, err := reader.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, req.Arguments)
	assert.Equal(t, int32(3), req.RequestID)

	_, err = reader.ReadRequest()
	assert.Equal(t, io.EOF, err)
}

// TEST012: JSON responses use proto3 JSON field names
func TestJSONResponseFieldNames(t *testing.T) {
	var buf bytes.Buffer
	writer, err := NewWriter(ProtocolJSON, &buf)
	require.NoError(t, err)
	require.NoError(t, writer.WriteResponse(&WorkResponse{ExitCode: 2, Output: "o", RequestID: 5}))
	assert.JSONEq(t, `{"exitCode":2,"output":"o","requestId":5}`, buf.String())
}

// TEST013: Protocol names parse case-insensitively and default to proto
func TestParseProtocol(t *testing.T) {
	cases := map[string]Protocol{
		"":       ProtocolProto,
		"proto":  ProtocolProto,
		"JSON":   ProtocolJSON,
		" cbor ": ProtocolCBOR,
	}
	for name, want := range cases {
		got, err := ParseProtocol(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseProtocol("xml")
	assert.Error(t, err)
}

// TEST014: NewWorkResponse echoes the request id
func TestNewWorkResponse(t *testing.T) {
	resp := NewWorkResponse(&WorkRequest{RequestID: 9}, 3, "out")
	assert.Equal(t, int32(9), resp.RequestID)
	assert.Equal(t, int32(3), resp.ExitCode)
	assert.Equal(t, "out", resp.Output)

	resp = NewWorkResponse(nil, 0, "")
	assert.Equal(t, int32(0), resp.RequestID)
}

// countingReader counts the bytes pulled from the underlying stream
type countingReader struct {
	reader io.Reader
	n      int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	c.n += n
	return n, err
}

// TEST015: An oversized JSON record is rejected without reading all of it
func TestJSONFrameTooLargeStopsReading(t *testing.T) {
	huge := `{"arguments": ["` + string(bytes.Repeat([]byte("x"), 1<<20)) + `"]}`
	src := &countingReader{reader: bytes.NewBufferString(huge)}

	reader, err := NewReader(ProtocolJSON, src)
	require.NoError(t, err)
	reader.SetLimits(Limits{MaxFrame: 1024})

	_, err = reader.ReadRequest()
	require.Error(t, err)
	assert.True(t, IsFramingError(err))
	assert.True(t, errors.Is(err, ErrFrameTooLarge), "expected frame too large, got %v", err)
	assert.Less(t, src.n, len(huge)/4, "reader consumed %d of %d bytes", src.n, len(huge))
}

// TEST016: Bounded JSON input still decodes many records each within the limit
func TestJSONManySmallRecordsUnderLimit(t *testing.T) {
	var buf bytes.Buffer
	writer, err := NewWriter(ProtocolJSON, &buf)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		require.NoError(t, writer.WriteRequest(&WorkRequest{Arguments: []string{"some-argument-value"}, RequestID: int32(i)}))
	}

	reader, err := NewReader(ProtocolJSON, &buf)
	require.NoError(t, err)
	reader.SetLimits(Limits{MaxFrame: 128})
	for i := 0; i < 200; i++ {
		req, err := reader.ReadRequest()
		require.NoError(t, err, "request %d", i)
		assert.Equal(t, int32(i), req.RequestID)
	}
	_, err = reader.ReadRequest()
	assert.Equal(t, io.EOF, err)
}
