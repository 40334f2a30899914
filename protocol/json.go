package protocol

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// workRequestSchema describes an inbound JSON work request. Unknown keys are
// allowed so newer orchestrators can add fields.
const workRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "arguments": {"type": "array", "items": {"type": "string"}},
    "inputs": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "path": {"type": "string"},
          "digest": {"type": "string"}
        }
      }
    },
    "requestId": {"type": "integer"},
    "cancel": {"type": "boolean"},
    "verbosity": {"type": "integer"},
    "sandboxDir": {"type": "string"}
  }
}`

var (
	requestSchemaOnce sync.Once
	requestSchema     *gojsonschema.Schema
	requestSchemaErr  error
)

func loadRequestSchema() (*gojsonschema.Schema, error) {
	requestSchemaOnce.Do(func() {
		requestSchema, requestSchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(workRequestSchema))
	})
	return requestSchema, requestSchemaErr
}

// SchemaValidationError lists the schema violations of a JSON record
type SchemaValidationError struct {
	Details []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Details, "; "))
}

// jsonReadSlack covers whitespace between records and the decoder's read-ahead
const jsonReadSlack = 4096

// boundedStream stops feeding the decoder once it is more than MaxFrame bytes
// past the end of the last decoded record, so an oversized object is rejected
// without buffering all of it
type boundedStream struct {
	reader  io.Reader
	decoder *json.Decoder
	limits  *Limits
	read    int64
}

func (bs *boundedStream) Read(p []byte) (int, error) {
	maxFrame := bs.limits.MaxFrame
	if maxFrame <= 0 || maxFrame > MaxFrameHardLimit {
		maxFrame = MaxFrameHardLimit
	}
	allowed := bs.decoder.InputOffset() + int64(maxFrame) + jsonReadSlack - bs.read
	if allowed <= 0 {
		return 0, &FrameTooLargeError{Size: uint64(bs.read - bs.decoder.InputOffset()), Limit: maxFrame}
	}
	if int64(len(p)) > allowed {
		p = p[:allowed]
	}
	n, err := bs.reader.Read(p)
	bs.read += int64(n)
	return n, err
}

// jsonReader reads a stream of JSON objects
type jsonReader struct {
	decoder *json.Decoder
	schema  *gojsonschema.Schema
	limits  Limits
}

func newJSONReader(r io.Reader) (*jsonReader, error) {
	schema, err := loadRequestSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile work request schema: %w", err)
	}
	jr := &jsonReader{
		schema: schema,
		limits: DefaultLimits(),
	}
	stream := &boundedStream{reader: r, limits: &jr.limits}
	jr.decoder = json.NewDecoder(stream)
	stream.decoder = jr.decoder
	return jr, nil
}

func (jr *jsonReader) SetLimits(limits Limits) {
	jr.limits = limits
}

func (jr *jsonReader) readRecord() (json.RawMessage, error) {
	var raw json.RawMessage
	if err := jr.decoder.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, framingError(ProtocolJSON, err)
	}
	if err := jr.limits.checkFrameSize(uint64(len(raw))); err != nil {
		return nil, framingError(ProtocolJSON, err)
	}
	return raw, nil
}

func (jr *jsonReader) ReadRequest() (*WorkRequest, error) {
	raw, err := jr.readRecord()
	if err != nil {
		return nil, err
	}

	result, err := jr.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, framingError(ProtocolJSON, err)
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, framingError(ProtocolJSON, &SchemaValidationError{Details: details})
	}

	req := &WorkRequest{}
	if err := json.Unmarshal(raw, req); err != nil {
		return nil, framingError(ProtocolJSON, err)
	}
	return req, nil
}

func (jr *jsonReader) ReadResponse() (*WorkResponse, error) {
	raw, err := jr.readRecord()
	if err != nil {
		return nil, err
	}
	resp := &WorkResponse{}
	if err := json.Unmarshal(raw, resp); err != nil {
		return nil, framingError(ProtocolJSON, err)
	}
	return resp, nil
}

// jsonWriter writes one JSON object per line
type jsonWriter struct {
	writer io.Writer
}

func newJSONWriter(w io.Writer) *jsonWriter {
	return &jsonWriter{writer: w}
}

func (jw *jsonWriter) writeRecord(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = jw.writer.Write(data)
	return err
}

func (jw *jsonWriter) WriteRequest(req *WorkRequest) error {
	return jw.writeRecord(req)
}

func (jw *jsonWriter) WriteResponse(resp *WorkResponse) error {
	return jw.writeRecord(resp)
}
