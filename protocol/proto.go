package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the orchestrator's worker_protocol.proto
const (
	reqArguments  protowire.Number = 1
	reqInputs     protowire.Number = 2
	reqRequestID  protowire.Number = 3
	reqCancel     protowire.Number = 4
	reqVerbosity  protowire.Number = 5
	reqSandboxDir protowire.Number = 6

	inputPath   protowire.Number = 1
	inputDigest protowire.Number = 2

	respExitCode     protowire.Number = 1
	respOutput       protowire.Number = 2
	respRequestID    protowire.Number = 3
	respWasCancelled protowire.Number = 4
)

// protoReader reads varint-delimited protobuf records
type protoReader struct {
	reader *bufio.Reader
	limits Limits
}

func newProtoReader(r io.Reader) *protoReader {
	return &protoReader{
		reader: bufio.NewReader(r),
		limits: DefaultLimits(),
	}
}

func (pr *protoReader) SetLimits(limits Limits) {
	pr.limits = limits
}

// readRecord reads one length-delimited record body
func (pr *protoReader) readRecord() ([]byte, error) {
	length, err := binary.ReadUvarint(pr.reader)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, framingError(ProtocolProto, fmt.Errorf("failed to read length prefix: %w", err))
	}

	if err := pr.limits.checkFrameSize(length); err != nil {
		return nil, framingError(ProtocolProto, err)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(pr.reader, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, framingError(ProtocolProto, fmt.Errorf("truncated record of %d bytes: %w", length, err))
	}
	return buf, nil
}

func (pr *protoReader) ReadRequest() (*WorkRequest, error) {
	buf, err := pr.readRecord()
	if err != nil {
		return nil, err
	}
	req, err := unmarshalProtoRequest(buf)
	if err != nil {
		return nil, framingError(ProtocolProto, err)
	}
	return req, nil
}

func (pr *protoReader) ReadResponse() (*WorkResponse, error) {
	buf, err := pr.readRecord()
	if err != nil {
		return nil, err
	}
	resp, err := unmarshalProtoResponse(buf)
	if err != nil {
		return nil, framingError(ProtocolProto, err)
	}
	return resp, nil
}

// protoWriter writes varint-delimited protobuf records
type protoWriter struct {
	writer io.Writer
}

func newProtoWriter(w io.Writer) *protoWriter {
	return &protoWriter{writer: w}
}

func (pw *protoWriter) writeRecord(body []byte) error {
	if len(body) > MaxFrameHardLimit {
		return &FrameTooLargeError{Size: uint64(len(body)), Limit: MaxFrameHardLimit}
	}
	// Length prefix and body go out in a single write
	record := make([]byte, 0, protowire.SizeVarint(uint64(len(body)))+len(body))
	record = protowire.AppendVarint(record, uint64(len(body)))
	record = append(record, body...)
	_, err := pw.writer.Write(record)
	return err
}

func (pw *protoWriter) WriteRequest(req *WorkRequest) error {
	return pw.writeRecord(marshalProtoRequest(req))
}

func (pw *protoWriter) WriteResponse(resp *WorkResponse) error {
	return pw.writeRecord(marshalProtoResponse(resp))
}

// Proto3 semantics: zero values are omitted on the wire

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func marshalProtoRequest(req *WorkRequest) []byte {
	var b []byte
	for _, arg := range req.Arguments {
		// Repeated strings keep empty elements
		b = protowire.AppendTag(b, reqArguments, protowire.BytesType)
		b = protowire.AppendString(b, arg)
	}
	for _, input := range req.Inputs {
		var ib []byte
		ib = appendString(ib, inputPath, input.Path)
		if len(input.Digest) > 0 {
			ib = protowire.AppendTag(ib, inputDigest, protowire.BytesType)
			ib = protowire.AppendBytes(ib, input.Digest)
		}
		b = protowire.AppendTag(b, reqInputs, protowire.BytesType)
		b = protowire.AppendBytes(b, ib)
	}
	b = appendInt32(b, reqRequestID, req.RequestID)
	b = appendBool(b, reqCancel, req.Cancel)
	b = appendInt32(b, reqVerbosity, req.Verbosity)
	b = appendString(b, reqSandboxDir, req.SandboxDir)
	return b
}

func marshalProtoResponse(resp *WorkResponse) []byte {
	var b []byte
	b = appendInt32(b, respExitCode, resp.ExitCode)
	b = appendString(b, respOutput, resp.Output)
	b = appendInt32(b, respRequestID, resp.RequestID)
	b = appendBool(b, respWasCancelled, resp.WasCancelled)
	return b
}

// field is one decoded tag/value pair. Exactly one of varint or bytes is set
// depending on typ.
type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

// walkFields decodes every field of a message body and calls fn for it.
// Fields of other wire types are consumed and passed with no value.
func walkFields(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("invalid value for field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

var errBadInput = errors.New("malformed inputs entry")

func unmarshalProtoRequest(b []byte) (*WorkRequest, error) {
	req := &WorkRequest{}
	err := walkFields(b, func(f field) error {
		switch {
		case f.num == reqArguments && f.typ == protowire.BytesType:
			req.Arguments = append(req.Arguments, string(f.bytes))
		case f.num == reqInputs && f.typ == protowire.BytesType:
			input, err := unmarshalProtoInput(f.bytes)
			if err != nil {
				return fmt.Errorf("%w: %v", errBadInput, err)
			}
			req.Inputs = append(req.Inputs, input)
		case f.num == reqRequestID && f.typ == protowire.VarintType:
			req.RequestID = int32(f.varint)
		case f.num == reqCancel && f.typ == protowire.VarintType:
			req.Cancel = protowire.DecodeBool(f.varint)
		case f.num == reqVerbosity && f.typ == protowire.VarintType:
			req.Verbosity = int32(f.varint)
		case f.num == reqSandboxDir && f.typ == protowire.BytesType:
			req.SandboxDir = string(f.bytes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func unmarshalProtoInput(b []byte) (Input, error) {
	var input Input
	err := walkFields(b, func(f field) error {
		switch {
		case f.num == inputPath && f.typ == protowire.BytesType:
			input.Path = string(f.bytes)
		case f.num == inputDigest && f.typ == protowire.BytesType:
			input.Digest = append([]byte(nil), f.bytes...)
		}
		return nil
	})
	return input, err
}

func unmarshalProtoResponse(b []byte) (*WorkResponse, error) {
	resp := &WorkResponse{}
	err := walkFields(b, func(f field) error {
		switch {
		case f.num == respExitCode && f.typ == protowire.VarintType:
			resp.ExitCode = int32(f.varint)
		case f.num == respOutput && f.typ == protowire.BytesType:
			resp.Output = string(f.bytes)
		case f.num == respRequestID && f.typ == protowire.VarintType:
			resp.RequestID = int32(f.varint)
		case f.num == respWasCancelled && f.typ == protowire.VarintType:
			resp.WasCancelled = protowire.DecodeBool(f.varint)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
