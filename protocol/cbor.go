package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// cborReader reads length-prefixed CBOR records
type cborReader struct {
	reader io.Reader
	limits Limits
}

func newCBORReader(r io.Reader) *cborReader {
	return &cborReader{
		reader: r,
		limits: DefaultLimits(),
	}
}

func (cr *cborReader) SetLimits(limits Limits) {
	cr.limits = limits
}

func (cr *cborReader) readRecord(v interface{}) error {
	// Read 4-byte length prefix (big-endian)
	var lengthBuf [4]byte
	if _, err := io.ReadFull(cr.reader, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return framingError(ProtocolCBOR, fmt.Errorf("failed to read length prefix: %w", err))
	}

	length := binary.BigEndian.Uint32(lengthBuf[:])
	if err := cr.limits.checkFrameSize(uint64(length)); err != nil {
		return framingError(ProtocolCBOR, err)
	}

	// Read CBOR payload
	frameBuf := make([]byte, length)
	if _, err := io.ReadFull(cr.reader, frameBuf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return framingError(ProtocolCBOR, fmt.Errorf("truncated record of %d bytes: %w", length, err))
	}

	if err := cbor.Unmarshal(frameBuf, v); err != nil {
		return framingError(ProtocolCBOR, err)
	}
	return nil
}

func (cr *cborReader) ReadRequest() (*WorkRequest, error) {
	req := &WorkRequest{}
	if err := cr.readRecord(req); err != nil {
		return nil, err
	}
	return req, nil
}

func (cr *cborReader) ReadResponse() (*WorkResponse, error) {
	resp := &WorkResponse{}
	if err := cr.readRecord(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// cborWriter writes length-prefixed CBOR records
type cborWriter struct {
	writer io.Writer
}

func newCBORWriter(w io.Writer) *cborWriter {
	return &cborWriter{writer: w}
}

func (cw *cborWriter) writeRecord(v interface{}) error {
	payload, err := cbor.Marshal(v)
	if err != nil {
		return err
	}

	// Hard limit check
	if len(payload) > MaxFrameHardLimit {
		return &FrameTooLargeError{Size: uint64(len(payload)), Limit: MaxFrameHardLimit}
	}

	record := make([]byte, 4, 4+len(payload))
	binary.BigEndian.PutUint32(record, uint32(len(payload)))
	record = append(record, payload...)
	_, err = cw.writer.Write(record)
	return err
}

func (cw *cborWriter) WriteRequest(req *WorkRequest) error {
	return cw.writeRecord(req)
}

func (cw *cborWriter) WriteResponse(resp *WorkResponse) error {
	return cw.writeRecord(resp)
}
