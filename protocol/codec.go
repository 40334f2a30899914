package protocol

import (
	"fmt"
	"io"
	"strings"
)

// Protocol selects the wire encoding of records
type Protocol string

const (
	// ProtocolProto is protobuf binary, each record prefixed with a varint length
	ProtocolProto Protocol = "proto"
	// ProtocolJSON is a stream of JSON objects using proto3 JSON field names
	ProtocolJSON Protocol = "json"
	// ProtocolCBOR is CBOR maps, each prefixed with a 4-byte big-endian length
	ProtocolCBOR Protocol = "cbor"
)

// ParseProtocol parses a protocol name. The empty string selects ProtocolProto.
func ParseProtocol(name string) (Protocol, error) {
	switch Protocol(strings.ToLower(strings.TrimSpace(name))) {
	case "", ProtocolProto:
		return ProtocolProto, nil
	case ProtocolJSON:
		return ProtocolJSON, nil
	case ProtocolCBOR:
		return ProtocolCBOR, nil
	}
	return "", fmt.Errorf("unknown worker protocol %q (expected proto, json or cbor)", name)
}

// Reader reads records from a stream. Both read methods return io.EOF when
// the stream closes on a record boundary and a *FramingError otherwise.
type Reader interface {
	ReadRequest() (*WorkRequest, error)
	ReadResponse() (*WorkResponse, error)
	SetLimits(limits Limits)
}

// Writer writes records to a stream, one complete record per call
type Writer interface {
	WriteRequest(req *WorkRequest) error
	WriteResponse(resp *WorkResponse) error
}

// NewReader creates a Reader for protocol p
func NewReader(p Protocol, r io.Reader) (Reader, error) {
	switch p {
	case ProtocolProto, "":
		return newProtoReader(r), nil
	case ProtocolJSON:
		jr, err := newJSONReader(r)
		if err != nil {
			return nil, err
		}
		return jr, nil
	case ProtocolCBOR:
		return newCBORReader(r), nil
	}
	return nil, fmt.Errorf("unknown worker protocol %q", string(p))
}

// NewWriter creates a Writer for protocol p
func NewWriter(p Protocol, w io.Writer) (Writer, error) {
	switch p {
	case ProtocolProto, "":
		return newProtoWriter(w), nil
	case ProtocolJSON:
		return newJSONWriter(w), nil
	case ProtocolCBOR:
		return newCBORWriter(w), nil
	}
	return nil, fmt.Errorf("unknown worker protocol %q", string(p))
}
