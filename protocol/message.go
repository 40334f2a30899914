// Package protocol implements the persistent worker wire protocol: the
// WorkRequest/WorkResponse data model and the length-delimited codecs used
// to exchange them over a worker's stdin and stdout.
package protocol

// Input is a single input file of a work request with its content digest
type Input struct {
	Path   string `json:"path,omitempty" cbor:"path,omitempty"`
	Digest []byte `json:"digest,omitempty" cbor:"digest,omitempty"`
}

// WorkRequest is one invocation of the wrapped tool as sent by the orchestrator.
// Only Arguments drives the worker; the remaining fields are passed through.
type WorkRequest struct {
	Arguments  []string `json:"arguments,omitempty" cbor:"arguments,omitempty"`
	Inputs     []Input  `json:"inputs,omitempty" cbor:"inputs,omitempty"`
	RequestID  int32    `json:"requestId,omitempty" cbor:"request_id,omitempty"`
	Cancel     bool     `json:"cancel,omitempty" cbor:"cancel,omitempty"`
	Verbosity  int32    `json:"verbosity,omitempty" cbor:"verbosity,omitempty"`
	SandboxDir string   `json:"sandboxDir,omitempty" cbor:"sandbox_dir,omitempty"`
}

// WorkResponse carries the captured output and status code of one invocation
type WorkResponse struct {
	ExitCode     int32  `json:"exitCode" cbor:"exit_code"`
	Output       string `json:"output" cbor:"output"`
	RequestID    int32  `json:"requestId,omitempty" cbor:"request_id,omitempty"`
	WasCancelled bool   `json:"wasCancelled,omitempty" cbor:"was_cancelled,omitempty"`
}

// NewWorkResponse builds the response for req. The request id is echoed so
// the orchestrator can correlate it.
func NewWorkResponse(req *WorkRequest, exitCode int, output string) *WorkResponse {
	resp := &WorkResponse{
		ExitCode: int32(exitCode),
		Output:   output,
	}
	if req != nil {
		resp.RequestID = req.RequestID
	}
	return resp
}
