package worker

import (
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/machinefabric/worker-go/capture"
	"github.com/machinefabric/worker-go/protocol"
)

// Worker serves work requests for one tool, strictly one at a time
type Worker struct {
	tool      Tool
	protocol  protocol.Protocol
	limits    protocol.Limits
	logger    *log.Logger
	capture   *capture.Buffer
	sessionID string
}

// NewWorker creates a Worker for tool. Only WithProtocol, WithLimits and
// WithLogger apply; the streams are passed to Serve.
func NewWorker(tool Tool, opts ...Option) *Worker {
	return newWorker(tool, newConfig(opts))
}

func newWorker(tool Tool, cfg *config) *Worker {
	return &Worker{
		tool:      tool,
		protocol:  cfg.protocol,
		limits:    cfg.limits,
		logger:    cfg.logger,
		capture:   capture.New(),
		sessionID: uuid.New().String(),
	}
}

// SessionID identifies this worker in log lines
func (w *Worker) SessionID() string {
	return w.sessionID
}

// Capture returns the buffer the tool's output is captured into
func (w *Worker) Capture() *capture.Buffer {
	return w.capture
}

// Serve reads requests from in and writes one response per request to out
// until in is closed. It returns nil on clean closure and an error for a
// corrupt record or a failed write. Serve installs the exit guard for the
// rest of the process lifetime.
func (w *Worker) Serve(in io.Reader, out io.Writer) error {
	reader, err := protocol.NewReader(w.protocol, in)
	if err != nil {
		return err
	}
	reader.SetLimits(w.limits)
	writer, err := protocol.NewWriter(w.protocol, out)
	if err != nil {
		return err
	}

	guard.install()
	w.logger.Printf("session=%s started protocol=%s", w.sessionID, w.protocol)

	served := 0
	for {
		req, err := reader.ReadRequest()
		if err != nil {
			if err == io.EOF {
				w.logger.Printf("session=%s input closed after %d requests", w.sessionID, served)
				return nil
			}
			w.logger.Printf("session=%s failed to read request: %v", w.sessionID, err)
			return fmt.Errorf("failed to read work request: %w", err)
		}

		// Work is synchronous, so whatever a cancel refers to has been answered already
		if req.Cancel {
			w.logger.Printf("session=%s ignoring cancel for request_id=%d", w.sessionID, req.RequestID)
			continue
		}

		resp := w.handle(req)
		if err := writer.WriteResponse(resp); err != nil {
			w.logger.Printf("session=%s failed to write response: %v", w.sessionID, err)
			return fmt.Errorf("failed to write work response: %w", err)
		}
		w.capture.Reset()
		served++
	}
}

// handle runs the tool for one request and builds its response
func (w *Worker) handle(req *protocol.WorkRequest) *protocol.WorkResponse {
	args := req.Arguments
	if args == nil {
		args = []string{}
	}

	w.capture.Reset()
	start := time.Now()
	outcome := invoke(w.tool, args, Stdio{Stdout: w.capture, Stderr: w.capture})
	outcome.writeTrailer(w.capture)
	// output is a proto3 string; invalid UTF-8 would make the response unparseable
	output := strings.ToValidUTF8(w.capture.Drain(), "\uFFFD")
	resp := protocol.NewWorkResponse(req, outcome.StatusCode(), output)

	if req.Verbosity > 0 {
		w.logger.Printf("session=%s request_id=%d args=%d outcome=%s status=%d elapsed=%s",
			w.sessionID, req.RequestID, len(args), outcome.Kind, resp.ExitCode, time.Since(start))
	}
	return resp
}
