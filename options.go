package worker

import (
	"io"
	"log"
	"os"

	"github.com/machinefabric/worker-go/protocol"
)

// ProtocolEnv names the environment variable selecting the wire protocol
// (proto, json or cbor) when WithProtocol is not given
const ProtocolEnv = "WORKER_PROTOCOL"

type config struct {
	protocol    protocol.Protocol
	protocolSet bool
	limits      protocol.Limits
	logger      *log.Logger
	stdin       io.Reader
	stdout      io.Writer
	stderr      io.Writer
}

// Option configures Run, Main and NewWorker
type Option func(*config)

// WithProtocol selects the wire protocol, overriding WORKER_PROTOCOL
func WithProtocol(p protocol.Protocol) Option {
	return func(c *config) {
		c.protocol = p
		c.protocolSet = true
	}
}

// WithLimits sets the inbound record size limits
func WithLimits(limits protocol.Limits) Option {
	return func(c *config) {
		c.limits = limits
	}
}

// WithLogger sets the logger for worker diagnostics. It must not write to the
// protocol stream.
func WithLogger(logger *log.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithStdin replaces the request stream (default os.Stdin)
func WithStdin(r io.Reader) Option {
	return func(c *config) {
		c.stdin = r
	}
}

// WithStdout replaces the response stream, and the standalone stdout (default os.Stdout)
func WithStdout(w io.Writer) Option {
	return func(c *config) {
		c.stdout = w
	}
}

// WithStderr replaces the real error channel (default os.Stderr)
func WithStderr(w io.Writer) Option {
	return func(c *config) {
		c.stderr = w
	}
}

func newConfig(opts []Option) *config {
	c := &config{
		protocol: protocol.ProtocolProto,
		limits:   protocol.DefaultLimits(),
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.New(c.stderr, "[Worker] ", log.LstdFlags)
	}
	return c
}
