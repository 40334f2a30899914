package worker

import (
	"fmt"
	"log"
	"os"

	"github.com/machinefabric/worker-go/protocol"
)

// Main runs tool with the process arguments and terminates the process with
// the resulting status code
func Main(tool Tool, opts ...Option) {
	osExit(Run(os.Args[1:], tool, opts...))
}

// Run dispatches on args (without the program name) and returns the process
// status code. In worker mode it returns only once the request stream closes.
func Run(args []string, tool Tool, opts ...Option) int {
	cfg := newConfig(opts)
	if IsPersistentWorker(args) {
		return runWorker(tool, cfg)
	}
	return runStandalone(args, tool, cfg)
}

func runWorker(tool Tool, cfg *config) int {
	if !cfg.protocolSet {
		p, err := protocol.ParseProtocol(os.Getenv(ProtocolEnv))
		if err != nil {
			fmt.Fprintf(cfg.stderr, "Invalid %s: %v\n", ProtocolEnv, err)
			return 1
		}
		cfg.protocol = p
	}

	w := newWorker(tool, cfg)
	restore := redirectAmbientOutput(w, cfg)
	defer restore()

	if err := w.Serve(cfg.stdin, cfg.stdout); err != nil {
		return 1
	}
	return 0
}

// redirectAmbientOutput points the log package at the capture buffer and, when
// responses go to the real stdout, rebinds os.Stdout to os.Stderr so stray
// writes cannot interleave with response records. The returned func undoes it.
func redirectAmbientOutput(w *Worker, cfg *config) func() {
	prevLog := log.Writer()
	log.SetOutput(w.capture)

	realStdout := os.Stdout
	rebound := false
	if f, ok := cfg.stdout.(*os.File); ok && f == os.Stdout {
		os.Stdout = os.Stderr
		rebound = true
	}

	return func() {
		log.SetOutput(prevLog)
		if rebound {
			os.Stdout = realStdout
		}
	}
}

func runStandalone(args []string, tool Tool, cfg *config) int {
	resolved, err := ExpandArgsFile(args)
	if err != nil {
		fmt.Fprintf(cfg.stderr, "Error reading arguments file %s before delegating to worker implementation: %v\n", args[0], err)
		return 1
	}

	outcome := invoke(tool, resolved, Stdio{Stdout: cfg.stdout, Stderr: cfg.stderr})
	outcome.writeTrailer(cfg.stderr)
	return outcome.StatusCode()
}
