package worker

import "io"

// Stdio holds the output sinks a tool writes to. In worker mode both point at
// the per-request capture buffer; standalone they are the process's stdout and
// stderr.
type Stdio struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Tool is the wrapped command-line program. Work runs one invocation.
//
// A nil return is success. Returning an error that has an ExitCode() int
// method (such as *ExitError or *exec.ExitError) reports that code. Any
// other error or panic is an uncaught failure with status 1. Calling Exit
// stops the invocation with the given code.
type Tool interface {
	Work(args []string, stdio Stdio) error
}

// ToolFunc adapts a function to the Tool interface
type ToolFunc func(args []string, stdio Stdio) error

// Work calls f(args, stdio)
func (f ToolFunc) Work(args []string, stdio Stdio) error {
	return f(args, stdio)
}
