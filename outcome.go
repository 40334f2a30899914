package worker

import (
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
)

// OutcomeKind tags how an invocation ended
type OutcomeKind int

const (
	// Completed means Work returned
	Completed OutcomeKind = iota
	// Trapped means the tool called Exit while the guard was installed
	Trapped
	// Failed means Work returned a plain error or panicked
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Completed:
		return "completed"
	case Trapped:
		return "trapped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of calling the tool once
type Outcome struct {
	Kind    OutcomeKind
	Code    int
	Message string
	// Trace is the goroutine stack at the point of a panic; nil for returned errors
	Trace []byte
}

// StatusCode maps the outcome to a response status code
func (o Outcome) StatusCode() int {
	if o.Kind == Failed {
		return 1
	}
	return o.Code
}

// writeTrailer appends the diagnostic of a failed invocation to w
func (o Outcome) writeTrailer(w io.Writer) {
	if o.Kind != Failed {
		return
	}
	msg := o.Message
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	io.WriteString(w, msg)
	if len(o.Trace) > 0 {
		w.Write(o.Trace)
	}
}

// invoke calls the tool once and classifies how it ended
func invoke(tool Tool, args []string, stdio Stdio) (outcome Outcome) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if trapped, ok := r.(*exitTrapped); ok {
			outcome = Outcome{Kind: Trapped, Code: trapped.code}
			return
		}
		outcome = Outcome{
			Kind:    Failed,
			Message: fmt.Sprintf("panic: %v", r),
			Trace:   debug.Stack(),
		}
	}()

	err := tool.Work(args, stdio)
	if err == nil {
		return Outcome{Kind: Completed}
	}
	if code, ok := exitCodeOf(err); ok {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Err != nil && stdio.Stderr != nil {
				fmt.Fprintln(stdio.Stderr, exitErr.Err)
			}
		} else if code != 0 && stdio.Stderr != nil {
			// e.g. *exec.ExitError from a subprocess the tool ran
			fmt.Fprintln(stdio.Stderr, err)
		}
		return Outcome{Kind: Completed, Code: code, Message: err.Error()}
	}
	// %+v keeps the stack of errors that record one
	return Outcome{Kind: Failed, Message: fmt.Sprintf("%+v", err)}
}
