package worker

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
)

// osExit is the real process termination primitive
var osExit = os.Exit

// exitGuard is the process-wide termination guard. Once installed it stays
// installed for the rest of the process lifetime.
type exitGuard struct {
	installed atomic.Bool
}

func (g *exitGuard) install() {
	g.installed.Store(true)
}

var guard exitGuard

// exitTrapped is the control signal raised by Exit while the guard is installed
type exitTrapped struct {
	code int
}

func (e *exitTrapped) String() string {
	return fmt.Sprintf("exit trapped with status %d", e.code)
}

// Exit stops the tool with the given status code. Standalone it terminates the
// process. In worker mode it unwinds the current invocation instead, and the
// code becomes the status of the current request only.
//
// Exit must be called from the goroutine running Tool.Work.
func Exit(code int) {
	if guard.installed.Load() {
		panic(&exitTrapped{code: code})
	}
	osExit(code)
}

// ExitGuardInstalled reports whether Exit is currently trapped
func ExitGuardInstalled() bool {
	return guard.installed.Load()
}

// ExitError is an error carrying an explicit status code
type ExitError struct {
	Code int
	Err  error
}

// NewExitError creates an ExitError with a formatted message
func NewExitError(code int, format string, args ...interface{}) *ExitError {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

// ExitCode returns the status code
func (e *ExitError) ExitCode() int {
	return e.Code
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

type exitCoder interface {
	ExitCode() int
}

// exitCodeOf extracts an explicit status code from err, if it carries one
func exitCodeOf(err error) (int, bool) {
	var ec exitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode(), true
	}
	return 0, false
}
