package worker

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/machinefabric/worker-go/protocol"
)

// resetGuard uninstalls the exit guard when the test ends so standalone tests
// see real termination semantics
func resetGuard(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { guard.installed.Store(false) })
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// scriptTool interprets its first argument as a command so tests can drive
// every outcome through one tool
var scriptTool = ToolFunc(func(args []string, stdio Stdio) error {
	if len(args) == 0 {
		return nil
	}
	switch args[0] {
	case "echo":
		fmt.Fprint(stdio.Stdout, strings.Join(args[1:], " "))
	case "stderr":
		fmt.Fprint(stdio.Stderr, strings.Join(args[1:], " "))
	case "exit":
		code, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		fmt.Fprint(stdio.Stdout, "before exit;")
		Exit(code)
		fmt.Fprint(stdio.Stdout, "after exit")
	case "panic":
		panic(strings.Join(args[1:], " "))
	case "fail":
		return errors.New(strings.Join(args[1:], " "))
	case "status":
		code, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		return NewExitError(code, "%s", strings.Join(args[2:], " "))
	case "log":
		log.Print(strings.Join(args[1:], " "))
	}
	return nil
})

// encodeRequests writes requests in protocol p
func encodeRequests(t *testing.T, p protocol.Protocol, requests ...*protocol.WorkRequest) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	writer, err := protocol.NewWriter(p, &buf)
	require.NoError(t, err)
	for _, req := range requests {
		require.NoError(t, writer.WriteRequest(req))
	}
	return &buf
}

// decodeResponses reads every response in r until EOF
func decodeResponses(t *testing.T, p protocol.Protocol, r io.Reader) []*protocol.WorkResponse {
	t.Helper()
	reader, err := protocol.NewReader(p, r)
	require.NoError(t, err)
	var responses []*protocol.WorkResponse
	for {
		resp, err := reader.ReadResponse()
		if err == io.EOF {
			return responses
		}
		require.NoError(t, err)
		responses = append(responses, resp)
	}
}

func request(args ...string) *protocol.WorkRequest {
	return &protocol.WorkRequest{Arguments: args}
}
