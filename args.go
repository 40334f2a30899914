package worker

import (
	"bufio"
	"os"
	"strings"

	"github.com/machinefabric/worker-go/protocol"
)

// PersistentWorkerFlag as the first argument selects worker mode
const PersistentWorkerFlag = "--persistent_worker"

// IsPersistentWorker reports whether args select worker mode. Arguments after
// the flag are ignored.
func IsPersistentWorker(args []string) bool {
	return len(args) > 0 && args[0] == PersistentWorkerFlag
}

// ExpandArgsFile replaces a single `@path` argument with the lines of the file
// at path. Any other argument list is returned unchanged.
func ExpandArgsFile(args []string) ([]string, error) {
	if len(args) != 1 || !strings.HasPrefix(args[0], "@") {
		return args, nil
	}
	return ReadArgsFile(args[0][1:])
}

// ReadArgsFile reads one argument per line. A trailing newline does not add
// an empty argument and CRLF line endings are accepted.
func ReadArgsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	args := []string{}
	scanner := bufio.NewScanner(f)
	// Classpath arguments routinely exceed bufio's 64 KiB default line limit
	scanner.Buffer(make([]byte, 0, 64*1024), protocol.MaxFrameHardLimit)
	for scanner.Scan() {
		args = append(args, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return args, nil
}
