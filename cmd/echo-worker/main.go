// Command echo-worker is a minimal wrapped tool for trying the worker
// protocol under a build orchestrator. It writes its positional arguments,
// one per line, to -out (or stdout).
//
//	echo-worker --persistent_worker
//	echo-worker -out result.txt a b c
//	echo-worker @args.txt
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	worker "github.com/machinefabric/worker-go"
)

func echo(args []string, stdio worker.Stdio) error {
	flags := flag.NewFlagSet("echo-worker", flag.ContinueOnError)
	flags.SetOutput(stdio.Stderr)
	out := flags.String("out", "", "write arguments to this file instead of stdout")
	exitCode := flags.Int("exit", 0, "exit with this status after writing")
	fail := flags.String("fail", "", "fail with this message")
	if err := flags.Parse(args); err != nil {
		return &worker.ExitError{Code: 2}
	}

	if *fail != "" {
		return fmt.Errorf("echo-worker: %s", *fail)
	}

	text := strings.Join(flags.Args(), "\n")
	if *out != "" {
		if err := os.WriteFile(*out, []byte(text+"\n"), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(stdio.Stderr, "wrote %d arguments to %s\n", flags.NArg(), *out)
	} else {
		fmt.Fprintln(stdio.Stdout, text)
	}

	if *exitCode != 0 {
		worker.Exit(*exitCode)
	}
	return nil
}

func main() {
	worker.Main(worker.ToolFunc(echo))
}
