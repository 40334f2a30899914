// Package worker runs a batch-style command-line tool as a persistent worker
// under a build orchestrator.
//
// A tool's main function hands its entry point to Main:
//
//	func main() {
//		worker.Main(worker.ToolFunc(compile))
//	}
//
// Invoked as `tool --persistent_worker`, the process serves framed work
// requests on stdin and answers each on stdout with the output the tool
// produced and its status code, until the orchestrator closes stdin.
// Invoked any other way (`tool a b c` or `tool @argsfile`), the tool runs
// exactly once with no protocol involved.
package worker
