// Package fetch runs git fetch subprocesses under a process-tree watchdog.
//
// The Supervisor polls the fetch process and its descendants. It aborts the tree when an
// overall deadline passes, when no process in the tree has been runnable for the idle timeout,
// or when the caller's context is cancelled. Results are reported as Outcome flags rather than errors.
package fetch
