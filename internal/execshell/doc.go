// Package execshell launches external tools as supervised processes.
//
// OSProcessLauncher starts each command in its own process group so the whole
// tree can be killed at once, and ShellExecutor layers lifecycle logging on top
// of any ProcessLauncher.
package execshell
