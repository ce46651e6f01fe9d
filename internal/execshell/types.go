package execshell

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	commandGitNameConstant                   = "git"
	loggerNotConfiguredMessageConstant       = "execshell: logger not configured"
	launcherNotConfiguredMessageConstant     = "execshell: process launcher not configured"
	commandExecutionErrorTemplateConstant    = "%s: %s"
	commandFailedErrorTemplateConstant       = "%s exited with code %d"
	commandFailedStandardErrorSuffixConstant = ": %s"
)

// CommandName identifies an executable invoked by the shell executor.
type CommandName string

// CommandGit names the git executable.
const CommandGit CommandName = CommandName(commandGitNameConstant)

var (
	// ErrLoggerNotConfigured indicates a shell executor was constructed without a logger.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrProcessLauncherNotConfigured indicates a shell executor was constructed without a launcher.
	ErrProcessLauncherNotConfigured = errors.New(launcherNotConfiguredMessageConstant)
)

// CommandDetails describes arguments and environment of a command invocation.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
}

// ShellCommand pairs an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures how a process finished.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// RunningProcess is a launched process that may still be alive.
type RunningProcess interface {
	// PID returns the operating system identifier of the root process.
	PID() int
	// Done is closed once the root process has been reaped.
	Done() <-chan struct{}
	// Result reports the exit details; it is meaningful only after Done is closed.
	Result() (ExecutionResult, error)
	// KillGroup forcibly terminates the process group led by the root process.
	KillGroup() error
}

// ProcessLauncher starts processes without waiting for them.
type ProcessLauncher interface {
	Launch(command ShellCommand) (RunningProcess, error)
}

// CommandExecutionError reports a failure to start or reap a command.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (executionError CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, describeCommand(executionError.Command), executionError.Cause)
}

// Unwrap exposes the underlying cause.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// CommandFailedError reports a command that exited with a non-zero code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failed command.
func (failedError CommandFailedError) Error() string {
	message := fmt.Sprintf(commandFailedErrorTemplateConstant, describeCommand(failedError.Command), failedError.Result.ExitCode)
	trimmedStandardError := strings.TrimSpace(failedError.Result.StandardError)
	if len(trimmedStandardError) > 0 {
		message += fmt.Sprintf(commandFailedStandardErrorSuffixConstant, trimmedStandardError)
	}
	return message
}

func describeCommand(command ShellCommand) string {
	if len(command.Details.Arguments) == 0 {
		return string(command.Name)
	}
	return string(command.Name) + " " + strings.Join(command.Details.Arguments, " ")
}
