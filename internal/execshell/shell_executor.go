package execshell

import (
	"sync"

	"go.uber.org/zap"
)

const (
	commandNameFieldConstant      = "command"
	workingDirectoryFieldConstant = "working_directory"
	exitCodeFieldConstant         = "exit_code"
)

// ProcessObserver receives lifecycle notifications for launched commands.
type ProcessObserver interface {
	ProcessLaunched(command ShellCommand)
	// ProcessExited fires once the command has been reaped, whatever its exit code.
	ProcessExited(command ShellCommand, result ExecutionResult)
	// ProcessFailed reports launch failures and results that could not be collected.
	ProcessFailed(command ShellCommand, failure error)
}

type discardingProcessObserver struct{}

func (discardingProcessObserver) ProcessLaunched(ShellCommand)                {}
func (discardingProcessObserver) ProcessExited(ShellCommand, ExecutionResult) {}
func (discardingProcessObserver) ProcessFailed(ShellCommand, error)           {}

// ShellExecutor launches commands and reports their lifecycle to an observer.
type ShellExecutor struct {
	launcher ProcessLauncher
	observer ProcessObserver
}

// NewShellExecutor constructs a ShellExecutor that logs command lifecycle events through logger.
func NewShellExecutor(logger *zap.Logger, launcher ProcessLauncher) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if launcher == nil {
		return nil, ErrProcessLauncherNotConfigured
	}
	return &ShellExecutor{
		launcher: launcher,
		observer: newLoggingProcessObserver(logger),
	}, nil
}

// NewShellExecutorWithObserver constructs a ShellExecutor reporting to a custom observer.
func NewShellExecutorWithObserver(launcher ProcessLauncher, observer ProcessObserver) (*ShellExecutor, error) {
	if launcher == nil {
		return nil, ErrProcessLauncherNotConfigured
	}
	if observer == nil {
		observer = discardingProcessObserver{}
	}
	return &ShellExecutor{launcher: launcher, observer: observer}, nil
}

// Launch starts the command. The completion event fires the first time Result is read.
func (executor *ShellExecutor) Launch(command ShellCommand) (RunningProcess, error) {
	executor.observer.ProcessLaunched(command)

	launched, launchError := executor.launcher.Launch(command)
	if launchError != nil {
		executionError := CommandExecutionError{Command: command, Cause: launchError}
		executor.observer.ProcessFailed(command, executionError)
		return nil, executionError
	}

	return &observedRunningProcess{RunningProcess: launched, command: command, observer: executor.observer}, nil
}

// LaunchGit starts git with the provided details.
func (executor *ShellExecutor) LaunchGit(details CommandDetails) (RunningProcess, error) {
	return executor.Launch(ShellCommand{Name: CommandGit, Details: details})
}

type observedRunningProcess struct {
	RunningProcess
	command      ShellCommand
	observer     ProcessObserver
	reportedOnce sync.Once
}

func (process *observedRunningProcess) Result() (ExecutionResult, error) {
	result, resultError := process.RunningProcess.Result()
	process.reportedOnce.Do(func() {
		if resultError != nil {
			process.observer.ProcessFailed(process.command, resultError)
			return
		}
		process.observer.ProcessExited(process.command, result)
	})
	return result, resultError
}

type loggingProcessObserver struct {
	logger    *zap.Logger
	formatter CommandMessageFormatter
}

func newLoggingProcessObserver(logger *zap.Logger) loggingProcessObserver {
	return loggingProcessObserver{logger: logger}
}

func (observer loggingProcessObserver) ProcessLaunched(command ShellCommand) {
	observer.logger.Debug(observer.formatter.BuildStartedMessage(command), observer.commandFields(command)...)
}

func (observer loggingProcessObserver) ProcessExited(command ShellCommand, result ExecutionResult) {
	fields := append(observer.commandFields(command), zap.Int(exitCodeFieldConstant, result.ExitCode))
	if result.ExitCode == 0 {
		observer.logger.Debug(observer.formatter.BuildSuccessMessage(command), fields...)
		return
	}
	observer.logger.Warn(observer.formatter.BuildFailureMessage(command, result), fields...)
}

func (observer loggingProcessObserver) ProcessFailed(command ShellCommand, failure error) {
	observer.logger.Warn(observer.formatter.BuildExecutionFailureMessage(command, failure), append(observer.commandFields(command), zap.Error(failure))...)
}

func (observer loggingProcessObserver) commandFields(command ShellCommand) []zap.Field {
	return []zap.Field{
		zap.String(commandNameFieldConstant, string(command.Name)),
		zap.String(workingDirectoryFieldConstant, command.Details.WorkingDirectory),
	}
}
