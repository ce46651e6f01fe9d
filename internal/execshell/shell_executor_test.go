package execshell_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/gitscan/internal/execshell"
)

const (
	testExecutionSuccessCaseNameConstant         = "success"
	testExecutionFailureCaseNameConstant         = "failure_exit_code"
	testExecutionLauncherErrorCaseNameConstant   = "launcher_error"
	testExecutionWaitErrorCaseNameConstant       = "wait_error"
	testLoggerInitializationCaseNameConstant     = "logger_validation"
	testLauncherInitializationCaseNameConstant   = "launcher_validation"
	testSuccessfulInitializationCaseNameConstant = "successful_initialization"
	testWorkingDirectoryConstant                 = "/workspace/repo"
	testRemoteNameConstant                       = "origin"
)

type finishedProcess struct {
	result    execshell.ExecutionResult
	waitError error
	done      chan struct{}
}

func newFinishedProcess(result execshell.ExecutionResult, waitError error) *finishedProcess {
	done := make(chan struct{})
	close(done)
	return &finishedProcess{result: result, waitError: waitError, done: done}
}

func (process *finishedProcess) PID() int              { return 42 }
func (process *finishedProcess) Done() <-chan struct{} { return process.done }
func (process *finishedProcess) Result() (execshell.ExecutionResult, error) {
	return process.result, process.waitError
}
func (process *finishedProcess) KillGroup() error { return nil }

type recordingProcessLauncher struct {
	process          execshell.RunningProcess
	launchError      error
	recordedCommands []execshell.ShellCommand
}

func (launcher *recordingProcessLauncher) Launch(command execshell.ShellCommand) (execshell.RunningProcess, error) {
	launcher.recordedCommands = append(launcher.recordedCommands, command)
	if launcher.launchError != nil {
		return nil, launcher.launchError
	}
	return launcher.process, nil
}

func TestShellExecutorInitializationValidation(testInstance *testing.T) {
	testCases := []struct {
		name          string
		logger        *zap.Logger
		launcher      execshell.ProcessLauncher
		expectError   error
		expectSuccess bool
	}{
		{
			name:        testLoggerInitializationCaseNameConstant,
			logger:      nil,
			launcher:    &recordingProcessLauncher{},
			expectError: execshell.ErrLoggerNotConfigured,
		},
		{
			name:        testLauncherInitializationCaseNameConstant,
			logger:      zap.NewNop(),
			launcher:    nil,
			expectError: execshell.ErrProcessLauncherNotConfigured,
		},
		{
			name:          testSuccessfulInitializationCaseNameConstant,
			logger:        zap.NewNop(),
			launcher:      &recordingProcessLauncher{},
			expectSuccess: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor, creationError := execshell.NewShellExecutor(testCase.logger, testCase.launcher)
			if testCase.expectSuccess {
				require.NoError(testInstance, creationError)
				require.NotNil(testInstance, executor)
			} else {
				require.Error(testInstance, creationError)
				require.ErrorIs(testInstance, creationError, testCase.expectError)
			}
		})
	}
}

func TestShellExecutorLaunchLogsLifecycle(testInstance *testing.T) {
	testCases := []struct {
		name             string
		process          execshell.RunningProcess
		launchError      error
		expectLaunchErr  bool
		expectedLogCount int
		expectedMessages []string
	}{
		{
			name:             testExecutionSuccessCaseNameConstant,
			process:          newFinishedProcess(execshell.ExecutionResult{ExitCode: 0}, nil),
			expectedLogCount: 2,
			expectedMessages: []string{"Fetching from origin in /workspace/repo", "Fetched from origin in /workspace/repo"},
		},
		{
			name:             testExecutionFailureCaseNameConstant,
			process:          newFinishedProcess(execshell.ExecutionResult{ExitCode: 1, StandardError: "denied"}, nil),
			expectedLogCount: 2,
			expectedMessages: []string{"Fetching from origin in /workspace/repo", "Failed to fetch from origin in /workspace/repo (exit code 1: denied)"},
		},
		{
			name:             testExecutionWaitErrorCaseNameConstant,
			process:          newFinishedProcess(execshell.ExecutionResult{}, errors.New("wait failure")),
			expectedLogCount: 2,
			expectedMessages: []string{"Fetching from origin in /workspace/repo", "Unable to fetch from origin in /workspace/repo: wait failure"},
		},
		{
			name:             testExecutionLauncherErrorCaseNameConstant,
			launchError:      errors.New("no such file"),
			expectLaunchErr:  true,
			expectedLogCount: 2,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observerCore, observerLogs := observer.New(zap.DebugLevel)
			logger := zap.New(observerCore)

			launcher := &recordingProcessLauncher{process: testCase.process, launchError: testCase.launchError}
			executor, creationError := execshell.NewShellExecutor(logger, launcher)
			require.NoError(testInstance, creationError)

			details := execshell.CommandDetails{Arguments: []string{"fetch", testRemoteNameConstant}, WorkingDirectory: testWorkingDirectoryConstant}
			launched, launchError := executor.LaunchGit(details)

			if testCase.expectLaunchErr {
				require.Error(testInstance, launchError)
				require.IsType(testInstance, execshell.CommandExecutionError{}, launchError)
				require.Nil(testInstance, launched)
			} else {
				require.NoError(testInstance, launchError)
				<-launched.Done()
				_, _ = launched.Result()
				_, _ = launched.Result()
			}

			require.Len(testInstance, observerLogs.All(), testCase.expectedLogCount)
			for messageIndex, expectedMessage := range testCase.expectedMessages {
				require.Equal(testInstance, expectedMessage, observerLogs.All()[messageIndex].Message)
			}
			require.Len(testInstance, launcher.recordedCommands, 1)
			require.Equal(testInstance, execshell.CommandGit, launcher.recordedCommands[0].Name)
		})
	}
}

func TestCommandFailedErrorDescribesCommand(testInstance *testing.T) {
	failedError := execshell.CommandFailedError{
		Command: execshell.ShellCommand{Name: execshell.CommandGit, Details: execshell.CommandDetails{Arguments: []string{"fetch", "origin"}}},
		Result:  execshell.ExecutionResult{ExitCode: 128, StandardError: " fatal \n"},
	}
	require.Equal(testInstance, "git fetch origin exited with code 128: fatal", failedError.Error())
}

type recordingProcessObserver struct {
	events []string
}

func (observer *recordingProcessObserver) ProcessLaunched(command execshell.ShellCommand) {
	observer.events = append(observer.events, "launched")
}

func (observer *recordingProcessObserver) ProcessExited(command execshell.ShellCommand, result execshell.ExecutionResult) {
	observer.events = append(observer.events, "exited")
}

func (observer *recordingProcessObserver) ProcessFailed(command execshell.ShellCommand, failure error) {
	observer.events = append(observer.events, "failed")
}

func TestShellExecutorReportsResultOnce(testInstance *testing.T) {
	recorder := &recordingProcessObserver{}
	launcher := &recordingProcessLauncher{process: newFinishedProcess(execshell.ExecutionResult{ExitCode: 0}, nil)}
	executor, creationError := execshell.NewShellExecutorWithObserver(launcher, recorder)
	require.NoError(testInstance, creationError)

	process, launchError := executor.LaunchGit(execshell.CommandDetails{WorkingDirectory: testWorkingDirectoryConstant})
	require.NoError(testInstance, launchError)
	_, _ = process.Result()
	_, _ = process.Result()

	require.Equal(testInstance, []string{"launched", "exited"}, recorder.events)
}

func TestShellExecutorWithoutObserverDiscardsEvents(testInstance *testing.T) {
	launcher := &recordingProcessLauncher{launchError: errors.New("exec format error")}
	executor, creationError := execshell.NewShellExecutorWithObserver(launcher, nil)
	require.NoError(testInstance, creationError)

	_, launchError := executor.LaunchGit(execshell.CommandDetails{WorkingDirectory: testWorkingDirectoryConstant})
	var executionError execshell.CommandExecutionError
	require.ErrorAs(testInstance, launchError, &executionError)
}
