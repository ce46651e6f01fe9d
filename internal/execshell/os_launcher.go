package execshell

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	environmentAssignmentSeparatorConstant = "="
	environmentAssignmentTemplateConstant  = "%s%s%s"
	processStartErrorMessageConstant       = "unable to start process"
	// outputDrainDelayConstant bounds how long Wait keeps reading pipes held open by orphaned descendants.
	outputDrainDelayConstant = time.Second
)

// OSProcessLauncher starts commands through os/exec, each leading its own process group.
// Standard output and error are retained so failures can be reported with git's own message.
type OSProcessLauncher struct{}

// NewOSProcessLauncher constructs an OSProcessLauncher.
func NewOSProcessLauncher() *OSProcessLauncher {
	return &OSProcessLauncher{}
}

// Launch starts the command and returns immediately.
func (launcher *OSProcessLauncher) Launch(command ShellCommand) (RunningProcess, error) {
	commandArguments := append([]string{}, command.Details.Arguments...)
	executable := exec.Command(string(command.Name), commandArguments...)

	if len(command.Details.WorkingDirectory) > 0 {
		executable.Dir = command.Details.WorkingDirectory
	}

	if len(command.Details.EnvironmentVariables) > 0 {
		mergedEnvironment := append([]string{}, os.Environ()...)
		for environmentKey, environmentValue := range command.Details.EnvironmentVariables {
			mergedEnvironment = append(mergedEnvironment, fmt.Sprintf(environmentAssignmentTemplateConstant, environmentKey, environmentAssignmentSeparatorConstant, environmentValue))
		}
		executable.Env = mergedEnvironment
	}

	launched := &osRunningProcess{command: executable, done: make(chan struct{})}
	executable.Stdout = &launched.standardOutput
	executable.Stderr = &launched.standardError
	executable.WaitDelay = outputDrainDelayConstant

	configureProcessGroup(executable)

	startError := executable.Start()
	if startError != nil {
		return nil, errors.Wrap(startError, processStartErrorMessageConstant)
	}

	go launched.wait()
	return launched, nil
}

type osRunningProcess struct {
	command        *exec.Cmd
	done           chan struct{}
	standardOutput bytes.Buffer
	standardError  bytes.Buffer

	resultMutex sync.Mutex
	result      ExecutionResult
	waitError   error
}

func (process *osRunningProcess) wait() {
	waitError := process.command.Wait()

	process.resultMutex.Lock()
	process.result = ExecutionResult{
		StandardOutput: process.standardOutput.String(),
		StandardError:  process.standardError.String(),
		ExitCode:       process.command.ProcessState.ExitCode(),
	}
	if waitError != nil {
		exitError := &exec.ExitError{}
		if !errors.As(waitError, &exitError) && !errors.Is(waitError, exec.ErrWaitDelay) {
			process.waitError = waitError
		}
	}
	process.resultMutex.Unlock()

	close(process.done)
}

func (process *osRunningProcess) PID() int {
	return process.command.Process.Pid
}

func (process *osRunningProcess) Done() <-chan struct{} {
	return process.done
}

func (process *osRunningProcess) Result() (ExecutionResult, error) {
	process.resultMutex.Lock()
	defer process.resultMutex.Unlock()
	return process.result, process.waitError
}

func (process *osRunningProcess) KillGroup() error {
	select {
	case <-process.done:
		return nil
	default:
	}
	return killProcessGroup(process.command.Process)
}
