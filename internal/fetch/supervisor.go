package fetch

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/gitscan/internal/execshell"
	"github.com/temirov/gitscan/internal/repos/shared"
)

const (
	gitFetchSubcommandConstant          = "fetch"
	gitTerminalPromptVariableConstant   = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptDisabledConstant   = "0"
	fetchLaunchFailedMessageConstant    = "fetch could not be started"
	fetchRemoteRejectedMessageConstant  = "fetch skipped: invalid remote name"
	fetchFinishedMessageConstant        = "fetch finished"
	fetchAbortedMessageConstant         = "fetch aborted"
	fetchThresholdsGrownMessageConstant = "fetch process tree grew; thresholds extended"
	descendantKillFailedMessageConstant = "unable to kill fetch descendant"
	groupKillFailedMessageConstant      = "unable to kill fetch process group"
	fetchReapTimedOutMessageConstant    = "fetch process was not reaped after kill"
	repositoryDirectoryFieldConstant    = "repository_directory"
	remoteNameFieldConstant             = "remote_name"
	fetchOutcomeFieldConstant           = "fetch_outcome"
	verdictFieldConstant                = "verdict"
	elapsedFieldConstant                = "elapsed"
	processCountFieldConstant           = "process_count"
	processIdentifierFieldConstant      = "pid"
)

// Launcher starts git processes without waiting for them.
type Launcher interface {
	LaunchGit(details execshell.CommandDetails) (execshell.RunningProcess, error)
}

// Supervisor runs git fetch under the watchdog and kills process trees that time out or are cancelled.
type Supervisor struct {
	launcher  Launcher
	inspector ProcessInspector
	clock     Clock
	policy    Policy
	logger    *zap.Logger
}

// NewSupervisor constructs a Supervisor. Nil collaborators fall back to gopsutil and the system clock.
func NewSupervisor(launcher Launcher, inspector ProcessInspector, clock Clock, policy Policy, logger *zap.Logger) *Supervisor {
	if inspector == nil {
		inspector = NewGopsutilInspector()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		launcher:  launcher,
		inspector: inspector,
		clock:     clock,
		policy:    policy.Sanitize(),
		logger:    logger,
	}
}

// Policy returns the sanitized thresholds in use.
func (supervisor *Supervisor) Policy() Policy {
	return supervisor.policy
}

// Fetch runs "git fetch [remoteName]" in repositoryDirectory and reports exactly one outcome flag.
//
// A remote name that fails validation yields OutcomeError without launching anything.
// A natural exit yields OutcomeOK or OutcomeError by exit code. A watchdog timeout yields
// OutcomeTimeout and cancellation of ctx yields OutcomeCancelled; in both cases every observed
// descendant and the process group are killed and the root is reaped before returning.
func (supervisor *Supervisor) Fetch(ctx context.Context, repositoryDirectory string, remoteName string) Outcome {
	trimmedRemote := strings.TrimSpace(remoteName)
	fields := []zap.Field{
		zap.String(repositoryDirectoryFieldConstant, repositoryDirectory),
		zap.String(remoteNameFieldConstant, trimmedRemote),
	}

	arguments := []string{gitFetchSubcommandConstant}
	if len(trimmedRemote) > 0 {
		validatedRemote, remoteError := shared.NewRemoteName(trimmedRemote)
		if remoteError != nil {
			supervisor.logger.Warn(fetchRemoteRejectedMessageConstant, append(fields, zap.Error(remoteError))...)
			return OutcomeError
		}
		arguments = append(arguments, validatedRemote.String())
	}

	details := execshell.CommandDetails{
		Arguments:            arguments,
		WorkingDirectory:     repositoryDirectory,
		EnvironmentVariables: map[string]string{gitTerminalPromptVariableConstant: gitTerminalPromptDisabledConstant},
	}
	launched, launchError := supervisor.launcher.LaunchGit(details)
	if launchError != nil {
		supervisor.logger.Warn(fetchLaunchFailedMessageConstant, append(fields, zap.Error(launchError))...)
		return OutcomeError
	}

	rootPID := int32(launched.PID())
	fields = append(fields, zap.Int32(processIdentifierFieldConstant, rootPID))

	watchdog := NewWatchdog(supervisor.policy)
	ticker := supervisor.clock.NewTicker(supervisor.policy.PollInterval)
	defer ticker.Stop()
	lastTick := supervisor.clock.Now()

	for {
		var tickTime time.Time
		select {
		case <-launched.Done():
			return supervisor.naturalOutcome(launched, details, fields)
		case <-ctx.Done():
			return supervisor.abort(launched, watchdog, OutcomeCancelled, fields)
		case tickTime = <-ticker.C():
		}

		select {
		case <-launched.Done():
			return supervisor.naturalOutcome(launched, details, fields)
		default:
		}
		if ctx.Err() != nil {
			return supervisor.abort(launched, watchdog, OutcomeCancelled, fields)
		}

		elapsed := tickTime.Sub(lastTick)
		lastTick = tickTime

		snapshot := supervisor.inspector.Inspect(context.WithoutCancel(ctx), rootPID)
		grownBefore := watchdog.ThresholdsGrown()
		verdict := watchdog.Advance(elapsed, snapshot)
		if !grownBefore && watchdog.ThresholdsGrown() {
			supervisor.logger.Debug(fetchThresholdsGrownMessageConstant, append(fields, zap.Int(processCountFieldConstant, snapshot.Size()))...)
		}
		if verdict != VerdictContinue {
			return supervisor.abort(launched, watchdog, OutcomeTimeout, append(fields, zap.Stringer(verdictFieldConstant, verdict)))
		}
	}
}

func (supervisor *Supervisor) naturalOutcome(launched execshell.RunningProcess, details execshell.CommandDetails, fields []zap.Field) Outcome {
	result, resultError := launched.Result()
	switch {
	case resultError != nil:
		supervisor.logger.Debug(fetchFinishedMessageConstant, append(fields, zap.Stringer(fetchOutcomeFieldConstant, OutcomeError), zap.Error(resultError))...)
		return OutcomeError
	case result.ExitCode != 0:
		failure := execshell.CommandFailedError{Command: execshell.ShellCommand{Name: execshell.CommandGit, Details: details}, Result: result}
		supervisor.logger.Debug(fetchFinishedMessageConstant, append(fields, zap.Stringer(fetchOutcomeFieldConstant, OutcomeError), zap.Error(failure))...)
		return OutcomeError
	default:
		supervisor.logger.Debug(fetchFinishedMessageConstant, append(fields, zap.Stringer(fetchOutcomeFieldConstant, OutcomeOK))...)
		return OutcomeOK
	}
}

// abort kills the whole tree, then waits for the root bounded by the overall timeout.
func (supervisor *Supervisor) abort(launched execshell.RunningProcess, watchdog *Watchdog, outcome Outcome, fields []zap.Field) Outcome {
	killContext := context.Background()
	snapshot := supervisor.inspector.Inspect(killContext, int32(launched.PID()))
	for _, descendantPID := range snapshot.DescendantPIDs() {
		if killError := supervisor.inspector.Kill(killContext, descendantPID); killError != nil {
			supervisor.logger.Debug(descendantKillFailedMessageConstant, append(fields, zap.Int32(processIdentifierFieldConstant, descendantPID), zap.Error(killError))...)
		}
	}
	if killError := launched.KillGroup(); killError != nil {
		supervisor.logger.Warn(groupKillFailedMessageConstant, append(fields, zap.Error(killError))...)
	}

	elapsedOverall, _ := watchdog.Elapsed()
	select {
	case <-launched.Done():
		_, _ = launched.Result()
	case <-supervisor.clock.After(watchdog.OverallTimeout()):
		supervisor.logger.Error(fetchReapTimedOutMessageConstant, fields...)
	}

	supervisor.logger.Info(fetchAbortedMessageConstant, append(fields, zap.Stringer(fetchOutcomeFieldConstant, outcome), zap.Duration(elapsedFieldConstant, elapsedOverall))...)
	return outcome
}
