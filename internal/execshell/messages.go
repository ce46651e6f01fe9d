package execshell

import (
	"fmt"
	"strings"
)

const (
	gitFetchSubcommandConstant          = "fetch"
	allRemotesLabelConstant             = "all remotes"
	currentDirectoryLabelConstant       = "current directory"
	unknownFailureLabelConstant         = "unknown error"
	fetchStartedTemplateConstant        = "Fetching from %s in %s"
	fetchSucceededTemplateConstant      = "Fetched from %s in %s"
	fetchFailedTemplateConstant         = "Failed to fetch from %s in %s (exit code %d%s)"
	fetchNotRunTemplateConstant         = "Unable to fetch from %s in %s: %s"
	commandStartedTemplateConstant      = "Running %s"
	commandSucceededTemplateConstant    = "Completed %s"
	commandFailedTemplateConstant       = "%s failed with exit code %d%s"
	commandNotRunTemplateConstant       = "%s failed: %s"
	directorySuffixTemplateConstant     = " (in %s)"
	standardErrorSuffixTemplateConstant = ": %s"
)

// CommandMessageFormatter renders log messages for launched commands.
// git fetch gets remote-aware wording; anything else is described by its command line.
type CommandMessageFormatter struct{}

// BuildStartedMessage describes a command about to run.
func (CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	if remote, isFetch := fetchedRemote(command); isFetch {
		return fmt.Sprintf(fetchStartedTemplateConstant, remote, workingDirectoryLabel(command))
	}
	return fmt.Sprintf(commandStartedTemplateConstant, commandLabel(command))
}

// BuildSuccessMessage describes a command that exited with code zero.
func (CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	if remote, isFetch := fetchedRemote(command); isFetch {
		return fmt.Sprintf(fetchSucceededTemplateConstant, remote, workingDirectoryLabel(command))
	}
	return fmt.Sprintf(commandSucceededTemplateConstant, commandLabel(command))
}

// BuildFailureMessage describes a command that exited with a non-zero code.
func (CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	suffix := standardErrorSuffix(result.StandardError)
	if remote, isFetch := fetchedRemote(command); isFetch {
		return fmt.Sprintf(fetchFailedTemplateConstant, remote, workingDirectoryLabel(command), result.ExitCode, suffix)
	}
	return fmt.Sprintf(commandFailedTemplateConstant, commandLabel(command), result.ExitCode, suffix)
}

// BuildExecutionFailureMessage describes a command that could not be started or reaped.
func (CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	reason := unknownFailureLabelConstant
	if failure != nil {
		reason = failure.Error()
	}
	if remote, isFetch := fetchedRemote(command); isFetch {
		return fmt.Sprintf(fetchNotRunTemplateConstant, remote, workingDirectoryLabel(command), reason)
	}
	return fmt.Sprintf(commandNotRunTemplateConstant, commandLabel(command), reason)
}

// fetchedRemote returns the first positional argument after "git fetch".
func fetchedRemote(command ShellCommand) (string, bool) {
	arguments := command.Details.Arguments
	if command.Name != CommandGit || len(arguments) == 0 || strings.TrimSpace(arguments[0]) != gitFetchSubcommandConstant {
		return "", false
	}
	for _, argument := range arguments[1:] {
		trimmed := strings.TrimSpace(argument)
		if len(trimmed) > 0 && !strings.HasPrefix(trimmed, "-") {
			return trimmed, true
		}
	}
	return allRemotesLabelConstant, true
}

func workingDirectoryLabel(command ShellCommand) string {
	if directory := strings.TrimSpace(command.Details.WorkingDirectory); len(directory) > 0 {
		return directory
	}
	return currentDirectoryLabelConstant
}

func commandLabel(command ShellCommand) string {
	label := describeCommand(command)
	if directory := strings.TrimSpace(command.Details.WorkingDirectory); len(directory) > 0 {
		label += fmt.Sprintf(directorySuffixTemplateConstant, directory)
	}
	return label
}

func standardErrorSuffix(standardError string) string {
	if trimmed := strings.TrimSpace(standardError); len(trimmed) > 0 {
		return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmed)
	}
	return ""
}
