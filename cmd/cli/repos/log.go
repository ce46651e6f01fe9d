package repos

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/temirov/gitscan/internal/repos/shared"
	"github.com/temirov/gitscan/internal/repos/status"
	"github.com/temirov/gitscan/internal/ui"
	flagutils "github.com/temirov/gitscan/internal/utils/flags"
)

const (
	logUseConstant               = "log <repository>"
	logShortDescription          = "Show the most recent commits of a repository"
	logLongDescription           = "log prints the latest commits reachable from HEAD of one repository, newest first."
	logLimitFlagNameConstant     = "limit"
	logLimitFlagUsageConstant    = "Maximum number of commits to show"
	logFormatFlagNameConstant    = "format"
	logDefaultLimitConstant      = 20
	logRequiredArgumentsConstant = 1
	logReadErrorMessage          = "unable to read repository log"
	logRenderErrorMessage        = "unable to render repository log"
)

// CommitLister returns the latest commits of one repository.
type CommitLister interface {
	RecentCommits(ctx context.Context, repositoryPath string, limit int) ([]status.CommitSummary, error)
}

// LogCommandBuilder assembles the log command.
type LogCommandBuilder struct {
	LoggerProvider        LoggerProvider
	Lister                CommitLister
	FileSystem            shared.FileSystem
	ConfigurationProvider func() StatusConfiguration
}

// Build constructs the log command.
func (builder *LogCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   logUseConstant,
		Short: logShortDescription,
		Long:  logLongDescription,
		Args:  cobra.ExactArgs(logRequiredArgumentsConstant),
		RunE:  builder.run,
	}

	defaultFormat := DefaultToolsConfiguration().Status.Format
	command.Flags().Int(logLimitFlagNameConstant, logDefaultLimitConstant, logLimitFlagUsageConstant)
	command.Flags().String(logFormatFlagNameConstant, defaultFormat, flagutils.FormatChoiceUsage(defaultFormat, statusFormatChoices, statusFormatFlagUsageConstant))

	return command, nil
}

func (builder *LogCommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	if command.Flags().Changed(logFormatFlagNameConstant) {
		configuration.Format, _ = command.Flags().GetString(logFormatFlagNameConstant)
	}
	configuration = configuration.sanitize()
	format, formatError := ui.ParseFormat(configuration.Format)
	if formatError != nil {
		return formatError
	}
	limit, _ := command.Flags().GetInt(logLimitFlagNameConstant)

	repositoryPaths := resolveRepositoryArguments(arguments, builder.FileSystem)
	if len(repositoryPaths) == 0 {
		_ = displayCommandHelp(command)
		return errEmptyInventory
	}

	lister := builder.Lister
	if lister == nil {
		lister = status.NewReader(nil, resolveLogger(builder.LoggerProvider))
	}
	commits, readError := lister.RecentCommits(command.Context(), repositoryPaths[0], limit)
	if readError != nil {
		return errors.Wrap(readError, logReadErrorMessage)
	}

	if renderError := ui.NewRenderer(command.OutOrStdout(), format).RenderCommits(commits); renderError != nil {
		return errors.Wrap(renderError, logRenderErrorMessage)
	}
	return nil
}

func (builder *LogCommandBuilder) resolveConfiguration() StatusConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultToolsConfiguration().Status
	}
	return builder.ConfigurationProvider()
}
