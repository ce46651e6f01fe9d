package repos

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitscan/internal/fetch"
	"github.com/temirov/gitscan/internal/repos/dependencies"
	"github.com/temirov/gitscan/internal/repos/shared"
	"github.com/temirov/gitscan/internal/repos/status"
	"github.com/temirov/gitscan/internal/scan"
	"github.com/temirov/gitscan/internal/ui"
	flagutils "github.com/temirov/gitscan/internal/utils/flags"
)

const (
	statusUseConstant                 = "status [repository ...]"
	statusShortDescription            = "Report the status of git repositories"
	statusLongDescription             = "status reads every listed repository, or every repository stored by search, in parallel and prints one row per repository. Remotes are fetched first unless --fetch=no is given. Interrupting the command stops the scan and prints what was read so far."
	statusFetchFlagNameConstant       = "fetch"
	statusFetchFlagUsageConstant      = "Fetch every remote before comparing branches"
	statusWorkersFlagNameConstant     = "workers"
	statusWorkersFlagUsageConstant    = "Number of repositories read in parallel"
	statusFormatFlagNameConstant      = "format"
	statusFormatFlagUsageConstant     = "Report format"
	statusCachedFlagNameConstant      = "cached"
	statusCachedFlagUsageConstant     = "Print the stored result of the last scan instead of scanning"
	statusOpenInventoryErrorMessage   = "unable to open inventory"
	statusListInventoryErrorMessage   = "unable to list stored repositories"
	statusLoadSnapshotErrorMessage    = "unable to load stored scan"
	statusRenderErrorMessage          = "unable to render report"
	statusSnapshotNotStoredMessage    = "scan result not stored"
	statusInventoryUnavailableMessage = "inventory unavailable; scan result will not be stored"
	statusScanCancelledMessage        = "scan interrupted; showing partial results"
	statusDatabasePathField           = "database_path"
	statusScanIdentifierField         = "scan_id"
)

var statusFormatChoices = ui.FormatNames()

// StatusCommandBuilder assembles the status command.
type StatusCommandBuilder struct {
	LoggerProvider        LoggerProvider
	Reader                scan.StatusReader
	Fetcher               status.Fetcher
	FileSystem            shared.FileSystem
	InterruptNotifier     InterruptNotifier
	ConfigurationProvider func() ToolsConfiguration
}

// Build constructs the status command.
func (builder *StatusCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   statusUseConstant,
		Short: statusShortDescription,
		Long:  statusLongDescription,
		RunE:  builder.run,
	}

	defaults := DefaultToolsConfiguration().Status
	var fetchValue bool
	flagutils.AddToggleFlag(command.Flags(), &fetchValue, statusFetchFlagNameConstant, defaults.Fetch, statusFetchFlagUsageConstant)
	command.Flags().Int(statusWorkersFlagNameConstant, 0, statusWorkersFlagUsageConstant)
	command.Flags().String(statusFormatFlagNameConstant, defaults.Format, flagutils.FormatChoiceUsage(defaults.Format, statusFormatChoices, statusFormatFlagUsageConstant))
	command.Flags().Bool(statusCachedFlagNameConstant, false, statusCachedFlagUsageConstant)

	return command, nil
}

func (builder *StatusCommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	statusConfiguration := configuration.Status
	if command.Flags().Changed(statusFetchFlagNameConstant) {
		statusConfiguration.Fetch, _ = command.Flags().GetBool(statusFetchFlagNameConstant)
	}
	if command.Flags().Changed(statusWorkersFlagNameConstant) {
		statusConfiguration.Workers, _ = command.Flags().GetInt(statusWorkersFlagNameConstant)
	}
	if command.Flags().Changed(statusFormatFlagNameConstant) {
		statusConfiguration.Format, _ = command.Flags().GetString(statusFormatFlagNameConstant)
	}
	statusConfiguration = statusConfiguration.sanitize()
	cachedOnly, _ := command.Flags().GetBool(statusCachedFlagNameConstant)

	format, formatError := ui.ParseFormat(statusConfiguration.Format)
	if formatError != nil {
		return formatError
	}
	policy := configuration.Fetch.Sanitize()
	if policyError := policy.Validate(); policyError != nil {
		return policyError
	}

	logger := resolveLogger(builder.LoggerProvider)
	renderer := ui.NewRenderer(command.OutOrStdout(), format)
	repositoryPaths := resolveRepositoryArguments(arguments, builder.FileSystem)

	store, storeError := dependencies.ResolveInventoryStore(command.Context(), configuration.Inventory.sanitize().DatabasePath, logger)
	if storeError != nil {
		if len(repositoryPaths) == 0 || cachedOnly {
			return errors.Wrap(storeError, statusOpenInventoryErrorMessage)
		}
		logger.Warn(statusInventoryUnavailableMessage, zap.Error(storeError))
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	if cachedOnly {
		snapshots, loadError := store.LoadSnapshots(command.Context())
		if loadError != nil {
			return errors.Wrap(loadError, statusLoadSnapshotErrorMessage)
		}
		return builder.render(renderer, ui.EntriesFromSnapshots(snapshots))
	}

	if len(repositoryPaths) == 0 {
		storedPaths, listError := store.ListRepositories(command.Context())
		if listError != nil {
			return errors.Wrap(listError, statusListInventoryErrorMessage)
		}
		repositoryPaths = storedPaths
	}
	if len(repositoryPaths) == 0 {
		_ = displayCommandHelp(command)
		return errEmptyInventory
	}

	reader, readerError := builder.resolveReader(statusConfiguration.Fetch, policy, logger)
	if readerError != nil {
		return readerError
	}
	coordinator := scan.NewCoordinator(reader, statusConfiguration.Workers, logger)

	stopInterrupts := cancelOnInterrupt(builder.InterruptNotifier, coordinator.Cancel)
	report := coordinator.Scan(command.Context(), scan.Request{Paths: repositoryPaths, FetchRemotes: statusConfiguration.Fetch})
	stopInterrupts()

	if report.State == scan.StateCancelled {
		logger.Warn(statusScanCancelledMessage, zap.String(statusScanIdentifierField, report.ID))
	}
	if store != nil {
		if saveError := store.SaveReport(context.WithoutCancel(command.Context()), report); saveError != nil {
			logger.Warn(statusSnapshotNotStoredMessage, zap.String(statusDatabasePathField, store.Path()), zap.Error(saveError))
		}
	}

	return builder.render(renderer, ui.EntriesFromReport(report))
}

func (builder *StatusCommandBuilder) render(renderer *ui.Renderer, entries []ui.Entry) error {
	if renderError := renderer.RenderEntries(entries); renderError != nil {
		return errors.Wrap(renderError, statusRenderErrorMessage)
	}
	return nil
}

func (builder *StatusCommandBuilder) resolveReader(fetchEnabled bool, policy fetch.Policy, logger *zap.Logger) (scan.StatusReader, error) {
	if builder.Reader != nil {
		return builder.Reader, nil
	}
	var fetcher status.Fetcher
	if fetchEnabled {
		resolvedFetcher, fetcherError := dependencies.ResolveFetcher(builder.Fetcher, policy, logger)
		if fetcherError != nil {
			return nil, fetcherError
		}
		fetcher = resolvedFetcher
	}
	return dependencies.ResolveStatusReader(nil, fetcher, logger), nil
}

func (builder *StatusCommandBuilder) resolveConfiguration() ToolsConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultToolsConfiguration()
	}
	return builder.ConfigurationProvider()
}
