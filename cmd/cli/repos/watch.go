package repos

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitscan/internal/repos/dependencies"
	"github.com/temirov/gitscan/internal/repos/shared"
	"github.com/temirov/gitscan/internal/scan"
	"github.com/temirov/gitscan/internal/ui"
	flagutils "github.com/temirov/gitscan/internal/utils/flags"
	"github.com/temirov/gitscan/internal/watch"
)

const (
	watchUseConstant              = "watch [repository ...]"
	watchShortDescription         = "Print repository status whenever files change"
	watchLongDescription          = "watch observes every listed repository, or every repository stored by search, and prints a fresh status row each time one of them changes. Remotes are never fetched. Interrupt to stop."
	watchDebounceFlagNameConstant = "debounce"
	watchDebounceFlagUsage        = "Quiet period after the last change before a repository is read again"
	watchFormatFlagNameConstant   = "format"
	watchOpenInventoryMessage     = "unable to open inventory"
	watchListInventoryMessage     = "unable to list stored repositories"
	watchFailedErrorMessage       = "watch failed"
	watchRenderFailedMessage      = "unable to render repository status"
	watchRepositoryPathField      = "repository_path"
)

// RepositoryWatcher invokes handle for every repository whose files change until ctx ends.
type RepositoryWatcher interface {
	Watch(ctx context.Context, repositoryPaths []string, handle watch.ChangeHandler) error
}

// WatchCommandBuilder assembles the watch command.
type WatchCommandBuilder struct {
	LoggerProvider        LoggerProvider
	Reader                scan.StatusReader
	Watcher               RepositoryWatcher
	FileSystem            shared.FileSystem
	ConfigurationProvider func() ToolsConfiguration
}

// Build constructs the watch command.
func (builder *WatchCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   watchUseConstant,
		Short: watchShortDescription,
		Long:  watchLongDescription,
		RunE:  builder.run,
	}

	defaults := DefaultToolsConfiguration()
	command.Flags().Duration(watchDebounceFlagNameConstant, defaults.Watch.Debounce, watchDebounceFlagUsage)
	command.Flags().String(watchFormatFlagNameConstant, defaults.Status.Format, flagutils.FormatChoiceUsage(defaults.Status.Format, statusFormatChoices, statusFormatFlagUsageConstant))

	return command, nil
}

func (builder *WatchCommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	if command.Flags().Changed(watchDebounceFlagNameConstant) {
		configuration.Watch.Debounce, _ = command.Flags().GetDuration(watchDebounceFlagNameConstant)
	}
	if command.Flags().Changed(watchFormatFlagNameConstant) {
		configuration.Status.Format, _ = command.Flags().GetString(watchFormatFlagNameConstant)
	}
	watchConfiguration := configuration.Watch.sanitize()
	format, formatError := ui.ParseFormat(configuration.Status.sanitize().Format)
	if formatError != nil {
		return formatError
	}

	logger := resolveLogger(builder.LoggerProvider)
	repositoryPaths := resolveRepositoryArguments(arguments, builder.FileSystem)
	if len(repositoryPaths) == 0 {
		storedPaths, listError := builder.storedRepositories(command.Context(), configuration.Inventory, logger)
		if listError != nil {
			return listError
		}
		repositoryPaths = storedPaths
	}
	if len(repositoryPaths) == 0 {
		_ = displayCommandHelp(command)
		return errEmptyInventory
	}

	reader := dependencies.ResolveStatusReader(builder.Reader, nil, logger)
	watcher := builder.Watcher
	if watcher == nil {
		watcher = watch.NewService(watchConfiguration.Debounce, logger)
	}

	renderer := ui.NewRenderer(command.OutOrStdout(), format)
	var renderMutex sync.Mutex
	handle := func(ctx context.Context, repositoryPath string) {
		repositoryStatus, readError := reader.Read(ctx, repositoryPath, false)
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		entry := ui.EntryFromStatus(repositoryPath, repositoryStatus)
		if readError != nil {
			entry = ui.EntryFromFailure(repositoryPath, readError)
		}
		renderMutex.Lock()
		defer renderMutex.Unlock()
		if renderError := renderer.RenderEntries([]ui.Entry{entry}); renderError != nil {
			logger.Warn(watchRenderFailedMessage, zap.String(watchRepositoryPathField, repositoryPath), zap.Error(renderError))
		}
	}

	watchContext, stopWatching := signal.NotifyContext(command.Context(), os.Interrupt)
	defer stopWatching()
	if watchError := watcher.Watch(watchContext, repositoryPaths, handle); watchError != nil {
		return errors.Wrap(watchError, watchFailedErrorMessage)
	}
	return nil
}

func (builder *WatchCommandBuilder) storedRepositories(ctx context.Context, configuration InventoryConfiguration, logger *zap.Logger) ([]string, error) {
	store, storeError := dependencies.ResolveInventoryStore(ctx, configuration.sanitize().DatabasePath, logger)
	if storeError != nil {
		return nil, errors.Wrap(storeError, watchOpenInventoryMessage)
	}
	defer store.Close()
	storedPaths, listError := store.ListRepositories(ctx)
	if listError != nil {
		return nil, errors.Wrap(listError, watchListInventoryMessage)
	}
	return storedPaths, nil
}

func (builder *WatchCommandBuilder) resolveConfiguration() ToolsConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultToolsConfiguration()
	}
	return builder.ConfigurationProvider()
}
