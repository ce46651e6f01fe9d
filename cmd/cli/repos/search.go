package repos

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitscan/internal/repos/dependencies"
	"github.com/temirov/gitscan/internal/repos/shared"
	flagutils "github.com/temirov/gitscan/internal/utils/flags"
)

const (
	searchUseConstant              = "search [root]"
	searchShortDescription         = "Find git repositories below a directory"
	searchLongDescription          = "search walks a directory tree, prints every git repository metadata directory it finds, and stores the list for later status scans. Interrupting the command stops the walk and keeps what was found so far."
	searchExcludeFlagNameConstant  = "exclude"
	searchExcludeFlagUsageConstant = "Directory to skip together with everything below it (repeatable)"
	searchSaveFlagNameConstant     = "save"
	searchSaveFlagUsageConstant    = "Store the discovered list in the inventory"
	searchInterruptedMessage       = "search interrupted; keeping repositories found so far"
	searchTooManyArgumentsMessage  = "search accepts at most one root directory"
	searchFailedErrorMessage       = "repository search failed"
	storeRepositoriesErrorMessage  = "unable to store repository list"
	searchCompletedMessageConstant = "repository search completed"
	searchRootFieldConstant        = "root"
	searchExcludedFieldConstant    = "excluded"
	searchRepositoryCountField     = "repository_count"
	searchDatabasePathField        = "database_path"
	searchInterruptedField         = "interrupted"
	searchOutputLineTemplate       = "%s\n"
	searchMaximumArgumentsConstant = 1
)

// SearchCommandBuilder assembles the search command.
type SearchCommandBuilder struct {
	LoggerProvider        LoggerProvider
	Finder                dependencies.RepositoryFinder
	FileSystem            shared.FileSystem
	ConfigurationProvider func() SearchConfiguration
	InventoryProvider     func() InventoryConfiguration
	InterruptNotifier     InterruptNotifier
}

// Build constructs the search command.
func (builder *SearchCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   searchUseConstant,
		Short: searchShortDescription,
		Long:  searchLongDescription,
		Args:  cobra.MaximumNArgs(searchMaximumArgumentsConstant),
		RunE:  builder.run,
	}

	command.Flags().StringSlice(searchExcludeFlagNameConstant, nil, searchExcludeFlagUsageConstant)
	var saveValue bool
	flagutils.AddToggleFlag(command.Flags(), &saveValue, searchSaveFlagNameConstant, true, searchSaveFlagUsageConstant)

	return command, nil
}

func (builder *SearchCommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > searchMaximumArgumentsConstant {
		return errors.New(searchTooManyArgumentsMessage)
	}

	configuration := builder.resolveConfiguration()
	if len(arguments) == 1 && len(strings.TrimSpace(arguments[0])) > 0 {
		configuration.Root = arguments[0]
	}
	if command.Flags().Changed(searchExcludeFlagNameConstant) {
		excluded, _ := command.Flags().GetStringSlice(searchExcludeFlagNameConstant)
		configuration.Exclude = append(configuration.Exclude, excluded...)
	}
	if command.Flags().Changed(searchSaveFlagNameConstant) {
		configuration.Save, _ = command.Flags().GetBool(searchSaveFlagNameConstant)
	}
	configuration = configuration.sanitize()

	logger := resolveLogger(builder.LoggerProvider)
	finder := dependencies.ResolveRepositoryFinder(builder.Finder, builder.FileSystem, logger)

	searchContext, cancelSearch := context.WithCancel(command.Context())
	defer cancelSearch()
	stopInterrupts := cancelOnInterrupt(builder.InterruptNotifier, cancelSearch)
	repositories, searchError := finder.FindRepositories(searchContext, configuration.Root, configuration.Exclude)
	stopInterrupts()
	if searchError != nil {
		return errors.Wrap(searchError, searchFailedErrorMessage)
	}
	interrupted := searchContext.Err() != nil
	if interrupted {
		logger.Warn(searchInterruptedMessage, zap.Int(searchRepositoryCountField, len(repositories)))
	}
	storeContext := context.WithoutCancel(searchContext)

	for _, repositoryPath := range repositories {
		fmt.Fprintf(command.OutOrStdout(), searchOutputLineTemplate, repositoryPath)
	}

	databasePath := ""
	if configuration.Save {
		store, storeError := dependencies.ResolveInventoryStore(storeContext, builder.resolveInventory().DatabasePath, logger)
		if storeError != nil {
			return errors.Wrap(storeError, storeRepositoriesErrorMessage)
		}
		defer store.Close()
		if replaceError := store.ReplaceRepositories(storeContext, repositories); replaceError != nil {
			return errors.Wrap(replaceError, storeRepositoriesErrorMessage)
		}
		databasePath = store.Path()
	}

	logger.Info(searchCompletedMessageConstant,
		zap.String(searchRootFieldConstant, configuration.Root),
		zap.Strings(searchExcludedFieldConstant, configuration.Exclude),
		zap.Int(searchRepositoryCountField, len(repositories)),
		zap.String(searchDatabasePathField, databasePath),
		zap.Bool(searchInterruptedField, interrupted),
	)
	return nil
}

func (builder *SearchCommandBuilder) resolveConfiguration() SearchConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultToolsConfiguration().Search
	}
	return builder.ConfigurationProvider()
}

func (builder *SearchCommandBuilder) resolveInventory() InventoryConfiguration {
	if builder.InventoryProvider == nil {
		return DefaultToolsConfiguration().Inventory.sanitize()
	}
	return builder.InventoryProvider().sanitize()
}
