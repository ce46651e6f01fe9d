package repos

import (
	"runtime"
	"strings"
	"time"

	"github.com/temirov/gitscan/internal/fetch"
	"github.com/temirov/gitscan/internal/ui"
	"github.com/temirov/gitscan/internal/watch"
)

const (
	searchConfigurationKeyConstant       = "search"
	statusConfigurationKeyConstant       = "status"
	fetchConfigurationKeyConstant        = "fetch"
	inventoryConfigurationKeyConstant    = "inventory"
	watchConfigurationKeyConstant        = "watch"
	configurationRootKeyConstant         = "root"
	configurationExcludeKeyConstant      = "exclude"
	configurationSaveKeyConstant         = "save"
	configurationFetchKeyConstant        = "fetch"
	configurationWorkersKeyConstant      = "workers"
	configurationFormatKeyConstant       = "format"
	configurationPollKeyConstant         = "poll_interval"
	configurationOverallKeyConstant      = "overall_timeout"
	configurationIdleKeyConstant         = "idle_timeout"
	configurationThresholdKeyConstant    = "growth_process_threshold"
	configurationMultiplierKeyConstant   = "growth_multiplier"
	configurationDatabasePathKeyConstant = "database_path"
	configurationDebounceKeyConstant     = "debounce"
	defaultSearchRootConstant            = "."
)

// ToolsConfiguration captures the configuration sections of the repository commands.
type ToolsConfiguration struct {
	Search    SearchConfiguration    `mapstructure:"search"`
	Status    StatusConfiguration    `mapstructure:"status"`
	Fetch     fetch.Policy           `mapstructure:"fetch"`
	Inventory InventoryConfiguration `mapstructure:"inventory"`
	Watch     WatchConfiguration     `mapstructure:"watch"`
}

// SearchConfiguration describes where repositories are discovered.
type SearchConfiguration struct {
	Root    string   `mapstructure:"root"`
	Exclude []string `mapstructure:"exclude"`
	Save    bool     `mapstructure:"save"`
}

// StatusConfiguration describes how status scans run and render.
type StatusConfiguration struct {
	Fetch   bool   `mapstructure:"fetch"`
	Workers int    `mapstructure:"workers"`
	Format  string `mapstructure:"format"`
}

// InventoryConfiguration locates the inventory database. An empty path uses the user configuration directory.
type InventoryConfiguration struct {
	DatabasePath string `mapstructure:"database_path"`
}

// WatchConfiguration tunes the watch command.
type WatchConfiguration struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// DefaultToolsConfiguration returns baseline configuration values for repository commands.
func DefaultToolsConfiguration() ToolsConfiguration {
	return ToolsConfiguration{
		Search: SearchConfiguration{
			Root:    defaultSearchRootConstant,
			Exclude: []string{},
			Save:    true,
		},
		Status: StatusConfiguration{
			Fetch:   true,
			Workers: runtime.NumCPU(),
			Format:  string(ui.FormatAuto),
		},
		Fetch:     fetch.DefaultPolicy(),
		Inventory: InventoryConfiguration{DatabasePath: ""},
		Watch:     WatchConfiguration{Debounce: watch.DefaultDebounce},
	}
}

// DefaultConfigurationValues produces Viper defaults for repository commands.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultToolsConfiguration()
	searchKey := rootKey + "." + searchConfigurationKeyConstant + "."
	statusKey := rootKey + "." + statusConfigurationKeyConstant + "."
	fetchKey := rootKey + "." + fetchConfigurationKeyConstant + "."
	return map[string]any{
		searchKey + configurationRootKeyConstant:                                                       defaults.Search.Root,
		searchKey + configurationExcludeKeyConstant:                                                    defaults.Search.Exclude,
		searchKey + configurationSaveKeyConstant:                                                       defaults.Search.Save,
		statusKey + configurationFetchKeyConstant:                                                      defaults.Status.Fetch,
		statusKey + configurationWorkersKeyConstant:                                                    defaults.Status.Workers,
		statusKey + configurationFormatKeyConstant:                                                     defaults.Status.Format,
		fetchKey + configurationPollKeyConstant:                                                        defaults.Fetch.PollInterval,
		fetchKey + configurationOverallKeyConstant:                                                     defaults.Fetch.OverallTimeout,
		fetchKey + configurationIdleKeyConstant:                                                        defaults.Fetch.IdleTimeout,
		fetchKey + configurationThresholdKeyConstant:                                                   defaults.Fetch.GrowthProcessThreshold,
		fetchKey + configurationMultiplierKeyConstant:                                                  defaults.Fetch.GrowthMultiplier,
		rootKey + "." + inventoryConfigurationKeyConstant + "." + configurationDatabasePathKeyConstant: defaults.Inventory.DatabasePath,
		rootKey + "." + watchConfigurationKeyConstant + "." + configurationDebounceKeyConstant:         defaults.Watch.Debounce,
	}
}

// sanitize trims paths, expands the home directory and drops exclusions already covered by another.
func (configuration SearchConfiguration) sanitize() SearchConfiguration {
	sanitized := configuration
	sanitized.Root = strings.TrimSpace(configuration.Root)
	if len(sanitized.Root) == 0 {
		sanitized.Root = defaultSearchRootConstant
	}
	sanitized.Root = repositoryHomeDirectoryExpander.Expand(sanitized.Root)
	sanitized.Exclude = exclusionPathSanitizer.Sanitize(configuration.Exclude)
	return sanitized
}

// sanitize falls back to defaults for unusable worker counts and formats.
func (configuration StatusConfiguration) sanitize() StatusConfiguration {
	sanitized := configuration
	if sanitized.Workers <= 0 {
		sanitized.Workers = runtime.NumCPU()
	}
	sanitized.Format = strings.TrimSpace(configuration.Format)
	if len(sanitized.Format) == 0 {
		sanitized.Format = string(ui.FormatAuto)
	}
	return sanitized
}

// sanitize expands the home directory in the database path.
func (configuration InventoryConfiguration) sanitize() InventoryConfiguration {
	sanitized := configuration
	sanitized.DatabasePath = repositoryHomeDirectoryExpander.Expand(strings.TrimSpace(configuration.DatabasePath))
	return sanitized
}

// sanitize replaces a non-positive debounce with the default.
func (configuration WatchConfiguration) sanitize() WatchConfiguration {
	sanitized := configuration
	if sanitized.Debounce <= 0 {
		sanitized.Debounce = watch.DefaultDebounce
	}
	return sanitized
}
