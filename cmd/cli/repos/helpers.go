package repos

import (
	"os"
	"os/signal"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitscan/internal/repos/dependencies"
	"github.com/temirov/gitscan/internal/repos/shared"
	pathutils "github.com/temirov/gitscan/internal/utils/path"
)

const emptyInventoryErrorMessageConstant = "no repositories to scan; pass repository paths or run search first"

var (
	repositoryHomeDirectoryExpander = pathutils.NewHomeExpander()
	repositoryArgumentSanitizer     = pathutils.NewPathListSanitizer(
		repositoryHomeDirectoryExpander,
		nil,
		pathutils.PathListSanitizerConfiguration{
			ExcludeBooleanLiteralCandidates: true,
			ResolveMetadataDirectories:      true,
			DropDuplicates:                  true,
		},
	)
	exclusionPathSanitizer = pathutils.NewPathListSanitizer(
		repositoryHomeDirectoryExpander,
		nil,
		pathutils.PathListSanitizerConfiguration{PruneNestedPaths: true},
	)

	errEmptyInventory = errors.New(emptyInventoryErrorMessageConstant)
)

// InterruptNotifier relays interrupt requests until stop is called.
type InterruptNotifier func() (interrupts <-chan os.Signal, stop func())

// cancelOnInterrupt calls cancel on the first interrupt and stops listening right away, so a second
// interrupt reaches the default handler and ends the process. The returned function stops listening.
func cancelOnInterrupt(notifier InterruptNotifier, cancel func()) func() {
	if notifier == nil {
		notifier = notifyOnInterrupt
	}
	interrupts, stopNotifications := notifier()
	var stopOnce sync.Once
	stop := func() { stopOnce.Do(stopNotifications) }

	finished := make(chan struct{})
	go func() {
		select {
		case <-interrupts:
			stop()
			cancel()
		case <-finished:
		}
	}()
	return func() {
		close(finished)
		stop()
	}
}

func notifyOnInterrupt() (<-chan os.Signal, func()) {
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	return interrupts, func() { signal.Stop(interrupts) }
}

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// resolveRepositoryArguments maps positional arguments to absolute repository metadata paths.
func resolveRepositoryArguments(arguments []string, fileSystem shared.FileSystem) []string {
	return repositoryArgumentSanitizer.WithInspector(dependencies.ResolveFileSystem(fileSystem)).Sanitize(arguments)
}

func resolveLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func displayCommandHelp(command *cobra.Command) error {
	if command == nil {
		return nil
	}
	return command.Help()
}
