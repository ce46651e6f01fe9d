package dependencies

import (
	"context"

	"go.uber.org/zap"

	"github.com/temirov/gitscan/internal/execshell"
	"github.com/temirov/gitscan/internal/fetch"
	"github.com/temirov/gitscan/internal/inventory"
	"github.com/temirov/gitscan/internal/repos/discovery"
	"github.com/temirov/gitscan/internal/repos/filesystem"
	"github.com/temirov/gitscan/internal/repos/shared"
	"github.com/temirov/gitscan/internal/repos/status"
	"github.com/temirov/gitscan/internal/scan"
)

// RepositoryFinder lists repository metadata directories below a root.
type RepositoryFinder interface {
	FindRepositories(ctx context.Context, rootDirectory string, excludedDirectories []string) ([]string, error)
}

// ResolveFileSystem returns the provided filesystem or an OS-backed default.
func ResolveFileSystem(existing shared.FileSystem) shared.FileSystem {
	if existing != nil {
		return existing
	}
	return filesystem.OSFileSystem{}
}

// ResolveRepositoryFinder returns the provided finder or a filesystem-backed default.
func ResolveRepositoryFinder(existing RepositoryFinder, fileSystem shared.FileSystem, logger *zap.Logger) RepositoryFinder {
	if existing != nil {
		return existing
	}
	return discovery.NewFinderWithFileSystem(ResolveFileSystem(fileSystem), logger)
}

// ResolveFetcher returns the provided fetcher or a supervised git fetch backed by the OS process launcher.
func ResolveFetcher(existing status.Fetcher, policy fetch.Policy, logger *zap.Logger) (status.Fetcher, error) {
	if existing != nil {
		return existing, nil
	}

	shellExecutor, creationError := execshell.NewShellExecutor(logger, execshell.NewOSProcessLauncher())
	if creationError != nil {
		return nil, creationError
	}
	return fetch.NewSupervisor(shellExecutor, nil, nil, policy, logger), nil
}

// ResolveStatusReader returns the provided reader or one that fetches through fetcher.
func ResolveStatusReader(existing scan.StatusReader, fetcher status.Fetcher, logger *zap.Logger) scan.StatusReader {
	if existing != nil {
		return existing
	}
	return status.NewReader(fetcher, logger)
}

// ResolveInventoryStore opens the store at databasePath, or at the default location when it is empty.
func ResolveInventoryStore(ctx context.Context, databasePath string, logger *zap.Logger) (*inventory.Store, error) {
	if len(databasePath) == 0 {
		defaultPath, pathError := inventory.DefaultDatabasePath()
		if pathError != nil {
			return nil, pathError
		}
		databasePath = defaultPath
	}
	return inventory.Open(ctx, databasePath, logger)
}
