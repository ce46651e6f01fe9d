package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/temirov/gitscan/internal/repos/shared"
)

const (
	// DefaultDebounce is the quiet period applied when none is configured.
	DefaultDebounce = 500 * time.Millisecond

	lockFileSuffixConstant          = ".lock"
	referencesDirectoryNameConstant = "refs"
	headsDirectoryNameConstant      = "heads"
	createWatcherErrorMessage       = "create filesystem watcher"
	noRepositoriesErrorMessage      = "no repositories to watch"
	watcherAddFailedMessage         = "unable to watch directory"
	watcherErrorMessage             = "filesystem watcher error"
	repositoryChangedMessage        = "repository changed"
	watchStartedMessage             = "watching repositories"
	repositoryPathFieldConstant     = "repository_path"
	directoryFieldConstant          = "directory"
	repositoryCountFieldConstant    = "repository_count"
	watchedDirectoryCountField      = "directory_count"
)

// ErrNoRepositories is returned when Watch is asked to observe nothing.
var ErrNoRepositories = errors.New(noRepositoriesErrorMessage)

// ChangeHandler receives the metadata path of a repository after its files settle.
// Handlers for different repositories may run concurrently.
type ChangeHandler func(ctx context.Context, repositoryPath string)

// Service watches repository metadata and working trees and reports each changed repository once per quiet period.
type Service struct {
	debounce time.Duration
	logger   *zap.Logger

	mutex  sync.Mutex
	timers map[string]*time.Timer
}

// NewService constructs a Service. A non-positive debounce uses DefaultDebounce.
func NewService(debounce time.Duration, logger *zap.Logger) *Service {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{debounce: debounce, logger: logger, timers: map[string]*time.Timer{}}
}

// Watch blocks until ctx is done, invoking handle for repositories whose files change.
func (service *Service) Watch(ctx context.Context, repositoryPaths []string, handle ChangeHandler) error {
	owners := ownedDirectories(repositoryPaths)
	if len(owners) == 0 {
		return ErrNoRepositories
	}

	watcher, watcherError := fsnotify.NewWatcher()
	if watcherError != nil {
		return errors.Wrap(watcherError, createWatcherErrorMessage)
	}
	defer watcher.Close()
	defer service.stopTimers()

	watchedCount := 0
	for directory := range owners {
		if addError := watcher.Add(directory); addError != nil {
			service.logger.Debug(watcherAddFailedMessage, zap.String(directoryFieldConstant, directory), zap.Error(addError))
			continue
		}
		watchedCount++
	}
	service.logger.Info(watchStartedMessage,
		zap.Int(repositoryCountFieldConstant, len(repositoryPaths)),
		zap.Int(watchedDirectoryCountField, watchedCount),
	)

	ownerIndex := sortedOwners(owners)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, open := <-watcher.Events:
			if !open {
				return nil
			}
			if strings.HasSuffix(event.Name, lockFileSuffixConstant) {
				continue
			}
			repositoryPath, owned := ownerIndex.lookup(event.Name, owners)
			if !owned {
				continue
			}
			if event.Has(fsnotify.Create) {
				service.watchNewDirectory(watcher, event.Name, repositoryPath, owners, &ownerIndex)
			}
			service.schedule(ctx, repositoryPath, handle)
		case watchError, open := <-watcher.Errors:
			if !open {
				return nil
			}
			service.logger.Warn(watcherErrorMessage, zap.Error(watchError))
		}
	}
}

// watchNewDirectory follows directories created inside a watched working tree.
func (service *Service) watchNewDirectory(watcher *fsnotify.Watcher, createdPath string, repositoryPath string, owners map[string]string, index *ownerList) {
	info, statError := os.Stat(createdPath)
	if statError != nil || !info.IsDir() || filepath.Base(createdPath) == shared.GitMetadataDirectoryNameConstant {
		return
	}
	if addError := watcher.Add(createdPath); addError != nil {
		service.logger.Debug(watcherAddFailedMessage, zap.String(directoryFieldConstant, createdPath), zap.Error(addError))
		return
	}
	owners[createdPath] = repositoryPath
	*index = sortedOwners(owners)
}

// schedule restarts the quiet-period timer of one repository.
func (service *Service) schedule(ctx context.Context, repositoryPath string, handle ChangeHandler) {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	if existing, pending := service.timers[repositoryPath]; pending {
		existing.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(service.debounce, func() {
		service.mutex.Lock()
		if current, pending := service.timers[repositoryPath]; pending && current == timer {
			delete(service.timers, repositoryPath)
		}
		service.mutex.Unlock()
		if ctx.Err() != nil {
			return
		}
		service.logger.Debug(repositoryChangedMessage, zap.String(repositoryPathFieldConstant, repositoryPath))
		handle(ctx, repositoryPath)
	})
	service.timers[repositoryPath] = timer
}

func (service *Service) stopTimers() {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	for repositoryPath, timer := range service.timers {
		timer.Stop()
		delete(service.timers, repositoryPath)
	}
}

// ownedDirectories maps every directory to watch onto the repository metadata path that owns it.
// Metadata directories contribute themselves and refs/heads; working trees are walked without
// descending into nested metadata, and directories of a nested repository stay with it.
func ownedDirectories(repositoryPaths []string) map[string]string {
	orderedPaths := append([]string{}, repositoryPaths...)
	sort.SliceStable(orderedPaths, func(left int, right int) bool {
		return len(orderedPaths[left]) > len(orderedPaths[right])
	})

	owners := map[string]string{}
	for _, rawPath := range orderedPaths {
		validatedPath, pathError := shared.NewRepositoryPath(rawPath)
		if pathError != nil {
			continue
		}
		metadataDirectory := filepath.Clean(validatedPath.String())
		repositoryPath := validatedPath.String()
		owners[metadataDirectory] = repositoryPath
		owners[filepath.Join(metadataDirectory, referencesDirectoryNameConstant, headsDirectoryNameConstant)] = repositoryPath

		if shared.IsBareRepositoryPath(validatedPath) {
			continue
		}
		workingDirectory := shared.DescribeRepositoryPath(validatedPath).RepositoryDirectory
		_ = filepath.WalkDir(workingDirectory, func(currentPath string, entry fs.DirEntry, walkError error) error {
			if walkError != nil {
				return nil
			}
			if !entry.IsDir() {
				return nil
			}
			if entry.Name() == shared.GitMetadataDirectoryNameConstant {
				return filepath.SkipDir
			}
			if _, claimed := owners[currentPath]; !claimed {
				owners[currentPath] = repositoryPath
			}
			return nil
		})
	}
	return owners
}

type ownerList []string

// sortedOwners orders watched directories longest first so nested repositories win lookups.
func sortedOwners(owners map[string]string) ownerList {
	directories := make(ownerList, 0, len(owners))
	for directory := range owners {
		directories = append(directories, directory)
	}
	sort.Slice(directories, func(left int, right int) bool {
		if len(directories[left]) != len(directories[right]) {
			return len(directories[left]) > len(directories[right])
		}
		return directories[left] < directories[right]
	})
	return directories
}

func (directories ownerList) lookup(eventPath string, owners map[string]string) (string, bool) {
	cleanedPath := filepath.Clean(eventPath)
	for _, directory := range directories {
		if cleanedPath == directory || strings.HasPrefix(cleanedPath, directory+string(filepath.Separator)) {
			return owners[directory], true
		}
	}
	return "", false
}
