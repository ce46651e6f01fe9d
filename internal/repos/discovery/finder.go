package discovery

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/temirov/gitscan/internal/repos/filesystem"
	"github.com/temirov/gitscan/internal/repos/shared"
)

const (
	headFileNameConstant               = "HEAD"
	referencesDirectoryNameConstant    = "refs"
	objectsDirectoryNameConstant       = "objects"
	submoduleBookkeepingDirectoryName  = "modules"
	rootResolutionErrorMessageConstant = "unable to resolve search root"
	excludedResolutionErrorMessage     = "unable to resolve excluded directory"
	searchStoppedMessageConstant       = "repository search stopped"
	unreadableDirectorySkippedMessage  = "skipping unreadable directory"
	rootDirectoryFieldConstant         = "root_directory"
	repositoryCountFieldConstant       = "repository_count"
	directoryPathFieldConstant         = "directory_path"
)

// Finder locates repository metadata directories beneath a root directory.
type Finder struct {
	fileSystem shared.FileSystem
	logger     *zap.Logger
}

// NewFinder constructs a Finder backed by the operating system filesystem.
func NewFinder(logger *zap.Logger) *Finder {
	return NewFinderWithFileSystem(filesystem.OSFileSystem{}, logger)
}

// NewFinderWithFileSystem constructs a Finder that inspects directories through fileSystem.
func NewFinderWithFileSystem(fileSystem shared.FileSystem, logger *zap.Logger) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{fileSystem: fileSystem, logger: logger}
}

// FindRepositories walks rootDirectory depth first and returns every directory holding HEAD, refs, and objects.
//
// Directories equal to or beneath an excluded directory are never entered, nor are the "modules"
// directories git keeps inside repository metadata for submodules. Cancelling ctx halts the walk;
// the repositories found so far are returned without error. The result is sorted.
func (finder *Finder) FindRepositories(ctx context.Context, rootDirectory string, excludedDirectories []string) ([]string, error) {
	absoluteRoot, rootError := finder.fileSystem.Abs(rootDirectory)
	if rootError != nil {
		return nil, errors.Wrap(rootError, rootResolutionErrorMessageConstant)
	}

	absoluteExclusions := make([]string, 0, len(excludedDirectories))
	for _, excludedDirectory := range excludedDirectories {
		if len(strings.TrimSpace(excludedDirectory)) == 0 {
			continue
		}
		absoluteExclusion, exclusionError := finder.fileSystem.Abs(excludedDirectory)
		if exclusionError != nil {
			return nil, errors.Wrapf(exclusionError, "%s %s", excludedResolutionErrorMessage, excludedDirectory)
		}
		absoluteExclusions = append(absoluteExclusions, absoluteExclusion)
	}

	repositories := []string{}
	walkError := filepath.WalkDir(absoluteRoot, func(path string, directoryEntry fs.DirEntry, walkError error) error {
		if walkError != nil {
			finder.logger.Debug(unreadableDirectorySkippedMessage, zap.String(directoryPathFieldConstant, path), zap.Error(walkError))
			if directoryEntry != nil && directoryEntry.IsDir() && path != absoluteRoot {
				return fs.SkipDir
			}
			return nil
		}
		if !directoryEntry.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return fs.SkipAll
		}

		if path != absoluteRoot && finder.shouldSkip(path, directoryEntry.Name(), absoluteExclusions) {
			return fs.SkipDir
		}

		if finder.isRepositoryMetadataDirectory(path) {
			repositories = append(repositories, path)
		}
		return nil
	})
	if walkError != nil {
		return nil, walkError
	}

	if ctx.Err() != nil {
		finder.logger.Info(searchStoppedMessageConstant, zap.String(rootDirectoryFieldConstant, absoluteRoot), zap.Int(repositoryCountFieldConstant, len(repositories)))
	}

	sort.Strings(repositories)
	return repositories, nil
}

func (finder *Finder) shouldSkip(directoryPath string, directoryName string, absoluteExclusions []string) bool {
	for _, exclusion := range absoluteExclusions {
		if isSameOrDescendant(directoryPath, exclusion) {
			return true
		}
	}
	if directoryName == submoduleBookkeepingDirectoryName && finder.isRepositoryMetadataDirectory(filepath.Dir(directoryPath)) {
		return true
	}
	return false
}

func (finder *Finder) isRepositoryMetadataDirectory(directoryPath string) bool {
	headInfo, headError := finder.fileSystem.Stat(filepath.Join(directoryPath, headFileNameConstant))
	if headError != nil || headInfo.IsDir() {
		return false
	}
	for _, requiredDirectory := range []string{referencesDirectoryNameConstant, objectsDirectoryNameConstant} {
		directoryInfo, directoryError := finder.fileSystem.Stat(filepath.Join(directoryPath, requiredDirectory))
		if directoryError != nil || !directoryInfo.IsDir() {
			return false
		}
	}
	return true
}

func isSameOrDescendant(candidatePath string, ancestorPath string) bool {
	if candidatePath == ancestorPath {
		return true
	}
	relativePath, relativeError := filepath.Rel(ancestorPath, candidatePath)
	if relativeError != nil {
		return false
	}
	return relativePath != "." && relativePath != ".." && !strings.HasPrefix(relativePath, ".."+string(filepath.Separator))
}
