package shared

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	// GitMetadataDirectoryNameConstant names the metadata directory of a non-bare repository.
	GitMetadataDirectoryNameConstant = ".git"

	repositoryPathEmptyMessageConstant   = "repository path must not be empty"
	repositoryPathNewlineMessageConstant = "repository path must not contain line breaks"
	remoteNameEmptyMessageConstant       = "remote name must not be empty"
	remoteNameWhitespaceMessageConstant  = "remote name must not contain whitespace"
	remoteNameOptionMessageConstant      = "remote name must not start with a dash"
	lineBreakCharactersConstant          = "\r\n"
	whitespaceCharactersConstant         = " \t\r\n"
)

var (
	// ErrRepositoryPathInvalid reports a malformed repository path.
	ErrRepositoryPathInvalid = errors.New("invalid repository path")
	// ErrRemoteNameInvalid reports a malformed remote name.
	ErrRemoteNameInvalid = errors.New("invalid remote name")
)

// RepositoryPath names a repository metadata directory: the directory that holds HEAD, refs, and objects.
// For ordinary repositories it ends in ".git"; for bare repositories it is the repository itself.
type RepositoryPath string

// NewRepositoryPath trims and validates a repository path.
func NewRepositoryPath(raw string) (RepositoryPath, error) {
	trimmed := strings.Trim(raw, " \t")
	if len(trimmed) == 0 {
		return "", errors.Wrap(ErrRepositoryPathInvalid, repositoryPathEmptyMessageConstant)
	}
	if strings.ContainsAny(trimmed, lineBreakCharactersConstant) {
		return "", errors.Wrap(ErrRepositoryPathInvalid, repositoryPathNewlineMessageConstant)
	}
	return RepositoryPath(trimmed), nil
}

// String returns the raw path.
func (path RepositoryPath) String() string {
	return string(path)
}

// RemoteName identifies a configured git remote.
type RemoteName string

// NewRemoteName trims and validates a remote name. Names starting with "-" are rejected
// because git would parse them as options.
func NewRemoteName(raw string) (RemoteName, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", errors.Wrap(ErrRemoteNameInvalid, remoteNameEmptyMessageConstant)
	}
	if strings.ContainsAny(trimmed, whitespaceCharactersConstant) {
		return "", errors.Wrap(ErrRemoteNameInvalid, remoteNameWhitespaceMessageConstant)
	}
	if strings.HasPrefix(trimmed, "-") {
		return "", errors.Wrap(ErrRemoteNameInvalid, remoteNameOptionMessageConstant)
	}
	return RemoteName(trimmed), nil
}

// String returns the raw remote name.
func (name RemoteName) String() string {
	return string(name)
}

// RepositoryLocation carries the names inferred from a repository path alone.
type RepositoryLocation struct {
	Name                string
	RepositoryDirectory string
	ContainingDirectory string
}

// DescribeRepositoryPath infers display name and directories without touching the filesystem.
//
// A path ending in ".git" describes an ordinary repository whose working tree is the parent
// directory; any other path is treated as a bare repository. The name has its extension
// stripped, so "project.git" becomes "project".
func DescribeRepositoryPath(path RepositoryPath) RepositoryLocation {
	cleanedPath := filepath.Clean(path.String())

	repositoryDirectory := cleanedPath
	if filepath.Base(cleanedPath) == GitMetadataDirectoryNameConstant {
		repositoryDirectory = filepath.Dir(cleanedPath)
	}

	baseName := filepath.Base(repositoryDirectory)
	return RepositoryLocation{
		Name:                strings.TrimSuffix(baseName, filepath.Ext(baseName)),
		RepositoryDirectory: repositoryDirectory,
		ContainingDirectory: filepath.Dir(repositoryDirectory),
	}
}

// IsBareRepositoryPath reports whether the path names a bare repository rather than a ".git" directory.
func IsBareRepositoryPath(path RepositoryPath) bool {
	return filepath.Base(filepath.Clean(path.String())) != GitMetadataDirectoryNameConstant
}

// FileSystem exposes filesystem operations required by repository services.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Abs(path string) (string, error)
}
