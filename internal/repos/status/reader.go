package status

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/temirov/gitscan/internal/fetch"
	"github.com/temirov/gitscan/internal/repos/shared"
)

const (
	openRepositoryErrorTemplate      = "open %s"
	reopenRepositoryErrorTemplate    = "reopen %s after fetch"
	queryRepositoryErrorTemplate     = "query %s"
	panicRecoveredTemplate           = "panic while reading %s: %v"
	repositoryReadMessage            = "repository read"
	repositoryUnreadableMessage      = "repository unreadable"
	repositoryReadCancelledMessage   = "repository read cancelled"
	remoteFetchedMessage             = "remote fetched"
	repositoryPathFieldConstant      = "repository_path"
	remoteNameFieldConstant          = "remote_name"
	fetchOutcomeFieldConstant        = "fetch_outcome"
	aheadCountFieldConstant          = "ahead_count"
	behindCountFieldConstant         = "behind_count"
	warningFieldConstant             = "warning"
	defaultRecentCommitLimitConstant = 20
	readCancelledMessageConstant     = "read abandoned"
)

// Fetcher contacts one remote of a repository and reports a single outcome flag.
type Fetcher interface {
	Fetch(ctx context.Context, repositoryDirectory string, remoteName string) fetch.Outcome
}

// Reader builds RepositoryStatus snapshots from local metadata, fetching remotes first when asked.
type Reader struct {
	fetcher Fetcher
	logger  *zap.Logger
}

// NewReader constructs a Reader. A nil fetcher is allowed when reads never enable fetching.
func NewReader(fetcher Fetcher, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{fetcher: fetcher, logger: logger}
}

// Read produces the status of the repository whose metadata directory is repositoryPath.
//
// Every open or query failure is reported as ErrRepositoryUnreadable and a cancelled ctx as
// ErrReadCancelled; no partial snapshot is ever returned. Fetch failures are not errors: they
// are recorded in the Fetch summary and surfaced through Warning.
func (reader *Reader) Read(ctx context.Context, repositoryPath string, fetchEnabled bool) (repositoryStatus RepositoryStatus, readError error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			repositoryStatus = RepositoryStatus{}
			readError = errors.Mark(errors.Newf(panicRecoveredTemplate, repositoryPath, recovered), ErrRepositoryUnreadable)
		}
		reader.logOutcome(repositoryPath, repositoryStatus, readError)
	}()

	validatedPath, pathError := shared.NewRepositoryPath(repositoryPath)
	if pathError != nil {
		return RepositoryStatus{}, errors.Mark(pathError, ErrRepositoryUnreadable)
	}
	location := shared.DescribeRepositoryPath(validatedPath)

	repository, openError := openRepository(location.RepositoryDirectory)
	if openError != nil {
		return RepositoryStatus{}, unreadable(openError, openRepositoryErrorTemplate, repositoryPath)
	}

	if ctx.Err() != nil {
		return RepositoryStatus{}, cancelled(ctx)
	}

	metadata, metadataError := collectMetadata(repository)
	if metadataError != nil {
		return RepositoryStatus{}, unreadable(metadataError, queryRepositoryErrorTemplate, repositoryPath)
	}

	repositoryStatus = RepositoryStatus{
		Name:                location.Name,
		ContainingDirectory: location.ContainingDirectory,
		RepositoryDirectory: location.RepositoryDirectory,
		Bare:                metadata.bare,
		DetachedHead:        metadata.detached,
		Remotes:             metadata.remotes,
		Branches:            metadata.branches,
		BranchName:          metadata.displayBranchName(),
		TagCount:            metadata.tagCount,
		Submodules:          metadata.submodules,
		CommitCount:         metadata.commitCount,
		LastCommitTime:      metadata.lastCommitTime,
		UntrackedCount:      metadata.untrackedCount,
		Stash:               metadata.stash,
		IndexChanges:        metadata.indexChanges,
		WorkingTreeChanges:  metadata.workingTreeChanges,
	}

	if !metadata.bare && len(metadata.branches) > 0 {
		if fetchEnabled && len(metadata.remotes) > 0 {
			fetchSummary, fetchError := reader.fetchRemotes(ctx, location.RepositoryDirectory, metadata.remotes)
			if fetchError != nil {
				return RepositoryStatus{}, fetchError
			}
			repositoryStatus.Fetch = fetchSummary

			repository, openError = openRepository(location.RepositoryDirectory)
			if openError != nil {
				return RepositoryStatus{}, unreadable(openError, reopenRepositoryErrorTemplate, repositoryPath)
			}
		}

		divergence, divergenceError := computeDivergence(repository, metadata.branches)
		if divergenceError != nil {
			return RepositoryStatus{}, unreadable(divergenceError, queryRepositoryErrorTemplate, repositoryPath)
		}
		repositoryStatus.AheadCount = divergence.ahead
		repositoryStatus.BehindCount = divergence.behind
	}

	repositoryStatus.Warning = deriveWarning(len(repositoryStatus.Remotes), repositoryStatus.Fetch)
	return repositoryStatus, nil
}

// fetchRemotes contacts remotes one at a time, in declaration order, stopping when ctx is cancelled.
func (reader *Reader) fetchRemotes(ctx context.Context, repositoryDirectory string, remotes []string) (fetch.Summary, error) {
	var summary fetch.Summary
	for _, remoteName := range remotes {
		if ctx.Err() != nil {
			return fetch.Summary{}, cancelled(ctx)
		}
		outcome := reader.fetcher.Fetch(ctx, repositoryDirectory, remoteName)
		reader.logger.Debug(remoteFetchedMessage,
			zap.String(repositoryPathFieldConstant, repositoryDirectory),
			zap.String(remoteNameFieldConstant, remoteName),
			zap.Stringer(fetchOutcomeFieldConstant, outcome),
		)
		summary.Record(outcome)
		if ctx.Err() != nil {
			return fetch.Summary{}, cancelled(ctx)
		}
	}
	return summary, nil
}

// RecentCommits lists up to limit commits reachable from HEAD, newest first.
func (reader *Reader) RecentCommits(ctx context.Context, repositoryPath string, limit int) ([]CommitSummary, error) {
	if limit <= 0 {
		limit = defaultRecentCommitLimitConstant
	}

	validatedPath, pathError := shared.NewRepositoryPath(repositoryPath)
	if pathError != nil {
		return nil, errors.Mark(pathError, ErrRepositoryUnreadable)
	}
	location := shared.DescribeRepositoryPath(validatedPath)

	repository, openError := openRepository(location.RepositoryDirectory)
	if openError != nil {
		return nil, unreadable(openError, openRepositoryErrorTemplate, repositoryPath)
	}

	headReference, headError := repository.Head()
	if errors.Is(headError, plumbing.ErrReferenceNotFound) {
		return []CommitSummary{}, nil
	}
	if headError != nil {
		return nil, unreadable(headError, queryRepositoryErrorTemplate, repositoryPath)
	}

	commitIterator, logError := repository.Log(&git.LogOptions{From: headReference.Hash(), Order: git.LogOrderCommitterTime})
	if logError != nil {
		return nil, unreadable(logError, queryRepositoryErrorTemplate, repositoryPath)
	}
	defer commitIterator.Close()

	commits := make([]CommitSummary, 0, limit)
	iterationError := commitIterator.ForEach(func(commit *object.Commit) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		commits = append(commits, CommitSummary{
			Hash:    commit.Hash.String(),
			Author:  commit.Author.Name,
			When:    commit.Author.When,
			Summary: firstLine(commit.Message),
		})
		if len(commits) >= limit {
			return errStopIteration
		}
		return nil
	})
	if errors.Is(iterationError, errStopIteration) {
		return commits, nil
	}
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}
	if iterationError != nil {
		return nil, unreadable(iterationError, queryRepositoryErrorTemplate, repositoryPath)
	}
	return commits, nil
}

func (reader *Reader) logOutcome(repositoryPath string, repositoryStatus RepositoryStatus, readError error) {
	switch {
	case readError == nil:
		reader.logger.Debug(repositoryReadMessage,
			zap.String(repositoryPathFieldConstant, repositoryPath),
			zap.Int(aheadCountFieldConstant, repositoryStatus.AheadCount),
			zap.Int(behindCountFieldConstant, repositoryStatus.BehindCount),
			zap.String(warningFieldConstant, repositoryStatus.Warning),
		)
	case errors.Is(readError, ErrReadCancelled):
		reader.logger.Debug(repositoryReadCancelledMessage, zap.String(repositoryPathFieldConstant, repositoryPath))
	default:
		reader.logger.Warn(repositoryUnreadableMessage, zap.String(repositoryPathFieldConstant, repositoryPath), zap.Error(readError))
	}
}

// openRepository opens an ordinary repository by its working directory or a bare one by its own path.
func openRepository(repositoryDirectory string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(repositoryDirectory, &git.PlainOpenOptions{EnableDotGitCommonDir: true})
}

func unreadable(cause error, template string, repositoryPath string) error {
	return errors.Mark(errors.Wrapf(cause, template, repositoryPath), ErrRepositoryUnreadable)
}

func cancelled(ctx context.Context) error {
	return errors.Mark(errors.Wrap(ctx.Err(), readCancelledMessageConstant), ErrReadCancelled)
}
