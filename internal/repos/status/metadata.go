package status

import (
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	remoteSectionNameConstant  = "remote"
	stashReferenceNameConstant = plumbing.ReferenceName("refs/stash")
)

var errStopIteration = errors.New("stop iteration")

// repositoryMetadata holds everything read from local metadata before any remote is contacted.
type repositoryMetadata struct {
	bare               bool
	detached           bool
	headBranch         string
	remotes            []string
	branches           []string
	tagCount           int
	submodules         []string
	commitCount        int
	lastCommitTime     *time.Time
	untrackedCount     int
	stash              bool
	indexChanges       bool
	workingTreeChanges bool
}

func (metadata repositoryMetadata) displayBranchName() string {
	if metadata.detached {
		return DetachedBranchDisplayName
	}
	if len(metadata.branches) == 0 || len(metadata.headBranch) == 0 {
		return NoBranchDisplayName
	}
	return metadata.headBranch
}

func collectMetadata(repository *git.Repository) (repositoryMetadata, error) {
	metadata := repositoryMetadata{}

	worktree, worktreeError := repository.Worktree()
	switch {
	case errors.Is(worktreeError, git.ErrIsBareRepository):
		metadata.bare = true
	case worktreeError != nil:
		return repositoryMetadata{}, worktreeError
	}

	headReference, headError := repository.Storer.Reference(plumbing.HEAD)
	if headError != nil {
		return repositoryMetadata{}, headError
	}
	if headReference.Type() == plumbing.HashReference {
		metadata.detached = !metadata.bare
	} else {
		metadata.headBranch = headReference.Target().Short()
	}

	repositoryConfig, configError := repository.Config()
	if configError != nil {
		return repositoryMetadata{}, configError
	}
	metadata.remotes = declaredRemotes(repositoryConfig)

	branches, branchesError := localBranches(repository)
	if branchesError != nil {
		return repositoryMetadata{}, branchesError
	}
	metadata.branches = branchNames(branches)

	tagCount, tagError := countTags(repository)
	if tagError != nil {
		return repositoryMetadata{}, tagError
	}
	metadata.tagCount = tagCount

	commitCount, commitCountError := countHeadCommits(repository)
	if commitCountError != nil {
		return repositoryMetadata{}, commitCountError
	}
	metadata.commitCount = commitCount

	lastCommitTime, lastCommitError := latestBranchCommitTime(repository, branches)
	if lastCommitError != nil {
		return repositoryMetadata{}, lastCommitError
	}
	metadata.lastCommitTime = lastCommitTime

	if metadata.bare {
		metadata.submodules = []string{}
		return metadata, nil
	}

	if worktreeStateError := collectWorktreeState(repository, worktree, &metadata); worktreeStateError != nil {
		return repositoryMetadata{}, worktreeStateError
	}
	return metadata, nil
}

// declaredRemotes lists remotes in the order they appear in the repository configuration.
func declaredRemotes(repositoryConfig *config.Config) []string {
	remotes := []string{}
	seen := map[string]struct{}{}
	if repositoryConfig.Raw != nil {
		for _, subsection := range repositoryConfig.Raw.Section(remoteSectionNameConstant).Subsections {
			if _, configured := repositoryConfig.Remotes[subsection.Name]; !configured {
				continue
			}
			if _, duplicate := seen[subsection.Name]; duplicate {
				continue
			}
			seen[subsection.Name] = struct{}{}
			remotes = append(remotes, subsection.Name)
		}
	}

	remaining := []string{}
	for remoteName := range repositoryConfig.Remotes {
		if _, listed := seen[remoteName]; !listed {
			remaining = append(remaining, remoteName)
		}
	}
	sort.Strings(remaining)
	return append(remotes, remaining...)
}

func localBranches(repository *git.Repository) ([]*plumbing.Reference, error) {
	branchIterator, branchesError := repository.Branches()
	if branchesError != nil {
		return nil, branchesError
	}
	defer branchIterator.Close()

	branches := []*plumbing.Reference{}
	iterationError := branchIterator.ForEach(func(reference *plumbing.Reference) error {
		branches = append(branches, reference)
		return nil
	})
	if iterationError != nil {
		return nil, iterationError
	}
	sort.Slice(branches, func(left int, right int) bool {
		return branches[left].Name() < branches[right].Name()
	})
	return branches, nil
}

func branchNames(branches []*plumbing.Reference) []string {
	names := make([]string, 0, len(branches))
	for _, branch := range branches {
		names = append(names, branch.Name().Short())
	}
	return names
}

func countTags(repository *git.Repository) (int, error) {
	tagIterator, tagsError := repository.Tags()
	if tagsError != nil {
		return 0, tagsError
	}
	defer tagIterator.Close()

	tagCount := 0
	iterationError := tagIterator.ForEach(func(*plumbing.Reference) error {
		tagCount++
		return nil
	})
	return tagCount, iterationError
}

// countHeadCommits counts commits reachable from HEAD; an unborn HEAD has none.
func countHeadCommits(repository *git.Repository) (int, error) {
	headReference, headError := repository.Head()
	if errors.Is(headError, plumbing.ErrReferenceNotFound) {
		return 0, nil
	}
	if headError != nil {
		return 0, headError
	}

	commitIterator, logError := repository.Log(&git.LogOptions{From: headReference.Hash()})
	if logError != nil {
		return 0, logError
	}
	defer commitIterator.Close()

	commitCount := 0
	iterationError := commitIterator.ForEach(func(*object.Commit) error {
		commitCount++
		return nil
	})
	return commitCount, iterationError
}

// latestBranchCommitTime returns the newest committer time among branch tips, or nil without branches.
func latestBranchCommitTime(repository *git.Repository, branches []*plumbing.Reference) (*time.Time, error) {
	var latest *time.Time
	for _, branch := range branches {
		tipCommit, commitError := repository.CommitObject(branch.Hash())
		if commitError != nil {
			return nil, commitError
		}
		committedAt := tipCommit.Committer.When
		if latest == nil || committedAt.After(*latest) {
			latest = &committedAt
		}
	}
	return latest, nil
}

func collectWorktreeState(repository *git.Repository, worktree *git.Worktree, metadata *repositoryMetadata) error {
	worktreeStatus, statusError := worktree.Status()
	if statusError != nil {
		return statusError
	}
	for _, fileStatus := range worktreeStatus {
		if fileStatus.Worktree == git.Untracked || fileStatus.Staging == git.Untracked {
			metadata.untrackedCount++
			continue
		}
		if fileStatus.Staging != git.Unmodified {
			metadata.indexChanges = true
		}
		if fileStatus.Worktree != git.Unmodified {
			metadata.workingTreeChanges = true
		}
	}

	submodules, submodulesError := worktree.Submodules()
	if submodulesError != nil {
		return submodulesError
	}
	metadata.submodules = make([]string, 0, len(submodules))
	for _, submodule := range submodules {
		metadata.submodules = append(metadata.submodules, submodule.Config().Name)
		if submoduleIsDirty(submodule) {
			metadata.workingTreeChanges = true
		}
	}
	sort.Strings(metadata.submodules)

	_, stashError := repository.Storer.Reference(stashReferenceNameConstant)
	switch {
	case stashError == nil:
		metadata.stash = true
	case !errors.Is(stashError, plumbing.ErrReferenceNotFound):
		return stashError
	}
	return nil
}

// submoduleIsDirty reports a checked-out submodule whose commit or contents differ from the superproject's record.
// Submodules that were never initialized carry no local state and count as clean.
func submoduleIsDirty(submodule *git.Submodule) bool {
	submoduleStatus, statusError := submodule.Status()
	if statusError != nil || submoduleStatus.Current.IsZero() {
		return false
	}
	if !submoduleStatus.IsClean() {
		return true
	}

	submoduleRepository, repositoryError := submodule.Repository()
	if repositoryError != nil {
		return false
	}
	submoduleWorktree, worktreeError := submoduleRepository.Worktree()
	if worktreeError != nil {
		return false
	}
	contentStatus, contentError := submoduleWorktree.Status()
	if contentError != nil {
		return false
	}
	return !contentStatus.IsClean()
}

func firstLine(message string) string {
	trimmed := strings.TrimSpace(message)
	if newlineIndex := strings.IndexByte(trimmed, '\n'); newlineIndex >= 0 {
		return strings.TrimSpace(trimmed[:newlineIndex])
	}
	return trimmed
}
