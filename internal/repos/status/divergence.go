package status

import (
	"github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const localRemoteNameConstant = "."

type divergence struct {
	ahead  int
	behind int
}

// computeDivergence sums, over every local branch whose tracking reference still resolves,
// the commits only the branch has (ahead) and the commits only the tracking reference has (behind).
func computeDivergence(repository *git.Repository, branches []string) (divergence, error) {
	repositoryConfig, configError := repository.Config()
	if configError != nil {
		return divergence{}, configError
	}

	total := divergence{}
	for _, branchName := range branches {
		branchConfig, configured := repositoryConfig.Branches[branchName]
		if !configured || len(branchConfig.Merge) == 0 || len(branchConfig.Remote) == 0 {
			continue
		}

		localReference, localError := repository.Reference(plumbing.NewBranchReferenceName(branchName), true)
		if localError != nil {
			return divergence{}, localError
		}

		trackingReference, trackingError := repository.Reference(trackingReferenceName(branchConfig.Remote, branchConfig.Merge), true)
		if errors.Is(trackingError, plumbing.ErrReferenceNotFound) {
			continue
		}
		if trackingError != nil {
			return divergence{}, trackingError
		}

		branchDivergence, countError := countDivergence(repository, localReference.Hash(), trackingReference.Hash())
		if countError != nil {
			return divergence{}, countError
		}
		total.ahead += branchDivergence.ahead
		total.behind += branchDivergence.behind
	}
	return total, nil
}

// trackingReferenceName maps branch.<name>.remote and branch.<name>.merge to the local ref that mirrors the upstream.
func trackingReferenceName(remoteName string, mergeReference plumbing.ReferenceName) plumbing.ReferenceName {
	if remoteName == localRemoteNameConstant {
		return mergeReference
	}
	return plumbing.NewRemoteReferenceName(remoteName, mergeReference.Short())
}

func countDivergence(repository *git.Repository, localHash plumbing.Hash, trackingHash plumbing.Hash) (divergence, error) {
	if localHash == trackingHash {
		return divergence{}, nil
	}

	localAncestry, localError := reachableCommits(repository, localHash)
	if localError != nil {
		return divergence{}, localError
	}
	trackingAncestry, trackingError := reachableCommits(repository, trackingHash)
	if trackingError != nil {
		return divergence{}, trackingError
	}

	result := divergence{}
	for commitHash := range localAncestry {
		if !trackingAncestry[commitHash] {
			result.ahead++
		}
	}
	for commitHash := range trackingAncestry {
		if !localAncestry[commitHash] {
			result.behind++
		}
	}
	return result, nil
}

func reachableCommits(repository *git.Repository, tipHash plumbing.Hash) (map[plumbing.Hash]bool, error) {
	tipCommit, commitError := repository.CommitObject(tipHash)
	if commitError != nil {
		return nil, commitError
	}

	reachable := map[plumbing.Hash]bool{}
	commitIterator := object.NewCommitPreorderIter(tipCommit, nil, nil)
	defer commitIterator.Close()

	iterationError := commitIterator.ForEach(func(commit *object.Commit) error {
		reachable[commit.Hash] = true
		return nil
	})
	if iterationError != nil {
		return nil, iterationError
	}
	return reachable, nil
}
