package status

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/temirov/gitscan/internal/fetch"
)

const (
	// NoBranchDisplayName is shown when a repository has no local branches.
	NoBranchDisplayName = "-"
	// DetachedBranchDisplayName is shown when HEAD points directly at a commit.
	DetachedBranchDisplayName = "DETACHED"

	// WarningRemotesNotFetched flags remotes that were not contacted during the read.
	WarningRemotesNotFetched = "remotes not fetched"
	// WarningFetchFailed flags at least one fetch that exited unsuccessfully.
	WarningFetchFailed = "fetch failed"
	// WarningFetchTimedOut flags at least one fetch aborted by the watchdog.
	WarningFetchTimedOut = "fetch timed out"
)

var (
	// ErrRepositoryUnreadable marks any failure to open or query a repository.
	ErrRepositoryUnreadable = errors.New("repository unreadable")
	// ErrReadCancelled marks a read abandoned because its context was cancelled.
	ErrReadCancelled = errors.New("repository read cancelled")
)

// RepositoryStatus is the point-in-time snapshot of one repository. It is never mutated after Read returns.
type RepositoryStatus struct {
	Name                string        `json:"name" yaml:"name"`
	ContainingDirectory string        `json:"containing_directory" yaml:"containing_directory"`
	RepositoryDirectory string        `json:"repository_directory" yaml:"repository_directory"`
	Bare                bool          `json:"bare" yaml:"bare"`
	DetachedHead        bool          `json:"detached_head" yaml:"detached_head"`
	Remotes             []string      `json:"remotes" yaml:"remotes"`
	Branches            []string      `json:"branches" yaml:"branches"`
	BranchName          string        `json:"branch_name" yaml:"branch_name"`
	TagCount            int           `json:"tag_count" yaml:"tag_count"`
	Submodules          []string      `json:"submodules" yaml:"submodules"`
	CommitCount         int           `json:"commit_count" yaml:"commit_count"`
	LastCommitTime      *time.Time    `json:"last_commit_time,omitempty" yaml:"last_commit_time,omitempty"`
	UntrackedCount      int           `json:"untracked_count" yaml:"untracked_count"`
	Stash               bool          `json:"stash" yaml:"stash"`
	IndexChanges        bool          `json:"index_changes" yaml:"index_changes"`
	WorkingTreeChanges  bool          `json:"working_tree_changes" yaml:"working_tree_changes"`
	AheadCount          int           `json:"ahead_count" yaml:"ahead_count"`
	BehindCount         int           `json:"behind_count" yaml:"behind_count"`
	Fetch               fetch.Summary `json:"fetch_outcome" yaml:"fetch_outcome"`
	Warning             string        `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// UpToDate reports whether no local branch diverges from its tracking branch.
func (repositoryStatus RepositoryStatus) UpToDate() bool {
	return repositoryStatus.AheadCount == 0 && repositoryStatus.BehindCount == 0
}

// Dirty reports whether the index or the working tree holds changes.
func (repositoryStatus RepositoryStatus) Dirty() bool {
	return repositoryStatus.IndexChanges || repositoryStatus.WorkingTreeChanges
}

// CommitSummary describes one commit in a repository log.
type CommitSummary struct {
	Hash    string    `json:"hash" yaml:"hash"`
	Author  string    `json:"author" yaml:"author"`
	When    time.Time `json:"when" yaml:"when"`
	Summary string    `json:"summary" yaml:"summary"`
}

// deriveWarning applies the priority: unfetched remotes, then fetch errors, then fetch timeouts.
func deriveWarning(remoteCount int, summary fetch.Summary) string {
	switch {
	case remoteCount > 0 && !summary.Attempted():
		return WarningRemotesNotFetched
	case summary.Has(fetch.OutcomeError):
		return WarningFetchFailed
	case summary.Has(fetch.OutcomeTimeout):
		return WarningFetchTimedOut
	default:
		return ""
	}
}
