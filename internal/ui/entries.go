package ui

import (
	"github.com/temirov/gitscan/internal/inventory"
	"github.com/temirov/gitscan/internal/repos/shared"
	"github.com/temirov/gitscan/internal/repos/status"
	"github.com/temirov/gitscan/internal/scan"
)

// Entry is one rendered repository: a status snapshot, or a placeholder when Status is nil.
type Entry struct {
	Path                string                   `json:"path" yaml:"path"`
	Name                string                   `json:"name" yaml:"name"`
	RepositoryDirectory string                   `json:"repository_directory" yaml:"repository_directory"`
	ContainingDirectory string                   `json:"containing_directory" yaml:"containing_directory"`
	Status              *status.RepositoryStatus `json:"status" yaml:"status"`
	Failure             string                   `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// EntriesFromReport converts scan results, keeping request order.
func EntriesFromReport(report scan.Report) []Entry {
	entries := make([]Entry, 0, len(report.Results))
	for _, result := range report.Results {
		failure := ""
		if result.Failure != nil {
			failure = result.Failure.Error()
		}
		entries = append(entries, newEntry(result.Path, result.Location, result.Status, failure))
	}
	return entries
}

// EntriesFromSnapshots converts stored snapshot rows, keeping their order.
func EntriesFromSnapshots(snapshots []inventory.Snapshot) []Entry {
	entries := make([]Entry, 0, len(snapshots))
	for _, snapshot := range snapshots {
		entries = append(entries, newEntry(snapshot.Path, describeLocation(snapshot.Path), snapshot.Status, snapshot.Failure))
	}
	return entries
}

// EntryFromStatus wraps a single freshly read snapshot.
func EntryFromStatus(repositoryPath string, repositoryStatus status.RepositoryStatus) Entry {
	return newEntry(repositoryPath, describeLocation(repositoryPath), &repositoryStatus, "")
}

// EntryFromFailure builds the placeholder for a repository that could not be read.
func EntryFromFailure(repositoryPath string, failure error) Entry {
	message := ""
	if failure != nil {
		message = failure.Error()
	}
	return newEntry(repositoryPath, describeLocation(repositoryPath), nil, message)
}

func newEntry(repositoryPath string, location shared.RepositoryLocation, repositoryStatus *status.RepositoryStatus, failure string) Entry {
	if len(location.Name) == 0 {
		location = describeLocation(repositoryPath)
	}
	entry := Entry{
		Path:                repositoryPath,
		Name:                location.Name,
		RepositoryDirectory: location.RepositoryDirectory,
		ContainingDirectory: location.ContainingDirectory,
		Status:              repositoryStatus,
		Failure:             failure,
	}
	if repositoryStatus != nil {
		entry.Name = repositoryStatus.Name
		entry.RepositoryDirectory = repositoryStatus.RepositoryDirectory
		entry.ContainingDirectory = repositoryStatus.ContainingDirectory
	}
	return entry
}

func describeLocation(repositoryPath string) shared.RepositoryLocation {
	validatedPath, pathError := shared.NewRepositoryPath(repositoryPath)
	if pathError != nil {
		return shared.RepositoryLocation{}
	}
	return shared.DescribeRepositoryPath(validatedPath)
}
