package scan

import (
	"time"

	"github.com/temirov/gitscan/internal/repos/shared"
	"github.com/temirov/gitscan/internal/repos/status"
)

// State is the lifecycle position of one scan request.
type State string

// Scan lifecycle states.
const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// Request lists repository metadata paths to read and whether remotes are contacted first.
type Request struct {
	Paths        []string
	FetchRemotes bool
}

// Result describes the repository at one request path. A nil Status marks it unreadable.
type Result struct {
	Path     string
	Location shared.RepositoryLocation
	Status   *status.RepositoryStatus
	Failure  error
}

// Readable reports whether a status snapshot was produced.
func (result Result) Readable() bool {
	return result.Status != nil
}

// Report holds one result per request path, in request order.
type Report struct {
	ID       string
	State    State
	Started  time.Time
	Finished time.Time
	Results  []Result
}

// Statuses returns the snapshots in request order with nil for unreadable slots.
func (report Report) Statuses() []*status.RepositoryStatus {
	statuses := make([]*status.RepositoryStatus, len(report.Results))
	for index, result := range report.Results {
		statuses[index] = result.Status
	}
	return statuses
}
