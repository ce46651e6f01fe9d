package fetch

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v4/process"
)

// ProcessState is the observation of one process in a supervised tree.
type ProcessState struct {
	PID    int32
	Active bool
}

// ProcessTreeSnapshot is one observation of a supervised root process and its descendants.
type ProcessTreeSnapshot struct {
	RootPresent bool
	Root        ProcessState
	Descendants []ProcessState
}

// Size counts the observed processes, root included.
func (snapshot ProcessTreeSnapshot) Size() int {
	size := len(snapshot.Descendants)
	if snapshot.RootPresent {
		size++
	}
	return size
}

// Active reports whether any observed process was running or idle.
func (snapshot ProcessTreeSnapshot) Active() bool {
	if snapshot.RootPresent && snapshot.Root.Active {
		return true
	}
	for _, descendant := range snapshot.Descendants {
		if descendant.Active {
			return true
		}
	}
	return false
}

// DescendantPIDs lists descendant identifiers, deepest last.
func (snapshot ProcessTreeSnapshot) DescendantPIDs() []int32 {
	identifiers := make([]int32, 0, len(snapshot.Descendants))
	for _, descendant := range snapshot.Descendants {
		identifiers = append(identifiers, descendant.PID)
	}
	return identifiers
}

// ProcessInspector observes and terminates processes in the host process table.
type ProcessInspector interface {
	Inspect(ctx context.Context, rootPID int32) ProcessTreeSnapshot
	Kill(ctx context.Context, pid int32) error
}

// GopsutilInspector reads the process table through gopsutil.
type GopsutilInspector struct{}

// NewGopsutilInspector constructs a process inspector backed by gopsutil.
func NewGopsutilInspector() GopsutilInspector {
	return GopsutilInspector{}
}

// Inspect walks the tree rooted at rootPID. Processes that vanish mid-walk contribute no activity.
func (GopsutilInspector) Inspect(ctx context.Context, rootPID int32) ProcessTreeSnapshot {
	rootProcess, rootError := process.NewProcessWithContext(ctx, rootPID)
	if rootError != nil {
		return ProcessTreeSnapshot{}
	}

	snapshot := ProcessTreeSnapshot{
		RootPresent: true,
		Root:        ProcessState{PID: rootPID, Active: isActive(ctx, rootProcess)},
	}

	visited := map[int32]struct{}{rootPID: {}}
	pending := []*process.Process{rootProcess}
	for len(pending) > 0 {
		parent := pending[0]
		pending = pending[1:]

		children, childrenError := parent.ChildrenWithContext(ctx)
		if childrenError != nil {
			continue
		}
		for _, child := range children {
			if _, seen := visited[child.Pid]; seen {
				continue
			}
			visited[child.Pid] = struct{}{}
			snapshot.Descendants = append(snapshot.Descendants, ProcessState{PID: child.Pid, Active: isActive(ctx, child)})
			pending = append(pending, child)
		}
	}

	return snapshot
}

// Kill terminates a single process; a process that already exited is not an error.
func (GopsutilInspector) Kill(ctx context.Context, pid int32) error {
	target, lookupError := process.NewProcessWithContext(ctx, pid)
	if lookupError != nil {
		if errors.Is(lookupError, process.ErrorProcessNotRunning) {
			return nil
		}
		return lookupError
	}
	return target.KillWithContext(ctx)
}

func isActive(ctx context.Context, observed *process.Process) bool {
	statuses, statusError := observed.StatusWithContext(ctx)
	if statusError != nil {
		return false
	}
	return slices.Contains(statuses, process.Running) || slices.Contains(statuses, process.Idle)
}
