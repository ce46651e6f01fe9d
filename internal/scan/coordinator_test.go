package scan_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/gitscan/internal/repos/status"
	"github.com/temirov/gitscan/internal/scan"
)

const (
	blockingPathConstant    = "/workspace/blocking/.git"
	unreadablePathConstant  = "/workspace/broken/.git"
	testWaitTimeoutConstant = 5 * time.Second
)

var errBrokenRepository = errors.New("broken repository")

type scriptedReader struct {
	mutex         sync.Mutex
	fetchRequests []bool
	started       chan string
	delays        map[string]time.Duration
}

func newScriptedReader() *scriptedReader {
	return &scriptedReader{started: make(chan string, 64), delays: map[string]time.Duration{}}
}

func (reader *scriptedReader) Read(ctx context.Context, repositoryPath string, fetchEnabled bool) (status.RepositoryStatus, error) {
	reader.mutex.Lock()
	reader.fetchRequests = append(reader.fetchRequests, fetchEnabled)
	delay := reader.delays[repositoryPath]
	reader.mutex.Unlock()
	reader.started <- repositoryPath

	switch repositoryPath {
	case blockingPathConstant:
		<-ctx.Done()
		return status.RepositoryStatus{}, ctx.Err()
	case unreadablePathConstant:
		return status.RepositoryStatus{}, errors.Mark(errBrokenRepository, status.ErrRepositoryUnreadable)
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return status.RepositoryStatus{}, ctx.Err()
		}
	}
	return status.RepositoryStatus{RepositoryDirectory: filepath.Dir(repositoryPath)}, nil
}

func TestCoordinatorPreservesRequestOrder(testInstance *testing.T) {
	reader := newScriptedReader()
	paths := []string{
		"/workspace/alpha/.git",
		"/workspace/beta/.git",
		unreadablePathConstant,
		"/workspace/gamma.git",
		"/workspace/delta/.git",
	}
	reader.delays[paths[0]] = 30 * time.Millisecond
	reader.delays[paths[1]] = 10 * time.Millisecond

	coordinator := scan.NewCoordinator(reader, 3, zap.NewNop())
	require.Equal(testInstance, scan.StatePending, coordinator.State())

	report := coordinator.Scan(context.Background(), scan.Request{Paths: paths, FetchRemotes: true})

	require.Equal(testInstance, scan.StateCompleted, report.State)
	require.Equal(testInstance, scan.StateCompleted, coordinator.State())
	require.NotEmpty(testInstance, report.ID)
	require.Len(testInstance, report.Results, len(paths))
	for index, result := range report.Results {
		require.Equal(testInstance, paths[index], result.Path)
		if paths[index] == unreadablePathConstant {
			require.False(testInstance, result.Readable())
			require.ErrorIs(testInstance, result.Failure, status.ErrRepositoryUnreadable)
			require.Equal(testInstance, "broken", result.Location.Name)
			require.Equal(testInstance, "/workspace/broken", result.Location.RepositoryDirectory)
			continue
		}
		require.True(testInstance, result.Readable())
		require.NoError(testInstance, result.Failure)
		require.Equal(testInstance, filepath.Dir(paths[index]), result.Status.RepositoryDirectory)
	}

	statuses := report.Statuses()
	require.Len(testInstance, statuses, len(paths))
	require.Nil(testInstance, statuses[2])
	require.Equal(testInstance, []bool{true, true, true, true, true}, reader.fetchRequests)
}

func TestCoordinatorCancelKeepsCompletedResults(testInstance *testing.T) {
	reader := newScriptedReader()
	paths := []string{"/workspace/one/.git", "/workspace/two/.git", blockingPathConstant}
	for index := 0; index < 7; index++ {
		paths = append(paths, filepath.Join("/workspace", "pending", string(rune('a'+index)), ".git"))
	}

	coordinator := scan.NewCoordinator(reader, 1, zap.NewNop())

	go func() {
		for startedPath := range reader.started {
			if startedPath == blockingPathConstant {
				coordinator.Cancel()
				return
			}
		}
	}()

	reportChannel := make(chan scan.Report, 1)
	go func() {
		reportChannel <- coordinator.Scan(context.Background(), scan.Request{Paths: paths})
	}()

	var report scan.Report
	select {
	case report = <-reportChannel:
	case <-time.After(testWaitTimeoutConstant):
		testInstance.Fatal("scan did not return after cancellation")
	}

	require.Equal(testInstance, scan.StateCancelled, report.State)
	require.Equal(testInstance, scan.StateCancelled, coordinator.State())
	require.Len(testInstance, report.Results, len(paths))
	require.True(testInstance, report.Results[0].Readable())
	require.True(testInstance, report.Results[1].Readable())
	for index := 2; index < len(paths); index++ {
		require.False(testInstance, report.Results[index].Readable(), paths[index])
		require.ErrorIs(testInstance, report.Results[index].Failure, context.Canceled)
		require.NotEmpty(testInstance, report.Results[index].Location.Name)
	}

	restarted := coordinator.Scan(context.Background(), scan.Request{Paths: paths[:2]})
	require.Equal(testInstance, scan.StateCompleted, restarted.State)
	require.NotEqual(testInstance, report.ID, restarted.ID)
	require.True(testInstance, restarted.Results[0].Readable())
	require.True(testInstance, restarted.Results[1].Readable())
}

// lateCancelReader requests cancellation while finishing its last read, then returns a snapshot anyway.
type lateCancelReader struct {
	lastPath string
	cancel   func()
}

func (reader *lateCancelReader) Read(_ context.Context, repositoryPath string, _ bool) (status.RepositoryStatus, error) {
	if repositoryPath == reader.lastPath {
		reader.cancel()
	}
	return status.RepositoryStatus{RepositoryDirectory: filepath.Dir(repositoryPath)}, nil
}

func TestCoordinatorLateCancelKeepsCompletedState(testInstance *testing.T) {
	paths := []string{"/workspace/one/.git", "/workspace/two/.git", "/workspace/three/.git"}
	reader := &lateCancelReader{lastPath: paths[len(paths)-1]}
	coordinator := scan.NewCoordinator(reader, 1, zap.NewNop())
	reader.cancel = coordinator.Cancel

	report := coordinator.Scan(context.Background(), scan.Request{Paths: paths})

	require.Equal(testInstance, scan.StateCompleted, report.State)
	require.Equal(testInstance, scan.StateCompleted, coordinator.State())
	for _, result := range report.Results {
		require.True(testInstance, result.Readable())
	}
}

func TestCoordinatorCancelWithoutActiveScan(testInstance *testing.T) {
	coordinator := scan.NewCoordinator(newScriptedReader(), 0, nil)
	coordinator.Cancel()
	require.Equal(testInstance, scan.StatePending, coordinator.State())
	require.Positive(testInstance, coordinator.WorkerCount())
}

func TestCoordinatorObservesCallerCancellation(testInstance *testing.T) {
	callerContext, cancel := context.WithCancel(context.Background())
	cancel()

	observedCore, observedLogs := observer.New(zapcore.InfoLevel)
	coordinator := scan.NewCoordinator(newScriptedReader(), 2, zap.New(observedCore))
	report := coordinator.Scan(callerContext, scan.Request{Paths: []string{"/workspace/one/.git", "/workspace/two/.git"}})

	require.Equal(testInstance, scan.StateCancelled, report.State)
	for _, result := range report.Results {
		require.False(testInstance, result.Readable())
	}

	finished := observedLogs.FilterMessage("scan finished").All()
	require.Len(testInstance, finished, 1)
	require.Equal(testInstance, "cancelled", finished[0].ContextMap()["state"])
	require.Equal(testInstance, report.ID, finished[0].ContextMap()["scan_id"])
	require.EqualValues(testInstance, 0, finished[0].ContextMap()["readable_count"])
}

func TestCoordinatorWithRepositoryReader(testInstance *testing.T) {
	workspace := testInstance.TempDir()
	repositoryDirectory := filepath.Join(workspace, "service")
	repository, initError := git.PlainInit(repositoryDirectory, false)
	require.NoError(testInstance, initError)
	worktree, worktreeError := repository.Worktree()
	require.NoError(testInstance, worktreeError)
	signature := &object.Signature{Name: "Scanner Tester", Email: "tester@example.com", When: time.Now()}
	_, commitError := worktree.Commit("initial", &git.CommitOptions{AllowEmptyCommits: true, Author: signature, Committer: signature})
	require.NoError(testInstance, commitError)

	missingPath := filepath.Join(workspace, "vanished", ".git")
	paths := []string{missingPath, filepath.Join(repositoryDirectory, ".git")}

	coordinator := scan.NewCoordinator(status.NewReader(nil, zap.NewNop()), 2, zap.NewNop())
	report := coordinator.Scan(context.Background(), scan.Request{Paths: paths})

	require.Equal(testInstance, scan.StateCompleted, report.State)
	require.False(testInstance, report.Results[0].Readable())
	require.ErrorIs(testInstance, report.Results[0].Failure, status.ErrRepositoryUnreadable)
	require.Equal(testInstance, "vanished", report.Results[0].Location.Name)
	require.True(testInstance, report.Results[1].Readable())
	require.Equal(testInstance, "service", report.Results[1].Status.Name)
	require.Equal(testInstance, 1, report.Results[1].Status.CommitCount)
}
