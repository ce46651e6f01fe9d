package inventory_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/gitscan/internal/fetch"
	"github.com/temirov/gitscan/internal/inventory"
	"github.com/temirov/gitscan/internal/repos/status"
	"github.com/temirov/gitscan/internal/scan"
)

func openTestStore(testInstance *testing.T) (*inventory.Store, string) {
	testInstance.Helper()
	databasePath := filepath.Join(testInstance.TempDir(), "nested", "inventory.db")
	store, openError := inventory.Open(context.Background(), databasePath, zap.NewNop())
	require.NoError(testInstance, openError)
	testInstance.Cleanup(func() {
		require.NoError(testInstance, store.Close())
	})
	return store, databasePath
}

func TestStoreReplacesRepositoryList(testInstance *testing.T) {
	testCases := []struct {
		name     string
		batches  [][]string
		expected []string
	}{
		{
			name:     "keeps_order",
			batches:  [][]string{{"/work/zeta/.git", "/work/alpha/.git"}},
			expected: []string{"/work/zeta/.git", "/work/alpha/.git"},
		},
		{
			name:     "drops_duplicates_and_blanks",
			batches:  [][]string{{"/work/one/.git", "  ", "/work/one/.git", " /work/two/.git "}},
			expected: []string{"/work/one/.git", "/work/two/.git"},
		},
		{
			name:     "replaces_previous_list",
			batches:  [][]string{{"/work/old/.git"}, {"/work/new/.git"}},
			expected: []string{"/work/new/.git"},
		},
		{
			name:     "empty_list",
			batches:  [][]string{{"/work/old/.git"}, {}},
			expected: []string{},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			store, _ := openTestStore(testInstance)
			for _, batch := range testCase.batches {
				require.NoError(testInstance, store.ReplaceRepositories(context.Background(), batch))
			}
			repositoryPaths, listError := store.ListRepositories(context.Background())
			require.NoError(testInstance, listError)
			require.Equal(testInstance, testCase.expected, repositoryPaths)
		})
	}
}

func TestStorePersistsAcrossReopen(testInstance *testing.T) {
	databasePath := filepath.Join(testInstance.TempDir(), "inventory.db")
	firstStore, openError := inventory.Open(context.Background(), databasePath, nil)
	require.NoError(testInstance, openError)
	require.NoError(testInstance, firstStore.ReplaceRepositories(context.Background(), []string{"/work/kept/.git"}))
	require.NoError(testInstance, firstStore.Close())

	secondStore, reopenError := inventory.Open(context.Background(), databasePath, nil)
	require.NoError(testInstance, reopenError)
	defer secondStore.Close()
	require.Equal(testInstance, databasePath, secondStore.Path())

	repositoryPaths, listError := secondStore.ListRepositories(context.Background())
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []string{"/work/kept/.git"}, repositoryPaths)
}

func TestStoreRoundTripsScanSnapshot(testInstance *testing.T) {
	store, _ := openTestStore(testInstance)

	lastCommitTime := time.Date(2024, time.May, 4, 10, 30, 0, 0, time.UTC)
	finished := time.Date(2024, time.May, 5, 8, 0, 0, 0, time.UTC)
	readable := status.RepositoryStatus{
		Name:                "service",
		RepositoryDirectory: "/work/service",
		ContainingDirectory: "/work",
		Remotes:             []string{"origin", "backup"},
		Branches:            []string{"main"},
		BranchName:          "main",
		CommitCount:         12,
		LastCommitTime:      &lastCommitTime,
		AheadCount:          2,
		BehindCount:         1,
		Fetch:               fetch.NewSummary(fetch.OutcomeOK | fetch.OutcomeTimeout),
		Warning:             status.WarningFetchTimedOut,
	}
	unfetched := status.RepositoryStatus{Name: "library", Remotes: []string{}, Warning: ""}
	report := scan.Report{
		ID:       "scan-1",
		State:    scan.StateCompleted,
		Finished: finished,
		Results: []scan.Result{
			{Path: "/work/service/.git", Status: &readable},
			{Path: "/work/broken/.git", Failure: errors.New("repository unreadable")},
			{Path: "/work/library/.git", Status: &unfetched},
		},
	}

	require.NoError(testInstance, store.SaveReport(context.Background(), report))

	snapshots, loadError := store.LoadSnapshots(context.Background())
	require.NoError(testInstance, loadError)
	require.Len(testInstance, snapshots, 3)

	require.Equal(testInstance, "/work/service/.git", snapshots[0].Path)
	require.Equal(testInstance, "scan-1", snapshots[0].ScanID)
	require.True(testInstance, finished.Equal(snapshots[0].ScannedAt))
	require.NotNil(testInstance, snapshots[0].Status)
	require.Equal(testInstance, readable.Remotes, snapshots[0].Status.Remotes)
	require.Equal(testInstance, 2, snapshots[0].Status.AheadCount)
	require.True(testInstance, lastCommitTime.Equal(*snapshots[0].Status.LastCommitTime))
	storedOutcome, attempted := snapshots[0].Status.Fetch.Outcome()
	require.True(testInstance, attempted)
	require.Equal(testInstance, fetch.OutcomeOK|fetch.OutcomeTimeout, storedOutcome)

	require.Nil(testInstance, snapshots[1].Status)
	require.Equal(testInstance, "repository unreadable", snapshots[1].Failure)

	require.NotNil(testInstance, snapshots[2].Status)
	require.False(testInstance, snapshots[2].Status.Fetch.Attempted())
	require.Nil(testInstance, snapshots[2].Status.LastCommitTime)

	require.NoError(testInstance, store.SaveReport(context.Background(), scan.Report{ID: "scan-2", Results: report.Results[:1]}))
	replaced, replacedError := store.LoadSnapshots(context.Background())
	require.NoError(testInstance, replacedError)
	require.Len(testInstance, replaced, 1)
	require.Equal(testInstance, "scan-2", replaced[0].ScanID)
}

func TestStoreOpenRejectsEmptyPath(testInstance *testing.T) {
	_, openError := inventory.Open(context.Background(), "  ", nil)
	require.ErrorIs(testInstance, openError, inventory.ErrDatabasePathMissing)
}

func TestDefaultDatabasePathUsesConfigDirectory(testInstance *testing.T) {
	configurationHome := testInstance.TempDir()
	testInstance.Setenv("XDG_CONFIG_HOME", configurationHome)
	testInstance.Setenv("HOME", configurationHome)

	databasePath, pathError := inventory.DefaultDatabasePath()
	require.NoError(testInstance, pathError)
	require.Equal(testInstance, "inventory.db", filepath.Base(databasePath))
	require.Equal(testInstance, "gitscan", filepath.Base(filepath.Dir(databasePath)))
}
