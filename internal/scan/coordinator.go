package scan

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/gitscan/internal/repos/shared"
	"github.com/temirov/gitscan/internal/repos/status"
)

const (
	scanStartedMessageConstant   = "scan started"
	scanFinishedMessageConstant  = "scan finished"
	scanCancelRequestedConstant  = "scan cancellation requested"
	repositorySkippedMessage     = "repository skipped after cancellation"
	scanIdentifierFieldConstant  = "scan_id"
	workerCountFieldConstant     = "worker_count"
	repositoryCountFieldConstant = "repository_count"
	readableCountFieldConstant   = "readable_count"
	scanStateFieldConstant       = "state"
	elapsedFieldConstant         = "elapsed"
	repositoryPathFieldConstant  = "repository_path"
	fetchRemotesFieldConstant    = "fetch_remotes"
	minimumWorkerCountConstant   = 1
)

// StatusReader produces one repository snapshot.
type StatusReader interface {
	Read(ctx context.Context, repositoryPath string, fetchEnabled bool) (status.RepositoryStatus, error)
}

// Coordinator reads many repositories on a bounded worker pool sharing one cancellation signal per scan.
type Coordinator struct {
	reader      StatusReader
	workerCount int
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string

	mutex      sync.Mutex
	state      State
	activeID   string
	cancelScan context.CancelFunc
}

// NewCoordinator constructs a Coordinator. A non-positive workerCount uses one worker per CPU.
func NewCoordinator(reader StatusReader, workerCount int, logger *zap.Logger) *Coordinator {
	if workerCount < minimumWorkerCountConstant {
		workerCount = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		reader:      reader,
		workerCount: workerCount,
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
		state:       StatePending,
	}
}

// WorkerCount reports the size of the worker pool.
func (coordinator *Coordinator) WorkerCount() int {
	return coordinator.workerCount
}

// State reports the lifecycle position of the most recent scan.
func (coordinator *Coordinator) State() State {
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	return coordinator.state
}

// Cancel signals the active scan to stop. Finished results are kept; reads not yet done yield nil.
// It is safe to call at any time and more than once.
func (coordinator *Coordinator) Cancel() {
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	if coordinator.cancelScan == nil {
		return
	}
	coordinator.logger.Info(scanCancelRequestedConstant, zap.String(scanIdentifierFieldConstant, coordinator.activeID))
	coordinator.cancelScan()
}

// Scan reads every request path and returns a report whose Results[i] describes request.Paths[i].
//
// Each call gets a fresh cancellation signal derived from ctx, so a coordinator can be reused after
// a cancelled scan. Starting a scan while another is running cancels the earlier one.
func (coordinator *Coordinator) Scan(ctx context.Context, request Request) Report {
	scanContext, cancelScan := context.WithCancel(ctx)
	defer cancelScan()

	scanID := coordinator.newID()
	coordinator.begin(scanID, cancelScan)

	report := Report{
		ID:      scanID,
		Started: coordinator.now(),
		Results: make([]Result, len(request.Paths)),
	}
	for index, repositoryPath := range request.Paths {
		report.Results[index] = Result{Path: repositoryPath, Location: describeLocation(repositoryPath)}
	}

	coordinator.logger.Info(scanStartedMessageConstant,
		zap.String(scanIdentifierFieldConstant, scanID),
		zap.Int(repositoryCountFieldConstant, len(request.Paths)),
		zap.Int(workerCountFieldConstant, coordinator.workerCount),
		zap.Bool(fetchRemotesFieldConstant, request.FetchRemotes),
	)

	var interrupted atomic.Bool
	workerGroup := errgroup.Group{}
	workerGroup.SetLimit(coordinator.workerCount)
	for index := range request.Paths {
		slot := &report.Results[index]
		workerGroup.Go(func() error {
			if !coordinator.readInto(scanContext, scanID, slot, request.FetchRemotes) {
				interrupted.Store(true)
			}
			return nil
		})
	}
	_ = workerGroup.Wait()

	// A cancel that lands after the last slot was filled leaves a complete report.
	report.Finished = coordinator.now()
	report.State = StateCompleted
	if interrupted.Load() {
		report.State = StateCancelled
	}
	coordinator.finish(scanID, report.State)

	coordinator.logger.Info(scanFinishedMessageConstant,
		zap.String(scanIdentifierFieldConstant, scanID),
		zap.String(scanStateFieldConstant, string(report.State)),
		zap.Int(readableCountFieldConstant, countReadable(report.Results)),
		zap.Duration(elapsedFieldConstant, report.Finished.Sub(report.Started)),
	)
	return report
}

// readInto fills one result slot and reports false when cancellation skipped or abandoned the read.
// Slots are disjoint, so workers never share writes.
func (coordinator *Coordinator) readInto(ctx context.Context, scanID string, slot *Result, fetchRemotes bool) bool {
	if ctx.Err() != nil {
		slot.Failure = ctx.Err()
		coordinator.logger.Debug(repositorySkippedMessage,
			zap.String(scanIdentifierFieldConstant, scanID),
			zap.String(repositoryPathFieldConstant, slot.Path),
		)
		return false
	}
	repositoryStatus, readError := coordinator.reader.Read(ctx, slot.Path, fetchRemotes)
	if readError != nil {
		slot.Failure = readError
		return !abandoned(readError)
	}
	slot.Status = &repositoryStatus
	return true
}

func abandoned(readError error) bool {
	return errors.Is(readError, status.ErrReadCancelled) ||
		errors.Is(readError, context.Canceled) ||
		errors.Is(readError, context.DeadlineExceeded)
}

func (coordinator *Coordinator) begin(scanID string, cancelScan context.CancelFunc) {
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	if coordinator.cancelScan != nil {
		coordinator.cancelScan()
	}
	coordinator.activeID = scanID
	coordinator.cancelScan = cancelScan
	coordinator.state = StateRunning
}

func (coordinator *Coordinator) finish(scanID string, finalState State) {
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	if coordinator.activeID != scanID {
		return
	}
	coordinator.state = finalState
	coordinator.cancelScan = nil
}

func describeLocation(repositoryPath string) shared.RepositoryLocation {
	validatedPath, pathError := shared.NewRepositoryPath(repositoryPath)
	if pathError != nil {
		return shared.RepositoryLocation{}
	}
	return shared.DescribeRepositoryPath(validatedPath)
}

func countReadable(results []Result) int {
	readable := 0
	for _, result := range results {
		if result.Readable() {
			readable++
		}
	}
	return readable
}
