package inventory

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/temirov/gitscan/internal/repos/status"
	"github.com/temirov/gitscan/internal/scan"
)

const (
	sqliteDriverNameConstant             = "sqlite"
	databaseDirectoryPermissionsConstant = 0o755
	applicationDirectoryNameConstant     = "gitscan"
	databaseFileNameConstant             = "inventory.db"
	databaseMemoryPathConstant           = ":memory:"
	createDirectoryErrorTemplate         = "create inventory directory for %s"
	openDatabaseErrorTemplate            = "open inventory database %s"
	migrateDatabaseErrorMessage          = "migrate inventory schema"
	beginTransactionErrorMessage         = "begin inventory transaction"
	commitTransactionErrorMessage        = "commit inventory transaction"
	clearRepositoriesErrorMessage        = "clear repository list"
	insertRepositoryErrorTemplate        = "insert repository %s"
	queryRepositoriesErrorMessage        = "query repository list"
	scanRepositoryErrorMessage           = "scan repository row"
	clearSnapshotsErrorMessage           = "clear snapshots"
	insertSnapshotErrorTemplate          = "insert snapshot for %s"
	encodeSnapshotErrorTemplate          = "encode snapshot for %s"
	decodeSnapshotErrorTemplate          = "decode snapshot for %s"
	querySnapshotsErrorMessage           = "query snapshots"
	scanSnapshotErrorMessage             = "scan snapshot row"
	resolveConfigDirectoryErrorMessage   = "resolve user configuration directory"
	repositoriesReplacedMessage          = "repository list stored"
	snapshotsStoredMessage               = "scan snapshot stored"
	databasePathFieldConstant            = "database_path"
	repositoryCountFieldConstant         = "repository_count"
	scanIdentifierFieldConstant          = "scan_id"
)

const schemaStatement = `
CREATE TABLE IF NOT EXISTS repositories (
	position INTEGER NOT NULL PRIMARY KEY,
	path TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS snapshots (
	position INTEGER NOT NULL PRIMARY KEY,
	path TEXT NOT NULL,
	scan_id TEXT NOT NULL,
	scanned_at INTEGER NOT NULL,
	status TEXT,
	failure TEXT NOT NULL DEFAULT ''
);
`

// ErrDatabasePathMissing is returned when no database location was provided.
var ErrDatabasePathMissing = errors.New("inventory database path is empty")

// Snapshot is the stored result of one repository from the most recent scan. A nil Status marks it unreadable.
type Snapshot struct {
	Path      string
	ScanID    string
	ScannedAt time.Time
	Status    *status.RepositoryStatus
	Failure   string
}

// Store persists the discovered repository list and the last scan snapshot in SQLite.
type Store struct {
	database *sql.DB
	path     string
	logger   *zap.Logger
}

// DefaultDatabasePath places the inventory under the user configuration directory.
func DefaultDatabasePath() (string, error) {
	configurationDirectory, directoryError := os.UserConfigDir()
	if directoryError != nil {
		return "", errors.Wrap(directoryError, resolveConfigDirectoryErrorMessage)
	}
	return filepath.Join(configurationDirectory, applicationDirectoryNameConstant, databaseFileNameConstant), nil
}

// Open creates the parent directory when needed, opens the database and applies the schema.
func Open(ctx context.Context, databasePath string, logger *zap.Logger) (*Store, error) {
	trimmedPath := strings.TrimSpace(databasePath)
	if len(trimmedPath) == 0 {
		return nil, ErrDatabasePathMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if trimmedPath != databaseMemoryPathConstant {
		if directoryError := os.MkdirAll(filepath.Dir(trimmedPath), databaseDirectoryPermissionsConstant); directoryError != nil {
			return nil, errors.Wrapf(directoryError, createDirectoryErrorTemplate, trimmedPath)
		}
	}

	database, openError := sql.Open(sqliteDriverNameConstant, trimmedPath)
	if openError != nil {
		return nil, errors.Wrapf(openError, openDatabaseErrorTemplate, trimmedPath)
	}
	// One connection keeps writes serialized and an in-memory database alive.
	database.SetMaxOpenConns(1)
	database.SetConnMaxLifetime(0)

	if _, migrateError := database.ExecContext(ctx, schemaStatement); migrateError != nil {
		_ = database.Close()
		return nil, errors.Wrap(migrateError, migrateDatabaseErrorMessage)
	}

	return &Store{database: database, path: trimmedPath, logger: logger}, nil
}

// Close releases the database handle.
func (store *Store) Close() error {
	return store.database.Close()
}

// Path reports the database location.
func (store *Store) Path() string {
	return store.path
}

// ReplaceRepositories stores repositoryPaths as the repository list, keeping their order and dropping duplicates.
func (store *Store) ReplaceRepositories(ctx context.Context, repositoryPaths []string) error {
	return store.withTransaction(ctx, func(transaction *sql.Tx) error {
		if _, clearError := transaction.ExecContext(ctx, `DELETE FROM repositories`); clearError != nil {
			return errors.Wrap(clearError, clearRepositoriesErrorMessage)
		}
		seen := map[string]struct{}{}
		position := 0
		for _, repositoryPath := range repositoryPaths {
			trimmedPath := strings.TrimSpace(repositoryPath)
			if len(trimmedPath) == 0 {
				continue
			}
			if _, duplicate := seen[trimmedPath]; duplicate {
				continue
			}
			seen[trimmedPath] = struct{}{}
			if _, insertError := transaction.ExecContext(ctx, `INSERT INTO repositories (position, path) VALUES (?, ?)`, position, trimmedPath); insertError != nil {
				return errors.Wrapf(insertError, insertRepositoryErrorTemplate, trimmedPath)
			}
			position++
		}
		store.logger.Debug(repositoriesReplacedMessage,
			zap.String(databasePathFieldConstant, store.path),
			zap.Int(repositoryCountFieldConstant, position),
		)
		return nil
	})
}

// ListRepositories returns the stored repository list in its saved order.
func (store *Store) ListRepositories(ctx context.Context) ([]string, error) {
	rows, queryError := store.database.QueryContext(ctx, `SELECT path FROM repositories ORDER BY position`)
	if queryError != nil {
		return nil, errors.Wrap(queryError, queryRepositoriesErrorMessage)
	}
	defer rows.Close()

	repositoryPaths := []string{}
	for rows.Next() {
		var repositoryPath string
		if scanError := rows.Scan(&repositoryPath); scanError != nil {
			return nil, errors.Wrap(scanError, scanRepositoryErrorMessage)
		}
		repositoryPaths = append(repositoryPaths, repositoryPath)
	}
	if iterationError := rows.Err(); iterationError != nil {
		return nil, errors.Wrap(iterationError, queryRepositoriesErrorMessage)
	}
	return repositoryPaths, nil
}

// SaveReport replaces the stored snapshot with the results of report, one row per result in order.
func (store *Store) SaveReport(ctx context.Context, report scan.Report) error {
	scannedAt := report.Finished
	if scannedAt.IsZero() {
		scannedAt = time.Now()
	}
	return store.withTransaction(ctx, func(transaction *sql.Tx) error {
		if _, clearError := transaction.ExecContext(ctx, `DELETE FROM snapshots`); clearError != nil {
			return errors.Wrap(clearError, clearSnapshotsErrorMessage)
		}
		for position, result := range report.Results {
			var encodedStatus sql.NullString
			if result.Status != nil {
				payload, encodeError := json.Marshal(result.Status)
				if encodeError != nil {
					return errors.Wrapf(encodeError, encodeSnapshotErrorTemplate, result.Path)
				}
				encodedStatus = sql.NullString{String: string(payload), Valid: true}
			}
			failure := ""
			if result.Failure != nil {
				failure = result.Failure.Error()
			}
			_, insertError := transaction.ExecContext(ctx,
				`INSERT INTO snapshots (position, path, scan_id, scanned_at, status, failure) VALUES (?, ?, ?, ?, ?, ?)`,
				position, result.Path, report.ID, scannedAt.UnixNano(), encodedStatus, failure,
			)
			if insertError != nil {
				return errors.Wrapf(insertError, insertSnapshotErrorTemplate, result.Path)
			}
		}
		store.logger.Debug(snapshotsStoredMessage,
			zap.String(databasePathFieldConstant, store.path),
			zap.String(scanIdentifierFieldConstant, report.ID),
			zap.Int(repositoryCountFieldConstant, len(report.Results)),
		)
		return nil
	})
}

// LoadSnapshots returns the stored snapshot rows in scan order.
func (store *Store) LoadSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, queryError := store.database.QueryContext(ctx, `SELECT path, scan_id, scanned_at, status, failure FROM snapshots ORDER BY position`)
	if queryError != nil {
		return nil, errors.Wrap(queryError, querySnapshotsErrorMessage)
	}
	defer rows.Close()

	snapshots := []Snapshot{}
	for rows.Next() {
		var (
			snapshot      Snapshot
			scannedAt     int64
			encodedStatus sql.NullString
		)
		if scanError := rows.Scan(&snapshot.Path, &snapshot.ScanID, &scannedAt, &encodedStatus, &snapshot.Failure); scanError != nil {
			return nil, errors.Wrap(scanError, scanSnapshotErrorMessage)
		}
		snapshot.ScannedAt = time.Unix(0, scannedAt).UTC()
		if encodedStatus.Valid {
			var decodedStatus status.RepositoryStatus
			if decodeError := json.Unmarshal([]byte(encodedStatus.String), &decodedStatus); decodeError != nil {
				return nil, errors.Wrapf(decodeError, decodeSnapshotErrorTemplate, snapshot.Path)
			}
			snapshot.Status = &decodedStatus
		}
		snapshots = append(snapshots, snapshot)
	}
	if iterationError := rows.Err(); iterationError != nil {
		return nil, errors.Wrap(iterationError, querySnapshotsErrorMessage)
	}
	return snapshots, nil
}

func (store *Store) withTransaction(ctx context.Context, apply func(transaction *sql.Tx) error) error {
	transaction, beginError := store.database.BeginTx(ctx, nil)
	if beginError != nil {
		return errors.Wrap(beginError, beginTransactionErrorMessage)
	}
	if applyError := apply(transaction); applyError != nil {
		_ = transaction.Rollback()
		return applyError
	}
	if commitError := transaction.Commit(); commitError != nil {
		return errors.Wrap(commitError, commitTransactionErrorMessage)
	}
	return nil
}
