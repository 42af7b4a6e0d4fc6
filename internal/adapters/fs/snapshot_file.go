package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	logAdapter "github.com/bft-labs/ledgerworker/internal/adapters/log"
	"github.com/bft-labs/ledgerworker/internal/domain"
	"github.com/bft-labs/ledgerworker/internal/ports"
)

// SnapshotFileRepository implements ports.SnapshotStore with one JSON file per worker.
type SnapshotFileRepository struct {
	dir      string
	workerID string
	logger   ports.Logger
	syncDir  func(dir string) error
}

// Option configures a SnapshotFileRepository.
type Option func(*SnapshotFileRepository)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger ports.Logger) Option {
	return func(r *SnapshotFileRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewSnapshotFileRepository creates a repository for the worker's snapshot in dir.
func NewSnapshotFileRepository(dir, workerID string, opts ...Option) *SnapshotFileRepository {
	r := &SnapshotFileRepository{
		dir:      dir,
		workerID: workerID,
		logger:   logAdapter.NewNoopLogger(),
		syncDir:  syncDir,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FileName returns the snapshot file name of a worker.
func FileName(workerID string) string {
	return fmt.Sprintf("worker_%s_data.json", workerID)
}

// Path returns the full path to the snapshot file.
func (r *SnapshotFileRepository) Path() string {
	return filepath.Join(r.dir, FileName(r.workerID))
}

func (r *SnapshotFileRepository) tmpPath() string {
	return r.Path() + ".tmp"
}

// Load reads the committed snapshot. On first start it commits and returns an
// empty ledger. A leftover temp file from an interrupted commit is discarded.
func (r *SnapshotFileRepository) Load(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	if err := os.Remove(r.tmpPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return domain.Snapshot{}, fmt.Errorf("remove stale temp: %w", err)
	}

	data, err := os.ReadFile(r.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			snap := domain.NewSnapshot()
			if err := r.Commit(ctx, snap); err != nil {
				return domain.Snapshot{}, fmt.Errorf("initialize snapshot: %w", err)
			}
			return snap, nil
		}
		return domain.Snapshot{}, err
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode %s: %w", r.Path(), err)
	}
	snap.Normalize()
	return snap, nil
}

// Commit persists the snapshot atomically: write a temp file, fsync it, rename
// it over the snapshot and fsync the directory. The context deadline is checked
// after encoding and again right before the rename, which is the commit point.
func (r *SnapshotFileRepository) Commit(ctx context.Context, snap domain.Snapshot) error {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp := r.tmpPath()
	if err := writeSynced(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := ctx.Err(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, r.Path()); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	// The rename is the commit point: past it the new snapshot is what a
	// restart loads, so a failed directory sync is reported but not returned.
	if err := r.syncDir(r.dir); err != nil {
		r.logger.Warn("snapshot directory sync failed",
			ports.String("dir", r.dir),
			ports.Err(err),
		)
	}
	return nil
}

// Close is a no-op; the repository holds no open handles between calls.
func (r *SnapshotFileRepository) Close() error { return nil }

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// Some platforms cannot fsync a directory; the rename is still atomic there.
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}
	return nil
}
