package store

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"advisor-dashboard/internal/models"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot")

const snapshotVersion = "v1"

// Snapshotter persists the datasets so that uploads survive a restart.
type Snapshotter interface {
	Save(ctx context.Context, ds models.Datasets) error
	Load(ctx context.Context) (models.Datasets, error)
}

// NopSnapshotter keeps nothing.
type NopSnapshotter struct{}

func (NopSnapshotter) Save(context.Context, models.Datasets) error { return nil }

func (NopSnapshotter) Load(context.Context) (models.Datasets, error) {
	return models.Datasets{}, ErrNoSnapshot
}

type fileSnapshot struct {
	Version  string
	Datasets models.Datasets
}

// FileSnapshotter writes gob snapshots to a single file.
type FileSnapshotter struct {
	path string
}

func NewFileSnapshotter(path string) *FileSnapshotter {
	return &FileSnapshotter{path: path}
}

func (f *FileSnapshotter) Path() string { return f.path }

// Save writes to a temp file beside the target and renames it into place,
// so a crash mid-write leaves the previous snapshot intact.
func (f *FileSnapshotter) Save(ctx context.Context, ds models.Datasets) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(fileSnapshot{Version: snapshotVersion, Datasets: ds}); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("install snapshot: %w", err)
	}
	return nil
}

func (f *FileSnapshotter) Load(ctx context.Context) (models.Datasets, error) {
	if err := ctx.Err(); err != nil {
		return models.Datasets{}, err
	}

	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return models.Datasets{}, ErrNoSnapshot
	}
	if err != nil {
		return models.Datasets{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	var snap fileSnapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return models.Datasets{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return models.Datasets{}, fmt.Errorf("snapshot version %q: %w", snap.Version, ErrNoSnapshot)
	}
	return snap.Datasets, nil
}
