package inventory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileSource stores a snapshot as a YAML document.
type FileSource struct {
	path string
}

// NewFileSource creates a file source for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads the snapshot. A missing file is ErrNotFound.
func (f *FileSource) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := ctx.Err(); err != nil {
		return snap, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return snap, fmt.Errorf("reading inventory %s: %w", f.path, ErrNotFound)
		}
		return snap, fmt.Errorf("reading inventory %s: %w", f.path, err)
	}
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("parsing inventory %s: %w", f.path, err)
	}

	slog.Info("loaded inventory", "source", f.path, "mods", len(snap.Pool), "characters", len(snap.Characters))
	return snap, nil
}

// Save writes the snapshot through a temporary file so readers never see a
// partial document.
func (f *FileSource) Save(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding inventory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", f.path, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("writing inventory %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing inventory %s: %w", f.path, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing inventory %s: %w", f.path, err)
	}

	slog.Debug("saved inventory", "source", f.path, "mods", len(snap.Pool))
	return nil
}
