package persistence

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/gapgo/codec"
)

// UnsupportedFormatError indicates a record path with an unrecognized
// extension. The primary record must be a structured-text document.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("persistence: unsupported record format %q (want .json)", e.Ext)
}

type saverOptions struct {
	arrayThreshold int
}

// SaverOption configures a Saver.
type SaverOption func(*saverOptions)

// WithArrayThreshold overrides the sidecar externalization threshold in
// bytes. Mostly useful in tests exercising the sidecar path without
// gigabyte fixtures.
func WithArrayThreshold(bytes int) SaverOption {
	return func(o *saverOptions) {
		o.arrayThreshold = bytes
	}
}

// Saver writes and reads model record files.
type Saver struct {
	threshold int
	json      codec.JSON
}

// NewSaver creates a Saver with the given options.
func NewSaver(opts ...SaverOption) *Saver {
	o := saverOptions{arrayThreshold: DefaultArrayThreshold}
	for _, fn := range opts {
		fn(&o)
	}
	return &Saver{threshold: o.arrayThreshold}
}

// Save serializes the entity to path (.json) plus any sidecar .npy files in
// the same directory. The record and all sidecars are written to temporary
// files first and renamed together, so a failed save leaves no partial model
// behind.
func (s *Saver) Save(path string, e Entity) error {
	ext := filepath.Ext(path)
	if ext != ".json" {
		return &UnsupportedFormatError{Ext: ext}
	}

	rec, err := ToRecord(e)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)

	files := make(map[string]func(io.Writer) error)
	if err := externalizeRecord(rec, base, files, s.threshold); err != nil {
		return err
	}
	files[filepath.Base(path)] = func(w io.Writer) error {
		b, err := s.json.MarshalIndent(rec)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	}

	return atomicSaveToDir(dir, files)
}

// Load reconstructs an entity from a record file written by Save. Sidecar
// arrays are opened memory-mapped; the caller owns any mappings held by the
// returned entity.
func (s *Saver) Load(path string) (Entity, error) {
	ext := filepath.Ext(path)
	if ext != ".json" {
		return nil, &UnsupportedFormatError{Ext: ext}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := s.json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("persistence: decoding %s: %w", path, err)
	}
	rec, err := recordFromMap(m)
	if err != nil {
		return nil, err
	}
	if err := resolveArrays(rec.InitParams, filepath.Dir(path)); err != nil {
		return nil, err
	}
	if err := resolveArrays(rec.Data, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return FromRecord(rec)
}

// Save serializes the entity with default settings.
func Save(path string, e Entity) error {
	return NewSaver().Save(path, e)
}

// Load reconstructs an entity with default settings.
func Load(path string) (Entity, error) {
	return NewSaver().Load(path)
}

// atomicSaveToDir writes multiple files atomically to a directory: all files
// go to temp files first, then are renamed together, so either all files are
// saved or none are.
func atomicSaveToDir(dir string, files map[string]func(io.Writer) error) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persistence: failed to create directory %s: %w", dir, err)
	}

	tempFiles := make([]string, 0, len(files))
	defer func() {
		for _, tmp := range tempFiles {
			_ = os.Remove(tmp)
		}
	}()

	type fileMapping struct {
		temp   string
		target string
	}
	mappings := make([]fileMapping, 0, len(files))

	for filename, writeFunc := range files {
		target := filepath.Join(dir, filename)

		tmp, err := os.CreateTemp(dir, filename+".tmp-*")
		if err != nil {
			return fmt.Errorf("persistence: failed to create temp file for %s: %w", filename, err)
		}
		tempFiles = append(tempFiles, tmp.Name())

		if err := writeFunc(tmp); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("persistence: failed to write %s: %w", filename, err)
		}
		if err := tmp.Sync(); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("persistence: failed to sync %s: %w", filename, err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("persistence: failed to close %s: %w", filename, err)
		}

		mappings = append(mappings, fileMapping{temp: tmp.Name(), target: target})
	}

	// Atomic on most filesystems.
	for _, m := range mappings {
		if err := os.Rename(m.temp, m.target); err != nil {
			return fmt.Errorf("persistence: failed to rename %s: %w", m.target, err)
		}
	}
	tempFiles = nil

	// Best-effort: fsync directory.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	return nil
}
