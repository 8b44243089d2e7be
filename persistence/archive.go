package persistence

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// ErrNotArchive is returned when an archive file does not start with a
// record entry.
var ErrNotArchive = errors.New("persistence: not a model archive")

// ArchiveExt is the extension for bundled model archives.
const ArchiveExt = ".tar.zst"

// Pack bundles a record file and its sidecars into a single zstd-compressed
// tar archive at dst. The record entry comes first so Unpack can validate the
// bundle before extracting arrays.
func Pack(dst, recordPath string) error {
	dir := filepath.Dir(recordPath)
	base := strings.TrimSuffix(filepath.Base(recordPath), filepath.Ext(recordPath))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var sidecars []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, base+"-") && strings.HasSuffix(name, ".npy") {
			sidecars = append(sidecars, name)
		}
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	tw := tar.NewWriter(zw)

	addFile := func(name string) error {
		src, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		defer src.Close()
		info, err := src.Stat()
		if err != nil {
			return err
		}
		hdr := &tar.Header{
			Name:    name,
			Mode:    0o644,
			Size:    info.Size(),
			ModTime: time.Now(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err = io.Copy(tw, src)
		return err
	}

	if err := addFile(filepath.Base(recordPath)); err != nil {
		return fmt.Errorf("persistence: packing record: %w", err)
	}
	for _, name := range sidecars {
		if err := addFile(name); err != nil {
			return fmt.Errorf("persistence: packing sidecar %s: %w", name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return f.Sync()
}

// Unpack extracts a model archive into dir and returns the path of the
// record file it contained.
func Unpack(src, dir string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	recordPath := ""
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		name := filepath.Base(hdr.Name) // no path traversal
		if recordPath == "" {
			if !strings.HasSuffix(name, ".json") {
				return "", fmt.Errorf("%w: first entry %q is not a record", ErrNotArchive, name)
			}
			recordPath = filepath.Join(dir, name)
		}
		out, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(out, tr); err != nil {
			_ = out.Close()
			return "", err
		}
		if err := out.Close(); err != nil {
			return "", err
		}
	}
	if recordPath == "" {
		return "", ErrNotArchive
	}
	return recordPath, nil
}
