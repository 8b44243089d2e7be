package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"
)

// transferChunk is the unit of a rate-limited copy. Small enough that a
// modest bandwidth cap still makes progress, large enough to keep syscall
// overhead down.
const transferChunk = 256 * 1024

// TransferOptions holds the optional transfer configuration.
type TransferOptions struct {
	// BytesPerSecond caps the transfer bandwidth. Zero means unlimited.
	// Publishing a multi-gigabyte potential from a compute node should not
	// starve the job traffic sharing its uplink.
	BytesPerSecond int
}

// WithBytesPerSecond caps the transfer bandwidth.
func WithBytesPerSecond(bps int) func(o *TransferOptions) {
	return func(o *TransferOptions) {
		o.BytesPerSecond = bps
	}
}

// Upload streams r into the store under name.
func Upload(ctx context.Context, store Store, name string, r io.Reader, optFns ...func(o *TransferOptions)) error {
	opts := TransferOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	w, err := store.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := copyLimited(ctx, w, r, opts.BytesPerSecond); err != nil {
		_ = w.Close()
		return fmt.Errorf("blobstore: upload %s: %w", name, err)
	}
	return w.Close()
}

// UploadFile uploads a local file, e.g. a packed model archive.
func UploadFile(ctx context.Context, store Store, name, path string, optFns ...func(o *TransferOptions)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Upload(ctx, store, name, f, optFns...)
}

// Download fetches a blob into a local file, written atomically via a temp
// file in the destination directory.
func Download(ctx context.Context, store Store, name, path string, optFns ...func(o *TransferOptions)) error {
	opts := TransferOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	blob, err := store.Open(ctx, name)
	if err != nil {
		return err
	}
	defer blob.Close()

	r, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := copyLimited(ctx, f, r, opts.BytesPerSecond); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("blobstore: download %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// copyLimited copies r to w in chunks, waiting on a token bucket between
// chunks when a bandwidth cap is set.
func copyLimited(ctx context.Context, w io.Writer, r io.Reader, bytesPerSecond int) (int64, error) {
	if bytesPerSecond <= 0 {
		return io.Copy(w, r)
	}

	burst := transferChunk
	if bytesPerSecond < burst {
		burst = bytesPerSecond
	}
	limiter := rate.NewLimiter(rate.Limit(bytesPerSecond), burst)

	buf := make([]byte, burst)
	var written int64
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if err := limiter.WaitN(ctx, n); err != nil {
				return written, err
			}
			wn, writeErr := w.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, writeErr
			}
			if wn < n {
				return written, io.ErrShortWrite
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
