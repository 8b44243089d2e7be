// Package mmap provides read-only memory-mapped file access.
//
// # Overview
//
// Model files reference their large numeric arrays as sidecar .npy files.
// Those sidecars can exceed available memory (sparse feature blocks and
// gradient kernels routinely run into the gigabytes), so on load they are
// mapped rather than materialized: pages are faulted in only when a
// prediction actually touches them.
//
// # Usage
//
//	m, err := mmap.Open("potential-krr-weights.npy")
//	if err != nil { ... }
//	defer m.Close()
//
//	// Zero-copy access to file contents
//	data := m.Bytes()
//
//	// Create a view into a specific region (e.g. past a format header)
//	region, _ := m.Region(offset, size)
//
//	// Provide kernel hints for access patterns
//	m.Advise(mmap.AccessSequential)
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with madvise(2) for access hints
//   - Windows: CreateFileMapping/MapViewOfFile (madvise is a no-op)
//
// # Thread Safety
//
// Mapping and Region are safe for concurrent read access. Close() is
// idempotent and protected by atomic operations, but callers must ensure no
// goroutines access Bytes() after Close() returns.
package mmap
