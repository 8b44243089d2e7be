// Package npy implements a minimal reader/writer for the NumPy .npy format
// (version 1.0), which is the sidecar format for large model arrays.
//
// Only little-endian float64 ("<f8") and int64 ("<i8") arrays in C order are
// supported; that covers every array a model file can reference. Sidecars are
// usually opened with OpenMapped, which returns a zero-copy view backed by a
// read-only memory mapping.
package npy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unsafe"

	"github.com/hupe1980/gapgo/internal/mmap"
)

var (
	// ErrBadMagic is returned when a file does not start with the .npy magic.
	ErrBadMagic = errors.New("npy: bad magic")
	// ErrUnsupportedDType is returned for dtypes other than <f8 and <i8.
	ErrUnsupportedDType = errors.New("npy: unsupported dtype")
	// ErrFortranOrder is returned for column-major arrays.
	ErrFortranOrder = errors.New("npy: fortran order not supported")
	// ErrShapeMismatch is returned when data length does not match the shape.
	ErrShapeMismatch = errors.New("npy: shape does not match data length")
)

var magic = []byte("\x93NUMPY")

// DType identifies the element type of an array, using NumPy descr notation.
type DType string

const (
	Float64 DType = "<f8"
	Int64   DType = "<i8"
)

// Array is an n-dimensional numeric array in C (row-major) order.
//
// An Array either owns its data (constructed or fully read) or views a
// memory-mapped sidecar file. Mapped arrays must be closed; Close on an
// owning array is a no-op.
type Array struct {
	dtype DType
	shape []int
	f64   []float64
	i64   []int64
	m     *mmap.Mapping
}

// NewFloat64 wraps data as a float64 array with the given shape.
func NewFloat64(data []float64, shape ...int) (*Array, error) {
	if numElems(shape) != len(data) {
		return nil, fmt.Errorf("%w: shape %v, %d elements", ErrShapeMismatch, shape, len(data))
	}
	return &Array{dtype: Float64, shape: shape, f64: data}, nil
}

// NewInt64 wraps data as an int64 array with the given shape.
func NewInt64(data []int64, shape ...int) (*Array, error) {
	if numElems(shape) != len(data) {
		return nil, fmt.Errorf("%w: shape %v, %d elements", ErrShapeMismatch, shape, len(data))
	}
	return &Array{dtype: Int64, shape: shape, i64: data}, nil
}

// DType returns the element type.
func (a *Array) DType() DType { return a.dtype }

// Shape returns the array shape. The caller must not modify it.
func (a *Array) Shape() []int { return a.shape }

// Len returns the total number of elements.
func (a *Array) Len() int { return numElems(a.shape) }

// Float64 returns the flat float64 data in C order.
// It is nil for int64 arrays.
func (a *Array) Float64() []float64 { return a.f64 }

// Int64 returns the flat int64 data in C order.
// It is nil for float64 arrays.
func (a *Array) Int64() []int64 { return a.i64 }

// Mapped reports whether the array views a memory-mapped file.
func (a *Array) Mapped() bool { return a.m != nil }

// Close releases the underlying mapping, if any. It is idempotent.
func (a *Array) Close() error {
	if a.m == nil {
		return nil
	}
	return a.m.Close()
}

func numElems(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Write serializes the array to w in .npy v1.0 format.
func Write(w io.Writer, a *Array) error {
	dims := make([]string, len(a.shape))
	for i, s := range a.shape {
		dims[i] = strconv.Itoa(s)
	}
	shapeStr := strings.Join(dims, ", ")
	if len(a.shape) == 1 {
		shapeStr += ","
	}
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", a.dtype, shapeStr)

	// Pad so the data section starts on a 64-byte boundary, as the format
	// prescribes. The final header byte is a newline.
	preamble := len(magic) + 2 + 2
	padded := ((preamble + len(header) + 1 + 63) / 64) * 64
	header += strings.Repeat(" ", padded-preamble-len(header)-1) + "\n"

	if _, err := w.Write(magic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{1, 0}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	switch a.dtype {
	case Float64:
		return binary.Write(w, binary.LittleEndian, a.f64)
	case Int64:
		return binary.Write(w, binary.LittleEndian, a.i64)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedDType, a.dtype)
	}
}

// Save writes the array to path.
func Save(path string, a *Array) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, a); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type header struct {
	dtype      DType
	shape      []int
	dataOffset int
}

func parseHeader(prefix []byte) (*header, error) {
	if len(prefix) < 10 {
		return nil, ErrBadMagic
	}
	if string(prefix[:6]) != string(magic) {
		return nil, ErrBadMagic
	}
	major := prefix[6]
	if major != 1 {
		return nil, fmt.Errorf("npy: unsupported format version %d", major)
	}
	headerLen := int(binary.LittleEndian.Uint16(prefix[8:10]))
	if len(prefix) < 10+headerLen {
		return nil, io.ErrUnexpectedEOF
	}
	dict := string(prefix[10 : 10+headerLen])

	h := &header{dataOffset: 10 + headerLen}

	descr, err := dictValue(dict, "descr")
	if err != nil {
		return nil, err
	}
	descr = strings.Trim(descr, "'\"")
	switch DType(descr) {
	case Float64, Int64:
		h.dtype = DType(descr)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDType, descr)
	}

	order, err := dictValue(dict, "fortran_order")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(order) != "False" {
		return nil, ErrFortranOrder
	}

	shapeStr, err := dictValue(dict, "shape")
	if err != nil {
		return nil, err
	}
	h.shape, err = parseShape(shapeStr)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// dictValue extracts the raw value for key from the single-line Python dict
// literal used in .npy headers.
func dictValue(dict, key string) (string, error) {
	marker := "'" + key + "':"
	i := strings.Index(dict, marker)
	if i < 0 {
		return "", fmt.Errorf("npy: header missing %q", key)
	}
	rest := dict[i+len(marker):]
	if key == "shape" {
		open := strings.Index(rest, "(")
		closing := strings.Index(rest, ")")
		if open < 0 || closing < open {
			return "", fmt.Errorf("npy: malformed shape in header")
		}
		return rest[open+1 : closing], nil
	}
	end := strings.IndexAny(rest, ",}")
	if end < 0 {
		end = len(rest)
	}
	return strings.TrimSpace(rest[:end]), nil
}

func parseShape(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []int{}, nil
	}
	parts := strings.Split(s, ",")
	var shape []int
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue // trailing comma of 1-d shapes
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("npy: malformed shape dimension %q", p)
		}
		shape = append(shape, v)
	}
	if shape == nil {
		shape = []int{}
	}
	return shape, nil
}

// Read deserializes a fully-materialized array from r.
func Read(r io.Reader) (*Array, error) {
	prefix := make([]byte, 10)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, err
	}
	if string(prefix[:6]) != string(magic) {
		return nil, ErrBadMagic
	}
	headerLen := int(binary.LittleEndian.Uint16(prefix[8:10]))
	rest := make([]byte, headerLen)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	h, err := parseHeader(append(prefix, rest...))
	if err != nil {
		return nil, err
	}

	n := numElems(h.shape)
	a := &Array{dtype: h.dtype, shape: h.shape}
	switch h.dtype {
	case Float64:
		a.f64 = make([]float64, n)
		if err := binary.Read(r, binary.LittleEndian, a.f64); err != nil {
			return nil, err
		}
	case Int64:
		a.i64 = make([]int64, n)
		if err := binary.Read(r, binary.LittleEndian, a.i64); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Load reads the array at path into memory.
func Load(path string) (*Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// OpenMapped opens the array at path as a read-only memory-mapped view.
// The returned array must be closed; its data slices alias the mapping and
// must not be written to or used after Close.
func OpenMapped(path string) (*Array, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	data := m.Bytes()
	h, err := parseHeader(data)
	if err != nil {
		m.Close()
		return nil, err
	}

	n := numElems(h.shape)
	want := h.dataOffset + n*8
	if len(data) < want {
		m.Close()
		return nil, fmt.Errorf("npy: truncated file: have %d bytes, want %d", len(data), want)
	}
	// Headers are padded to a 64-byte boundary, so the payload is aligned
	// for an in-place float64/int64 view.
	payload := data[h.dataOffset:want]

	a := &Array{dtype: h.dtype, shape: h.shape, m: m}
	if n > 0 {
		switch h.dtype {
		case Float64:
			a.f64 = unsafe.Slice((*float64)(unsafe.Pointer(&payload[0])), n)
		case Int64:
			a.i64 = unsafe.Slice((*int64)(unsafe.Pointer(&payload[0])), n)
		}
	}
	_ = m.Advise(mmap.AccessRandom)
	return a, nil
}
