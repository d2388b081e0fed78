package common

import (
	"unsafe"
)

// Identity resets a 4x4 matrix (flat slice) to the identity matrix.
// The matrix is stored in column-major order.
//
// Parameters:
//   - m: destination slice (must be at least 16 elements)
func Identity(m []float32) {
	clear(m[:16])
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// StructToBytes reinterprets a pointer to a struct as a raw byte slice using unsafe.
// The returned slice has length equal to the struct's size in memory.
//
// Parameters:
//   - v: pointer to the struct to reinterpret
//
// Returns:
//   - []byte: byte slice view of the struct's memory
func StructToBytes[T any](v *T) []byte {
	size := unsafe.Sizeof(*v)
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(size))
}

// Ortho writes an orthographic projection mapping the rectangle (left, top)..(right, bottom)
// to clip space, with y pointing down as UI draw lists expect. Column-major, depth range 0..1.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - left, right: horizontal extent in display units
//   - top, bottom: vertical extent in display units
func Ortho(out []float32, left, right, top, bottom float32) {
	Identity(out)
	out[0] = 2 / (right - left)
	out[5] = 2 / (top - bottom)
	out[10] = 0.5
	out[12] = (right + left) / (left - right)
	out[13] = (top + bottom) / (bottom - top)
	out[14] = 0.5
}
