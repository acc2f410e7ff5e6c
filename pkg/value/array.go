package value

import "fmt"

// NumericType is the element type of an [Array].
type NumericType string

// Numeric element types.
const (
	Float64 NumericType = "float64"
	Int64   NumericType = "int64"
)

// Array is a homogeneous numeric tensor stored row-major.
// Exactly one of Floats or Ints is populated, according to DType.
type Array struct {
	DType  NumericType
	Shape  []int
	Floats []float64
	Ints   []int64
}

// NewFloatArray returns a float64 tensor with the given shape.
func NewFloatArray(shape []int, data []float64) *Array {
	return &Array{DType: Float64, Shape: shape, Floats: data}
}

// NewIntArray returns an int64 tensor with the given shape.
func NewIntArray(shape []int, data []int64) *Array {
	return &Array{DType: Int64, Shape: shape, Ints: data}
}

func (*Array) Tag() Tag { return TagArray }

// Size returns the number of elements implied by the shape.
func (a *Array) Size() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// Len returns the number of stored elements.
func (a *Array) Len() int {
	if a.DType == Int64 {
		return len(a.Ints)
	}
	return len(a.Floats)
}

// Validate checks that the shape and the stored data agree.
func (a *Array) Validate() error {
	switch a.DType {
	case Float64, Int64:
	default:
		return fmt.Errorf("unsupported array dtype %q", a.DType)
	}
	for _, d := range a.Shape {
		if d < 0 {
			return fmt.Errorf("negative dimension in shape %v", a.Shape)
		}
	}
	if a.Size() != a.Len() {
		return fmt.Errorf("shape %v holds %d elements, data has %d", a.Shape, a.Size(), a.Len())
	}
	return nil
}

// Index returns the flat offset of the element at idx.
func (a *Array) Index(idx ...int) int {
	off := 0
	for i, v := range idx {
		off = off*a.Shape[i] + v
	}
	return off
}

// At returns the element at idx as a float64.
func (a *Array) At(idx ...int) float64 {
	if a.DType == Int64 {
		return float64(a.Ints[a.Index(idx...)])
	}
	return a.Floats[a.Index(idx...)]
}
