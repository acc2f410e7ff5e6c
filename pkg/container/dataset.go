package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// DType is the element type of a dataset.
type DType string

// Dataset element types.
const (
	Float64 DType = "float64"
	Int64   DType = "int64"
	Bool    DType = "bool"
	String  DType = "string"
)

// IsNumeric reports whether d is stored with a native numeric encoding.
func (d DType) IsNumeric() bool { return d == Float64 || d == Int64 }

// Dataset is a typed, fixed-shape array with optional string attributes.
type Dataset struct {
	DType DType
	Shape []int
	// Width is the byte width of one element; 8 for numeric types, 1 for
	// bool, the longest element for strings.
	Width int

	data  []byte
	attrs map[string]string
}

// NewFloat64 returns a float64 dataset.
func NewFloat64(shape []int, values []float64) *Dataset {
	data := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[8*i:], math.Float64bits(v))
	}
	return &Dataset{DType: Float64, Shape: shape, Width: 8, data: data}
}

// NewInt64 returns an int64 dataset.
func NewInt64(shape []int, values []int64) *Dataset {
	data := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[8*i:], uint64(v))
	}
	return &Dataset{DType: Int64, Shape: shape, Width: 8, data: data}
}

// NewBool returns a bool dataset.
func NewBool(shape []int, values []bool) *Dataset {
	data := make([]byte, len(values))
	for i, v := range values {
		if v {
			data[i] = 1
		}
	}
	return &Dataset{DType: Bool, Shape: shape, Width: 1, data: data}
}

// NewString returns a fixed-width string dataset. Elements are padded with
// NUL bytes to the byte length of the longest element (at least 1).
func NewString(shape []int, values []string) *Dataset {
	width := 1
	for _, v := range values {
		width = max(width, len(v))
	}
	data := make([]byte, width*len(values))
	for i, v := range values {
		copy(data[width*i:], v)
	}
	return &Dataset{DType: String, Shape: shape, Width: width, data: data}
}

// Len returns the number of elements implied by the shape.
func (d *Dataset) Len() int {
	n := 1
	for _, s := range d.Shape {
		n *= s
	}
	return n
}

// Float64s decodes a float64 dataset.
func (d *Dataset) Float64s() ([]float64, error) {
	if d.DType != Float64 {
		return nil, d.mismatch(Float64)
	}
	out := make([]float64, d.Len())
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(d.data[8*i:]))
	}
	return out, nil
}

// Int64s decodes an int64 dataset.
func (d *Dataset) Int64s() ([]int64, error) {
	if d.DType != Int64 {
		return nil, d.mismatch(Int64)
	}
	out := make([]int64, d.Len())
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(d.data[8*i:]))
	}
	return out, nil
}

// Bools decodes a bool dataset.
func (d *Dataset) Bools() ([]bool, error) {
	if d.DType != Bool {
		return nil, d.mismatch(Bool)
	}
	out := make([]bool, d.Len())
	for i := range out {
		out[i] = d.data[i] != 0
	}
	return out, nil
}

// Strings decodes a string dataset. Trailing NUL padding is stripped.
func (d *Dataset) Strings() ([]string, error) {
	if d.DType != String {
		return nil, d.mismatch(String)
	}
	out := make([]string, d.Len())
	for i := range out {
		cell := d.data[d.Width*i : d.Width*(i+1)]
		out[i] = string(bytes.TrimRight(cell, "\x00"))
	}
	return out, nil
}

// Text returns every element in text form regardless of dtype.
func (d *Dataset) Text() []string {
	switch d.DType {
	case Float64:
		vs, _ := d.Float64s()
		out := make([]string, len(vs))
		for i, v := range vs {
			out[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		return out
	case Int64:
		vs, _ := d.Int64s()
		out := make([]string, len(vs))
		for i, v := range vs {
			out[i] = strconv.FormatInt(v, 10)
		}
		return out
	case Bool:
		vs, _ := d.Bools()
		out := make([]string, len(vs))
		for i, v := range vs {
			out[i] = strconv.FormatBool(v)
		}
		return out
	default:
		vs, _ := d.Strings()
		return vs
	}
}

// SetAttr sets a string attribute on the dataset.
func (d *Dataset) SetAttr(key, value string) {
	if d.attrs == nil {
		d.attrs = make(map[string]string)
	}
	d.attrs[key] = value
}

// Attr returns the attribute stored under key.
func (d *Dataset) Attr(key string) (string, bool) {
	v, ok := d.attrs[key]
	return v, ok
}

// Attrs returns a copy of all attributes.
func (d *Dataset) Attrs() map[string]string {
	return copyAttrs(d.attrs)
}

// validate checks that the payload size matches shape and dtype.
func (d *Dataset) validate() error {
	for _, s := range d.Shape {
		if s < 0 {
			return fmt.Errorf("negative dimension in shape %v", d.Shape)
		}
	}
	switch d.DType {
	case Float64, Int64:
		if d.Width != 8 {
			return fmt.Errorf("%s dataset with width %d", d.DType, d.Width)
		}
	case Bool:
		if d.Width != 1 {
			return fmt.Errorf("bool dataset with width %d", d.Width)
		}
	case String:
		if d.Width < 1 {
			return fmt.Errorf("string dataset with width %d", d.Width)
		}
	default:
		return fmt.Errorf("unknown dtype %q", d.DType)
	}
	if want := d.Len() * d.Width; len(d.data) != want {
		return fmt.Errorf("payload is %d bytes, want %d", len(d.data), want)
	}
	return nil
}

func (d *Dataset) mismatch(want DType) error {
	return fmt.Errorf("dataset is %s, not %s", d.DType, want)
}

func copyAttrs(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
