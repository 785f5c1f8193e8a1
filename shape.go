package flownet

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// A Shape is the ordered list of dimensions of a port or tensor. All
// dimensions must be positive; the total element count is the product of
// the dimensions.
type Shape []int

// Size returns the total element count of the shape.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether s and o have identical dimensions.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, d := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(d))
	}
	b.WriteByte(')')
	return b.String()
}

func (s Shape) valid() bool {
	if len(s) == 0 {
		return false
	}
	for _, d := range s {
		if d <= 0 {
			return false
		}
	}
	return true
}

func (s Shape) clone() Shape {
	c := make(Shape, len(s))
	copy(c, s)
	return c
}

// A DType tags the element type of a port. It is only used for
// compatibility checks at connect time; tensor payloads are carried as
// float64 regardless of the declared type.
type DType int

// Element types supported by ports.
const (
	Float64 DType = iota
	Int64
	Bool
)

func (t DType) String() string {
	switch t {
	case Float64:
		return "float64"
	case Int64:
		return "int64"
	case Bool:
		return "bool"
	}
	return "dtype(" + strconv.Itoa(int(t)) + ")"
}

// A Tensor is a shaped value exchanged between ports. The payload is a
// flat row-major float64 slice.
type Tensor struct {
	shape Shape
	data  []float64
}

// NewTensor creates a tensor of the given shape. With no data arguments
// the tensor is zero-filled, otherwise exactly Size() values must be
// provided.
func NewTensor(shape Shape, data ...float64) (*Tensor, error) {
	if !shape.valid() {
		return nil, errors.Errorf("invalid tensor shape %v", shape)
	}
	n := shape.Size()
	if len(data) == 0 {
		return &Tensor{shape: shape.clone(), data: make([]float64, n)}, nil
	}
	if len(data) != n {
		return nil, errors.Errorf("tensor shape %v wants %d elements, got %d", shape, n, len(data))
	}
	d := make([]float64, n)
	copy(d, data)
	return &Tensor{shape: shape.clone(), data: d}, nil
}

// Full creates a tensor of the given shape with every element set to v.
// It panics on an invalid shape.
func Full(shape Shape, v float64) *Tensor {
	t, err := NewTensor(shape)
	if err != nil {
		panic(err)
	}
	for i := range t.data {
		t.data[i] = v
	}
	return t
}

// Shape returns the tensor shape. The returned slice must not be modified.
func (t *Tensor) Shape() Shape { return t.shape }

// Data returns the flat row-major payload. The returned slice aliases the
// tensor's storage.
func (t *Tensor) Data() []float64 { return t.data }

// Size returns the element count.
func (t *Tensor) Size() int { return len(t.data) }

// Clone returns a deep copy of t.
func (t *Tensor) Clone() *Tensor {
	d := make([]float64, len(t.data))
	copy(d, t.data)
	return &Tensor{shape: t.shape.clone(), data: d}
}

// Equal reports whether t and o have the same shape and payload.
func (t *Tensor) Equal(o *Tensor) bool {
	if !t.shape.Equal(o.shape) {
		return false
	}
	for i := range t.data {
		if t.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

// withShape reinterprets the payload under a different shape of equal
// size. The payload is shared, not copied.
func (t *Tensor) withShape(s Shape) *Tensor {
	return &Tensor{shape: s.clone(), data: t.data}
}
