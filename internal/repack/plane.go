// Package repack copies strided image planes into tightly packed buffers.
package repack

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformedPlaneLayout is returned when a plane descriptor would read
// outside its backing buffer or is otherwise unusable.
var ErrMalformedPlaneLayout = errors.New("malformed plane layout")

// PlaneDescriptor describes how samples of one image plane are laid out in
// a backing byte buffer. Sample (r, c) lives at
// Offset + r*RowStride + c*PixelStride.
type PlaneDescriptor struct {
	Offset      int
	RowStride   int
	PixelStride int
}

// Plane is a backing buffer plus the layout of the samples within it.
type Plane struct {
	Data   []byte
	Layout PlaneDescriptor
}

// LayoutError reports why a plane could not be read.
type LayoutError struct {
	Plane    string
	Reason   string
	Required int
	Have     int
}

func (e *LayoutError) Error() string {
	if e.Required > 0 {
		return fmt.Sprintf("%s plane: %s (need %d bytes, have %d)", e.Plane, e.Reason, e.Required, e.Have)
	}
	return fmt.Sprintf("%s plane: %s", e.Plane, e.Reason)
}

func (e *LayoutError) Unwrap() error {
	return ErrMalformedPlaneLayout
}

// Extent returns the number of bytes of Data needed to read width x height
// samples with this plane's layout. It saturates at math.MaxInt.
func (p Plane) Extent(width, height int) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	l := p.Layout
	n, ok := mulAdd(l.Offset+1, height-1, l.RowStride)
	if ok {
		n, ok = mulAdd(n, width-1, l.PixelStride)
	}
	if !ok {
		return math.MaxInt
	}
	return n
}

// mulAdd returns base + k*stride for non-negative operands, reporting false
// when the result does not fit in an int.
func mulAdd(base, k, stride int) (int, bool) {
	if base < 0 || k < 0 || stride < 0 {
		return 0, false
	}
	if k != 0 && stride > (math.MaxInt-base)/k {
		return 0, false
	}
	return base + k*stride, true
}

// check validates the plane against a width x height read. Strides are
// bounded by the buffer before any product is formed.
func (p Plane) check(name string, width, height int) error {
	l := p.Layout
	switch {
	case width <= 0 || height <= 0:
		return &LayoutError{Plane: name, Reason: fmt.Sprintf("invalid size %dx%d", width, height)}
	case l.Offset < 0:
		return &LayoutError{Plane: name, Reason: "negative offset"}
	case l.PixelStride <= 0:
		return &LayoutError{Plane: name, Reason: "pixel stride must be positive"}
	case l.RowStride < 0:
		return &LayoutError{Plane: name, Reason: "negative row stride"}
	}

	tooLong := func() error {
		return &LayoutError{Plane: name, Reason: "extent exceeds buffer", Required: p.Extent(width, height), Have: len(p.Data)}
	}
	avail := len(p.Data) - l.Offset
	if avail <= 0 {
		return tooLong()
	}
	if width > 1 && l.PixelStride > (avail-1)/(width-1) {
		return tooLong()
	}
	row := (width-1)*l.PixelStride + 1
	if height > 1 {
		if l.RowStride < row {
			return &LayoutError{Plane: name, Reason: "row stride shorter than row"}
		}
		if l.RowStride > (avail-row)/(height-1) {
			return tooLong()
		}
	}
	return nil
}
