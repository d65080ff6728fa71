package repack

// Luma copies a width x height plane into dst as one byte per sample,
// rows back to back.
func Luma(dst []byte, src Plane, width, height int) error {
	if err := src.check("luma", width, height); err != nil {
		return err
	}
	if need := width * height; len(dst) < need {
		return &LayoutError{Plane: "luma", Reason: "destination too small", Required: need, Have: len(dst)}
	}

	l := src.Layout
	for r := 0; r < height; r++ {
		row := src.Data[l.Offset+r*l.RowStride:]
		out := dst[r*width : (r+1)*width]
		if l.PixelStride == 1 {
			copy(out, row[:width])
			continue
		}
		for c := range out {
			out[c] = row[c*l.PixelStride]
		}
	}
	return nil
}

// Chroma interleaves two width x height planes into dst as
// [first, second] byte pairs. Callers pass the subsampled size.
func Chroma(dst []byte, first, second Plane, width, height int) error {
	if err := first.check("chroma first", width, height); err != nil {
		return err
	}
	if err := second.check("chroma second", width, height); err != nil {
		return err
	}
	if need := width * height * 2; len(dst) < need {
		return &LayoutError{Plane: "chroma", Reason: "destination too small", Required: need, Have: len(dst)}
	}

	a, b := first.Layout, second.Layout
	for r := 0; r < height; r++ {
		rowA := first.Data[a.Offset+r*a.RowStride:]
		rowB := second.Data[b.Offset+r*b.RowStride:]
		out := dst[r*width*2 : (r+1)*width*2]
		for c := 0; c < width; c++ {
			out[2*c] = rowA[c*a.PixelStride]
			out[2*c+1] = rowB[c*b.PixelStride]
		}
	}
	return nil
}
