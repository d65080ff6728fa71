package gpu

// Quad is four interleaved vertices (x, y, u, v) drawn as a triangle strip.
type Quad [16]float32

// QuadStride is the byte distance between two vertices of a Quad.
const QuadStride = 4 * 4

// FullScreenQuad covers the viewport with texture coordinate (0, 0) at
// clip-space (-1, -1). Readback starts at the bottom row of the target, so
// the first row read back is the first row of the source.
var FullScreenQuad = Quad{
	-1, -1, 0, 0,
	1, -1, 1, 0,
	-1, 1, 0, 1,
	1, 1, 1, 1,
}

// Vertex returns position and texture coordinate of vertex i.
func (q *Quad) Vertex(i int) (x, y, u, v float32) {
	o := i * 4
	return q[o], q[o+1], q[o+2], q[o+3]
}
