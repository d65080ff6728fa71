package soft

import (
	"errors"
	"math"

	"github.com/ayusman/mudra/internal/gpu"
)

// rect is an axis-aligned quad in clip space with texture coordinates at
// its four corners.
type rect struct {
	x0, y0, x1, y1 float32
	// texture coordinates at (x0,y0), (x1,y0), (x0,y1), (x1,y1)
	uv [4][2]float32
}

var errUnsupportedQuad = errors.New("draw: quad is not axis-aligned")

func rectOf(q *gpu.Quad) (rect, error) {
	var r rect
	r.x0, r.y0 = float32(math.Inf(1)), float32(math.Inf(1))
	r.x1, r.y1 = float32(math.Inf(-1)), float32(math.Inf(-1))
	for i := 0; i < 4; i++ {
		x, y, _, _ := q.Vertex(i)
		r.x0, r.x1 = min(r.x0, x), max(r.x1, x)
		r.y0, r.y1 = min(r.y0, y), max(r.y1, y)
	}
	if r.x0 == r.x1 || r.y0 == r.y1 {
		return r, errUnsupportedQuad
	}

	var seen [4]bool
	for i := 0; i < 4; i++ {
		x, y, u, v := q.Vertex(i)
		var corner int
		switch {
		case x == r.x0 && y == r.y0:
			corner = 0
		case x == r.x1 && y == r.y0:
			corner = 1
		case x == r.x0 && y == r.y1:
			corner = 2
		case x == r.x1 && y == r.y1:
			corner = 3
		default:
			return r, errUnsupportedQuad
		}
		if seen[corner] {
			return r, errUnsupportedQuad
		}
		seen[corner] = true
		r.uv[corner] = [2]float32{u, v}
	}
	return r, nil
}

// interp returns the texture coordinate at fractional position (fx, fy)
// inside the rectangle.
func (r *rect) interp(fx, fy float32) (float32, float32) {
	lerp := func(a, b, t float32) float32 { return a + (b-a)*t }
	bu := lerp(r.uv[0][0], r.uv[1][0], fx)
	bv := lerp(r.uv[0][1], r.uv[1][1], fx)
	tu := lerp(r.uv[2][0], r.uv[3][0], fx)
	tv := lerp(r.uv[2][1], r.uv[3][1], fx)
	return lerp(bu, tu, fy), lerp(bv, tv, fy)
}

// env exposes the bound program's uniforms and textures to a kernel.
type env struct {
	dev  *Device
	prog *program
}

// Texture implements gpu.Env.
func (e *env) Texture(sampler string, u, v float32) [4]float32 {
	loc, ok := e.prog.byName[sampler]
	if !ok {
		return [4]float32{0, 0, 0, 1}
	}
	unit := int(e.prog.ints[loc])
	if unit < 0 || unit >= maxUnits {
		return [4]float32{0, 0, 0, 1}
	}
	t, ok := e.dev.textures[e.dev.units[unit]]
	if !ok || len(t.pix) == 0 {
		return [4]float32{0, 0, 0, 1}
	}
	return t.sample(u, v)
}

// Float implements gpu.Env.
func (e *env) Float(name string) float32 {
	if loc, ok := e.prog.byName[name]; ok {
		return e.prog.floats[loc]
	}
	return 0
}

// sample filters bilinearly with clamp-to-edge wrapping.
func (t *texture) sample(u, v float32) [4]float32 {
	x := u*float32(t.width) - 0.5
	y := v*float32(t.height) - 0.5
	fx0 := float32(math.Floor(float64(x)))
	fy0 := float32(math.Floor(float64(y)))
	ax, ay := x-fx0, y-fy0
	x0, y0 := int(fx0), int(fy0)

	c00 := t.fetch(x0, y0)
	c10 := t.fetch(x0+1, y0)
	c01 := t.fetch(x0, y0+1)
	c11 := t.fetch(x0+1, y0+1)

	var out [4]float32
	for i := range out {
		top := c00[i] + (c10[i]-c00[i])*ax
		bot := c01[i] + (c11[i]-c01[i])*ax
		out[i] = top + (bot-top)*ay
	}
	return out
}

// fetch reads one texel, expanded to RGBA the way GLES2 expands
// luminance formats.
func (t *texture) fetch(x, y int) [4]float32 {
	x = min(max(x, 0), t.width-1)
	y = min(max(y, 0), t.height-1)
	switch t.format {
	case gpu.FormatLuminance:
		l := float32(t.pix[y*t.width+x]) / 255
		return [4]float32{l, l, l, 1}
	case gpu.FormatLuminanceAlpha:
		o := (y*t.width + x) * 2
		l := float32(t.pix[o]) / 255
		return [4]float32{l, l, l, float32(t.pix[o+1]) / 255}
	default:
		o := (y*t.width + x) * 4
		return [4]float32{
			float32(t.pix[o]) / 255,
			float32(t.pix[o+1]) / 255,
			float32(t.pix[o+2]) / 255,
			float32(t.pix[o+3]) / 255,
		}
	}
}
