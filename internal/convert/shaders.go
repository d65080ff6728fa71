package convert

import "github.com/ayusman/mudra/internal/gpu"

const quadVertexShader = `
attribute vec2 aPosition;
attribute vec2 aTexCoord;
varying vec2 vTexCoord;

void main() {
    gl_Position = vec4(aPosition, 0.0, 1.0);
    vTexCoord = aTexCoord;
}
`

// yuvFragmentShader applies BT.601. U is read from the red channel and V
// from alpha of the luminance-alpha chroma texture.
const yuvFragmentShader = `
#ifdef GL_ES
precision mediump float;
#endif
varying vec2 vTexCoord;
uniform sampler2D yTexture;
uniform sampler2D uvTexture;
uniform float yOffset;
uniform float yScale;
uniform float cScale;

void main() {
    float y = (texture2D(yTexture, vTexCoord).r - yOffset) * yScale;
    vec2 uv = (texture2D(uvTexture, vTexCoord).ra - 0.5) * cScale;
    float r = y + 1.402 * uv.y;
    float g = y - 0.344136 * uv.x - 0.714136 * uv.y;
    float b = y + 1.772 * uv.x;
    gl_FragColor = vec4(r, g, b, 1.0);
}
`

const externalFragmentShader = `
#ifdef GL_ES
#extension GL_OES_EGL_image_external : require
precision mediump float;
#define CAMERA_SAMPLER samplerExternalOES
#else
#define CAMERA_SAMPLER sampler2D
#endif
varying vec2 vTexCoord;
uniform CAMERA_SAMPLER cameraTexture;

void main() {
    gl_FragColor = texture2D(cameraTexture, vTexCoord);
}
`

const (
	uniformYTexture      = "yTexture"
	uniformUVTexture     = "uvTexture"
	uniformYOffset       = "yOffset"
	uniformYScale        = "yScale"
	uniformCScale        = "cScale"
	uniformCameraTexture = "cameraTexture"
)

func yuvKernel(env gpu.Env, u, v float32) [4]float32 {
	y := (env.Texture(uniformYTexture, u, v)[0] - env.Float(uniformYOffset)) * env.Float(uniformYScale)
	c := env.Texture(uniformUVTexture, u, v)
	cs := env.Float(uniformCScale)
	cb := (c[0] - 0.5) * cs
	cr := (c[3] - 0.5) * cs
	return [4]float32{
		y + 1.402*cr,
		y - 0.344136*cb - 0.714136*cr,
		y + 1.772*cb,
		1,
	}
}

func externalKernel(env gpu.Env, u, v float32) [4]float32 {
	return env.Texture(uniformCameraTexture, u, v)
}

var yuvProgram = gpu.ProgramSource{
	Name:     "yuv420",
	Vertex:   quadVertexShader,
	Fragment: yuvFragmentShader,
	Kernel:   yuvKernel,
	Uniforms: []string{uniformYTexture, uniformUVTexture, uniformYOffset, uniformYScale, uniformCScale},
}

var externalProgram = gpu.ProgramSource{
	Name:     "external",
	Vertex:   quadVertexShader,
	Fragment: externalFragmentShader,
	Kernel:   externalKernel,
	Uniforms: []string{uniformCameraTexture},
}
