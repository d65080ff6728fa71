package gpu

// Standard attribute names every conversion program declares.
const (
	AttribPosition = "aPosition"
	AttribTexCoord = "aTexCoord"
)

// ProgramSource describes a program to build.
type ProgramSource struct {
	Name     string
	Vertex   string
	Fragment string
	// Kernel is the CPU form of Fragment, for devices that cannot run GLSL.
	Kernel   Kernel
	Uniforms []string
}

// Program is a linked program with its locations resolved.
type Program struct {
	dev      Device
	name     string
	id       uint32
	position int32
	texCoord int32
	uniforms map[string]int32
	valid    bool
}

// CompileProgram compiles both stages and links them. On any failure every
// object created so far is deleted and no program is left behind.
func CompileProgram(dev Device, src ProgramSource) (*Program, error) {
	vs, err := dev.CompileShader(StageVertex, src.Vertex)
	if err != nil {
		return nil, nameShaderError(err, src.Name)
	}
	defer dev.DeleteShader(vs)

	fs, err := dev.CompileShader(StageFragment, src.Fragment)
	if err != nil {
		return nil, nameShaderError(err, src.Name)
	}
	defer dev.DeleteShader(fs)

	id, err := dev.LinkProgram(vs, fs, src.Kernel)
	if err != nil {
		return nil, nameShaderError(err, src.Name)
	}

	p := &Program{
		dev:      dev,
		name:     src.Name,
		id:       id,
		position: dev.AttribLocation(id, AttribPosition),
		texCoord: dev.AttribLocation(id, AttribTexCoord),
		uniforms: make(map[string]int32, len(src.Uniforms)),
		valid:    true,
	}
	for _, u := range src.Uniforms {
		p.uniforms[u] = dev.UniformLocation(id, u)
	}
	return p, nil
}

func nameShaderError(err error, name string) error {
	switch e := err.(type) {
	case *ShaderCompileError:
		if e.Program == "" {
			e.Program = name
		}
	case *ShaderLinkError:
		if e.Program == "" {
			e.Program = name
		}
	}
	return err
}

// Name returns the program's name.
func (p *Program) Name() string {
	return p.name
}

// Valid reports whether the program has not been deleted.
func (p *Program) Valid() bool {
	return p != nil && p.valid
}

// Use makes the program current.
func (p *Program) Use() error {
	if !p.Valid() {
		return ErrReleased
	}
	return p.dev.UseProgram(p.id)
}

// SetInt sets an integer (or sampler) uniform. Unknown names are ignored.
func (p *Program) SetInt(name string, v int32) {
	if loc, ok := p.uniforms[name]; ok && p.valid {
		p.dev.Uniform1i(loc, v)
	}
}

// SetFloat sets a float uniform. Unknown names are ignored.
func (p *Program) SetFloat(name string, v float32) {
	if loc, ok := p.uniforms[name]; ok && p.valid {
		p.dev.Uniform1f(loc, v)
	}
}

// Draw renders q with this program into the bound framebuffer.
func (p *Program) Draw(q *Quad) error {
	if !p.Valid() {
		return ErrReleased
	}
	return p.dev.DrawQuad(q, p.position, p.texCoord)
}

// Delete frees the program. Safe to call more than once.
func (p *Program) Delete() error {
	if !p.Valid() {
		return nil
	}
	p.valid = false
	p.dev.DeleteProgram(p.id)
	return nil
}
