package renderer

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

type Config struct {
	Width  int
	Height int
	Title  string
	VSync  bool
	MSAA   int
}

func DefaultConfig() Config {
	return Config{
		Width:  800,
		Height: 800,
		Title:  "AvatarSync",
		VSync:  true,
		MSAA:   4,
	}
}

// Renderer owns the window, the head shader, and the camera. It draws
// whatever avatar the consumer hands it; morph state lives on the avatar.
type Renderer struct {
	window *glfw.Window
	config Config

	headShader *Shader
	camera     *Camera

	fbWidth  int
	fbHeight int
}

const headVertSrc = `#version 410 core
layout (location = 0) in vec3 aPos;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec2 aTexCoord;

uniform mat4 uModel;
uniform mat4 uView;
uniform mat4 uProjection;

out vec3 vNormal;
out vec3 vWorldPos;

void main() {
    vec4 worldPos = uModel * vec4(aPos, 1.0);
    vWorldPos = worldPos.xyz;
    vNormal = mat3(uModel) * aNormal;
    gl_Position = uProjection * uView * worldPos;
}
` + "\x00"

const headFragSrc = `#version 410 core
in vec3 vNormal;
in vec3 vWorldPos;

uniform vec3 uLightDir;
uniform vec3 uBaseColor;

out vec4 FragColor;

void main() {
    vec3 n = normalize(vNormal);
    float diffuse = max(dot(n, normalize(-uLightDir)), 0.0);
    vec3 color = uBaseColor * (0.25 + 0.75 * diffuse);
    FragColor = vec4(color, 1.0);
}
` + "\x00"

// New creates the window and GL context. Must run on the main OS thread;
// glfw.Init is the caller's responsibility.
func New(cfg Config) (*Renderer, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.False)

	if cfg.MSAA > 0 {
		glfw.WindowHint(glfw.Samples, cfg.MSAA)
	}

	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gl init: %w", err)
	}

	if cfg.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	r := &Renderer{
		window: window,
		config: cfg,
	}
	r.fbWidth, r.fbHeight = window.GetFramebufferSize()

	r.headShader, err = NewShaderFromSource(headVertSrc, headFragSrc)
	if err != nil {
		return nil, fmt.Errorf("head shader: %w", err)
	}

	r.camera = NewConversationCamera(float32(cfg.Width) / float32(cfg.Height))

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	if cfg.MSAA > 0 {
		gl.Enable(gl.MULTISAMPLE)
	}

	return r, nil
}

// BeginFrame clears and binds the head shader with the frame's matrices.
func (r *Renderer) BeginFrame() {
	gl.Viewport(0, 0, int32(r.fbWidth), int32(r.fbHeight))
	gl.ClearColor(0.08, 0.09, 0.11, 1.0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	r.headShader.Use()
	r.headShader.SetMat4("uModel", mgl32.Ident4())
	r.headShader.SetMat4("uView", r.camera.ViewMatrix())
	r.headShader.SetMat4("uProjection", r.camera.ProjectionMatrix())
	r.headShader.SetVec3("uLightDir", mgl32.Vec3{-0.3, -0.5, -1}.Normalize())
	r.headShader.SetVec3("uBaseColor", mgl32.Vec3{0.85, 0.68, 0.6})
}

// EndFrame swaps buffers and pumps window events.
func (r *Renderer) EndFrame() {
	r.window.SwapBuffers()
	glfw.PollEvents()
}

func (r *Renderer) ShouldClose() bool {
	return r.window.ShouldClose()
}

func (r *Renderer) Camera() *Camera {
	return r.camera
}

func (r *Renderer) Shutdown() {
	if r.headShader != nil {
		r.headShader.Delete()
	}
	if r.window != nil {
		r.window.Destroy()
	}
}
