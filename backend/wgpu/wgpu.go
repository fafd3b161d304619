// Package wgpu provides a glim backend that drives a WebGPU-style
// hardware abstraction layer. Shaders are WGSL, compiled to SPIR-V at
// program creation; draws and clears are encoded as individual render
// passes and submitted synchronously.
//
// Importing the package registers the backend under the name "wgpu":
//
//	import _ "github.com/gogpu/glim/backend/wgpu"
//
//	ctx, err := glim.NewContext(glim.WithBackend("wgpu"))
//
// By default the backend opens a standalone Vulkan device. To share a
// device owned by a host application, construct the device explicitly:
//
//	dev, err := wgpu.New(wgpu.WithProvider(app.GPUContextProvider()))
//	ctx, err := glim.NewContext(glim.WithDevice(dev))
//
// # Shader contract
//
// Programs are one WGSL module with entry points vs_main and fs_main.
// When distinct vertex and fragment sources are given they are joined
// into a single module; passing the full module as both sources (or an
// empty fragment source) works too. The module declares its interface
// as follows:
//
//   - vertex inputs are @location(N) parameters of vs_main
//   - uniforms are the fields of a single struct bound as
//     var<uniform> at @group(0) @binding(0)
//   - each texture is a texture_2d<f32> at @group(0) with its sampler
//     at the following binding
//
// Sampler uniforms are addressed by texture name: setting uniform
// "atlas" to texture unit 2 samples the texture bound to unit 2
// through the declaration named atlas.
//
// # Limitations
//
// The backend is headless. It has no backbuffer: draws and clears must
// target a framebuffer (a [glim.Canvas]); commands addressed to the
// default framebuffer are logged and dropped. Read results back with
// [Device.ReadTexture]. Scissored clears are not supported by the
// underlying render pass model and clear the full target.
package wgpu

import "github.com/gogpu/glim"

func init() {
	glim.Register("wgpu", func() (glim.Device, error) {
		return New()
	})
}
