package glim

import (
	"fmt"
	"sort"
)

// DrawList records draw and clear commands as immutable snapshots and
// replays them in submission order on [DrawList.Flush].
//
// Recording validates every referenced resource and copies everything
// the command needs, so mutating a settings struct or staging new
// uniform values after Draw returns cannot change what was recorded.
// Replay routes all state through the [StateCache], which is where
// redundant shader binds, blend changes and the rest get elided.
//
// Buffers referenced by recorded draws are pinned against shrinking
// below the recorded draw's extent until the list is flushed or
// discarded.
type DrawList struct {
	dev   Device
	reg   *ResourceRegistry
	cache *StateCache

	commands []listCommand

	// batching permits reordering of draws marked ReorderSafe. Off by
	// default; see SetBatching.
	batching bool
}

// listCommand is one recorded command; exactly one field is non-nil.
type listCommand struct {
	draw  *drawCommand
	clear *clearCommand
}

// drawCommand is the snapshot of one recorded draw.
type drawCommand struct {
	shader    *Shader
	shaderKey ResourceKey
	uniforms  []uniformUpload
	binding   meshBinding
	settings  PipelineSettings
	pinned    []ResourceKey
}

// clearCommand is the snapshot of one recorded clear.
type clearCommand struct {
	settings ClearSettings
}

// NewDrawList creates a draw list replaying through cache.
func NewDrawList(reg *ResourceRegistry, cache *StateCache) *DrawList {
	return &DrawList{dev: reg.Device(), reg: reg, cache: cache}
}

// SetBatching enables or disables reordering of draws whose settings
// mark them [PipelineSettings.ReorderSafe]. When enabled, consecutive
// runs of reorder-safe draws are grouped by shader to cut rebinds;
// draws not marked safe act as barriers and never move. Disabled by
// default.
func (l *DrawList) SetBatching(on bool) { l.batching = on }

// Len returns the number of recorded commands.
func (l *DrawList) Len() int { return len(l.commands) }

// Clear records a clear of the selected planes. The settings are
// copied; the target key, when set, is validated now and again at
// flush.
func (l *DrawList) Clear(settings ClearSettings) error {
	if settings.Target != nil && !settings.Target.IsZero() {
		if _, err := l.reg.framebufferNative(*settings.Target); err != nil {
			return err
		}
	}
	l.commands = append(l.commands, listCommand{
		clear: &clearCommand{settings: settings.clone()},
	})
	return nil
}

// Draw records a draw of mesh with shader under the given settings
// (nil for all defaults).
//
// Everything is validated at record time: the shader and all mesh
// buffers must be live, every declared uniform must have a staged
// value, and the draw range must lie inside its buffer. The mesh's
// pending writes are uploaded and its state snapshotted, so later
// changes to mesh, shader uniforms or settings do not affect this
// command.
func (l *DrawList) Draw(shader *Shader, mesh Mesh, settings *PipelineSettings) error {
	if _, err := l.reg.shaderNative(shader.Key()); err != nil {
		return err
	}
	uniforms, err := shader.snapshot()
	if err != nil {
		return err
	}
	binding, err := mesh.binding()
	if err != nil {
		return err
	}
	if binding.rng.Start < 0 || binding.rng.Count < 0 {
		return fmt.Errorf("%w: draw range [%d,%d)", ErrInvalidDimensions,
			binding.rng.Start, binding.rng.Start+binding.rng.Count)
	}
	if settings != nil && settings.Target != nil && !settings.Target.IsZero() {
		if _, err := l.reg.framebufferNative(*settings.Target); err != nil {
			return err
		}
	}

	cmd := &drawCommand{
		shader:    shader,
		shaderKey: shader.Key(),
		uniforms:  uniforms,
		binding:   binding,
		settings:  *settings.Clone(),
	}

	// Pin every referenced buffer at the extent this draw reads, so a
	// resize cannot truncate it out from under the recorded command.
	pin := func(key ResourceKey, need int) error {
		if err := checkExtent(l.reg, key, need); err != nil {
			return err
		}
		if err := l.reg.pinBuffer(key, need); err != nil {
			return err
		}
		cmd.pinned = append(cmd.pinned, key)
		return nil
	}
	for _, att := range binding.attributes {
		need := att.Count * att.Stride
		if att.Step == 0 && binding.indexBuf.IsZero() {
			// Array draws read exactly the draw range.
			need = extent(binding.rng.Start, binding.rng.Count, att.Stride)
		}
		if err := pin(att.Buffer, need); err != nil {
			l.unpin(cmd)
			return err
		}
	}
	if !binding.indexBuf.IsZero() {
		need := extent(binding.rng.Start, binding.rng.Count, binding.indexType.Size())
		if err := pin(binding.indexBuf, need); err != nil {
			l.unpin(cmd)
			return err
		}
	}

	l.commands = append(l.commands, listCommand{draw: cmd})
	return nil
}

// Discard drops all recorded commands without replaying them.
func (l *DrawList) Discard() {
	for i := range l.commands {
		if cmd := l.commands[i].draw; cmd != nil {
			l.unpin(cmd)
		}
	}
	l.commands = l.commands[:0]
}

// Flush replays every recorded command in submission order through the
// state cache, then empties the list.
//
// Each command is re-validated against the registry before any device
// call is made on its behalf; a resource destroyed between record and
// flush fails the command with [ErrStaleHandle]. On error the effects
// of already-replayed commands remain (they had reached the device)
// and the rest of the list is discarded.
func (l *DrawList) Flush() error {
	cmds := l.commands
	if l.batching {
		cmds = reorderBatches(cmds)
	}
	var err error
	for i := range cmds {
		switch {
		case cmds[i].draw != nil:
			err = l.replayDraw(cmds[i].draw)
		case cmds[i].clear != nil:
			err = l.replayClear(cmds[i].clear)
		}
		if err != nil {
			break
		}
	}
	l.Discard()
	return err
}

// unpin releases a command's buffer pins.
func (l *DrawList) unpin(cmd *drawCommand) {
	for _, key := range cmd.pinned {
		l.reg.unpinBuffer(key)
	}
	cmd.pinned = nil
}

// replayDraw applies one draw command to the device.
func (l *DrawList) replayDraw(cmd *drawCommand) error {
	// Re-validate every key first so a stale resource fails before the
	// command issues its first device call.
	if _, err := l.reg.shaderNative(cmd.shaderKey); err != nil {
		return err
	}
	for _, att := range cmd.binding.attributes {
		if _, err := l.reg.bufferNative(att.Buffer); err != nil {
			return err
		}
	}
	if !cmd.binding.indexBuf.IsZero() {
		if _, err := l.reg.bufferNative(cmd.binding.indexBuf); err != nil {
			return err
		}
	}
	if cmd.settings.Target != nil && !cmd.settings.Target.IsZero() {
		if _, err := l.reg.framebufferNative(*cmd.settings.Target); err != nil {
			return err
		}
	}

	if err := l.applySettings(&cmd.settings); err != nil {
		return err
	}
	if _, err := l.cache.BindShader(cmd.shaderKey); err != nil {
		return err
	}
	for _, up := range cmd.uniforms {
		if _, err := cmd.shader.flushUniform(l.dev, up); err != nil {
			return err
		}
	}

	mask, bindings, err := l.resolveAttributes(cmd)
	if err != nil {
		return err
	}
	l.cache.SetVertexAttributes(mask, bindings)

	b := &cmd.binding
	if b.indexBuf.IsZero() {
		l.dev.DrawArrays(b.mode, b.rng.Start, b.rng.Count, b.instances)
		return nil
	}
	native, err := l.reg.bufferNative(b.indexBuf)
	if err != nil {
		return err
	}
	l.cache.bindBufferNative(BufferIndex, native)
	l.dev.DrawElements(b.mode, b.rng.Count, b.indexType, b.rng.Start*b.indexType.Size(), b.instances)
	return nil
}

// applySettings pushes the set fields of a settings snapshot through
// the cache. Unset fields issue nothing.
func (l *DrawList) applySettings(s *PipelineSettings) error {
	if s.Target != nil {
		if _, err := l.cache.BindTarget(*s.Target); err != nil {
			return err
		}
	}
	if s.Viewport != nil {
		l.cache.SetViewport(*s.Viewport)
	}
	if s.Scissor != nil {
		l.cache.SetScissor(s.Scissor)
	}
	if s.Blend != nil {
		l.cache.SetBlend(s.Blend)
	}
	if s.Depth != nil {
		l.cache.SetDepth(s.Depth)
	}
	if s.Stencil != nil {
		l.cache.SetStencil(s.Stencil)
	}
	return nil
}

// resolveAttributes matches the shader's reflected attributes against
// the mesh's attached buffers by name and produces the device-level
// bindings plus the enable mask.
func (l *DrawList) resolveAttributes(cmd *drawCommand) (uint32, []AttributeBinding, error) {
	var mask uint32
	bindings := make([]AttributeBinding, 0, len(cmd.shader.Attributes()))

	for _, attr := range cmd.shader.Attributes() {
		found := false
		for _, att := range cmd.binding.attributes {
			offset := 0
			for _, f := range att.Formats {
				if f.Name == attr.Name {
					native, err := l.reg.bufferNative(att.Buffer)
					if err != nil {
						return 0, nil, err
					}
					bindings = append(bindings, AttributeBinding{
						Location:   attr.Location,
						Type:       f.Type,
						Components: f.Components,
						Normalize:  f.Normalize,
						Buffer:     native,
						Stride:     att.Stride,
						Offset:     offset,
						Step:       att.Step,
					})
					mask |= 1 << attr.Location
					found = true
					break
				}
				offset += f.size()
			}
			if found {
				break
			}
		}
		if !found {
			return 0, nil, fmt.Errorf("%w: %q", ErrMissingAttribute, attr.Name)
		}
	}
	return mask, bindings, nil
}

// replayClear applies one clear command to the device.
func (l *DrawList) replayClear(cmd *clearCommand) error {
	s := &cmd.settings
	if s.Target != nil {
		if _, err := l.cache.BindTarget(*s.Target); err != nil {
			return err
		}
	}
	if s.Scissor != nil {
		l.cache.SetScissor(s.Scissor)
	}
	l.dev.Clear(ClearOp{Color: s.Color, Depth: s.Depth, Stencil: s.Stencil})
	return nil
}

// reorderBatches groups consecutive runs of reorder-safe draws by
// shader so replay touches each program once per run. Clears and draws
// not marked safe are barriers: nothing moves across them, so the
// observable output is unchanged for draws that truly are
// order-independent.
func reorderBatches(cmds []listCommand) []listCommand {
	out := make([]listCommand, len(cmds))
	copy(out, cmds)

	isSafe := func(c listCommand) bool {
		return c.draw != nil && c.draw.settings.ReorderSafe
	}
	for i := 0; i < len(out); {
		if !isSafe(out[i]) {
			i++
			continue
		}
		j := i + 1
		for j < len(out) && isSafe(out[j]) {
			j++
		}
		run := out[i:j]
		sort.SliceStable(run, func(a, b int) bool {
			ka, kb := run[a].draw.shaderKey, run[b].draw.shaderKey
			if ka.index != kb.index {
				return ka.index < kb.index
			}
			return ka.generation < kb.generation
		})
		i = j
	}
	return out
}
