package builder

import (
	"context"
	"fmt"

	"github.com/vk/framegraph/internal/config"
	"github.com/vk/framegraph/internal/ctxlog"
	"github.com/vk/framegraph/internal/node"
	"github.com/vk/framegraph/internal/resource"
)

// FromModel declares every resource and pass of a loaded frame graph
// description. Imported resources are bound to their own name as the device
// object. exec supplies the recording function of each pass and may be nil.
func FromModel(ctx context.Context, m *config.Model, exec func(pass string) node.ExecuteFunc) (*Builder, error) {
	logger := ctxlog.FromContext(ctx)
	b := New()

	handles := make(map[string]resource.Handle, len(m.Images)+len(m.Buffers))
	for _, img := range m.Images {
		desc := resource.ImageDesc{
			Name:        img.Name,
			Format:      img.Format,
			Width:       img.Width,
			Height:      img.Height,
			Depth:       img.Depth,
			MipLevels:   img.MipLevels,
			ArrayLayers: img.ArrayLayers,
			Dedicated:   img.Dedicated,
		}
		if img.Imported {
			handles["image."+img.Name] = b.ImportImage(desc, img.Name, img.Initial)
		} else {
			handles["image."+img.Name] = b.PromiseImage(desc)
		}
	}
	for _, buf := range m.Buffers {
		desc := resource.BufferDesc{Name: buf.Name, Size: buf.Size, Dedicated: buf.Dedicated}
		if buf.Imported {
			handles["buffer."+buf.Name] = b.ImportBuffer(desc, buf.Name, buf.Initial)
		} else {
			handles["buffer."+buf.Name] = b.PromiseBuffer(desc)
		}
	}
	logger.Debug("Build: Resources declared.", "images", len(m.Images), "buffers", len(m.Buffers))

	ids := make(map[string]node.ID, len(m.Passes))
	for _, p := range m.Passes {
		desc := node.PassDesc{Name: p.Name, Queue: p.Queue}
		if exec != nil {
			desc.Execute = exec(p.Name)
		}
		bindings := make(node.Bindings, len(p.Slots))
		for _, s := range p.Slots {
			desc.Slots = append(desc.Slots, node.Slot{
				Name:       s.Name,
				Kind:       s.Kind,
				State:      s.State,
				FinalState: s.FinalState,
				Range:      s.Range,
			})
			bind := node.Binding{From: s.From, As: s.As}
			if s.Resource != "" {
				key := "buffer." + s.Resource
				if s.Image {
					key = "image." + s.Resource
				}
				h, ok := handles[key]
				if !ok {
					return nil, fmt.Errorf("pass '%s' slot '%s': unknown resource %q", p.Name, s.Name, key)
				}
				bind.Handle = h
			}
			bindings[s.Name] = bind
		}

		id, err := b.AddFrameGraphPass(desc, bindings)
		if err != nil {
			return nil, err
		}
		ids[p.Name] = id
	}

	for _, p := range m.Passes {
		for _, dep := range p.DependsOn {
			before, ok := ids[dep]
			if !ok {
				return nil, fmt.Errorf("pass '%s' depends on '%s': %w", p.Name, dep, ErrUnknownPass)
			}
			if err := b.AddDependency(before, ids[p.Name]); err != nil {
				return nil, err
			}
		}
	}
	logger.Debug("Build: Passes declared.", "count", len(m.Passes))
	return b, nil
}
