package hcl_adapter

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/framegraph/internal/config"
	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/node"
	"github.com/vk/framegraph/internal/substate"
	"github.com/vk/framegraph/internal/testutil"
)

const resourcesHCL = `
image "hdr" {
  format     = "rgba16f"
  width      = 64
  height     = 32
  mip_levels = 4
}

image "backbuffer" {
  format   = "bgra8"
  width    = 64
  height   = 32
  imported = true
  initial {
    layout = layout.present
    queue  = queue.graphics
  }
}

buffer "histogram" {
  size = 1024
}
`

const passesHCL = `
pass "draw" {
  output "color" {
    resource = image.hdr
    access   = [access.color_write]
    stage    = stage.color_output
    layout   = layout.color_attachment
  }
}

pass "luminance" {
  queue = queue.compute

  input "src" {
    from   = pass.draw.color
    access = [access.shader_read]
    stage  = [stage.compute_shader]
    layout = layout.shader_read
    range {
      base_mip = 1
    }
  }
  transient "bins" {
    resource = buffer.histogram
    access   = [access.shader_read, access.shader_write]
    stage    = [stage.compute_shader]
    range {
      offset = 256
    }
  }
}

pass "tonemap" {
  depends_on = [pass.luminance]

  input "hdr" {
    from   = "draw.color"
    access = ["shader_read"]
    stage  = ["fragment_shader"]
    layout = "shader_read"
  }
  inout "target" {
    resource = image.backbuffer
    as       = "final"
    access   = [access.color_write]
    stage    = [stage.color_output]
    layout   = layout.color_attachment
    final {
      layout = layout.present
    }
  }
}
`

func load(t *testing.T, files map[string]string) (*config.Model, error) {
	t.Helper()
	ctx, _ := testutil.Context(t)
	dir := testutil.WriteFiles(t, files)
	return NewLoader().Load(ctx, dir)
}

func TestLoad(t *testing.T) {
	m, err := load(t, map[string]string{
		"a_resources.hcl": resourcesHCL,
		"b_passes.hcl":    passesHCL,
		"notes.txt":       "ignored",
	})
	require.NoError(t, err)

	want := &config.Model{
		Images: []*config.Image{
			{Name: "hdr", Format: gfx.FormatRGBA16F, Width: 64, Height: 32, MipLevels: 4},
			{Name: "backbuffer", Format: gfx.FormatBGRA8, Width: 64, Height: 32, Imported: true,
				Initial: substate.State{Layout: gfx.LayoutPresent, Queue: gfx.QueueGraphics}},
		},
		Buffers: []*config.Buffer{{Name: "histogram", Size: 1024}},
		Passes: []*config.Pass{
			{Name: "draw", Slots: []*config.Slot{{
				Name: "color", Kind: node.Output, Resource: "hdr", Image: true,
				State: substate.State{Access: gfx.AccessColorWrite, Stage: gfx.StageColorOutput, Layout: gfx.LayoutColorAttachment},
			}}},
			{Name: "luminance", Queue: gfx.QueueCompute, Slots: []*config.Slot{
				{
					Name: "src", Kind: node.Input, From: "draw.color", Image: true,
					State: substate.State{Access: gfx.AccessShaderRead, Stage: gfx.StageComputeShader, Layout: gfx.LayoutShaderRead},
					Range: substate.ImageRange{BaseMip: 1, MipCount: 3, LayerCount: 1},
				},
				{
					Name: "bins", Kind: node.Transient, Resource: "histogram",
					State: substate.State{Access: gfx.AccessShaderRead | gfx.AccessShaderWrite, Stage: gfx.StageComputeShader},
					Range: substate.BufferRange{Offset: 256, Size: 768},
				},
			}},
			{Name: "tonemap", DependsOn: []string{"luminance"}, Slots: []*config.Slot{
				{
					Name: "hdr", Kind: node.Input, From: "draw.color", Image: true,
					State: substate.State{Access: gfx.AccessShaderRead, Stage: gfx.StageFragmentShader, Layout: gfx.LayoutShaderRead},
				},
				{
					Name: "target", Kind: node.InOut, Resource: "backbuffer", Image: true, As: "final",
					State:      substate.State{Access: gfx.AccessColorWrite, Stage: gfx.StageColorOutput, Layout: gfx.LayoutColorAttachment},
					FinalState: substate.State{Layout: gfx.LayoutPresent},
				},
			}},
		},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("model mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "syntax error",
			src:  `pass "x" {`,
			want: "failed to parse HCL file",
		},
		{
			name: "unknown top-level block",
			src:  `texture "x" {}`,
			want: "failed to decode HCL file",
		},
		{
			name: "unknown resource",
			src: `pass "x" {
  output "o" {
    resource = image.nope
  }
}`,
			want: `No image named "nope"`,
		},
		{
			name: "unknown access",
			src: `buffer "b" { size = 4 }
pass "x" {
  output "o" {
    resource = buffer.b
    access   = ["teleport"]
  }
}`,
			want: "unknown access",
		},
		{
			name: "unknown enum attribute",
			src: `buffer "b" { size = 4 }
pass "x" {
  output "o" {
    resource = buffer.b
    stage    = stage.warp
  }
}`,
			want: "Unsupported attribute",
		},
		{
			name: "duplicate final",
			src: `buffer "b" { size = 4 }
pass "x" {
  inout "o" {
    resource = buffer.b
    final {}
    final {}
  }
}`,
			want: `Duplicate "final" block`,
		},
		{
			name: "range on unresolved input",
			src: `pass "x" {
  input "i" {
    from = "elsewhere"
    range {}
  }
}`,
			want: "Unresolved range",
		},
		{
			name: "initial on promised resource",
			src: `buffer "b" {
  size = 4
  initial {}
}`,
			want: "only imported resources have an initial state",
		},
		{
			name: "duplicate pass",
			src:  `pass "x" {}` + "\n" + `pass "x" {}`,
			want: `pass "x" is declared more than once`,
		},
		{
			name: "bad depends_on",
			src:  `pass "x" { depends_on = [image.hdr] }`,
			want: "Invalid reference",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(t, map[string]string{"graph.hcl": tc.src})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad_Paths(t *testing.T) {
	ctx, _ := testutil.Context(t)
	dir := testutil.WriteFiles(t, map[string]string{"graph.hcl": resourcesHCL})

	m, err := NewLoader().Load(ctx, filepath.Join(dir, "graph.hcl"), dir)
	require.NoError(t, err, "a file given twice is loaded once")
	assert.Len(t, m.Images, 2)

	_, err = NewLoader().Load(ctx, filepath.Join(dir, "missing.hcl"))
	assert.ErrorContains(t, err, "error accessing path")

	empty := t.TempDir()
	_, err = NewLoader().Load(ctx, empty)
	assert.ErrorContains(t, err, "no .hcl files found")
}

func TestFormat_LoadsBack(t *testing.T) {
	first, err := load(t, map[string]string{"a.hcl": resourcesHCL, "b.hcl": passesHCL})
	require.NoError(t, err)

	out := Format(first)
	assert.Contains(t, string(out), "pass.draw.color")
	assert.Contains(t, string(out), "[access.shader_read, access.shader_write]")

	second, err := load(t, map[string]string{"formatted.hcl": string(out)})
	require.NoError(t, err, string(out))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("formatted model differs (-loaded +reloaded):\n%s", diff)
	}
}
