package hcl_adapter

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/vk/framegraph/internal/config"
	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/substate"
	"github.com/zclconf/go-cty/cty"
)

// Format renders a model as a canonical HCL file that Load reads back into
// the same model.
func Format(m *config.Model) []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	for _, img := range m.Images {
		b := body.AppendNewBlock("image", []string{img.Name}).Body()
		if img.Format != gfx.FormatUndefined {
			b.SetAttributeValue("format", cty.StringVal(string(img.Format)))
		}
		setUint(b, "width", uint64(img.Width))
		setUint(b, "height", uint64(img.Height))
		setUint(b, "depth", uint64(img.Depth))
		setUint(b, "mip_levels", uint64(img.MipLevels))
		setUint(b, "array_layers", uint64(img.ArrayLayers))
		writeOwnership(b, img.Dedicated, img.Imported, img.Initial)
		body.AppendNewline()
	}
	for _, buf := range m.Buffers {
		b := body.AppendNewBlock("buffer", []string{buf.Name}).Body()
		b.SetAttributeValue("size", cty.NumberUIntVal(buf.Size))
		writeOwnership(b, buf.Dedicated, buf.Imported, buf.Initial)
		body.AppendNewline()
	}
	for i, p := range m.Passes {
		if i > 0 {
			body.AppendNewline()
		}
		writePass(body, p)
	}
	return hclwrite.Format(f.Bytes())
}

func setUint(b *hclwrite.Body, name string, v uint64) {
	if v != 0 {
		b.SetAttributeValue(name, cty.NumberUIntVal(v))
	}
}

func writeOwnership(b *hclwrite.Body, dedicated, imported bool, initial substate.State) {
	if dedicated {
		b.SetAttributeValue("dedicated", cty.True)
	}
	if imported {
		b.SetAttributeValue("imported", cty.True)
		writeState(b.AppendNewBlock("initial", nil).Body(), initial)
	}
}

func writePass(body *hclwrite.Body, p *config.Pass) {
	b := body.AppendNewBlock("pass", []string{p.Name}).Body()
	if p.Queue != gfx.QueueIgnored {
		b.SetAttributeTraversal("queue", ref("queue", p.Queue.String()))
	}
	if len(p.DependsOn) > 0 {
		var elems []hclwrite.Tokens
		for _, d := range p.DependsOn {
			elems = append(elems, hclwrite.TokensForTraversal(ref("pass", d)))
		}
		b.SetAttributeRaw("depends_on", hclwrite.TokensForTuple(elems))
	}

	for _, s := range p.Slots {
		sb := b.AppendNewBlock(s.Kind.String(), []string{s.Name}).Body()
		if s.Resource != "" {
			root := "buffer"
			if s.Image {
				root = "image"
			}
			sb.SetAttributeTraversal("resource", ref(root, s.Resource))
		}
		if s.From != "" {
			if parts := strings.Split(s.From, "."); len(parts) == 2 {
				sb.SetAttributeTraversal("from", ref("pass", parts...))
			} else {
				sb.SetAttributeValue("from", cty.StringVal(s.From))
			}
		}
		if s.As != "" {
			sb.SetAttributeValue("as", cty.StringVal(s.As))
		}
		writeState(sb, s.State)
		if s.FinalState != (substate.State{}) {
			writeState(sb.AppendNewBlock("final", nil).Body(), s.FinalState)
		}
		writeRange(sb, s.Range)
	}
}

func writeState(b *hclwrite.Body, s substate.State) {
	if s.Access != gfx.AccessNone {
		b.SetAttributeRaw("access", flagTuple("access", s.Access.String()))
	}
	if s.Stage != gfx.StageNone {
		b.SetAttributeRaw("stage", flagTuple("stage", s.Stage.String()))
	}
	if s.Layout != gfx.LayoutUndefined {
		b.SetAttributeTraversal("layout", ref("layout", s.Layout.String()))
	}
	if s.Queue != gfx.QueueIgnored {
		b.SetAttributeTraversal("queue", ref("queue", s.Queue.String()))
	}
}

// flagTuple writes "a|b" as [root.a, root.b].
func flagTuple(root, flags string) hclwrite.Tokens {
	var elems []hclwrite.Tokens
	for _, name := range strings.Split(flags, "|") {
		elems = append(elems, hclwrite.TokensForTraversal(ref(root, name)))
	}
	return hclwrite.TokensForTuple(elems)
}

func writeRange(b *hclwrite.Body, r substate.Range) {
	switch r := r.(type) {
	case nil:
	case substate.ImageRange:
		rb := b.AppendNewBlock("range", nil).Body()
		rb.SetAttributeValue("base_mip", cty.NumberUIntVal(uint64(r.BaseMip)))
		rb.SetAttributeValue("mip_count", cty.NumberUIntVal(uint64(r.MipCount)))
		rb.SetAttributeValue("base_layer", cty.NumberUIntVal(uint64(r.BaseLayer)))
		rb.SetAttributeValue("layer_count", cty.NumberUIntVal(uint64(r.LayerCount)))
	case substate.BufferRange:
		rb := b.AppendNewBlock("range", nil).Body()
		rb.SetAttributeValue("offset", cty.NumberUIntVal(r.Offset))
		rb.SetAttributeValue("size", cty.NumberUIntVal(r.Size))
	default:
		panic("hcl_adapter: unknown range type")
	}
}

func ref(root string, names ...string) hcl.Traversal {
	t := hcl.Traversal{hcl.TraverseRoot{Name: root}}
	for _, n := range names {
		t = append(t, hcl.TraverseAttr{Name: n})
	}
	return t
}
