package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot is used to decode all top-level blocks of one file.
type fileRoot struct {
	Images  []*imageBlock  `hcl:"image,block"`
	Buffers []*bufferBlock `hcl:"buffer,block"`
	Passes  []*passBlock   `hcl:"pass,block"`
}

type imageBlock struct {
	Name        string      `hcl:"name,label"`
	Format      string      `hcl:"format,optional"`
	Width       uint32      `hcl:"width,optional"`
	Height      uint32      `hcl:"height,optional"`
	Depth       uint32      `hcl:"depth,optional"`
	MipLevels   uint32      `hcl:"mip_levels,optional"`
	ArrayLayers uint32      `hcl:"array_layers,optional"`
	Dedicated   bool        `hcl:"dedicated,optional"`
	Imported    bool        `hcl:"imported,optional"`
	Initial     *stateBlock `hcl:"initial,block"`
}

type bufferBlock struct {
	Name      string      `hcl:"name,label"`
	Size      uint64      `hcl:"size"`
	Dedicated bool        `hcl:"dedicated,optional"`
	Imported  bool        `hcl:"imported,optional"`
	Initial   *stateBlock `hcl:"initial,block"`
}

// stateBlock holds the raw expressions of a synchronization state. They are
// evaluated against the loader's evaluation context.
type stateBlock struct {
	Access hcl.Expression `hcl:"access,optional"`
	Stage  hcl.Expression `hcl:"stage,optional"`
	Layout hcl.Expression `hcl:"layout,optional"`
	Queue  hcl.Expression `hcl:"queue,optional"`
}

// passBlock keeps its slots in the remaining body so that their order across
// kinds survives decoding.
type passBlock struct {
	Name      string         `hcl:"name,label"`
	Queue     hcl.Expression `hcl:"queue,optional"`
	DependsOn hcl.Expression `hcl:"depends_on,optional"`
	Body      hcl.Body       `hcl:",remain"`
}

type rangeBlock struct {
	BaseMip    uint32 `hcl:"base_mip,optional"`
	MipCount   uint32 `hcl:"mip_count,optional"`
	BaseLayer  uint32 `hcl:"base_layer,optional"`
	LayerCount uint32 `hcl:"layer_count,optional"`
	Offset     uint64 `hcl:"offset,optional"`
	Size       uint64 `hcl:"size,optional"`
}

var slotKinds = []string{"input", "output", "inout", "transient"}

var passBodySchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "input", LabelNames: []string{"name"}},
		{Type: "output", LabelNames: []string{"name"}},
		{Type: "inout", LabelNames: []string{"name"}},
		{Type: "transient", LabelNames: []string{"name"}},
	},
}

var slotBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "resource"},
		{Name: "from"},
		{Name: "as"},
		{Name: "access"},
		{Name: "stage"},
		{Name: "layout"},
		{Name: "queue"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "final"},
		{Type: "range"},
	},
}
