// Package fghcl holds small HCL helpers shared by the frame graph loader and
// formatter.
package fghcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// FindUniqueBlock returns the block of the given type, or nil when there is
// none. Every repeated block of that type produces an error diagnostic that
// names the enclosing block.
func FindUniqueBlock(blocks hcl.Blocks, blockType, parent string) (*hcl.Block, hcl.Diagnostics) {
	var found *hcl.Block
	var diags hcl.Diagnostics

	for _, block := range blocks.OfType(blockType) {
		if found != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  fmt.Sprintf("Duplicate %q block", blockType),
				Detail:   fmt.Sprintf("Only one %q block is allowed in %s; the first one is at %s.", blockType, parent, found.DefRange),
				Subject:  block.DefRange.Ptr(),
			})
			continue
		}
		found = block
	}
	return found, diags
}
