package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/framegraph/internal/ctxlog"
	"github.com/vk/framegraph/internal/fghcl"
	"github.com/vk/framegraph/internal/gfx"
	"github.com/zclconf/go-cty/cty"
)

// isExprDefined checks if an HCL expression was actually present in the source
// code. gohcl fills omitted optional expression fields with zero-width
// placeholders, so a nil check is not enough.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	isDefined := r.End.Byte > r.Start.Byte
	ctxlog.FromContext(ctx).Debug("Checking if HCL attribute was explicitly defined.",
		"attribute", attrName,
		"hcl_range", r.String(),
		"is_defined", isDefined,
	)
	return isDefined
}

// newEvalContext exposes the names of every access, stage, layout and queue
// class, so files can write `layout.shader_read` instead of a string.
func newEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"access": fghcl.NameObject(gfx.AccessNames()),
			"stage":  fghcl.NameObject(gfx.StageNames()),
			"layout": fghcl.NameObject(gfx.LayoutNames()),
			"queue":  fghcl.NameObject(gfx.QueueNames()),
		},
	}
}

// diagError turns a parse failure of a single name into a diagnostic.
func diagError(expr hcl.Expression, summary string, err error) hcl.Diagnostics {
	return hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   fmt.Sprintf("%s.", err),
		Subject:  expr.Range().Ptr(),
	}}
}
