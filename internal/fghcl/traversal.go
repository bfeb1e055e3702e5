package fghcl

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclwrite"
)

// TraversalKey renders a traversal the way it is written in source, e.g.
// "pass.gbuffer.albedo".
func TraversalKey(t hcl.Traversal) string {
	return string(hclwrite.TokensForTraversal(t).Bytes())
}

// Reference reads expr as a static reference rooted at one of roots, such as
// image.hdr or pass.draw.color, and returns its root and the attribute names
// that follow. want is the number of attribute names expected.
func Reference(expr hcl.Expression, want int, roots ...string) (string, []string, hcl.Diagnostics) {
	t, diags := hcl.AbsTraversalForExpr(expr)
	if diags.HasErrors() {
		return "", nil, diags
	}

	invalid := func(detail string) hcl.Diagnostics {
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid reference",
			Detail:   detail,
			Subject:  expr.Range().Ptr(),
		}}
	}

	root := t.RootName()
	known := false
	for _, r := range roots {
		known = known || r == root
	}
	if !known {
		return "", nil, invalid(fmt.Sprintf("%q must start with one of: %s.", TraversalKey(t), strings.Join(roots, ", ")))
	}

	var names []string
	for _, step := range t[1:] {
		attr, ok := step.(hcl.TraverseAttr)
		if !ok {
			return "", nil, invalid(fmt.Sprintf("%q may only contain attribute names.", TraversalKey(t)))
		}
		names = append(names, attr.Name)
	}
	if len(names) != want {
		return "", nil, invalid(fmt.Sprintf("%q must have %d name(s) after %q.", TraversalKey(t), want, root))
	}
	return root, names, nil
}

// References reads a list expression of static references, as used by
// depends_on.
func References(expr hcl.Expression, want int, roots ...string) ([][]string, hcl.Diagnostics) {
	exprs, diags := hcl.ExprList(expr)
	if diags.HasErrors() {
		return nil, diags
	}
	var out [][]string
	for _, e := range exprs {
		_, names, d := Reference(e, want, roots...)
		diags = append(diags, d...)
		if !d.HasErrors() {
			out = append(out, names)
		}
	}
	return out, diags
}
