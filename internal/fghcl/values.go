package fghcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// NameObject builds an object whose attributes evaluate to their own names,
// so `layout.present` in a file reads as "present".
func NameObject(names []string) cty.Value {
	attrs := make(map[string]cty.Value, len(names))
	for _, n := range names {
		attrs[n] = cty.StringVal(n)
	}
	return cty.ObjectVal(attrs)
}

// String evaluates expr to a string.
func String(expr hcl.Expression, ctx *hcl.EvalContext) (string, hcl.Diagnostics) {
	val, diags := expr.Value(ctx)
	if diags.HasErrors() {
		return "", diags
	}
	val, err := convert.Convert(val, cty.String)
	if err != nil || val.IsNull() {
		return "", typeError(expr, "a string", err)
	}
	return val.AsString(), nil
}

// StringList evaluates expr to a list of strings. A single string is read as
// a list of one.
func StringList(expr hcl.Expression, ctx *hcl.EvalContext) ([]string, hcl.Diagnostics) {
	val, diags := expr.Value(ctx)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.Type() == cty.String {
		val = cty.TupleVal([]cty.Value{val})
	}
	list, err := convert.Convert(val, cty.List(cty.String))
	if err != nil {
		return nil, typeError(expr, "a list of strings", err)
	}
	var out []string
	if err := gocty.FromCtyValue(list, &out); err != nil {
		return nil, typeError(expr, "a list of strings", err)
	}
	return out, nil
}

func typeError(expr hcl.Expression, want string, err error) hcl.Diagnostics {
	detail := fmt.Sprintf("The value must be %s.", want)
	if err != nil {
		detail = fmt.Sprintf("The value must be %s: %s.", want, err)
	}
	return hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  "Incorrect attribute value type",
		Detail:   detail,
		Subject:  expr.Range().Ptr(),
	}}
}
