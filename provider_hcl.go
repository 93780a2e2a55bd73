// FILE: lixenwraith/forgeconfig/provider_hcl.go
package forgeconfig

import (
	"context"
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

var (
	selectorType = cty.Capsule("selector", reflect.TypeOf(Selector{}))
	patternType  = cty.Capsule("pattern", reflect.TypeOf(regexp.Regexp{}))
)

// HCLProvider evaluates HCL configuration files. Top-level attributes form the
// exported record in source order. Expressions may call
// from_build_identifier(values, [default]) and regexp(pattern) along with a
// small set of string and collection functions.
type HCLProvider struct{}

// NewHCLProvider creates an HCL source provider
func NewHCLProvider() *HCLProvider {
	return &HCLProvider{}
}

// Extensions implements SourceProvider
func (p *HCLProvider) Extensions() []string {
	return []string{".hcl"}
}

// Load implements SourceProvider
func (p *HCLProvider) Load(ctx context.Context, path string) (any, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %w", diags)
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to read HCL attributes: %w", diags)
	}

	ordered := make([]*hcl.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		ordered = append(ordered, attr)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Range.Start.Byte < ordered[j].Range.Start.Byte
	})

	evalCtx := &hcl.EvalContext{Functions: hclFunctions()}
	rec := NewRecord()
	for _, attr := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		val, diags := attr.Expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to evaluate '%s': %w", attr.Name, diags)
		}
		native, err := ctyToNative(val)
		if err != nil {
			return nil, fmt.Errorf("in attribute '%s': %w", attr.Name, err)
		}
		rec.Set(attr.Name, native)
	}
	return rec, nil
}

func hclFunctions() map[string]function.Function {
	return map[string]function.Function{
		"from_build_identifier": fromBuildIdentifierFunc,
		"regexp":                regexpFunc,
		"upper":                 stdlib.UpperFunc,
		"lower":                 stdlib.LowerFunc,
		"format":                stdlib.FormatFunc,
		"join":                  stdlib.JoinFunc,
		"concat":                stdlib.ConcatFunc,
		"merge":                 stdlib.MergeFunc,
	}
}

var fromBuildIdentifierFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "values", Type: cty.DynamicPseudoType},
	},
	VarParam: &function.Parameter{Name: "default", Type: cty.DynamicPseudoType, AllowNull: true},
	Type:     function.StaticReturnType(selectorType),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		values := args[0]
		if ty := values.Type(); !ty.IsObjectType() && !ty.IsMapType() {
			return cty.NilVal, function.NewArgErrorf(0, "values must be an object, got %s", ty.FriendlyName())
		}
		if len(args) > 2 {
			return cty.NilVal, function.NewArgErrorf(2, "at most one default may be given")
		}

		sel := &Selector{Values: make(map[string]any)}
		for it := values.ElementIterator(); it.Next(); {
			k, v := it.Element()
			native, err := ctyToNative(v)
			if err != nil {
				return cty.NilVal, function.NewArgErrorf(0, "in '%s': %s", k.AsString(), err)
			}
			sel.Values[k.AsString()] = native
		}
		if len(args) == 2 {
			native, err := ctyToNative(args[1])
			if err != nil {
				return cty.NilVal, function.NewArgError(1, err)
			}
			sel.Default = native
			sel.HasDefault = true
		}
		return cty.CapsuleVal(selectorType, sel), nil
	},
})

var regexpFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "pattern", Type: cty.String},
	},
	Type: function.StaticReturnType(patternType),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		re, err := regexp.Compile(args[0].AsString())
		if err != nil {
			return cty.NilVal, function.NewArgError(0, err)
		}
		return cty.CapsuleVal(patternType, re), nil
	},
})

// ctyToNative recursively converts a cty.Value to its configuration graph form.
// Whole numbers become int64, objects and maps become records.
func ctyToNative(v cty.Value) (any, error) {
	// A nil or unknown value becomes a nil interface{}.
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()

	switch {
	case ty.Equals(selectorType):
		return v.EncapsulatedValue().(*Selector), nil

	case ty.Equals(patternType):
		return v.EncapsulatedValue().(*regexp.Regexp), nil

	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i, nil
			}
		}
		f, _ := bf.Float64()
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		slice := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, val := it.Element()
			native, err := ctyToNative(val)
			if err != nil {
				return nil, err
			}
			slice = append(slice, native)
		}
		return slice, nil

	case ty.IsObjectType() || ty.IsMapType():
		rec := NewRecord()
		for it := v.ElementIterator(); it.Next(); {
			key, val := it.Element()
			keyStr := key.AsString()
			native, err := ctyToNative(val)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", keyStr, err)
			}
			rec.Set(keyStr, native)
		}
		return rec, nil

	default:
		return nil, fmt.Errorf("unsupported cty type: %s", ty.FriendlyName())
	}
}
