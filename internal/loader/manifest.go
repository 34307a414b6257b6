package loader

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

type manifestFile struct {
	Metrics []*manifest `hcl:"metric,block"`
	Remain  hcl.Body    `hcl:",remain"`
}

type manifest struct {
	Name      string     `hcl:"name,label"`
	Weight    float64    `hcl:"weight"`
	Timeout   *string    `hcl:"timeout,optional"`
	Isolation *string    `hcl:"isolation,optional"`
	Command   []string   `hcl:"command,optional"`
	Image     *string    `hcl:"image,optional"`
	CPUs      *float64   `hcl:"cpus,optional"`
	MemoryMB  *int64     `hcl:"memory_mb,optional"`
	Arguments *argsBlock `hcl:"arguments,block"`
}

type argsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// decodeArgs flattens the arguments block into strings. Collections are
// joined with commas so metrics can split them again with ParseKeys.
func decodeArgs(b *argsBlock) (map[string]string, error) {
	out := map[string]string{}
	if b == nil {
		return out, nil
	}
	attrs, diags := b.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		s, err := argString(val)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		out[name] = s
	}
	return out, nil
}

func argString(val cty.Value) (string, error) {
	if val.IsNull() || !val.IsKnown() {
		return "", fmt.Errorf("value must be known and not null")
	}
	ty := val.Type()
	if ty.IsListType() || ty.IsTupleType() || ty.IsSetType() {
		parts := make([]string, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			s, err := argString(elem)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	}
	str, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", err
	}
	return str.AsString(), nil
}
