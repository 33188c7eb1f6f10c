package pipeline

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Key names a value threaded between stages.
type Key string

const (
	KeyTypeName       Key = "type_name"
	KeyApprovedType   Key = "approved_type"
	KeyOracleName     Key = "oracle_name"
	KeyOracleAddress  Key = "oracle_address"
	KeyOracleID       Key = "oracle_id"
	KeyProductName    Key = "product_name"
	KeyProductAddress Key = "product_address"
	KeyProductID      Key = "product_id"
)

// Bindings holds the identifiers known so far in a run. Ids are kept as
// arbitrary-precision numbers, names and addresses as strings.
type Bindings struct {
	values map[Key]cty.Value
}

// NewBindings returns an empty set.
func NewBindings() *Bindings {
	return &Bindings{values: make(map[Key]cty.Value)}
}

// Has reports whether k is bound to a known, non-null value.
func (b *Bindings) Has(k Key) bool {
	v, ok := b.values[k]
	return ok && v.IsKnown() && !v.IsNull()
}

func (b *Bindings) SetString(k Key, s string) {
	b.values[k] = cty.StringVal(s)
}

func (b *Bindings) SetID(k Key, id *big.Int) {
	b.values[k] = cty.NumberVal(new(big.Float).SetInt(id))
}

// Text returns the string bound to k.
func (b *Bindings) Text(k Key) (string, error) {
	v, err := b.get(k, cty.String)
	if err != nil {
		return "", err
	}
	return v.AsString(), nil
}

// ID returns the integer bound to k.
func (b *Bindings) ID(k Key) (*big.Int, error) {
	v, err := b.get(k, cty.Number)
	if err != nil {
		return nil, err
	}
	id, acc := v.AsBigFloat().Int(nil)
	if acc != big.Exact {
		return nil, fmt.Errorf("binding %s is not an integer", k)
	}
	return id, nil
}

func (b *Bindings) get(k Key, want cty.Type) (cty.Value, error) {
	if !b.Has(k) {
		return cty.NilVal, fmt.Errorf("binding %s is not set", k)
	}
	v := b.values[k]
	if !v.Type().Equals(want) {
		return cty.NilVal, fmt.Errorf("binding %s is a %s, not a %s", k, v.Type().FriendlyName(), want.FriendlyName())
	}
	return v, nil
}

// Missing returns the keys from keys that are not bound.
func (b *Bindings) Missing(keys []Key) []Key {
	var out []Key
	for _, k := range keys {
		if !b.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Snapshot renders every binding as a string, for logs and the journal.
func (b *Bindings) Snapshot() map[string]string {
	out := make(map[string]string, len(b.values))
	for k := range b.values {
		out[string(k)] = b.render(k)
	}
	return out
}

// Keys returns the bound keys in sorted order.
func (b *Bindings) Keys() []Key {
	out := make([]Key, 0, len(b.values))
	for k := range b.values {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (b *Bindings) render(k Key) string {
	v := b.values[k]
	switch {
	case !v.IsKnown() || v.IsNull():
		return ""
	case v.Type().Equals(cty.Number):
		id, _ := v.AsBigFloat().Int(nil)
		return id.String()
	case v.Type().Equals(cty.String):
		return v.AsString()
	default:
		return v.GoString()
	}
}
