package easyogr

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Attributes is an insertion-ordered attribute set. Field order is part of a
// feature's identity: it determines output schema order when features are
// written back to a source.
type Attributes struct {
	m *orderedmap.OrderedMap[string, any]
}

// NewAttributes returns an empty attribute set.
func NewAttributes() *Attributes {
	return &Attributes{m: orderedmap.New[string, any]()}
}

// AttributesFrom builds an attribute set from parallel name/value slices.
// Extra names take nil values.
func AttributesFrom(names []string, values []any) *Attributes {
	a := NewAttributes()
	for i, name := range names {
		var v any
		if i < len(values) {
			v = values[i]
		}
		a.Set(name, v)
	}
	return a
}

// Set stores a value, appending the field when new.
func (a *Attributes) Set(name string, value any) {
	a.m.Set(name, value)
}

// Get returns the value of a field and whether it exists.
func (a *Attributes) Get(name string) (any, bool) {
	return a.m.Get(name)
}

// Delete removes a field, reporting whether it was present.
func (a *Attributes) Delete(name string) bool {
	_, ok := a.m.Delete(name)
	return ok
}

// Len returns the number of fields.
func (a *Attributes) Len() int { return a.m.Len() }

// Names returns field names in insertion order.
func (a *Attributes) Names() []string {
	names := make([]string, 0, a.m.Len())
	for pair := a.m.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Each walks fields in insertion order until fn returns false.
func (a *Attributes) Each(fn func(name string, value any) bool) {
	for pair := a.m.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// Values returns attribute values in insertion order.
func (a *Attributes) Values() []any {
	values := make([]any, 0, a.m.Len())
	for pair := a.m.Oldest(); pair != nil; pair = pair.Next() {
		values = append(values, pair.Value)
	}
	return values
}

// Map flattens the set for clause evaluation. Field order is lost.
func (a *Attributes) Map() map[string]any {
	out := make(map[string]any, a.m.Len())
	for pair := a.m.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}

// Copy returns an independent attribute set with the same fields and order.
func (a *Attributes) Copy() *Attributes {
	out := NewAttributes()
	for pair := a.m.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, pair.Value)
	}
	return out
}
