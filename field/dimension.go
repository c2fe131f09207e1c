package field

import (
	"fmt"

	"github.com/rupeshkmr/phiflow/tensor"
)

// Dimension is a typed handle on one named dimension of a Field,
// supporting size queries, indexing and unstacking.
type Dimension struct {
	field Field
	name  string
}

// Dimension returns a handle for the named dimension. The dimension
// need not exist; Exists reports whether it does.
func (f Field) Dimension(name string) Dimension {
	return Dimension{field: f, name: name}
}

func (d Dimension) Name() string { return d.name }

func (d Dimension) Exists() bool {
	return d.field.Shape().Has(d.name) || d.field.values.Shape().Has(d.name)
}

func (d Dimension) Size() int {
	if s := d.field.values.Shape(); s.Has(d.name) {
		return s.Size(d.name)
	}
	return d.field.Shape().Size(d.name)
}

func (d Dimension) kind() (tensor.Kind, bool) {
	if dim, ok := d.field.values.Shape().Dim(d.name); ok {
		return dim.Kind, true
	}
	if dim, ok := d.field.Shape().Dim(d.name); ok {
		return dim.Kind, true
	}
	return 0, false
}

func (d Dimension) IsBatch() bool    { k, ok := d.kind(); return ok && k == tensor.Batch }
func (d Dimension) IsSpatial() bool  { k, ok := d.kind(); return ok && k == tensor.Spatial }
func (d Dimension) IsInstance() bool { k, ok := d.kind(); return ok && k == tensor.Instance }
func (d Dimension) IsChannel() bool  { k, ok := d.kind(); return ok && k == tensor.Channel }
func (d Dimension) IsDual() bool     { k, ok := d.kind(); return ok && k == tensor.DualKind }

// Index selects one slice along this dimension.
func (d Dimension) Index(i int) (Field, error) {
	if !d.Exists() {
		return Field{}, fmt.Errorf("field has no dimension %q", d.name)
	}
	return d.field.Slice(map[string]int{d.name: i})
}

// Unstack splits the field along this dimension.
func (d Dimension) Unstack() ([]Field, error) {
	if !d.Exists() {
		return nil, fmt.Errorf("field has no dimension %q", d.name)
	}
	n := d.Size()
	out := make([]Field, n)
	for i := 0; i < n; i++ {
		f, err := d.Index(i)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
