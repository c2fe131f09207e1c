package field

import (
	"fmt"

	"github.com/rupeshkmr/phiflow/geom"
	"github.com/rupeshkmr/phiflow/tensor"
)

// Stack combines fields along a new named dimension. The geometries
// stack variant-preserving where possible and all fields must share
// one boundary rule.
func Stack(dim tensor.Dim, fields ...Field) (Field, error) {
	if len(fields) == 0 {
		return Field{}, fmt.Errorf("stack of zero fields")
	}
	first := fields[0]
	geos := make([]geom.Geometry, len(fields))
	values := make([]tensor.Tensor, len(fields))
	for i, f := range fields {
		if !f.boundary.Equals(first.boundary) {
			return Field{}, fmt.Errorf("stacked fields carry different boundary rules %s and %s",
				first.boundary.Name(), f.boundary.Name())
		}
		geos[i] = f.geometry
		values[i] = f.values
	}
	g := geom.Stack(dim, geos...)
	return New(g, tensor.Stack(dim, values...), first.boundary)
}

// Concat joins fields along an existing batch or instance dimension.
// All fields must share one geometry and one boundary rule; spatial
// concatenation would need geometry stitching and is unsupported.
func Concat(name string, fields ...Field) (Field, error) {
	if len(fields) == 0 {
		return Field{}, fmt.Errorf("concat of zero fields")
	}
	first := fields[0]
	d, ok := first.values.Shape().Dim(name)
	if !ok || (d.Kind != tensor.Batch && d.Kind != tensor.Instance) {
		return Field{}, fmt.Errorf("%w: concat along %q, want a batch or instance dim", geom.ErrUnsupported, name)
	}
	values := make([]tensor.Tensor, len(fields))
	for i, f := range fields {
		if !f.geometry.EqualTo(first.geometry) {
			return Field{}, fmt.Errorf("concatenated fields live on different geometries")
		}
		if !f.boundary.Equals(first.boundary) {
			return Field{}, fmt.Errorf("concatenated fields carry different boundary rules %s and %s",
				first.boundary.Name(), f.boundary.Name())
		}
		values[i] = f.values
	}
	return New(first.geometry, tensor.Concat(name, values...), first.boundary)
}
