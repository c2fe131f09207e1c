package field

import (
	"github.com/rupeshkmr/phiflow/extrapolation"
	"github.com/rupeshkmr/phiflow/tensor"
)

// Embedding treats another field as the boundary rule: values outside
// the sampled region come from the embedded field. Structural
// properties (validity, gradients) delegate to the embedded field's own
// boundary; the resampler queries Value for actual outside positions.
type Embedding struct {
	field Field
}

func Embed(f Field) Embedding { return Embedding{field: f} }

func (e Embedding) Field() Field { return e.field }

func (e Embedding) Name() string { return "embedding" }

func (e Embedding) Equals(other extrapolation.Extrapolation) bool {
	o, ok := other.(Embedding)
	return ok && e.field.Equal(o.field)
}

func (e Embedding) Neg() extrapolation.Extrapolation {
	return Embedding{field: e.field.Neg()}
}

func (e Embedding) SpatialGradient() extrapolation.Extrapolation {
	return e.field.boundary.SpatialGradient()
}

func (e Embedding) Component(item string) extrapolation.Extrapolation {
	f, err := e.field.Slice(map[string]int{"vector": itemIndex(e.field, item)})
	if err != nil {
		return Embedding{field: e.field}
	}
	return Embedding{field: f}
}

func itemIndex(f Field, item string) int {
	for i, a := range f.geometry.Axes() {
		if a == item {
			return i
		}
	}
	return 0
}

func (e Embedding) ValidOuterFaces(axis string) (bool, bool) {
	return e.field.boundary.ValidOuterFaces(axis)
}

func (e Embedding) DeterminesBoundaryValues(key string) bool {
	return e.field.boundary.DeterminesBoundaryValues(key)
}

// PadAxis extends with the embedded field's own boundary rule; exact
// outside values are produced by the resampler, which knows positions.
func (e Embedding) PadAxis(t tensor.Tensor, axis string, lower, upper int) (tensor.Tensor, error) {
	return e.field.boundary.PadAxis(t, axis, lower, upper)
}

// ResolveIndex never remaps: outside values come from the embedded
// field, queried by world position during interpolation.
func (e Embedding) ResolveIndex(axis string, i, n int) (int, bool) {
	return 0, false
}

func (e Embedding) ConstantValue(idx map[string]int) float64 {
	return e.field.boundary.ConstantValue(idx)
}

// valueAt samples the embedded field at a world position, the precise
// outside-value query used during interpolation.
func (e Embedding) valueAt(pos []float64, axes []string, channel string) (float64, error) {
	loc := make([]float64, len(axes))
	copy(loc, pos)
	return evalPoint(e.field, channel, loc, axes)
}
