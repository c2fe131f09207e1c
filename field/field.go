// Package field couples a geometry, a tensor of sampled values and a
// boundary extrapolation into one immutable quantity. Arithmetic,
// slicing and the differential operators all produce new Fields and
// share unchanged sub-objects structurally.
package field

import (
	"fmt"
	"reflect"

	"github.com/rupeshkmr/phiflow/extrapolation"
	"github.com/rupeshkmr/phiflow/geom"
	"github.com/rupeshkmr/phiflow/tensor"
)

// Sample locations accepted by the resampling engine.
const (
	AtCenter = "center"
	AtFace   = "face"
)

// Field is the triple (geometry, values, boundary). It is staggered
// when its values carry the geometry's dual face dimension; this is
// derived from the values, never stored.
type Field struct {
	geometry geom.Geometry
	values   tensor.Tensor
	boundary extrapolation.Extrapolation
}

// New validates and builds a Field. Values given under-specified are
// broadcast over the geometry's sampled shape. A nil boundary defaults
// to zero.
func New(g geom.Geometry, values tensor.Tensor, boundary extrapolation.Extrapolation) (Field, error) {
	if g == nil {
		return Field{}, fmt.Errorf("field: geometry must not be nil")
	}
	if boundary == nil {
		boundary = extrapolation.ZERO
	}
	f := Field{geometry: g, values: values, boundary: boundary}
	if f.IsStaggered() {
		if err := f.checkStaggeredSizes(); err != nil {
			return Field{}, err
		}
		return f, nil
	}
	sampled := g.Shape().NonChannel().NonDual()
	if _, err := values.Shape().Merge(sampled); err != nil {
		return Field{}, fmt.Errorf("field: values %v incompatible with geometry %v: %w", values.Shape(), g.Shape(), err)
	}
	f.values = tensor.Expand(values, sampled.NonBatch().Dims()...)
	return f, nil
}

// NewCentered fills a uniform value over the geometry's sample points.
func NewCentered(g geom.Geometry, value float64, boundary extrapolation.Extrapolation) (Field, error) {
	return New(g, tensor.Wrap(value), boundary)
}

// NewStaggered builds a uniformly filled staggered field on a grid. The
// per-component sizes follow which outer faces the boundary keeps.
func NewStaggered(g geom.UniformGrid, value float64, boundary extrapolation.Extrapolation) (Field, error) {
	if boundary == nil {
		boundary = extrapolation.ZERO
	}
	axes := g.Axes()
	parts := make([]tensor.Tensor, len(axes))
	for i, a := range axes {
		dims := make([]tensor.Dim, 0, len(axes))
		for _, d := range g.Resolution().Dims() {
			size := d.Size
			if d.Name == a {
				lo, up := boundary.ValidOuterFaces(a)
				size = staggeredSize(size, lo, up)
			}
			dims = append(dims, tensor.SpatialDim(d.Name, size))
		}
		parts[i] = tensor.Full(tensor.NewShape(dims...), value)
	}
	values := tensor.Stack(tensor.DualItemsDim("vector", axes...), parts...)
	return New(g, values, boundary)
}

func staggeredSize(resolution int, loValid, upValid bool) int {
	size := resolution - 1
	if loValid {
		size++
	}
	if upValid {
		size++
	}
	return size
}

func (f Field) Geometry() geom.Geometry               { return f.geometry }
func (f Field) Values() tensor.Tensor                 { return f.values }
func (f Field) Boundary() extrapolation.Extrapolation { return f.boundary }

// IsStaggered reports whether values live on faces: they carry the dual
// dimension of the geometry's face shape.
func (f Field) IsStaggered() bool {
	faced, ok := f.geometry.(geom.Faced)
	if !ok {
		return false
	}
	for _, d := range faced.FaceShape().Dual().Dims() {
		if f.values.Shape().Has(d.Name) {
			return true
		}
	}
	return false
}

func (f Field) IsCentered() bool { return !f.IsStaggered() }

// SampledAt is the resampling target location matching this Field.
func (f Field) SampledAt() string {
	if f.IsStaggered() {
		return AtFace
	}
	return AtCenter
}

func (f Field) IsGrid() bool {
	_, ok := f.geometry.(geom.UniformGrid)
	return ok
}

func (f Field) IsMesh() bool {
	_, ok := f.geometry.(*geom.Mesh)
	return ok
}

func (f Field) IsPointCloud() bool {
	return !f.IsGrid() && !f.IsMesh()
}

// Resolution is the sampled shape without batch, channel and dual dims.
func (f Field) Resolution() tensor.Shape {
	return f.geometry.Shape().NonChannel().NonDual().NonBatch()
}

func (f Field) SpatialRank() int { return f.geometry.SpatialRank() }

// Shape combines the value dims with the geometry's channel dims.
func (f Field) Shape() tensor.Shape {
	if f.IsStaggered() {
		return f.Resolution().And(f.geometry.Shape().ChannelOnly())
	}
	return f.values.Shape()
}

// Center returns the sample point positions: cell centers for centered
// fields, face centers trimmed of boundary-determined faces otherwise.
func (f Field) Center() tensor.Tensor {
	if f.IsCentered() {
		return f.geometry.Center()
	}
	g := f.geometry.(geom.UniformGrid)
	return trimmedFaceCenters(g, f.boundary)
}

// trimmedFaceCenters drops the outer face slices the boundary fixes so
// stored values and positions stay in one-to-one correspondence.
func trimmedFaceCenters(g geom.UniformGrid, bnd extrapolation.Extrapolation) tensor.Tensor {
	axes := g.Axes()
	parts := tensor.Unstack(g.FaceCenters(), "~vector")
	for i, a := range axes {
		lo, up := bnd.ValidOuterFaces(a)
		start, end := 0, g.Resolution().Size(a)+1
		if !lo {
			start++
		}
		if !up {
			end--
		}
		parts[i] = parts[i].Range(a, start, end)
	}
	return tensor.Stack(tensor.DualItemsDim("vector", axes...), parts...)
}

// Bounds is the axis-aligned region the values are valid in. Bounded
// geometries answer directly; point-like ones derive it from the
// element extents.
func (f Field) Bounds() geom.Box {
	if b, ok := f.geometry.(geom.Bounded); ok {
		return b.Bounds()
	}
	he := f.geometry.BoundingHalfExtent()
	center := f.geometry.Center()
	lower := tensor.Sub(center, he)
	upper := tensor.Add(center, he)
	reduce := center.Shape().NonChannel().NonBatch().Names()
	lo := tensor.Min(lower, reduce...)
	hi := tensor.Max(upper, reduce...)
	b, err := geom.NewBox(lo, hi)
	if err != nil {
		panic(err)
	}
	return b
}

// Dx is the cell extent per axis, for grid fields.
func (f Field) Dx() (tensor.Tensor, error) {
	g, ok := f.geometry.(geom.UniformGrid)
	if !ok {
		return tensor.Tensor{}, fmt.Errorf("%w: dx on %T", geom.ErrUnsupported, f.geometry)
	}
	return g.Dx(), nil
}

// WithValues replaces the values, keeping geometry and boundary.
func (f Field) WithValues(values tensor.Tensor) (Field, error) {
	return New(f.geometry, values, f.boundary)
}

// WithGeometry re-homes the values on new elements of equal shape.
func (f Field) WithGeometry(g geom.Geometry) (Field, error) {
	if !g.Shape().NonBatch().Equal(f.geometry.Shape().NonBatch()) {
		return Field{}, fmt.Errorf("field: geometry %v does not match %v", g.Shape(), f.geometry.Shape())
	}
	return New(g, f.values, f.boundary)
}

func (f Field) Shifted(delta tensor.Tensor) (Field, error) {
	return New(f.geometry.Shifted(delta), f.values, f.boundary)
}

// WithBoundary replaces the boundary rule. For staggered fields the
// stored face slices depend on which outer faces the rule determines,
// so components are re-padded or trimmed where the validity changed.
func (f Field) WithBoundary(boundary extrapolation.Extrapolation) (Field, error) {
	if boundary == nil {
		boundary = extrapolation.ZERO
	}
	if f.IsCentered() {
		return New(f.geometry, f.values, boundary)
	}
	g := f.geometry.(geom.UniformGrid)
	axes := g.Axes()
	parts := tensor.Unstack(f.values, "~vector")
	for i, a := range axes {
		oldLo, oldUp := f.boundary.ValidOuterFaces(a)
		newLo, newUp := boundary.ValidOuterFaces(a)
		part := parts[i]
		n := part.Shape().Size(a)
		// Trim slices the new rule fixes, pad slices it frees. Padding
		// uses the old rule: those values were defined by it until now.
		switch {
		case oldLo && !newLo:
			part = part.Range(a, 1, n)
		case !oldLo && newLo:
			padded, err := f.boundary.Component(a).PadAxis(part, a, 1, 0)
			if err != nil {
				return Field{}, err
			}
			part = padded
		}
		n = part.Shape().Size(a)
		switch {
		case oldUp && !newUp:
			part = part.Range(a, 0, n-1)
		case !oldUp && newUp:
			padded, err := f.boundary.Component(a).PadAxis(part, a, 0, 1)
			if err != nil {
				return Field{}, err
			}
			part = padded
		}
		parts[i] = part
	}
	values := tensor.Stack(tensor.DualItemsDim("vector", axes...), parts...)
	return New(f.geometry, values, boundary)
}

// Pad grows a centered grid field by whole cells per side, filling the
// new cells from the boundary rule and extending the geometry to match.
func (f Field) Pad(widths map[string][2]int) (Field, error) {
	g, ok := f.geometry.(geom.UniformGrid)
	if !ok || f.IsStaggered() {
		return Field{}, fmt.Errorf("%w: pad on %T", geom.ErrUnsupported, f.geometry)
	}
	values, err := extrapolation.Pad(f.values, widths, f.boundary)
	if err != nil {
		return Field{}, err
	}
	axes := g.Axes()
	dx := g.Dx()
	lower := make([]float64, len(axes))
	upper := make([]float64, len(axes))
	res := make([]tensor.Dim, len(axes))
	for i, a := range axes {
		w := widths[a]
		d := dx.At(map[string]int{"vector": i})
		lower[i] = g.Bounds().Lower().At(map[string]int{"vector": i}) - float64(w[0])*d
		upper[i] = g.Bounds().Upper().At(map[string]int{"vector": i}) + float64(w[1])*d
		res[i] = tensor.SpatialDim(a, g.Resolution().Size(a)+w[0]+w[1])
	}
	box, err := geom.NewBox(geom.Vec(axes, lower), geom.Vec(axes, upper))
	if err != nil {
		return Field{}, err
	}
	padded, err := geom.NewUniformGrid(box, tensor.NewShape(res...))
	if err != nil {
		return Field{}, err
	}
	return New(padded, values, f.boundary)
}

// Slice selects single indices along named dimensions of values and
// geometry. Selecting "vector" on a staggered field addresses the dual
// component instead.
func (f Field) Slice(sel map[string]int) (Field, error) {
	if len(sel) == 0 {
		return f, nil
	}
	values := f.values
	geoSel := map[string]int{}
	for name, i := range sel {
		target := name
		if name == "vector" && f.IsStaggered() && values.Shape().Has("~vector") {
			target = "~vector"
		}
		if values.Shape().Has(target) {
			values = values.Index(target, i)
		}
		if name != "vector" && name != "~vector" {
			geoSel[name] = i
		}
	}
	return New(f.geometry.Slice(geoSel), values, f.boundary)
}

func (f Field) checkStaggeredSizes() error {
	g, ok := f.geometry.(geom.UniformGrid)
	if !ok {
		return nil
	}
	parts := tensor.Unstack(f.values, "~vector")
	for i, a := range g.Axes() {
		lo, up := f.boundary.ValidOuterFaces(a)
		want := staggeredSize(g.Resolution().Size(a), lo, up)
		if got := parts[i].Shape().Size(a); got != want {
			return fmt.Errorf("field: staggered component %s has %d faces along %s, boundary requires %d", a, got, a, want)
		}
	}
	return nil
}

// StaggeredTensor densifies a staggered grid field into one uniform
// tensor exactly one cell larger than the resolution per axis, padding
// the faces the boundary fixes according to its rule.
func (f Field) StaggeredTensor() (tensor.Tensor, error) {
	if !f.IsStaggered() {
		return tensor.Tensor{}, fmt.Errorf("staggered tensor requires face-sampled values, got %v", f.values.Shape())
	}
	g := f.geometry.(geom.UniformGrid)
	axes := g.Axes()
	parts := tensor.Unstack(f.values, "~vector")
	padded := make([]tensor.Tensor, len(axes))
	for i, a := range axes {
		widths := map[string][2]int{}
		for _, d := range axes {
			widths[d] = [2]int{0, 1}
		}
		lo, up := f.boundary.ValidOuterFaces(a)
		widths[a] = [2]int{b2i(!lo), b2i(!up)}
		p, err := extrapolation.Pad(parts[i], widths, f.boundary.Component(a))
		if err != nil {
			return tensor.Tensor{}, err
		}
		padded[i] = p
	}
	out := tensor.Stack(tensor.Vector(axes...), padded...)
	if !out.IsUniform() {
		return tensor.Tensor{}, fmt.Errorf("staggered tensor did not densify to a uniform shape")
	}
	return out, nil
}

// UniformValues returns values directly when already uniform, otherwise
// the densified staggered tensor.
func (f Field) UniformValues() (tensor.Tensor, error) {
	if f.values.IsUniform() {
		return f.values, nil
	}
	return f.StaggeredTensor()
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// AtCenters interpolates the values to the cell centers.
func (f Field) AtCenters() (Field, error) {
	if f.IsCentered() {
		return f, nil
	}
	values, err := Sample(f, f.geometry, AtCenter, f.boundary)
	if err != nil {
		return Field{}, err
	}
	return New(f.geometry, values, f.boundary)
}

// AtFaces interpolates the values to the face centers.
func (f Field) AtFaces() (Field, error) {
	if f.IsStaggered() {
		return f, nil
	}
	values, err := Sample(f, f.geometry, AtFace, f.boundary)
	if err != nil {
		return Field{}, err
	}
	return New(f.geometry, values, f.boundary)
}

// At resamples onto the representation of another field.
func (f Field) At(representation Field) (Field, error) {
	return Resample(f, representation, false)
}

// Equal compares geometry variant, boundary rule and values within
// numerical tolerance. Sampling representation beyond that is ignored.
func (f Field) Equal(other Field) bool {
	if reflect.TypeOf(f.geometry) != reflect.TypeOf(other.geometry) {
		return false
	}
	if !f.boundary.Equals(other.boundary) {
		return false
	}
	return valuesClose(f.values, other.values, 1e-10)
}

func valuesClose(a, b tensor.Tensor, tol float64) bool {
	if a.IsStacked() || b.IsStacked() {
		ad, aOK := a.StackedDim()
		bd, bOK := b.StackedDim()
		if !aOK || !bOK || ad.Name != bd.Name {
			return false
		}
		ap := tensor.Unstack(a, ad.Name)
		bp := tensor.Unstack(b, bd.Name)
		if len(ap) != len(bp) {
			return false
		}
		for i := range ap {
			if !valuesClose(ap[i], bp[i], tol) {
				return false
			}
		}
		return true
	}
	return tensor.AllClose(a, b, tol)
}
