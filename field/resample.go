package field

import (
	"fmt"
	"math"

	"github.com/rupeshkmr/phiflow/extrapolation"
	"github.com/rupeshkmr/phiflow/geom"
	"github.com/rupeshkmr/phiflow/tensor"
)

// Sample produces the values of src located at target's centers or
// faces, trimmed of the slices the target boundary already determines.
// Incompatible representation pairs fail with geom.ErrUnsupported
// rather than approximating silently.
func Sample(src Field, target geom.Geometry, at string, boundary extrapolation.Extrapolation) (tensor.Tensor, error) {
	if boundary == nil {
		boundary = extrapolation.ZERO
	}
	if src.geometry != nil && src.geometry.EqualTo(target) && at == src.SampledAt() {
		if at == AtCenter || src.boundary.Equals(boundary) {
			return src.values, nil
		}
	}
	switch at {
	case AtFace:
		g, ok := target.(geom.UniformGrid)
		if !ok {
			return tensor.Tensor{}, fmt.Errorf("%w: face sampling on %T", geom.ErrUnsupported, target)
		}
		axes := g.Axes()
		points := tensor.Unstack(trimmedFaceCenters(g, boundary), "~vector")
		parts := make([]tensor.Tensor, len(axes))
		for i, a := range axes {
			v, err := evalField(src, a, points[i])
			if err != nil {
				return tensor.Tensor{}, err
			}
			parts[i] = v
		}
		return tensor.Stack(tensor.DualItemsDim("vector", axes...), parts...), nil
	case AtCenter:
		points := target.Center()
		if src.IsStaggered() || src.values.Shape().Has("vector") {
			axes := src.geometry.Axes()
			parts := make([]tensor.Tensor, len(axes))
			for i, a := range axes {
				v, err := evalField(src, a, points)
				if err != nil {
					return tensor.Tensor{}, err
				}
				parts[i] = v
			}
			return tensor.Stack(tensor.Vector(axes...), parts...), nil
		}
		return evalField(src, "", points)
	}
	return tensor.Tensor{}, fmt.Errorf("unknown sample location %q", at)
}

// Resample re-represents f on another field's geometry and sample
// location. The result carries the target's boundary unless asked to
// keep the source's.
func Resample(f Field, to Field, keepBoundary bool) (Field, error) {
	boundary := to.boundary
	if keepBoundary {
		boundary = f.boundary
	}
	values, err := Sample(f, to.geometry, to.SampledAt(), boundary)
	if err != nil {
		return Field{}, err
	}
	return New(to.geometry, values, boundary)
}

// SampleFunc evaluates an analytic initializer at the sample points.
// The function receives positions with a "vector" channel dimension;
// for face sampling its result is reduced to the face component.
func SampleFunc(fn func(loc tensor.Tensor) tensor.Tensor, target geom.Geometry, at string, boundary extrapolation.Extrapolation) (tensor.Tensor, error) {
	if at == AtFace {
		g, ok := target.(geom.UniformGrid)
		if !ok {
			return tensor.Tensor{}, fmt.Errorf("%w: face sampling on %T", geom.ErrUnsupported, target)
		}
		axes := g.Axes()
		points := tensor.Unstack(trimmedFaceCenters(g, boundary), "~vector")
		parts := make([]tensor.Tensor, len(axes))
		for i, a := range axes {
			v := fn(points[i])
			if v.Shape().Has("vector") {
				v = v.Item("vector", a)
			}
			parts[i] = v
		}
		return tensor.Stack(tensor.DualItemsDim("vector", axes...), parts...), nil
	}
	return fn(target.Center()), nil
}

// SampleGeometry rasterizes a geometry as an indicator field: one
// inside, zero outside.
func SampleGeometry(g geom.Geometry, target geom.Geometry, at string, boundary extrapolation.Extrapolation) (tensor.Tensor, error) {
	if at == AtFace {
		grid, ok := target.(geom.UniformGrid)
		if !ok {
			return tensor.Tensor{}, fmt.Errorf("%w: face sampling on %T", geom.ErrUnsupported, target)
		}
		axes := grid.Axes()
		points := tensor.Unstack(trimmedFaceCenters(grid, boundary), "~vector")
		parts := make([]tensor.Tensor, len(axes))
		for i := range axes {
			v, err := g.LiesInside(points[i])
			if err != nil {
				return tensor.Tensor{}, err
			}
			parts[i] = v
		}
		return tensor.Stack(tensor.DualItemsDim("vector", axes...), parts...), nil
	}
	return g.LiesInside(target.Center())
}

// Scatter aggregates point-cloud values onto the cells of a grid. Mode
// "add" sums contributions, "mean" averages them; cells receiving no
// points stay zero.
func Scatter(src Field, target geom.UniformGrid, mode string) (tensor.Tensor, error) {
	if mode != "add" && mode != "mean" {
		return tensor.Tensor{}, fmt.Errorf("unknown scatter mode %q", mode)
	}
	instDims := src.geometry.Shape().InstanceOnly().Names()
	if len(instDims) != 1 {
		return tensor.Tensor{}, fmt.Errorf("%w: scatter requires exactly one instance dimension, got %v", geom.ErrUnsupported, src.geometry.Shape())
	}
	inst := instDims[0]
	n := src.geometry.Shape().Size(inst)
	axes := target.Axes()
	extra := src.values.Shape().Without(inst)
	outShape := target.Resolution().And(extra)
	out := tensor.Zeros(outShape)
	counts := tensor.Zeros(target.Resolution())
	centers := src.geometry.Center()
	lower := target.Bounds().Lower()
	dx := target.Dx()
	for i := 0; i < n; i++ {
		cell := map[string]int{}
		outside := false
		for ai, a := range axes {
			x := centers.At(map[string]int{inst: i, "vector": ai})
			lo := lower.At(map[string]int{"vector": ai})
			d := dx.At(map[string]int{"vector": ai})
			ci := int(math.Floor((x - lo) / d))
			if ci < 0 || ci >= target.Resolution().Size(a) {
				outside = true
				break
			}
			cell[a] = ci
		}
		if outside {
			continue
		}
		counts.Set(cell, counts.At(cell)+1)
		tensor.IterShape(extra, func(eidx map[string]int) {
			vidx := map[string]int{inst: i}
			oidx := map[string]int{}
			for k, v := range cell {
				oidx[k] = v
			}
			for k, v := range eidx {
				vidx[k] = v
				oidx[k] = v
			}
			out.Set(oidx, out.At(oidx)+src.values.At(vidx))
		})
	}
	if mode == "mean" {
		out = tensor.BinOp(out, counts, func(sum, cnt float64) float64 {
			if cnt == 0 {
				return 0
			}
			return sum / cnt
		})
	}
	return out, nil
}

// SampleAt evaluates the field at arbitrary world positions given as a
// tensor with a "vector" channel dimension. Vector-valued fields return
// values stacked along "vector".
func SampleAt(f Field, loc tensor.Tensor) (tensor.Tensor, error) {
	if f.IsStaggered() || f.values.Shape().Has("vector") {
		axes := f.geometry.Axes()
		parts := make([]tensor.Tensor, len(axes))
		for i, a := range axes {
			v, err := evalField(f, a, loc)
			if err != nil {
				return tensor.Tensor{}, err
			}
			parts[i] = v
		}
		return tensor.Stack(tensor.Vector(axes...), parts...), nil
	}
	return evalField(f, "", loc)
}

// SampleComponent evaluates one named vector component at arbitrary
// world positions.
func SampleComponent(f Field, comp string, loc tensor.Tensor) (tensor.Tensor, error) {
	return evalField(f, comp, loc)
}

// evalField interpolates one component (or the scalar value, comp=="")
// of src at arbitrary world positions carrying a "vector" dimension.
func evalField(src Field, comp string, loc tensor.Tensor) (tensor.Tensor, error) {
	switch g := src.geometry.(type) {
	case geom.UniformGrid:
		if src.IsStaggered() {
			if comp == "" {
				return tensor.Tensor{}, fmt.Errorf("%w: scalar sampling of staggered values", geom.ErrUnsupported)
			}
			return staggeredLattice(g, src.boundary, src.values, comp).interp(loc)
		}
		vals := src.values
		if comp != "" && vals.Shape().Has("vector") {
			vals = vals.Item("vector", comp)
		}
		return centeredLattice(g, src.boundary, vals, comp).interp(loc)
	case *geom.Mesh:
		vals := src.values
		if comp != "" && vals.Shape().Has("vector") {
			vals = vals.Item("vector", comp)
		}
		return evalMesh(g, vals, loc)
	default:
		vals := src.values
		if comp != "" && vals.Shape().Has("vector") {
			vals = vals.Item("vector", comp)
		}
		return evalPointCloud(src.geometry, vals, loc)
	}
}

// evalPoint samples a field at a single world position, used by the
// embedding boundary during interpolation.
func evalPoint(f Field, comp string, pos []float64, axes []string) (float64, error) {
	out, err := evalField(f, comp, geom.Vec(axes, pos))
	if err != nil {
		return 0, err
	}
	return out.Scalar(), nil
}

// lattice is a regular point set with values, spacing, and an
// extrapolation resolving indices beyond the stored range.
type lattice struct {
	axes   []string
	lower  []float64 // world position of index 0 per axis
	dx     []float64
	n      []int
	values tensor.Tensor
	ext    extrapolation.Extrapolation
	comp   string
}

func centeredLattice(g geom.UniformGrid, bnd extrapolation.Extrapolation, vals tensor.Tensor, comp string) lattice {
	axes := g.Axes()
	l := lattice{axes: axes, values: vals, ext: componentOf(bnd, comp), comp: comp}
	for i, a := range axes {
		d := g.Dx().At(map[string]int{"vector": i})
		l.lower = append(l.lower, g.Bounds().Lower().At(map[string]int{"vector": i})+0.5*d)
		l.dx = append(l.dx, d)
		l.n = append(l.n, g.Resolution().Size(a))
	}
	return l
}

// staggeredLattice describes one face component: its own axis sits on
// cell boundaries, offset by one when the lower outer face is trimmed.
func staggeredLattice(g geom.UniformGrid, bnd extrapolation.Extrapolation, values tensor.Tensor, comp string) lattice {
	axes := g.Axes()
	parts := tensor.Unstack(values, "~vector")
	var vals tensor.Tensor
	for i, a := range axes {
		if a == comp {
			vals = parts[i]
		}
	}
	l := lattice{axes: axes, values: vals, ext: componentOf(bnd, comp), comp: comp}
	for i, a := range axes {
		d := g.Dx().At(map[string]int{"vector": i})
		lo := g.Bounds().Lower().At(map[string]int{"vector": i})
		if a == comp {
			loValid, _ := bnd.ValidOuterFaces(a)
			start := 0
			if !loValid {
				start = 1
			}
			l.lower = append(l.lower, lo+float64(start)*d)
		} else {
			l.lower = append(l.lower, lo+0.5*d)
		}
		l.dx = append(l.dx, d)
		l.n = append(l.n, vals.Shape().Size(a))
	}
	return l
}

func componentOf(bnd extrapolation.Extrapolation, comp string) extrapolation.Extrapolation {
	if comp == "" {
		return bnd
	}
	return bnd.Component(comp)
}

func (l lattice) interp(loc tensor.Tensor) (tensor.Tensor, error) {
	outShape := loc.Shape().Without("vector").And(l.values.Shape().Without(l.axes...))
	out := tensor.Zeros(outShape)
	d := len(l.axes)
	var firstErr error
	tensor.IterShape(outShape, func(idx map[string]int) {
		base := make([]int, d)
		frac := make([]float64, d)
		for a := range l.axes {
			idx["vector"] = a
			u := (loc.At(idx) - l.lower[a]) / l.dx[a]
			fl := math.Floor(u)
			base[a] = int(fl)
			frac[a] = u - fl
		}
		delete(idx, "vector")
		total := 0.0
		raw := make([]int, d)
		for corner := 0; corner < 1<<uint(d); corner++ {
			w := 1.0
			for a := 0; a < d; a++ {
				if corner&(1<<uint(a)) != 0 {
					raw[a] = base[a] + 1
					w *= frac[a]
				} else {
					raw[a] = base[a]
					w *= 1 - frac[a]
				}
			}
			if w == 0 {
				continue
			}
			v, err := l.cornerValue(idx, raw)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			total += w * v
		}
		out.Set(idx, total)
	})
	return out, firstErr
}

// cornerValue gathers one lattice point, resolving out-of-range indices
// through the extrapolation: structural rules remap into the stored
// range, constants yield their value, embeddings sample the outer field
// at the corner's world position.
func (l lattice) cornerValue(idx map[string]int, raw []int) (float64, error) {
	gidx := make(map[string]int, len(idx)+len(l.axes))
	for k, v := range idx {
		gidx[k] = v
	}
	for a, name := range l.axes {
		i := raw[a]
		if i >= 0 && i < l.n[a] {
			gidx[name] = i
			continue
		}
		if r, ok := l.ext.ResolveIndex(name, i, l.n[a]); ok {
			gidx[name] = r
			continue
		}
		if emb, isEmb := l.ext.(Embedding); isEmb {
			pos := make([]float64, len(l.axes))
			for b := range l.axes {
				pos[b] = l.lower[b] + float64(raw[b])*l.dx[b]
			}
			return emb.valueAt(pos, l.axes, l.comp)
		}
		return sideConstant(l.ext, name, i < 0, gidx), nil
	}
	return l.values.At(gidx), nil
}

func sideConstant(ext extrapolation.Extrapolation, axis string, lower bool, idx map[string]int) float64 {
	if m, ok := ext.(extrapolation.Mixed); ok {
		return m.Side(axis, !lower).ConstantValue(idx)
	}
	return ext.ConstantValue(idx)
}

// evalMesh looks up the cell containing each point, falling back to the
// nearest centroid outside the mesh.
func evalMesh(m *geom.Mesh, vals tensor.Tensor, loc tensor.Tensor) (tensor.Tensor, error) {
	outShape := loc.Shape().Without("vector").And(vals.Shape().Without("cells"))
	out := tensor.Zeros(outShape)
	tensor.IterShape(outShape, func(idx map[string]int) {
		idx["vector"] = 0
		x := loc.At(idx)
		idx["vector"] = 1
		y := loc.At(idx)
		delete(idx, "vector")
		ci := m.CellAt(x, y)
		if ci < 0 {
			ci = m.NearestCell(x, y)
		}
		vidx := make(map[string]int, len(idx)+1)
		for k, v := range idx {
			vidx[k] = v
		}
		vidx["cells"] = ci
		out.Set(idx, vals.At(vidx))
	})
	return out, nil
}

// evalPointCloud sums instance values where the instance geometry
// contains the point; outside all instances the value is zero.
func evalPointCloud(g geom.Geometry, vals tensor.Tensor, loc tensor.Tensor) (tensor.Tensor, error) {
	instDims := g.Shape().InstanceOnly().Names()
	switch len(instDims) {
	case 0:
		inside, err := g.LiesInside(loc)
		if err != nil {
			return tensor.Tensor{}, err
		}
		return tensor.Mul(inside, vals), nil
	case 1:
		inst := instDims[0]
		n := g.Shape().Size(inst)
		out := tensor.Zeros(loc.Shape().Without("vector"))
		for i := 0; i < n; i++ {
			inside, err := g.Slice(map[string]int{inst: i}).LiesInside(loc)
			if err != nil {
				return tensor.Tensor{}, err
			}
			v := vals
			if v.Shape().Has(inst) {
				v = v.Index(inst, i)
			}
			out = tensor.Add(out, tensor.Mul(inside, v))
		}
		return out, nil
	}
	return tensor.Tensor{}, fmt.Errorf("%w: sampling point clouds with %d instance dimensions", geom.ErrUnsupported, len(instDims))
}
