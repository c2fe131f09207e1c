package geom

import (
	"fmt"
	"math"
	"sort"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/rupeshkmr/phiflow/tensor"
)

// Mesh is an unstructured 2D triangle mesh. Cells are listed along the
// instance dimension "cells"; vertex positions carry the vector
// dimension. Centroids, cell areas and edge adjacency are computed
// once at construction.
type Mesh struct {
	axes     []string
	vertices [][2]float64
	cells    [][3]int

	center tensor.Tensor // cell centroids
	volume tensor.Tensor // cell areas
	edges  []meshEdge
}

type meshEdge struct {
	verts [2]int
	cells []int // adjacent cell indices, 1 for boundary edges
}

func NewTriangleMesh(axes []string, vertices [][2]float64, cells [][3]int) (*Mesh, error) {
	if len(axes) != 2 {
		return nil, fmt.Errorf("triangle mesh requires 2 axes, got %v", axes)
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("triangle mesh requires at least one cell")
	}
	for ci, c := range cells {
		for _, v := range c {
			if v < 0 || v >= len(vertices) {
				return nil, fmt.Errorf("cell %d references vertex %d of %d", ci, v, len(vertices))
			}
		}
	}
	m := &Mesh{axes: axes, vertices: vertices, cells: cells}
	m.computeGeometry()
	m.computeEdges()
	return m, nil
}

func (m *Mesh) computeGeometry() {
	n := len(m.cells)
	shape := tensor.NewShape(tensor.InstanceDim("cells", n)).WithDim(tensor.Vector(m.axes...))
	m.center = tensor.Zeros(shape)
	areas := make([]float64, n)
	for ci, c := range m.cells {
		a, b, d := m.vertices[c[0]], m.vertices[c[1]], m.vertices[c[2]]
		for ai := range m.axes {
			v := (a[ai] + b[ai] + d[ai]) / 3
			m.center.Set(map[string]int{"cells": ci, "vector": ai}, v)
		}
		areas[ci] = math.Abs((b[0]-a[0])*(d[1]-a[1])-(d[0]-a[0])*(b[1]-a[1])) / 2
	}
	m.volume = tensor.FromData(tensor.NewShape(tensor.InstanceDim("cells", n)), areas)
}

func (m *Mesh) computeEdges() {
	index := map[[2]int]int{}
	for ci, c := range m.cells {
		for k := 0; k < 3; k++ {
			v := [2]int{c[k], c[(k+1)%3]}
			if v[0] > v[1] {
				v[0], v[1] = v[1], v[0]
			}
			ei, ok := index[v]
			if !ok {
				ei = len(m.edges)
				index[v] = ei
				m.edges = append(m.edges, meshEdge{verts: v})
			}
			m.edges[ei].cells = append(m.edges[ei].cells, ci)
		}
	}
	sort.Slice(m.edges, func(i, j int) bool {
		a, b := m.edges[i].verts, m.edges[j].verts
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		return a[1] < b[1]
	})
}

func (m *Mesh) Center() tensor.Tensor { return m.center }

func (m *Mesh) Shape() tensor.Shape { return m.center.Shape() }

func (m *Mesh) SpatialRank() int { return 2 }

func (m *Mesh) Axes() []string { return m.axes }

func (m *Mesh) Volume() tensor.Tensor { return m.volume }

func (m *Mesh) CellCount() int { return len(m.cells) }

// pointInCell tests containment via edge half-plane signs.
func (m *Mesh) pointInCell(ci int, x, y float64) bool {
	c := m.cells[ci]
	sign := func(p, q [2]float64) float64 {
		return (q[0]-p[0])*(y-p[1]) - (q[1]-p[1])*(x-p[0])
	}
	s0 := sign(m.vertices[c[0]], m.vertices[c[1]])
	s1 := sign(m.vertices[c[1]], m.vertices[c[2]])
	s2 := sign(m.vertices[c[2]], m.vertices[c[0]])
	hasNeg := s0 < 0 || s1 < 0 || s2 < 0
	hasPos := s0 > 0 || s1 > 0 || s2 > 0
	return !(hasNeg && hasPos)
}

func (m *Mesh) locComponents(loc tensor.Tensor, idx map[string]int) (x, y float64) {
	idx["vector"] = 0
	x = loc.At(idx)
	idx["vector"] = 1
	y = loc.At(idx)
	delete(idx, "vector")
	return
}

// CellAt returns the index of the cell containing the point, -1 when
// the point lies outside the mesh.
func (m *Mesh) CellAt(x, y float64) int {
	for ci := range m.cells {
		if m.pointInCell(ci, x, y) {
			return ci
		}
	}
	return -1
}

// NearestCell returns the cell whose centroid is closest to the point.
func (m *Mesh) NearestCell(x, y float64) int {
	best, bestD := 0, math.Inf(1)
	for ci := range m.cells {
		cx := m.center.At(map[string]int{"cells": ci, "vector": 0})
		cy := m.center.At(map[string]int{"cells": ci, "vector": 1})
		if d := math.Hypot(x-cx, y-cy); d < bestD {
			best, bestD = ci, d
		}
	}
	return best
}

func (m *Mesh) LiesInside(loc tensor.Tensor) (tensor.Tensor, error) {
	outShape := loc.Shape().Without("vector")
	out := tensor.Zeros(outShape)
	tensor.IterShape(outShape, func(idx map[string]int) {
		x, y := m.locComponents(loc, idx)
		for ci := range m.cells {
			if m.pointInCell(ci, x, y) {
				out.Set(idx, 1)
				return
			}
		}
	})
	return out, nil
}

// segmentDistance is the distance from (x,y) to segment a-b.
func segmentDistance(x, y float64, a, b [2]float64) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	l2 := dx*dx + dy*dy
	t := 0.0
	if l2 > 0 {
		t = ((x-a[0])*dx + (y-a[1])*dy) / l2
		t = math.Max(0, math.Min(1, t))
	}
	px, py := a[0]+t*dx, a[1]+t*dy
	return math.Hypot(x-px, y-py)
}

// ApproximateSignedDistance measures to the nearest boundary edge,
// negative inside the mesh.
func (m *Mesh) ApproximateSignedDistance(loc tensor.Tensor) (tensor.Tensor, error) {
	outShape := loc.Shape().Without("vector")
	out := tensor.Zeros(outShape)
	tensor.IterShape(outShape, func(idx map[string]int) {
		x, y := m.locComponents(loc, idx)
		d := math.Inf(1)
		for _, e := range m.edges {
			if len(e.cells) > 1 {
				continue
			}
			d = math.Min(d, segmentDistance(x, y, m.vertices[e.verts[0]], m.vertices[e.verts[1]]))
		}
		inside := false
		for ci := range m.cells {
			if m.pointInCell(ci, x, y) {
				inside = true
				break
			}
		}
		if inside {
			d = -d
		}
		out.Set(idx, d)
	})
	return out, nil
}

func (m *Mesh) bounds() (lo, hi [2]float64) {
	lo = [2]float64{math.Inf(1), math.Inf(1)}
	hi = [2]float64{math.Inf(-1), math.Inf(-1)}
	for _, v := range m.vertices {
		for i := 0; i < 2; i++ {
			lo[i] = math.Min(lo[i], v[i])
			hi[i] = math.Max(hi[i], v[i])
		}
	}
	return
}

// Bounds is the axis-aligned extent of the vertices.
func (m *Mesh) Bounds() Box {
	lo, hi := m.bounds()
	b, err := NewCube(m.axes, lo[:], hi[:])
	if err != nil {
		panic(err)
	}
	return b
}

func (m *Mesh) BoundingRadius() tensor.Tensor {
	lo, hi := m.bounds()
	r := math.Hypot(hi[0]-lo[0], hi[1]-lo[1]) / 2
	return tensor.Wrap(r)
}

func (m *Mesh) BoundingHalfExtent() tensor.Tensor {
	lo, hi := m.bounds()
	return Vec(m.axes, []float64{(hi[0] - lo[0]) / 2, (hi[1] - lo[1]) / 2})
}

func (m *Mesh) mapVertices(f func(v [2]float64) [2]float64) *Mesh {
	verts := make([][2]float64, len(m.vertices))
	for i, v := range m.vertices {
		verts[i] = f(v)
	}
	out, err := NewTriangleMesh(m.axes, verts, m.cells)
	if err != nil {
		panic(err)
	}
	return out
}

func (m *Mesh) At(center tensor.Tensor) Geometry {
	lo, hi := m.bounds()
	cx, cy := (lo[0]+hi[0])/2, (lo[1]+hi[1])/2
	dx := center.At(map[string]int{"vector": 0}) - cx
	dy := center.At(map[string]int{"vector": 1}) - cy
	return m.mapVertices(func(v [2]float64) [2]float64 {
		return [2]float64{v[0] + dx, v[1] + dy}
	})
}

func (m *Mesh) Shifted(delta tensor.Tensor) Geometry {
	dx := delta.At(map[string]int{"vector": 0})
	dy := delta.At(map[string]int{"vector": 1})
	return m.mapVertices(func(v [2]float64) [2]float64 {
		return [2]float64{v[0] + dx, v[1] + dy}
	})
}

func (m *Mesh) Rotated(rot *mat.Dense) (Geometry, error) {
	if rot == nil {
		return m, nil
	}
	lo, hi := m.bounds()
	cx, cy := (lo[0]+hi[0])/2, (lo[1]+hi[1])/2
	out := m.mapVertices(func(v [2]float64) [2]float64 {
		x, y := v[0]-cx, v[1]-cy
		return [2]float64{
			cx + rot.At(0, 0)*x + rot.At(0, 1)*y,
			cy + rot.At(1, 0)*x + rot.At(1, 1)*y,
		}
	})
	return out, nil
}

func (m *Mesh) Scaled(factor float64) Geometry {
	lo, hi := m.bounds()
	cx, cy := (lo[0]+hi[0])/2, (lo[1]+hi[1])/2
	return m.mapVertices(func(v [2]float64) [2]float64 {
		return [2]float64{cx + (v[0]-cx)*factor, cy + (v[1]-cy)*factor}
	})
}

// Slice restricts the mesh to a single cell when selecting along
// "cells"; other selections are ignored.
func (m *Mesh) Slice(sel map[string]int) Geometry {
	ci, ok := sel["cells"]
	if !ok {
		return m
	}
	out, err := NewTriangleMesh(m.axes, m.vertices, [][3]int{m.cells[ci]})
	if err != nil {
		panic(err)
	}
	return out
}

func (m *Mesh) EqualTo(other Geometry) bool {
	o, ok := other.(*Mesh)
	if !ok || len(m.vertices) != len(o.vertices) || len(m.cells) != len(o.cells) {
		return false
	}
	for i, v := range m.vertices {
		if v != o.vertices[i] {
			return false
		}
	}
	for i, c := range m.cells {
		if c != o.cells[i] {
			return false
		}
	}
	return true
}

// CellConnectivity builds the symmetric adjacency of edge-sharing
// cells, weighted by shared edge length over centroid distance. This
// is the stencil used for mesh Laplacians.
func (m *Mesh) CellConnectivity() *sparse.DOK {
	n := len(m.cells)
	dok := sparse.NewDOK(n, n)
	for _, e := range m.edges {
		if len(e.cells) < 2 {
			continue
		}
		a, b := e.cells[0], e.cells[1]
		va, vb := m.vertices[e.verts[0]], m.vertices[e.verts[1]]
		el := math.Hypot(vb[0]-va[0], vb[1]-va[1])
		dx := m.center.At(map[string]int{"cells": b, "vector": 0}) - m.center.At(map[string]int{"cells": a, "vector": 0})
		dy := m.center.At(map[string]int{"cells": b, "vector": 1}) - m.center.At(map[string]int{"cells": a, "vector": 1})
		w := el / math.Hypot(dx, dy)
		dok.Set(a, b, w)
		dok.Set(b, a, w)
	}
	return dok
}

// BoundaryElements marks all cells touching a boundary edge under the
// single key "boundary".
func (m *Mesh) BoundaryElements() []BoundarySlice {
	return []BoundarySlice{{Key: "boundary", Axis: "cells", Upper: true}}
}

func (m *Mesh) BoundaryEdgeCount() (n int) {
	for _, e := range m.edges {
		if len(e.cells) == 1 {
			n++
		}
	}
	return
}
