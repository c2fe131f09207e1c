package tensor

import (
	"fmt"
	"strings"
)

// Kind classifies a dimension. Batch dimensions vectorize independent
// problems, Spatial dimensions span the simulation domain, Instance
// dimensions enumerate disjoint geometry pieces (particles), Channel
// dimensions hold components such as vectors, and Dual dimensions carry
// staggered/face bookkeeping.
type Kind uint8

const (
	Batch Kind = iota
	Spatial
	Instance
	Channel
	DualKind
)

func (k Kind) String() string {
	switch k {
	case Batch:
		return "batch"
	case Spatial:
		return "spatial"
	case Instance:
		return "instance"
	case Channel:
		return "channel"
	case DualKind:
		return "dual"
	}
	return "unknown"
}

// Dim is one named dimension of a Shape. Items are optional per-index
// names, used by channel dimensions such as vector to name spatial axes.
type Dim struct {
	Name  string
	Size  int
	Kind  Kind
	Items []string
}

func BatchDim(name string, size int) Dim {
	return Dim{Name: name, Size: size, Kind: Batch}
}

func SpatialDim(name string, size int) Dim {
	return Dim{Name: name, Size: size, Kind: Spatial}
}

func InstanceDim(name string, size int) Dim {
	return Dim{Name: name, Size: size, Kind: Instance}
}

func ChannelDim(name string, items ...string) Dim {
	return Dim{Name: name, Size: len(items), Kind: Channel, Items: items}
}

func ChannelDimN(name string, size int) Dim {
	return Dim{Name: name, Size: size, Kind: Channel}
}

// DualDim names always carry a "~" prefix so that a dual dimension can
// coexist with a channel dimension of the same base name.
func DualDim(name string, size int) Dim {
	if !strings.HasPrefix(name, "~") {
		name = "~" + name
	}
	return Dim{Name: name, Size: size, Kind: DualKind}
}

func DualItemsDim(name string, items ...string) Dim {
	d := DualDim(name, len(items))
	d.Items = items
	return d
}

// Vector is the channel dimension holding spatial components. Its item
// names are the spatial axis names.
func Vector(axes ...string) Dim {
	return ChannelDim("vector", axes...)
}

func (d Dim) equal(o Dim) bool {
	if d.Name != o.Name || d.Size != o.Size || d.Kind != o.Kind {
		return false
	}
	if len(d.Items) != len(o.Items) {
		return false
	}
	for i := range d.Items {
		if d.Items[i] != o.Items[i] {
			return false
		}
	}
	return true
}

// ItemIndex returns the position of item within the dimension's item
// names, or -1.
func (d Dim) ItemIndex(item string) int {
	for i, it := range d.Items {
		if it == item {
			return i
		}
	}
	return -1
}

// Shape is an ordered set of uniquely named dimensions.
type Shape struct {
	dims []Dim
}

func NewShape(dims ...Dim) Shape {
	for i := range dims {
		for j := i + 1; j < len(dims); j++ {
			if dims[i].Name == dims[j].Name {
				panic(fmt.Errorf("duplicate dimension %q in shape", dims[i].Name))
			}
		}
	}
	out := make([]Dim, len(dims))
	copy(out, dims)
	return Shape{dims: out}
}

func EmptyShape() Shape { return Shape{} }

func (s Shape) Rank() int { return len(s.dims) }

func (s Shape) Dims() []Dim {
	out := make([]Dim, len(s.dims))
	copy(out, s.dims)
	return out
}

// Volume is the product of all dimension sizes; 1 for the empty shape.
func (s Shape) Volume() int {
	v := 1
	for _, d := range s.dims {
		v *= d.Size
	}
	return v
}

func (s Shape) Index(name string) int {
	for i, d := range s.dims {
		if d.Name == name {
			return i
		}
	}
	return -1
}

func (s Shape) Has(name string) bool { return s.Index(name) >= 0 }

func (s Shape) Dim(name string) (Dim, bool) {
	if i := s.Index(name); i >= 0 {
		return s.dims[i], true
	}
	return Dim{}, false
}

// Size returns the size of the named dimension, or 0 if absent.
func (s Shape) Size(name string) int {
	if d, ok := s.Dim(name); ok {
		return d.Size
	}
	return 0
}

func (s Shape) Names() []string {
	out := make([]string, len(s.dims))
	for i, d := range s.dims {
		out[i] = d.Name
	}
	return out
}

func (s Shape) Sizes() []int {
	out := make([]int, len(s.dims))
	for i, d := range s.dims {
		out[i] = d.Size
	}
	return out
}

// ItemNames returns the item names of the named dimension, or nil.
func (s Shape) ItemNames(name string) []string {
	if d, ok := s.Dim(name); ok {
		return d.Items
	}
	return nil
}

func (s Shape) OfKind(kinds ...Kind) Shape {
	var out []Dim
	for _, d := range s.dims {
		for _, k := range kinds {
			if d.Kind == k {
				out = append(out, d)
				break
			}
		}
	}
	return Shape{dims: out}
}

func (s Shape) WithoutKinds(kinds ...Kind) Shape {
	var out []Dim
	for _, d := range s.dims {
		drop := false
		for _, k := range kinds {
			if d.Kind == k {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, d)
		}
	}
	return Shape{dims: out}
}

func (s Shape) Spatial() Shape      { return s.OfKind(Spatial) }
func (s Shape) BatchOnly() Shape    { return s.OfKind(Batch) }
func (s Shape) ChannelOnly() Shape  { return s.OfKind(Channel) }
func (s Shape) InstanceOnly() Shape { return s.OfKind(Instance) }
func (s Shape) Dual() Shape         { return s.OfKind(DualKind) }
func (s Shape) NonBatch() Shape     { return s.WithoutKinds(Batch) }
func (s Shape) NonChannel() Shape   { return s.WithoutKinds(Channel) }
func (s Shape) NonDual() Shape      { return s.WithoutKinds(DualKind) }

func (s Shape) Without(names ...string) Shape {
	var out []Dim
	for _, d := range s.dims {
		drop := false
		for _, n := range names {
			if d.Name == n {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, d)
		}
	}
	return Shape{dims: out}
}

func (s Shape) Only(names ...string) Shape {
	var out []Dim
	for _, d := range s.dims {
		for _, n := range names {
			if d.Name == n {
				out = append(out, d)
				break
			}
		}
	}
	return Shape{dims: out}
}

// Merge unions two shapes, keeping the receiver's dimension order and
// appending dimensions only present in other. Dimensions sharing a name
// must agree on size and kind.
func (s Shape) Merge(other Shape) (Shape, error) {
	out := make([]Dim, len(s.dims))
	copy(out, s.dims)
	for _, d := range other.dims {
		if i := s.Index(d.Name); i >= 0 {
			if s.dims[i].Size != d.Size || s.dims[i].Kind != d.Kind {
				return Shape{}, fmt.Errorf("shape mismatch on dimension %q: %v vs %v",
					d.Name, s.dims[i], d)
			}
			continue
		}
		out = append(out, d)
	}
	return Shape{dims: out}, nil
}

// And is Merge for cases where a mismatch is a programmer error.
func (s Shape) And(other Shape) Shape {
	m, err := s.Merge(other)
	if err != nil {
		panic(err)
	}
	return m
}

// IsSubsetOf reports whether every dimension of s appears in other with
// the same size.
func (s Shape) IsSubsetOf(other Shape) bool {
	for _, d := range s.dims {
		o, ok := other.Dim(d.Name)
		if !ok || o.Size != d.Size {
			return false
		}
	}
	return true
}

// Equal compares dimensions in order.
func (s Shape) Equal(other Shape) bool {
	if len(s.dims) != len(other.dims) {
		return false
	}
	for i := range s.dims {
		if !s.dims[i].equal(other.dims[i]) {
			return false
		}
	}
	return true
}

// SameDims compares dimension sets ignoring order.
func (s Shape) SameDims(other Shape) bool {
	if len(s.dims) != len(other.dims) {
		return false
	}
	for _, d := range s.dims {
		o, ok := other.Dim(d.Name)
		if !ok || !o.equal(d) {
			return false
		}
	}
	return true
}

func (s Shape) WithDim(d Dim) Shape {
	if s.Has(d.Name) {
		panic(fmt.Errorf("dimension %q already present", d.Name))
	}
	out := make([]Dim, len(s.dims), len(s.dims)+1)
	copy(out, s.dims)
	return Shape{dims: append(out, d)}
}

func (s Shape) WithSize(name string, size int) Shape {
	out := make([]Dim, len(s.dims))
	copy(out, s.dims)
	for i := range out {
		if out[i].Name == name {
			out[i].Size = size
			out[i].Items = nil
		}
	}
	return Shape{dims: out}
}

func (s Shape) String() string {
	parts := make([]string, len(s.dims))
	for i, d := range s.dims {
		parts[i] = fmt.Sprintf("%s:%s=%d", d.Name, d.Kind, d.Size)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
