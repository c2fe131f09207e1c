package simparams

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	doc := []byte(`
Title: plume
Resolution: [64, 64]
Size: [100, 100]
Dt: 1.0
Steps: 50
Boundary: closed
Buoyancy: [0, 0.1]
InflowRate: 0.2
InflowCenter: [50, 9.5]
InflowRadius: 5
`)
	var p Parameters
	assert.NoError(t, p.Parse(doc))
	assert.Equal(t, "plume", p.Title)
	assert.Equal(t, []int{64, 64}, p.Resolution)
	assert.Equal(t, 0.1, p.Buoyancy[1])
	assert.Equal(t, "closed", p.Boundary)
}

func TestValidate(t *testing.T) {
	{ // defaults
		p := Parameters{Resolution: []int{8}, Size: []float64{8}}
		assert.NoError(t, p.Validate())
		assert.Equal(t, "closed", p.Boundary)
		assert.Equal(t, 1.0, p.Dt)
		assert.Equal(t, []float64{0}, p.Buoyancy)
	}
	{ // mismatched sizes
		p := Parameters{Resolution: []int{8, 8}, Size: []float64{8}}
		assert.Error(t, p.Validate())
	}
	{ // inflow needs a center and radius
		p := Parameters{Resolution: []int{8}, Size: []float64{8}, InflowRate: 1}
		assert.Error(t, p.Validate())
	}
	{ // unknown boundary name
		p := Parameters{Resolution: []int{8}, Size: []float64{8}, Boundary: "open"}
		assert.Error(t, p.Validate())
	}
}
