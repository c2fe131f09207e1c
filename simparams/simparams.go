// Package simparams holds the YAML-configured parameters of a fluid
// simulation run.
package simparams

import (
	"fmt"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML input file
type Parameters struct {
	Title            string    `yaml:"Title"`
	Resolution       []int     `yaml:"Resolution"`
	Size             []float64 `yaml:"Size"`
	Dt               float64   `yaml:"Dt"`
	Steps            int       `yaml:"Steps"`
	Boundary         string    `yaml:"Boundary"` // "closed" or "periodic"
	Buoyancy         []float64 `yaml:"Buoyancy"`
	Viscosity        float64   `yaml:"Viscosity"`
	InflowRate       float64   `yaml:"InflowRate"`
	InflowCenter     []float64 `yaml:"InflowCenter"`
	InflowRadius     float64   `yaml:"InflowRadius"`
	PressureRelTol   float64   `yaml:"PressureRelTol"`
	PressureMaxIters int       `yaml:"PressureMaxIters"`
}

func (p *Parameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, p); err != nil {
		return err
	}
	return p.Validate()
}

// Validate fills defaults and rejects inconsistent dimensions.
func (p *Parameters) Validate() error {
	if len(p.Resolution) == 0 {
		return fmt.Errorf("Resolution is required")
	}
	if len(p.Size) != len(p.Resolution) {
		return fmt.Errorf("Size has %d entries for %d resolution entries", len(p.Size), len(p.Resolution))
	}
	for _, n := range p.Resolution {
		if n < 1 {
			return fmt.Errorf("Resolution entries must be positive, got %v", p.Resolution)
		}
	}
	switch p.Boundary {
	case "":
		p.Boundary = "closed"
	case "closed", "periodic":
	default:
		return fmt.Errorf("unknown Boundary %q, want closed or periodic", p.Boundary)
	}
	if p.Dt == 0 {
		p.Dt = 1
	}
	if len(p.Buoyancy) == 0 {
		p.Buoyancy = make([]float64, len(p.Resolution))
	}
	if len(p.Buoyancy) != len(p.Resolution) {
		return fmt.Errorf("Buoyancy has %d entries for %d axes", len(p.Buoyancy), len(p.Resolution))
	}
	if p.InflowRate > 0 {
		if len(p.InflowCenter) != len(p.Resolution) {
			return fmt.Errorf("InflowCenter has %d entries for %d axes", len(p.InflowCenter), len(p.Resolution))
		}
		if p.InflowRadius <= 0 {
			return fmt.Errorf("InflowRadius must be positive when InflowRate is set")
		}
	}
	return nil
}

func (p *Parameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", p.Title)
	fmt.Printf("%v\t\t= Resolution\n", p.Resolution)
	fmt.Printf("%v\t\t= Size\n", p.Size)
	fmt.Printf("%8.5f\t\t= Dt\n", p.Dt)
	fmt.Printf("[%d]\t\t\t= Steps\n", p.Steps)
	fmt.Printf("[%s]\t\t= Boundary\n", p.Boundary)
	fmt.Printf("%v\t\t= Buoyancy\n", p.Buoyancy)
	fmt.Printf("%8.5f\t\t= Viscosity\n", p.Viscosity)
	fmt.Printf("%8.5f\t\t= InflowRate\n", p.InflowRate)
}
