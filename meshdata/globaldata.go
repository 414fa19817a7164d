package meshdata

import "github.com/meshcouple/coupler/couplingerrors"

// GlobalData is a field not attached to any mesh, carrying a single value
// (scalar or vector). It is semantically equivalent to Data on a
// single-vertex mesh. The Solver Interface does not use this type: it keeps
// each global-data field in a one-slot Data, and the coupling schemes send
// that buffer as comm.KindMeshData like any mesh data; comm.KindGlobalData
// is not sent.
type GlobalData struct {
	ID         int
	Name       string
	Dimensions int

	values []float64
}

// NewGlobalData creates a GlobalData field, zero-initialized.
func NewGlobalData(id int, name string, dimensions int) *GlobalData {
	return &GlobalData{ID: id, Name: name, Dimensions: dimensions, values: make([]float64, dimensions)}
}

// Values returns the live value buffer.
func (g *GlobalData) Values() []float64 { return g.values }

// SetValues overwrites the value.
func (g *GlobalData) SetValues(values []float64) error {
	if len(values) != g.Dimensions {
		return couplingerrors.New(couplingerrors.UserError,
			"global data %q: expected %d components, got %d", g.Name, g.Dimensions, len(values))
	}
	copy(g.values, values)
	return nil
}
