package couplingcontext

import (
	"github.com/meshcouple/coupler/couplingerrors"
	"github.com/meshcouple/coupler/mapping"
	"github.com/meshcouple/coupler/meshdata"
)

// Timing is when a MappingContext's mapping is applied.
type Timing int

const (
	// TimingInitial applies the mapping once during initialize().
	TimingInitial Timing = iota
	// TimingOnAdvance applies the mapping on every advance() that
	// exchanges data.
	TimingOnAdvance
)

// MappingContext is a (mapping, fromData, toData, timing) tuple. The
// invariant is that either FromData or ToData equals the
// owning DataContext's ProvidedData, and both must share a name;
// NewMappingContext enforces the name-match half of the invariant.
type MappingContext struct {
	Mapping mapping.Mapping

	FromData *meshdata.Data
	ToData   *meshdata.Data

	Timing        Timing
	HasMappedData bool
}

// NewMappingContext validates that fromData and toData share a name
// before constructing the context.
func NewMappingContext(m mapping.Mapping, fromData, toData *meshdata.Data, timing Timing) (*MappingContext, error) {
	if fromData.Name != toData.Name {
		return nil, couplingerrors.New(couplingerrors.ConfigurationError,
			"mapping context: fromData %q and toData %q must share a name", fromData.Name, toData.Name)
	}
	return &MappingContext{Mapping: m, FromData: fromData, ToData: toData, Timing: timing}, nil
}

// Apply runs the mapping from FromData's buffer into ToData's buffer using
// the given constraint, marking HasMappedData on success.
func (mc *MappingContext) Apply(constraint mapping.Constraint) error {
	if err := mc.Mapping.ComputeMapping(); err != nil {
		return err
	}
	if err := mc.Mapping.Map(constraint, mc.FromData.Dimensions, mc.FromData.Values(), mc.ToData.Values()); err != nil {
		return err
	}
	mc.HasMappedData = true
	return nil
}
