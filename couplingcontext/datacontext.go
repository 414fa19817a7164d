package couplingcontext

import (
	"github.com/meshcouple/coupler/mapping"
	"github.com/meshcouple/coupler/mesh"
	"github.com/meshcouple/coupler/meshdata"
)

// DataContext binds a data field to a mesh and zero or more mappings,
// applying them on demand.
type DataContext struct {
	ProvidedData *meshdata.Data
	Mesh         *mesh.Mesh

	FromMappings []*MappingContext
	ToMappings   []*MappingContext
}

// NewDataContext binds data to mesh.
func NewDataContext(data *meshdata.Data, m *mesh.Mesh) *DataContext {
	return &DataContext{ProvidedData: data, Mesh: m}
}

// AddFromMapping attaches a mapping context that maps data *into*
// ProvidedData (a read mapping).
func (c *DataContext) AddFromMapping(mc *MappingContext) {
	c.FromMappings = append(c.FromMappings, mc)
}

// AddToMapping attaches a mapping context that maps data *out of*
// ProvidedData (a write mapping).
func (c *DataContext) AddToMapping(mc *MappingContext) {
	c.ToMappings = append(c.ToMappings, mc)
}

// MapRead runs every attached read (from) mapping, populating ProvidedData
// from the mapped source.
func (c *DataContext) MapRead(constraint mapping.Constraint) error {
	for _, mc := range c.FromMappings {
		if err := mc.Apply(constraint); err != nil {
			return err
		}
	}
	return nil
}

// MapWrite runs every attached write (to) mapping, populating the mapped
// target from ProvidedData.
func (c *DataContext) MapWrite(constraint mapping.Constraint) error {
	for _, mc := range c.ToMappings {
		if err := mc.Apply(constraint); err != nil {
			return err
		}
	}
	return nil
}
