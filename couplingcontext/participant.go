package couplingcontext

import "github.com/meshcouple/coupler/couplingerrors"

// Participant is a named coupling peer: it owns the meshes it uses, its
// data-access contexts, and a watchpoint list.
type Participant struct {
	Name string

	meshContexts map[string]*MeshContext
	dataContexts map[string]*DataContext

	Watchpoints []string
}

// NewParticipant creates an empty participant record.
func NewParticipant(name string) *Participant {
	return &Participant{
		Name:         name,
		meshContexts: make(map[string]*MeshContext),
		dataContexts: make(map[string]*DataContext),
	}
}

// AddMeshContext registers a MeshContext under the mesh's name.
func (p *Participant) AddMeshContext(meshName string, ctx *MeshContext) error {
	if _, exists := p.meshContexts[meshName]; exists {
		return couplingerrors.New(couplingerrors.ConfigurationError,
			"participant %q: mesh %q already registered", p.Name, meshName)
	}
	p.meshContexts[meshName] = ctx
	return nil
}

// MeshContext looks up a registered mesh context by mesh name.
func (p *Participant) MeshContext(meshName string) (*MeshContext, bool) {
	c, ok := p.meshContexts[meshName]
	return c, ok
}

// MeshContexts returns all registered mesh contexts, in no particular
// order; callers that need a deterministic order (e.g. the partitioning
// phase) must sort by mesh name themselves.
func (p *Participant) MeshContexts() map[string]*MeshContext {
	return p.meshContexts
}

// AddDataContext registers a DataContext under the data's name.
func (p *Participant) AddDataContext(dataName string, ctx *DataContext) error {
	if _, exists := p.dataContexts[dataName]; exists {
		return couplingerrors.New(couplingerrors.ConfigurationError,
			"participant %q: data %q already registered", p.Name, dataName)
	}
	p.dataContexts[dataName] = ctx
	return nil
}

// DataContext looks up a registered data context by data name.
func (p *Participant) DataContext(dataName string) (*DataContext, bool) {
	c, ok := p.dataContexts[dataName]
	return c, ok
}

// DataContexts returns all registered data contexts.
func (p *Participant) DataContexts() map[string]*DataContext {
	return p.dataContexts
}
