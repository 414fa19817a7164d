// Package precice implements the Solver Interface facade: the
// per-participant entry point a simulation program links against.
// It owns the phase sequence {Constructed -> Initialized -> Finalized},
// brokers mesh/data writes into the partitioning and coupling-scheme
// subsystems, and is the sole component that calls into cplscheme,
// partition, m2n, and mapping on the solver's behalf.
package precice

import (
	"context"
	"math"
	"os"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/meshcouple/coupler/comm"
	"github.com/meshcouple/coupler/config"
	"github.com/meshcouple/coupler/coupleddata"
	"github.com/meshcouple/coupler/couplingcontext"
	"github.com/meshcouple/coupler/couplingerrors"
	"github.com/meshcouple/coupler/cplscheme"
	"github.com/meshcouple/coupler/m2n"
	"github.com/meshcouple/coupler/mapping"
	"github.com/meshcouple/coupler/mesh"
	"github.com/meshcouple/coupler/meshdata"
	"github.com/meshcouple/coupler/metrics"
	"github.com/meshcouple/coupler/waveform"
)

// State is the interface's three-phase lifecycle: a freshly
// constructed interface accepts mesh/data writes, Initialize locks meshes
// and starts the coupling scheme, Finalize releases resources. Any fatal
// error moves the interface to StateSink, where Initialize, Advance,
// ReadData, ResetMesh, SetMeshAccessRegion and the mesh and data writes
// fail with couplingerrors.ErrSinkState; queries such as IsCouplingOngoing
// still answer, and Finalize still runs.
type State int

const (
	StateConstructed State = iota
	StateInitialized
	StateFinalized
	StateSink
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "Constructed"
	case StateInitialized:
		return "Initialized"
	case StateFinalized:
		return "Finalized"
	case StateSink:
		return "Sink"
	default:
		return "Unknown"
	}
}

// meshEntry pairs a participant's owned/received mesh with the contexts
// and partition wiring built for it.
type meshEntry struct {
	mesh    *mesh.Mesh
	ctx     *couplingcontext.MeshContext
	provide *providedWiring
	receive *receivedWiring
}

// SolverInterface is the per-participant facade. One instance corresponds
// to one call to precice.New/precice.NewFromFile and serves one rank; its
// methods are not safe for concurrent use from more than one goroutine:
// all ranks of a participant execute the same interface calls in
// lockstep, each rank holding its own instance. Ranks coordinate through
// the intra-participant communicator supplied in Dependencies (see
// DESIGN.md's "precice" entry for the multi-rank scoping decision).
type SolverInterface struct {
	ParticipantName string
	ProcessIndex    int
	ProcessSize     int

	logger  log.Logger
	metrics *metrics.Registry

	cfg         *config.Configuration
	participant *couplingcontext.Participant

	meshes   map[string]*meshEntry                // by mesh name
	meshData map[string]*meshdata.Data            // by "mesh:data" key
	data     map[string]*meshdata.Data            // global (meshless) data, by name
	cpData   map[string]*coupleddata.CouplingData // shared exchange-layer wrappers, by data name
	waves    map[string]*waveform.Waveform        // by exchanged data name, seeded at Initialize

	mappingConstraints []mappingConstraint

	// peerReceiveMesh indexes every OTHER declared participant's
	// <receive-mesh> entries by that participant's name, so a provider can
	// find who to send a given mesh to without re-scanning the whole
	// configuration on every exchangePartitions call.
	peerReceiveMesh map[string][]config.ReceiveMeshDecl

	peers       map[string]PeerEndpoint    // transports supplied at construction, by peer name
	connections map[string]*m2n.Connection // handshaken during Initialize, by peer name
	intra       comm.Intra

	watchpoints []Watchpoint
	exporters   []Exporter

	// logFiles holds the handles behind any attached iteration/convergence
	// logs, opened by buildScheme on the primary rank only, so Finalize
	// can close them.
	logFiles []*os.File

	convexOracle mesh.ConvexOracle

	scheme cplscheme.Scheme

	state State
	err   error // the error that pushed the interface into StateSink, if any

	nextMaxStepSize float64
	windowRemainder float64

	// needsComputedTime is true at the start of every window's first
	// sub-iteration and false for every implicit retry of that same
	// window: AddComputedTime accumulates computedTimeWindowPart, so
	// calling it again on a retry (same dt, window not yet advanced in
	// time) would overshoot the configured window size. It is set back
	// to true once the scheme reports the window complete.
	needsComputedTime bool
}

// PeerEndpoint is the transport to one peer participant: the (not yet
// handshaken) Communication plus the address the peer's primary channel
// is reachable at. Initialize runs the m2n handshake over it.
type PeerEndpoint struct {
	Comm    comm.Communication
	Address string
}

// Dependencies bundles the external collaborators the Solver Interface
// needs but does not construct itself: the transports to each peer named
// in the configuration's m2n declarations, the intra-participant
// communicator, and factories for the mapping kernels a <mapping:...>
// element may reference.
type Dependencies struct {
	Logger  log.Logger
	Metrics *metrics.Registry

	// Peers supplies the transport per peer participant name. The wire
	// transport and address resolution are external collaborators; the
	// Solver Interface drives the m2n handshake over them during
	// Initialize.
	Peers map[string]PeerEndpoint

	// Intra is the intra-participant communicator connecting this rank to
	// the others of the same participant. Required when ProcessSize > 1;
	// ignored for a single-rank participant.
	Intra comm.Intra

	// Watchpoints observe the coupled state: each is initialized once
	// partitioning has produced the final local meshes and records one
	// sample per completed time window.
	Watchpoints []Watchpoint

	// Exporters write the coupled state out after each completed time
	// window.
	Exporters []Exporter

	// MappingFactories builds a mapping.Mapping for a <mapping:KIND .../>
	// element's Kind string (e.g. "nearest-neighbor"). Callers register
	// the concrete kernels they link in; a Kind with no factory is a
	// ConfigurationError at construction.
	MappingFactories map[string]func() mapping.Mapping

	// ConvexOracle orders a quad's four vertices into a convex polygon for
	// SetMeshQuad(s). Optional; a participant that never writes quad
	// connectivity need not supply one.
	ConvexOracle mesh.ConvexOracle
}

// NewFromFile loads and validates the configuration at configPath, then
// constructs a SolverInterface for participantName.
func NewFromFile(participantName, configPath string, processIndex, processSize int, deps Dependencies) (*SolverInterface, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return New(participantName, cfg, processIndex, processSize, deps)
}

// New constructs a SolverInterface for participantName from an
// already-parsed configuration.
func New(participantName string, cfg *config.Configuration, processIndex, processSize int, deps Dependencies) (*SolverInterface, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if processIndex < 0 || processSize < 1 || processIndex >= processSize {
		return nil, couplingerrors.New(couplingerrors.UserError,
			"precice: invalid process index/size %d/%d", processIndex, processSize)
	}
	if processSize > 1 && deps.Intra == nil {
		return nil, couplingerrors.New(couplingerrors.ConfigurationError,
			"precice: %d ranks require an intra-participant communicator", processSize)
	}

	decl := findParticipant(cfg, participantName)
	if decl == nil {
		return nil, couplingerrors.New(couplingerrors.ConfigurationError,
			"precice: participant %q is not declared in configuration", participantName)
	}

	si := &SolverInterface{
		ParticipantName:   participantName,
		ProcessIndex:      processIndex,
		ProcessSize:       processSize,
		logger:            deps.Logger,
		metrics:           deps.Metrics,
		cfg:               cfg,
		participant:       couplingcontext.NewParticipant(participantName),
		meshes:            make(map[string]*meshEntry),
		meshData:          make(map[string]*meshdata.Data),
		data:              make(map[string]*meshdata.Data),
		cpData:            make(map[string]*coupleddata.CouplingData),
		waves:             make(map[string]*waveform.Waveform),
		peerReceiveMesh:   make(map[string][]config.ReceiveMeshDecl),
		peers:             deps.Peers,
		connections:       make(map[string]*m2n.Connection),
		intra:             deps.Intra,
		watchpoints:       deps.Watchpoints,
		exporters:         deps.Exporters,
		convexOracle:      deps.ConvexOracle,
		state:             StateConstructed,
		needsComputedTime: true,
	}
	for i := range cfg.Participants {
		p := &cfg.Participants[i]
		si.peerReceiveMesh[p.Name] = p.ReceiveMesh
	}

	if err := si.buildMeshes(cfg, decl); err != nil {
		return nil, err
	}
	if err := si.buildDataTable(cfg, decl); err != nil {
		return nil, err
	}
	if err := si.buildMappings(cfg, decl, deps.MappingFactories); err != nil {
		return nil, err
	}
	if err := si.buildScheme(cfg, decl); err != nil {
		return nil, err
	}

	if si.logger != nil {
		si.logger.Info("solver interface constructed",
			log.String("participant", participantName),
			log.Int("processIndex", processIndex),
			log.Int("processSize", processSize),
		)
	}
	return si, nil
}

func findParticipant(cfg *config.Configuration, name string) *config.ParticipantDecl {
	for i := range cfg.Participants {
		if cfg.Participants[i].Name == name {
			return &cfg.Participants[i]
		}
	}
	return nil
}

// requireState fails with UserError if the interface isn't in want, and
// ErrSinkState if a prior fatal error already terminated it.
func (si *SolverInterface) requireState(want State) error {
	if si.state == StateSink {
		return couplingerrors.Wrap(couplingerrors.UserError, couplingerrors.ErrSinkState, "precice")
	}
	if si.state != want {
		return couplingerrors.New(couplingerrors.UserError,
			"precice: operation requires state %s, interface is %s", want, si.state)
	}
	return nil
}

// fail transitions the interface to the terminal sink state and returns
// err unchanged; every subsequent state-checked call fails (see State).
func (si *SolverInterface) fail(err error) error {
	si.state = StateSink
	si.err = err
	return err
}

// Initialize runs the construction-time phase flow:
// handshake with each peer, exchange partitions, lock meshes, seed
// watchpoints and waveforms, run initial mappings and the scheme's own
// Initialize/ReceiveResultOfFirstAdvance, and return the maximum step
// size the solver may take next.
func (si *SolverInterface) Initialize(ctx context.Context) (float64, error) {
	if err := si.requireState(StateConstructed); err != nil {
		return 0, err
	}

	if err := si.connectPeers(ctx); err != nil {
		return 0, si.fail(err)
	}

	if err := si.exchangePartitions(ctx); err != nil {
		return 0, si.fail(err)
	}

	if err := si.allocateData(); err != nil {
		return 0, si.fail(err)
	}

	if err := si.seedWaveforms(); err != nil {
		return 0, si.fail(err)
	}

	for _, wp := range si.watchpoints {
		if err := wp.Initialize(0); err != nil {
			return 0, si.fail(err)
		}
	}

	if si.scheme.SendsInitializedData() {
		if err := si.runWriteMappings(couplingcontext.TimingInitial); err != nil {
			return 0, si.fail(err)
		}
	}

	if err := si.scheme.Initialize(ctx, 0, 1); err != nil {
		return 0, si.fail(err)
	}

	// The initial-data exchange is serviced right below by
	// ReceiveResultOfFirstAdvance, so the action the scheme just raised is
	// fulfilled here rather than left for the solver.
	si.scheme.RequiresAction(cplscheme.ActionInitializeData)

	if err := si.scheme.ReceiveResultOfFirstAdvance(ctx); err != nil {
		return 0, si.fail(err)
	}

	if si.scheme.HasDataBeenReceived() {
		if err := si.runReadMappings(couplingcontext.TimingInitial); err != nil {
			return 0, si.fail(err)
		}
	}

	si.state = StateInitialized
	si.nextMaxStepSize = si.scheme.GetNextTimestepMaxLength()
	si.windowRemainder = si.scheme.GetThisTimeWindowRemainder()

	if si.logger != nil {
		si.logger.Info("initialized", log.String("participant", si.ParticipantName))
	}
	return si.nextMaxStepSize, nil
}

// connectPeers runs the m2n handshake for every m2n declaration involving
// this participant: the declaration's "from" side accepts, the "to" side
// dials the supplied endpoint address. Declaration order is the same on
// every participant (they parse the same document), so paired handshakes
// line up without further coordination.
func (si *SolverInterface) connectPeers(ctx context.Context) error {
	for _, decl := range si.cfg.M2Ns {
		var peer string
		accepting := false
		switch si.ParticipantName {
		case decl.From:
			peer, accepting = decl.To, true
		case decl.To:
			peer = decl.From
		default:
			continue
		}
		ep, ok := si.peers[peer]
		if !ok || ep.Comm == nil {
			return couplingerrors.New(couplingerrors.ConfigurationError,
				"precice: no transport supplied for peer participant %q", peer)
		}
		var conn *m2n.Connection
		var err error
		if accepting {
			conn, err = m2n.AcceptAndConnect(ctx, si.logger, ep.Comm, peer, ids.NodeID{}, si.ProcessSize-1)
		} else {
			conn, err = m2n.RequestAndConnect(ctx, si.logger, ep.Comm, peer, ep.Address, ids.NodeID{}, si.ProcessSize-1)
		}
		if err != nil {
			return err
		}
		si.connections[peer] = conn
	}
	return nil
}

// syncTimestep gathers every rank's dt on the primary and rejects a
// mismatch beyond epsilon: all ranks of a participant must advance by the
// same timestep length. Single-rank participants skip the wire entirely.
func (si *SolverInterface) syncTimestep(ctx context.Context, dt float64) error {
	if si.ProcessSize == 1 || si.intra == nil {
		return nil
	}
	dts, err := si.intra.GatherScalar(ctx, dt)
	if err != nil {
		return couplingerrors.Wrap(couplingerrors.TransportError, err, "precice: synchronize timestep length")
	}
	const eps = 1e-10
	for rank, other := range dts {
		if math.Abs(other-dt) > eps {
			return couplingerrors.New(couplingerrors.UserError,
				"precice: ranks disagree on the timestep length (rank %d advanced %g, rank %d advanced %g)",
				si.ProcessIndex, dt, rank, other)
		}
	}
	return nil
}

// Advance runs one coupling step: it syncs dt across this participant's
// ranks, writes mapped data, drives the scheme's four exchange phases, and
// reads mapped data back, returning the next maximum step size.
func (si *SolverInterface) Advance(ctx context.Context, dt float64) (float64, error) {
	if err := si.requireState(StateInitialized); err != nil {
		return 0, err
	}
	if dt <= 0 {
		return 0, si.fail(couplingerrors.New(couplingerrors.UserError, "precice: advance(dt) requires dt > 0, got %g", dt))
	}

	if err := si.syncTimestep(ctx, dt); err != nil {
		return 0, si.fail(err)
	}

	if si.scheme.WillDataBeExchanged() {
		if err := si.runWriteMappings(couplingcontext.TimingOnAdvance); err != nil {
			return 0, si.fail(err)
		}
	}

	if err := si.scheme.FirstSynchronization(ctx); err != nil {
		return 0, si.fail(err)
	}
	if si.needsComputedTime {
		if err := si.scheme.AddComputedTime(dt); err != nil {
			return 0, si.fail(err)
		}
		si.needsComputedTime = false
	}
	if err := si.scheme.FirstExchange(ctx); err != nil {
		return 0, si.fail(err)
	}
	if err := si.scheme.SecondSynchronization(ctx); err != nil {
		return 0, si.fail(err)
	}
	if err := si.scheme.SecondExchange(ctx); err != nil {
		return 0, si.fail(err)
	}

	if si.scheme.IsTimeWindowComplete() {
		si.needsComputedTime = true
		for name, cd := range si.cpData {
			if w, ok := si.waves[name]; ok {
				w.MoveToNextWindow()
				if err := w.Store(cd.Values()); err != nil {
					return 0, si.fail(err)
				}
			}
		}
	}

	if si.scheme.HasDataBeenReceived() {
		if err := si.runReadMappings(couplingcontext.TimingOnAdvance); err != nil {
			return 0, si.fail(err)
		}
		for name, cd := range si.cpData {
			if w, ok := si.waves[name]; ok && !si.scheme.IsTimeWindowComplete() {
				if err := w.Store(cd.Values()); err != nil {
					return 0, si.fail(err)
				}
			}
		}
	}

	if si.scheme.IsTimeWindowComplete() {
		for _, wp := range si.watchpoints {
			if err := wp.Record(si.scheme.GetTime()); err != nil {
				return 0, si.fail(err)
			}
		}
		for _, ex := range si.exporters {
			if err := ex.Export(si.scheme.GetTimeWindows(), si.scheme.GetTime()); err != nil {
				return 0, si.fail(err)
			}
		}
	}

	if !si.scheme.IsCouplingOngoing() {
		si.nextMaxStepSize = 0
	} else {
		si.nextMaxStepSize = si.scheme.GetNextTimestepMaxLength()
	}
	si.windowRemainder = si.scheme.GetThisTimeWindowRemainder()

	if si.logger != nil {
		si.logger.Info("advanced",
			log.String("participant", si.ParticipantName),
			log.Int("timeWindows", si.scheme.GetTimeWindows()),
			log.Bool("windowComplete", si.scheme.IsTimeWindowComplete()),
		)
	}
	return si.nextMaxStepSize, nil
}

// Finalize releases the established peer connections and marks the
// interface terminated. Calling it twice fails with
// ErrAlreadyFinalized; the destructor-style implicit call guards for it.
func (si *SolverInterface) Finalize(ctx context.Context) error {
	if si.state == StateFinalized {
		return couplingerrors.Wrap(couplingerrors.UserError, couplingerrors.ErrAlreadyFinalized, "precice")
	}
	var finalizeErr error
	if si.scheme != nil {
		finalizeErr = si.scheme.Finalize(ctx)
	}
	for _, conn := range si.connections {
		if conn == nil || conn.Comm == nil {
			continue
		}
		if err := conn.Close(ctx); err != nil && finalizeErr == nil {
			finalizeErr = err
		}
	}
	for _, f := range si.logFiles {
		_ = f.Close()
	}
	si.state = StateFinalized
	if si.logger != nil {
		si.logger.Info("finalized", log.String("participant", si.ParticipantName))
	}
	return finalizeErr
}

// IsCouplingOngoing reports whether the coupled simulation should keep
// advancing.
func (si *SolverInterface) IsCouplingOngoing() bool {
	if si.scheme == nil {
		return false
	}
	return si.scheme.IsCouplingOngoing()
}
