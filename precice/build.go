package precice

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/luxfi/log"

	"github.com/meshcouple/coupler/acceleration"
	"github.com/meshcouple/coupler/acceleration/aitken"
	"github.com/meshcouple/coupler/acceleration/constant"
	"github.com/meshcouple/coupler/acceleration/iqnils"
	"github.com/meshcouple/coupler/comm"
	"github.com/meshcouple/coupler/config"
	"github.com/meshcouple/coupler/coupleddata"
	"github.com/meshcouple/coupler/couplingcontext"
	"github.com/meshcouple/coupler/couplingerrors"
	"github.com/meshcouple/coupler/cplscheme"
	"github.com/meshcouple/coupler/mapping"
	"github.com/meshcouple/coupler/mesh"
	"github.com/meshcouple/coupler/meshdata"
	"github.com/meshcouple/coupler/metrics"
	"github.com/meshcouple/coupler/partition"
	"github.com/meshcouple/coupler/waveform"
)

// providedWiring is the local bookkeeping for a mesh this participant
// provides: the partition wrapper plus the peers declared to receive it.
type providedWiring struct {
	partition *partition.ProvidedPartition
	receivers []string
}

// receivedWiring is the local bookkeeping for a mesh this participant
// receives: the partition wrapper plus the peer providing it.
type receivedWiring struct {
	partition *partition.ReceivedPartition
	from      string
}

// mappingConstraint pairs a DataContext with the Constraint its attached
// read mappings must apply.
type mappingConstraint struct {
	ctx        *couplingcontext.DataContext
	constraint mapping.Constraint
}

func splitKey(key string) (meshName, dataName string) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

func meshDataKey(meshName, dataName string) string { return meshName + ":" + dataName }

func dataDecl(cfg *config.Configuration, name string) (config.DataDecl, bool) {
	for _, d := range cfg.Data {
		if d.Name == name {
			return d, true
		}
	}
	for _, d := range cfg.GlobalData {
		if d.Name == name {
			return d, true
		}
	}
	return config.DataDecl{}, false
}

func dimsFor(cfg *config.Configuration, kind string) int {
	if kind == "vector" {
		return cfg.Dimensions
	}
	return 1
}

func otherParticipant(cs *config.CouplingSchemeDecl, name string) string {
	if name == cs.FirstParticipant {
		return cs.SecondParticipant
	}
	return cs.FirstParticipant
}

// buildMeshes constructs a mesh.Mesh plus MeshContext for every mesh this
// participant provides or receives, then raises a received mesh's
// connectivity requirement when a
// declared mapping needs full connectivity rather than vertices alone.
func (si *SolverInterface) buildMeshes(cfg *config.Configuration, decl *config.ParticipantDecl) error {
	id := 0
	for _, meshName := range decl.ProvideMesh {
		m := mesh.New(id, meshName, cfg.Dimensions)
		id++
		ctx := couplingcontext.NewProvidedMeshContext(m)
		if err := si.participant.AddMeshContext(meshName, ctx); err != nil {
			return err
		}
		si.meshes[meshName] = &meshEntry{mesh: m, ctx: ctx}
	}
	for _, rm := range decl.ReceiveMesh {
		m := mesh.New(id, rm.Name, cfg.Dimensions)
		id++
		ctx := couplingcontext.NewReceivedMeshContext(m, rm.From)
		if err := si.participant.AddMeshContext(rm.Name, ctx); err != nil {
			return err
		}
		si.meshes[rm.Name] = &meshEntry{mesh: m, ctx: ctx}
	}

	for _, md := range decl.Mappings {
		if e, ok := si.meshes[md.From]; ok && e.ctx.Direction == couplingcontext.ReceiveFrom {
			e.ctx.Requirement = e.ctx.Requirement.Max(couplingcontext.RequirementFull)
		}
	}
	return nil
}

// buildDataTable allocates one meshdata.Data per (mesh, data-name) pair
// this participant's owned meshes use, plus one ungridded Data per
// global-data declaration it reads or writes, and binds a DataContext for
// every such pair so mapping wiring has somewhere to attach.
func (si *SolverInterface) buildDataTable(cfg *config.Configuration, decl *config.ParticipantDecl) error {
	id := 0
	for _, m := range cfg.Meshes {
		if _, owned := si.meshes[m.Name]; !owned {
			continue
		}
		for _, dataName := range m.UseData {
			d, ok := dataDecl(cfg, dataName)
			if !ok {
				return couplingerrors.New(couplingerrors.InternalInvariant,
					"mesh %q use-data %q escaped config validation", m.Name, dataName)
			}
			key := meshDataKey(m.Name, dataName)
			hasGradient := si.requiresGradientDataFor(decl, dataName, m.Name)
			si.meshData[key] = meshdata.New(id, dataName, dimsFor(cfg, d.Kind), hasGradient, cfg.Dimensions)
			id++
		}
	}

	for _, d := range cfg.GlobalData {
		used := false
		for _, rd := range decl.ReadData {
			used = used || rd.Name == d.Name
		}
		for _, wd := range decl.WriteData {
			used = used || wd.Name == d.Name
		}
		if !used {
			continue
		}
		si.data[d.Name] = meshdata.New(id, d.Name, dimsFor(cfg, d.Kind), false, cfg.Dimensions)
		id++
	}

	for key, data := range si.meshData {
		meshName, _ := splitKey(key)
		entry, ok := si.meshes[meshName]
		if !ok {
			continue
		}
		dc := couplingcontext.NewDataContext(data, entry.mesh)
		if err := si.participant.AddDataContext(key, dc); err != nil {
			return err
		}
	}
	return nil
}

// requiresGradientDataFor reports whether dataName needs a gradient buffer
// on meshName: true only when a conservative-constraint mapping declares
// this (mesh, data) pair as its source, deriving the storage requirement
// from configuration instead of a separate solver opt-in call.
func (si *SolverInterface) requiresGradientDataFor(decl *config.ParticipantDecl, dataName, meshName string) bool {
	for _, md := range decl.Mappings {
		if md.From == meshName && md.Constraint == "conservative" {
			return true
		}
	}
	return false
}

// buildMappings wires the participant's declared <mapping> elements into
// MappingContexts attached as read mappings on the target mesh's data
// contexts: every data name used
// by both the mapping's source and target meshes gets one MappingContext.
func (si *SolverInterface) buildMappings(cfg *config.Configuration, decl *config.ParticipantDecl, factories map[string]func() mapping.Mapping) error {
	for _, md := range decl.Mappings {
		fromEntry, ok := si.meshes[md.From]
		if !ok {
			return couplingerrors.New(couplingerrors.ConfigurationError, "mapping references unknown mesh %q", md.From)
		}
		toEntry, ok := si.meshes[md.To]
		if !ok {
			return couplingerrors.New(couplingerrors.ConfigurationError, "mapping references unknown mesh %q", md.To)
		}

		var fromUse, toUse []string
		for _, m := range cfg.Meshes {
			switch m.Name {
			case md.From:
				fromUse = m.UseData
			case md.To:
				toUse = m.UseData
			}
		}
		shared := make(map[string]bool, len(fromUse))
		for _, n := range fromUse {
			shared[n] = true
		}

		constraint := mapping.Consistent
		if md.Constraint == "conservative" {
			constraint = mapping.Conservative
		}
		timing := couplingcontext.TimingOnAdvance
		if md.Timing == "initial" {
			timing = couplingcontext.TimingInitial
		}

		for _, name := range toUse {
			if !shared[name] {
				continue
			}
			factory, ok := factories[md.Kind]
			if !ok {
				return couplingerrors.New(couplingerrors.ConfigurationError,
					"no mapping kernel registered for kind %q", md.Kind)
			}
			kernel := factory()
			kernel.SetMeshes(fromEntry.mesh, toEntry.mesh)

			fromBuf := si.meshData[meshDataKey(md.From, name)]
			toBuf := si.meshData[meshDataKey(md.To, name)]
			if fromBuf == nil || toBuf == nil {
				continue
			}
			mc, err := couplingcontext.NewMappingContext(kernel, fromBuf, toBuf, timing)
			if err != nil {
				return err
			}
			toDC, _ := si.participant.DataContext(meshDataKey(md.To, name))
			toDC.AddFromMapping(mc)
			si.mappingConstraints = append(si.mappingConstraints, mappingConstraint{ctx: toDC, constraint: constraint})
		}
	}
	return nil
}

// buildScheme constructs the coupling-scheme Scheme instance matching
// cfg.CouplingScheme.Kind, wiring in the coupling data this participant
// sends or receives per its exchanges.
func (si *SolverInterface) buildScheme(cfg *config.Configuration, decl *config.ParticipantDecl) error {
	cs := cfg.CouplingScheme
	if cs == nil {
		return couplingerrors.New(couplingerrors.ConfigurationError, "no coupling-scheme configured")
	}

	switch cs.Kind {
	case "serial-explicit", "serial-implicit", "parallel-explicit", "parallel-implicit":
		peerName := otherParticipant(cs, si.ParticipantName)
		ep, ok := si.peers[peerName]
		if !ok || ep.Comm == nil {
			return couplingerrors.New(couplingerrors.ConfigurationError, "no transport supplied for peer participant %q", peerName)
		}
		return si.buildTwoPartyScheme(cfg, cs, peerName, ep.Comm)
	case "multi":
		return si.buildMultiScheme(cfg, cs)
	case "compositional":
		return couplingerrors.New(couplingerrors.ConfigurationError,
			"compositional coupling-scheme cannot be constructed from a single XML document; compose cplscheme.Scheme instances in code instead")
	default:
		return couplingerrors.New(couplingerrors.ConfigurationError, "unknown coupling-scheme kind %q", cs.Kind)
	}
}

// attachIterationLogs opens precice-<participant>-iterations.log and
// -convergence.log on the primary rank and attaches them to
// any scheme implementing cplscheme.LogSettable. Failure to open a log file
// is logged and otherwise ignored: these files are ambient diagnostics, not
// required for coupling correctness.
func (si *SolverInterface) attachIterationLogs(s cplscheme.Scheme, measures []cplscheme.ConvergenceMeasure) {
	settable, ok := s.(cplscheme.LogSettable)
	if !ok || si.ProcessIndex != 0 {
		return
	}
	iterFile, err := os.Create(fmt.Sprintf("precice-%s-iterations.log", si.ParticipantName))
	if err != nil {
		if si.logger != nil {
			si.logger.Warn("could not open iterations log", log.Err(err))
		}
		return
	}
	convFile, err := os.Create(fmt.Sprintf("precice-%s-convergence.log", si.ParticipantName))
	if err != nil {
		_ = iterFile.Close()
		if si.logger != nil {
			si.logger.Warn("could not open convergence log", log.Err(err))
		}
		return
	}
	si.logFiles = append(si.logFiles, iterFile, convFile)
	iterLog := metrics.NewIterationLog(iterFile, "QNColumns", "DeletedQNColumns", "DroppedQNColumns")
	convLog := metrics.NewIterationLog(convFile, cplscheme.ConvergenceLogColumns(measures)...)
	settable.SetLogs(iterLog, convLog)
}

func (si *SolverInterface) buildTwoPartyScheme(cfg *config.Configuration, cs *config.CouplingSchemeDecl, peerName string, c comm.Communication) error {
	firstSetsW := cs.TimeWindowMethod == "first-participant"

	switch cs.Kind {
	case "serial-explicit":
		s, err := cplscheme.NewSerialExplicit(si.ParticipantName, cs.FirstParticipant, cs.SecondParticipant, c, firstSetsW, si.logger, si.metrics)
		if err != nil {
			return err
		}
		s.SetMaxTime(cs.MaxTime)
		if cs.TimeWindowMethod == "fixed" {
			s.SetTimeWindowSize(cs.TimeWindowSize)
		}
		si.wireExchanges(cfg, cs, func(cd *coupleddata.CouplingData, send bool) {
			if send {
				s.AddSendData(cd)
			} else {
				s.AddReceiveData(cd)
			}
		})
		si.scheme = s
	case "serial-implicit":
		s, err := cplscheme.NewSerialImplicit(si.ParticipantName, cs.FirstParticipant, cs.SecondParticipant, c, firstSetsW, si.logger, si.metrics)
		if err != nil {
			return err
		}
		s.SetMaxTime(cs.MaxTime)
		if cs.TimeWindowMethod == "fixed" {
			s.SetTimeWindowSize(cs.TimeWindowSize)
		}
		s.MaxIterations = cs.MaxIterations
		s.ConvergenceMeasures = buildConvergenceMeasures(cs)
		s.Acceleration = buildAcceleration(cs.Acceleration)
		si.wireExchanges(cfg, cs, func(cd *coupleddata.CouplingData, send bool) {
			if send {
				s.AddSendData(cd)
			} else {
				s.AddReceiveData(cd)
			}
		})
		si.attachIterationLogs(s, s.ConvergenceMeasures)
		si.scheme = s
	case "parallel-explicit":
		s := cplscheme.NewParallelExplicit(si.ParticipantName, peerName, c, si.ParticipantName == cs.FirstParticipant && firstSetsW, si.logger, si.metrics)
		s.FirstParticipantMethod = firstSetsW
		s.SetMaxTime(cs.MaxTime)
		if cs.TimeWindowMethod == "fixed" {
			s.SetTimeWindowSize(cs.TimeWindowSize)
		}
		si.wireExchanges(cfg, cs, func(cd *coupleddata.CouplingData, send bool) {
			if send {
				s.AddSendData(cd)
			} else {
				s.AddReceiveData(cd)
			}
		})
		si.scheme = s
	case "parallel-implicit":
		s := cplscheme.NewParallelImplicit(si.ParticipantName, peerName, c, si.ParticipantName == cs.FirstParticipant && firstSetsW, si.logger, si.metrics)
		s.FirstParticipantMethod = firstSetsW
		s.MeasuringParticipant = cs.FirstParticipant
		s.SetMaxTime(cs.MaxTime)
		if cs.TimeWindowMethod == "fixed" {
			s.SetTimeWindowSize(cs.TimeWindowSize)
		}
		s.MaxIterations = cs.MaxIterations
		s.ConvergenceMeasures = buildConvergenceMeasures(cs)
		s.Acceleration = buildAcceleration(cs.Acceleration)
		si.wireExchanges(cfg, cs, func(cd *coupleddata.CouplingData, send bool) {
			if send {
				s.AddSendData(cd)
			} else {
				s.AddReceiveData(cd)
			}
		})
		si.attachIterationLogs(s, s.ConvergenceMeasures)
		si.scheme = s
	}
	return nil
}

// buildMultiScheme designates cs.Participants[0] as the hub: the hub gets a
// MultiCoupling with one PeerLink per remaining participant, and every
// other declared participant gets a ParallelImplicit pointed at the hub.
// The XML schema names participants, not roles; picking the first-declared
// one as hub is this package's own convention.
func (si *SolverInterface) buildMultiScheme(cfg *config.Configuration, cs *config.CouplingSchemeDecl) error {
	if len(cs.Participants) < 2 {
		return couplingerrors.New(couplingerrors.ConfigurationError, "multi coupling-scheme requires at least 2 participants")
	}
	hub := cs.Participants[0]

	if si.ParticipantName == hub {
		m := cplscheme.NewMultiCoupling(si.ParticipantName, si.logger, si.metrics)
		m.SetMaxTime(cs.MaxTime)
		if cs.TimeWindowMethod == "fixed" {
			m.SetTimeWindowSize(cs.TimeWindowSize)
		}
		m.MaxIterations = cs.MaxIterations
		m.ConvergenceMeasures = buildConvergenceMeasures(cs)
		m.Acceleration = buildAcceleration(cs.Acceleration)
		for _, peer := range cs.Participants[1:] {
			ep, ok := si.peers[peer]
			if !ok || ep.Comm == nil {
				return couplingerrors.New(couplingerrors.ConfigurationError, "no transport supplied for spoke participant %q", peer)
			}
			link := cplscheme.NewPeerLink(peer, ep.Comm)
			m.Peers = append(m.Peers, link)
			si.wireExchangesForPeer(cfg, cs, peer, func(cd *coupleddata.CouplingData, send bool) {
				if send {
					link.AddSendData(cd)
				} else {
					link.AddReceiveData(cd)
				}
			})
		}
		si.attachIterationLogs(m, m.ConvergenceMeasures)
		si.scheme = m
		return nil
	}

	ep, ok := si.peers[hub]
	if !ok || ep.Comm == nil {
		return couplingerrors.New(couplingerrors.ConfigurationError, "no transport supplied for hub participant %q", hub)
	}
	p := cplscheme.NewParallelImplicit(si.ParticipantName, hub, ep.Comm, false, si.logger, si.metrics)
	p.MeasuringParticipant = hub
	p.SetMaxTime(cs.MaxTime)
	if cs.TimeWindowMethod == "fixed" {
		p.SetTimeWindowSize(cs.TimeWindowSize)
	}
	p.MaxIterations = cs.MaxIterations
	p.ConvergenceMeasures = buildConvergenceMeasures(cs)
	p.Acceleration = buildAcceleration(cs.Acceleration)
	si.wireExchanges(cfg, cs, func(cd *coupleddata.CouplingData, send bool) {
		if send {
			p.AddSendData(cd)
		} else {
			p.AddReceiveData(cd)
		}
	})
	si.attachIterationLogs(p, p.ConvergenceMeasures)
	si.scheme = p
	return nil
}

// wireExchanges resolves every <exchange> naming this participant as
// sender or receiver to its scheme-facing buffer and invokes add.
func (si *SolverInterface) wireExchanges(cfg *config.Configuration, cs *config.CouplingSchemeDecl, add func(cd *coupleddata.CouplingData, send bool)) {
	for _, ex := range cs.Exchanges {
		isSend := ex.From == si.ParticipantName
		isRecv := ex.To == si.ParticipantName
		if !isSend && !isRecv {
			continue
		}
		si.wireOneExchange(ex, cs.ExtrapolationOrder, isSend, add)
	}
}

// wireExchangesForPeer is wireExchanges restricted to exchanges between
// this participant (the hub) and one named spoke, used to build each
// PeerLink's own send/receive table in a multi-coupling scheme.
func (si *SolverInterface) wireExchangesForPeer(cfg *config.Configuration, cs *config.CouplingSchemeDecl, peer string, add func(cd *coupleddata.CouplingData, send bool)) {
	for _, ex := range cs.Exchanges {
		isSend := ex.From == si.ParticipantName && ex.To == peer
		isRecv := ex.To == si.ParticipantName && ex.From == peer
		if !isSend && !isRecv {
			continue
		}
		si.wireOneExchange(ex, cs.ExtrapolationOrder, isSend, add)
	}
}

func (si *SolverInterface) wireOneExchange(ex config.ExchangeDecl, extrapolationOrder int, isSend bool, add func(cd *coupleddata.CouplingData, send bool)) {
	data := si.meshData[meshDataKey(ex.Mesh, ex.Data)]
	if data == nil {
		data = si.data[ex.Data]
	}
	if data == nil {
		return
	}
	cd, ok := si.cpData[ex.Data]
	if !ok {
		var err error
		cd, err = coupleddata.New(data, ex.Initialize, extrapolationOrder)
		if err != nil {
			return
		}
		si.cpData[ex.Data] = cd
	}
	add(cd, isSend)
}

func buildConvergenceMeasures(cs *config.CouplingSchemeDecl) []cplscheme.ConvergenceMeasure {
	out := make([]cplscheme.ConvergenceMeasure, 0, len(cs.ConvergenceMeasures))
	for _, m := range cs.ConvergenceMeasures {
		out = append(out, cplscheme.ConvergenceMeasure{
			DataName: m.Data,
			Limit:    m.Limit,
			Suffices: m.Suffices,
			Strict:   m.Strict,
		})
	}
	return out
}

func buildAcceleration(decl *config.AccelerationDecl) acceleration.Acceleration {
	if decl == nil {
		return nil
	}
	switch decl.Kind {
	case "constant":
		return constant.New(decl.RelaxationFactor)
	case "aitken":
		return aitken.New(decl.RelaxationFactor)
	case "IQN-ILS":
		return iqnils.New(decl.RelaxationFactor, decl.MaxUsedIterations)
	default:
		return nil
	}
}

// exchangePartitions runs the vertex-scatter/filter phase
// for every mesh this participant uses, in lexical order to avoid
// cross-deadlock when meshes flow in both directions between the same pair
// of participants.
func (si *SolverInterface) exchangePartitions(ctx context.Context) error {
	names := make([]string, 0, len(si.meshes))
	for n := range si.meshes {
		names = append(names, n)
	}
	names = partition.SortByName(names)

	for _, name := range names {
		entry := si.meshes[name]
		switch entry.ctx.Direction {
		case couplingcontext.Provide:
			pp := partition.NewProvidedPartition(entry.mesh, entry.ctx.Requirement)
			receivers := si.receiversOf(name)
			entry.provide = &providedWiring{partition: pp, receivers: receivers}
			for _, peer := range receivers {
				conn, ok := si.connections[peer]
				if !ok {
					return couplingerrors.New(couplingerrors.ConfigurationError, "mesh %q has no connection to receiver %q", name, peer)
				}
				ch, err := conn.Comm.Primary(peer)
				if err != nil {
					return couplingerrors.Wrap(couplingerrors.TransportError, err, "mesh %q: primary channel to %q", name, peer)
				}
				if err := pp.Communicate(ctx, ch); err != nil {
					return err
				}
			}
		case couplingcontext.ReceiveFrom:
			rp := partition.NewReceivedPartition(entry.mesh, entry.ctx.SafetyFactor, true)
			ownedBox := si.ownedBoundingBox()
			if err := rp.SetFilterBoundingBox(ownedBox, entry.ctx.AccessRegion, entry.ctx.AccessRegionSet); err != nil {
				return err
			}
			conn, ok := si.connections[entry.ctx.FromPeer]
			if !ok {
				return couplingerrors.New(couplingerrors.ConfigurationError, "mesh %q has no connection to provider %q", name, entry.ctx.FromPeer)
			}
			ch, err := conn.Comm.Primary(entry.ctx.FromPeer)
			if err != nil {
				return couplingerrors.Wrap(couplingerrors.TransportError, err, "mesh %q: primary channel to %q", name, entry.ctx.FromPeer)
			}
			if err := rp.Communicate(ctx, ch, entry.mesh.Dimensions); err != nil {
				return err
			}
			entry.receive = &receivedWiring{partition: rp, from: entry.ctx.FromPeer}
		}
		entry.mesh.Lock()
	}
	return nil
}

// receiversOf returns, in sorted order, every peer participant declared to
// receive meshName from this participant.
func (si *SolverInterface) receiversOf(meshName string) []string {
	seen := make(map[string]bool)
	for peer, receives := range si.peerReceiveMesh {
		for _, rm := range receives {
			if rm.Name == meshName {
				seen[peer] = true
			}
		}
	}
	peers := make([]string, 0, len(seen))
	for p := range seen {
		peers = append(peers, p)
	}
	sort.Strings(peers)
	return peers
}

// ownedBoundingBox unions the bounding boxes of every provided mesh. A
// participant providing no mesh (a pure direct-access receiver) gets an
// empty box, so its filter reduces to the access region alone.
func (si *SolverInterface) ownedBoundingBox() mesh.BoundingBox {
	box := mesh.NewBoundingBox(si.cfg.Dimensions)
	for _, entry := range si.meshes {
		if entry.ctx.Direction != couplingcontext.Provide {
			continue
		}
		box.ExpandBox(entry.mesh.BoundingBox())
	}
	return box
}

// allocateData sizes every Data buffer to its owning mesh's current vertex
// count, once partitioning has populated the mesh; global data gets a
// single slot.
func (si *SolverInterface) allocateData() error {
	for key, data := range si.meshData {
		meshName, _ := splitKey(key)
		entry, ok := si.meshes[meshName]
		if !ok {
			continue
		}
		data.AllocateValues(entry.mesh.Size())
	}
	for _, data := range si.data {
		data.AllocateValues(1)
	}
	return nil
}

// seedWaveforms creates a sub-window sampling buffer for every exchanged
// data field, seeded with its freshly allocated buffer so relativeReadTime
// sampling is well-defined before the first exchange completes.
func (si *SolverInterface) seedWaveforms() error {
	for name, cd := range si.cpData {
		w := waveform.New(1, len(cd.Values()))
		if err := w.Initialize(cd.Values()); err != nil {
			return err
		}
		si.waves[name] = w
	}
	return nil
}

// runMappings applies every configured mapping scheduled for timing,
// populating each mapped-to mesh's data from its source buffer. Read and
// write mappings share the same underlying mechanism here:
// only the direction and constraint the configuration declared differ.
func (si *SolverInterface) runMappings(timing couplingcontext.Timing) error {
	for _, mcst := range si.mappingConstraints {
		hasTiming := false
		for _, mc := range mcst.ctx.FromMappings {
			if mc.Timing == timing {
				hasTiming = true
			}
		}
		if !hasTiming {
			continue
		}
		if err := mcst.ctx.MapRead(mcst.constraint); err != nil {
			return err
		}
	}
	return nil
}

func (si *SolverInterface) runWriteMappings(timing couplingcontext.Timing) error { return si.runMappings(timing) }
func (si *SolverInterface) runReadMappings(timing couplingcontext.Timing) error  { return si.runMappings(timing) }
