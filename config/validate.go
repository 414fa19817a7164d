package config

import (
	"github.com/meshcouple/coupler/couplingerrors"
)

// Validate checks the static structural and cross-reference invariants of
// a parsed configuration. Every check returns a *couplingerrors.Error of
// kind ConfigurationError as soon as it finds a problem, rather than
// accumulating a list.
func (c *Configuration) Validate() error {
	if c.Dimensions != 2 && c.Dimensions != 3 {
		return couplingerrors.New(couplingerrors.ConfigurationError,
			"solver-interface dimensions must be 2 or 3, got %d", c.Dimensions)
	}

	dataNames := make(map[string]bool)
	for _, d := range c.Data {
		if dataNames[d.Name] {
			return couplingerrors.New(couplingerrors.ConfigurationError, "duplicate data name %q", d.Name)
		}
		dataNames[d.Name] = true
	}
	globalNames := make(map[string]bool)
	for _, d := range c.GlobalData {
		if globalNames[d.Name] {
			return couplingerrors.New(couplingerrors.ConfigurationError, "duplicate global-data name %q", d.Name)
		}
		globalNames[d.Name] = true
	}

	meshNames := make(map[string]bool)
	for _, m := range c.Meshes {
		if meshNames[m.Name] {
			return couplingerrors.New(couplingerrors.ConfigurationError, "duplicate mesh name %q", m.Name)
		}
		meshNames[m.Name] = true
		for _, use := range m.UseData {
			if !dataNames[use] {
				return couplingerrors.New(couplingerrors.ConfigurationError,
					"mesh %q uses undeclared data %q", m.Name, use)
			}
		}
	}

	participantNames := make(map[string]bool)
	for _, p := range c.Participants {
		if participantNames[p.Name] {
			return couplingerrors.New(couplingerrors.ConfigurationError, "duplicate participant name %q", p.Name)
		}
		participantNames[p.Name] = true
	}

	for _, p := range c.Participants {
		owned := make(map[string]bool)
		for _, meshName := range p.ProvideMesh {
			if !meshNames[meshName] {
				return couplingerrors.New(couplingerrors.ConfigurationError,
					"participant %q provides undeclared mesh %q", p.Name, meshName)
			}
			owned[meshName] = true
		}
		for _, rm := range p.ReceiveMesh {
			if !meshNames[rm.Name] {
				return couplingerrors.New(couplingerrors.ConfigurationError,
					"participant %q receives undeclared mesh %q", p.Name, rm.Name)
			}
			if !participantNames[rm.From] {
				return couplingerrors.New(couplingerrors.ConfigurationError,
					"participant %q receives mesh %q from undeclared participant %q", p.Name, rm.Name, rm.From)
			}
			owned[rm.Name] = true
		}
		for _, rd := range p.ReadData {
			if !owned[rd.Mesh] {
				return couplingerrors.New(couplingerrors.ConfigurationError,
					"participant %q reads data %q on mesh %q it neither provides nor receives", p.Name, rd.Name, rd.Mesh)
			}
			if !dataNames[rd.Name] && !globalNames[rd.Name] {
				return couplingerrors.New(couplingerrors.ConfigurationError,
					"participant %q reads undeclared data %q", p.Name, rd.Name)
			}
		}
		for _, wd := range p.WriteData {
			if !owned[wd.Mesh] {
				return couplingerrors.New(couplingerrors.ConfigurationError,
					"participant %q writes data %q on mesh %q it neither provides nor receives", p.Name, wd.Name, wd.Mesh)
			}
			if !dataNames[wd.Name] && !globalNames[wd.Name] {
				return couplingerrors.New(couplingerrors.ConfigurationError,
					"participant %q writes undeclared data %q", p.Name, wd.Name)
			}
		}
		for _, md := range p.Mappings {
			if !owned[md.From] && !meshNames[md.From] {
				return couplingerrors.New(couplingerrors.ConfigurationError,
					"participant %q maps from undeclared mesh %q", p.Name, md.From)
			}
			if !owned[md.To] && !meshNames[md.To] {
				return couplingerrors.New(couplingerrors.ConfigurationError,
					"participant %q maps to undeclared mesh %q", p.Name, md.To)
			}
			if md.From == md.To {
				return couplingerrors.New(couplingerrors.ConfigurationError,
					"participant %q declares a mapping from %q to itself", p.Name, md.From)
			}
			if md.Constraint != "consistent" && md.Constraint != "conservative" {
				return couplingerrors.New(couplingerrors.ConfigurationError,
					"mapping %s->%s has invalid constraint %q", md.From, md.To, md.Constraint)
			}
			if md.Timing != "initial" && md.Timing != "onadvance" {
				return couplingerrors.New(couplingerrors.ConfigurationError,
					"mapping %s->%s has invalid timing %q", md.From, md.To, md.Timing)
			}
		}
	}

	if c.CouplingScheme != nil {
		if err := c.CouplingScheme.validate(dataNames, globalNames, meshNames, participantNames); err != nil {
			return err
		}
	}
	return nil
}

func (cs *CouplingSchemeDecl) validate(dataNames, globalNames, meshNames, participantNames map[string]bool) error {
	switch cs.Kind {
	case "serial-explicit", "serial-implicit", "parallel-explicit", "parallel-implicit":
		if cs.FirstParticipant == "" || cs.SecondParticipant == "" {
			return couplingerrors.New(couplingerrors.ConfigurationError,
				"%s coupling-scheme requires <participants first=... second=.../>", cs.Kind)
		}
		if !participantNames[cs.FirstParticipant] {
			return couplingerrors.New(couplingerrors.ConfigurationError,
				"coupling-scheme first participant %q is not declared", cs.FirstParticipant)
		}
		if !participantNames[cs.SecondParticipant] {
			return couplingerrors.New(couplingerrors.ConfigurationError,
				"coupling-scheme second participant %q is not declared", cs.SecondParticipant)
		}
	case "multi", "compositional":
		if len(cs.Participants) < 2 {
			return couplingerrors.New(couplingerrors.ConfigurationError,
				"%s coupling-scheme requires at least 2 <participant name=.../> entries", cs.Kind)
		}
		for _, name := range cs.Participants {
			if !participantNames[name] {
				return couplingerrors.New(couplingerrors.ConfigurationError,
					"coupling-scheme participant %q is not declared", name)
			}
		}
	default:
		return couplingerrors.New(couplingerrors.ConfigurationError, "unknown coupling-scheme kind %q", cs.Kind)
	}

	if cs.MaxTime <= 0 {
		return couplingerrors.New(couplingerrors.ConfigurationError, "coupling-scheme max-time must be > 0")
	}
	if cs.TimeWindowMethod == "fixed" && cs.TimeWindowSize <= 0 {
		return couplingerrors.New(couplingerrors.ConfigurationError,
			"coupling-scheme time-window-size must be > 0 for method=fixed")
	}
	if cs.TimeWindowMethod != "fixed" && cs.TimeWindowMethod != "first-participant" {
		return couplingerrors.New(couplingerrors.ConfigurationError,
			"coupling-scheme time-window-size method %q is neither fixed nor first-participant", cs.TimeWindowMethod)
	}
	if cs.TimeWindowMethod == "first-participant" && (cs.Kind == "multi" || cs.Kind == "compositional") {
		return couplingerrors.New(couplingerrors.ConfigurationError,
			"%s coupling-scheme requires time-window-size method=fixed", cs.Kind)
	}

	if cs.ExtrapolationOrder < 0 || cs.ExtrapolationOrder > 1 {
		return couplingerrors.New(couplingerrors.ConfigurationError,
			"extrapolation-order %d is rejected; only 0 or 1 is supported", cs.ExtrapolationOrder)
	}
	// First-participant time-window sizing means the window length isn't
	// known until that participant's first window ends, so any
	// extrapolation-order-driven sub-window sampling configured for the
	// scheme can't be resolved consistently. The runtime would only
	// discover the contradiction deep inside a relativeReadTime call;
	// reject it here instead.
	if cs.TimeWindowMethod == "first-participant" && cs.ExtrapolationOrder > 0 {
		return couplingerrors.New(couplingerrors.ConfigurationError,
			"time-window-size method=first-participant cannot be combined with extrapolation-order > 0")
	}

	isImplicit := cs.Kind == "serial-implicit" || cs.Kind == "parallel-implicit" || cs.Kind == "multi"
	if isImplicit {
		if len(cs.ConvergenceMeasures) == 0 {
			return couplingerrors.New(couplingerrors.ConfigurationError,
				"%s coupling-scheme requires at least one convergence-measure", cs.Kind)
		}
		if cs.MaxIterations <= 0 {
			return couplingerrors.New(couplingerrors.ConfigurationError,
				"%s coupling-scheme requires max-iterations > 0", cs.Kind)
		}
	}
	for _, m := range cs.ConvergenceMeasures {
		if !dataNames[m.Data] && !globalNames[m.Data] {
			return couplingerrors.New(couplingerrors.ConfigurationError,
				"convergence-measure references undeclared data %q", m.Data)
		}
		if m.Limit <= 0 {
			return couplingerrors.New(couplingerrors.ConfigurationError,
				"convergence-measure for %q must have limit > 0", m.Data)
		}
	}
	for _, ex := range cs.Exchanges {
		if !dataNames[ex.Data] && !globalNames[ex.Data] {
			return couplingerrors.New(couplingerrors.ConfigurationError,
				"exchange references undeclared data %q", ex.Data)
		}
		if !meshNames[ex.Mesh] {
			return couplingerrors.New(couplingerrors.ConfigurationError,
				"exchange references undeclared mesh %q", ex.Mesh)
		}
		if !participantNames[ex.From] {
			return couplingerrors.New(couplingerrors.ConfigurationError,
				"exchange references undeclared participant %q as from", ex.From)
		}
		if !participantNames[ex.To] {
			return couplingerrors.New(couplingerrors.ConfigurationError,
				"exchange references undeclared participant %q as to", ex.To)
		}
	}
	return nil
}
