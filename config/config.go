// Package config parses and validates the `<solver-interface>` XML
// configuration: data declarations, meshes,
// participants, m2n transports, and the coupling-scheme variant. Parsing
// follows encoding/xml with plain
// Go structs plus a Validate() method (validate.go) rather than a
// schema-validation library, since the
// ecosystem pack carries none for XML.
package config

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// DataDecl is a <data:scalar name="..."/> or <data:vector name="..."/>
// declaration. Kind is the element's local name after the "data:" prefix.
type DataDecl struct {
	Kind string // "scalar" or "vector"
	Name string
}

func (d *DataDecl) unmarshal(start xml.StartElement) error {
	d.Kind = start.Name.Local
	for _, a := range start.Attr {
		if a.Name.Local == "name" {
			d.Name = a.Value
		}
	}
	return nil
}

// MeshDecl is a <mesh name="..."> block; UseData lists the names of data
// the mesh carries, via nested <use-data name="..."/> elements.
type MeshDecl struct {
	Name    string
	UseData []string
}

// ReceiveMeshDecl is a <receive-mesh name="..." from="..."/> declaration.
type ReceiveMeshDecl struct {
	Name string
	From string
}

// DataRefDecl is a <read-data name="..." mesh="..."/> or
// <write-data name="..." mesh="..."/> declaration.
type DataRefDecl struct {
	Name string
	Mesh string
}

// MappingDecl is a <mapping:nearest-neighbor constraint="..." from="..."
// to="..." timing="..."/>-shaped element; Kind carries the mapping
// variant ("nearest-neighbor", "nearest-projection", "rbf", ...).
type MappingDecl struct {
	Kind       string
	Constraint string
	From       string
	To         string
	Timing     string
}

func (m *MappingDecl) unmarshal(start xml.StartElement) error {
	m.Kind = start.Name.Local
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "constraint":
			m.Constraint = a.Value
		case "from":
			m.From = a.Value
		case "to":
			m.To = a.Value
		case "timing":
			m.Timing = a.Value
		}
	}
	return nil
}

// ParticipantDecl is a <participant name="..."> block.
type ParticipantDecl struct {
	Name         string
	ProvideMesh  []string
	ReceiveMesh  []ReceiveMeshDecl
	ReadData     []DataRefDecl
	WriteData    []DataRefDecl
	Mappings     []MappingDecl
}

// M2NDecl is an <m2n:sockets from="..." to="..."/>-shaped element; Kind
// carries the transport variant ("sockets", "mpi", ...).
type M2NDecl struct {
	Kind string
	From string
	To   string
}

func (m *M2NDecl) unmarshal(start xml.StartElement) error {
	m.Kind = start.Name.Local
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "from":
			m.From = a.Value
		case "to":
			m.To = a.Value
		}
	}
	return nil
}

// ExchangeDecl is an <exchange data="..." mesh="..." from="..." to="..."
// initialize="true|false"/> declaration inside a coupling-scheme.
type ExchangeDecl struct {
	Data       string
	Mesh       string
	From       string
	To         string
	Initialize bool
}

// ConvergenceMeasureDecl is a <convergence-measure data="..." mesh="..."
// limit="..." suffices="..." strict="..."/> declaration.
type ConvergenceMeasureDecl struct {
	Data     string
	Mesh     string
	Limit    float64
	Suffices bool
	Strict   bool
}

// AccelerationDecl is an <acceleration:constant relaxation="..."/>-shaped
// element; Kind carries the acceleration variant.
type AccelerationDecl struct {
	Kind             string
	RelaxationFactor float64
	MaxUsedIterations int
	FilterType       string
}

func (a *AccelerationDecl) unmarshal(start xml.StartElement) error {
	a.Kind = start.Name.Local
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "relaxation":
			fmt.Sscanf(attr.Value, "%g", &a.RelaxationFactor)
		case "max-used-iterations":
			fmt.Sscanf(attr.Value, "%d", &a.MaxUsedIterations)
		case "filter":
			a.FilterType = attr.Value
		}
	}
	return nil
}

// CouplingSchemeDecl is a <coupling-scheme:serial-explicit|...> block. Kind
// carries the variant name.
type CouplingSchemeDecl struct {
	Kind string

	MaxTime          float64
	TimeWindowSize   float64
	TimeWindowMethod string // "fixed" or "first-participant"

	FirstParticipant  string // serial/parallel: <participants first=... second=.../>
	SecondParticipant string
	Participants      []string // multi/compositional: N <participant name=.../>

	Exchanges           []ExchangeDecl
	ConvergenceMeasures []ConvergenceMeasureDecl
	ExtrapolationOrder  int
	MaxIterations       int
	Acceleration        *AccelerationDecl
}

// Configuration is the parsed, unvalidated contents of a
// <solver-interface> document.
type Configuration struct {
	Dimensions   int
	Experimental bool

	Data       []DataDecl
	GlobalData []DataDecl
	Meshes     []MeshDecl
	Participants []ParticipantDecl
	M2Ns         []M2NDecl
	CouplingScheme *CouplingSchemeDecl
}

// Load reads and parses the XML configuration file at path.
func Load(path string) (*Configuration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a <solver-interface> document from r. It does not
// validate; call Configuration.Validate afterward.
func Parse(r io.Reader) (*Configuration, error) {
	dec := xml.NewDecoder(r)
	cfg := &Configuration{}

	root, err := nextStart(dec)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if root.Name.Local != "solver-interface" {
		return nil, fmt.Errorf("config: root element is %q, want solver-interface", root.Name.Local)
	}
	for _, a := range root.Attr {
		switch a.Name.Local {
		case "dimensions":
			fmt.Sscanf(a.Value, "%d", &cfg.Dimensions)
		case "experimental":
			cfg.Experimental = a.Value == "true"
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "scalar", "vector":
			d := DataDecl{}
			d.unmarshal(start)
			if err := dec.Skip(); err != nil {
				return nil, err
			}
			if start.Name.Space == "global-data" {
				cfg.GlobalData = append(cfg.GlobalData, d)
			} else {
				cfg.Data = append(cfg.Data, d)
			}
		case "mesh":
			m, err := parseMesh(dec, start)
			if err != nil {
				return nil, err
			}
			cfg.Meshes = append(cfg.Meshes, m)
		case "participant":
			p, err := parseParticipant(dec, start)
			if err != nil {
				return nil, err
			}
			cfg.Participants = append(cfg.Participants, p)
		case "sockets", "mpi", "mpi-singlebuffered":
			m := M2NDecl{}
			m.unmarshal(start)
			if err := dec.Skip(); err != nil {
				return nil, err
			}
			cfg.M2Ns = append(cfg.M2Ns, m)
		case "serial-explicit", "serial-implicit", "parallel-explicit", "parallel-implicit", "multi", "compositional":
			cs, err := parseCouplingScheme(dec, start)
			if err != nil {
				return nil, err
			}
			cfg.CouplingScheme = cs
		default:
			// global-data lives nested under a dedicated element in real
			// configurations; a top-level scalar/vector with Space
			// "global-data" is handled by the default data case above
			// since we dispatch purely on local name, so anything else
			// unrecognized at this level is skipped rather than rejected,
			// tolerating forward-compatible unknown fields.
			if err := dec.Skip(); err != nil {
				return nil, err
			}
		}
	}
	return cfg, nil
}

func nextStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

func attrValue(start xml.StartElement, name string) string {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func parseMesh(dec *xml.Decoder, start xml.StartElement) (MeshDecl, error) {
	m := MeshDecl{Name: attrValue(start, "name")}
	for {
		tok, err := dec.Token()
		if err != nil {
			return m, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "use-data" {
				m.UseData = append(m.UseData, attrValue(t, "name"))
			}
			if err := dec.Skip(); err != nil {
				return m, err
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return m, nil
			}
		}
	}
}

func parseParticipant(dec *xml.Decoder, start xml.StartElement) (ParticipantDecl, error) {
	p := ParticipantDecl{Name: attrValue(start, "name")}
	for {
		tok, err := dec.Token()
		if err != nil {
			return p, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "provide-mesh":
				p.ProvideMesh = append(p.ProvideMesh, attrValue(t, "name"))
			case "receive-mesh":
				p.ReceiveMesh = append(p.ReceiveMesh, ReceiveMeshDecl{Name: attrValue(t, "name"), From: attrValue(t, "from")})
			case "read-data":
				p.ReadData = append(p.ReadData, DataRefDecl{Name: attrValue(t, "name"), Mesh: attrValue(t, "mesh")})
			case "write-data":
				p.WriteData = append(p.WriteData, DataRefDecl{Name: attrValue(t, "name"), Mesh: attrValue(t, "mesh")})
			case "nearest-neighbor", "nearest-projection", "rbf", "linear-cell-interpolation":
				md := MappingDecl{}
				md.unmarshal(t)
				p.Mappings = append(p.Mappings, md)
			}
			if err := dec.Skip(); err != nil {
				return p, err
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return p, nil
			}
		}
	}
}

func parseCouplingScheme(dec *xml.Decoder, start xml.StartElement) (*CouplingSchemeDecl, error) {
	cs := &CouplingSchemeDecl{Kind: start.Name.Local}
	for {
		tok, err := dec.Token()
		if err != nil {
			return cs, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "max-time":
				fmt.Sscanf(attrValue(t, "value"), "%g", &cs.MaxTime)
			case "time-window-size":
				fmt.Sscanf(attrValue(t, "value"), "%g", &cs.TimeWindowSize)
				cs.TimeWindowMethod = attrValue(t, "method")
				if cs.TimeWindowMethod == "" {
					cs.TimeWindowMethod = "fixed"
				}
			case "participants":
				cs.FirstParticipant = attrValue(t, "first")
				cs.SecondParticipant = attrValue(t, "second")
			case "participant":
				cs.Participants = append(cs.Participants, attrValue(t, "name"))
			case "exchange":
				ex := ExchangeDecl{
					Data:       attrValue(t, "data"),
					Mesh:       attrValue(t, "mesh"),
					From:       attrValue(t, "from"),
					To:         attrValue(t, "to"),
					Initialize: attrValue(t, "initialize") == "true",
				}
				cs.Exchanges = append(cs.Exchanges, ex)
			case "convergence-measure":
				cm := ConvergenceMeasureDecl{
					Data:     attrValue(t, "data"),
					Mesh:     attrValue(t, "mesh"),
					Suffices: attrValue(t, "suffices") == "true",
					Strict:   attrValue(t, "strict") == "true",
				}
				fmt.Sscanf(attrValue(t, "limit"), "%g", &cm.Limit)
				cs.ConvergenceMeasures = append(cs.ConvergenceMeasures, cm)
			case "extrapolation-order":
				fmt.Sscanf(attrValue(t, "value"), "%d", &cs.ExtrapolationOrder)
			case "max-iterations":
				fmt.Sscanf(attrValue(t, "value"), "%d", &cs.MaxIterations)
			case "constant", "aitken", "IQN-ILS":
				acc := &AccelerationDecl{}
				acc.unmarshal(t)
				cs.Acceleration = acc
			}
			if err := dec.Skip(); err != nil {
				return cs, err
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return cs, nil
			}
		}
	}
}
