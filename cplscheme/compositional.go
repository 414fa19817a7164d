package cplscheme

import (
	"context"

	"github.com/meshcouple/coupler/couplingerrors"
)

// Compositional composes N sub-schemes, delegating each phase call to
// every sub-scheme in the declared configuration order. It is itself a
// Scheme, so a Compositional can be a sub-scheme of another one; the
// config parser does not read nested coupling-scheme elements.
type Compositional struct {
	Schemes []Scheme

	// complete tracks, per outer step, which sub-schemes have reported a
	// completed window; the outer window is complete only once every
	// sub-scheme agrees within the same step.
	complete []bool
}

// NewCompositional composes schemes in the given order. Order matters: the
// phase calls below delegate in this exact sequence, matching the source's
// rule that exchange order across sub-schemes is whatever the
// configuration declared.
func NewCompositional(schemes ...Scheme) (*Compositional, error) {
	if len(schemes) < 2 {
		return nil, couplingerrors.New(couplingerrors.ConfigurationError,
			"compositional scheme: need at least 2 sub-schemes, got %d", len(schemes))
	}
	return &Compositional{Schemes: schemes, complete: make([]bool, len(schemes))}, nil
}

var _ Scheme = (*Compositional)(nil)

func (c *Compositional) Initialize(ctx context.Context, startTime float64, startWindow int) error {
	for _, s := range c.Schemes {
		if err := s.Initialize(ctx, startTime, startWindow); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compositional) ReceiveResultOfFirstAdvance(ctx context.Context) error {
	for _, s := range c.Schemes {
		if err := s.ReceiveResultOfFirstAdvance(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compositional) FirstSynchronization(ctx context.Context) error {
	for _, s := range c.Schemes {
		if err := s.FirstSynchronization(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compositional) FirstExchange(ctx context.Context) error {
	for _, s := range c.Schemes {
		if err := s.FirstExchange(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compositional) SecondSynchronization(ctx context.Context) error {
	for _, s := range c.Schemes {
		if err := s.SecondSynchronization(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compositional) SecondExchange(ctx context.Context) error {
	for i, s := range c.Schemes {
		if err := s.SecondExchange(ctx); err != nil {
			return err
		}
		c.complete[i] = s.IsTimeWindowComplete()
	}
	return nil
}

func (c *Compositional) Finalize(ctx context.Context) error {
	for _, s := range c.Schemes {
		if err := s.Finalize(ctx); err != nil {
			return err
		}
	}
	return nil
}

// IsCouplingOngoing is true iff any sub-scheme is still ongoing.
func (c *Compositional) IsCouplingOngoing() bool {
	for _, s := range c.Schemes {
		if s.IsCouplingOngoing() {
			return true
		}
	}
	return false
}

// IsTimeWindowComplete is true iff every sub-scheme reported a complete
// window in the same outer SecondExchange step.
func (c *Compositional) IsTimeWindowComplete() bool {
	for _, done := range c.complete {
		if !done {
			return false
		}
	}
	return true
}

// HasDataBeenReceived is true iff any sub-scheme received data this step.
func (c *Compositional) HasDataBeenReceived() bool {
	for _, s := range c.Schemes {
		if s.HasDataBeenReceived() {
			return true
		}
	}
	return false
}

// AnnouncesTimeWindowSize is true if any sub-scheme announces its window
// size, since the window-end-only read restriction then applies to the
// composition as a whole.
func (c *Compositional) AnnouncesTimeWindowSize() bool {
	for _, s := range c.Schemes {
		if s.AnnouncesTimeWindowSize() {
			return true
		}
	}
	return false
}

func (c *Compositional) HasTimeWindowSize() bool { return c.Schemes[0].HasTimeWindowSize() }
func (c *Compositional) GetTimeWindowSize() float64 { return c.Schemes[0].GetTimeWindowSize() }
func (c *Compositional) GetTime() float64           { return c.Schemes[0].GetTime() }
func (c *Compositional) GetTimeWindows() int        { return c.Schemes[0].GetTimeWindows() }

func (c *Compositional) GetThisTimeWindowRemainder() float64 {
	return c.Schemes[0].GetThisTimeWindowRemainder()
}

// GetNextTimestepMaxLength returns the smallest max length any sub-scheme
// allows, so the solver never overshoots the tightest sub-scheme's window.
func (c *Compositional) GetNextTimestepMaxLength() float64 {
	min := c.Schemes[0].GetNextTimestepMaxLength()
	for _, s := range c.Schemes[1:] {
		if l := s.GetNextTimestepMaxLength(); l < min {
			min = l
		}
	}
	return min
}

func (c *Compositional) AddComputedTime(dt float64) error {
	for _, s := range c.Schemes {
		if err := s.AddComputedTime(dt); err != nil {
			return err
		}
	}
	return nil
}

// RequiresAction unions the action query across sub-schemes: true iff any
// sub-scheme requires (and thereby fulfils) the action. Every sub-scheme is
// queried so none is left with an unfulfilled action of its own.
func (c *Compositional) RequiresAction(a Action) bool {
	required := false
	for _, s := range c.Schemes {
		if s.RequiresAction(a) {
			required = true
		}
	}
	return required
}

func (c *Compositional) SendsInitializedData() bool {
	for _, s := range c.Schemes {
		if s.SendsInitializedData() {
			return true
		}
	}
	return false
}

func (c *Compositional) WillDataBeExchanged() bool {
	for _, s := range c.Schemes {
		if s.WillDataBeExchanged() {
			return true
		}
	}
	return false
}
