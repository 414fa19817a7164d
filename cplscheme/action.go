package cplscheme

// Action is a wire-level obligation the coupling scheme places on the
// solver. The solver fulfills an
// action by calling the matching requires* query, which returns true and
// simultaneously marks it fulfilled; an unfulfilled required action at the
// end of a phase is a fatal UserError.
type Action int

const (
	ActionWriteCheckpoint Action = iota
	ActionReadCheckpoint
	ActionInitializeData
)

func (a Action) String() string {
	switch a {
	case ActionWriteCheckpoint:
		return "WriteCheckpoint"
	case ActionReadCheckpoint:
		return "ReadCheckpoint"
	case ActionInitializeData:
		return "InitializeData"
	default:
		return "UnknownAction"
	}
}
