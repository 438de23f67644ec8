package lifecycle

// State is the state of the engine slot. It can be one of the
// following:
//
//   - NotReady
//   - Ready
//   - Failed
type State int

const (
	// NotReady represents the slot before the engine
	// has been constructed.
	NotReady State = iota
	// Ready represents the slot once the engine has been
	// constructed and published.
	Ready
	// Failed represents the slot when the readiness step
	// or the construction of the engine failed.
	Failed
)

func (s State) String() string {
	switch s {
	case NotReady:
		return "NotReady"
	case Ready:
		return "Ready"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

func (s State) IsReady() bool {
	return s == Ready
}

func (s State) IsFailed() bool {
	return s == Failed
}
