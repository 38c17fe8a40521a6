package middleware

// Driver transforms one ExecutionState into the next. A Driver producing a
// terminal state (Complete, Stopped, Cancelled) causes the owning Pipeline
// to stop running subsequent drivers for that state.
type Driver interface {
	Run(s ExecutionState) ExecutionState
	// Reset clears any per-turn state the driver accumulated (recent call
	// fingerprints, step counters owned outside ConversationContext.Stats,
	// etc). Called once at the start of each new turn.
	Reset()
}

// DriverFunc adapts a plain function to Driver for stateless drivers that
// need no Reset behavior.
type DriverFunc func(ExecutionState) ExecutionState

func (f DriverFunc) Run(s ExecutionState) ExecutionState { return f(s) }
func (DriverFunc) Reset()                                {}

// Pipeline runs a list of drivers in order, short-circuiting on the first
// terminal state any driver produces.
type Pipeline struct {
	drivers []Driver
}

// NewPipeline builds a Pipeline from drivers, run in the given order.
func NewPipeline(drivers ...Driver) *Pipeline {
	return &Pipeline{drivers: drivers}
}

// Run feeds s through every driver in order, stopping early on a terminal
// result, and returns the final state.
func (p *Pipeline) Run(s ExecutionState) ExecutionState {
	for _, d := range p.drivers {
		s = d.Run(s)
		if IsTerminal(s) {
			return s
		}
	}
	return s
}

// Reset calls Reset on every driver, in order, at the start of a new turn.
func (p *Pipeline) Reset() {
	for _, d := range p.drivers {
		d.Reset()
	}
}
