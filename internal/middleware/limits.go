package middleware

import "fmt"

// LimitsConfig bounds one turn per spec §4.4.
type LimitsConfig struct {
	MaxSteps int
	MaxTurns int
	// MaxCostUSD is the cumulative spend ceiling; zero disables the check
	// (the provider may not report pricing at all).
	MaxCostUSD float64
}

// Limits stops a turn once step/turn/cost ceilings are reached. It carries
// no state of its own beyond the config — the counters it checks live in
// ConversationContext.Stats, which the engine updates every step.
type Limits struct {
	cfg LimitsConfig
}

// NewLimits constructs a Limits driver.
func NewLimits(cfg LimitsConfig) *Limits { return &Limits{cfg: cfg} }

func (l *Limits) Reset() {}

func (l *Limits) Run(s ExecutionState) ExecutionState {
	ctx, ok := contextOf(s)
	if !ok {
		return s
	}

	if l.cfg.MaxSteps > 0 && ctx.Stats.Steps >= l.cfg.MaxSteps {
		return Stopped{Reason: StopMaxTurnRequests, Message: fmt.Sprintf("reached max_steps=%d", l.cfg.MaxSteps)}
	}
	if l.cfg.MaxTurns > 0 && ctx.Stats.Turns >= l.cfg.MaxTurns {
		return Stopped{Reason: StopMaxTurnRequests, Message: fmt.Sprintf("reached max_turns=%d", l.cfg.MaxTurns)}
	}
	if l.cfg.MaxCostUSD > 0 && ctx.Stats.CumulativeUSD >= l.cfg.MaxCostUSD {
		return Stopped{Reason: StopMaxCost, Message: fmt.Sprintf("reached max_cost_usd=%.4f", l.cfg.MaxCostUSD)}
	}
	return s
}

// contextOf extracts the ConversationContext carried by any non-terminal
// ExecutionState variant that has one, so drivers that only care about
// stats don't need an exhaustive type switch.
func contextOf(s ExecutionState) (ConversationContext, bool) {
	switch v := s.(type) {
	case BeforeTurn:
		return v.Context, true
	case BeforeLlmCall:
		return v.Context, true
	case CallLlm:
		return v.Context, true
	case AfterLlm:
		return v.Context, true
	case BeforeToolCall:
		return v.Context, true
	case ProcessingToolCalls:
		return v.Context, true
	case AfterTool:
		return v.Context, true
	case WaitingForEvent:
		return v.Context, true
	default:
		return ConversationContext{}, false
	}
}
