package middleware

import (
	"github.com/agentrt/core/internal/acp"
	"github.com/agentrt/core/internal/eventbus"
)

// ContextConfig bounds the context-window behavior described in spec §4.4.
type ContextConfig struct {
	Limit         int
	WarnPercent   float64
	AutoCompact   bool
	CompactPercent float64
}

// Context warns as the context window fills and flags that a compaction
// pass is due once AutoCompact is set and usage crosses CompactPercent.
// It never performs compaction itself — reading full history, calling the
// summarization subsystem, and inserting the Compaction part are the
// engine's job (spec §4.8); this driver only decides *when*.
type Context struct {
	cfg  ContextConfig
	bus  *eventbus.Bus
	warned bool
	needsCompaction bool
}

// NewContext constructs a Context driver. bus may be nil to suppress the
// warning event (tests, or pipelines run without a bus wired in).
func NewContext(cfg ContextConfig, bus *eventbus.Bus) *Context {
	return &Context{cfg: cfg, bus: bus}
}

func (c *Context) Reset() {
	c.warned = false
	c.needsCompaction = false
}

// NeedsCompaction reports, and clears, whether the last Run crossed the
// compaction threshold. The engine polls this after running the pipeline
// on BeforeLlmCall.
func (c *Context) NeedsCompaction() bool {
	v := c.needsCompaction
	c.needsCompaction = false
	return v
}

func (c *Context) Run(s ExecutionState) ExecutionState {
	if c.cfg.Limit <= 0 {
		return s
	}
	ctx, ok := contextOf(s)
	if !ok {
		return s
	}

	usage := float64(ctx.Stats.ContextTokens) / float64(c.cfg.Limit)

	if !c.warned && c.cfg.WarnPercent > 0 && usage >= c.cfg.WarnPercent {
		c.warned = true
		if c.bus != nil {
			c.bus.Publish(acp.Event{
				SessionID: ctx.SessionID,
				Origin:    acp.OriginLocal,
				Kind:      acp.EventExt,
				Payload: acp.ErrorPayload{
					Message: "context usage crossed warn threshold",
				},
			})
		}
	}

	if c.cfg.AutoCompact && c.cfg.CompactPercent > 0 && usage >= c.cfg.CompactPercent {
		c.needsCompaction = true
	}

	return s
}
