package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/wledmatrix/internal/framebuffer"
	"github.com/coreman2200/wledmatrix/internal/output"
	"github.com/coreman2200/wledmatrix/internal/pattern"
	"github.com/coreman2200/wledmatrix/internal/preview"
)

// Flusher is the part of *output.Display the conductor drives.
type Flusher interface {
	Flush(ctx context.Context) (output.Stats, error)
}

type Conductor struct {
	Display Flusher
	Pattern *pattern.Runner
	FB      *framebuffer.Framebuffer
	// Hub, when set, receives diagnostics for failed flushes and finished
	// patterns.
	Hub *preview.Hub

	failing bool
}

func NewConductor(d *output.Display, r *pattern.Runner, hub *preview.Hub) *Conductor {
	return &Conductor{Display: d, Pattern: r, FB: d.Framebuffer(), Hub: hub}
}

// Run ticks until ctx is done: step the pattern, then flush. A failed flush
// is logged and the next tick tries again with the dirty set intact.
func (c *Conductor) Run(ctx context.Context, fps int) error {
	if fps <= 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick runs one step and one flush.
func (c *Conductor) Tick(ctx context.Context) {
	if c.Pattern != nil && !c.Pattern.Step(c.FB) {
		log.Info().Str("pattern", string(c.Pattern.Kind())).Msg("pattern complete")
		c.diagnose(preview.Diagnostic{Severity: preview.Info, Code: preview.CodePatternDone, Summary: "Pattern complete", Detail: string(c.Pattern.Kind())})
		c.Pattern = nil
	}

	st, err := c.Display.Flush(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Str("strategy", st.Strategy).Msg("flush failed")
		if !c.failing {
			c.diagnose(flushDiagnostic(err))
		}
		c.failing = true
		return
	}
	if c.failing {
		log.Info().Str("strategy", st.Strategy).Msg("flush recovered")
		c.diagnose(preview.Diagnostic{Severity: preview.Info, Code: preview.CodeFlushOK, Summary: "Controller reachable again"})
		c.failing = false
	}
}

func (c *Conductor) diagnose(d preview.Diagnostic) {
	if c.Hub != nil {
		c.Hub.Diagnose(d)
	}
}

func flushDiagnostic(err error) preview.Diagnostic {
	d := preview.Diagnostic{
		Severity: preview.Err,
		Code:     preview.CodeFlushFailed,
		Summary:  "Frame did not reach the controller",
		Detail:   err.Error(),
	}
	var te *output.TransportError
	if errors.As(err, &te) {
		d.Code = preview.FlushCode(te.Kind)
		d.Evidence = map[string]any{"op": te.Op, "timeout": te.Timeout}
		if te.Timeout {
			d.Causes = []string{"controller offline", "wrong wled.ip"}
		}
		if te.Kind == output.KindUDP {
			d.Fixes = []string{"check that DDP is enabled and output.ddp_port matches"}
		}
	}
	return d
}
