package pattern

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/coreman2200/wledmatrix/internal/framebuffer"
)

type Kind string

const (
	None         Kind = ""
	IndexSweep   Kind = "index_sweep"
	RowSweep     Kind = "row_sweep"
	RGBTest      Kind = "rgb_channels"
	Checkerboard Kind = "checkerboard"
	Rainbow      Kind = "rainbow"
)

var Kinds = []Kind{IndexSweep, RowSweep, RGBTest, Checkerboard, Rainbow}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return None, fmt.Errorf("unknown pattern %q", s)
}

var (
	Orange = framebuffer.Color{R: 255, G: 165}
	Cyan   = framebuffer.Color{G: 255, B: 255}
)

type Plan struct {
	Kind Kind
	// Brightness scales the rainbow value channel, 0..1.
	Brightness float64
}

type Runner struct {
	plan Plan
	step int
}

func NewRunner(plan Plan) *Runner {
	if plan.Brightness <= 0 || plan.Brightness > 1 {
		plan.Brightness = 1
	}
	return &Runner{plan: plan}
}

func (r *Runner) Kind() Kind { return r.plan.Kind }

// Step draws the next tick into fb; returns false when the pattern is done.
// Only cells whose color changes are touched, so the dirty set stays small
// for the sweeps.
func (r *Runner) Step(fb *framebuffer.Framebuffer) bool {
	w, h := fb.Width(), fb.Height()
	n := w * h

	switch r.plan.Kind {
	case IndexSweep:
		// logical raster order, filling as it goes
		if r.step >= n {
			return false
		}
		if r.step == 0 {
			fb.Clear()
		}
		_ = fb.Set(r.step%w, r.step/w, Orange)
	case RowSweep:
		if r.step >= h {
			return false
		}
		for y := 0; y < h; y++ {
			c := framebuffer.Black
			if y == r.step {
				c = Cyan
			}
			for x := 0; x < w; x++ {
				_ = fb.Set(x, y, c)
			}
		}
	case RGBTest:
		var c framebuffer.Color
		switch r.step % 3 {
		case 0:
			c.R = 255
		case 1:
			c.G = 255
		case 2:
			c.B = 255
		}
		fb.Fill(c)
	case Checkerboard:
		a, b := framebuffer.Color{G: 255}, framebuffer.Black
		if r.step%2 == 1 {
			a, b = framebuffer.Color{B: 255}, framebuffer.Color{R: 255, G: 128}
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := a
				if (x+y)%2 == 1 {
					c = b
				}
				_ = fb.Set(x, y, c)
			}
		}
	case Rainbow:
		phase := float64(r.step) * 0.01
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				u := float64(x) / float64(max(1, w-1))
				v := float64(y) / float64(max(1, h-1))
				hue := math.Mod(u+v*0.5+phase, 1.0) * 360
				rr, gg, bb := colorful.Hsv(hue, 1, r.plan.Brightness).RGB255()
				_ = fb.Set(x, y, framebuffer.Color{R: rr, G: gg, B: bb})
			}
		}
	default:
		return false
	}
	r.step++
	return true
}
