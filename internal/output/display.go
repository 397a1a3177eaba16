// Package output pushes the framebuffer to the controller.
//
// A Display is the only component that knows the physical wiring and the
// only one that decides when and how a frame is sent. Every Flush picks one
// strategy:
//
//   - json mode always sends the whole grid over HTTP (JSONFull);
//   - ddp mode sends only the changed pixels (DDPSparse) unless a full frame
//     is pending (first flush, ForceFull, periodic resync) or more pixels
//     changed than the sparse threshold, in which case it sends DDPFull.
//
// In ddp mode nothing is sent when nothing changed. A failed send leaves the
// dirty set untouched and returns the error; the caller retries by flushing
// again.
package output

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/wledmatrix/internal/ddp"
	"github.com/coreman2200/wledmatrix/internal/framebuffer"
	"github.com/coreman2200/wledmatrix/internal/layout"
)

type Mode string

const (
	ModeJSON Mode = "json"
	ModeDDP  Mode = "ddp"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeJSON, ModeDDP:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("output mode must be %q or %q, got %q", ModeJSON, ModeDDP, s)
	}
}

type State int

const (
	StateIdle State = iota
	StateFlushing
)

func (s State) String() string {
	if s == StateFlushing {
		return "flushing"
	}
	return "idle"
}

// Mirror receives a copy of every frame that reached the controller, as
// packed RGB in physical order. Local LED strips and the preview use it.
type Mirror interface {
	Write(rgb []byte) error
}

// Stats describes one flush.
type Stats struct {
	Strategy string
	Skipped  bool
	Pixels   int
	Packets  int
	Requests int
	Payload  int // color bytes
	Bytes    int // payload plus DDP headers
	Duration time.Duration
}

type Options struct {
	Mode Mode
	// SparseThreshold is the largest dirty count still sent sparse. Zero
	// means the whole grid, so ddp mode never falls back to a full frame on
	// its own.
	SparseThreshold int
	// ResyncEvery forces a full frame after this many flushes that sent
	// something. Zero disables periodic resync.
	ResyncEvery int
}

// Transports are the collaborators a Display sends through. JSON mode needs
// HTTP; ddp mode needs UDP and Encoder.
type Transports struct {
	HTTP    PixelSetter
	UDP     PacketSender
	Encoder *ddp.Encoder
}

type Display struct {
	mu sync.Mutex

	fb    *framebuffer.Framebuffer
	table []int
	opts  Options

	jsonFull  Strategy
	ddpFull   Strategy
	ddpSparse Strategy

	state     atomic.Int32
	needFull  bool
	sinceFull int

	mirrors []Mirror
	shown   []framebuffer.Color // physical frame as the controller last received it
	last    Stats
}

// New wires a display. The first flush is always a full frame.
func New(fb *framebuffer.Framebuffer, m layout.Mapper, opts Options, tr Transports) (*Display, error) {
	w, h := m.Size()
	if fb.Width() != w || fb.Height() != h {
		return nil, fmt.Errorf("framebuffer size %dx%d does not match layout %dx%d", fb.Width(), fb.Height(), w, h)
	}
	table, err := layout.Table(m)
	if err != nil {
		return nil, err
	}
	if opts.SparseThreshold <= 0 {
		opts.SparseThreshold = w * h
	}
	if opts.ResyncEvery < 0 {
		return nil, fmt.Errorf("resync interval must not be negative")
	}

	d := &Display{
		fb:       fb,
		table:    table,
		opts:     opts,
		needFull: true,
		shown:    make([]framebuffer.Color, w*h),
	}
	switch opts.Mode {
	case ModeJSON:
		if tr.HTTP == nil {
			return nil, fmt.Errorf("json mode needs an HTTP transport")
		}
		d.jsonFull = JSONFull{Client: tr.HTTP}
	case ModeDDP:
		if tr.UDP == nil || tr.Encoder == nil {
			return nil, fmt.Errorf("ddp mode needs a UDP transport and an encoder")
		}
		d.ddpFull = DDPFull{Encoder: tr.Encoder, Client: tr.UDP}
		d.ddpSparse = DDPSparse{Encoder: tr.Encoder, Client: tr.UDP}
	default:
		return nil, fmt.Errorf("unknown output mode %q", opts.Mode)
	}
	return d, nil
}

func (d *Display) Mode() Mode { return d.opts.Mode }

func (d *Display) Framebuffer() *framebuffer.Framebuffer { return d.fb }

func (d *Display) AddMirror(m Mirror) {
	d.mu.Lock()
	d.mirrors = append(d.mirrors, m)
	d.mu.Unlock()
}

func (d *Display) State() State { return State(d.state.Load()) }

// Last returns the stats of the most recent flush.
func (d *Display) Last() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// ForceFull makes the next flush send every pixel.
func (d *Display) ForceFull() {
	d.mu.Lock()
	d.needFull = true
	d.mu.Unlock()
}

// Clear fills the grid with c and pushes it as a full frame.
func (d *Display) Clear(ctx context.Context, c framebuffer.Color) (Stats, error) {
	d.fb.Fill(c)
	d.ForceFull()
	return d.Flush(ctx)
}

// Flush sends whatever changed since the last successful flush; json mode
// always sends the whole grid. Send failures are *TransportError. Encoder
// failures are not: they wrap ddp.ErrEncoding (match with errors.Is).
func (d *Display) Flush(ctx context.Context) (Stats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	d.state.Store(int32(StateFlushing))
	defer d.state.Store(int32(StateIdle))

	snap := d.fb.Dirty()
	full := d.needFull || (d.opts.ResyncEvery > 0 && d.sinceFull >= d.opts.ResyncEvery)
	if d.opts.Mode == ModeDDP && snap.Len() == 0 && !full {
		d.last = Stats{Skipped: true}
		return d.last, nil
	}

	var strat Strategy
	switch {
	case d.opts.Mode == ModeJSON:
		strat, full = d.jsonFull, true
	case full || snap.Len() > d.opts.SparseThreshold:
		strat, full = d.ddpFull, true
	default:
		strat = d.ddpSparse
	}

	f := &frame{}
	if full {
		f.physical = d.physicalFrame()
	}
	if !full {
		f.changed = d.changed(snap)
	}

	st, err := strat.send(ctx, f)
	st.Duration = time.Since(start)
	d.last = st
	if err != nil {
		return st, err
	}

	d.fb.Commit(snap)
	if full {
		copy(d.shown, f.physical)
		d.needFull = false
		d.sinceFull = 0
	} else {
		for _, p := range f.changed {
			d.shown[p.Index] = p.Color
		}
		d.sinceFull++
	}
	log.Debug().
		Str("strategy", strat.Name()).
		Int("pixels", st.Pixels).
		Int("packets", st.Packets).
		Int("bytes", st.Bytes).
		Msg("flush")

	if len(d.mirrors) > 0 {
		d.mirror(d.shown)
	}
	return st, nil
}

func (d *Display) physicalFrame() []framebuffer.Color {
	out := make([]framebuffer.Color, len(d.table))
	for i, p := range d.fb.All() {
		out[d.table[i]] = p.Color
	}
	return out
}

func (d *Display) changed(snap framebuffer.Snapshot) []ddp.Pixel {
	w := d.fb.Width()
	px := make([]ddp.Pixel, 0, snap.Len())
	for _, p := range snap.Pixels {
		px = append(px, ddp.Pixel{Index: d.table[p.Y*w+p.X], Color: p.Color})
	}
	sort.Slice(px, func(i, j int) bool { return px[i].Index < px[j].Index })
	return px
}

func (d *Display) mirror(phys []framebuffer.Color) {
	rgb := make([]byte, 0, len(phys)*3)
	for _, c := range phys {
		rgb = append(rgb, c.R, c.G, c.B)
	}
	for _, m := range d.mirrors {
		if err := m.Write(rgb); err != nil {
			log.Warn().Err(err).Msg("mirror write failed")
		}
	}
}
