// Package framebuffer holds the logical pixel grid the scenes draw into and
// tracks which cells changed since the last frame went out.
//
// Cells are stored row-major in two parallel arrays keyed by y*width+x: the
// current colors and the dirty flags. A write that does not change the stored
// color is ignored, so an unchanged frame produces an empty dirty set.
package framebuffer

import (
	"fmt"
	"sync"

	"github.com/coreman2200/wledmatrix/internal/layout"
)

type Color struct{ R, G, B uint8 }

var Black = Color{}

type Pixel struct {
	X, Y  int
	Color Color
}

type Framebuffer struct {
	mu     sync.Mutex
	width  int
	height int

	pix   []Color
	dirty []bool
	order []int // dirty cells in the order they were first changed

	// gens[i] is the write generation of the last change to cell i; Commit
	// compares it against the snapshot to keep late writes dirty.
	gens []uint64
	gen  uint64
}

func New(width, height int) (*Framebuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid framebuffer size %dx%d", width, height)
	}
	n := width * height
	return &Framebuffer{
		width:  width,
		height: height,
		pix:    make([]Color, n),
		dirty:  make([]bool, n),
		gens:   make([]uint64, n),
	}, nil
}

func (f *Framebuffer) Width() int  { return f.width }
func (f *Framebuffer) Height() int { return f.height }

func (f *Framebuffer) offset(x, y int) (int, error) {
	if x < 0 || x >= f.width || y < 0 || y >= f.height {
		return 0, &layout.RangeError{X: x, Y: y, Width: f.width, Height: f.height}
	}
	return y*f.width + x, nil
}

// Set stores c at (x, y) and marks the cell dirty if the color changed.
func (f *Framebuffer) Set(x, y int, c Color) error {
	i, err := f.offset(x, y)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.set(i, c)
	f.mu.Unlock()
	return nil
}

func (f *Framebuffer) set(i int, c Color) {
	if f.pix[i] == c {
		return
	}
	f.pix[i] = c
	f.gen++
	f.gens[i] = f.gen
	if !f.dirty[i] {
		f.dirty[i] = true
		f.order = append(f.order, i)
	}
}

func (f *Framebuffer) Get(x, y int) (Color, error) {
	i, err := f.offset(x, y)
	if err != nil {
		return Black, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pix[i], nil
}

// Fill sets every cell to c.
func (f *Framebuffer) Fill(c Color) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.pix {
		f.set(i, c)
	}
}

func (f *Framebuffer) Clear() { f.Fill(Black) }

// Snapshot is a stable copy of the dirty set taken under the lock.
type Snapshot struct {
	Pixels []Pixel

	cells []int
	gens  []uint64
}

func (s Snapshot) Len() int { return len(s.Pixels) }

// Dirty returns the dirty cells with their current colors, in the order they
// were first changed.
func (f *Framebuffer) Dirty() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := Snapshot{
		Pixels: make([]Pixel, 0, len(f.order)),
		cells:  make([]int, 0, len(f.order)),
		gens:   make([]uint64, 0, len(f.order)),
	}
	for _, i := range f.order {
		s.Pixels = append(s.Pixels, Pixel{X: i % f.width, Y: i / f.width, Color: f.pix[i]})
		s.cells = append(s.cells, i)
		s.gens = append(s.gens, f.gens[i])
	}
	return s
}

func (f *Framebuffer) DirtyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

// ClearDirty empties the dirty set. Stored colors are untouched.
func (f *Framebuffer) ClearDirty() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, i := range f.order {
		f.dirty[i] = false
	}
	f.order = f.order[:0]
}

// Commit clears the cells captured by s, except those written again after s
// was taken; those stay dirty for the next frame.
func (f *Framebuffer) Commit(s Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, i := range s.cells {
		if f.gens[i] == s.gens[k] {
			f.dirty[i] = false
		}
	}
	kept := f.order[:0]
	for _, i := range f.order {
		if f.dirty[i] {
			kept = append(kept, i)
		}
	}
	f.order = kept
}

// All returns every cell in row-major order.
func (f *Framebuffer) All() []Pixel {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Pixel, len(f.pix))
	for i, c := range f.pix {
		out[i] = Pixel{X: i % f.width, Y: i / f.width, Color: c}
	}
	return out
}
