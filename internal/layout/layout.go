package layout

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is matched by every RangeError.
var ErrOutOfRange = errors.New("coordinate out of range")

type RangeError struct {
	X, Y          int
	Width, Height int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("out of bounds: x=%d, y=%d, width=%d, height=%d", e.X, e.Y, e.Width, e.Height)
}

func (e *RangeError) Is(target error) bool { return target == ErrOutOfRange }

// Mapper maps a logical (x, y) cell to its physical LED index (0..w*h-1).
type Mapper interface {
	Index(x, y int) (int, error)
	Size() (w, h int)
}

type Dim struct{ X, Y int }

func (d Dim) Count() int { return d.X * d.Y }

func (d Dim) check(x, y int) error {
	if x < 0 || x >= d.X || y < 0 || y >= d.Y {
		return &RangeError{X: x, Y: y, Width: d.X, Height: d.Y}
	}
	return nil
}

// Linear walks every row left to right.
type Linear struct{ Dim Dim }

func (l Linear) Size() (int, int) { return l.Dim.X, l.Dim.Y }

func (l Linear) Index(x, y int) (int, error) {
	if err := l.Dim.check(x, y); err != nil {
		return 0, err
	}
	return y*l.Dim.X + x, nil
}

// Serpentine reverses every odd row, the usual zig-zag wiring of matrix panels.
type Serpentine struct{ Dim Dim }

func (s Serpentine) Size() (int, int) { return s.Dim.X, s.Dim.Y }

func (s Serpentine) Index(x, y int) (int, error) {
	if err := s.Dim.check(x, y); err != nil {
		return 0, err
	}
	xx := x
	if y%2 == 1 {
		xx = s.Dim.X - 1 - x
	}
	return y*s.Dim.X + xx, nil
}

const (
	KindLinear     = "linear"
	KindSerpentine = "serpentine"
)

// New returns the mapper registered under kind for a w x h grid.
func New(kind string, w, h int) (Mapper, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", w, h)
	}
	d := Dim{X: w, Y: h}
	switch kind {
	case KindLinear:
		return Linear{Dim: d}, nil
	case KindSerpentine, "":
		return Serpentine{Dim: d}, nil
	default:
		return nil, fmt.Errorf("unknown layout %q", kind)
	}
}

// Table precomputes logical (y*w+x) -> physical index for every cell.
func Table(m Mapper) ([]int, error) {
	w, h := m.Size()
	out := make([]int, w*h)
	seen := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx, err := m.Index(x, y)
			if err != nil {
				return nil, err
			}
			if idx < 0 || idx >= len(out) || seen[idx] {
				return nil, fmt.Errorf("layout maps (%d,%d) to invalid index %d", x, y, idx)
			}
			seen[idx] = true
			out[y*w+x] = idx
		}
	}
	return out, nil
}
