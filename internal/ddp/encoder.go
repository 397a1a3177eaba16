package ddp

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/coreman2200/wledmatrix/internal/framebuffer"
)

var ErrEncoding = errors.New("ddp: encoding failed")

// Pixel is a color addressed by its physical LED index.
type Pixel struct {
	Index int
	Color framebuffer.Color
}

// Encoder turns frames into packets. The sequence counter is its only state
// and advances once per frame, not per chunk.
type Encoder struct {
	destination byte
	maxPayload  int
	seq         atomic.Uint32
}

func NewEncoder(destination byte, maxPayload int) (*Encoder, error) {
	if maxPayload <= 0 || maxPayload%3 != 0 || maxPayload > MaxLength {
		return nil, fmt.Errorf("%w: max payload %d must be a positive multiple of 3 up to %d", ErrEncoding, maxPayload, MaxLength)
	}
	return &Encoder{destination: destination, maxPayload: maxPayload}, nil
}

func (e *Encoder) MaxPayload() int { return e.maxPayload }

// Sequence reports the sequence number of the last encoded frame (0 before the first).
func (e *Encoder) Sequence() byte { return byte(e.seq.Load()) }

func (e *Encoder) nextSequence() byte {
	for {
		old := e.seq.Load()
		next := old%15 + 1
		if e.seq.CompareAndSwap(old, next) {
			return byte(next)
		}
	}
}

// Encode builds the packets for one frame. Pixels are written in the order
// given; runs of consecutive indices share a packet and every packet carries
// the absolute byte offset of its first pixel. Runs longer than the max
// payload are chunked. Only the last packet has the push flag. An empty frame
// yields no packets and does not consume a sequence number.
func (e *Encoder) Encode(pixels []Pixel) ([]Packet, error) {
	if len(pixels) == 0 {
		return nil, nil
	}
	for _, p := range pixels {
		if p.Index < 0 || int64(p.Index)*3+3 > math.MaxUint32 {
			return nil, fmt.Errorf("%w: pixel index %d has no valid offset", ErrEncoding, p.Index)
		}
	}

	buf := make([]byte, 0, len(pixels)*3)
	for _, p := range pixels {
		buf = append(buf, p.Color.R, p.Color.G, p.Color.B)
	}

	seq := e.nextSequence()
	var out []Packet
	emit := func(startIndex, from, to int) {
		for pos := from; pos < to; pos += e.maxPayload {
			end := min(pos+e.maxPayload, to)
			out = append(out, Packet{
				Flags:       FlagVersion1,
				Sequence:    seq,
				Type:        TypeRGB8,
				Destination: e.destination,
				Offset:      uint32(startIndex*3 + (pos - from)),
				Data:        buf[pos:end],
			})
		}
	}

	runStart := 0
	for i := 1; i <= len(pixels); i++ {
		if i < len(pixels) && pixels[i].Index == pixels[i-1].Index+1 {
			continue
		}
		emit(pixels[runStart].Index, runStart*3, i*3)
		runStart = i
	}

	out[len(out)-1].Flags |= FlagPush
	return out, nil
}

// Frame is a convenience for full frames: colors are addressed from index 0.
func (e *Encoder) Frame(colors []framebuffer.Color) ([]Packet, error) {
	px := make([]Pixel, len(colors))
	for i, c := range colors {
		px[i] = Pixel{Index: i, Color: c}
	}
	return e.Encode(px)
}
