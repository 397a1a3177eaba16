package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/wledmatrix/internal/framebuffer"
)

func newFB(t *testing.T) *framebuffer.Framebuffer {
	t.Helper()
	fb, err := framebuffer.New(4, 2)
	require.NoError(t, err)
	return fb
}

func TestIndexSweepFillsInRasterOrder(t *testing.T) {
	fb := newFB(t)
	r := NewRunner(Plan{Kind: IndexSweep})
	steps := 0
	for r.Step(fb) {
		steps++
		d := fb.Dirty()
		require.Equal(t, 1, d.Len())
		assert.Equal(t, (steps-1)%4, d.Pixels[0].X)
		assert.Equal(t, (steps-1)/4, d.Pixels[0].Y)
		fb.ClearDirty()
	}
	assert.Equal(t, 8, steps)
	for _, p := range fb.All() {
		assert.Equal(t, Orange, p.Color)
	}
}

func TestRowSweep(t *testing.T) {
	fb := newFB(t)
	r := NewRunner(Plan{Kind: RowSweep})
	require.True(t, r.Step(fb))
	c, _ := fb.Get(3, 0)
	assert.Equal(t, Cyan, c)
	fb.ClearDirty()

	require.True(t, r.Step(fb))
	assert.Equal(t, 8, fb.DirtyCount())
	c, _ = fb.Get(0, 0)
	assert.Equal(t, framebuffer.Black, c)
	assert.False(t, r.Step(fb))
}

func TestRGBChannelsCycle(t *testing.T) {
	fb := newFB(t)
	r := NewRunner(Plan{Kind: RGBTest})
	want := []framebuffer.Color{{R: 255}, {G: 255}, {B: 255}, {R: 255}}
	for _, w := range want {
		require.True(t, r.Step(fb))
		c, _ := fb.Get(2, 1)
		assert.Equal(t, w, c)
	}
}

func TestCheckerboardAlternates(t *testing.T) {
	fb := newFB(t)
	r := NewRunner(Plan{Kind: Checkerboard})
	require.True(t, r.Step(fb))
	a, _ := fb.Get(0, 0)
	b, _ := fb.Get(1, 0)
	assert.Equal(t, framebuffer.Color{G: 255}, a)
	assert.Equal(t, framebuffer.Black, b)
	require.True(t, r.Step(fb))
	a, _ = fb.Get(0, 0)
	assert.Equal(t, framebuffer.Color{B: 255}, a)
}

func TestRainbowRespectsBrightness(t *testing.T) {
	fb := newFB(t)
	r := NewRunner(Plan{Kind: Rainbow, Brightness: 0.5})
	require.True(t, r.Step(fb))
	for _, p := range fb.All() {
		assert.LessOrEqual(t, max(p.Color.R, p.Color.G, p.Color.B), uint8(128))
	}
	c, _ := fb.Get(0, 0)
	assert.Equal(t, framebuffer.Color{R: 128}, c)
}

func TestUnknownKind(t *testing.T) {
	assert.False(t, NewRunner(Plan{}).Step(newFB(t)))
	_, err := ParseKind("snake")
	assert.Error(t, err)
	k, err := ParseKind("rainbow")
	require.NoError(t, err)
	assert.Equal(t, Rainbow, k)
}
