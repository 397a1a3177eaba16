package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/wledmatrix/internal/framebuffer"
	"github.com/coreman2200/wledmatrix/internal/output"
	"github.com/coreman2200/wledmatrix/internal/pattern"
	"github.com/coreman2200/wledmatrix/internal/preview"
)

type fakeFlusher struct {
	mu    sync.Mutex
	calls int
	dirty []int
	fb    *framebuffer.Framebuffer
	err   error
}

func (f *fakeFlusher) Flush(ctx context.Context) (output.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.dirty = append(f.dirty, f.fb.DirtyCount())
	if f.err != nil {
		return output.Stats{Strategy: output.StrategyDDPSparse}, f.err
	}
	f.fb.ClearDirty()
	return output.Stats{Strategy: output.StrategyDDPSparse}, nil
}

func (f *fakeFlusher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newConductor(t *testing.T, kind pattern.Kind) (*Conductor, *fakeFlusher) {
	t.Helper()
	fb, err := framebuffer.New(4, 2)
	require.NoError(t, err)
	fl := &fakeFlusher{fb: fb}
	return &Conductor{Display: fl, Pattern: pattern.NewRunner(pattern.Plan{Kind: kind}), FB: fb}, fl
}

func TestTickStepsThenFlushes(t *testing.T) {
	c, fl := newConductor(t, pattern.IndexSweep)
	for i := 0; i < 8; i++ {
		c.Tick(context.Background())
	}
	assert.Equal(t, 8, fl.calls)
	for _, n := range fl.dirty {
		assert.Equal(t, 1, n)
	}

	// sweep is done: the runner is dropped and flushes keep going
	c.Tick(context.Background())
	assert.Nil(t, c.Pattern)
	assert.Equal(t, 9, fl.calls)
	assert.Equal(t, 0, fl.dirty[8])
}

func TestFailedFlushKeepsDirtyForNextTick(t *testing.T) {
	c, fl := newConductor(t, pattern.IndexSweep)
	fl.err = &output.TransportError{Kind: output.KindUDP, Op: "send", Err: errors.New("no route")}

	c.Tick(context.Background())
	c.Tick(context.Background())
	assert.True(t, c.failing)
	assert.Equal(t, []int{1, 2}, fl.dirty)

	fl.err = nil
	c.Tick(context.Background())
	assert.False(t, c.failing)
	assert.Equal(t, []int{1, 2, 3}, fl.dirty)
	assert.Zero(t, c.FB.DirtyCount())
}

func TestRunStopsOnCancel(t *testing.T) {
	c, fl := newConductor(t, pattern.Rainbow)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, 200) }()

	require.Eventually(t, func() bool { return fl.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestFlushDiagnostic(t *testing.T) {
	d := flushDiagnostic(&output.TransportError{Kind: output.KindHTTP, Op: "POST /json/state", Timeout: true, Err: context.DeadlineExceeded})
	assert.Equal(t, preview.CodeFlushHTTP, d.Code)
	assert.NotEmpty(t, d.Causes)
	assert.Equal(t, true, d.Evidence["timeout"])

	d = flushDiagnostic(errors.New("boom"))
	assert.Equal(t, preview.CodeFlushFailed, d.Code)
}
