package output

import (
	"context"
	"fmt"

	"github.com/coreman2200/wledmatrix/internal/ddp"
	"github.com/coreman2200/wledmatrix/internal/framebuffer"
)

// PixelSetter replaces every LED color on the controller in one call.
// *wled.Client satisfies it.
type PixelSetter interface {
	SetPixels(ctx context.Context, colors []framebuffer.Color) error
}

// PacketSender puts datagrams on the wire. *ddp.Client satisfies it.
type PacketSender interface {
	Send(ctx context.Context, packets []ddp.Packet) error
}

const (
	StrategyJSONFull  = "json-full"
	StrategyDDPFull   = "ddp-full"
	StrategyDDPSparse = "ddp-sparse"
)

// frame is what a flush hands to a strategy: the whole grid in physical order
// and, for sparse sends, the changed pixels sorted by physical index.
type frame struct {
	physical []framebuffer.Color
	changed  []ddp.Pixel
}

// Strategy is one of JSONFull, DDPFull or DDPSparse.
type Strategy interface {
	Name() string
	send(ctx context.Context, f *frame) (Stats, error)
}

type JSONFull struct{ Client PixelSetter }

func (JSONFull) Name() string { return StrategyJSONFull }

func (s JSONFull) send(ctx context.Context, f *frame) (Stats, error) {
	st := Stats{Strategy: StrategyJSONFull, Pixels: len(f.physical), Requests: 1}
	if err := s.Client.SetPixels(ctx, f.physical); err != nil {
		return st, newTransportError(KindHTTP, "set pixels", err)
	}
	return st, nil
}

type DDPFull struct {
	Encoder *ddp.Encoder
	Client  PacketSender
}

func (DDPFull) Name() string { return StrategyDDPFull }

func (s DDPFull) send(ctx context.Context, f *frame) (Stats, error) {
	pkts, err := s.Encoder.Frame(f.physical)
	if err != nil {
		return Stats{Strategy: StrategyDDPFull}, fmt.Errorf("full frame: %w", err)
	}
	return sendPackets(ctx, s.Client, StrategyDDPFull, len(f.physical), pkts)
}

type DDPSparse struct {
	Encoder *ddp.Encoder
	Client  PacketSender
}

func (DDPSparse) Name() string { return StrategyDDPSparse }

func (s DDPSparse) send(ctx context.Context, f *frame) (Stats, error) {
	pkts, err := s.Encoder.Encode(f.changed)
	if err != nil {
		return Stats{Strategy: StrategyDDPSparse}, fmt.Errorf("sparse frame: %w", err)
	}
	return sendPackets(ctx, s.Client, StrategyDDPSparse, len(f.changed), pkts)
}

func sendPackets(ctx context.Context, c PacketSender, name string, pixels int, pkts []ddp.Packet) (Stats, error) {
	st := Stats{Strategy: name, Pixels: pixels, Packets: len(pkts), Requests: len(pkts)}
	for _, p := range pkts {
		st.Payload += len(p.Data)
		st.Bytes += p.Len()
	}
	if len(pkts) == 0 {
		return st, nil
	}
	if err := c.Send(ctx, pkts); err != nil {
		return st, newTransportError(KindUDP, "send datagrams", err)
	}
	return st, nil
}
