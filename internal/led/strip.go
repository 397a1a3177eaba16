package led

import (
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/devices/v3/screen1d"
	"periph.io/x/host/v3"
)

// WS2812 over SPI at 2.5MHz.
const DefaultSPIFreq = 2500 * physic.KiloHertz

type device interface {
	Write(p []byte) (int, error)
	Halt() error
	String() string
}

// Strip drives a periph device that accepts raw RGB, either a real strip or
// the terminal emulator.
type Strip struct {
	mu    sync.Mutex
	dev   device
	port  io.Closer
	count int
}

func newStrip(dev device, port io.Closer, count int) *Strip {
	return &Strip{dev: dev, port: port, count: count}
}

// NewConsole prints the strip to the terminal with ANSI colors.
func NewConsole(count int) *Strip {
	return newStrip(screen1d.New(&screen1d.Opts{X: count}), nil, count)
}

// NewSPI opens an SPI port ("" picks the first one) and drives count WS2812
// LEDs through nrzled.
func NewSPI(portName string, count int) (*Strip, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid LED count: %d", count)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	p, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", portName, err)
	}
	d, err := nrzled.NewSPI(p, &nrzled.Opts{NumPixels: count, Channels: 3, Freq: DefaultSPIFreq})
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	return newStrip(d, p, count), nil
}

func (s *Strip) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return "strip(closed)"
	}
	return s.dev.String()
}

func (s *Strip) Write(rgb []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return fmt.Errorf("strip closed")
	}
	if len(rgb) != s.count*3 {
		return fmt.Errorf("rgb length %d does not match count %d", len(rgb), s.count)
	}
	if _, err := s.dev.Write(rgb); err != nil {
		return fmt.Errorf("%s write: %w", s.dev, err)
	}
	return nil
}

// Close turns the LEDs off and releases the port.
func (s *Strip) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return nil
	}
	err := s.dev.Halt()
	s.dev = nil
	if s.port != nil {
		if cerr := s.port.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
