package led

// Driver abstracts a local LED output sink that mirrors what the controller
// shows.
type Driver interface {
	// Write pushes an RGB frame in physical order. len(rgb) must be 3*N.
	Write(rgb []byte) error
	// Close releases resources.
	Close() error
}

var (
	_ Driver = (*Strip)(nil)
	_ Driver = (*Sim)(nil)
)
