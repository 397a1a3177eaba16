package output

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind names the transport a failure came from.
type Kind int

const (
	KindHTTP Kind = iota
	KindUDP
)

func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindUDP:
		return "udp"
	default:
		return "unknown"
	}
}

// TransportError is a recoverable send failure. The dirty set is left intact
// so the same pixels go out on the next flush.
type TransportError struct {
	Kind    Kind
	Op      string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s transport: %s", e.Kind, e.Op)
	if e.Timeout {
		msg += " (timeout)"
	}
	return msg + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

func newTransportError(kind Kind, op string, err error) *TransportError {
	return &TransportError{Kind: kind, Op: op, Timeout: isTimeout(err), Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
