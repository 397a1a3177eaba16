package ddp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

const DefaultTimeout = time.Second

// Client sends DDP datagrams to one controller. Delivery is fire-and-forget.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	addr    string
	timeout time.Duration
}

func Dial(host string, port int, timeout time.Duration) (*Client, error) {
	if port <= 0 {
		port = DefaultPort
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("ddp dial %s: %w", addr, err)
	}
	return &Client{conn: conn, addr: addr, timeout: timeout}, nil
}

func (c *Client) Addr() string { return c.addr }

// Send writes every packet as one datagram, stopping at the first error. Each
// write is bounded by the client timeout or the context deadline, whichever
// comes first.
func (c *Client) Send(ctx context.Context, packets []Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("ddp send %s: client closed", c.addr)
	}
	for i, p := range packets {
		if err := ctx.Err(); err != nil {
			return err
		}
		deadline := time.Now().Add(c.timeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := c.conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("ddp send %s: %w", c.addr, err)
		}
		if _, err := c.conn.Write(p.Bytes()); err != nil {
			return fmt.Errorf("ddp send %s packet %d/%d: %w", c.addr, i+1, len(packets), err)
		}
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
