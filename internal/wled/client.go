// Package wled is a small client for the WLED JSON API.
package wled

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/coreman2200/wledmatrix/internal/framebuffer"
)

const (
	DefaultPort    = 80
	DefaultTimeout = 3 * time.Second
)

type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wled %s %s: unexpected status %d", e.Method, e.URL, e.Code)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New returns a client for the controller at host:port. One http.Client is
// reused so frames ride a keep-alive connection.
func New(host string, port int, timeout time.Duration) *Client {
	if port <= 0 {
		port = DefaultPort
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: "http://" + net.JoinHostPort(host, strconv.Itoa(port)),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type segment struct {
	ID     int        `json:"id"`
	FX     int        `json:"fx"`
	Freeze *bool      `json:"frz,omitempty"`
	Col    [][3]uint8 `json:"col,omitempty"`
	I      [][3]uint8 `json:"i,omitempty"`
}

type statePayload struct {
	On         bool      `json:"on"`
	Transition int       `json:"tt"`
	Bri        *int      `json:"bri,omitempty"`
	Seg        []segment `json:"seg,omitempty"`
}

type Info struct {
	Ver  string `json:"ver"`
	Name string `json:"name"`
	Leds struct {
		Count int `json:"count"`
	} `json:"leds"`
}

func triples(colors []framebuffer.Color) [][3]uint8 {
	out := make([][3]uint8, len(colors))
	for i, c := range colors {
		out[i] = [3]uint8{c.R, c.G, c.B}
	}
	return out
}

// EncodePixels renders the state body that replaces segment 0 with colors,
// LED 0 onward.
func EncodePixels(colors []framebuffer.Color) ([]byte, error) {
	return json.Marshal(statePayload{
		On:  true,
		Seg: []segment{{ID: 0, FX: 0, I: triples(colors)}},
	})
}

// SetPixels replaces every LED color of segment 0 in one request.
func (c *Client) SetPixels(ctx context.Context, colors []framebuffer.Color) error {
	body, err := EncodePixels(colors)
	if err != nil {
		return err
	}
	return c.post(ctx, body)
}

func (c *Client) SetBrightness(ctx context.Context, bri int) error {
	bri = clampByte(bri)
	return c.postState(ctx, statePayload{On: true, Bri: &bri})
}

// SetSolid paints segment 0 a single color and unfreezes it, undoing any
// per-pixel override left by SetPixels.
func (c *Client) SetSolid(ctx context.Context, col framebuffer.Color) error {
	frz := false
	return c.postState(ctx, statePayload{
		On:  true,
		Seg: []segment{{ID: 0, FX: 0, Freeze: &frz, Col: [][3]uint8{{col.R, col.G, col.B}}}},
	})
}

func (c *Client) Info(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.get(ctx, "/json/info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) State(ctx context.Context) (map[string]any, error) {
	st := map[string]any{}
	if err := c.get(ctx, "/json/state", &st); err != nil {
		return nil, err
	}
	return st, nil
}

func (c *Client) postState(ctx context.Context, p statePayload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.post(ctx, body)
}

func (c *Client) post(ctx context.Context, body []byte) error {
	url := c.BaseURL + "/json/state"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: http.MethodPost, URL: url, Code: resp.StatusCode}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	url := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: http.MethodGet, URL: url, Code: resp.StatusCode}
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func clampByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
