package ddp

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsDatagrams(t *testing.T) {
	ln, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.LocalAddr().(*net.UDPAddr).Port
	c, err := Dial("127.0.0.1", port, 200*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "127.0.0.1:"+strconv.Itoa(port), c.Addr())

	e := newEncoder(t, 300)
	assert.Equal(t, 300, e.MaxPayload())
	pkts, err := e.Encode(frame(256))
	require.NoError(t, err)
	require.NoError(t, c.Send(context.Background(), pkts))

	buf := make([]byte, 2048)
	require.NoError(t, ln.SetReadDeadline(time.Now().Add(2*time.Second)))
	for i := range pkts {
		n, _, err := ln.ReadFrom(buf)
		require.NoError(t, err)
		got, err := Parse(buf[:n])
		require.NoError(t, err)
		assert.Equal(t, pkts[i].Offset, got.Offset)
		assert.Equal(t, pkts[i].Data, got.Data)
		assert.Equal(t, i == len(pkts)-1, got.Push())
	}
}

func TestClientSendAfterClose(t *testing.T) {
	c, err := Dial("127.0.0.1", DefaultPort, 0)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	err = c.Send(context.Background(), []Packet{{Flags: FlagVersion1 | FlagPush}})
	assert.Error(t, err)
}

func TestClientHonorsCancelledContext(t *testing.T) {
	c, err := Dial("127.0.0.1", DefaultPort, 0)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Send(ctx, []Packet{{Flags: FlagVersion1 | FlagPush}})
	assert.ErrorIs(t, err, context.Canceled)
}
