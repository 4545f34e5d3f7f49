package core

import (
	"context"
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"github.com/encodeous/dvnet/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestUdpTransport_SendRecv(t *testing.T) {
	defer goleak.VerifyNone(t)

	log := slog.New(slog.DiscardHandler)
	bind := netip.MustParseAddrPort("127.0.0.1:0")
	got1 := make(chan []byte, 1)
	got2 := make(chan []byte, 1)

	t1, err := ListenUdp(context.Background(), bind, map[state.NodeId]netip.AddrPort{}, func(pkt []byte) { got1 <- pkt }, log)
	require.NoError(t, err)
	defer t1.Close()
	t2, err := ListenUdp(context.Background(), bind, map[state.NodeId]netip.AddrPort{}, func(pkt []byte) { got2 <- pkt }, log)
	require.NoError(t, err)
	defer t2.Close()
	t1.peers[2] = t2.LocalAddr()
	t2.peers[1] = t1.LocalAddr()

	require.NoError(t, t1.Send(2, []byte("hello")))
	select {
	case pkt := <-got2:
		assert.Equal(t, []byte("hello"), pkt)
	case <-time.After(2 * time.Second):
		t.Fatal("2 did not receive the packet")
	}

	require.NoError(t, t2.Send(1, []byte("back")))
	select {
	case pkt := <-got1:
		assert.Equal(t, []byte("back"), pkt)
	case <-time.After(2 * time.Second):
		t.Fatal("1 did not receive the packet")
	}

	assert.ErrorContains(t, t1.Send(3, []byte("x")), "no endpoint for node 3")
}

func TestUdpTransport_Close(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr, err := ListenUdp(context.Background(), netip.MustParseAddrPort("127.0.0.1:0"), nil, func([]byte) {}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	require.NoError(t, tr.Close())
	assert.Error(t, tr.Send(1, nil))
}
