package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"

	"github.com/encodeous/dvnet/perf"
	"github.com/encodeous/dvnet/state"
	"golang.org/x/net/ipv4"
)

type UdpTransport struct {
	conn  *net.UDPConn
	peers map[state.NodeId]netip.AddrPort
	log   *slog.Logger
	wg    sync.WaitGroup
}

// ListenUdp binds the advertisement socket and starts delivering packets to handler.
func ListenUdp(ctx context.Context, bind netip.AddrPort, peers map[state.NodeId]netip.AddrPort, handler PacketHandler, log *slog.Logger) (*UdpTransport, error) {
	lc := net.ListenConfig{Control: controlSocket}
	pc, err := lc.ListenPacket(ctx, "udp", bind.String())
	if err != nil {
		return nil, err
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, fmt.Errorf("unexpected packet conn %T", pc)
	}
	if bind.Addr().Is4() || bind.Addr().IsUnspecified() {
		// best effort, fails on v6-only sockets
		if err := ipv4.NewPacketConn(conn).SetTOS(state.ControlTOS); err != nil {
			log.Debug("failed to set tos on control socket", "error", err)
		}
	}
	t := &UdpTransport{
		conn:  conn,
		peers: peers,
		log:   log,
	}
	t.wg.Add(1)
	go t.readLoop(handler)
	return t, nil
}

func (t *UdpTransport) readLoop(handler PacketHandler) {
	defer t.wg.Done()
	buf := make([]byte, 65535)
	for {
		n, from, err := t.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			t.log.Debug("udp read failed", "error", err)
			continue
		}
		perf.RecvBytesPerSecond.Add(float64(n))
		if state.DBG_log_transport {
			t.log.Debug("recv", "from", from, "len", n)
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		handler(pkt)
	}
}

func (t *UdpTransport) Send(to state.NodeId, pkt []byte) error {
	ep, ok := t.peers[to]
	if !ok || !ep.IsValid() {
		return fmt.Errorf("no endpoint for node %d", to)
	}
	if len(pkt) > state.SafeMTU {
		t.log.Debug("advertisement exceeds safe mtu", "to", to, "len", len(pkt))
	}
	_, err := t.conn.WriteToUDPAddrPort(pkt, ep)
	if err == nil {
		perf.SentBytesPerSecond.Add(float64(len(pkt)))
	}
	return err
}

func (t *UdpTransport) LocalAddr() netip.AddrPort {
	return t.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

func (t *UdpTransport) Close() error {
	err := t.conn.Close()
	t.wg.Wait()
	return err
}
